package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: {entity}:{unique_id}
const (
	// KeySession 面试会话 (STRING, JSON序列化)
	// 格式: session:{sessionID}
	KeySession = "session:%s"

	// KeyCandidateProfile 候选人画像缓存 (STRING, JSON序列化)
	// 格式: candidate:{email}
	KeyCandidateProfile = "candidate:%s"
)
