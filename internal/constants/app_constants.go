package constants

import "time"

const (
	// MaxQuestions 一场面试的固定题目数量
	MaxQuestions = 8

	// SessionTTL 会话在存储中的生存时间
	SessionTTL = time.Hour
	// CandidateProfileTTL 候选人画像缓存的生存时间
	CandidateProfileTTL = time.Hour

	// MinAudioBytes 小于该字节数的音频视为静音，直接拒绝
	MinAudioBytes = 1000
	// MinTranscriptLen 转写文本短于该长度视为无效回答
	MinTranscriptLen = 3

	// 综合得分的固定权重 (参见 types.Session.RecomputeOverallScores)
	WeightTechnical      = 0.4
	WeightCommunication  = 0.2
	WeightProblemSolving = 0.3
	WeightCompleteness   = 0.1

	// 难度档位升降阈值：取最近两题得分均值
	TierEscalateThreshold   = 8.0
	TierDeescalateThreshold = 4.0

	// MaxResumeFileSize 简历上传大小上限
	MaxResumeFileSize = 10 * 1024 * 1024

	// PlaybackAckTimeout 等待客户端播放完成信号的超时兜底
	PlaybackAckTimeout = 30 * time.Second
)

// 支持的简历文件类型
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
