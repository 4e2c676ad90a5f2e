package types

import (
	"time"

	"ai-interviewer-go/internal/constants"
)

// SessionSchemaVersion 当前会话结构的版本号，随字段变更递增
const SessionSchemaVersion = 1

// SessionState 表示面试会话所处的状态
type SessionState string

const (
	// StateCreated 会话已创建，等待开始
	StateCreated SessionState = "created"
	// StateIntro 正在播报开场白
	StateIntro SessionState = "intro"
	// StateQuestioning 正在播报题目
	StateQuestioning SessionState = "questioning"
	// StateWaitingResponse 等待候选人作答
	StateWaitingResponse SessionState = "waiting-response"
	// StateProcessing 正在转写与评分
	StateProcessing SessionState = "processing"
	// StateCompleted 面试已结束
	StateCompleted SessionState = "completed"
)

// ExperienceLevel 候选人经验档位，同时也是题库的难度档位
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "Beginner"
	LevelIntermediate ExperienceLevel = "Intermediate"
	LevelAdvanced     ExperienceLevel = "Advanced"
)

// ParseExperienceLevel 宽松地解析经验档位字符串，无法识别时回落到中级
func ParseExperienceLevel(s string) ExperienceLevel {
	switch s {
	case string(LevelBeginner), "beginner":
		return LevelBeginner
	case string(LevelAdvanced), "advanced":
		return LevelAdvanced
	default:
		return LevelIntermediate
	}
}

// CandidateProfile 简历解析得到的候选人画像，可独立于会话缓存
type CandidateProfile struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Skills          []string        `json:"skills"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	TotalExperience string          `json:"total_experience,omitempty"`
	CurrentRole     string          `json:"current_role,omitempty"`
	// RawText 解析出的原文摘录，最长1000字符
	RawText string `json:"raw_text,omitempty"`
	// ParsingError 解析失败时记录原因，画像本身仍然可用
	ParsingError string `json:"parsing_error,omitempty"`
}

// Evaluation 单题评分结果，所有分数均已钳制到 [0,10]
type Evaluation struct {
	Score         float64  `json:"score"`
	Technical     float64  `json:"technical"`
	Practical     float64  `json:"practical"`
	Communication float64  `json:"communication"`
	Completeness  float64  `json:"completeness"`
	Feedback      string   `json:"feedback"`
	Strengths     []string `json:"strengths,omitempty"`
	Improvements  []string `json:"improvements,omitempty"`
	KeyMissing    []string `json:"key_missing,omitempty"`
	// ConfidenceAdjustment 说明转写置信度如何影响了评分
	ConfidenceAdjustment string `json:"confidence_adjustment,omitempty"`
}

// Clamp 将所有维度分数钳制到 [0,10]，缺失的维度回落到综合分
func (e *Evaluation) Clamp() {
	e.Score = clampScore(e.Score)
	e.Technical = clampDimension(e.Technical, e.Score)
	e.Practical = clampDimension(e.Practical, e.Score)
	e.Communication = clampDimension(e.Communication, e.Score)
	e.Completeness = clampDimension(e.Completeness, e.Score)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func clampDimension(v, fallback float64) float64 {
	if v == 0 && fallback != 0 {
		return fallback
	}
	return clampScore(v)
}

// Turn 一轮问答记录
type Turn struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Score      float64    `json:"score"`
	Feedback   string     `json:"feedback"`
	Timestamp  time.Time  `json:"timestamp"`
	Evaluation Evaluation `json:"evaluation"`
}

// OverallScores 四个维度的滚动均值及加权综合分
type OverallScores struct {
	Technical      float64 `json:"technical"`
	Communication  float64 `json:"communication"`
	ProblemSolving float64 `json:"problemSolving"`
	Completeness   float64 `json:"completeness"`
	Overall        float64 `json:"overall"`
}

// Session 一位候选人的完整面试状态，编排器是唯一写入方
type Session struct {
	SchemaVersion       int              `json:"schema_version"`
	SessionID           string           `json:"sessionId"`
	CandidateInfo       CandidateProfile `json:"candidateInfo"`
	ConversationHistory []Turn           `json:"conversationHistory"`
	CurrentState        SessionState     `json:"currentState"`
	// CurrentQuestion 等待作答的题目，无待答题目时为空串
	CurrentQuestion string        `json:"currentQuestion"`
	OverallScores   OverallScores `json:"overallScores"`
	QuestionCount   int           `json:"questionCount"`
	StartTime       time.Time     `json:"startTime"`
	LastActivity    time.Time     `json:"lastActivity"`
	SocketID        string        `json:"socketId,omitempty"`
	// ResumePath 简历原件在对象存储中的路径，未上传或留存失败时为空
	ResumePath string `json:"resumePath,omitempty"`
}

// NewSession 创建初始状态的会话
func NewSession(sessionID string, candidate CandidateProfile) *Session {
	now := time.Now()
	return &Session{
		SchemaVersion: SessionSchemaVersion,
		SessionID:     sessionID,
		CandidateInfo: candidate,
		CurrentState:  StateCreated,
		StartTime:     now,
		LastActivity:  now,
	}
}

// Touch 更新最后活跃时间
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// AppendTurn 记录一轮问答并递增计数，调用方负责随后重算综合分
func (s *Session) AppendTurn(turn Turn) {
	s.ConversationHistory = append(s.ConversationHistory, turn)
	s.QuestionCount++
}

// RecomputeOverallScores 基于完整历史重算四个维度均值和加权综合分。
// 综合分始终是固定权重组合: 技术0.4 + 沟通0.2 + 实践0.3 + 完整性0.1，
// 每轮全量重算，不做增量累计。
func (s *Session) RecomputeOverallScores() {
	n := len(s.ConversationHistory)
	if n == 0 {
		return
	}

	var technical, communication, practical, completeness float64
	for _, turn := range s.ConversationHistory {
		technical += turn.Evaluation.Technical
		communication += turn.Evaluation.Communication
		practical += turn.Evaluation.Practical
		completeness += turn.Evaluation.Completeness
	}

	count := float64(n)
	s.OverallScores.Technical = technical / count
	s.OverallScores.Communication = communication / count
	s.OverallScores.ProblemSolving = practical / count
	s.OverallScores.Completeness = completeness / count
	s.OverallScores.Overall = s.OverallScores.Technical*constants.WeightTechnical +
		s.OverallScores.Communication*constants.WeightCommunication +
		s.OverallScores.ProblemSolving*constants.WeightProblemSolving +
		s.OverallScores.Completeness*constants.WeightCompleteness
}

// Finished 是否已答满固定题数
func (s *Session) Finished() bool {
	return s.QuestionCount >= constants.MaxQuestions
}
