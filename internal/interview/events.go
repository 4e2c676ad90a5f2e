package interview

import (
	"encoding/json"

	"ai-interviewer-go/internal/types"
)

// 客户端发来的事件
const (
	EventStartInterview    = "start-interview"
	EventRequestQuestion   = "request-question"
	EventAudioResponse     = "audio-response"
	EventAudioData         = "audio-data"
	EventTextResponse      = "text-response"
	EventPlaybackFinished  = "playback-finished"
	EventCompleteInterview = "complete-interview"
	EventStopInterview     = "stop-interview"
)

// 发往客户端的事件
const (
	EventInterviewStarted   = "interview-started"
	EventAISpeaking         = "ai-speaking"
	EventAIMessage          = "ai-message"
	EventAIQuestion         = "ai-question"
	EventAIAudio            = "ai-audio"
	EventStartListening     = "start-listening"
	EventStopListening      = "stop-listening"
	EventScoresUpdated      = "scores-updated"
	EventQuestionCompleted  = "question-completed"
	EventInterviewCompleted = "interview-completed"
	EventError              = "error"
)

// Envelope 双向消息的统一信封
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Emitter 向单个客户端推送事件，由websocket层实现
type Emitter interface {
	Emit(event string, data interface{}) error
}

// InterviewStartedPayload 面试开始通知
type InterviewStartedPayload struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// AISpeakingPayload AI是否正在播报
type AISpeakingPayload struct {
	Speaking bool `json:"speaking"`
}

// AIMessagePayload 一段AI播报文本
type AIMessagePayload struct {
	Message string `json:"message"`
}

// AIQuestionPayload 题目播报
type AIQuestionPayload struct {
	Question       string `json:"question"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
}

// AIAudioPayload 播报音频，JSON编码时自动转base64
type AIAudioPayload struct {
	Audio  []byte `json:"audio"`
	Format string `json:"format"`
}

// ScoresUpdatedPayload 评分快照
type ScoresUpdatedPayload struct {
	Scores        types.OverallScores `json:"scores"`
	QuestionCount int                 `json:"questionCount"`
}

// QuestionCompletedPayload 单题完成详情
type QuestionCompletedPayload struct {
	QuestionNumber int              `json:"questionNumber"`
	Transcript     string           `json:"transcript"`
	Confidence     float64          `json:"confidence"`
	Evaluation     types.Evaluation `json:"evaluation"`
}

// InterviewCompletedPayload 面试结束摘要
type InterviewCompletedPayload struct {
	SessionID     string              `json:"sessionId"`
	Scores        types.OverallScores `json:"scores"`
	QuestionCount int                 `json:"questionCount"`
	Message       string              `json:"message,omitempty"`
}

// ErrorPayload 用户可见的错误
type ErrorPayload struct {
	Message string `json:"message"`
}

// AudioResponsePayload 客户端上送的音频回答
type AudioResponsePayload struct {
	SessionID string `json:"sessionId"`
	Audio     []byte `json:"audio"`
	MimeType  string `json:"mimeType,omitempty"`
}

// TextResponsePayload 客户端上送的文字回答
type TextResponsePayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// SessionRefPayload 只携带会话ID的客户端事件
type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}
