package storage

import "time"

// InterviewCompletedMessage 面试完成事件，编排器发布，归档消费者消费
type InterviewCompletedMessage struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
	// Attempt 当前处理尝试次数，消费失败重新入队时递增
	Attempt int `json:"attempt,omitempty"`
}
