package storage

import (
	"context"
	"errors"

	"ai-interviewer-go/internal/types"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// ErrProfileNotFound 候选人画像缓存不存在或已过期
var ErrProfileNotFound = errors.New("candidate profile not found")

// SessionStore 面试会话存储接口。
// 有Redis和进程内两种实现，启动时根据Redis可用性选定其一，
// 运行期间不做切换，避免会话在两套存储间分裂。
type SessionStore interface {
	// SaveSession 写入会话并刷新TTL
	SaveSession(ctx context.Context, session *types.Session) error

	// GetSession 读取会话，不存在时返回ErrSessionNotFound
	GetSession(ctx context.Context, sessionID string) (*types.Session, error)

	// DeleteSession 删除会话，不存在时不报错
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveCandidateProfile 按邮箱缓存候选人画像
	SaveCandidateProfile(ctx context.Context, email string, profile *types.CandidateProfile) error

	// GetCandidateProfile 按邮箱读取候选人画像，不存在时返回ErrProfileNotFound
	GetCandidateProfile(ctx context.Context, email string) (*types.CandidateProfile, error)

	// Ping 检查存储可用性
	Ping(ctx context.Context) error

	// Close 释放底层资源
	Close() error
}
