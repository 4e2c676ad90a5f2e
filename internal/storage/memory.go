package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/types"
)

// memoryEntry 进程内存储的一条记录
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore 进程内的会话存储，Redis不可用时的降级实现。
// 单机有效，进程重启即丢失，TTL语义与Redis实现保持一致。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	profiles map[string]*memoryEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// 确保MemoryStore实现了SessionStore接口
var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore 创建进程内会话存储并启动过期清理协程
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		profiles: make(map[string]*memoryEntry),
		stopCh:   make(chan struct{}),
	}
	go m.janitor()
	return m
}

// janitor 周期性清理过期记录，避免map无限增长
func (m *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for id, entry := range m.sessions {
				if entry.expired(now) {
					delete(m.sessions, id)
				}
			}
			for email, entry := range m.profiles {
				if entry.expired(now) {
					delete(m.profiles, email)
				}
			}
			m.mu.Unlock()
		}
	}
}

// SaveSession 写入会话并刷新TTL
func (m *MemoryStore) SaveSession(_ context.Context, session *types.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionID] = &memoryEntry{
		data:      data,
		expiresAt: time.Now().Add(constants.SessionTTL),
	}
	return nil
}

// GetSession 读取会话，过期记录视为不存在并顺手删除
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*types.Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if entry.expired(time.Now()) {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	var session types.Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession 删除会话
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// SaveCandidateProfile 按邮箱缓存候选人画像
func (m *MemoryStore) SaveCandidateProfile(_ context.Context, email string, profile *types.CandidateProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[email] = &memoryEntry{
		data:      data,
		expiresAt: time.Now().Add(constants.CandidateProfileTTL),
	}
	return nil
}

// GetCandidateProfile 按邮箱读取候选人画像
func (m *MemoryStore) GetCandidateProfile(_ context.Context, email string) (*types.CandidateProfile, error) {
	m.mu.RLock()
	entry, ok := m.profiles[email]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrProfileNotFound
	}
	if entry.expired(time.Now()) {
		m.mu.Lock()
		delete(m.profiles, email)
		m.mu.Unlock()
		return nil, ErrProfileNotFound
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal(entry.data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Ping 进程内存储永远可用
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close 停止清理协程
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}
