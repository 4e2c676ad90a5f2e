package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	// 使用扩展的配置选项
	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,     // 默认10
		MinIdleConns: cfg.MinIdleConns, // 默认2

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	// Ping to check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Get(ctx, key).Result()
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Set(ctx, key, value, expiration).Err()
}

// 确保Redis实现了SessionStore接口
var _ SessionStore = (*Redis)(nil)

// SaveSession 将会话JSON序列化后写入Redis并刷新TTL
func (r *Redis) SaveSession(ctx context.Context, session *types.Session) error {
	if session == nil || session.SessionID == "" {
		return fmt.Errorf("会话或会话ID不能为空")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	key := fmt.Sprintf(constants.KeySession, session.SessionID)
	if err := r.Client.Set(ctx, key, data, constants.SessionTTL).Err(); err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}

// GetSession 从Redis读取并反序列化会话
func (r *Redis) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	key := fmt.Sprintf(constants.KeySession, sessionID)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("反序列化会话失败: %w", err)
	}
	return &session, nil
}

// DeleteSession 删除会话
func (r *Redis) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(constants.KeySession, sessionID)
	return r.Client.Del(ctx, key).Err()
}

// SaveCandidateProfile 按邮箱缓存候选人画像
func (r *Redis) SaveCandidateProfile(ctx context.Context, email string, profile *types.CandidateProfile) error {
	if email == "" {
		return fmt.Errorf("邮箱不能为空")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("序列化候选人画像失败: %w", err)
	}

	key := fmt.Sprintf(constants.KeyCandidateProfile, email)
	if err := r.Client.Set(ctx, key, data, constants.CandidateProfileTTL).Err(); err != nil {
		return fmt.Errorf("写入候选人画像失败: %w", err)
	}
	return nil
}

// GetCandidateProfile 按邮箱读取候选人画像
func (r *Redis) GetCandidateProfile(ctx context.Context, email string) (*types.CandidateProfile, error) {
	key := fmt.Sprintf(constants.KeyCandidateProfile, email)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("读取候选人画像失败: %w", err)
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("反序列化候选人画像失败: %w", err)
	}
	return &profile, nil
}
