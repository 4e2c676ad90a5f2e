package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL HR登录令牌的有效期
const TokenTTL = 12 * time.Hour

type tokenEntry struct {
	email     string
	expiresAt time.Time
}

// TokenStore 进程内的HR令牌表
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]tokenEntry
	ttl    time.Duration
}

// NewTokenStore 创建令牌表
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &TokenStore{
		tokens: make(map[string]tokenEntry),
		ttl:    ttl,
	}
}

// Issue 为HR邮箱签发新令牌
func (s *TokenStore) Issue(email string) string {
	token := uuid.Must(uuid.NewV7()).String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = tokenEntry{
		email:     email,
		expiresAt: time.Now().Add(s.ttl),
	}
	return token
}

// Validate 校验令牌，过期的顺手删除
func (s *TokenStore) Validate(token string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return "", false
	}
	return entry.email, true
}

// HRAccountStore HR账号的持久化入口
type HRAccountStore interface {
	GetHRUserByEmail(ctx context.Context, email string) (*models.HRUser, error)
	CreateHRUser(ctx context.Context, user *models.HRUser) error
}

// AuthHandler HR登录
type AuthHandler struct {
	db     HRAccountStore
	hrCfg  *config.HRConfig
	tokens *TokenStore
}

// NewAuthHandler 创建登录处理器，db允许为nil（仅用配置凭据）
func NewAuthHandler(db HRAccountStore, hrCfg *config.HRConfig, tokens *TokenStore) *AuthHandler {
	return &AuthHandler{db: db, hrCfg: hrCfg, tokens: tokens}
}

// LoginRequest 登录请求体
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 处理HR登录：优先MySQL账号，查不到时回落到配置凭据
func (h *AuthHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "邮箱和密码不能为空"})
		return
	}

	if !h.authenticate(ctx, req.Email, req.Password) {
		logger.Warn().Str("email", req.Email).Msg("HR登录失败")
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "邮箱或密码错误"})
		return
	}

	token := h.tokens.Issue(req.Email)
	c.JSON(consts.StatusOK, utils.H{
		"token": token,
		"email": req.Email,
	})
}

func (h *AuthHandler) authenticate(ctx context.Context, email, password string) bool {
	if h.db != nil {
		user, err := h.db.GetHRUserByEmail(ctx, email)
		if err == nil {
			return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
		}
		if !storage.IsNotFound(err) {
			logger.Error().Err(err).Str("email", email).Msg("查询HR账号失败")
		}
	}

	// 配置兜底凭据
	if h.hrCfg == nil || h.hrCfg.Email == "" ||
		!strings.EqualFold(h.hrCfg.Email, email) ||
		h.hrCfg.Password != password {
		return false
	}

	// 兜底凭据首次登录成功后落库，后续登录走数据库校验
	if h.db != nil {
		h.seedFallbackUser(ctx, email, password)
	}
	return true
}

func (h *AuthHandler) seedFallbackUser(ctx context.Context, email, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Warn().Err(err).Msg("生成密码哈希失败")
		return
	}
	user := &models.HRUser{
		UserID:       uuid.Must(uuid.NewV7()).String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  "HR",
	}
	if err := h.db.CreateHRUser(ctx, user); err != nil {
		logger.Warn().Err(err).Str("email", email).Msg("落库HR账号失败")
	}
}
