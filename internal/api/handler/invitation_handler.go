package handler

import (
	"context"
	"strings"
	"time"

	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/mailer"
	"ai-interviewer-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// InvitationTTL 邀请链接的有效期
const InvitationTTL = 7 * 24 * time.Hour

// InvitationStore 邀请与归档的持久化入口
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *models.InvitationRecord) error
	GetHRUserByEmail(ctx context.Context, email string) (*models.HRUser, error)
	ListInvitationsByHR(ctx context.Context, hrUserID string, limit int) ([]models.InvitationRecord, error)
	ListInterviewArchives(ctx context.Context, offset, limit int) ([]models.InterviewArchive, int64, error)
}

// InvitationHandler 面试邀请的批量发送与查询
type InvitationHandler struct {
	db   InvitationStore
	mail *mailer.Mailer
}

// NewInvitationHandler 创建邀请处理器，db允许为nil（不落库只发信）
func NewInvitationHandler(db InvitationStore, mail *mailer.Mailer) *InvitationHandler {
	return &InvitationHandler{db: db, mail: mail}
}

// SendInvitationsRequest 批量邀请请求体
type SendInvitationsRequest struct {
	CandidateEmails []string `json:"candidateEmails"`
	HREmail         string   `json:"hrEmail"`
}

// InvitationResult 单个候选人的发送结果
type InvitationResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SendInvitations 逐个发送邀请，单个地址失败不中断批次
func (h *InvitationHandler) SendInvitations(ctx context.Context, c *app.RequestContext) {
	var req SendInvitationsRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
		return
	}
	if len(req.CandidateEmails) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "候选人邮箱列表不能为空"})
		return
	}

	sentByID := h.resolveSenderID(ctx, c)
	results := make([]InvitationResult, 0, len(req.CandidateEmails))

	for _, email := range req.CandidateEmails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email == "" || !strings.Contains(email, "@") {
			results = append(results, InvitationResult{Email: email, Status: "failed", Error: "invalid email"})
			continue
		}
		results = append(results, h.sendOne(ctx, email, req.HREmail, sentByID))
	}

	c.JSON(consts.StatusOK, utils.H{
		"success": true,
		"message": "Invitations processed",
		"results": results,
	})
}

func (h *InvitationHandler) sendOne(ctx context.Context, candidateEmail, hrEmail, sentByID string) InvitationResult {
	token := uuid.Must(uuid.NewV7()).String()

	if h.db != nil {
		record := &models.InvitationRecord{
			InvitationID:   uuid.Must(uuid.NewV7()).String(),
			CandidateEmail: candidateEmail,
			Token:          token,
			Status:         models.InvitationStatusSent,
			SentByID:       sentByID,
			SentAt:         time.Now(),
			ExpiresAt:      time.Now().Add(InvitationTTL),
		}
		if err := h.db.CreateInvitation(ctx, record); err != nil {
			logger.Error().Err(err).Str("candidate", candidateEmail).Msg("写入邀请记录失败")
			return InvitationResult{Email: candidateEmail, Status: "failed", Error: err.Error()}
		}
	}

	if err := h.mail.SendInvitation(candidateEmail, hrEmail, token); err != nil {
		logger.Error().Err(err).Str("candidate", candidateEmail).Msg("发送邀请邮件失败")
		return InvitationResult{Email: candidateEmail, Status: "failed", Error: err.Error()}
	}
	return InvitationResult{Email: candidateEmail, Status: "sent"}
}

// resolveSenderID 从keyauth校验过的HR邮箱解析出账号ID
func (h *InvitationHandler) resolveSenderID(ctx context.Context, c *app.RequestContext) string {
	email, ok := c.Get("hr_email")
	if !ok || h.db == nil {
		return ""
	}
	emailStr, _ := email.(string)
	if emailStr == "" {
		return ""
	}
	user, err := h.db.GetHRUserByEmail(ctx, emailStr)
	if err != nil {
		return ""
	}
	return user.UserID
}

// ListInvitations 当前HR发出的邀请列表，按发送时间倒序
func (h *InvitationHandler) ListInvitations(ctx context.Context, c *app.RequestContext) {
	if h.db == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "邀请存储不可用"})
		return
	}

	limit := parseIntOr(c.DefaultQuery("limit", "50"), 50)
	invitations, err := h.db.ListInvitationsByHR(ctx, h.resolveSenderID(ctx, c), limit)
	if err != nil {
		logger.Error().Err(err).Msg("查询邀请列表失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询邀请列表失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"total":       len(invitations),
		"invitations": invitations,
	})
}

// ListArchives 归档面试的分页列表
func (h *InvitationHandler) ListArchives(ctx context.Context, c *app.RequestContext) {
	if h.db == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "归档存储不可用"})
		return
	}

	offset := c.DefaultQuery("offset", "0")
	limit := c.DefaultQuery("limit", "20")
	archives, total, err := h.db.ListInterviewArchives(ctx, parseIntOr(offset, 0), parseIntOr(limit, 20))
	if err != nil {
		logger.Error().Err(err).Msg("查询归档列表失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询归档列表失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"total":    total,
		"archives": archives,
	})
}
