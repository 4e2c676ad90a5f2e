package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/interview"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/parser"
	"ai-interviewer-go/internal/report"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/storage/models"
	"ai-interviewer-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// InterviewHandler 候选人侧的会话生命周期接口
type InterviewHandler struct {
	store     *storage.Storage
	objects   storage.ObjectStorage
	extractor *parser.ResumeExtractor
	reports   *report.Generator
	manager   *interview.Manager
}

// NewInterviewHandler 创建面试处理器
func NewInterviewHandler(
	store *storage.Storage,
	extractor *parser.ResumeExtractor,
	reports *report.Generator,
	manager *interview.Manager,
) *InterviewHandler {
	h := &InterviewHandler{
		store:     store,
		extractor: extractor,
		reports:   reports,
		manager:   manager,
	}
	if store.MinIO != nil {
		h.objects = store.MinIO
	}
	return h
}

// Health 健康检查
func (h *InterviewHandler) Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":          "ok",
		"active_sessions": h.manager.ActiveSessions(),
	})
}

// StartSession 为候选人创建待开始的会话。
// 带邀请令牌时先核销邀请，令牌无效或过期直接拒绝。
func (h *InterviewHandler) StartSession(ctx context.Context, c *app.RequestContext) {
	candidateEmail := strings.TrimSpace(strings.ToLower(c.Param("candidateEmail")))
	if candidateEmail == "" || !strings.Contains(candidateEmail, "@") {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "候选人邮箱无效"})
		return
	}

	if token := c.Query("token"); token != "" {
		if status, msg := h.consumeInvitation(ctx, token, candidateEmail); status != consts.StatusOK {
			c.JSON(status, utils.H{"error": msg})
			return
		}
	}

	profile := h.candidateProfile(ctx, candidateEmail)
	session := types.NewSession(uuid.Must(uuid.NewV7()).String(), *profile)
	if err := h.store.Sessions.SaveSession(ctx, session); err != nil {
		logger.Error().Err(err).Str("candidate", candidateEmail).Msg("创建会话失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "创建会话失败"})
		return
	}

	logger.Info().
		Str("session_id", session.SessionID).
		Str("candidate", candidateEmail).
		Msg("面试会话已创建")
	c.JSON(consts.StatusOK, utils.H{
		"sessionId": session.SessionID,
		"status":    string(session.CurrentState),
	})
}

// consumeInvitation 核销一次性邀请令牌
func (h *InterviewHandler) consumeInvitation(ctx context.Context, token, candidateEmail string) (int, string) {
	if h.store.MySQL == nil {
		// 没有数据库时无法校验，放行
		return consts.StatusOK, ""
	}

	inv, err := h.store.MySQL.GetInvitationByToken(ctx, token)
	if err != nil {
		if storage.IsNotFound(err) {
			return consts.StatusNotFound, "邀请不存在"
		}
		logger.Error().Err(err).Msg("查询邀请失败")
		return consts.StatusInternalServerError, "查询邀请失败"
	}

	if inv.Status == models.InvitationStatusUsed {
		return consts.StatusConflict, "邀请已被使用"
	}
	if inv.Status == models.InvitationStatusExpired || time.Now().After(inv.ExpiresAt) {
		return consts.StatusGone, "邀请已过期"
	}
	if !strings.EqualFold(inv.CandidateEmail, candidateEmail) {
		return consts.StatusForbidden, "邀请与候选人不匹配"
	}

	if err := h.store.MySQL.MarkInvitationUsed(ctx, token); err != nil {
		logger.Error().Err(err).Str("token", token).Msg("核销邀请失败")
		return consts.StatusConflict, "邀请已被使用"
	}
	return consts.StatusOK, ""
}

// candidateProfile 取缓存画像，没有则用邮箱构造最小画像
func (h *InterviewHandler) candidateProfile(ctx context.Context, email string) *types.CandidateProfile {
	profile, err := h.store.Sessions.GetCandidateProfile(ctx, email)
	if err == nil {
		return profile
	}
	name := email
	if at := strings.Index(email, "@"); at > 0 {
		name = email[:at]
	}
	return &types.CandidateProfile{
		Name:            name,
		Email:           email,
		ExperienceLevel: types.LevelIntermediate,
	}
}

// UploadResume 接收简历文件：存对象存储、解析画像并挂到会话上。
// 解析失败不报错，用兜底画像继续。
func (h *InterviewHandler) UploadResume(ctx context.Context, c *app.RequestContext) {
	sessionID := c.PostForm("sessionId")
	if sessionID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少sessionId"})
		return
	}

	session, err := h.store.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": "会话不存在"})
		return
	}
	if session.CurrentState != types.StateCreated {
		c.JSON(consts.StatusConflict, utils.H{"error": "面试已开始, 不能再上传简历"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}
	if fileHeader.Size > constants.MaxResumeFileSize {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过10MB上限"})
		return
	}

	mimeType, err := resumeMimeType(fileHeader.Filename)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
		return
	}

	if h.objects != nil {
		ext := filepath.Ext(fileHeader.Filename)
		path, err := h.objects.UploadResume(ctx, sessionID, ext,
			bytes.NewReader(fileBytes), int64(len(fileBytes)), mimeType)
		if err != nil {
			// 原件留存失败不阻断解析
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("上传简历原件失败")
		} else {
			session.ResumePath = path
		}
	}

	profile := h.extractor.ExtractProfile(ctx, fileBytes, mimeType)
	if profile.Email == "" {
		profile.Email = session.CandidateInfo.Email
	}
	if profile.Name == "Candidate" && session.CandidateInfo.Email != "" {
		if at := strings.Index(session.CandidateInfo.Email, "@"); at > 0 {
			profile.Name = session.CandidateInfo.Email[:at]
		}
	}

	if profile.Email != "" {
		if err := h.store.Sessions.SaveCandidateProfile(ctx, profile.Email, profile); err != nil {
			logger.Warn().Err(err).Str("email", profile.Email).Msg("缓存候选人画像失败")
		}
	}

	session.CandidateInfo = *profile
	session.Touch()
	if err := h.store.Sessions.SaveSession(ctx, session); err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("更新会话画像失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "保存会话失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"status":  "resume-processed",
		"profile": profile,
	})
}

// GetSession 会话状态快照
func (h *InterviewHandler) GetSession(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("sessionId")
	session, err := h.store.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": "会话不存在"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"sessionId":     session.SessionID,
		"state":         string(session.CurrentState),
		"questionCount": session.QuestionCount,
		"scores":        session.OverallScores,
		"candidate": utils.H{
			"name":             session.CandidateInfo.Name,
			"experience_level": string(session.CandidateInfo.ExperienceLevel),
		},
	})
}

// DownloadReport 下载评估报告：优先取归档好的PDF，否则现场渲染
func (h *InterviewHandler) DownloadReport(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("sessionId")

	pdfData := h.archivedReport(ctx, sessionID)
	if pdfData == nil {
		session, err := h.store.Sessions.GetSession(ctx, sessionID)
		if err != nil {
			c.JSON(consts.StatusNotFound, utils.H{"error": "会话不存在"})
			return
		}
		pdfData, err = h.reports.Generate(session)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("渲染报告失败")
			c.JSON(consts.StatusInternalServerError, utils.H{"error": "生成报告失败"})
			return
		}
	}

	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="assessment-report-%s.pdf"`, sessionID))
	c.Data(consts.StatusOK, "application/pdf", pdfData)
}

func (h *InterviewHandler) archivedReport(ctx context.Context, sessionID string) []byte {
	if h.store.MySQL == nil || h.objects == nil {
		return nil
	}
	archive, err := h.store.MySQL.GetInterviewArchive(ctx, sessionID)
	if err != nil || archive.ReportPathOSS == "" {
		return nil
	}
	pdfData, err := h.objects.GetReport(ctx, archive.ReportPathOSS)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("读取归档报告失败")
		return nil
	}
	return pdfData
}

// DownloadResume HR下载候选人留存的简历原件
func (h *InterviewHandler) DownloadResume(ctx context.Context, c *app.RequestContext) {
	if h.objects == nil {
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": "对象存储不可用"})
		return
	}

	sessionID := c.Param("sessionId")
	session, err := h.store.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": "会话不存在"})
		return
	}
	if session.ResumePath == "" {
		c.JSON(consts.StatusNotFound, utils.H{"error": "该会话没有留存简历"})
		return
	}

	data, err := h.objects.GetResume(ctx, session.ResumePath)
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("读取简历原件失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "读取简历失败"})
		return
	}

	mimeType, err := resumeMimeType(session.ResumePath)
	if err != nil {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="resume-%s%s"`, sessionID, filepath.Ext(session.ResumePath)))
	c.Data(consts.StatusOK, mimeType, data)
}

func resumeMimeType(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return constants.MimePDF, nil
	case ".docx":
		return constants.MimeDOCX, nil
	default:
		return "", fmt.Errorf("仅支持PDF和DOCX格式")
	}
}

func parseIntOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
