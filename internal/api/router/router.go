package router

import (
	"context"

	"ai-interviewer-go/internal/api/handler"
	"ai-interviewer-go/internal/api/ws"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册API路由
func RegisterRoutes(
	h *server.Hertz,
	tokens *handler.TokenStore,
	authHandler *handler.AuthHandler,
	invitationHandler *handler.InvitationHandler,
	interviewHandler *handler.InterviewHandler,
	wsHandler *ws.Handler,
) {
	h.GET("/health", interviewHandler.Health)
	h.GET("/ws", wsHandler.Serve)

	api := h.Group("/api/v1")
	api.POST("/hr/login", authHandler.Login)

	// HR接口走Bearer令牌校验
	hr := api.Group("/hr", keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			email, ok := tokens.Validate(key)
			if !ok {
				return false, nil
			}
			c.Set("hr_email", email)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "未授权"})
			c.Abort()
		}),
	))
	hr.POST("/send-invitations", invitationHandler.SendInvitations)
	hr.GET("/invitations", invitationHandler.ListInvitations)
	hr.GET("/archives", invitationHandler.ListArchives)
	hr.GET("/resume/:sessionId", interviewHandler.DownloadResume)

	api.GET("/interview/start/:candidateEmail", interviewHandler.StartSession)
	api.POST("/interview/upload-resume", interviewHandler.UploadResume)
	api.GET("/session/:sessionId", interviewHandler.GetSession)
	api.GET("/report/download/:sessionId", interviewHandler.DownloadReport)
}
