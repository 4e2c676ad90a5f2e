package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/mailer"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubInvitationStore 进程内的邀请与归档表
type stubInvitationStore struct {
	hrUsers     map[string]*models.HRUser
	invitations []models.InvitationRecord
}

func newStubInvitationStore() *stubInvitationStore {
	return &stubInvitationStore{hrUsers: make(map[string]*models.HRUser)}
}

func (s *stubInvitationStore) CreateInvitation(ctx context.Context, inv *models.InvitationRecord) error {
	s.invitations = append(s.invitations, *inv)
	return nil
}

func (s *stubInvitationStore) GetHRUserByEmail(ctx context.Context, email string) (*models.HRUser, error) {
	user, ok := s.hrUsers[email]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubInvitationStore) ListInvitationsByHR(ctx context.Context, hrUserID string, limit int) ([]models.InvitationRecord, error) {
	var out []models.InvitationRecord
	for _, inv := range s.invitations {
		if inv.SentByID == hrUserID {
			out = append(out, inv)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubInvitationStore) ListInterviewArchives(ctx context.Context, offset, limit int) ([]models.InterviewArchive, int64, error) {
	return nil, 0, nil
}

func newInvitationEngine() *server.Hertz {
	// SMTP未配置时发送是空操作，批次照常成功
	mail := mailer.NewMailer(&config.SMTPConfig{}, "http://localhost:5173")
	h := NewInvitationHandler(nil, mail)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	engine.POST("/api/v1/hr/send-invitations", h.SendInvitations)
	return engine
}

func postInvitations(engine *server.Hertz, body interface{}) *ut.ResponseRecorder {
	data, _ := json.Marshal(body)
	return ut.PerformRequest(engine.Engine, "POST", "/api/v1/hr/send-invitations",
		&ut.Body{Body: bytes.NewBuffer(data), Len: len(data)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func TestSendInvitationsBatch(t *testing.T) {
	engine := newInvitationEngine()

	resp := postInvitations(engine, SendInvitationsRequest{
		CandidateEmails: []string{"a@example.com", "b@example.com"},
		HREmail:         "hr@example.com",
	})
	require.Equal(t, 200, resp.Result().StatusCode())

	var result struct {
		Success bool               `json:"success"`
		Results []InvitationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	assert.True(t, result.Success)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "sent", result.Results[0].Status)
	assert.Equal(t, "sent", result.Results[1].Status)
}

func TestSendInvitationsInvalidAddressDoesNotAbortBatch(t *testing.T) {
	engine := newInvitationEngine()

	resp := postInvitations(engine, SendInvitationsRequest{
		CandidateEmails: []string{"not-an-email", "ok@example.com"},
	})
	require.Equal(t, 200, resp.Result().StatusCode())

	var result struct {
		Results []InvitationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	require.Len(t, result.Results, 2)
	assert.Equal(t, "failed", result.Results[0].Status)
	assert.Equal(t, "sent", result.Results[1].Status)
}

func TestSendInvitationsEmptyList(t *testing.T) {
	engine := newInvitationEngine()
	resp := postInvitations(engine, SendInvitationsRequest{})
	assert.Equal(t, 400, resp.Result().StatusCode())
}

func TestListInvitationsByCurrentHR(t *testing.T) {
	db := newStubInvitationStore()
	db.hrUsers["hr@example.com"] = &models.HRUser{UserID: "hr-1", Email: "hr@example.com"}
	db.invitations = []models.InvitationRecord{
		{InvitationID: "inv-1", CandidateEmail: "a@example.com", SentByID: "hr-1", SentAt: time.Now()},
		{InvitationID: "inv-2", CandidateEmail: "b@example.com", SentByID: "hr-2", SentAt: time.Now()},
	}

	mail := mailer.NewMailer(&config.SMTPConfig{}, "http://localhost:5173")
	h := NewInvitationHandler(db, mail)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	engine.GET("/api/v1/hr/invitations", func(ctx context.Context, c *app.RequestContext) {
		// 模拟keyauth校验后注入的HR身份
		c.Set("hr_email", "hr@example.com")
		h.ListInvitations(ctx, c)
	})

	resp := ut.PerformRequest(engine.Engine, "GET", "/api/v1/hr/invitations", nil)
	require.Equal(t, 200, resp.Result().StatusCode())

	var result struct {
		Total       int                       `json:"total"`
		Invitations []models.InvitationRecord `json:"invitations"`
	}
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "inv-1", result.Invitations[0].InvitationID)
}

func TestListInvitationsWithoutStore(t *testing.T) {
	mail := mailer.NewMailer(&config.SMTPConfig{}, "http://localhost:5173")
	h := NewInvitationHandler(nil, mail)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	engine.GET("/api/v1/hr/invitations", h.ListInvitations)

	resp := ut.PerformRequest(engine.Engine, "GET", "/api/v1/hr/invitations", nil)
	assert.Equal(t, 503, resp.Result().StatusCode())
}
