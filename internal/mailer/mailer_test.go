package mailer

import (
	"strings"
	"testing"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

// stubSender 捕获发送的邮件而不实际投递
type stubSender struct {
	sent []*gomail.Message
	err  error
}

func (s *stubSender) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, m...)
	return nil
}

func newTestMailer(sender messageSender) *Mailer {
	return &Mailer{
		sender:      sender,
		from:        "noreply@example.com",
		frontendURL: "http://localhost:5173",
		enabled:     true,
	}
}

func TestInvitationLink(t *testing.T) {
	m := newTestMailer(&stubSender{})
	link := m.InvitationLink("tok en+123")
	assert.Equal(t, "http://localhost:5173/interview?token=tok+en%2B123", link)
}

func TestSendInvitation(t *testing.T) {
	sender := &stubSender{}
	m := newTestMailer(sender)

	err := m.SendInvitation("candidate@example.com", "hr@example.com", "abc-123")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"candidate@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"hr@example.com"}, msg.GetHeader("Bcc"))
	assert.Equal(t,
		[]string{"Invitation: Excel Skills Assessment - AI Interview"},
		msg.GetHeader("Subject"))
}

func TestSendInvitationWithoutHREmail(t *testing.T) {
	sender := &stubSender{}
	m := newTestMailer(sender)

	require.NoError(t, m.SendInvitation("candidate@example.com", "", "abc-123"))
	require.Len(t, sender.sent, 1)
	assert.Empty(t, sender.sent[0].GetHeader("Bcc"))
}

func TestSendReport(t *testing.T) {
	sender := &stubSender{}
	m := newTestMailer(sender)

	session := &types.Session{
		SessionID: "sess-1",
		CandidateInfo: types.CandidateProfile{
			Name:  "Priya Sharma",
			Email: "priya@example.com",
		},
		ConversationHistory: make([]types.Turn, 8),
		OverallScores:       types.OverallScores{Overall: 7.6},
	}

	err := m.SendReport(session, []byte("%PDF-fake"), "")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"priya@example.com"}, sender.sent[0].GetHeader("To"))
}

func TestSendReportRequiresEmail(t *testing.T) {
	m := newTestMailer(&stubSender{})
	session := &types.Session{SessionID: "sess-1"}

	err := m.SendReport(session, nil, "")
	assert.Error(t, err)
}

func TestDisabledMailerSkipsSending(t *testing.T) {
	m := NewMailer(&config.SMTPConfig{}, "http://localhost:5173")
	assert.False(t, m.Enabled())

	// 禁用状态下发送是空操作，不报错
	assert.NoError(t, m.SendInvitation("candidate@example.com", "", "tok"))
	assert.NoError(t, m.SendReport(&types.Session{
		CandidateInfo: types.CandidateProfile{Email: "x@example.com"},
	}, nil, ""))
}

func TestReportBodyContents(t *testing.T) {
	session := &types.Session{
		CandidateInfo:       types.CandidateProfile{Name: "Rajesh"},
		ConversationHistory: make([]types.Turn, 8),
		OverallScores:       types.OverallScores{Overall: 8.7},
	}
	body := reportBody(session, "")

	assert.True(t, strings.Contains(body, "Dear Rajesh,"))
	assert.True(t, strings.Contains(body, "Overall Score: 8.7/10"))
	assert.True(t, strings.Contains(body, "Performance Level: Excellent"))
	assert.True(t, strings.Contains(body, "Questions Answered: 8"))
	assert.False(t, strings.Contains(body, "download it online"))
}

func TestReportBodyIncludesDownloadLink(t *testing.T) {
	session := &types.Session{
		CandidateInfo:       types.CandidateProfile{Name: "Rajesh"},
		ConversationHistory: make([]types.Turn, 8),
		OverallScores:       types.OverallScores{Overall: 8.7},
	}
	body := reportBody(session, "http://minio.local/sess-1/report.pdf")

	assert.True(t, strings.Contains(body, "http://minio.local/sess-1/report.pdf"))
}
