package mailer

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/report"
	"ai-interviewer-go/internal/types"

	"gopkg.in/gomail.v2"
)

// messageSender 抽象gomail的发送入口，便于测试替换
type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer 负责面试邀请和评估报告两类外发邮件
type Mailer struct {
	sender      messageSender
	from        string
	frontendURL string
	enabled     bool
}

// NewMailer 创建邮件发送器。SMTP未配置时返回禁用状态的发送器，
// 所有发送调用直接跳过并记录日志，不阻断主流程。
func NewMailer(smtp *config.SMTPConfig, frontendURL string) *Mailer {
	m := &Mailer{
		from:        smtp.From,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
	if smtp.Host == "" || smtp.Username == "" {
		logger.Warn().Msg("SMTP未配置, 邮件发送已禁用")
		return m
	}
	if m.from == "" {
		m.from = smtp.Username
	}

	m.sender = gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
	m.enabled = true
	return m
}

// Enabled 邮件通道是否可用
func (m *Mailer) Enabled() bool {
	return m.enabled
}

// InvitationLink 候选人面试入口链接
func (m *Mailer) InvitationLink(token string) string {
	return fmt.Sprintf("%s/interview?token=%s", m.frontendURL, url.QueryEscape(token))
}

// SendInvitation 向候选人发送面试邀请，同时抄送HR留档
func (m *Mailer) SendInvitation(candidateEmail, hrEmail, token string) error {
	if !m.enabled {
		logger.Warn().Str("candidate", candidateEmail).Msg("邮件通道禁用, 跳过邀请邮件")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Excel Skills Assessment")
	msg.SetHeader("To", candidateEmail)
	if hrEmail != "" {
		msg.SetHeader("Bcc", hrEmail)
	}
	msg.SetHeader("Subject", "Invitation: Excel Skills Assessment - AI Interview")
	msg.SetBody("text/plain", invitationBody(m.InvitationLink(token)))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("发送邀请邮件失败: %w", err)
	}
	logger.Info().Str("candidate", candidateEmail).Msg("邀请邮件已发送")
	return nil
}

// SendReport 面试结束后给候选人发送致谢邮件并附上PDF报告。
// reportURL 是报告的预签名下载链接，为空时正文不含在线链接。
func (m *Mailer) SendReport(session *types.Session, pdfData []byte, reportURL string) error {
	if !m.enabled {
		logger.Warn().Str("session_id", session.SessionID).Msg("邮件通道禁用, 跳过报告邮件")
		return nil
	}
	if session.CandidateInfo.Email == "" {
		return fmt.Errorf("候选人邮箱为空, 无法发送报告")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Excel Skills Assessment")
	msg.SetHeader("To", session.CandidateInfo.Email)
	msg.SetHeader("Subject", "Your Excel Skills Assessment Report")
	msg.SetBody("text/plain", reportBody(session, reportURL))

	if len(pdfData) > 0 {
		msg.Attach("assessment-report.pdf", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdfData)
			return err
		}))
	}

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("发送报告邮件失败: %w", err)
	}
	logger.Info().
		Str("session_id", session.SessionID).
		Str("candidate", session.CandidateInfo.Email).
		Msg("报告邮件已发送")
	return nil
}

func invitationBody(link string) string {
	return fmt.Sprintf(`Dear Candidate,

You have been invited to participate in our Excel Skills Assessment.

This is an AI-powered voice interview that will assess your Excel knowledge and skills. The assessment includes:
- Personalized questions based on your background
- Voice-based responses (approximately 15-20 minutes)
- Immediate feedback and scoring
- Detailed assessment report

To begin your assessment, please click the link below:
%s

Instructions:
1. Ensure you have a quiet environment
2. Test your microphone and speakers
3. Use a desktop or laptop computer
4. Upload your resume when prompted
5. Complete the assessment in one session

Please complete within 7 days of receiving this invitation.

Best regards,
The Hiring Team
`, link)
}

func reportBody(session *types.Session, reportURL string) string {
	name := session.CandidateInfo.Name
	if name == "" {
		name = "Candidate"
	}

	downloadLine := "Your detailed assessment report is attached to this email."
	if reportURL != "" {
		downloadLine += fmt.Sprintf("\nYou can also download it online:\n%s", reportURL)
	}

	return fmt.Sprintf(`Dear %s,

Thank you for completing the Excel Skills Assessment.

Overall Score: %.1f/10
Performance Level: %s
Questions Answered: %d

%s

Best regards,
The Hiring Team
`, name, session.OverallScores.Overall,
		report.PerformanceLevel(session.OverallScores.Overall),
		len(session.ConversationHistory),
		downloadLine)
}
