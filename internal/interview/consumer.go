package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/mailer"
	"ai-interviewer-go/internal/report"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/storage/models"
	"ai-interviewer-go/internal/types"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/datatypes"
)

// reportURLExpiry 报告预签名链接的有效期，与MinIO预签名上限一致
const reportURLExpiry = 7 * 24 * time.Hour

// CompletionConsumer 消费面试完成事件：渲染报告、上传对象存储、
// 归档到MySQL并给候选人发报告邮件。各步骤独立降级，单步失败
// 不阻断其余步骤。
type CompletionConsumer struct {
	cfg      *config.RabbitMQConfig
	sessions storage.SessionStore
	queue    storage.MessageQueue
	objects  storage.ObjectStorage
	db       *storage.MySQL
	reports  *report.Generator
	mail     *mailer.Mailer

	retryInterval time.Duration
	maxRetries    int
	workers       int
}

// NewCompletionConsumer 创建完成事件消费者。objects、db和mail允许为nil。
func NewCompletionConsumer(
	cfg *config.RabbitMQConfig,
	sessions storage.SessionStore,
	queue storage.MessageQueue,
	objects storage.ObjectStorage,
	db *storage.MySQL,
	reports *report.Generator,
	mail *mailer.Mailer,
) *CompletionConsumer {
	workers := cfg.ConsumerWorkers
	if workers <= 0 {
		workers = 2
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &CompletionConsumer{
		cfg:           cfg,
		sessions:      sessions,
		queue:         queue,
		objects:       objects,
		db:            db,
		reports:       reports,
		mail:          mail,
		retryInterval: config.GetDuration(cfg.RetryInterval, 5*time.Second),
		maxRetries:    maxRetries,
		workers:       workers,
	}
}

// Start 声明拓扑并启动消费工作协程
func (c *CompletionConsumer) Start(ctx context.Context) error {
	if c.queue == nil {
		return fmt.Errorf("消息队列不可用")
	}

	if err := c.queue.EnsureExchange(c.cfg.InterviewEventsExchange, "direct", true); err != nil {
		return fmt.Errorf("声明交换机失败: %w", err)
	}
	if err := c.queue.EnsureQueue(c.cfg.CompletedQueue, true); err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}
	if err := c.queue.BindQueue(c.cfg.CompletedQueue, c.cfg.InterviewEventsExchange, c.cfg.CompletedRoutingKey); err != nil {
		return fmt.Errorf("绑定队列失败: %w", err)
	}

	deliveries, err := c.queue.Consume(c.cfg.CompletedQueue, "completion-consumer", c.cfg.PrefetchCount)
	if err != nil {
		return fmt.Errorf("注册消费者失败: %w", err)
	}

	logger.Info().
		Str("queue", c.cfg.CompletedQueue).
		Int("workers", c.workers).
		Msg("面试完成消费者已启动")

	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, deliveries)
	}
	return nil
}

func (c *CompletionConsumer) worker(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, &d)
		}
	}
}

func (c *CompletionConsumer) handleDelivery(ctx context.Context, d *amqp.Delivery) {
	var msg storage.InterviewCompletedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Error().Err(err).Msg("解析面试完成消息失败, 丢弃")
		_ = d.Ack(false)
		return
	}

	if err := c.Process(ctx, &msg); err != nil {
		logger.Error().Err(err).
			Str("session_id", msg.SessionID).
			Int("attempt", msg.Attempt).
			Msg("处理面试完成事件失败")

		if msg.Attempt < c.maxRetries {
			c.requeue(ctx, &msg)
		} else {
			logger.Error().Str("session_id", msg.SessionID).Msg("重试次数耗尽, 放弃该事件")
		}
		_ = d.Ack(false)
		return
	}
	_ = d.Ack(false)
}

// requeue 以递增的尝试次数重新发布，留出退避间隔
func (c *CompletionConsumer) requeue(ctx context.Context, msg *storage.InterviewCompletedMessage) {
	select {
	case <-time.After(c.retryInterval):
	case <-ctx.Done():
		return
	}

	retry := *msg
	retry.Attempt++
	if err := c.queue.PublishJSON(ctx, c.cfg.InterviewEventsExchange, c.cfg.CompletedRoutingKey, &retry, true); err != nil {
		logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("重新入队失败")
	}
}

// Process 执行完整的收尾流水线。会话缺失返回错误触发重试，
// 报告/上传/邮件任一失败只记日志并继续。
func (c *CompletionConsumer) Process(ctx context.Context, msg *storage.InterviewCompletedMessage) error {
	session, err := c.sessions.GetSession(ctx, msg.SessionID)
	if err != nil {
		return fmt.Errorf("加载会话失败: %w", err)
	}

	pdfData, err := c.reports.Generate(session)
	if err != nil {
		logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("生成报告PDF失败")
		pdfData = nil
	}

	var reportPath, reportURL string
	if c.objects != nil && len(pdfData) > 0 {
		reportPath, err = c.objects.UploadReport(ctx, msg.SessionID, pdfData)
		if err != nil {
			logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("上传报告到对象存储失败")
			reportPath = ""
		}
	}
	if reportPath != "" {
		reportURL, err = c.objects.GetReportURL(ctx, reportPath, reportURLExpiry)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("生成报告下载链接失败")
			reportURL = ""
		}
	}

	var emailSentAt *time.Time
	if c.mail != nil && c.mail.Enabled() && session.CandidateInfo.Email != "" {
		if err := c.mail.SendReport(session, pdfData, reportURL); err != nil {
			logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("发送报告邮件失败")
		} else {
			now := time.Now()
			emailSentAt = &now
		}
	}

	if c.db != nil {
		if err := c.archive(ctx, session, reportPath, msg.CompletedAt, emailSentAt); err != nil {
			logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("归档面试记录失败")
		}
	}

	logger.Info().
		Str("session_id", msg.SessionID).
		Bool("report_uploaded", reportPath != "").
		Bool("email_sent", emailSentAt != nil).
		Msg("面试收尾流水线完成")
	return nil
}

func (c *CompletionConsumer) archive(ctx context.Context, session *types.Session, reportPath string, completedAt time.Time, emailSentAt *time.Time) error {
	scoresJSON, err := json.Marshal(session.OverallScores)
	if err != nil {
		return fmt.Errorf("序列化评分失败: %w", err)
	}
	historyJSON, err := json.Marshal(session.ConversationHistory)
	if err != nil {
		return fmt.Errorf("序列化历史失败: %w", err)
	}

	if completedAt.IsZero() {
		completedAt = session.LastActivity
	}

	return c.db.UpsertInterviewArchive(ctx, &models.InterviewArchive{
		SessionID:       session.SessionID,
		CandidateName:   session.CandidateInfo.Name,
		CandidateEmail:  session.CandidateInfo.Email,
		ExperienceLevel: string(session.CandidateInfo.ExperienceLevel),
		QuestionCount:   session.QuestionCount,
		OverallScore:    session.OverallScores.Overall,
		ScoresJSON:      datatypes.JSON(scoresJSON),
		HistoryJSON:     datatypes.JSON(historyJSON),
		ReportPathOSS:   reportPath,
		StartedAt:       session.StartTime,
		CompletedAt:     completedAt,
		EmailSentAt:     emailSentAt,
	})
}
