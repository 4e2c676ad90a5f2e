package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-interviewer-go/internal/agent"
	"ai-interviewer-go/internal/api/handler"
	"ai-interviewer-go/internal/api/router"
	"ai-interviewer-go/internal/api/ws"
	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/interview"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/mailer"
	"ai-interviewer-go/internal/parser"
	"ai-interviewer-go/internal/report"
	"ai-interviewer-go/internal/speech"
	"ai-interviewer-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径")
	pflag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}
	initLogger(cfg)

	// 2. 初始化存储管理器（各组件可降级）
	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 3. 初始化语音组件
	tts := speech.NewElevenLabsTTS(&cfg.ElevenLabs)
	var stt speech.Transcriber
	if s, err := speech.NewGeminiSTT(&cfg.Gemini); err != nil {
		logger.Warn().Err(err).Msg("语音转写不可用, 仅支持文字作答")
	} else {
		stt = s
	}

	// 4. 初始化面试官（LLM缺失时评分走关键词兜底）
	interviewer := initInterviewer(cfg)

	// 5. 简历解析器
	textExtractor, err := parser.NewDocumentTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历解析器失败")
	}
	resumeExtractor := parser.NewResumeExtractor(textExtractor)

	// 6. 邮件与报告
	mail := mailer.NewMailer(&cfg.SMTP, cfg.Server.FrontendURL)
	reports := report.NewGenerator()

	// 7. 面试编排器
	manager := interview.NewManager(
		storageManager.Sessions,
		completionPublisher(storageManager),
		interviewer,
		tts,
		stt,
		&cfg.Interview,
	)

	// 8. 面试收尾消费者
	if storageManager.RabbitMQ != nil {
		consumer := interview.NewCompletionConsumer(
			&cfg.RabbitMQ,
			storageManager.Sessions,
			storageManager.RabbitMQ,
			objectStorage(storageManager),
			storageManager.MySQL,
			reports,
			mail,
		)
		if err := consumer.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("启动面试收尾消费者失败")
		}
	} else {
		logger.Warn().Msg("RabbitMQ不可用, 报告归档与邮件流水线停用")
	}

	// 9. HTTP服务器与路由
	tokens := handler.NewTokenStore(handler.TokenTTL)
	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(constants.MaxResumeFileSize+1024*1024),
	)
	router.RegisterRoutes(
		h,
		tokens,
		handler.NewAuthHandler(hrAccounts(storageManager), &cfg.HR, tokens),
		handler.NewInvitationHandler(invitationStore(storageManager), mail),
		handler.NewInterviewHandler(storageManager, resumeExtractor, reports, manager),
		ws.NewHandler(manager),
	)

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()
	logger.Info().Str("address", cfg.Server.Address).Msg("面试服务已启动")

	// 10. 等待终止信号后优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号, 正在优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.Logger = logger.Logger.With().
		Str("app", "ai-interviewer-go").
		Logger()
	// hertz自身的日志也走zerolog
	hlog.SetLogger(hertzadapter.From(logger.Logger))
}

func initInterviewer(cfg *config.Config) *agent.Interviewer {
	if cfg.Gemini.APIKey == "" {
		logger.Warn().Msg("未配置Gemini API密钥, 评分使用关键词兜底")
		return agent.NewInterviewerFromConfig(nil, &cfg.Evaluator)
	}

	chatModel, err := agent.NewGeminiChatModel(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.APIURL)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化LLM模型失败, 评分使用关键词兜底")
		return agent.NewInterviewerFromConfig(nil, &cfg.Evaluator)
	}
	return agent.NewInterviewerFromConfig(chatModel, &cfg.Evaluator)
}

// completionPublisher 避免把nil指针包进接口
func completionPublisher(s *storage.Storage) interview.CompletionPublisher {
	if s.RabbitMQ == nil {
		return nil
	}
	return s.RabbitMQ
}

func objectStorage(s *storage.Storage) storage.ObjectStorage {
	if s.MinIO == nil {
		return nil
	}
	return s.MinIO
}

func hrAccounts(s *storage.Storage) handler.HRAccountStore {
	if s.MySQL == nil {
		return nil
	}
	return s.MySQL
}

func invitationStore(s *storage.Storage) handler.InvitationStore {
	if s.MySQL == nil {
		return nil
	}
	return s.MySQL
}
