package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"ai-interviewer-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResume 上传简历原件，返回对象路径
	UploadResume(ctx context.Context, sessionID, fileExt string, reader io.Reader, fileSize int64, contentType string) (string, error)

	// GetResume 下载简历原件
	GetResume(ctx context.Context, objectName string) ([]byte, error)

	// UploadReport 上传面试报告PDF，返回对象路径
	UploadReport(ctx context.Context, sessionID string, pdfBytes []byte) (string, error)

	// GetReport 下载面试报告PDF
	GetReport(ctx context.Context, objectName string) ([]byte, error)

	// GetReportURL 获取报告的预签名下载链接
	GetReportURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	resumesBucket string
	reportsBucket string
	logger        *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resumesBucket := cfg.ResumesBucket
	if resumesBucket == "" {
		resumesBucket = "resumes"
	}
	reportsBucket := cfg.ReportsBucket
	if reportsBucket == "" {
		reportsBucket = "reports"
	}

	m := &MinIO{
		client:        client,
		cfg:           cfg,
		resumesBucket: resumesBucket,
		reportsBucket: reportsBucket,
		logger:        logger,
	}

	// 确保存储桶存在
	if err := m.ensureBucketExists(resumesBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历存储桶 %s 存在失败: %w", resumesBucket, err)
	}
	if err := m.ensureBucketExists(reportsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保报告存储桶 %s 存在失败: %w", reportsBucket, err)
	}

	// 设置生命周期规则
	if cfg.ResumeExpireDays > 0 || cfg.ReportExpireDays > 0 {
		if err := m.setupLifecycleRules(context.Background()); err != nil {
			m.logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	m.logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created.", bucketName)
	}
	return nil
}

// setupLifecycleRules 设置对象生命周期规则
func (m *MinIO) setupLifecycleRules(ctx context.Context) error {
	if m.cfg.ResumeExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.resumesBucket, "expire-resumes", m.cfg.ResumeExpireDays); err != nil {
			return fmt.Errorf("为简历存储桶 %s 设置生命周期失败: %w", m.resumesBucket, err)
		}
	}
	if m.cfg.ReportExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.reportsBucket, "expire-reports", m.cfg.ReportExpireDays); err != nil {
			return fmt.Errorf("为报告存储桶 %s 设置生命周期失败: %w", m.reportsBucket, err)
		}
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadResume 上传简历原件，对象按会话ID组织
func (m *MinIO) UploadResume(ctx context.Context, sessionID, fileExt string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	objectName := fmt.Sprintf("%s/resume%s", sessionID, fileExt)

	_, err := m.client.PutObject(ctx, m.resumesBucket, objectName, reader, fileSize,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传简历 %s 失败: %w", objectName, err)
	}

	return objectName, nil
}

// GetResume 下载简历原件
func (m *MinIO) GetResume(ctx context.Context, objectName string) ([]byte, error) {
	return m.downloadObject(ctx, m.resumesBucket, objectName)
}

// UploadReport 上传面试报告PDF
func (m *MinIO) UploadReport(ctx context.Context, sessionID string, pdfBytes []byte) (string, error) {
	objectName := fmt.Sprintf("%s/report.pdf", sessionID)

	_, err := m.client.PutObject(ctx, m.reportsBucket, objectName,
		bytes.NewReader(pdfBytes), int64(len(pdfBytes)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("上传报告 %s 失败: %w", objectName, err)
	}

	return objectName, nil
}

// GetReport 下载面试报告PDF
func (m *MinIO) GetReport(ctx context.Context, objectName string) ([]byte, error) {
	return m.downloadObject(ctx, m.reportsBucket, objectName)
}

// GetReportURL 获取报告的预签名下载链接
func (m *MinIO) GetReportURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.reportsBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// downloadObject 下载对象的完整内容
func (m *MinIO) downloadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 内容失败: %w", bucketName, objectName, err)
	}
	return data, nil
}
