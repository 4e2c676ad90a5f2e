package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/storage/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 使用 GORM 的 AutoMigrate 功能自动迁移表结构
	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	// 迁移期间关闭SQL日志打印
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})

	err := silentDB.AutoMigrate(
		&models.HRUser{},
		&models.InvitationRecord{},
		&models.InterviewArchive{},
	)
	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetHRUserByEmail 按邮箱查询HR账号
func (m *MySQL) GetHRUserByEmail(ctx context.Context, email string) (*models.HRUser, error) {
	var user models.HRUser
	err := m.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateHRUser 创建HR账号
func (m *MySQL) CreateHRUser(ctx context.Context, user *models.HRUser) error {
	return m.db.WithContext(ctx).Create(user).Error
}

// CreateInvitation 写入邀请记录
func (m *MySQL) CreateInvitation(ctx context.Context, inv *models.InvitationRecord) error {
	return m.db.WithContext(ctx).Create(inv).Error
}

// GetInvitationByToken 按令牌查询邀请记录
func (m *MySQL) GetInvitationByToken(ctx context.Context, token string) (*models.InvitationRecord, error) {
	var inv models.InvitationRecord
	err := m.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkInvitationUsed 将邀请标记为已使用，仅在仍处于SENT状态时生效
func (m *MySQL) MarkInvitationUsed(ctx context.Context, token string) error {
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.InvitationRecord{}).
		Where("token = ? AND status = ?", token, models.InvitationStatusSent).
		Updates(map[string]interface{}{
			"status":  models.InvitationStatusUsed,
			"used_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("邀请令牌无效或已使用")
	}
	return nil
}

// ListInvitationsByHR 按HR查询其发出的邀请，按发送时间倒序
func (m *MySQL) ListInvitationsByHR(ctx context.Context, hrUserID string, limit int) ([]models.InvitationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var invitations []models.InvitationRecord
	err := m.db.WithContext(ctx).
		Where("sent_by_id = ?", hrUserID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&invitations).Error
	return invitations, err
}

// UpsertInterviewArchive 写入或更新面试归档，消费者重试时幂等
func (m *MySQL) UpsertInterviewArchive(ctx context.Context, archive *models.InterviewArchive) error {
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"question_count", "overall_score", "scores_json", "history_json",
			"report_path_oss", "completed_at", "email_sent_at", "updated_at",
		}),
	}).Create(archive).Error
}

// GetInterviewArchive 按会话ID查询归档
func (m *MySQL) GetInterviewArchive(ctx context.Context, sessionID string) (*models.InterviewArchive, error) {
	var archive models.InterviewArchive
	err := m.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&archive).Error
	if err != nil {
		return nil, err
	}
	return &archive, nil
}

// ListInterviewArchives 分页查询归档，按完成时间倒序
func (m *MySQL) ListInterviewArchives(ctx context.Context, offset, limit int) ([]models.InterviewArchive, int64, error) {
	if limit <= 0 {
		limit = 20
	}

	var total int64
	if err := m.db.WithContext(ctx).Model(&models.InterviewArchive{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var archives []models.InterviewArchive
	err := m.db.WithContext(ctx).
		Order("completed_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&archives).Error
	return archives, total, err
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
