package models

import (
	"time"

	"gorm.io/datatypes"
)

// HRUser HR账号表
type HRUser struct {
	UserID       string    `gorm:"type:char(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_hr_users_email_unique"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	DisplayName  string    `gorm:"type:varchar(255)"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (HRUser) TableName() string {
	return "hr_users"
}

// InvitationRecord 面试邀请记录表
type InvitationRecord struct {
	InvitationID   string     `gorm:"type:char(36);primaryKey"`
	CandidateEmail string     `gorm:"type:varchar(255);not null;index:idx_inv_candidate_email"`
	CandidateName  string     `gorm:"type:varchar(255)"`
	Position       string     `gorm:"type:varchar(255)"`
	// Token 邀请链接中的一次性令牌
	Token     string     `gorm:"type:char(36);not null;uniqueIndex:idx_inv_token_unique"`
	Status    string     `gorm:"type:varchar(50);default:'SENT';index:idx_inv_status"`
	SentByID  string     `gorm:"type:char(36);index:idx_inv_sent_by"`
	SentAt    time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UsedAt    *time.Time `gorm:"type:datetime(6)"`
	ExpiresAt time.Time  `gorm:"type:datetime(6);index:idx_inv_expires_at"`
	CreatedAt time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (InvitationRecord) TableName() string {
	return "invitation_records"
}

// 邀请状态常量
const (
	InvitationStatusSent    = "SENT"
	InvitationStatusUsed    = "USED"
	InvitationStatusExpired = "EXPIRED"
)

// InterviewArchive 面试归档表，面试结束后由消费者写入
type InterviewArchive struct {
	SessionID       string         `gorm:"type:char(36);primaryKey"`
	CandidateName   string         `gorm:"type:varchar(255)"`
	CandidateEmail  string         `gorm:"type:varchar(255);index:idx_archive_candidate_email"`
	ExperienceLevel string         `gorm:"type:varchar(50)"`
	QuestionCount   int            `gorm:"type:int"`
	OverallScore    float64        `gorm:"type:float;index:idx_archive_overall_score"`
	// ScoresJSON 四个维度的均值快照
	ScoresJSON datatypes.JSON `gorm:"type:json"`
	// HistoryJSON 完整的问答与评分历史
	HistoryJSON datatypes.JSON `gorm:"type:json"`
	// ReportPathOSS 报告PDF在对象存储中的路径
	ReportPathOSS string     `gorm:"type:varchar(1024)"`
	StartedAt     time.Time  `gorm:"type:datetime(6)"`
	CompletedAt   time.Time  `gorm:"type:datetime(6);index:idx_archive_completed_at"`
	EmailSentAt   *time.Time `gorm:"type:datetime(6)"`
	CreatedAt     time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (InterviewArchive) TableName() string {
	return "interview_archives"
}
