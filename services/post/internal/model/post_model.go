package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostModel struct {
	ID         string          `gorm:"type:uuid;primary_key" json:"id"`
	Caption    string          `gorm:"type:text;not null" json:"caption"`
	ImageURL   *string         `gorm:"type:varchar(500)" json:"image_url"`
	Budget     *float64        `gorm:"type:numeric(14,2)" json:"budget"`
	StartDate  time.Time       `gorm:"not null" json:"start_date"`
	EndDate    time.Time       `gorm:"not null" json:"end_date"`
	Status     string          `gorm:"type:varchar(20);not null;default:'PENDING_APPROVAL';index" json:"status"`
	ProgramID  *string         `gorm:"type:uuid;index" json:"program_id"`
	CampaignID *string         `gorm:"type:uuid;index" json:"campaign_id"`
	CreatedBy  string          `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Approvals  []ApprovalModel `gorm:"foreignKey:PostID" json:"approvals,omitempty"`
}

func (PostModel) TableName() string {
	return "posts"
}

func (p *PostModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type ApprovalModel struct {
	ID         string     `gorm:"type:uuid;primary_key" json:"id"`
	PostID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_post_approvals_post_order;uniqueIndex:idx_post_approvals_post_approver" json:"post_id"`
	ApproverID string     `gorm:"type:uuid;not null;index;uniqueIndex:idx_post_approvals_post_approver" json:"approver_id"`
	Order      int        `gorm:"column:order;not null;uniqueIndex:idx_post_approvals_post_order" json:"order"`
	Status     string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Comment    *string    `gorm:"type:text" json:"comment"`
	DecidedAt  *time.Time `json:"decided_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (ApprovalModel) TableName() string {
	return "post_approvals"
}

func (a *ApprovalModel) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// UserModel is the read-only slice of users the workflow needs.
type UserModel struct {
	ID   string `gorm:"type:uuid;primary_key"`
	Name string
	Role string
}

func (UserModel) TableName() string {
	return "users"
}
