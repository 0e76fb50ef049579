package entity

import "time"

type PostStatus string

const (
	StatusPendingApproval PostStatus = "PENDING_APPROVAL"
	StatusApproved        PostStatus = "APPROVED"
	StatusRejected        PostStatus = "REJECTED"
	StatusPublished       PostStatus = "PUBLISHED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type Post struct {
	ID         string     `json:"id"`
	Caption    string     `json:"caption"`
	ImageURL   *string    `json:"image_url,omitempty"`
	Budget     *float64   `json:"budget,omitempty"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	Status     PostStatus `json:"status"`
	ProgramID  *string    `json:"program_id,omitempty"`
	CampaignID *string    `json:"campaign_id,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Approvals  []Approval `json:"approvals"`
}

type Approval struct {
	ID         string         `json:"id"`
	PostID     string         `json:"post_id"`
	ApproverID string         `json:"approver_id"`
	Order      int            `json:"order"`
	Status     ApprovalStatus `json:"status"`
	Comment    *string        `json:"comment,omitempty"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ApprovalFor returns the approval belonging to userID, or nil.
func (p *Post) ApprovalFor(userID string) *Approval {
	for i := range p.Approvals {
		if p.Approvals[i].ApproverID == userID {
			return &p.Approvals[i]
		}
	}
	return nil
}

// IsEditable reports whether the creator may still change the post content.
func (p *Post) IsEditable() bool {
	return p.Status != StatusApproved && p.Status != StatusPublished
}

func (p *Post) IsDeletable() bool {
	return p.Status != StatusPublished
}
