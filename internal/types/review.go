package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	AssignmentStatusPending   = "pending"
	AssignmentStatusAccepted  = "accepted"
	AssignmentStatusDeclined  = "declined"
	AssignmentStatusCompleted = "completed"
	AssignmentStatusCancelled = "cancelled"
)

const (
	ReportStatusPending   = "pending"
	ReportStatusSubmitted = "submitted"
	ReportStatusCompleted = "completed"
	ReportStatusDone      = "done"
)

type ReviewAssignment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ManuscriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"manuscript_id"`
	ReviewerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"reviewer_id"`
	// RoundNumber equals manuscript.version at invite time.
	RoundNumber int        `gorm:"column:round_number;not null" json:"round_number"`
	Status      string     `gorm:"column:status;not null;index" json:"status"`
	DueAt       time.Time  `gorm:"column:due_at;not null" json:"due_at"`
	InvitedAt   time.Time  `gorm:"column:invited_at;not null" json:"invited_at"`
	OpenedAt    *time.Time `gorm:"column:opened_at" json:"opened_at,omitempty"`
	AcceptedAt  *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	DeclinedAt  *time.Time `gorm:"column:declined_at" json:"declined_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewAssignment) TableName() string { return "review_assignment" }

func (a *ReviewAssignment) IsTerminal() bool {
	switch a.Status {
	case AssignmentStatusCompleted, AssignmentStatusDeclined, AssignmentStatusCancelled:
		return true
	}
	return false
}

type ReviewReport struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ManuscriptID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"manuscript_id"`
	ReviewerID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"reviewer_id"`
	RoundNumber         int        `gorm:"column:round_number;not null" json:"round_number"`
	Status              string     `gorm:"column:status;not null;index" json:"status"`
	PublicComment       string     `gorm:"column:public_comment;type:text" json:"public_comment"`
	ConfidentialComment string     `gorm:"column:confidential_comment;type:text" json:"-"`
	Recommendation      string     `gorm:"column:recommendation" json:"recommendation"`
	SubmittedAt         *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ReviewReport) TableName() string { return "review_report" }

// SubmittedReportStatuses are the report states the decision workspace
// aggregates.
var SubmittedReportStatuses = []string{ReportStatusSubmitted, ReportStatusCompleted, ReportStatusDone}
