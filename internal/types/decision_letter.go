package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LetterStatusDraft = "draft"
	LetterStatusFinal = "final"
)

const (
	DecisionAccept        = "accept"
	DecisionReject        = "reject"
	DecisionMajorRevision = "major_revision"
	DecisionMinorRevision = "minor_revision"
)

type DecisionLetter struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ManuscriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"manuscript_id"`
	EditorID     uuid.UUID `gorm:"type:uuid;not null;index" json:"editor_id"`
	Status       string    `gorm:"column:status;not null;index" json:"status"`
	Decision     string    `gorm:"column:decision" json:"decision"`
	Content      string    `gorm:"column:content;type:text" json:"content"`
	// AttachmentPaths holds ordered "{attachment_id}|{object_path}" refs.
	// Legacy rows may carry bare object paths.
	AttachmentPaths datatypes.JSON `gorm:"type:jsonb;column:attachment_paths" json:"attachment_paths"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	// UpdatedAt doubles as the optimistic-lock token, compared at
	// millisecond precision.
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DecisionLetter) TableName() string { return "decision_letter" }

func ValidDecision(d string) bool {
	switch d {
	case DecisionAccept, DecisionReject, DecisionMajorRevision, DecisionMinorRevision:
		return true
	}
	return false
}
