package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ManuscriptStatusPreCheck       = "pre_check"
	ManuscriptStatusUnderReview    = "under_review"
	ManuscriptStatusResubmitted    = "resubmitted"
	ManuscriptStatusDecision       = "decision"
	ManuscriptStatusDecisionDone   = "decision_done"
	ManuscriptStatusMajorRevision  = "major_revision"
	ManuscriptStatusMinorRevision  = "minor_revision"
	ManuscriptStatusApproved       = "approved"
	ManuscriptStatusRejected       = "rejected"
	ManuscriptStatusLayout         = "layout"
	ManuscriptStatusEnglishEditing = "english_editing"
	ManuscriptStatusProofreading   = "proofreading"
	ManuscriptStatusPublished      = "published"
)

const (
	PreCheckStageIntake    = "intake"
	PreCheckStageTechnical = "technical"
	PreCheckStageAcademic  = "academic"
)

type Manuscript struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JournalID         uuid.UUID `gorm:"type:uuid;not null;index" json:"journal_id"`
	AuthorID          uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	OwnerID           uuid.UUID `gorm:"type:uuid;index" json:"owner_id"`
	EditorID          uuid.UUID `gorm:"type:uuid;index" json:"editor_id"`
	AssistantEditorID uuid.UUID `gorm:"type:uuid;index" json:"assistant_editor_id"`
	Title             string    `gorm:"column:title;not null" json:"title"`
	Status            string    `gorm:"column:status;not null;index" json:"status"`
	// PreCheckStatus is non-null only while Status is pre_check:
	// intake|technical|academic.
	PreCheckStatus *string   `gorm:"column:pre_check_status;index" json:"pre_check_status,omitempty"`
	Version        int       `gorm:"column:version;not null;default:1" json:"version"`
	FinalPDFPath   string    `gorm:"column:final_pdf_path" json:"final_pdf_path"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Manuscript) TableName() string { return "manuscript" }

// ManuscriptTerminalStatuses are archival: rows are never deleted.
var ManuscriptTerminalStatuses = []string{ManuscriptStatusPublished, ManuscriptStatusRejected}

// PostAcceptanceStatuses are the stages a manuscript passes through between
// acceptance and publication.
var PostAcceptanceStatuses = []string{
	ManuscriptStatusApproved,
	ManuscriptStatusLayout,
	ManuscriptStatusEnglishEditing,
	ManuscriptStatusProofreading,
}
