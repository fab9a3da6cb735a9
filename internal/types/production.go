package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CycleStatusDraft                = "draft"
	CycleStatusInLayoutRevision     = "in_layout_revision"
	CycleStatusAwaitingAuthor       = "awaiting_author"
	CycleStatusAuthorConfirmed      = "author_confirmed"
	CycleStatusCorrectionsSubmitted = "author_corrections_submitted"
	CycleStatusApprovedForPublish   = "approved_for_publish"
	CycleStatusCancelled            = "cancelled"
)

const (
	ProofDecisionConfirmClean      = "confirm_clean"
	ProofDecisionSubmitCorrections = "submit_corrections"
)

type ProductionCycle struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ManuscriptID   uuid.UUID `gorm:"type:uuid;not null;index" json:"manuscript_id"`
	CycleNo        int       `gorm:"column:cycle_no;not null" json:"cycle_no"`
	Status         string    `gorm:"column:status;not null;index" json:"status"`
	LayoutEditorID uuid.UUID `gorm:"type:uuid;not null;index" json:"layout_editor_id"`
	// CollaboratorEditorIDs is a JSON array of uuid strings.
	CollaboratorEditorIDs datatypes.JSON `gorm:"type:jsonb;column:collaborator_editor_ids" json:"collaborator_editor_ids"`
	ProofreaderAuthorID   uuid.UUID      `gorm:"type:uuid;not null" json:"proofreader_author_id"`
	GalleyPath            string         `gorm:"column:galley_path" json:"galley_path"`
	GalleyUploadedAt      *time.Time     `gorm:"column:galley_uploaded_at" json:"galley_uploaded_at,omitempty"`
	ProofDueAt            time.Time      `gorm:"column:proof_due_at;not null" json:"proof_due_at"`
	ApprovedBy            *uuid.UUID     `gorm:"type:uuid;column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt            *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	CreatedAt             time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProductionCycle) TableName() string { return "production_cycle" }

func (c *ProductionCycle) IsTerminal() bool {
	return c.Status == CycleStatusApprovedForPublish || c.Status == CycleStatusCancelled
}

type ProofreadingResponse struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductionCycleID uuid.UUID `gorm:"type:uuid;not null;index" json:"production_cycle_id"`
	AuthorID          uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Decision          string    `gorm:"column:decision;not null" json:"decision"`
	Note              string    `gorm:"column:note;type:text" json:"note"`
	SubmittedAt       time.Time `gorm:"column:submitted_at;not null" json:"submitted_at"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ProofreadingResponse) TableName() string { return "proofreading_response" }

type CorrectionItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ResponseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"response_id"`
	Seq           int       `gorm:"column:seq;not null" json:"seq"`
	LineRef       string    `gorm:"column:line_ref" json:"line_ref"`
	OriginalText  string    `gorm:"column:original_text;type:text" json:"original_text"`
	SuggestedText string    `gorm:"column:suggested_text;type:text" json:"suggested_text"`
	Reason        string    `gorm:"column:reason;type:text" json:"reason"`
}

func (CorrectionItem) TableName() string { return "correction_item" }
