package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TransitionLogEntry is the append-only audit record for manuscript state
// changes. Rows are never updated or deleted; the writer degrades the
// projection rather than losing the row when the schema drifts.
type TransitionLogEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ManuscriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"manuscript_id"`
	FromStatus   string    `gorm:"column:from_status;not null" json:"from_status"`
	ToStatus     string    `gorm:"column:to_status;not null" json:"to_status"`
	ChangedBy    uuid.UUID `gorm:"type:uuid;column:changed_by" json:"changed_by"`
	// ChangedByMasked is set when the writer had to anonymize the actor to
	// get the row persisted.
	ChangedByMasked bool           `gorm:"column:changed_by_masked;not null;default:false" json:"changed_by_masked"`
	Comment         string         `gorm:"column:comment;type:text" json:"comment"`
	Payload         datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (TransitionLogEntry) TableName() string { return "transition_log" }
