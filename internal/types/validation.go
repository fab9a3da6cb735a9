package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ValidationRunStatusRunning = "running"
	ValidationRunStatusPassed  = "passed"
	ValidationRunStatusFailed  = "failed"
	ValidationRunStatusBlocked = "blocked"
)

const (
	CheckStatusPassed  = "passed"
	CheckStatusFailed  = "failed"
	CheckStatusSkipped = "skipped"
	CheckStatusBlocked = "blocked"
)

const (
	CheckPhaseReadiness  = "readiness"
	CheckPhaseRegression = "regression"
	CheckPhaseRollback   = "rollback"
)

const (
	ReleaseDecisionGo   = "go"
	ReleaseDecisionNoGo = "no_go"
)

type ValidationRun struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Environment string    `gorm:"column:environment;not null;index" json:"environment"`
	Status      string    `gorm:"column:status;not null;index" json:"status"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by"`

	BlockingFailures int `gorm:"column:blocking_failures;not null;default:0" json:"blocking_failures"`
	FailedCount      int `gorm:"column:failed_count;not null;default:0" json:"failed_count"`
	SkippedCount     int `gorm:"column:skipped_count;not null;default:0" json:"skipped_count"`

	ReadinessStatus  string `gorm:"column:readiness_status" json:"readiness_status"`
	RegressionStatus string `gorm:"column:regression_status" json:"regression_status"`

	ForceNoGo        bool           `gorm:"column:force_no_go;not null;default:false" json:"force_no_go"`
	ReleaseDecision  string         `gorm:"column:release_decision" json:"release_decision"`
	RollbackRequired bool           `gorm:"column:rollback_required;not null;default:false" json:"rollback_required"`
	RollbackStatus   string         `gorm:"column:rollback_status" json:"rollback_status"`
	RollbackPlan     datatypes.JSON `gorm:"type:jsonb;column:rollback_plan" json:"rollback_plan"`

	FinalizedAt *time.Time `gorm:"column:finalized_at" json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ValidationRun) TableName() string { return "validation_run" }

type ValidationCheck struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`
	Phase      string    `gorm:"column:phase;not null;index" json:"phase"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Status     string    `gorm:"column:status;not null" json:"status"`
	IsBlocking bool      `gorm:"column:is_blocking;not null;default:false" json:"is_blocking"`
	Evidence   string    `gorm:"column:evidence;type:text" json:"evidence"`
	Seq        int       `gorm:"column:seq;not null" json:"seq"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ValidationCheck) TableName() string { return "validation_check" }
