package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/observability"
	"github.com/lumenpress/editorial-core/internal/platform/apierr"
	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/types"
)

// legalEdges whitelists the (from → to) transitions permitted without
// allow_skip, one entry per workflow phase.
var legalEdges = map[string][]string{
	types.ManuscriptStatusPreCheck: {
		types.ManuscriptStatusUnderReview,
		types.ManuscriptStatusRejected,
	},
	types.ManuscriptStatusUnderReview: {
		types.ManuscriptStatusPreCheck,
		types.ManuscriptStatusResubmitted,
		types.ManuscriptStatusDecision,
		types.ManuscriptStatusMajorRevision,
		types.ManuscriptStatusMinorRevision,
	},
	types.ManuscriptStatusResubmitted: {
		types.ManuscriptStatusUnderReview,
		types.ManuscriptStatusDecision,
	},
	types.ManuscriptStatusDecision: {
		types.ManuscriptStatusDecisionDone,
		types.ManuscriptStatusMajorRevision,
		types.ManuscriptStatusMinorRevision,
	},
	types.ManuscriptStatusDecisionDone: {
		types.ManuscriptStatusApproved,
		types.ManuscriptStatusRejected,
		types.ManuscriptStatusMajorRevision,
		types.ManuscriptStatusMinorRevision,
	},
	types.ManuscriptStatusMajorRevision: {
		types.ManuscriptStatusResubmitted,
	},
	types.ManuscriptStatusMinorRevision: {
		types.ManuscriptStatusResubmitted,
	},
	types.ManuscriptStatusApproved: {
		types.ManuscriptStatusLayout,
	},
	types.ManuscriptStatusLayout: {
		types.ManuscriptStatusEnglishEditing,
	},
	types.ManuscriptStatusEnglishEditing: {
		types.ManuscriptStatusProofreading,
	},
	types.ManuscriptStatusProofreading: {
		types.ManuscriptStatusPublished,
	},
}

var preCheckOrder = map[string]string{
	types.PreCheckStageIntake:    types.PreCheckStageTechnical,
	types.PreCheckStageTechnical: types.PreCheckStageAcademic,
}

func edgeAllowed(from, to string) bool {
	for _, t := range legalEdges[from] {
		if t == to {
			return true
		}
	}
	return false
}

type TransitionInput struct {
	ManuscriptID uuid.UUID
	ToStatus     string
	ChangedBy    uuid.UUID
	Comment      string
	// AllowSkip bypasses the edge whitelist; reserved for internal
	// backfills and admin repair.
	AllowSkip bool
	// ExtraUpdates are applied in the same write as the status change.
	ExtraUpdates map[string]any
	AuditPayload map[string]any
}

// StateMachineService owns manuscript status and pre-check sub-stage
// transitions. It is the only writer of manuscript.status.
type StateMachineService interface {
	Transition(dbc dbctx.Context, in TransitionInput) (*types.Manuscript, error)
	AdvancePreCheck(dbc dbctx.Context, manuscriptID uuid.UUID, toStage string, changedBy uuid.UUID, comment string) (*types.Manuscript, error)
}

type stateMachineService struct {
	log         *logger.Logger
	manuscripts repos.ManuscriptRepo
	audit       AuditService
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewStateMachineService(baseLog *logger.Logger, manuscripts repos.ManuscriptRepo, audit AuditService, metrics *observability.Metrics) StateMachineService {
	return &stateMachineService{
		log:         baseLog.With("service", "StateMachineService"),
		manuscripts: manuscripts,
		audit:       audit,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *stateMachineService) Transition(dbc dbctx.Context, in TransitionInput) (*types.Manuscript, error) {
	if in.ManuscriptID == uuid.Nil {
		return nil, apierr.Validation("missing_manuscript_id", "missing manuscript id")
	}
	if !validManuscriptStatus(in.ToStatus) {
		return nil, apierr.Validation("invalid_status", "unknown status %q", in.ToStatus)
	}

	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, in.ManuscriptID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotFound("manuscript_not_found", "manuscript %s not found", in.ManuscriptID)
	}

	from := m.Status
	if in.ToStatus == from {
		// Retry-safe callers hit this path; no duplicate audit row.
		return m, nil
	}
	if !in.AllowSkip && !edgeAllowed(from, in.ToStatus) {
		return nil, apierr.Conflict("illegal_transition", "illegal transition %s -> %s for manuscript %s", from, in.ToStatus, in.ManuscriptID)
	}

	updates := map[string]any{
		"status":     in.ToStatus,
		"updated_at": s.now().UTC(),
	}
	for k, v := range in.ExtraUpdates {
		updates[k] = v
	}
	// Invariant: pre_check_status is non-null only while status=pre_check.
	if in.ToStatus != types.ManuscriptStatusPreCheck {
		updates["pre_check_status"] = nil
	} else if _, ok := updates["pre_check_status"]; !ok {
		updates["pre_check_status"] = types.PreCheckStageAcademic
	}

	affected, err := s.manuscripts.UpdateWhere(dbc.Ctx, dbc.Tx, m.ID, from, nil, updates)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// A concurrent writer moved the row first; re-read and report.
		current, rerr := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, m.ID)
		if rerr == nil && current != nil {
			return nil, apierr.Conflict("transition_race", "manuscript %s moved to %s while transitioning %s -> %s", m.ID, current.Status, from, in.ToStatus)
		}
		return nil, apierr.Conflict("transition_race", "manuscript %s changed concurrently during %s -> %s", m.ID, from, in.ToStatus)
	}

	updated, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, m.ID)
	if err != nil || updated == nil {
		// The write committed; fall back to a local projection.
		updated = m
		updated.Status = in.ToStatus
		if in.ToStatus != types.ManuscriptStatusPreCheck {
			updated.PreCheckStatus = nil
		}
	}

	payload := map[string]any{
		"action": AuditActionTransition,
		"before": map[string]any{"status": from, "pre_check_status": m.PreCheckStatus},
		"after":  map[string]any{"status": updated.Status, "pre_check_status": updated.PreCheckStatus},
	}
	for k, v := range in.AuditPayload {
		payload[k] = v
	}
	s.audit.RecordTransition(dbc, AuditEvent{
		ManuscriptID: m.ID,
		FromStatus:   from,
		ToStatus:     in.ToStatus,
		ChangedBy:    in.ChangedBy,
		Comment:      in.Comment,
		Payload:      payload,
	})
	s.metrics.Transition(dbc.Ctx, from, in.ToStatus)

	return updated, nil
}

func (s *stateMachineService) AdvancePreCheck(dbc dbctx.Context, manuscriptID uuid.UUID, toStage string, changedBy uuid.UUID, comment string) (*types.Manuscript, error) {
	if toStage != types.PreCheckStageTechnical && toStage != types.PreCheckStageAcademic {
		return nil, apierr.Validation("invalid_pre_check_stage", "unknown pre-check stage %q", toStage)
	}
	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, manuscriptID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotFound("manuscript_not_found", "manuscript %s not found", manuscriptID)
	}
	if m.Status != types.ManuscriptStatusPreCheck || m.PreCheckStatus == nil {
		return nil, apierr.Conflict("not_in_pre_check", "manuscript %s is %s, not in pre-check", manuscriptID, m.Status)
	}
	from := *m.PreCheckStatus
	if from == toStage {
		return m, nil
	}
	if preCheckOrder[from] != toStage {
		return nil, apierr.Conflict("illegal_pre_check_advance", "illegal pre-check advance %s -> %s", from, toStage)
	}

	affected, err := s.manuscripts.UpdateWhere(dbc.Ctx, dbc.Tx, m.ID, types.ManuscriptStatusPreCheck, &from, map[string]any{
		"pre_check_status": toStage,
		"updated_at":       s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.Conflict("pre_check_race", "manuscript %s pre-check stage changed concurrently", m.ID)
	}

	s.audit.RecordAction(dbc, AuditActionPreCheckAdvance, AuditEvent{
		ManuscriptID: m.ID,
		FromStatus:   types.ManuscriptStatusPreCheck,
		ToStatus:     types.ManuscriptStatusPreCheck,
		ChangedBy:    changedBy,
		Comment:      comment,
		Payload: map[string]any{
			"before": map[string]any{"pre_check_status": from},
			"after":  map[string]any{"pre_check_status": toStage},
		},
	})

	stage := toStage
	m.PreCheckStatus = &stage
	return m, nil
}

func validManuscriptStatus(status string) bool {
	if _, ok := legalEdges[status]; ok {
		return true
	}
	return status == types.ManuscriptStatusPublished || status == types.ManuscriptStatusRejected
}
