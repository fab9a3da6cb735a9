package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/observability"
	"github.com/lumenpress/editorial-core/internal/platform/apierr"
	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/types"
)

type AssignInput struct {
	ManuscriptID     uuid.UUID
	ReviewerID       uuid.UUID
	OverrideCooldown bool
	OverrideReason   string
	Actor            *requestdata.RequestData
}

type AssignResult struct {
	Assignment *types.ReviewAssignment `json:"assignment"`
	Message    string                  `json:"message,omitempty"`
	Policy     PolicyResult            `json:"policy"`
}

// AssignmentService creates and cancels review assignments and advances the
// manuscript when a round completes.
type AssignmentService interface {
	Assign(dbc dbctx.Context, in AssignInput) (*AssignResult, error)
	Unassign(dbc dbctx.Context, assignmentID uuid.UUID, actor *requestdata.RequestData) error
	// CompleteFromReport marks the reviewer's assignment completed after a
	// review submission and advances the manuscript to decision when no
	// pending assignments remain.
	CompleteFromReport(dbc dbctx.Context, manuscriptID, reviewerID uuid.UUID, actor *requestdata.RequestData) error
}

type assignmentService struct {
	log         *logger.Logger
	cfg         PolicyConfig
	manuscripts repos.ManuscriptRepo
	assignments repos.ReviewAssignmentRepo
	reports     repos.ReviewReportRepo
	machine     StateMachineService
	audit       AuditService
	notify      Notifier
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewAssignmentService(
	baseLog *logger.Logger,
	cfg PolicyConfig,
	manuscripts repos.ManuscriptRepo,
	assignments repos.ReviewAssignmentRepo,
	reports repos.ReviewReportRepo,
	machine StateMachineService,
	audit AuditService,
	notify Notifier,
	metrics *observability.Metrics,
) AssignmentService {
	return &assignmentService{
		log:         baseLog.With("service", "AssignmentService"),
		cfg:         cfg,
		manuscripts: manuscripts,
		assignments: assignments,
		reports:     reports,
		machine:     machine,
		audit:       audit,
		notify:      notify,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *assignmentService) Assign(dbc dbctx.Context, in AssignInput) (*AssignResult, error) {
	if in.ManuscriptID == uuid.Nil || in.ReviewerID == uuid.Nil {
		return nil, apierr.Validation("missing_ids", "manuscript id and reviewer id are required")
	}
	if !in.Actor.HasAnyRole(RoleAdmin, RoleManagingEditor, RoleEditorInChief, RoleEditor, RoleAssistantEditor) {
		return nil, apierr.Permission("assign_forbidden", "role set cannot assign reviewers")
	}

	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, in.ManuscriptID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotFound("manuscript_not_found", "manuscript %s not found", in.ManuscriptID)
	}
	// Defense-in-depth next to the policy engine's conflict hit.
	if in.ReviewerID == m.AuthorID {
		return nil, apierr.Validation("reviewer_is_author", "reviewer %s is the manuscript author", in.ReviewerID)
	}

	existing, err := s.assignments.GetActive(dbc.Ctx, dbc.Tx, m.ID, in.ReviewerID, m.Version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &AssignResult{Assignment: existing, Message: "already assigned"}, nil
	}

	now := s.now().UTC()
	policy, err := s.evaluateCandidate(dbc, m, in.ReviewerID, now)
	if err != nil {
		return nil, err
	}

	overrideApplied := false
	if policy.CooldownActive {
		if !in.OverrideCooldown {
			return nil, apierr.Conflict("cooldown_active", "reviewer %s is in cooldown until %s", in.ReviewerID, policy.CooldownUntil.UTC().Format(time.RFC3339))
		}
		if !in.Actor.HasAnyRole(s.cfg.OverrideRoles...) {
			return nil, apierr.Conflict("cooldown_override_forbidden", "role set cannot override an active cooldown")
		}
		if strings.TrimSpace(in.OverrideReason) == "" {
			return nil, apierr.Validation("missing_override_reason", "cooldown override requires a reason")
		}
		overrideApplied = true
	} else if in.OverrideCooldown {
		// Reject confusing requests instead of guessing intent.
		return nil, apierr.Conflict("override_without_cooldown", "cooldown override requested but no cooldown is active for reviewer %s", in.ReviewerID)
	}

	_, _, due := DueWindow(s.cfg, now)
	assignment := &types.ReviewAssignment{
		ID:           uuid.New(),
		ManuscriptID: m.ID,
		ReviewerID:   in.ReviewerID,
		RoundNumber:  m.Version,
		Status:       types.AssignmentStatusPending,
		DueAt:        due,
		InvitedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.assignments.Create(dbc.Ctx, dbc.Tx, []*types.ReviewAssignment{assignment}); err != nil {
		return nil, err
	}
	if _, err := s.reports.Create(dbc.Ctx, dbc.Tx, []*types.ReviewReport{{
		ID:           uuid.New(),
		ManuscriptID: m.ID,
		ReviewerID:   in.ReviewerID,
		RoundNumber:  m.Version,
		Status:       types.ReportStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}}); err != nil {
		return nil, err
	}

	if m.Status == types.ManuscriptStatusPreCheck || m.Status == types.ManuscriptStatusResubmitted || m.Status == types.ManuscriptStatusUnderReview {
		if _, err := s.machine.Transition(dbc, TransitionInput{
			ManuscriptID: m.ID,
			ToStatus:     types.ManuscriptStatusUnderReview,
			ChangedBy:    actorID(in.Actor),
			Comment:      "reviewer assigned",
			AuditPayload: map[string]any{"reviewer_id": in.ReviewerID},
		}); err != nil {
			return nil, err
		}
	}

	if overrideApplied {
		// Compliance trail distinct from the ordinary transition log.
		s.audit.RecordAction(dbc, AuditActionCooldownOverride, AuditEvent{
			ManuscriptID: m.ID,
			FromStatus:   m.Status,
			ToStatus:     m.Status,
			ChangedBy:    actorID(in.Actor),
			Comment:      in.OverrideReason,
			Payload: map[string]any{
				"reviewer_id": in.ReviewerID,
				"hits":        policy.Hits,
			},
		})
		s.metrics.CooldownOverride(dbc.Ctx)
	}
	s.metrics.AssignmentCreated(dbc.Ctx)
	s.notify.Notify(dbc.Ctx, in.ReviewerID, m.ID, NotifyKindReviewInvited,
		"Review invitation", "You have been invited to review a manuscript.", "")

	return &AssignResult{Assignment: assignment, Policy: policy}, nil
}

func (s *assignmentService) evaluateCandidate(dbc dbctx.Context, m *types.Manuscript, reviewerID uuid.UUID, now time.Time) (PolicyResult, error) {
	since := now.AddDate(0, 0, -s.cfg.CooldownDays)
	recent, err := s.assignments.ListRecentByReviewerJournal(dbc.Ctx, dbc.Tx, reviewerID, m.JournalID, since)
	if err != nil {
		return PolicyResult{}, err
	}
	overdue, err := s.assignments.CountOverdueOpen(dbc.Ctx, dbc.Tx, reviewerID, now)
	if err != nil {
		return PolicyResult{}, err
	}
	results := Evaluate(m, []uuid.UUID{reviewerID}, PolicyInputs{
		RecentSameJournal: map[uuid.UUID][]*types.ReviewAssignment{reviewerID: recent},
		OverdueOpen:       map[uuid.UUID]int{reviewerID: int(overdue)},
	}, now, s.cfg)
	return results[reviewerID], nil
}

func (s *assignmentService) Unassign(dbc dbctx.Context, assignmentID uuid.UUID, actor *requestdata.RequestData) error {
	if !actor.HasAnyRole(RoleAdmin, RoleManagingEditor, RoleEditorInChief, RoleEditor, RoleAssistantEditor) {
		return apierr.Permission("unassign_forbidden", "role set cannot unassign reviewers")
	}
	assignment, err := s.assignments.GetByID(dbc.Ctx, dbc.Tx, assignmentID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return apierr.NotFound("assignment_not_found", "assignment %s not found", assignmentID)
	}

	if err := s.assignments.Delete(dbc.Ctx, dbc.Tx, assignment.ID); err != nil {
		return err
	}
	if err := s.reports.DeletePendingShell(dbc.Ctx, dbc.Tx, assignment.ManuscriptID, assignment.ReviewerID); err != nil {
		return err
	}

	remaining, err := s.assignments.CountNonCancelled(dbc.Ctx, dbc.Tx, assignment.ManuscriptID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, assignment.ManuscriptID)
	if err != nil {
		return err
	}
	// A manuscript never silently stays under_review with no active
	// reviewers.
	if m != nil && m.Status == types.ManuscriptStatusUnderReview {
		if _, err := s.machine.Transition(dbc, TransitionInput{
			ManuscriptID: m.ID,
			ToStatus:     types.ManuscriptStatusPreCheck,
			ChangedBy:    actorID(actor),
			Comment:      "last reviewer unassigned",
			ExtraUpdates: map[string]any{"pre_check_status": types.PreCheckStageAcademic},
			AuditPayload: map[string]any{"reviewer_id": assignment.ReviewerID},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *assignmentService) CompleteFromReport(dbc dbctx.Context, manuscriptID, reviewerID uuid.UUID, actor *requestdata.RequestData) error {
	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, manuscriptID)
	if err != nil {
		return err
	}
	if m == nil {
		return apierr.NotFound("manuscript_not_found", "manuscript %s not found", manuscriptID)
	}
	assignment, err := s.assignments.GetActive(dbc.Ctx, dbc.Tx, manuscriptID, reviewerID, m.Version)
	if err != nil {
		return err
	}
	if assignment == nil {
		return apierr.NotFound("assignment_not_found", "no active assignment for reviewer %s on manuscript %s", reviewerID, manuscriptID)
	}
	if assignment.Status != types.AssignmentStatusCompleted {
		if err := s.assignments.UpdateStatus(dbc.Ctx, dbc.Tx, assignment.ID, types.AssignmentStatusCompleted, map[string]any{
			"updated_at": s.now().UTC(),
		}); err != nil {
			return err
		}
	}

	pending, err := s.assignments.CountOpenForRound(dbc.Ctx, dbc.Tx, manuscriptID, m.Version)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	// Advance only from review-phase statuses; never force-overwrite a
	// later stage.
	switch m.Status {
	case types.ManuscriptStatusUnderReview, types.ManuscriptStatusResubmitted:
		_, err = s.machine.Transition(dbc, TransitionInput{
			ManuscriptID: m.ID,
			ToStatus:     types.ManuscriptStatusDecision,
			ChangedBy:    actorID(actor),
			Comment:      "all reviews completed",
		})
		return err
	case types.ManuscriptStatusDecision:
		return nil
	}
	return nil
}

func actorID(rd *requestdata.RequestData) uuid.UUID {
	if rd == nil {
		return uuid.Nil
	}
	return rd.UserID
}
