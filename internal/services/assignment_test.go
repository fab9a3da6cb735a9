package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenpress/editorial-core/internal/platform/apierr"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/types"
)

type assignmentFixture struct {
	svc         AssignmentService
	manuscripts *fakeManuscriptRepo
	assignments *fakeAssignmentRepo
	reports     *fakeReportRepo
	trail       *fakeTrailRepo
	notify      *fakeNotifier
}

func newAssignmentFixture(t *testing.T, m *types.Manuscript) *assignmentFixture {
	t.Helper()
	manuscripts := newFakeManuscriptRepo(m)
	assignments := &fakeAssignmentRepo{}
	reports := &fakeReportRepo{}
	trail := &fakeTrailRepo{}
	notify := &fakeNotifier{}
	audit := NewAuditService(newTestLogger(t), trail)
	machine := NewStateMachineService(newTestLogger(t), manuscripts, audit, nil)
	svc := NewAssignmentService(newTestLogger(t), testPolicyConfig(), manuscripts, assignments, reports, machine, audit, notify, nil)
	return &assignmentFixture{
		svc:         svc,
		manuscripts: manuscripts,
		assignments: assignments,
		reports:     reports,
		trail:       trail,
		notify:      notify,
	}
}

func editorActor() *requestdata.RequestData {
	return &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleManagingEditor}}
}

func TestAssignCreatesAssignmentAndReportShell(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()

	res, err := fx.svc.Assign(testDBC(), AssignInput{
		ManuscriptID: m.ID,
		ReviewerID:   reviewer,
		Actor:        editorActor(),
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Assignment == nil || res.Assignment.Status != types.AssignmentStatusPending {
		t.Fatalf("assignment: %+v", res.Assignment)
	}
	if res.Assignment.RoundNumber != m.Version {
		t.Fatalf("round: want=%d got=%d", m.Version, res.Assignment.RoundNumber)
	}
	wantDue := res.Assignment.InvitedAt.AddDate(0, 0, 21)
	if !res.Assignment.DueAt.Equal(wantDue) {
		t.Fatalf("due_at: want=%v got=%v", wantDue, res.Assignment.DueAt)
	}
	if len(fx.reports.rows) != 1 || fx.reports.rows[0].Status != types.ReportStatusPending {
		t.Fatalf("report shell: %+v", fx.reports.rows)
	}
	stored, _ := fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusUnderReview {
		t.Fatalf("manuscript status: want=under_review got=%s", stored.Status)
	}
	if stored.PreCheckStatus != nil {
		t.Fatalf("pre_check_status should be cleared under review")
	}
	kinds := fx.notify.kinds()
	if len(kinds) != 1 || kinds[0] != NotifyKindReviewInvited {
		t.Fatalf("notifications: %v", kinds)
	}
}

func TestAssignIsIdempotentPerRound(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()
	actor := editorActor()

	first, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: reviewer, Actor: actor})
	if err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	second, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: reviewer, Actor: actor})
	if err != nil {
		t.Fatalf("second Assign: %v", err)
	}
	if second.Message != "already assigned" {
		t.Fatalf("message: want=already assigned got=%q", second.Message)
	}
	if second.Assignment.ID != first.Assignment.ID {
		t.Fatalf("existing assignment should be returned")
	}
	if len(fx.assignments.rows) != 1 || len(fx.reports.rows) != 1 {
		t.Fatalf("rows: assignments=%d reports=%d", len(fx.assignments.rows), len(fx.reports.rows))
	}
}

func TestAssignRejectsAuthorAsReviewer(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)

	_, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: m.AuthorID, Actor: editorActor()})
	if apierr.StatusOf(err) != 400 || apierr.CodeOf(err) != "reviewer_is_author" {
		t.Fatalf("want 400 reviewer_is_author, got %d %s (%v)", apierr.StatusOf(err), apierr.CodeOf(err), err)
	}
}

func TestAssignRejectsUnauthorizedRole(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)

	actor := &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleReviewer}}
	_, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: uuid.New(), Actor: actor})
	if apierr.StatusOf(err) != 403 {
		t.Fatalf("want 403, got %d (%v)", apierr.StatusOf(err), err)
	}
}

func seedRecentInvite(fx *assignmentFixture, m *types.Manuscript, reviewer uuid.UUID, age time.Duration) {
	other := &types.Manuscript{ID: uuid.New(), JournalID: m.JournalID, AuthorID: uuid.New(), Status: types.ManuscriptStatusUnderReview, Version: 1}
	fx.manuscripts.rows[other.ID] = other
	fx.assignments.journalOf = func(id uuid.UUID) uuid.UUID {
		if row, ok := fx.manuscripts.rows[id]; ok {
			return row.JournalID
		}
		return uuid.Nil
	}
	fx.assignments.rows = append(fx.assignments.rows, &types.ReviewAssignment{
		ID:           uuid.New(),
		ManuscriptID: other.ID,
		ReviewerID:   reviewer,
		RoundNumber:  1,
		Status:       types.AssignmentStatusCompleted,
		InvitedAt:    time.Now().UTC().Add(-age),
		DueAt:        time.Now().UTC().Add(14 * 24 * time.Hour),
	})
}

func TestAssignCooldownConflictsWithoutOverride(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()
	seedRecentInvite(fx, m, reviewer, 10*24*time.Hour)

	_, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: reviewer, Actor: editorActor()})
	if apierr.StatusOf(err) != 409 || apierr.CodeOf(err) != "cooldown_active" {
		t.Fatalf("want 409 cooldown_active, got %d %s (%v)", apierr.StatusOf(err), apierr.CodeOf(err), err)
	}
}

func TestAssignCooldownOverrideRequiresRole(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()
	seedRecentInvite(fx, m, reviewer, 10*24*time.Hour)

	actor := &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleEditor}}
	_, err := fx.svc.Assign(testDBC(), AssignInput{
		ManuscriptID:     m.ID,
		ReviewerID:       reviewer,
		OverrideCooldown: true,
		Actor:            actor,
	})
	if apierr.CodeOf(err) != "cooldown_override_forbidden" {
		t.Fatalf("want cooldown_override_forbidden, got %s (%v)", apierr.CodeOf(err), err)
	}
}

func TestAssignCooldownOverrideRequiresReason(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()
	seedRecentInvite(fx, m, reviewer, 10*24*time.Hour)

	actor := &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleEditorInChief}}
	_, err := fx.svc.Assign(testDBC(), AssignInput{
		ManuscriptID:     m.ID,
		ReviewerID:       reviewer,
		OverrideCooldown: true,
		OverrideReason:   "   ",
		Actor:            actor,
	})
	if apierr.StatusOf(err) != 400 || apierr.CodeOf(err) != "missing_override_reason" {
		t.Fatalf("want 400 missing_override_reason, got %d %s (%v)", apierr.StatusOf(err), apierr.CodeOf(err), err)
	}
	if got := len(fx.assignments.rows); got != 1 {
		t.Fatalf("no assignment may be created: want=1 seeded row got=%d", got)
	}
}

func TestAssignCooldownOverrideIsAudited(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	reviewer := uuid.New()
	seedRecentInvite(fx, m, reviewer, 10*24*time.Hour)

	actor := &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleEditorInChief}}
	res, err := fx.svc.Assign(testDBC(), AssignInput{
		ManuscriptID:     m.ID,
		ReviewerID:       reviewer,
		OverrideCooldown: true,
		OverrideReason:   "only qualified expert in the field",
		Actor:            actor,
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !res.Policy.CooldownActive {
		t.Fatalf("policy result should report the active cooldown")
	}

	found := false
	for _, e := range fx.trail.entries {
		var payload map[string]any
		if len(e.Payload) == 0 {
			continue
		}
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			continue
		}
		if payload["action"] == AuditActionCooldownOverride {
			found = true
			if e.Comment != "only qualified expert in the field" {
				t.Fatalf("override reason: got %q", e.Comment)
			}
		}
	}
	if !found {
		t.Fatalf("cooldown override must leave a dedicated audit entry")
	}
}

func TestAssignOverrideWithoutCooldownRejected(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)

	actor := &requestdata.RequestData{UserID: uuid.New(), Roles: []string{RoleAdmin}}
	_, err := fx.svc.Assign(testDBC(), AssignInput{
		ManuscriptID:     m.ID,
		ReviewerID:       uuid.New(),
		OverrideCooldown: true,
		Actor:            actor,
	})
	if apierr.CodeOf(err) != "override_without_cooldown" {
		t.Fatalf("want override_without_cooldown, got %s (%v)", apierr.CodeOf(err), err)
	}
}

func TestUnassignLastReviewerRevertsToPreCheck(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	actor := editorActor()

	res, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: uuid.New(), Actor: actor})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := fx.svc.Unassign(testDBC(), res.Assignment.ID, actor); err != nil {
		t.Fatalf("Unassign: %v", err)
	}

	stored, _ := fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusPreCheck {
		t.Fatalf("status: want=pre_check got=%s", stored.Status)
	}
	if stored.PreCheckStatus == nil || *stored.PreCheckStatus != types.PreCheckStageAcademic {
		t.Fatalf("pre_check_status: want=academic got=%v", stored.PreCheckStatus)
	}
	if len(fx.assignments.rows) != 0 {
		t.Fatalf("assignment rows: want=0 got=%d", len(fx.assignments.rows))
	}
	if len(fx.reports.rows) != 0 {
		t.Fatalf("pending report shell should be removed, got %d rows", len(fx.reports.rows))
	}
}

func TestUnassignKeepsStatusWhileOthersRemain(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	actor := editorActor()

	first, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: uuid.New(), Actor: actor})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: uuid.New(), Actor: actor}); err != nil {
		t.Fatalf("second Assign: %v", err)
	}
	if err := fx.svc.Unassign(testDBC(), first.Assignment.ID, actor); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	stored, _ := fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusUnderReview {
		t.Fatalf("status: want=under_review got=%s", stored.Status)
	}
}

func TestCompleteFromReportAdvancesWhenRoundDone(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	actor := editorActor()
	reviewer := uuid.New()

	if _, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: reviewer, Actor: actor}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := fx.svc.CompleteFromReport(testDBC(), m.ID, reviewer, actor); err != nil {
		t.Fatalf("CompleteFromReport: %v", err)
	}

	stored, _ := fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusDecision {
		t.Fatalf("status: want=decision got=%s", stored.Status)
	}
	if fx.assignments.rows[0].Status != types.AssignmentStatusCompleted {
		t.Fatalf("assignment status: want=completed got=%s", fx.assignments.rows[0].Status)
	}

	// A second completion call is a no-op once the manuscript reached
	// decision.
	if err := fx.svc.CompleteFromReport(testDBC(), m.ID, reviewer, actor); err != nil {
		t.Fatalf("repeat CompleteFromReport: %v", err)
	}
	stored, _ = fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusDecision {
		t.Fatalf("status after repeat: want=decision got=%s", stored.Status)
	}
}

func TestCompleteFromReportWaitsForOpenAssignments(t *testing.T) {
	m := preCheckManuscript(types.PreCheckStageAcademic)
	fx := newAssignmentFixture(t, m)
	actor := editorActor()
	first := uuid.New()

	if _, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: first, Actor: actor}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := fx.svc.Assign(testDBC(), AssignInput{ManuscriptID: m.ID, ReviewerID: uuid.New(), Actor: actor}); err != nil {
		t.Fatalf("second Assign: %v", err)
	}
	if err := fx.svc.CompleteFromReport(testDBC(), m.ID, first, actor); err != nil {
		t.Fatalf("CompleteFromReport: %v", err)
	}
	stored, _ := fx.manuscripts.GetByID(context.Background(), nil, m.ID)
	if stored.Status != types.ManuscriptStatusUnderReview {
		t.Fatalf("status: want=under_review got=%s", stored.Status)
	}
}
