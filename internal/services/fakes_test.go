package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeManuscriptRepo struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*types.Manuscript
	violations int64
	// failNextUpdateWhere simulates a lost conditional-write race.
	failNextUpdateWhere bool
	updateFieldsErr     error
	listErr             error
}

func newFakeManuscriptRepo(rows ...*types.Manuscript) *fakeManuscriptRepo {
	r := &fakeManuscriptRepo{rows: map[uuid.UUID]*types.Manuscript{}}
	for _, m := range rows {
		r.rows[m.ID] = m
	}
	return r
}

func (r *fakeManuscriptRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.Manuscript) ([]*types.Manuscript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range rows {
		r.rows[m.ID] = m
	}
	return rows, nil
}

func (r *fakeManuscriptRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.Manuscript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

func (r *fakeManuscriptRepo) ListByStatuses(_ context.Context, _ *gorm.DB, statuses []string) ([]*types.Manuscript, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Manuscript
	for _, m := range r.rows {
		for _, s := range statuses {
			if m.Status == s {
				clone := *m
				out = append(out, &clone)
			}
		}
	}
	return out, nil
}

func (r *fakeManuscriptRepo) UpdateWhere(_ context.Context, _ *gorm.DB, id uuid.UUID, expectStatus string, expectPreCheck *string, updates map[string]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextUpdateWhere {
		r.failNextUpdateWhere = false
		return 0, nil
	}
	m, ok := r.rows[id]
	if !ok || m.Status != expectStatus {
		return 0, nil
	}
	if expectPreCheck != nil && (m.PreCheckStatus == nil || *m.PreCheckStatus != *expectPreCheck) {
		return 0, nil
	}
	applyManuscriptUpdates(m, updates)
	return 1, nil
}

func (r *fakeManuscriptRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if r.updateFieldsErr != nil {
		return r.updateFieldsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[id]; ok {
		applyManuscriptUpdates(m, updates)
	}
	return nil
}

func (r *fakeManuscriptRepo) CountInvariantViolations(_ context.Context, _ *gorm.DB) (int64, error) {
	return r.violations, nil
}

func applyManuscriptUpdates(m *types.Manuscript, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "status":
			m.Status = v.(string)
		case "pre_check_status":
			if v == nil {
				m.PreCheckStatus = nil
			} else {
				stage := v.(string)
				m.PreCheckStatus = &stage
			}
		case "final_pdf_path":
			m.FinalPDFPath = v.(string)
		case "version":
			m.Version = v.(int)
		case "updated_at":
			m.UpdatedAt = v.(time.Time)
		}
	}
}

type fakeAssignmentRepo struct {
	mu   sync.Mutex
	rows []*types.ReviewAssignment
	// journalOf resolves an assignment's journal without a join; nil means
	// every assignment matches the queried journal.
	journalOf func(manuscriptID uuid.UUID) uuid.UUID
}

func (r *fakeAssignmentRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ReviewAssignment) ([]*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAssignmentRepo) GetActive(_ context.Context, _ *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ManuscriptID == manuscriptID && a.ReviewerID == reviewerID && a.RoundNumber == round && a.Status != types.AssignmentStatusCancelled {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAssignmentRepo) ListByManuscript(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewAssignment
	for _, a := range r.rows {
		if a.ManuscriptID == manuscriptID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) ListRecentByReviewerJournal(_ context.Context, _ *gorm.DB, reviewerID, journalID uuid.UUID, since time.Time) ([]*types.ReviewAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewAssignment
	for _, a := range r.rows {
		if a.ReviewerID != reviewerID || a.InvitedAt.Before(since) {
			continue
		}
		if r.journalOf != nil && r.journalOf(a.ManuscriptID) != journalID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.After(out[j].InvitedAt) })
	return out, nil
}

func (r *fakeAssignmentRepo) CountOverdueOpen(_ context.Context, _ *gorm.DB, reviewerID uuid.UUID, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.rows {
		if a.ReviewerID == reviewerID && !a.IsTerminal() && a.DueAt.Before(now) {
			n++
		}
	}
	return n, nil
}

func (r *fakeAssignmentRepo) CountOpenForRound(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID, round int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.rows {
		if a.ManuscriptID == manuscriptID && a.RoundNumber == round && !a.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (r *fakeAssignmentRepo) CountNonCancelled(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.rows {
		if a.ManuscriptID == manuscriptID && a.Status != types.AssignmentStatusCancelled {
			n++
		}
	}
	return n, nil
}

func (r *fakeAssignmentRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.ID == id {
			a.Status = status
			if v, ok := updates["updated_at"].(time.Time); ok {
				a.UpdatedAt = v
			}
		}
	}
	return nil
}

func (r *fakeAssignmentRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rows[:0]
	for _, a := range r.rows {
		if a.ID != id {
			out = append(out, a)
		}
	}
	r.rows = out
	return nil
}

type fakeReportRepo struct {
	mu   sync.Mutex
	rows []*types.ReviewReport
}

func (r *fakeReportRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ReviewReport) ([]*types.ReviewReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeReportRepo) GetByReviewer(_ context.Context, _ *gorm.DB, manuscriptID, reviewerID uuid.UUID, round int) (*types.ReviewReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.rows {
		if rep.ManuscriptID == manuscriptID && rep.ReviewerID == reviewerID && rep.RoundNumber == round {
			return rep, nil
		}
	}
	return nil, nil
}

func (r *fakeReportRepo) ListSubmitted(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) ([]*types.ReviewReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ReviewReport
	for _, rep := range r.rows {
		if rep.ManuscriptID == manuscriptID && statusIn(rep.Status, types.SubmittedReportStatuses) {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (r *fakeReportRepo) DeletePendingShell(_ context.Context, _ *gorm.DB, manuscriptID, reviewerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rows[:0]
	for _, rep := range r.rows {
		if rep.ManuscriptID == manuscriptID && rep.ReviewerID == reviewerID && rep.Status == types.ReportStatusPending {
			continue
		}
		out = append(out, rep)
	}
	r.rows = out
	return nil
}

type fakeLetterRepo struct {
	mu   sync.Mutex
	rows []*types.DecisionLetter
}

func (r *fakeLetterRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.DecisionLetter) ([]*types.DecisionLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeLetterRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.DecisionLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ID == id {
			clone := *l
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeLetterRepo) GetLatestForEditor(_ context.Context, _ *gorm.DB, manuscriptID, editorID uuid.UUID) (*types.DecisionLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *types.DecisionLetter
	for _, l := range r.rows {
		if l.ManuscriptID != manuscriptID || l.EditorID != editorID {
			continue
		}
		if latest == nil || l.CreatedAt.After(latest.CreatedAt) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *fakeLetterRepo) GetFinal(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) (*types.DecisionLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ManuscriptID == manuscriptID && l.Status == types.LetterStatusFinal {
			clone := *l
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeLetterRepo) ListByManuscript(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) ([]*types.DecisionLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.DecisionLetter
	for _, l := range r.rows {
		if l.ManuscriptID == manuscriptID {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeLetterRepo) UpdateWhereUpdatedAt(_ context.Context, _ *gorm.DB, id uuid.UUID, expect time.Time, updates map[string]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.rows {
		if l.ID != id {
			continue
		}
		if !l.UpdatedAt.Equal(expect) {
			return 0, nil
		}
		for k, v := range updates {
			switch k {
			case "status":
				l.Status = v.(string)
			case "decision":
				l.Decision = v.(string)
			case "content":
				l.Content = v.(string)
			case "attachment_paths":
				l.AttachmentPaths = v.(datatypes.JSON)
			case "updated_at":
				l.UpdatedAt = v.(time.Time)
			}
		}
		return 1, nil
	}
	return 0, nil
}

type fakeCycleRepo struct {
	mu   sync.Mutex
	rows []*types.ProductionCycle
	// latestErr simulates schema drift on the gate's latest-cycle read.
	latestErr error
}

func (r *fakeCycleRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ProductionCycle) ([]*types.ProductionCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeCycleRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.ProductionCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeCycleRepo) GetActiveByManuscript(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ManuscriptID == manuscriptID && !c.IsTerminal() {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeCycleRepo) GetLatestByManuscript(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) (*types.ProductionCycle, error) {
	if r.latestErr != nil {
		return nil, r.latestErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *types.ProductionCycle
	for _, c := range r.rows {
		if c.ManuscriptID != manuscriptID {
			continue
		}
		if latest == nil || c.CycleNo > latest.CycleNo {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *fakeCycleRepo) MaxCycleNo(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, c := range r.rows {
		if c.ManuscriptID == manuscriptID && c.CycleNo > max {
			max = c.CycleNo
		}
	}
	return max, nil
}

func (r *fakeCycleRepo) UpdateWhereStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, expectStatus string, updates map[string]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID != id || c.Status != expectStatus {
			continue
		}
		for k, v := range updates {
			switch k {
			case "status":
				c.Status = v.(string)
			case "galley_path":
				c.GalleyPath = v.(string)
			case "galley_uploaded_at":
				ts := v.(time.Time)
				c.GalleyUploadedAt = &ts
			case "approved_by":
				by := v.(uuid.UUID)
				c.ApprovedBy = &by
			case "approved_at":
				ts := v.(time.Time)
				c.ApprovedAt = &ts
			case "updated_at":
				c.UpdatedAt = v.(time.Time)
			}
		}
		return 1, nil
	}
	return 0, nil
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses []*types.ProofreadingResponse
	items     map[uuid.UUID][]*types.CorrectionItem
}

func (r *fakeResponseRepo) Create(_ context.Context, _ *gorm.DB, resp *types.ProofreadingResponse, items []*types.CorrectionItem) (*types.ProofreadingResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	if r.items == nil {
		r.items = map[uuid.UUID][]*types.CorrectionItem{}
	}
	r.items[resp.ID] = items
	return resp, nil
}

func (r *fakeResponseRepo) GetLatestByCycle(_ context.Context, _ *gorm.DB, cycleID uuid.UUID) (*types.ProofreadingResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *types.ProofreadingResponse
	for _, resp := range r.responses {
		if resp.ProductionCycleID != cycleID {
			continue
		}
		if latest == nil || resp.SubmittedAt.After(latest.SubmittedAt) {
			latest = resp
		}
	}
	return latest, nil
}

func (r *fakeResponseRepo) ListItems(_ context.Context, _ *gorm.DB, responseID uuid.UUID) ([]*types.CorrectionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[responseID], nil
}

type fakeTrailRepo struct {
	mu      sync.Mutex
	entries []*types.TransitionLogEntry
	// createErr fails the full-projection write; noPayloadErrs are consumed
	// one per CreateWithoutPayload call.
	createErr     error
	noPayloadErrs []error
	pingErr       error
	hasErr        error
}

func (r *fakeTrailRepo) Create(_ context.Context, _ *gorm.DB, entry *types.TransitionLogEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeTrailRepo) CreateWithoutPayload(_ context.Context, _ *gorm.DB, entry *types.TransitionLogEntry) error {
	if len(r.noPayloadErrs) > 0 {
		err := r.noPayloadErrs[0]
		r.noPayloadErrs = r.noPayloadErrs[1:]
		if err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	clone.Payload = nil
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *fakeTrailRepo) ListByManuscript(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID) ([]*types.TransitionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.TransitionLogEntry
	for _, e := range r.entries {
		if e.ManuscriptID == manuscriptID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeTrailRepo) HasTransition(_ context.Context, _ *gorm.DB, manuscriptID uuid.UUID, toStatus string) (bool, error) {
	if r.hasErr != nil {
		return false, r.hasErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ManuscriptID == manuscriptID && e.ToStatus == toStatus {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTrailRepo) Ping(_ context.Context, _ *gorm.DB) error {
	return r.pingErr
}

type fakeRunRepo struct {
	mu   sync.Mutex
	rows []*types.ValidationRun
}

func (r *fakeRunRepo) Create(_ context.Context, _ *gorm.DB, row *types.ValidationRun) (*types.ValidationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *fakeRunRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.ValidationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.rows {
		if run.ID == id {
			clone := *run
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) GetRunningByEnvironment(_ context.Context, _ *gorm.DB, environment string) (*types.ValidationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.rows {
		if run.Environment == environment && run.Status == types.ValidationRunStatusRunning {
			clone := *run
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeRunRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.rows {
		if run.ID != id {
			continue
		}
		for k, v := range updates {
			switch k {
			case "status":
				run.Status = v.(string)
			case "readiness_status":
				run.ReadinessStatus = v.(string)
			case "regression_status":
				run.RegressionStatus = v.(string)
			case "force_no_go":
				run.ForceNoGo = v.(bool)
			case "release_decision":
				run.ReleaseDecision = v.(string)
			case "rollback_required":
				run.RollbackRequired = v.(bool)
			case "rollback_status":
				run.RollbackStatus = v.(string)
			case "rollback_plan":
				run.RollbackPlan = v.(datatypes.JSON)
			case "blocking_failures":
				run.BlockingFailures = v.(int)
			case "failed_count":
				run.FailedCount = v.(int)
			case "skipped_count":
				run.SkippedCount = v.(int)
			case "finalized_at":
				ts := v.(time.Time)
				run.FinalizedAt = &ts
			case "updated_at":
				run.UpdatedAt = v.(time.Time)
			}
		}
	}
	return nil
}

type fakeCheckRepo struct {
	mu   sync.Mutex
	rows []*types.ValidationCheck
}

func (r *fakeCheckRepo) ReplaceForPhase(_ context.Context, _ *gorm.DB, runID uuid.UUID, phase string, checks []*types.ValidationCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rows[:0]
	for _, c := range r.rows {
		if c.RunID == runID && c.Phase == phase {
			continue
		}
		out = append(out, c)
	}
	r.rows = append(out, checks...)
	return nil
}

func (r *fakeCheckRepo) ListByRun(_ context.Context, _ *gorm.DB, runID uuid.UUID) ([]*types.ValidationCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ValidationCheck
	for _, c := range r.rows {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCheckRepo) ListByPhase(_ context.Context, _ *gorm.DB, runID uuid.UUID, phase string) ([]*types.ValidationCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ValidationCheck
	for _, c := range r.rows {
		if c.RunID == runID && c.Phase == phase {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Notify(_ context.Context, userID, _ uuid.UUID, kind, _, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind})
}

func (n *fakeNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type stubScopeResolver struct {
	scope JournalScope
	err   error
}

func (s *stubScopeResolver) ScopedJournalIDs(context.Context, *requestdata.RequestData) (JournalScope, error) {
	return s.scope, s.err
}

type fakeSchema struct {
	tables map[string]bool
	err    error
}

func (f *fakeSchema) HasTable(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.tables[name], nil
}

type fakeBucket struct {
	exists bool
	err    error
}

func (f *fakeBucket) BucketExists(context.Context) (bool, error) {
	return f.exists, f.err
}
