package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenpress/editorial-core/internal/observability"
	"github.com/lumenpress/editorial-core/internal/platform/apierr"
	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/platform/envutil"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/types"
)

// SchemaInspector probes for table existence without binding the service to
// a concrete store client.
type SchemaInspector interface {
	HasTable(ctx context.Context, name string) (bool, error)
}

// BucketProber is the slice of the blob store the validator needs.
type BucketProber interface {
	BucketExists(ctx context.Context) (bool, error)
}

// requiredTables is the fixed readiness battery of schema probes.
var requiredTables = []string{
	"manuscript",
	"review_assignment",
	"review_report",
	"decision_letter",
	"production_cycle",
	"transition_log",
}

// rollbackChecklist is the fixed ordered remediation plan attached to every
// NO-GO decision. Advisory text, not executable.
var rollbackChecklist = []string{
	"freeze inbound editorial traffic",
	"restore previous application build",
	"re-point storage bucket bindings",
	"replay unsent notifications",
	"re-run readiness battery before unfreeze",
}

type ReleaseService interface {
	CreateRun(dbc dbctx.Context, environment string, actor *requestdata.RequestData) (*types.ValidationRun, error)
	ExecuteReadiness(dbc dbctx.Context, runID uuid.UUID) (*types.ValidationRun, error)
	ExecuteRegression(dbc dbctx.Context, runID uuid.UUID) (*types.ValidationRun, error)
	Finalize(dbc dbctx.Context, runID uuid.UUID, forceNoGo bool) (*types.ValidationRun, error)
}

type releaseService struct {
	log         *logger.Logger
	runs        repos.ValidationRunRepo
	checks      repos.ValidationCheckRepo
	manuscripts repos.ManuscriptRepo
	trail       repos.TransitionLogRepo
	production  ProductionService
	schema      SchemaInspector
	bucket      BucketProber
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewReleaseService(
	baseLog *logger.Logger,
	runs repos.ValidationRunRepo,
	checks repos.ValidationCheckRepo,
	manuscripts repos.ManuscriptRepo,
	trail repos.TransitionLogRepo,
	production ProductionService,
	schema SchemaInspector,
	bucket BucketProber,
	metrics *observability.Metrics,
) ReleaseService {
	return &releaseService{
		log:         baseLog.With("service", "ReleaseService"),
		runs:        runs,
		checks:      checks,
		manuscripts: manuscripts,
		trail:       trail,
		production:  production,
		schema:      schema,
		bucket:      bucket,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *releaseService) CreateRun(dbc dbctx.Context, environment string, actor *requestdata.RequestData) (*types.ValidationRun, error) {
	environment = strings.TrimSpace(environment)
	if environment == "" {
		return nil, apierr.Validation("missing_environment", "environment is required")
	}
	if !actor.HasAnyRole(RoleAdmin, RoleManagingEditor) {
		return nil, apierr.Permission("release_forbidden", "role set cannot run release validation")
	}
	existing, err := s.runs.GetRunningByEnvironment(dbc.Ctx, dbc.Tx, environment)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("run_already_running", "environment %s already has running validation run %s", environment, existing.ID)
	}
	now := s.now().UTC()
	run := &types.ValidationRun{
		ID:          uuid.New(),
		Environment: environment,
		Status:      types.ValidationRunStatusRunning,
		CreatedBy:   actorID(actor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.runs.Create(dbc.Ctx, dbc.Tx, run)
}

func (s *releaseService) ExecuteReadiness(dbc dbctx.Context, runID uuid.UUID) (*types.ValidationRun, error) {
	run, err := s.loadRunning(dbc, runID)
	if err != nil {
		return nil, err
	}

	var checks []*types.ValidationCheck
	seq := 0
	add := func(name, status string, blocking bool, evidence string) {
		seq++
		checks = append(checks, &types.ValidationCheck{
			ID:         uuid.New(),
			RunID:      run.ID,
			Phase:      types.CheckPhaseReadiness,
			Name:       name,
			Status:     status,
			IsBlocking: blocking,
			Evidence:   evidence,
			Seq:        seq,
			CreatedAt:  s.now().UTC(),
		})
	}

	for _, table := range requiredTables {
		if s.schema == nil {
			add("schema_table:"+table, types.CheckStatusSkipped, true, "no schema inspector configured")
			continue
		}
		ok, err := s.schema.HasTable(dbc.Ctx, table)
		switch {
		case err != nil:
			add("schema_table:"+table, types.CheckStatusBlocked, true, err.Error())
		case ok:
			add("schema_table:"+table, types.CheckStatusPassed, true, "")
		default:
			add("schema_table:"+table, types.CheckStatusFailed, true, fmt.Sprintf("table %q missing", table))
		}
	}

	if s.bucket == nil {
		add("storage_bucket", types.CheckStatusSkipped, true, "no bucket prober configured")
	} else if ok, err := s.bucket.BucketExists(dbc.Ctx); err != nil {
		add("storage_bucket", types.CheckStatusBlocked, true, err.Error())
	} else if ok {
		add("storage_bucket", types.CheckStatusPassed, true, "")
	} else {
		add("storage_bucket", types.CheckStatusFailed, true, "configured bucket does not exist")
	}

	if envutil.String("ADMIN_API_KEY", "") == "" {
		add("admin_key_configured", types.CheckStatusFailed, false, "ADMIN_API_KEY is not set")
	} else {
		add("admin_key_configured", types.CheckStatusPassed, false, "")
	}

	if err := s.trail.Ping(dbc.Ctx, dbc.Tx); err != nil {
		status := types.CheckStatusBlocked
		if IsSchemaDrift(err) {
			status = types.CheckStatusFailed
		}
		add("audit_log_reachable", status, true, err.Error())
	} else {
		add("audit_log_reachable", types.CheckStatusPassed, true, "")
	}

	if err := s.checks.ReplaceForPhase(dbc.Ctx, dbc.Tx, run.ID, types.CheckPhaseReadiness, checks); err != nil {
		return nil, err
	}
	return s.recomputeCounters(dbc, run)
}

func (s *releaseService) ExecuteRegression(dbc dbctx.Context, runID uuid.UUID) (*types.ValidationRun, error) {
	run, err := s.loadRunning(dbc, runID)
	if err != nil {
		return nil, err
	}

	var checks []*types.ValidationCheck
	seq := 0
	add := func(name, status string, blocking bool, evidence string) {
		seq++
		checks = append(checks, &types.ValidationCheck{
			ID:         uuid.New(),
			RunID:      run.ID,
			Phase:      types.CheckPhaseRegression,
			Name:       name,
			Status:     status,
			IsBlocking: blocking,
			Evidence:   evidence,
			Seq:        seq,
			CreatedAt:  s.now().UTC(),
		})
	}

	// Publish gate must hold for every manuscript in proofreading.
	proofing, err := s.manuscripts.ListByStatuses(dbc.Ctx, dbc.Tx, []string{types.ManuscriptStatusProofreading})
	switch {
	case err != nil:
		add("publish_gate_ready", types.CheckStatusBlocked, true, err.Error())
	case len(proofing) == 0:
		add("publish_gate_ready", types.CheckStatusSkipped, false, "no manuscripts in proofreading")
	default:
		var failures []string
		for _, m := range proofing {
			if gateErr := s.production.AssertPublishGateReadyStrict(dbc, m.ID); gateErr != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", m.ID, gateErr))
			}
		}
		if len(failures) > 0 {
			add("publish_gate_ready", types.CheckStatusFailed, true, strings.Join(failures, "; "))
		} else {
			add("publish_gate_ready", types.CheckStatusPassed, true, "")
		}
	}

	violations, err := s.manuscripts.CountInvariantViolations(dbc.Ctx, dbc.Tx)
	switch {
	case err != nil:
		add("manuscript_status_sanity", types.CheckStatusBlocked, true, err.Error())
	case violations > 0:
		add("manuscript_status_sanity", types.CheckStatusFailed, true, fmt.Sprintf("%d manuscript(s) violate the pre-check invariant", violations))
	default:
		add("manuscript_status_sanity", types.CheckStatusPassed, true, "")
	}

	if err := s.trail.Ping(dbc.Ctx, dbc.Tx); err != nil {
		add("audit_log_reachable", types.CheckStatusFailed, false, err.Error())
	} else {
		add("audit_log_reachable", types.CheckStatusPassed, false, "")
	}

	if err := s.checks.ReplaceForPhase(dbc.Ctx, dbc.Tx, run.ID, types.CheckPhaseRegression, checks); err != nil {
		return nil, err
	}
	return s.recomputeCounters(dbc, run)
}

func (s *releaseService) Finalize(dbc dbctx.Context, runID uuid.UUID, forceNoGo bool) (*types.ValidationRun, error) {
	run, err := s.loadRunning(dbc, runID)
	if err != nil {
		return nil, err
	}

	readiness, err := s.checks.ListByPhase(dbc.Ctx, dbc.Tx, run.ID, types.CheckPhaseReadiness)
	if err != nil {
		return nil, err
	}
	regression, err := s.checks.ListByPhase(dbc.Ctx, dbc.Tx, run.ID, types.CheckPhaseRegression)
	if err != nil {
		return nil, err
	}
	readinessStatus := ClassifyPhase(readiness)
	regressionStatus := ClassifyPhase(regression)

	decision := types.ReleaseDecisionNoGo
	if readinessStatus == types.ValidationRunStatusPassed && regressionStatus == types.ValidationRunStatusPassed && !forceNoGo {
		decision = types.ReleaseDecisionGo
	}

	runStatus := worstStatus(readinessStatus, regressionStatus,
		advisoryStatus(readiness), advisoryStatus(regression))
	now := s.now().UTC()
	updates := map[string]any{
		"status":            runStatus,
		"readiness_status":  readinessStatus,
		"regression_status": regressionStatus,
		"force_no_go":       forceNoGo,
		"release_decision":  decision,
		"rollback_required": decision == types.ReleaseDecisionNoGo,
		"finalized_at":      now,
		"updated_at":        now,
	}
	if decision == types.ReleaseDecisionNoGo {
		plan, merr := json.Marshal(rollbackChecklist)
		if merr == nil {
			updates["rollback_plan"] = datatypes.JSON(plan)
		}
		updates["rollback_status"] = "pending"

		rollback := make([]*types.ValidationCheck, 0, len(rollbackChecklist))
		for i, step := range rollbackChecklist {
			rollback = append(rollback, &types.ValidationCheck{
				ID:         uuid.New(),
				RunID:      run.ID,
				Phase:      types.CheckPhaseRollback,
				Name:       fmt.Sprintf("rollback_step_%d", i+1),
				Status:     types.CheckStatusSkipped,
				IsBlocking: false,
				Evidence:   step,
				Seq:        i + 1,
				CreatedAt:  now,
			})
		}
		if err := s.checks.ReplaceForPhase(dbc.Ctx, dbc.Tx, run.ID, types.CheckPhaseRollback, rollback); err != nil {
			return nil, err
		}
	}
	if err := s.runs.UpdateFields(dbc.Ctx, dbc.Tx, run.ID, updates); err != nil {
		return nil, err
	}
	s.metrics.ValidationRunFinalized(dbc.Ctx, decision)
	return s.runs.GetByID(dbc.Ctx, dbc.Tx, run.ID)
}

// ClassifyPhase applies the strict severity ordering: a skipped blocking
// check is never a pass. Non-blocking checks never affect the phase result;
// their failures degrade the run-level status only (see advisoryStatus).
func ClassifyPhase(checks []*types.ValidationCheck) string {
	if len(checks) == 0 {
		return types.ValidationRunStatusBlocked
	}
	blockingBlocked := false
	blockingFailed := false
	blockingSkipped := false
	for _, c := range checks {
		if !c.IsBlocking {
			continue
		}
		switch c.Status {
		case types.CheckStatusBlocked:
			blockingBlocked = true
		case types.CheckStatusFailed:
			blockingFailed = true
		case types.CheckStatusSkipped:
			blockingSkipped = true
		}
	}
	switch {
	case blockingBlocked:
		return types.ValidationRunStatusBlocked
	case blockingFailed:
		return types.ValidationRunStatusFailed
	case blockingSkipped:
		return types.ValidationRunStatusBlocked
	}
	return types.ValidationRunStatusPassed
}

// advisoryStatus folds non-blocking failures into a run-level degradation
// that never fails a phase and never flips the release decision.
func advisoryStatus(checks []*types.ValidationCheck) string {
	status := types.ValidationRunStatusPassed
	for _, c := range checks {
		if c.IsBlocking {
			continue
		}
		switch c.Status {
		case types.CheckStatusBlocked:
			return types.ValidationRunStatusBlocked
		case types.CheckStatusFailed:
			status = types.ValidationRunStatusFailed
		}
	}
	return status
}

func (s *releaseService) recomputeCounters(dbc dbctx.Context, run *types.ValidationRun) (*types.ValidationRun, error) {
	all, err := s.checks.ListByRun(dbc.Ctx, dbc.Tx, run.ID)
	if err != nil {
		return nil, err
	}
	blocking, failed, skipped := 0, 0, 0
	for _, c := range all {
		switch c.Status {
		case types.CheckStatusFailed:
			failed++
			if c.IsBlocking {
				blocking++
			}
		case types.CheckStatusBlocked:
			if c.IsBlocking {
				blocking++
			}
		case types.CheckStatusSkipped:
			skipped++
		}
	}
	if err := s.runs.UpdateFields(dbc.Ctx, dbc.Tx, run.ID, map[string]any{
		"blocking_failures": blocking,
		"failed_count":      failed,
		"skipped_count":     skipped,
		"updated_at":        s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return s.runs.GetByID(dbc.Ctx, dbc.Tx, run.ID)
}

func (s *releaseService) loadRunning(dbc dbctx.Context, runID uuid.UUID) (*types.ValidationRun, error) {
	if runID == uuid.Nil {
		return nil, apierr.Validation("missing_run_id", "missing validation run id")
	}
	run, err := s.runs.GetByID(dbc.Ctx, dbc.Tx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.NotFound("run_not_found", "validation run %s not found", runID)
	}
	if run.Status != types.ValidationRunStatusRunning {
		return nil, apierr.Conflict("run_not_running", "validation run %s is %s, not running", runID, run.Status)
	}
	return run, nil
}

func worstStatus(statuses ...string) string {
	worst := types.ValidationRunStatusPassed
	for _, s := range statuses {
		switch s {
		case types.ValidationRunStatusBlocked:
			return types.ValidationRunStatusBlocked
		case types.ValidationRunStatusFailed:
			worst = types.ValidationRunStatusFailed
		}
	}
	return worst
}
