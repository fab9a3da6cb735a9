package services

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenpress/editorial-core/internal/observability"
	"github.com/lumenpress/editorial-core/internal/platform/apierr"
	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/platform/gcs"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/requestdata"
	"github.com/lumenpress/editorial-core/internal/types"
)

// decisionContextStatuses gates entry to the workspace.
var decisionContextStatuses = []string{
	types.ManuscriptStatusUnderReview,
	types.ManuscriptStatusResubmitted,
	types.ManuscriptStatusDecision,
	types.ManuscriptStatusDecisionDone,
	types.ManuscriptStatusMajorRevision,
	types.ManuscriptStatusMinorRevision,
}

// finalSubmitStatuses gates committing a final decision.
var finalSubmitStatuses = []string{
	types.ManuscriptStatusResubmitted,
	types.ManuscriptStatusDecision,
	types.ManuscriptStatusDecisionDone,
}

type DecisionContext struct {
	Manuscript    *types.Manuscript     `json:"manuscript"`
	Reports       []*types.ReviewReport `json:"reports"`
	DefaultLetter string                `json:"default_letter"`
	Draft         *types.DecisionLetter `json:"draft,omitempty"`
}

type DecisionSubmitInput struct {
	ManuscriptID    uuid.UUID
	Actor           *requestdata.RequestData
	IsFinal         bool
	Decision        string
	Content         string
	AttachmentPaths []string
	// LastUpdatedAt is the optimistic-lock token the caller last saw;
	// required when updating an existing letter.
	LastUpdatedAt *time.Time
}

type DecisionSubmitResult struct {
	Letter           *types.DecisionLetter `json:"letter"`
	ManuscriptStatus string                `json:"manuscript_status"`
}

type DecisionService interface {
	GetContext(dbc dbctx.Context, manuscriptID uuid.UUID, actor *requestdata.RequestData) (*DecisionContext, error)
	Submit(dbc dbctx.Context, in DecisionSubmitInput) (*DecisionSubmitResult, error)
	// UploadAttachment streams a letter attachment to the blob store and
	// returns the ref to carry in a later Submit's AttachmentPaths.
	UploadAttachment(dbc dbctx.Context, manuscriptID uuid.UUID, filename, contentType string, body io.Reader, actor *requestdata.RequestData) (string, error)
	// AttachmentURL resolves an opaque attachment id to a signed URL,
	// enforcing letter-status visibility for authors.
	AttachmentURL(dbc dbctx.Context, manuscriptID uuid.UUID, attachmentID string, actor *requestdata.RequestData) (string, error)
}

type decisionService struct {
	log         *logger.Logger
	manuscripts repos.ManuscriptRepo
	reports     repos.ReviewReportRepo
	letters     repos.DecisionLetterRepo
	trail       repos.TransitionLogRepo
	machine     StateMachineService
	audit       AuditService
	notify      Notifier
	blobs       gcs.BlobStore
	metrics     *observability.Metrics
	signedTTL   time.Duration
	now         func() time.Time
}

func NewDecisionService(
	baseLog *logger.Logger,
	manuscripts repos.ManuscriptRepo,
	reports repos.ReviewReportRepo,
	letters repos.DecisionLetterRepo,
	trail repos.TransitionLogRepo,
	machine StateMachineService,
	audit AuditService,
	notify Notifier,
	blobs gcs.BlobStore,
	metrics *observability.Metrics,
) DecisionService {
	return &decisionService{
		log:         baseLog.With("service", "DecisionService"),
		manuscripts: manuscripts,
		reports:     reports,
		letters:     letters,
		trail:       trail,
		machine:     machine,
		audit:       audit,
		notify:      notify,
		blobs:       blobs,
		metrics:     metrics,
		signedTTL:   15 * time.Minute,
		now:         time.Now,
	}
}

func (s *decisionService) GetContext(dbc dbctx.Context, manuscriptID uuid.UUID, actor *requestdata.RequestData) (*DecisionContext, error) {
	m, err := s.loadForEditor(dbc, manuscriptID, actor)
	if err != nil {
		return nil, err
	}
	if !statusIn(m.Status, decisionContextStatuses) {
		return nil, apierr.Conflict("decision_context_unavailable", "manuscript %s is %s; decision workspace unavailable", m.ID, m.Status)
	}

	reports, err := s.reports.ListSubmitted(dbc.Ctx, dbc.Tx, m.ID)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for i, r := range reports {
		fmt.Fprintf(&b, "Reviewer %d:\n%s\n\n", i+1, r.PublicComment)
	}

	draft, err := s.letters.GetLatestForEditor(dbc.Ctx, dbc.Tx, m.ID, actorID(actor))
	if err != nil {
		return nil, err
	}
	if draft != nil && draft.Status != types.LetterStatusDraft {
		draft = nil
	}

	return &DecisionContext{
		Manuscript:    m,
		Reports:       reports,
		DefaultLetter: b.String(),
		Draft:         draft,
	}, nil
}

func (s *decisionService) Submit(dbc dbctx.Context, in DecisionSubmitInput) (*DecisionSubmitResult, error) {
	if in.Decision != "" && !types.ValidDecision(in.Decision) {
		return nil, apierr.Validation("invalid_decision", "decision %q is not one of accept/reject/major_revision/minor_revision", in.Decision)
	}
	m, err := s.loadForEditor(dbc, in.ManuscriptID, in.Actor)
	if err != nil {
		return nil, err
	}

	if in.IsFinal {
		if !types.ValidDecision(in.Decision) {
			return nil, apierr.Validation("missing_decision", "final submission requires a decision")
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, apierr.Validation("missing_content", "final submission requires letter content")
		}
		reports, err := s.reports.ListSubmitted(dbc.Ctx, dbc.Tx, m.ID)
		if err != nil {
			return nil, err
		}
		if len(reports) == 0 {
			return nil, apierr.Validation("no_submitted_reports", "final decision requires at least one submitted review report")
		}
		if !statusIn(m.Status, finalSubmitStatuses) {
			return nil, apierr.Conflict("final_decision_unavailable", "manuscript %s is %s; a final decision is not allowed", m.ID, m.Status)
		}
		if in.Decision == types.DecisionAccept || in.Decision == types.DecisionReject {
			revised, err := s.hasAuthorRevision(dbc, m)
			if err != nil {
				return nil, err
			}
			if !revised {
				return nil, apierr.Conflict("revision_loop_skipped", "accept/reject requires at least one author-submitted revision")
			}
		}
		if existingFinal, err := s.letters.GetFinal(dbc.Ctx, dbc.Tx, m.ID); err != nil {
			return nil, err
		} else if existingFinal != nil {
			return nil, apierr.Conflict("final_letter_exists", "manuscript %s already has a final decision letter", m.ID)
		}
	}

	letter, err := s.upsertLetter(dbc, m, in)
	if err != nil {
		return nil, err
	}

	if !in.IsFinal {
		// Draft saves never touch manuscript status.
		s.audit.RecordAction(dbc, AuditActionDecisionDraft, AuditEvent{
			ManuscriptID: m.ID,
			FromStatus:   m.Status,
			ToStatus:     m.Status,
			ChangedBy:    actorID(in.Actor),
			Payload: map[string]any{
				"decision_stage": "first",
				"letter_id":      letter.ID,
			},
		})
		return &DecisionSubmitResult{Letter: letter, ManuscriptStatus: m.Status}, nil
	}

	updated, err := s.driveFinalTransition(dbc, m, in)
	if err != nil {
		return nil, err
	}
	s.metrics.FinalDecision(dbc.Ctx, in.Decision)
	s.notify.Notify(dbc.Ctx, updated.AuthorID, updated.ID, NotifyKindDecisionFinal,
		"Editorial decision", "A decision has been made on your manuscript.", "")

	return &DecisionSubmitResult{Letter: letter, ManuscriptStatus: updated.Status}, nil
}

// driveFinalTransition walks the minimum legal path to the terminal status
// for the decision, auto-stepping intermediate stages when necessary.
func (s *decisionService) driveFinalTransition(dbc dbctx.Context, m *types.Manuscript, in DecisionSubmitInput) (*types.Manuscript, error) {
	target := map[string]string{
		types.DecisionAccept:        types.ManuscriptStatusApproved,
		types.DecisionReject:        types.ManuscriptStatusRejected,
		types.DecisionMajorRevision: types.ManuscriptStatusMajorRevision,
		types.DecisionMinorRevision: types.ManuscriptStatusMinorRevision,
	}[in.Decision]

	steps := map[string]string{
		types.ManuscriptStatusResubmitted: types.ManuscriptStatusDecision,
		types.ManuscriptStatusDecision:    types.ManuscriptStatusDecisionDone,
	}
	current := m
	for current.Status != target {
		next, ok := steps[current.Status]
		if !ok || edgeAllowed(current.Status, target) {
			next = target
		}
		updated, err := s.machine.Transition(dbc, TransitionInput{
			ManuscriptID: m.ID,
			ToStatus:     next,
			ChangedBy:    actorID(in.Actor),
			Comment:      "final decision: " + in.Decision,
			AuditPayload: map[string]any{"decision": in.Decision, "decision_stage": "final"},
		})
		if err != nil {
			return nil, err
		}
		current = updated
	}
	return current, nil
}

func (s *decisionService) upsertLetter(dbc dbctx.Context, m *types.Manuscript, in DecisionSubmitInput) (*types.DecisionLetter, error) {
	now := s.now().UTC()
	status := types.LetterStatusDraft
	if in.IsFinal {
		status = types.LetterStatusFinal
	}
	attachments, err := json.Marshal(in.AttachmentPaths)
	if err != nil {
		return nil, err
	}

	existing, err := s.letters.GetLatestForEditor(dbc.Ctx, dbc.Tx, m.ID, actorID(in.Actor))
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status == types.LetterStatusFinal {
		letter := &types.DecisionLetter{
			ID:              uuid.New(),
			ManuscriptID:    m.ID,
			EditorID:        actorID(in.Actor),
			Status:          status,
			Decision:        in.Decision,
			Content:         in.Content,
			AttachmentPaths: datatypes.JSON(attachments),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := s.letters.Create(dbc.Ctx, dbc.Tx, []*types.DecisionLetter{letter}); err != nil {
			return nil, err
		}
		return letter, nil
	}

	// Updating an existing draft lineage requires the caller's lock token
	// to match the persisted updated_at at millisecond precision.
	if in.LastUpdatedAt == nil {
		return nil, apierr.Conflict("stale_letter", "letter %s requires last_updated_at for updates", existing.ID)
	}
	if !sameMillisecond(existing.UpdatedAt, *in.LastUpdatedAt) {
		return nil, apierr.Conflict("stale_letter", "letter %s was modified at %s; caller saw %s",
			existing.ID, existing.UpdatedAt.UTC().Format(time.RFC3339Nano), in.LastUpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	updates := map[string]any{
		"status":           status,
		"decision":         in.Decision,
		"content":          in.Content,
		"attachment_paths": datatypes.JSON(attachments),
		"updated_at":       now,
	}
	affected, err := s.letters.UpdateWhereUpdatedAt(dbc.Ctx, dbc.Tx, existing.ID, existing.UpdatedAt, updates)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apierr.Conflict("stale_letter", "letter %s was modified concurrently", existing.ID)
	}
	existing.Status = status
	existing.Decision = in.Decision
	existing.Content = in.Content
	existing.AttachmentPaths = datatypes.JSON(attachments)
	existing.UpdatedAt = now
	return existing, nil
}

func (s *decisionService) UploadAttachment(dbc dbctx.Context, manuscriptID uuid.UUID, filename, contentType string, body io.Reader, actor *requestdata.RequestData) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", apierr.Validation("missing_filename", "attachment filename is required")
	}
	m, err := s.loadForEditor(dbc, manuscriptID, actor)
	if err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", apierr.NotFound("attachment_unavailable", "no blob store configured")
	}
	attachmentID := uuid.New().String()
	key := fmt.Sprintf("letters/%s/%s_%s", m.ID, attachmentID, filename)
	if err := s.blobs.Upload(dbc.Ctx, key, contentType, body); err != nil {
		return "", err
	}
	return EncodeAttachmentRef(attachmentID, key), nil
}

func (s *decisionService) AttachmentURL(dbc dbctx.Context, manuscriptID uuid.UUID, attachmentID string, actor *requestdata.RequestData) (string, error) {
	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, manuscriptID)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", apierr.NotFound("manuscript_not_found", "manuscript %s not found", manuscriptID)
	}
	letters, err := s.letters.ListByManuscript(dbc.Ctx, dbc.Tx, manuscriptID)
	if err != nil {
		return "", err
	}
	for _, letter := range letters {
		path, ok := findAttachmentPath(letter, attachmentID)
		if !ok {
			continue
		}
		if !s.canSeeAttachment(m, letter, actor) {
			return "", apierr.Permission("attachment_forbidden", "caller may not fetch attachment %s", attachmentID)
		}
		if s.blobs == nil {
			return "", apierr.NotFound("attachment_unavailable", "no blob store configured")
		}
		url, err := s.blobs.SignedURL(dbc.Ctx, path, s.signedTTL)
		if err != nil {
			s.log.Warn("signed URL generation failed", "manuscript_id", manuscriptID, "attachment_id", attachmentID, "error", err)
			return "", apierr.NotFound("attachment_unavailable", "attachment %s is temporarily unavailable", attachmentID)
		}
		return url, nil
	}
	return "", apierr.NotFound("attachment_not_found", "attachment %s not found on manuscript %s", attachmentID, manuscriptID)
}

func (s *decisionService) canSeeAttachment(m *types.Manuscript, letter *types.DecisionLetter, actor *requestdata.RequestData) bool {
	if actor.HasAnyRole(InternalEditorRoles...) {
		return true
	}
	id := actorID(actor)
	if id != uuid.Nil && (id == m.EditorID || id == m.AssistantEditorID) {
		return true
	}
	// Authors only see attachments of finalized letters.
	if id == m.AuthorID {
		return letter.Status == types.LetterStatusFinal
	}
	return false
}

func (s *decisionService) loadForEditor(dbc dbctx.Context, manuscriptID uuid.UUID, actor *requestdata.RequestData) (*types.Manuscript, error) {
	if manuscriptID == uuid.Nil {
		return nil, apierr.Validation("missing_manuscript_id", "missing manuscript id")
	}
	m, err := s.manuscripts.GetByID(dbc.Ctx, dbc.Tx, manuscriptID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.NotFound("manuscript_not_found", "manuscript %s not found", manuscriptID)
	}
	if actor.HasAnyRole(InternalEditorRoles...) {
		return m, nil
	}
	id := actorID(actor)
	if actor.HasAnyRole(RoleEditor, RoleAssistantEditor) && (id == m.EditorID || id == m.AssistantEditorID) {
		return m, nil
	}
	return nil, apierr.Permission("decision_forbidden", "caller may not act on the decision workspace for manuscript %s", manuscriptID)
}

// hasAuthorRevision checks for evidence of at least one author resubmission.
func (s *decisionService) hasAuthorRevision(dbc dbctx.Context, m *types.Manuscript) (bool, error) {
	if m.Version > 1 {
		return true, nil
	}
	seen, err := s.trail.HasTransition(dbc.Ctx, dbc.Tx, m.ID, types.ManuscriptStatusResubmitted)
	if err != nil {
		// The trail is best-effort; absence of the table must not block a
		// legitimate decision outright.
		if IsSchemaDrift(err) {
			return false, nil
		}
		return false, err
	}
	return seen, nil
}

// EncodeAttachmentRef builds the "{attachment_id}|{object_path}" form stored
// on letters, keeping object paths out of client-visible ids.
func EncodeAttachmentRef(attachmentID, objectPath string) string {
	return attachmentID + "|" + objectPath
}

// DecodeAttachmentRef splits a stored ref, tolerating legacy rows holding a
// bare object path (the path doubles as the id).
func DecodeAttachmentRef(ref string) (attachmentID, objectPath string) {
	if i := strings.Index(ref, "|"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ref
}

func findAttachmentPath(letter *types.DecisionLetter, attachmentID string) (string, bool) {
	if len(letter.AttachmentPaths) == 0 {
		return "", false
	}
	var refs []string
	if err := json.Unmarshal(letter.AttachmentPaths, &refs); err != nil {
		return "", false
	}
	for _, ref := range refs {
		id, path := DecodeAttachmentRef(ref)
		if id == attachmentID {
			return path, true
		}
	}
	return "", false
}

func sameMillisecond(a, b time.Time) bool {
	return a.UTC().Truncate(time.Millisecond).Equal(b.UTC().Truncate(time.Millisecond))
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
