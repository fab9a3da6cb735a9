package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenpress/editorial-core/internal/platform/dbctx"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
	"github.com/lumenpress/editorial-core/internal/repos"
	"github.com/lumenpress/editorial-core/internal/types"
)

const (
	AuditActionTransition       = "status_transition"
	AuditActionPreCheckAdvance  = "pre_check_advance"
	AuditActionDecisionDraft    = "decision_draft_saved"
	AuditActionCooldownOverride = "cooldown_override"
)

// AuditEvent is the schema-less payload shape the degrading writer can
// always serialize regardless of the stored column set.
type AuditEvent struct {
	ManuscriptID uuid.UUID
	FromStatus   string
	ToStatus     string
	ChangedBy    uuid.UUID
	Comment      string
	Payload      map[string]any
}

// AuditService appends transition/action events. Writes are best-effort:
// schema drift degrades the projection, ultimate failure is swallowed so the
// already-committed business mutation is never rolled back.
type AuditService interface {
	RecordTransition(dbc dbctx.Context, ev AuditEvent)
	RecordAction(dbc dbctx.Context, action string, ev AuditEvent)
}

type auditService struct {
	log     *logger.Logger
	entries repos.TransitionLogRepo
	now     func() time.Time
}

func NewAuditService(baseLog *logger.Logger, entries repos.TransitionLogRepo) AuditService {
	return &auditService{
		log:     baseLog.With("service", "AuditService"),
		entries: entries,
		now:     time.Now,
	}
}

func (s *auditService) RecordTransition(dbc dbctx.Context, ev AuditEvent) {
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	if _, ok := ev.Payload["action"]; !ok {
		ev.Payload["action"] = AuditActionTransition
	}
	s.write(dbc, ev)
}

func (s *auditService) RecordAction(dbc dbctx.Context, action string, ev AuditEvent) {
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	ev.Payload["action"] = action
	s.write(dbc, ev)
}

// write runs the degrade ladder: full projection, then without the payload
// column, then with the actor anonymized. Each projection is explicit; no
// dynamic column assembly.
func (s *auditService) write(dbc dbctx.Context, ev AuditEvent) {
	if s == nil || s.entries == nil {
		return
	}
	entry := &types.TransitionLogEntry{
		ID:           uuid.New(),
		ManuscriptID: ev.ManuscriptID,
		FromStatus:   ev.FromStatus,
		ToStatus:     ev.ToStatus,
		ChangedBy:    ev.ChangedBy,
		Comment:      ev.Comment,
		CreatedAt:    s.now().UTC(),
	}
	if raw, err := json.Marshal(ev.Payload); err == nil {
		entry.Payload = datatypes.JSON(raw)
	}

	err := s.entries.Create(dbc.Ctx, dbc.Tx, entry)
	if err == nil {
		return
	}
	if !IsSchemaDrift(err) {
		s.log.Error("audit write failed", "manuscript_id", ev.ManuscriptID, "error", err)
		return
	}
	s.log.Warn("audit write degraded: dropping payload column", "manuscript_id", ev.ManuscriptID, "error", err)

	entry.Payload = nil
	err = s.entries.CreateWithoutPayload(dbc.Ctx, dbc.Tx, entry)
	if err == nil {
		return
	}
	s.log.Warn("audit write degraded: anonymizing actor", "manuscript_id", ev.ManuscriptID, "error", err)

	entry.ChangedBy = uuid.Nil
	entry.ChangedByMasked = true
	if err := s.entries.CreateWithoutPayload(dbc.Ctx, dbc.Tx, entry); err != nil {
		s.log.Error("audit write abandoned after degrade ladder", "manuscript_id", ev.ManuscriptID, "error", err)
	}
}

// IsSchemaDrift detects the common store signatures for a missing column or
// table, across postgres and sqlite.
func IsSchemaDrift(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range []string{
		"does not exist",
		"no such column",
		"no such table",
		"undefined column",
		"undefined table",
		"42703",
		"42p01",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
