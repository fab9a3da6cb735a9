package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestAuditDegradesToPayloadlessWrite(t *testing.T) {
	trail := &fakeTrailRepo{createErr: errors.New(`pq: column "payload" of relation "transition_log" does not exist`)}
	svc := NewAuditService(newTestLogger(t), trail)

	actor := uuid.New()
	svc.RecordTransition(testDBC(), AuditEvent{
		ManuscriptID: uuid.New(),
		FromStatus:   "pre_check",
		ToStatus:     "under_review",
		ChangedBy:    actor,
		Payload:      map[string]any{"note": "x"},
	})

	if len(trail.entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(trail.entries))
	}
	e := trail.entries[0]
	if e.Payload != nil {
		t.Fatalf("payload should be dropped on the degraded write")
	}
	if e.ChangedBy != actor || e.ChangedByMasked {
		t.Fatalf("actor should survive the first degrade step")
	}
}

func TestAuditDegradesToMaskedActor(t *testing.T) {
	trail := &fakeTrailRepo{
		createErr:     errors.New("no such column: payload"),
		noPayloadErrs: []error{errors.New(`pq: column "changed_by" does not exist (SQLSTATE 42703)`), nil},
	}
	svc := NewAuditService(newTestLogger(t), trail)

	svc.RecordAction(testDBC(), AuditActionCooldownOverride, AuditEvent{
		ManuscriptID: uuid.New(),
		ChangedBy:    uuid.New(),
	})

	if len(trail.entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(trail.entries))
	}
	e := trail.entries[0]
	if !e.ChangedByMasked || e.ChangedBy != uuid.Nil {
		t.Fatalf("actor should be anonymized on the final degrade step: masked=%v changed_by=%s", e.ChangedByMasked, e.ChangedBy)
	}
}

func TestAuditSwallowsTerminalFailure(t *testing.T) {
	trail := &fakeTrailRepo{
		createErr:     errors.New("no such table: transition_log"),
		noPayloadErrs: []error{errors.New("no such table: transition_log"), errors.New("no such table: transition_log")},
	}
	svc := NewAuditService(newTestLogger(t), trail)

	// Must not panic or surface the failure to the caller.
	svc.RecordTransition(testDBC(), AuditEvent{ManuscriptID: uuid.New()})

	if len(trail.entries) != 0 {
		t.Fatalf("entries: want=0 got=%d", len(trail.entries))
	}
}

func TestAuditNonDriftErrorDoesNotDegrade(t *testing.T) {
	trail := &fakeTrailRepo{createErr: errors.New("connection refused")}
	svc := NewAuditService(newTestLogger(t), trail)

	svc.RecordTransition(testDBC(), AuditEvent{ManuscriptID: uuid.New()})

	// A non-drift failure is terminal; the degraded projections are never
	// attempted against a healthy schema.
	if len(trail.entries) != 0 {
		t.Fatalf("entries: want=0 got=%d", len(trail.entries))
	}
}

func TestIsSchemaDrift(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New(`pq: relation "transition_log" does not exist`), true},
		{errors.New("no such column: payload"), true},
		{errors.New("no such table: transition_log"), true},
		{errors.New("ERROR: syntax error (SQLSTATE 42601)"), false},
		{errors.New("SQLSTATE 42P01"), true},
		{errors.New("sqlstate 42703"), true},
		{errors.New("connection reset by peer"), false},
	}
	for _, c := range cases {
		if got := IsSchemaDrift(c.err); got != c.want {
			t.Fatalf("IsSchemaDrift(%v): want=%v got=%v", c.err, c.want, got)
		}
	}
}
