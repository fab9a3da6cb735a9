package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the editorial workflow counters. A nil *Metrics is safe to
// call; every method no-ops.
type Metrics struct {
	transitions    metric.Int64Counter
	assignments    metric.Int64Counter
	overrides      metric.Int64Counter
	validationRuns metric.Int64Counter
	decisionsFinal metric.Int64Counter
	cyclesApproved metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("editorial-core")
	m := &Metrics{}
	var err error
	if m.transitions, err = meter.Int64Counter("editorial_status_transitions_total"); err != nil {
		return nil, err
	}
	if m.assignments, err = meter.Int64Counter("editorial_review_assignments_total"); err != nil {
		return nil, err
	}
	if m.overrides, err = meter.Int64Counter("editorial_cooldown_overrides_total"); err != nil {
		return nil, err
	}
	if m.validationRuns, err = meter.Int64Counter("editorial_validation_runs_finalized_total"); err != nil {
		return nil, err
	}
	if m.decisionsFinal, err = meter.Int64Counter("editorial_final_decisions_total"); err != nil {
		return nil, err
	}
	if m.cyclesApproved, err = meter.Int64Counter("editorial_production_cycles_approved_total"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Transition(ctx context.Context, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_status", from),
		attribute.String("to_status", to),
	))
}

func (m *Metrics) AssignmentCreated(ctx context.Context) {
	if m == nil || m.assignments == nil {
		return
	}
	m.assignments.Add(ctx, 1)
}

func (m *Metrics) CooldownOverride(ctx context.Context) {
	if m == nil || m.overrides == nil {
		return
	}
	m.overrides.Add(ctx, 1)
}

func (m *Metrics) ValidationRunFinalized(ctx context.Context, decision string) {
	if m == nil || m.validationRuns == nil {
		return
	}
	m.validationRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func (m *Metrics) FinalDecision(ctx context.Context, decision string) {
	if m == nil || m.decisionsFinal == nil {
		return
	}
	m.decisionsFinal.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func (m *Metrics) CycleApproved(ctx context.Context) {
	if m == nil || m.cyclesApproved == nil {
		return
	}
	m.cyclesApproved.Add(ctx, 1)
}
