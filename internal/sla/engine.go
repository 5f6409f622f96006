package sla

import (
	"time"

	"github.com/luiscanel/service-desk/internal/domain"
)

// DefaultWarningPercent is the elapsed share at which a ticket turns to warning.
const DefaultWarningPercent = 80.0

// Evaluation is the result of evaluating one ticket against its policy.
type Evaluation struct {
	Status     domain.SlaStatus
	Phase      domain.SlaPhase
	Deadline   time.Time
	Remaining  *time.Duration
	Percentage float64

	ResponseDeadline   time.Time
	ResolutionDeadline time.Time
	ResponseBreached   bool
	ResolutionBreached bool

	// Resolved marks a frozen evaluation computed at the resolution time.
	Resolved    bool
	EvaluatedAt time.Time
}

// Engine computes SLA standing. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	warningPercent float64
}

// NewEngine builds an engine; out of range thresholds fall back to the default.
func NewEngine(warningPercent float64) *Engine {
	if warningPercent <= 0 || warningPercent > 100 {
		warningPercent = DefaultWarningPercent
	}
	return &Engine{warningPercent: warningPercent}
}

// WarningPercent returns the configured warning threshold.
func (e *Engine) WarningPercent() float64 {
	return e.warningPercent
}

// Evaluate computes status, remaining time and elapsed percentage for a ticket.
//
// The resolution deadline is always measured from ticket creation, never from
// the first response. Once the ticket is resolved the evaluation is pinned to
// the resolution time, so later calls return the same result.
func (e *Engine) Evaluate(state domain.TicketSlaState, policy *domain.SlaPolicy, now time.Time) Evaluation {
	resolved := state.Resolved()
	at := now
	if resolved {
		at = *state.ResolvedAt
	}

	phase := domain.SlaPhaseResponse
	if state.FirstRespondedAt != nil || resolved {
		phase = domain.SlaPhaseResolution
	}

	if policy == nil {
		return Evaluation{
			Status:      domain.SlaStatusNoSLA,
			Phase:       phase,
			Resolved:    resolved,
			EvaluatedAt: at,
		}
	}

	responseDeadline := state.CreatedAt.Add(policy.ResponseTime())
	resolutionDeadline := state.CreatedAt.Add(policy.ResolutionTime())

	deadline := responseDeadline
	if phase == domain.SlaPhaseResolution {
		deadline = resolutionDeadline
	}

	remaining := deadline.Sub(at)
	status, percentage := e.classify(state.CreatedAt, deadline, at)

	responseEnd := at
	if state.FirstRespondedAt != nil {
		responseEnd = *state.FirstRespondedAt
	}

	return Evaluation{
		Status:             status,
		Phase:              phase,
		Deadline:           deadline,
		Remaining:          &remaining,
		Percentage:         percentage,
		ResponseDeadline:   responseDeadline,
		ResolutionDeadline: resolutionDeadline,
		ResponseBreached:   !responseDeadline.After(responseEnd),
		ResolutionBreached: !resolutionDeadline.After(at),
		Resolved:           resolved,
		EvaluatedAt:        at,
	}
}

func (e *Engine) classify(createdAt, deadline, at time.Time) (domain.SlaStatus, float64) {
	total := deadline.Sub(createdAt)
	if total <= 0 {
		return domain.SlaStatusBreached, 100
	}
	percentage := float64(at.Sub(createdAt)) / float64(total) * 100
	percentage = clamp(percentage, 0, 100)

	switch {
	case deadline.Sub(at) <= 0:
		return domain.SlaStatusBreached, percentage
	case percentage >= e.warningPercent:
		return domain.SlaStatusWarning, percentage
	default:
		return domain.SlaStatusOK, percentage
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
