package sla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/domain"
)

// Breach describes a deadline crossing that has to be reported.
type Breach struct {
	Phase           domain.SlaPhase
	TicketID        string
	Priority        domain.TicketPriority
	PolicyID        string
	EscalationEmail *string
	Deadline        time.Time
	DetectedAt      time.Time
}

// FlagStore persists the per-ticket notified flags.
//
// MarkBreachNotified must set the flag only when it is currently false and
// report whether this call performed the change.
type FlagStore interface {
	MarkBreachNotified(ctx context.Context, ticketID string, phase domain.SlaPhase) (bool, error)
}

// BreachSink receives breaches once their flag has been claimed.
type BreachSink interface {
	BreachDetected(ctx context.Context, breach Breach) error
}

// Notifier turns evaluations into at-most-once breach notifications.
type Notifier struct {
	flags  FlagStore
	sink   BreachSink
	logger *zap.Logger
}

// NewNotifier wires a notifier.
func NewNotifier(flags FlagStore, sink BreachSink, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{flags: flags, sink: sink, logger: logger}
}

// CheckAndNotify claims the notified flag for every phase whose deadline has
// passed and reports the breaches this call won. The state is caller owned and
// its flags are updated in place.
//
// Delivery failures are logged and never undo the flag.
func (n *Notifier) CheckAndNotify(ctx context.Context, state *domain.TicketSlaState, policy *domain.SlaPolicy, eval Evaluation) ([]Breach, error) {
	if state == nil || policy == nil || !policy.NotifyOnBreach || eval.Resolved {
		return nil, nil
	}

	phases := []struct {
		phase    domain.SlaPhase
		passed   bool
		notified *bool
		deadline time.Time
	}{
		{domain.SlaPhaseResponse, eval.ResponseBreached, &state.ResponseBreachNotified, eval.ResponseDeadline},
		{domain.SlaPhaseResolution, eval.ResolutionBreached, &state.ResolutionBreachNotified, eval.ResolutionDeadline},
	}

	var (
		fired []Breach
		errs  []error
	)
	for _, p := range phases {
		if !p.passed || *p.notified {
			continue
		}
		won, err := n.flags.MarkBreachNotified(ctx, state.TicketID, p.phase)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark %s breach for ticket %s: %w", p.phase, state.TicketID, err))
			continue
		}
		*p.notified = true
		if !won {
			continue
		}

		breach := Breach{
			Phase:           p.phase,
			TicketID:        state.TicketID,
			Priority:        state.Priority,
			PolicyID:        policy.ID,
			EscalationEmail: policy.EscalationEmail,
			Deadline:        p.deadline,
			DetectedAt:      eval.EvaluatedAt,
		}
		fired = append(fired, breach)
		n.emit(ctx, breach)
	}
	return fired, errors.Join(errs...)
}

func (n *Notifier) emit(ctx context.Context, breach Breach) {
	if n.sink == nil {
		return
	}
	if err := n.sink.BreachDetected(ctx, breach); err != nil {
		n.logger.Warn("sla breach delivery failed",
			zap.String("ticket_id", breach.TicketID),
			zap.String("phase", string(breach.Phase)),
			zap.Error(err))
	}
}
