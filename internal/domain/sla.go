package domain

import (
	"math"
	"time"
)

// SlaStatus is the computed standing of a ticket against its policy.
type SlaStatus string

const (
	SlaStatusOK       SlaStatus = "ok"
	SlaStatusWarning  SlaStatus = "warning"
	SlaStatusBreached SlaStatus = "breached"
	SlaStatusNoSLA    SlaStatus = "no_sla"
)

// SlaPhase identifies which of the two deadlines is being tracked.
type SlaPhase string

const (
	SlaPhaseResponse   SlaPhase = "response"
	SlaPhaseResolution SlaPhase = "resolution"
)

// SlaPolicy defines response and resolution bounds for one priority.
type SlaPolicy struct {
	ID                  string
	Name                string
	Description         string
	Priority            TicketPriority
	ResponseTimeHours   float64
	ResolutionTimeHours float64
	IsActive            bool
	NotifyOnBreach      bool
	EscalationEmail     *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ResponseTime returns the response allowance as a duration.
func (p *SlaPolicy) ResponseTime() time.Duration {
	return hoursToDuration(p.ResponseTimeHours)
}

// ResolutionTime returns the resolution allowance as a duration.
func (p *SlaPolicy) ResolutionTime() time.Duration {
	return hoursToDuration(p.ResolutionTimeHours)
}

// MaxPolicyHours caps response and resolution allowances at one year.
const MaxPolicyHours = 8760.0

// ValidPolicyHours reports whether hours is a usable allowance.
func ValidPolicyHours(hours float64) bool {
	return hours > 0 && hours <= MaxPolicyHours
}

// hoursToDuration saturates instead of overflowing for values past the cap.
func hoursToDuration(hours float64) time.Duration {
	if hours >= float64(math.MaxInt64)/float64(time.Hour) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(hours * float64(time.Hour))
}

// TicketSlaState is the ticket snapshot evaluated by the SLA engine.
// The notified flags only ever move from false to true.
type TicketSlaState struct {
	TicketID                 string
	Priority                 TicketPriority
	CreatedAt                time.Time
	FirstRespondedAt         *time.Time
	ResolvedAt               *time.Time
	ResponseBreachNotified   bool
	ResolutionBreachNotified bool
}

// Resolved reports whether the ticket reached its terminal state.
func (s TicketSlaState) Resolved() bool {
	return s.ResolvedAt != nil
}
