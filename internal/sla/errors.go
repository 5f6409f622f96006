package sla

import (
	"errors"
	"fmt"

	"github.com/luiscanel/service-desk/internal/domain"
)

// ErrUnknownPriority is matched by every UnknownPriorityError.
var ErrUnknownPriority = errors.New("unknown priority")

// UnknownPriorityError reports a priority outside the fixed priority set.
// It is distinct from a known priority that simply has no active policy.
type UnknownPriorityError struct {
	Priority domain.TicketPriority
}

func (e *UnknownPriorityError) Error() string {
	return fmt.Sprintf("unknown priority %q", string(e.Priority))
}

func (e *UnknownPriorityError) Is(target error) bool {
	return target == ErrUnknownPriority
}
