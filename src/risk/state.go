package risk

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of one (strategy, symbol) instance.
type State string

const (
	StateIdle     State = "IDLE"
	StateOpening  State = "OPENING"
	StateHolding  State = "HOLDING"
	StateShorting State = "SHORTING"
	StateShort    State = "SHORT"
	StateClosing  State = "CLOSING"
	StateCovering State = "COVERING"
	StateCooldown State = "COOLDOWN"
)

var transitions = map[State][]State{
	StateIdle:     {StateOpening, StateShorting},
	StateOpening:  {StateHolding, StateIdle},
	StateShorting: {StateShort, StateIdle},
	StateHolding:  {StateClosing, StateIdle},
	StateShort:    {StateCovering, StateIdle},
	StateClosing:  {StateIdle},
	StateCovering: {StateIdle},
	StateCooldown: {StateIdle},
}

// ValidateStateTransition accepts only edges present in the transition table.
func ValidateStateTransition(from, to State) ValidationResult {
	allowed := transitions[from]
	for _, s := range allowed {
		if s == to {
			return ValidationResult{Valid: true}
		}
	}

	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return invalid(fmt.Sprintf(
		"Invalid state transition: %s -> %s. Allowed transitions from %s: %s",
		from, to, from, strings.Join(names, ", "),
	))
}
