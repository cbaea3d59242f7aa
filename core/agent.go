package core

import "context"

// Context is the opaque structured payload handed to an agent execution.
type Context map[string]any

// Agent is the capability contract every loadable unit must satisfy.
// Any type implementing it can be deployed, regardless of where it was
// resolved from (predefined table, module reference, or plugin path).
type Agent interface {
	// Execute performs the agent's work against the given context.
	Execute(ctx context.Context, ec Context) (any, error)

	// Validate reports whether the agent is correctly configured.
	Validate() bool

	// Describe returns the capability names this agent declares.
	Describe() []string
}

// ActivationState tracks where an agent record sits in its lifecycle.
type ActivationState string

const (
	StateInactive    ActivationState = "inactive"
	StateActive      ActivationState = "active"
	StateDeactivated ActivationState = "deactivated"
)
