package core

import "errors"

// Admission errors: surfaced synchronously to the caller that triggered them.
var (
	ErrDuplicateAgent      = errors.New("agent id already registered")
	ErrInvalidAgent        = errors.New("agent failed self-validation")
	ErrInsufficientStake   = errors.New("stake balance below activation threshold")
	ErrInvalidAmount       = errors.New("stake amount must be positive")
	ErrInsufficientBalance = errors.New("withdrawal exceeds staked balance")
)

// Lookup errors.
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrTaskNotFound  = errors.New("task not found")
)

// Load errors: anything that goes wrong resolving an agent specification.
var (
	ErrUnknownAgentType = errors.New("unknown predefined agent type")
	ErrBadAgentSpec     = errors.New("exactly one of agent_type, agent_module or agent_path must be set")
	ErrLoadFailed       = errors.New("agent load failed")
)

// State errors: the operation is legal, just not from the current state.
var (
	ErrAgentActive           = errors.New("agent is active; deactivate before unloading")
	ErrAgentInactive         = errors.New("agent is not active")
	ErrTaskAlreadyDispatched = errors.New("task is no longer pending")
)

// ErrExecutionTimeout marks a dispatched task that exceeded the per-task
// execution timeout. It is recorded into the execution history, never
// propagated out of the scheduler tick.
var ErrExecutionTimeout = errors.New("agent execution timed out")
