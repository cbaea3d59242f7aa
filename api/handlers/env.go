package handlers

import (
	"errors"
	"net/http"

	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/loader"
	"github.com/chronoeffector/orchestrator/registry"
	"github.com/chronoeffector/orchestrator/scheduler"
	"github.com/chronoeffector/orchestrator/staking"
)

// Env bundles the core components the handlers operate on. The transport
// layer owns nothing itself; it just marshals requests into core calls.
type Env struct {
	Loader    *loader.Loader
	Registry  *registry.Registry
	Verifier  *registry.Verifier
	Ledger    *staking.Ledger
	Scheduler *scheduler.Scheduler
	Bus       communication.Bus
}

// httpStatus maps core errors onto transport status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrAgentNotFound), errors.Is(err, core.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateAgent):
		return http.StatusConflict
	case errors.Is(err, core.ErrAgentActive),
		errors.Is(err, core.ErrAgentInactive),
		errors.Is(err, core.ErrTaskAlreadyDispatched):
		return http.StatusConflict
	case errors.Is(err, core.ErrBadAgentSpec),
		errors.Is(err, core.ErrUnknownAgentType),
		errors.Is(err, core.ErrLoadFailed),
		errors.Is(err, core.ErrInvalidAgent),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInsufficientStake),
		errors.Is(err, core.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
