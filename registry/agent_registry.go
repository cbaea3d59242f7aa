package registry

import (
	"iter"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/staking"
)

// Verification captures the capability-contract checks run at registration,
// kept on the record for later inspection.
type Verification struct {
	HasCapabilities bool `json:"has_capabilities"`
	SelfValidation  bool `json:"self_validation"`
	Passed          bool `json:"passed"`
}

// ExecutionSummary is the last dispatch outcome recorded against an agent.
type ExecutionSummary struct {
	TaskID      string    `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
	Failed      bool      `json:"failed"`
}

// AgentRecord is a point-in-time copy of a registered agent's metadata.
// The agent instance itself never leaves the registry.
type AgentRecord struct {
	ID            string               `json:"id"`
	Capabilities  []string             `json:"capabilities"`
	Owner         string               `json:"owner"`
	State         core.ActivationState `json:"state"`
	Stake         float64              `json:"stake"`
	LoadedAt      time.Time            `json:"loaded_at"`
	Verification  Verification         `json:"verification"`
	LastExecution *ExecutionSummary    `json:"last_execution,omitempty"`
}

type record struct {
	agent         core.Agent
	id            string
	capabilities  []string
	owner         string
	state         core.ActivationState
	loadedAt      time.Time
	verification  Verification
	lastExecution *ExecutionSummary
}

// Registry owns the loaded agent instances, keyed by id. Activation is
// gated by the stake ledger: the balance check and the state transition
// happen inside one ledger critical section.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*record
	ledger    *staking.Ledger
	threshold float64
	bus       communication.Bus
}

// NewRegistry builds a registry over the given ledger and activation
// threshold. A nil bus disables event publishing.
func NewRegistry(ledger *staking.Ledger, threshold float64, bus communication.Bus) *Registry {
	return &Registry{
		agents:    make(map[string]*record),
		ledger:    ledger,
		threshold: threshold,
		bus:       bus,
	}
}

// Register stores an agent under id in Inactive state. The id must be free
// and the agent must pass its own Validate check.
func (r *Registry) Register(id string, agent core.Agent, owner string) error {
	if agent == nil {
		return core.ErrInvalidAgent
	}

	capabilities := agent.Describe()
	verification := Verification{
		HasCapabilities: len(capabilities) > 0,
		SelfValidation:  agent.Validate(),
	}
	verification.Passed = verification.SelfValidation
	if !verification.Passed {
		return core.ErrInvalidAgent
	}

	r.mu.Lock()
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		return core.ErrDuplicateAgent
	}
	r.agents[id] = &record{
		agent:        agent,
		id:           id,
		capabilities: slices.Clone(capabilities),
		owner:        owner,
		state:        core.StateInactive,
		loadedAt:     time.Now(),
		verification: verification,
	}
	r.mu.Unlock()

	log.Printf("Registered agent %s (capabilities: %v)", id, capabilities)
	communication.BroadcastAgentLifecycle(r.bus, id, communication.AgentRegistered)
	return nil
}

// Activate transitions the agent to Active, provided its staked balance
// meets the threshold. The check and the transition share the ledger's
// critical section so a concurrent withdrawal cannot race them.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.agents[id]
	if !exists {
		return core.ErrAgentNotFound
	}
	if rec.state == core.StateActive {
		return nil
	}

	if err := r.ledger.RequireBalance(id, r.threshold, func() {
		rec.state = core.StateActive
	}); err != nil {
		return err
	}

	log.Printf("Agent %s activated", id)
	communication.BroadcastAgentLifecycle(r.bus, id, communication.AgentActivated)
	return nil
}

// Deactivate transitions an Active agent to Deactivated. The stake stays in
// the ledger until the owner withdraws it.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.agents[id]
	if !exists {
		return core.ErrAgentNotFound
	}
	if rec.state != core.StateActive {
		return core.ErrAgentInactive
	}
	rec.state = core.StateDeactivated

	log.Printf("Agent %s deactivated", id)
	communication.BroadcastAgentLifecycle(r.bus, id, communication.AgentDeactivated)
	return nil
}

// Unload removes the record irreversibly. Active agents must be deactivated
// first; the freed id becomes reusable immediately after removal.
func (r *Registry) Unload(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.agents[id]
	if !exists {
		return core.ErrAgentNotFound
	}
	if rec.state == core.StateActive {
		return core.ErrAgentActive
	}
	delete(r.agents, id)

	log.Printf("Agent %s unloaded", id)
	communication.BroadcastAgentLifecycle(r.bus, id, communication.AgentUnloaded)
	return nil
}

// Lookup returns a copy of the agent's metadata.
func (r *Registry) Lookup(id string) (AgentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.agents[id]
	if !exists {
		return AgentRecord{}, core.ErrAgentNotFound
	}
	return r.snapshot(rec), nil
}

// AgentForDispatch hands the scheduler the live agent instance plus its
// activation state. The scheduler holds only ids between enqueue and
// dispatch, so registry churn never strands a stale reference.
func (r *Registry) AgentForDispatch(id string) (core.Agent, core.ActivationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.agents[id]
	if !exists {
		return nil, "", core.ErrAgentNotFound
	}
	return rec.agent, rec.state, nil
}

// RecordExecution updates the agent's last-execution summary. Missing ids
// are ignored: the agent may have been unloaded while its task ran.
func (r *Registry) RecordExecution(id string, summary ExecutionSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, exists := r.agents[id]; exists {
		rec.lastExecution = &summary
	}
}

// List yields a point-in-time view of the registered agents, optionally
// filtered to those declaring the given capability. The snapshot is taken
// under one lock acquisition; iteration itself holds no locks.
func (r *Registry) List(capability string) iter.Seq[AgentRecord] {
	r.mu.RLock()
	records := make([]AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		if capability != "" && !slices.Contains(rec.capabilities, capability) {
			continue
		}
		records = append(records, r.snapshot(rec))
	}
	r.mu.RUnlock()

	slices.SortFunc(records, func(a, b AgentRecord) int {
		return strings.Compare(a.ID, b.ID)
	})

	return func(yield func(AgentRecord) bool) {
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	}
}

func (r *Registry) snapshot(rec *record) AgentRecord {
	balance, err := r.ledger.Balance(rec.id)
	if err != nil {
		balance = 0
	}
	out := AgentRecord{
		ID:           rec.id,
		Capabilities: slices.Clone(rec.capabilities),
		Owner:        rec.owner,
		State:        rec.state,
		Stake:        balance,
		LoadedAt:     rec.loadedAt,
		Verification: rec.verification,
	}
	if rec.lastExecution != nil {
		last := *rec.lastExecution
		out.LastExecution = &last
	}
	return out
}
