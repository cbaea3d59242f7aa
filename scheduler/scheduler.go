package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronoeffector/orchestrator/communication"
	"github.com/chronoeffector/orchestrator/consensus"
	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/registry"
)

// EntryState tracks a queue entry through its life. Cancelled is terminal;
// a cancelled entry is never dispatched.
type EntryState string

const (
	EntryPending    EntryState = "pending"
	EntryDispatched EntryState = "dispatched"
	EntryCancelled  EntryState = "cancelled"
)

type queueEntry struct {
	task  core.Task
	order uint64
	state EntryState
}

// DefaultTimeout bounds a single agent execution when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Scheduler owns the execution queue and the run loop. It holds agent ids
// only; the live agent instance is fetched from the registry at dispatch
// time, so unloading an agent between enqueue and dispatch degrades into a
// recorded failure rather than a stale reference.
type Scheduler struct {
	registry *registry.Registry
	panel    *consensus.Panel
	bus      communication.Bus
	history  *History
	timeout  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	entries   map[string]*queueEntry
	nextOrder uint64

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler wires the scheduler to its registry, consensus panel and
// event bus. A zero timeout selects DefaultTimeout.
func NewScheduler(reg *registry.Registry, panel *consensus.Panel, bus communication.Bus, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		registry: reg,
		panel:    panel,
		bus:      bus,
		history:  NewHistory(),
		timeout:  timeout,
		now:      time.Now,
		entries:  make(map[string]*queueEntry),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Enqueue inserts a pending entry for the target agent. A nil executionTime
// (or one already in the past) makes the entry eligible on the next tick.
// The target agent must currently be registered.
func (s *Scheduler) Enqueue(agentID string, ec core.Context, executionTime *time.Time) (core.Task, error) {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return core.Task{}, err
	}

	task := core.Task{
		ID:            uuid.New().String(),
		AgentID:       agentID,
		Context:       ec,
		ExecutionTime: executionTime,
		CreatedAt:     s.now(),
	}

	s.mu.Lock()
	s.nextOrder++
	s.entries[task.ID] = &queueEntry{
		task:  task,
		order: s.nextOrder,
		state: EntryPending,
	}
	s.mu.Unlock()

	log.Printf("Enqueued task %s for agent %s", task.ID, agentID)
	communication.BroadcastTaskLifecycle(s.bus, task.ID, agentID, communication.TaskEnqueued, "")
	return task, nil
}

// Cancel marks a pending entry as cancelled. Entries that already left the
// pending state (dispatched or previously cancelled) are refused.
func (s *Scheduler) Cancel(taskID string) error {
	s.mu.Lock()
	entry, exists := s.entries[taskID]
	if !exists {
		s.mu.Unlock()
		// Dispatched entries are dropped from the queue once their record
		// lands in the history; a late cancel still gets the right answer.
		if s.history.Contains(taskID) {
			return core.ErrTaskAlreadyDispatched
		}
		return core.ErrTaskNotFound
	}
	if entry.state != EntryPending {
		s.mu.Unlock()
		return core.ErrTaskAlreadyDispatched
	}
	entry.state = EntryCancelled
	agentID := entry.task.AgentID
	s.mu.Unlock()

	log.Printf("Cancelled task %s", taskID)
	communication.BroadcastTaskLifecycle(s.bus, taskID, agentID, communication.TaskCancelled, "")
	return nil
}

// RunOnce performs one scheduler tick: it atomically moves every due
// pending entry out of the pending set, then dispatches them in execution-
// time order (enqueue order breaks ties). Failures inside one dispatch are
// recorded and never disturb the rest of the tick.
func (s *Scheduler) RunOnce(ctx context.Context) []ExecutionRecord {
	now := s.now()

	s.mu.Lock()
	due := make([]*queueEntry, 0)
	for _, entry := range s.entries {
		if entry.state == EntryPending && entry.task.Due(now) {
			entry.state = EntryDispatched
			due = append(due, entry)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(due, func(a, b *queueEntry) int {
		at, bt := effectiveTime(a.task), effectiveTime(b.task)
		if c := at.Compare(bt); c != 0 {
			return c
		}
		return int(a.order) - int(b.order)
	})

	records := make([]ExecutionRecord, 0, len(due))
	for _, entry := range due {
		records = append(records, s.dispatch(ctx, entry.task))

		// The history now answers for this task; keeping the queue entry
		// around would just grow the map one tombstone per dispatch.
		s.mu.Lock()
		delete(s.entries, entry.task.ID)
		s.mu.Unlock()
	}
	return records
}

// effectiveTime orders immediate entries before every timed one.
func effectiveTime(t core.Task) time.Time {
	if t.ExecutionTime == nil {
		return time.Time{}
	}
	return *t.ExecutionTime
}

// ExecuteNow dispatches a task for the agent immediately, bypassing the
// queue. Unknown agents are reported synchronously; execution failures are
// contained in the returned record.
func (s *Scheduler) ExecuteNow(ctx context.Context, agentID string, ec core.Context) (ExecutionRecord, error) {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return ExecutionRecord{}, err
	}
	task := core.Task{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Context:   ec,
		CreatedAt: s.now(),
	}
	return s.dispatch(ctx, task), nil
}

// History exposes the append-only execution log.
func (s *Scheduler) History() *History {
	return s.history
}

// Pending reports how many entries are still awaiting dispatch.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, entry := range s.entries {
		if entry.state == EntryPending {
			n++
		}
	}
	return n
}

// Start drives RunOnce on the given interval until Stop is called.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("Scheduler run loop started (tick every %s)", interval)
		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopCh:
				log.Println("Scheduler run loop stopped")
				return
			}
		}
	}()
}

// Stop halts the run loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if started {
		<-s.doneCh
	}
}

// dispatch runs one task end to end: registry lookup, activation check,
// bounded execution, consensus evaluation, history append. Every failure
// path lands in the record, never in the caller.
func (s *Scheduler) dispatch(ctx context.Context, task core.Task) ExecutionRecord {
	started := s.now()
	communication.BroadcastTaskLifecycle(s.bus, task.ID, task.AgentID, communication.TaskDispatched, "")

	rec := ExecutionRecord{
		TaskID:    task.ID,
		AgentID:   task.AgentID,
		StartedAt: started,
		Verdict:   consensus.VerdictNotApplicable,
	}

	agent, state, err := s.registry.AgentForDispatch(task.AgentID)
	switch {
	case err != nil:
		s.fail(&rec, FailureAgentNotFound, core.ErrAgentNotFound)
	case state != core.StateActive:
		s.fail(&rec, FailureAgentInactive, core.ErrAgentInactive)
	default:
		output, execErr := s.execute(ctx, agent, task)
		if execErr != nil {
			kind := FailureExecutionError
			if errors.Is(execErr, core.ErrExecutionTimeout) {
				kind = FailureExecutionTimeout
			}
			s.fail(&rec, kind, execErr)
		} else {
			rec.Status = StatusCompleted
			rec.Output = output
			result := s.panel.Evaluate(ctx, output, task.Context)
			rec.Verdict = result.Verdict
			rec.Judgments = result.Judgments
			s.broadcastConsensus(task, result)
		}
	}

	rec.CompletedAt = s.now()
	stored := s.history.Append(rec)

	s.registry.RecordExecution(task.AgentID, registry.ExecutionSummary{
		TaskID:      task.ID,
		CompletedAt: stored.CompletedAt,
		Failed:      stored.Status == StatusFailed,
	})

	phase := communication.TaskCompleted
	if stored.Status == StatusFailed {
		phase = communication.TaskFailed
	}
	communication.BroadcastTaskLifecycle(s.bus, task.ID, task.AgentID, phase, stored.Failure)
	return stored
}

func (s *Scheduler) fail(rec *ExecutionRecord, kind string, err error) {
	log.Printf("Task %s failed (%s): %v", rec.TaskID, kind, err)
	rec.Status = StatusFailed
	rec.FailureKind = kind
	rec.Failure = err.Error()
}

// execute invokes the agent behind a timeout and a panic boundary. The
// goroutine is handed a context that expires with the deadline, but the
// scheduler does not wait past the deadline even for agents that ignore it.
func (s *Scheduler) execute(ctx context.Context, agent core.Agent, task core.Task) (any, error) {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		output, err := agent.Execute(execCtx, task.Context)
		ch <- outcome{output: output, err: err}
	}()

	select {
	case res := <-ch:
		return res.output, res.err
	case <-execCtx.Done():
		return nil, fmt.Errorf("%w after %s", core.ErrExecutionTimeout, s.timeout)
	}
}

func (s *Scheduler) broadcastConsensus(task core.Task, result consensus.Result) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(communication.SubjectConsensus, communication.ConsensusEvent{
		TaskID:    task.ID,
		AgentID:   task.AgentID,
		Verdict:   string(result.Verdict),
		Approvals: result.Approvals,
		Quorum:    result.Quorum,
		Judgments: result.Judgments,
		Timestamp: time.Now(),
	})
}
