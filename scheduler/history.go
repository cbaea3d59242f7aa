package scheduler

import (
	"iter"
	"sync"
	"time"

	"github.com/chronoeffector/orchestrator/consensus"
)

// Status is the terminal outcome of a dispatched task.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Failure kinds recorded on failed executions.
const (
	FailureAgentNotFound    = "agent_not_found"
	FailureAgentInactive    = "agent_inactive"
	FailureExecutionError   = "execution_error"
	FailureExecutionTimeout = "execution_timeout"
)

// ExecutionRecord is the immutable outcome of one dispatched task. Records
// are appended in completion order and never mutated afterwards.
type ExecutionRecord struct {
	Seq         uint64               `json:"seq"`
	TaskID      string               `json:"task_id"`
	AgentID     string               `json:"agent_id"`
	Status      Status               `json:"status"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	Output      any                  `json:"output,omitempty"`
	Failure     string               `json:"failure,omitempty"`
	FailureKind string               `json:"failure_kind,omitempty"`
	Verdict     consensus.Verdict    `json:"verdict"`
	Judgments   []consensus.Judgment `json:"judgments,omitempty"`
}

// History is the append-only execution log. A monotonic sequence number is
// assigned at append time; reads hand out copies, so a record can never be
// reordered or rewritten once visible.
type History struct {
	mu      sync.RWMutex
	records []ExecutionRecord
	tasks   map[string]struct{}
	nextSeq uint64
}

func NewHistory() *History {
	return &History{
		tasks: make(map[string]struct{}),
	}
}

// Append stamps the record with the next sequence number and stores it.
func (h *History) Append(rec ExecutionRecord) ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	rec.Seq = h.nextSeq
	h.records = append(h.records, rec)
	h.tasks[rec.TaskID] = struct{}{}
	return rec
}

// Contains reports whether a record was ever appended for the task id.
func (h *History) Contains(taskID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.tasks[taskID]
	return ok
}

// Len returns the number of recorded executions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// All yields execution records most-recent-first, optionally filtered by
// agent id, up to limit records (limit <= 0 means no limit). The snapshot
// is taken under one lock acquisition.
func (h *History) All(agentID string, limit int) iter.Seq[ExecutionRecord] {
	h.mu.RLock()
	out := make([]ExecutionRecord, 0, len(h.records))
	for i := len(h.records) - 1; i >= 0; i-- {
		rec := h.records[i]
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	h.mu.RUnlock()

	return func(yield func(ExecutionRecord) bool) {
		for _, rec := range out {
			if !yield(rec) {
				return
			}
		}
	}
}
