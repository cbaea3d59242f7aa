package core

import "time"

// Task is an immutable unit of work targeting a registered agent.
// ExecutionTime of nil means "run on the next tick".
type Task struct {
	ID            string     `json:"id"`
	AgentID       string     `json:"agent_id"`
	Context       Context    `json:"context,omitempty"`
	ExecutionTime *time.Time `json:"execution_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Due reports whether the task is eligible for dispatch at now.
// Tasks without an execution time, or with one in the past, are due.
func (t Task) Due(now time.Time) bool {
	return t.ExecutionTime == nil || !t.ExecutionTime.After(now)
}
