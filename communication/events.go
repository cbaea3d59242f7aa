package communication

import "time"

// Event subjects published by the core.
const (
	SubjectAgentLifecycle = "AGENT_LIFECYCLE"
	SubjectTaskLifecycle  = "TASK_LIFECYCLE"
	SubjectConsensus      = "CONSENSUS"
)

// Agent lifecycle phases.
const (
	AgentRegistered  = "registered"
	AgentActivated   = "activated"
	AgentDeactivated = "deactivated"
	AgentUnloaded    = "unloaded"
)

// Task lifecycle phases.
const (
	TaskEnqueued   = "enqueued"
	TaskDispatched = "dispatched"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
	TaskCancelled  = "cancelled"
)

// AgentLifecycleEvent reports a registry transition.
type AgentLifecycleEvent struct {
	AgentID   string    `json:"agent_id"`
	Phase     string    `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskLifecycleEvent reports a scheduler transition.
type TaskLifecycleEvent struct {
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Phase     string    `json:"phase"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsensusEvent reports the per-validator judgments and final verdict for
// one dispatched task.
type ConsensusEvent struct {
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Verdict   string    `json:"verdict"`
	Approvals int       `json:"approvals"`
	Quorum    int       `json:"quorum"`
	Judgments any       `json:"judgments"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastAgentLifecycle publishes an agent lifecycle event, dropping it
// silently when no bus is configured.
func BroadcastAgentLifecycle(bus Bus, agentID, phase string) {
	if bus == nil {
		return
	}
	_ = bus.Publish(SubjectAgentLifecycle, AgentLifecycleEvent{
		AgentID:   agentID,
		Phase:     phase,
		Timestamp: time.Now(),
	})
}

// BroadcastTaskLifecycle publishes a task lifecycle event.
func BroadcastTaskLifecycle(bus Bus, taskID, agentID, phase, detail string) {
	if bus == nil {
		return
	}
	_ = bus.Publish(SubjectTaskLifecycle, TaskLifecycleEvent{
		TaskID:    taskID,
		AgentID:   agentID,
		Phase:     phase,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}
