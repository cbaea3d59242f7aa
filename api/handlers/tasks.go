package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/scheduler"
)

// ExecuteTaskRequest runs a task against an agent immediately.
type ExecuteTaskRequest struct {
	AgentID string         `json:"agent_id" binding:"required"`
	Context map[string]any `json:"context,omitempty"`
}

// ExecuteTask dispatches a task synchronously and returns its execution
// record, consensus verdict included.
func (e *Env) ExecuteTask(c *gin.Context) {
	var req ExecuteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := e.Scheduler.ExecuteNow(c.Request.Context(), req.AgentID, core.Context(req.Context))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ScheduleTaskRequest defers a task, optionally to a future time.
type ScheduleTaskRequest struct {
	AgentID       string         `json:"agent_id" binding:"required"`
	Context       map[string]any `json:"context,omitempty"`
	ExecutionTime *time.Time     `json:"execution_time,omitempty"`
}

// ScheduleTask enqueues a task for the run loop and returns the assigned id.
func (e *Env) ScheduleTask(c *gin.Context) {
	var req ScheduleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := e.Scheduler.Enqueue(req.AgentID, core.Context(req.Context), req.ExecutionTime)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"task_id":        task.ID,
		"agent_id":       task.AgentID,
		"execution_time": task.ExecutionTime,
	})
}

// CancelTask withdraws a still-pending scheduled task.
func (e *Env) CancelTask(c *gin.Context) {
	id := c.Param("id")
	if err := e.Scheduler.Cancel(id); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task cancelled", "task_id": id})
}

// TaskHistory returns execution records, most recent first.
func (e *Env) TaskHistory(c *gin.Context) {
	agentID := c.Query("agent_id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records := make([]scheduler.ExecutionRecord, 0)
	for record := range e.Scheduler.History().All(agentID, limit) {
		records = append(records, record)
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}
