package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chronoeffector/orchestrator/core"
	"github.com/chronoeffector/orchestrator/loader"
	"github.com/chronoeffector/orchestrator/registry"
)

// DeployAgentRequest mirrors the deploy payload: exactly one specification
// form, an owner wallet, and an optional initial stake.
type DeployAgentRequest struct {
	AgentID     string         `json:"agent_id" binding:"required"`
	WalletID    string         `json:"wallet_id"`
	AgentType   string         `json:"agent_type,omitempty"`
	AgentModule string         `json:"agent_module,omitempty"`
	AgentPath   string         `json:"agent_path,omitempty"`
	AgentSymbol string         `json:"agent_symbol,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	StakeAmount float64        `json:"stake_amount,omitempty"`
	Activate    bool           `json:"activate,omitempty"`
}

// DeployAgent loads an agent from its specification, registers it, and
// optionally stakes and activates it in one call.
func (e *Env) DeployAgent(c *gin.Context) {
	var req DeployAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agent, err := e.Loader.Load(req.AgentID, loader.Spec{
		Type:   req.AgentType,
		Module: req.AgentModule,
		Path:   req.AgentPath,
		Symbol: req.AgentSymbol,
		Config: req.Config,
	})
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	if err := e.Registry.Register(req.AgentID, agent, req.WalletID); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}

	// Deploy is all or nothing: a failed stake or activation rolls the
	// registration (and any deposited stake) back.
	if req.StakeAmount > 0 {
		if err := e.Ledger.Deposit(req.AgentID, req.StakeAmount); err != nil {
			_ = e.Registry.Unload(req.AgentID)
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
	}
	if req.Activate {
		if err := e.Registry.Activate(req.AgentID); err != nil {
			if req.StakeAmount > 0 {
				_ = e.Ledger.Withdraw(req.AgentID, req.StakeAmount)
			}
			_ = e.Registry.Unload(req.AgentID)
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
	}

	record, err := e.Registry.Lookup(req.AgentID)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "agent deployed",
		"agent":   record,
	})
}

// ListAgents returns the registered agents, optionally filtered by
// capability.
func (e *Env) ListAgents(c *gin.Context) {
	capability := c.Query("capability")

	records := make([]registry.AgentRecord, 0)
	for record := range e.Registry.List(capability) {
		records = append(records, record)
	}
	c.JSON(http.StatusOK, gin.H{"agents": records})
}

// AgentInfo returns one agent's metadata, verification results included.
func (e *Env) AgentInfo(c *gin.Context) {
	record, err := e.Registry.Lookup(c.Param("id"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// VerifyAgentRequest carries the test contexts a verification pass runs.
type VerifyAgentRequest struct {
	TestContexts []map[string]any `json:"test_contexts,omitempty"`
}

// VerifyAgent runs the agent against the supplied test contexts and returns
// the full verification report.
func (e *Env) VerifyAgent(c *gin.Context) {
	id := c.Param("id")
	var req VerifyAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contexts := make([]core.Context, 0, len(req.TestContexts))
	for _, tc := range req.TestContexts {
		contexts = append(contexts, core.Context(tc))
	}

	report, err := e.Verifier.Verify(c.Request.Context(), id, contexts)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// VerificationReport returns the stored report for one agent, or the
// all-agents summary when no id is given.
func (e *Env) VerificationReport(c *gin.Context) {
	if id := c.Query("agent_id"); id != "" {
		report, err := e.Verifier.Report(id)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": e.Verifier.Summary()})
}

// ActivateAgent transitions an agent to Active, stake permitting.
func (e *Env) ActivateAgent(c *gin.Context) {
	id := c.Param("id")
	if err := e.Registry.Activate(id); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent activated", "agent_id": id})
}

// DeactivateAgent transitions an Active agent to Deactivated.
func (e *Env) DeactivateAgent(c *gin.Context) {
	id := c.Param("id")
	if err := e.Registry.Deactivate(id); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent deactivated", "agent_id": id})
}

// UnloadAgent removes a non-active agent from the registry.
func (e *Env) UnloadAgent(c *gin.Context) {
	id := c.Param("id")
	if err := e.Registry.Unload(id); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "agent unloaded", "agent_id": id})
}
