package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StakeRequest carries a deposit or withdrawal amount.
type StakeRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// DepositStake adds stake to an agent's balance.
func (e *Env) DepositStake(c *gin.Context) {
	id := c.Param("id")
	var req StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := e.Ledger.Deposit(id, req.Amount); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	balance, _ := e.Ledger.Balance(id)
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "balance": balance})
}

// WithdrawStake removes stake from an agent's balance. A full withdrawal
// clears the ledger entry; the registry still requires deactivation before
// unload.
func (e *Env) WithdrawStake(c *gin.Context) {
	id := c.Param("id")
	var req StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := e.Ledger.Withdraw(id, req.Amount); err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	balance, err := e.Ledger.Balance(id)
	if err != nil {
		balance = 0
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "balance": balance})
}

// StakeBalance reports an agent's current staked balance.
func (e *Env) StakeBalance(c *gin.Context) {
	id := c.Param("id")
	balance, err := e.Ledger.Balance(id)
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "balance": balance})
}
