package api

import (
	"github.com/gin-gonic/gin"

	"github.com/chronoeffector/orchestrator/api/handlers"
)

// SetupRoutes mounts the orchestrator endpoints on the router.
func SetupRoutes(router *gin.Engine, env *handlers.Env) {
	v1 := router.Group("/api/v1")

	v1.POST("/agents", env.DeployAgent)
	v1.GET("/agents", env.ListAgents)
	v1.GET("/agents/:id", env.AgentInfo)
	v1.POST("/agents/:id/verify", env.VerifyAgent)
	v1.GET("/agents/verification", env.VerificationReport)
	v1.POST("/agents/:id/activate", env.ActivateAgent)
	v1.POST("/agents/:id/deactivate", env.DeactivateAgent)
	v1.DELETE("/agents/:id", env.UnloadAgent)

	v1.POST("/agents/:id/stake", env.DepositStake)
	v1.POST("/agents/:id/withdraw", env.WithdrawStake)
	v1.GET("/agents/:id/stake", env.StakeBalance)

	v1.POST("/tasks/execute", env.ExecuteTask)
	v1.POST("/tasks/schedule", env.ScheduleTask)
	v1.DELETE("/tasks/:id", env.CancelTask)
	v1.GET("/tasks/history", env.TaskHistory)

	v1.GET("/ws", env.HandleWebSocket)
}
