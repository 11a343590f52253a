// Package handler provides HTTP handlers for the Aegis API.
package handler

import (
	"net/http"

	"aegis/core/models"
	"aegis/core/service"

	"github.com/gin-gonic/gin"
)

// HealingHandler handles health-check and self-healing HTTP requests.
type HealingHandler struct {
	healthService  *service.HealthService
	healingService *service.HealingService
}

// NewHealingHandler creates a new healing handler.
func NewHealingHandler(healthService *service.HealthService, healingService *service.HealingService) *HealingHandler {
	return &HealingHandler{
		healthService:  healthService,
		healingService: healingService,
	}
}

// healRequest is the body of POST /aegis/healing.
type healRequest struct {
	Action string `json:"action" binding:"required"`
}

// Heal handles POST /aegis/healing, dispatching on the action field:
//   - health_check: run all probes, return results and a severity summary
//   - execute_healing: probe, remediate, return actions and outcome counts
//   - auto_heal: the composition, with an overall success rate
func (h *HealingHandler) Heal(c *gin.Context) {
	var req healRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Request body must contain an action field",
		})
		return
	}

	ctx := c.Request.Context()

	switch req.Action {
	case "health_check":
		results := h.healthService.PerformHealthCheck(ctx)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"results": results,
			"summary": models.Summarize(results),
		})

	case "execute_healing":
		results := h.healthService.PerformHealthCheck(ctx)
		actions := h.healingService.ExecuteHealing(ctx, results)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"actions": nonNilActions(actions),
			"summary": models.SummarizeActions(actions),
		})

	case "auto_heal":
		results := h.healthService.PerformHealthCheck(ctx)
		actions := h.healingService.ExecuteHealing(ctx, results)
		summary := models.SummarizeActions(actions)
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"healthCheck":    results,
			"healingActions": nonNilActions(actions),
			"summary": gin.H{
				"issuesFound":     countIssues(results),
				"actionsExecuted": summary.Total,
				"successRate":     summary.SuccessRate(),
			},
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown action: " + req.Action,
		})
	}
}

// Query handles GET /aegis/healing. Without a type parameter it answers a
// discovery document; ?type=status and ?type=history are the read-only
// queries.
func (h *HealingHandler) Query(c *gin.Context) {
	switch c.Query("type") {
	case "":
		c.JSON(http.StatusOK, gin.H{
			"service": "aegis-self-healing",
			"operations": gin.H{
				"POST": []string{"health_check", "execute_healing", "auto_heal"},
				"GET":  []string{"status", "history"},
			},
		})

	case "status":
		summary, lastChecked, checked := h.healthService.LastSummary()
		body := gin.H{
			"success": true,
			"status":  summary,
		}
		if checked {
			body["last_checked"] = lastChecked
		}
		c.JSON(http.StatusOK, body)

	case "history":
		history, count, err := h.healingService.History()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to load healing history",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"history": nonNilActions(history),
			"count":   count,
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown query type: " + c.Query("type"),
		})
	}
}

// nonNilActions keeps empty action lists as [] on the wire.
func nonNilActions(actions []*models.SelfHealingAction) []*models.SelfHealingAction {
	if actions == nil {
		return []*models.SelfHealingAction{}
	}
	return actions
}

// countIssues totals the detected issues across a result set.
func countIssues(results []models.HealthCheckResult) int {
	total := 0
	for _, r := range results {
		total += len(r.Issues)
	}
	return total
}
