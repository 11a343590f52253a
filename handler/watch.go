// Package handler provides HTTP handlers for the Aegis API.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"aegis/core/models"
	"aegis/core/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WatchHandler streams live health-check rounds over WebSocket.
type WatchHandler struct {
	healthService *service.HealthService
	upgrader      websocket.Upgrader
}

// NewWatchHandler creates a new watch handler.
func NewWatchHandler(healthService *service.HealthService) *WatchHandler {
	return &WatchHandler{
		healthService: healthService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// healthRound is one streamed health-check result set.
type healthRound struct {
	Results   []models.HealthCheckResult `json:"results"`
	Summary   models.HealthSummary       `json:"summary"`
	Timestamp time.Time                  `json:"timestamp"`
}

// Watch handles GET /aegis/healing/watch (WebSocket)
// Query parameters:
//   - interval: duration between health-check rounds (default "10s", minimum "2s")
func (h *WatchHandler) Watch(c *gin.Context) {
	interval := 10 * time.Second
	if raw := c.Query("interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid interval: " + raw,
			})
			return
		}
		if parsed < 2*time.Second {
			parsed = 2 * time.Second
		}
		interval = parsed
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Handle WebSocket close messages
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results := h.healthService.PerformHealthCheck(ctx)
		round := healthRound{
			Results:   results,
			Summary:   models.Summarize(results),
			Timestamp: time.Now(),
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(round); err != nil {
			log.Printf("Health watch stream closed: %v", err)
			return
		}

		select {
		case <-ctx.Done():
			log.Println("Health watch cancelled")
			return
		case <-ticker.C:
		}
	}
}
