package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats returns a point-in-time system snapshot.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stats.Snapshot())
}

// GetHealth is the liveness probe.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": h.Hub.ClientCount(),
	})
}
