package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusHandler answers the liveness probes.
type StatusHandler struct{}

func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

func (h *StatusHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "kommo-middleware",
		"time_utc": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
