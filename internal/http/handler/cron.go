package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"tecbrilho.app/erika/internal/service"
)

// ReactivationService is what the cron handler needs from the batch runner.
type ReactivationService interface {
	Run(ctx context.Context) ([]service.LeadResult, error)
}

// CronHandler guards the periodic entry points behind a shared secret.
type CronHandler struct {
	reactivation ReactivationService
	secret       string
}

func NewCronHandler(reactivation ReactivationService, secret string) *CronHandler {
	return &CronHandler{reactivation: reactivation, secret: secret}
}

func (h *CronHandler) HandleReactivate(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cron secret not configured"})
		return
	}
	provided := c.GetHeader("X-Cron-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
		return
	}

	results, err := h.reactivation.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"processed": len(results),
		"results":   results,
	})
}
