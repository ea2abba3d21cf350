package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tecbrilho.app/erika/internal/mapper"
	"tecbrilho.app/erika/internal/service"
)

// ConversationService is what the handler needs from the pipeline.
type ConversationService interface {
	Handle(ctx context.Context, rawBody []byte, contentType string) (*service.WebhookResult, error)
}

type KommoWebhookHandler struct {
	conversation ConversationService
}

func NewKommoWebhookHandler(conversation ConversationService) *KommoWebhookHandler {
	return &KommoWebhookHandler{conversation: conversation}
}

// HandleEvent accepts both the JSON and the form-encoded Kommo webhook
// variants plus the synchronous widget callback. Decoding decisions belong to
// the mapper; the handler only reads bytes and translates errors to statuses.
func (h *KommoWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	contentType := c.ContentType()
	slog.InfoContext(ctx, "received kommo webhook",
		"content_type", contentType,
		"body_len", len(body),
	)

	result, err := h.conversation.Handle(ctx, body, contentType)
	if err != nil {
		switch {
		case errors.Is(err, mapper.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		case errors.Is(err, mapper.ErrUnauthorizedSource):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized subdomain"})
		case errors.Is(err, service.ErrAssistantFailure):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assistant call failed"})
		default:
			slog.ErrorContext(ctx, "failed to process kommo webhook", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
