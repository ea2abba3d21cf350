package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tecbrilho.app/erika/common/logger"
	"tecbrilho.app/erika/internal/brain"
	"tecbrilho.app/erika/internal/llm"
	"tecbrilho.app/erika/internal/mapper"
	"tecbrilho.app/erika/internal/model"
)

// ErrAssistantFailure marks an assistant gateway failure on the live webhook
// path, where the handler turns it into a 500. Widget events never surface it;
// they get the apology delivery instead.
var ErrAssistantFailure = errors.New("assistant failure")

// AssistantGateway is the consumer-side view of the LLM client.
type AssistantGateway interface {
	Reply(ctx context.Context, userMessage string, meta llm.Meta) (string, error)
}

// ActionInterpreter is the consumer-side view of the brain interpreter.
type ActionInterpreter interface {
	Apply(ctx context.Context, in brain.ApplyInput) model.Report
}

// Normalizer is the consumer-side view of the payload mapper.
type Normalizer interface {
	Normalize(ctx context.Context, rawBody []byte, contentType string) (*model.InboundEvent, error)
}

// WebhookResult is the response body of one processed webhook delivery.
type WebhookResult struct {
	Status     string `json:"status"` // "ok" or "ignored"
	Reason     string `json:"reason,omitempty"`
	LeadID     *int64 `json:"lead_id,omitempty"`
	AIResponse string `json:"ai_response,omitempty"`
	model.Report
}

// ConversationService runs the full pipeline for one inbound event:
// normalize, ask the assistant, split its output, interpret the directive.
type ConversationService struct {
	normalizer  Normalizer
	assistant   AssistantGateway
	interpreter ActionInterpreter
	logger      *slog.Logger
}

func NewConversationService(normalizer Normalizer, assistant AssistantGateway, interpreter ActionInterpreter, log *slog.Logger) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{
		normalizer:  normalizer,
		assistant:   assistant,
		interpreter: interpreter,
		logger:      log,
	}
}

// Handle processes one webhook delivery start to finish. The only errors it
// returns are mapper.ErrMalformedPayload, mapper.ErrUnauthorizedSource and
// ErrAssistantFailure; everything downstream of the assistant is best-effort
// and reported inside the result.
func (s *ConversationService) Handle(ctx context.Context, rawBody []byte, contentType string) (*WebhookResult, error) {
	sc := logger.StartSpan(ctx, "erika.conversation.handle")
	defer sc.End()
	ctx = sc.Context()

	event, err := s.normalizer.Normalize(ctx, rawBody, contentType)
	if err != nil {
		return nil, err
	}

	fields := logger.LogFields{Component: "erika.service.conversation"}
	fields.LeadID = event.LeadID
	if event.Subdomain != "" {
		fields.Subdomain = &event.Subdomain
	}
	ctx = logger.WithLogFields(ctx, fields)

	if event.MessageText == "" {
		s.logger.InfoContext(ctx, "event carries no message text, ignoring")
		return &WebhookResult{Status: "ignored", Reason: "no message text", LeadID: event.LeadID}, nil
	}

	raw, err := s.assistant.Reply(ctx, event.MessageText, llm.Meta{
		LeadID:    event.LeadID,
		Phone:     event.Phone,
		Subdomain: event.Subdomain,
	})
	if err != nil {
		sc.RecordError(err)
		s.logger.ErrorContext(ctx, "assistant call failed", "error", err)
		if event.Widget == nil {
			return nil, fmt.Errorf("%w: %v", ErrAssistantFailure, err)
		}
		// The widget caller is waiting synchronously; deliver the apology
		// and answer the webhook 200 so the CRM does not retry.
		report := s.interpreter.Apply(ctx, brain.ApplyInput{
			LeadID:          event.LeadID,
			Widget:          event.Widget,
			AssistantFailed: true,
		})
		return &WebhookResult{
			Status: "ok",
			Reason: "assistant unavailable, fallback delivered",
			LeadID: event.LeadID,
			Report: report,
		}, nil
	}

	reply := brain.SplitOutput(ctx, raw)

	report := s.interpreter.Apply(ctx, brain.ApplyInput{
		LeadID:      event.LeadID,
		VisibleText: reply.VisibleText,
		Action:      reply.Action,
		Widget:      event.Widget,
	})

	s.logger.InfoContext(ctx, "webhook processed",
		"widget", event.Widget != nil,
		"has_action", reply.Action != nil,
		"kommo_note", report.ReplyNote,
		"stage_update", report.StageUpdate,
	)

	return &WebhookResult{
		Status:     "ok",
		LeadID:     event.LeadID,
		AIResponse: reply.VisibleText,
		Report:     report,
	}, nil
}

// compile-time checks that the concrete implementations satisfy the
// consumer-side interfaces.
var _ Normalizer = (*mapper.KommoMapper)(nil)
var _ ActionInterpreter = (*brain.Interpreter)(nil)
