package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tecbrilho.app/erika/common/logger"
	"tecbrilho.app/erika/core/config"
	"tecbrilho.app/erika/internal/brain"
	"tecbrilho.app/erika/internal/llm"
	"tecbrilho.app/erika/internal/model"
)

// ErrReactivationDisabled means no reactivation stage is configured.
var ErrReactivationDisabled = errors.New("reactivation not configured")

// LeadLister is the slice of the CRM gateway the batch needs.
type LeadLister interface {
	ListLeadsByStatus(ctx context.Context, statusID int64, limit int) ([]model.Lead, error)
}

// LeadResult is one lead's outcome within a reactivation batch.
type LeadResult struct {
	LeadID     int64  `json:"lead_id"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"` // "ok" or "failed"
	Error      string `json:"error,omitempty"`
	AIResponse string `json:"ai_response,omitempty"`
	model.Report
}

// ReactivationService walks the leads parked in the configured stage and runs
// one full assistant round trip per lead. Leads are processed sequentially
// and independently: a failure lands in that lead's result entry and the
// batch moves on.
type ReactivationService struct {
	leads       LeadLister
	assistant   AssistantGateway
	interpreter ActionInterpreter
	cfg         config.ReactivationConfig
	logger      *slog.Logger
}

func NewReactivationService(leads LeadLister, assistant AssistantGateway, interpreter ActionInterpreter, cfg config.ReactivationConfig, log *slog.Logger) *ReactivationService {
	if log == nil {
		log = slog.Default()
	}
	return &ReactivationService{
		leads:       leads,
		assistant:   assistant,
		interpreter: interpreter,
		cfg:         cfg,
		logger:      log,
	}
}

// Run executes one batch and returns per-lead results. The returned error
// covers only batch-level problems (misconfiguration, lead listing); per-lead
// failures live inside the result entries.
func (s *ReactivationService) Run(ctx context.Context) ([]LeadResult, error) {
	if !s.cfg.Enabled() {
		return nil, ErrReactivationDisabled
	}

	sc := logger.StartSpan(ctx, "erika.reactivation.run")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "erika.service.reactivation"})

	leads, err := s.leads.ListLeadsByStatus(ctx, s.cfg.StatusID, s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("listing reactivation leads: %w", err)
	}

	s.logger.InfoContext(ctx, "reactivation batch starting", "leads", len(leads))

	results := make([]LeadResult, 0, len(leads))
	for _, lead := range leads {
		results = append(results, s.processLead(ctx, lead))
	}

	return results, nil
}

func (s *ReactivationService) processLead(ctx context.Context, lead model.Lead) LeadResult {
	leadID := lead.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{LeadID: &leadID})

	prompt := s.cfg.Prompt
	if lead.Name != "" {
		prompt = fmt.Sprintf("%s\nNome do cliente: %s", prompt, lead.Name)
	}

	raw, err := s.assistant.Reply(ctx, prompt, llm.Meta{LeadID: &leadID})
	if err != nil {
		s.logger.ErrorContext(ctx, "reactivation assistant call failed", "error", err)
		return LeadResult{LeadID: lead.ID, Name: lead.Name, Status: "failed", Error: err.Error()}
	}

	reply := brain.SplitOutput(ctx, raw)

	report := s.interpreter.Apply(ctx, brain.ApplyInput{
		LeadID:          &leadID,
		VisibleText:     reply.VisibleText,
		Action:          reply.Action,
		AllowReactivate: true,
	})

	return LeadResult{
		LeadID:     lead.ID,
		Name:       lead.Name,
		Status:     "ok",
		AIResponse: reply.VisibleText,
		Report:     report,
	}
}
