package brain

import (
	"context"
	"log/slog"

	"tecbrilho.app/erika/core/config"
	"tecbrilho.app/erika/internal/model"
)

// NotePrefix labels agent-authored notes inside Kommo.
const NotePrefix = "🤖 Erika: "

// FallbackApology is delivered to widget callers when the assistant itself
// failed; the synchronous caller must never be left hanging.
const FallbackApology = "Desculpe, estou com uma instabilidade agora. Já volto a te responder por aqui!"

// CrmActions is the slice of the CRM gateway the interpreter drives.
type CrmActions interface {
	CreateNote(ctx context.Context, leadID int64, text string) error
	UpdateStage(ctx context.Context, leadID int64, statusID int64) error
	RunSalesbot(ctx context.Context, botID, leadID int64) error
	SendWidgetReply(ctx context.Context, returnURL, token, message string) error
}

// ApplyInput is one interpreted event: the parsed assistant output plus the
// request context the side effects need.
type ApplyInput struct {
	LeadID      *int64
	VisibleText string
	Action      *model.ActionDirective
	Widget      *model.WidgetCallback

	// AssistantFailed marks an upstream gateway failure. Notes and stage
	// moves are skipped, but a widget caller still gets the apology.
	AssistantFailed bool

	// AllowReactivate enables the outbound send for action.Reactivate. Only
	// the periodic reactivation flow sets it; the live webhook flow never
	// sends outbound messages on its own.
	AllowReactivate bool
}

// Interpreter resolves an action directive into CRM side effects. Every step
// is independently best-effort: failures become StepStatus values in the
// Report and never abort the remaining steps.
type Interpreter struct {
	crm          CrmActions
	stages       config.StageCatalog
	salesbotID   int64
	notesEnabled bool
	logger       *slog.Logger
}

func NewInterpreter(crm CrmActions, kommoCfg config.KommoConfig, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		crm:          crm,
		stages:       kommoCfg.Stages,
		salesbotID:   kommoCfg.SalesbotID,
		notesEnabled: kommoCfg.Enabled(),
		logger:       logger,
	}
}

// Apply runs the side-effect chain and returns the per-step outcomes. It
// never returns an error.
func (i *Interpreter) Apply(ctx context.Context, in ApplyInput) model.Report {
	report := model.Report{
		ReplyNote:   model.StepSkipped,
		SummaryNote: model.StepSkipped,
		StageUpdate: model.StepSkipped,
		Outbound:    model.StepSkipped,
	}

	if !in.AssistantFailed {
		report.ReplyNote = i.writeReplyNote(ctx, in)
		report.SummaryNote = i.writeSummaryNote(ctx, in)
		report.StageUpdate = i.moveStage(ctx, in)
		report.Outbound = i.sendOutbound(ctx, in)
	}

	if in.Widget != nil {
		report.Callback = i.deliverWidgetReply(ctx, in)
	}

	return report
}

func (i *Interpreter) writeReplyNote(ctx context.Context, in ApplyInput) model.StepStatus {
	if in.LeadID == nil || !i.notesEnabled {
		return model.StepSkipped
	}
	if err := i.crm.CreateNote(ctx, *in.LeadID, NotePrefix+in.VisibleText); err != nil {
		i.logger.ErrorContext(ctx, "reply note failed", "error", err, "lead_id", *in.LeadID)
		return model.StepFailed(err)
	}
	return model.StepOK
}

func (i *Interpreter) writeSummaryNote(ctx context.Context, in ApplyInput) model.StepStatus {
	if in.Action == nil || in.Action.SummaryNote == "" || in.LeadID == nil || !i.notesEnabled {
		return model.StepSkipped
	}
	if err := i.crm.CreateNote(ctx, *in.LeadID, NotePrefix+in.Action.SummaryNote); err != nil {
		i.logger.ErrorContext(ctx, "summary note failed", "error", err, "lead_id", *in.LeadID)
		return model.StepFailed(err)
	}
	return model.StepOK
}

func (i *Interpreter) moveStage(ctx context.Context, in ApplyInput) model.StepStatus {
	if in.Action == nil || in.Action.SuggestedStage == "" || in.LeadID == nil || !i.notesEnabled {
		return model.StepSkipped
	}
	statusID, ok := i.stages.Resolve(in.Action.SuggestedStage)
	if !ok {
		i.logger.InfoContext(ctx, "suggested stage not in catalog, skipping",
			"stage", in.Action.SuggestedStage)
		return model.StepSkipped
	}
	if err := i.crm.UpdateStage(ctx, *in.LeadID, statusID); err != nil {
		i.logger.ErrorContext(ctx, "stage update failed",
			"error", err, "lead_id", *in.LeadID, "status_id", statusID)
		return model.StepFailed(err)
	}
	return model.StepOK
}

func (i *Interpreter) sendOutbound(ctx context.Context, in ApplyInput) model.StepStatus {
	if !in.AllowReactivate || in.Action == nil || !in.Action.Reactivate || in.LeadID == nil {
		return model.StepSkipped
	}
	if i.salesbotID == 0 || !i.notesEnabled {
		i.logger.InfoContext(ctx, "reactivation requested but no salesbot configured")
		return model.StepSkipped
	}
	if err := i.crm.RunSalesbot(ctx, i.salesbotID, *in.LeadID); err != nil {
		i.logger.ErrorContext(ctx, "salesbot run failed", "error", err, "lead_id", *in.LeadID)
		return model.StepFailed(err)
	}
	return model.StepOK
}

func (i *Interpreter) deliverWidgetReply(ctx context.Context, in ApplyInput) model.StepStatus {
	message := in.VisibleText
	if in.AssistantFailed || message == "" {
		message = FallbackApology
	}
	if err := i.crm.SendWidgetReply(ctx, in.Widget.ReturnURL, in.Widget.Token, message); err != nil {
		i.logger.ErrorContext(ctx, "widget reply delivery failed",
			"error", err, "return_url", in.Widget.ReturnURL)
		return model.StepFailed(err)
	}
	return model.StepOK
}
