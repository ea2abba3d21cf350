package brain

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"tecbrilho.app/erika/internal/model"
)

// The assistant appends its structured directive behind a two-token wire
// protocol: a start sentinel line and an optional end sentinel line.
const (
	ActionStartSentinel = "### ERIKA_ACTION"
	ActionEndSentinel   = "### END_ERIKA_ACTION"
)

// DefaultGreeting replaces an empty visible reply so the customer never
// receives a blank message.
const DefaultGreeting = "Olá! Sou a Erika, da TecBrilho. Como posso ajudar?"

// SplitOutput separates the assistant's raw text into the customer-visible
// reply and the optional action directive.
//
// The split happens at the last occurrence of the start sentinel, so the
// sentinel text appearing incidentally in conversation does not eat the reply.
// A malformed or empty action block degrades to a nil directive; it is logged
// and never surfaces as an error, because the visible reply must always reach
// the customer. VisibleText is never empty: a blank reply becomes the default
// greeting.
func SplitOutput(ctx context.Context, raw string) model.AssistantReply {
	reply := model.AssistantReply{VisibleText: strings.TrimSpace(raw)}

	if idx := strings.LastIndex(raw, ActionStartSentinel); idx >= 0 {
		reply.VisibleText = strings.TrimSpace(raw[:idx])
		reply.Action = parseActionBlock(ctx, raw[idx+len(ActionStartSentinel):])
	}

	if reply.VisibleText == "" {
		reply.VisibleText = DefaultGreeting
	}
	return reply
}

func parseActionBlock(ctx context.Context, block string) *model.ActionDirective {
	if end := strings.Index(block, ActionEndSentinel); end >= 0 {
		block = block[:end]
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}

	var action model.ActionDirective
	if err := json.Unmarshal([]byte(block), &action); err != nil {
		slog.WarnContext(ctx, "assistant action block unparsable, ignoring",
			"error", err,
			"block_len", len(block),
		)
		return nil
	}
	if action.Empty() {
		return nil
	}
	return &action
}
