package model

// InboundEvent is the canonical form of one Kommo webhook delivery.
// It is produced once by the mapper and never mutated afterwards; nothing
// about it survives the request.
type InboundEvent struct {
	// MessageText is the customer's message. Empty means the event carries
	// nothing to answer and must be ignored.
	MessageText string

	// LeadID is the Kommo lead the conversation belongs to, when the payload
	// carried one.
	LeadID *int64

	// Phone is the best-effort customer phone in +<country><digits> form.
	Phone *string

	// Subdomain is the Kommo account subdomain the webhook claims to come from.
	Subdomain string

	// Widget is set when the payload is a synchronous widget callback that
	// expects the reply to be POSTed back to it.
	Widget *WidgetCallback
}

// WidgetCallback identifies a synchronous widget request: the correlation
// token and the address the visible reply must be delivered to.
type WidgetCallback struct {
	Token     string
	ReturnURL string
}

// AssistantReply is the assistant's raw output split into its two halves.
type AssistantReply struct {
	// VisibleText is the customer-facing message. Never empty: a canned
	// greeting is substituted when the assistant produced no visible text.
	VisibleText string

	// Action is the structured directive embedded after the sentinel, or nil
	// when the assistant issued none (or the block was malformed).
	Action *ActionDirective
}

// ActionDirective is the loosely-typed decision block the assistant may append
// to its reply. Any field may be absent; an unparsable block degrades to a nil
// directive rather than an error.
type ActionDirective struct {
	SummaryNote    string `json:"summary_note,omitempty"`
	SuggestedStage string `json:"suggested_stage,omitempty"`
	Reactivate     bool   `json:"reactivate,omitempty"`
}

// Empty reports whether the directive requests nothing.
func (a *ActionDirective) Empty() bool {
	return a == nil || (a.SummaryNote == "" && a.SuggestedStage == "" && !a.Reactivate)
}
