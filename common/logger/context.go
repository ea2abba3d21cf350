package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context, so a handler can stamp the lead id once and every downstream log
// line carries it.
type LogFields struct {
	RequestID *int64  // correlation id minted by the request-id middleware
	LeadID    *int64  // Kommo lead the event belongs to
	Subdomain *string // claimed Kommo account subdomain
	Component string  // component name, e.g. "erika.service.conversation"
}

// WithLogFields enriches context with structured log fields. Multiple calls
// merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context, empty if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	if new.RequestID != nil {
		existing.RequestID = new.RequestID
	}
	if new.LeadID != nil {
		existing.LeadID = new.LeadID
	}
	if new.Subdomain != nil {
		existing.Subdomain = new.Subdomain
	}
	if new.Component != "" {
		existing.Component = new.Component
	}
	return existing
}
