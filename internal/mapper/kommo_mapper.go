package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"tecbrilho.app/erika/internal/model"
)

var (
	// ErrMalformedPayload means the body decoded as neither JSON nor a form.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnauthorizedSource means the account subdomain failed the allow-list.
	ErrUnauthorizedSource = errors.New("unauthorized source")
)

// messageTextProbes is the versioned priority order for locating the customer
// message across the webhook shapes Kommo has shipped over time. First
// non-empty string wins. A bare string under "message" is the widget data
// block shape.
var messageTextProbes = [][]string{
	{"message", "text"},
	{"text"},
	{"body"},
	{"message"},
	{"last_message", "text"},
}

// leadIDProbes is the priority order for the lead id. The recursive
// entity/element token scan in probeLeadID is the last resort.
var leadIDProbes = [][]string{
	{"lead", "id"},
	{"lead_id"},
	{"entity_id"},
	{"element_id"},
}

// subdomainProbes locates the claimed account subdomain.
var subdomainProbes = [][]string{
	{"account", "subdomain"},
	{"_embedded", "account", "subdomain"},
}

// KommoMapper normalizes heterogeneous Kommo webhook deliveries into one
// canonical InboundEvent.
type KommoMapper struct {
	allowedSubdomain string
	phones           *PhoneExtractor
}

func NewKommoMapper(allowedSubdomain string, phones *PhoneExtractor) *KommoMapper {
	return &KommoMapper{
		allowedSubdomain: allowedSubdomain,
		phones:           phones,
	}
}

// Normalize decodes rawBody according to contentType and maps it to an
// InboundEvent. An event without message text is valid; the caller decides to
// ignore it. Returns ErrMalformedPayload or ErrUnauthorizedSource.
func (m *KommoMapper) Normalize(ctx context.Context, rawBody []byte, contentType string) (*model.InboundEvent, error) {
	payload, err := decodeBody(rawBody, contentType)
	if err != nil {
		return nil, err
	}

	subdomain, _ := probeString(payload, subdomainProbes)
	if m.allowedSubdomain != "" && subdomain != "" && subdomain != m.allowedSubdomain {
		return nil, fmt.Errorf("%w: subdomain %q", ErrUnauthorizedSource, subdomain)
	}

	event := &model.InboundEvent{
		Subdomain: subdomain,
		Widget:    detectWidget(payload),
		Phone:     m.phones.Extract(payload),
	}

	// Widget callbacks carry their message/lead inside the data block;
	// plain webhooks may nest everything under "data" or not at all.
	data := payload
	if nested, ok := payload["data"].(map[string]any); ok {
		data = nested
	}

	event.MessageText, _ = probeString(data, messageTextProbes)
	event.MessageText = strings.TrimSpace(event.MessageText)
	event.LeadID = probeLeadID(data)

	slog.DebugContext(ctx, "webhook normalized",
		"widget", event.Widget != nil,
		"has_text", event.MessageText != "",
		"has_lead", event.LeadID != nil,
		"has_phone", event.Phone != nil,
	)

	return event, nil
}

func decodeBody(rawBody []byte, contentType string) (map[string]any, error) {
	switch {
	case strings.Contains(contentType, "json"):
		return decodeJSON(rawBody)
	case strings.Contains(contentType, "form-urlencoded"):
		return decodeForm(rawBody)
	default:
		// Unknown or absent content type: JSON first, then form.
		if payload, err := decodeJSON(rawBody); err == nil {
			return payload, nil
		}
		return decodeForm(rawBody)
	}
}

func decodeJSON(rawBody []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return payload, nil
}

// decodeForm expands bracketed key paths like "account[subdomain]" into the
// nested shape the JSON variant would have carried. Keys under the "message"
// namespace collapse onto a flat message sub-object (the form variant buries
// them under add/0/, which the probe tables do not address), so
// "message[add][0][text]" lands at message.text.
func decodeForm(rawBody []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(rawBody))
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("%w: not a form body", ErrMalformedPayload)
	}

	payload := make(map[string]any)
	message := make(map[string]any)
	for key, vs := range values {
		if len(vs) == 0 {
			continue
		}
		path := splitBracketPath(key)
		if path[0] == "message" && len(path) > 1 {
			message[path[len(path)-1]] = vs[0]
			continue
		}
		setPath(payload, path, vs[0])
	}
	if len(message) > 0 {
		payload["message"] = message
	}
	return payload, nil
}

// splitBracketPath turns "a[b][0][c]" into ["a" "b" "0" "c"].
func splitBracketPath(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}
	}
	path := []string{key[:open]}
	for _, part := range strings.Split(key[open:], "[") {
		part = strings.TrimSuffix(part, "]")
		if part != "" {
			path = append(path, part)
		}
	}
	return path
}

func setPath(node map[string]any, path []string, value string) {
	for i, part := range path {
		if i == len(path)-1 {
			node[part] = value
			return
		}
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
}

// detectWidget recognizes the synchronous widget callback variant: a
// correlation token, a return address, and a data block.
func detectWidget(payload map[string]any) *model.WidgetCallback {
	token, _ := payload["token"].(string)
	returnURL, _ := payload["return_url"].(string)
	if token == "" || returnURL == "" {
		return nil
	}
	if _, ok := payload["data"]; !ok {
		return nil
	}
	return &model.WidgetCallback{Token: token, ReturnURL: returnURL}
}

// probeString walks each probe path in order and returns the first non-empty
// string leaf.
func probeString(node map[string]any, probes [][]string) (string, bool) {
	for _, path := range probes {
		if s, ok := stringAt(node, path); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func stringAt(node map[string]any, path []string) (string, bool) {
	var current any = node
	for _, part := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	return s, ok
}

func probeLeadID(node map[string]any) *int64 {
	for _, path := range leadIDProbes {
		var current any = node
		found := true
		for _, part := range path {
			m, ok := current.(map[string]any)
			if !ok {
				found = false
				break
			}
			current, ok = m[part]
			if !ok {
				found = false
				break
			}
		}
		if !found {
			continue
		}
		if id, ok := asInt64(current); ok {
			return &id
		}
	}

	// Last resort: message metadata keys carrying an entity/element id token.
	if id, ok := findIDByKeyToken(node, "entity_id", "element_id"); ok {
		return &id
	}
	return nil
}

// findIDByKeyToken walks the tree in sorted-key order looking for the first
// numeric value stored under a key containing one of the tokens. Sorted order
// keeps the result deterministic for identical input.
func findIDByKeyToken(node any, tokens ...string) (int64, bool) {
	switch n := node.(type) {
	case map[string]any:
		for _, key := range sortedKeys(n) {
			lower := strings.ToLower(key)
			for _, token := range tokens {
				if strings.Contains(lower, token) {
					if id, ok := asInt64(n[key]); ok {
						return id, true
					}
				}
			}
		}
		for _, key := range sortedKeys(n) {
			if id, ok := findIDByKeyToken(n[key], tokens...); ok {
				return id, true
			}
		}
	case []any:
		for _, item := range n {
			if id, ok := findIDByKeyToken(item, tokens...); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}
