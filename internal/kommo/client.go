package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tecbrilho.app/erika/core/config"
	"tecbrilho.app/erika/internal/model"
)

// Client talks to the Kommo v4 REST API and to widget return addresses.
// Every call is a single attempt with the transport timeout as the only
// bound; retries are the caller's problem (and the callers deliberately
// don't retry).
type Client struct {
	domain     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.KommoConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		domain: cfg.Domain,
		token:  cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// CreateNote writes a common note on a lead. The API takes a single-element
// list even for one note.
func (c *Client) CreateNote(ctx context.Context, leadID int64, text string) error {
	body := []map[string]any{
		{
			"entity_id": leadID,
			"note_type": "common",
			"params":    map[string]string{"text": text},
		},
	}
	return c.do(ctx, http.MethodPost, c.domain+"/api/v4/leads/notes", body)
}

// UpdateStage moves a lead to the given pipeline status.
func (c *Client) UpdateStage(ctx context.Context, leadID int64, statusID int64) error {
	body := map[string]int64{"status_id": statusID}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("%s/api/v4/leads/%d", c.domain, leadID), body)
}

// RunSalesbot launches a salesbot on a lead, which is how an outbound message
// reaches the lead's chat channel.
func (c *Client) RunSalesbot(ctx context.Context, botID, leadID int64) error {
	body := []map[string]any{
		{
			"bot_id":      botID,
			"entity_id":   leadID,
			"entity_type": 2, // leads
		},
	}
	return c.do(ctx, http.MethodPost, c.domain+"/api/v2/salesbot/run", body)
}

// ListLeadsByStatus returns up to limit leads sitting in the given pipeline
// status, for the reactivation batch.
func (c *Client) ListLeadsByStatus(ctx context.Context, statusID int64, limit int) ([]model.Lead, error) {
	query := url.Values{}
	query.Set("filter[statuses][0][status_id]", strconv.FormatInt(statusID, 10))
	query.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.domain+"/api/v4/leads?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer resp.Body.Close()

	// Kommo answers 204 with no body when the filter matches nothing.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing leads: kommo returned %d", resp.StatusCode)
	}

	var payload struct {
		Embedded struct {
			Leads []model.Lead `json:"leads"`
		} `json:"_embedded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding leads: %w", err)
	}
	return payload.Embedded.Leads, nil
}

// SendWidgetReply POSTs the visible reply back to a widget return address in
// the shape the widget runtime expects. Unauthenticated: the token field is
// the correlation secret.
func (c *Client) SendWidgetReply(ctx context.Context, returnURL, token, message string) error {
	body := map[string]any{
		"token": token,
		"data":  map[string]string{"message": message},
		"execute_handlers": []map[string]any{
			{
				"handler": "show",
				"params":  map[string]string{"type": "text", "value": message},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal widget reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, returnURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting widget reply: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("widget endpoint returned %d", resp.StatusCode)
	}

	c.logger.DebugContext(ctx, "widget reply delivered", "status", resp.StatusCode)
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: kommo returned %d", method, rawURL, resp.StatusCode)
	}
	return nil
}
