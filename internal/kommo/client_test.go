package kommo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tecbrilho.app/erika/core/config"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

func newCapturingServer(t *testing.T, status int, responseBody string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.auth = r.Header.Get("Authorization")
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		if responseBody != "" {
			io.WriteString(w, responseBody)
		}
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func newTestClient(domain string) *Client {
	return NewClient(config.KommoConfig{Domain: domain, Token: "secret-token"}, nil)
}

func TestCreateNote(t *testing.T) {
	t.Parallel()

	server, captured := newCapturingServer(t, http.StatusOK, "")
	client := newTestClient(server.URL)

	if err := client.CreateNote(context.Background(), 42, "🤖 Erika: Oi!"); err != nil {
		t.Fatalf("create note: %v", err)
	}

	if captured.method != http.MethodPost || captured.path != "/api/v4/leads/notes" {
		t.Fatalf("request = %s %s", captured.method, captured.path)
	}
	if captured.auth != "Bearer secret-token" {
		t.Fatalf("auth = %q", captured.auth)
	}

	var body []struct {
		EntityID int64  `json:"entity_id"`
		NoteType string `json:"note_type"`
		Params   struct {
			Text string `json:"text"`
		} `json:"params"`
	}
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("notes payload = %d entries, the API takes a single-element list", len(body))
	}
	if body[0].EntityID != 42 || body[0].NoteType != "common" || body[0].Params.Text != "🤖 Erika: Oi!" {
		t.Fatalf("note = %+v", body[0])
	}
}

func TestUpdateStage(t *testing.T) {
	t.Parallel()

	server, captured := newCapturingServer(t, http.StatusOK, "")
	client := newTestClient(server.URL)

	if err := client.UpdateStage(context.Background(), 42, 123); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	if captured.method != http.MethodPatch || captured.path != "/api/v4/leads/42" {
		t.Fatalf("request = %s %s", captured.method, captured.path)
	}
	var body map[string]int64
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status_id"] != 123 {
		t.Fatalf("body = %v", body)
	}
}

func TestUpdateStageAPIError(t *testing.T) {
	t.Parallel()

	server, _ := newCapturingServer(t, http.StatusUnprocessableEntity, "")
	client := newTestClient(server.URL)

	if err := client.UpdateStage(context.Background(), 42, 123); err == nil {
		t.Fatal("expected an error for a 422 response")
	}
}

func TestRunSalesbot(t *testing.T) {
	t.Parallel()

	server, captured := newCapturingServer(t, http.StatusOK, "")
	client := newTestClient(server.URL)

	if err := client.RunSalesbot(context.Background(), 9, 42); err != nil {
		t.Fatalf("run salesbot: %v", err)
	}

	if captured.path != "/api/v2/salesbot/run" {
		t.Fatalf("path = %q", captured.path)
	}
	var body []struct {
		BotID      int64 `json:"bot_id"`
		EntityID   int64 `json:"entity_id"`
		EntityType int   `json:"entity_type"`
	}
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body) != 1 || body[0].BotID != 9 || body[0].EntityID != 42 || body[0].EntityType != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestListLeadsByStatus(t *testing.T) {
	t.Parallel()

	response := `{"_embedded":{"leads":[{"id":1,"name":"Ana","status_id":555},{"id":2,"name":"Bruno","status_id":555}]}}`
	server, captured := newCapturingServer(t, http.StatusOK, response)
	client := newTestClient(server.URL)

	leads, err := client.ListLeadsByStatus(context.Background(), 555, 5)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}

	if captured.path != "/api/v4/leads" {
		t.Fatalf("path = %q", captured.path)
	}
	query := captured.query
	if query == "" {
		t.Fatal("expected a filter query")
	}
	req, _ := http.NewRequest(http.MethodGet, "/?"+query, nil)
	if got := req.URL.Query().Get("filter[statuses][0][status_id]"); got != "555" {
		t.Fatalf("status filter = %q", got)
	}
	if got := req.URL.Query().Get("limit"); got != "5" {
		t.Fatalf("limit = %q", got)
	}

	if len(leads) != 2 || leads[0].ID != 1 || leads[1].Name != "Bruno" {
		t.Fatalf("leads = %+v", leads)
	}
}

func TestListLeadsByStatusEmpty(t *testing.T) {
	t.Parallel()

	// Kommo answers 204 with no body when the stage is empty.
	server, _ := newCapturingServer(t, http.StatusNoContent, "")
	client := newTestClient(server.URL)

	leads, err := client.ListLeadsByStatus(context.Background(), 555, 5)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if leads != nil {
		t.Fatalf("leads = %v, want nil", leads)
	}
}

func TestSendWidgetReply(t *testing.T) {
	t.Parallel()

	server, captured := newCapturingServer(t, http.StatusOK, "")
	client := newTestClient("https://unused.example")

	if err := client.SendWidgetReply(context.Background(), server.URL+"/cb", "t1", "Oi!"); err != nil {
		t.Fatalf("send widget reply: %v", err)
	}

	if captured.path != "/cb" {
		t.Fatalf("path = %q", captured.path)
	}
	// Widget return addresses are not Kommo API endpoints; no Bearer token.
	if captured.auth != "" {
		t.Fatalf("auth = %q, want unauthenticated", captured.auth)
	}

	var body struct {
		Token string `json:"token"`
		Data  struct {
			Message string `json:"message"`
		} `json:"data"`
		ExecuteHandlers []struct {
			Handler string `json:"handler"`
			Params  struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"params"`
		} `json:"execute_handlers"`
	}
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Token != "t1" || body.Data.Message != "Oi!" {
		t.Fatalf("body = %+v", body)
	}
	if len(body.ExecuteHandlers) != 1 {
		t.Fatalf("handlers = %+v", body.ExecuteHandlers)
	}
	h := body.ExecuteHandlers[0]
	if h.Handler != "show" || h.Params.Type != "text" || h.Params.Value != "Oi!" {
		t.Fatalf("handler = %+v", h)
	}
}
