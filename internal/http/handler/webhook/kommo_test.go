package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tecbrilho.app/erika/internal/http/handler/webhook"
	"tecbrilho.app/erika/internal/mapper"
	"tecbrilho.app/erika/internal/model"
	"tecbrilho.app/erika/internal/service"
)

type fakeConversationService struct {
	result *service.WebhookResult
	err    error

	gotBody        []byte
	gotContentType string
}

func (f *fakeConversationService) Handle(_ context.Context, rawBody []byte, contentType string) (*service.WebhookResult, error) {
	f.gotBody = rawBody
	f.gotContentType = contentType
	return f.result, f.err
}

var _ = Describe("KommoWebhookHandler", func() {
	var (
		router       *gin.Engine
		conversation *fakeConversationService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		conversation = &fakeConversationService{}
		h := webhook.NewKommoWebhookHandler(conversation)
		router.POST("/kommo-webhook", h.HandleEvent)
	})

	It("answers 200 with the pipeline result", func() {
		leadID := int64(42)
		conversation.result = &service.WebhookResult{
			Status:     "ok",
			LeadID:     &leadID,
			AIResponse: "Olá!",
			Report: model.Report{
				ReplyNote:   model.StepOK,
				SummaryNote: model.StepSkipped,
			},
		}

		payload := []byte(`{"data":{"message":{"text":"Oi"},"lead":{"id":42}}}`)
		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(conversation.gotBody).To(Equal(payload))
		Expect(conversation.gotContentType).To(Equal("application/json"))

		var body map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("ok"))
		Expect(body["lead_id"]).To(BeNumerically("==", 42))
		Expect(body["ai_response"]).To(Equal("Olá!"))
		Expect(body["kommo_note"]).To(Equal("ok"))
	})

	It("passes the form content type through untouched", func() {
		conversation.result = &service.WebhookResult{Status: "ignored", Reason: "no message text"}

		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook",
			bytes.NewBufferString("account[subdomain]=tecbrilho"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(conversation.gotContentType).To(Equal("application/x-www-form-urlencoded"))
	})

	It("maps a malformed payload to 400", func() {
		conversation.err = fmt.Errorf("decode: %w", mapper.ErrMalformedPayload)

		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook", bytes.NewBufferString("%zz%"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps an unauthorized subdomain to 401", func() {
		conversation.err = fmt.Errorf("check: %w", mapper.ErrUnauthorizedSource)

		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("maps an assistant failure to 500", func() {
		conversation.err = fmt.Errorf("call: %w", service.ErrAssistantFailure)

		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook", bytes.NewBufferString(`{"text":"Oi"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("maps an unexpected error to 500", func() {
		conversation.err = fmt.Errorf("something else broke")

		req := httptest.NewRequest(http.MethodPost, "/kommo-webhook", bytes.NewBufferString(`{"text":"Oi"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
