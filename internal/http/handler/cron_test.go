package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tecbrilho.app/erika/internal/http/handler"
	"tecbrilho.app/erika/internal/service"
)

type fakeReactivationService struct {
	results []service.LeadResult
	err     error
	calls   int
}

func (f *fakeReactivationService) Run(_ context.Context) ([]service.LeadResult, error) {
	f.calls++
	return f.results, f.err
}

var _ = Describe("CronHandler", func() {
	var (
		router       *gin.Engine
		reactivation *fakeReactivationService
	)

	setup := func(secret string) {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		reactivation = &fakeReactivationService{}
		h := handler.NewCronHandler(reactivation, secret)
		router.POST("/cron/reactivate", h.HandleReactivate)
	}

	It("runs the batch for the correct secret", func() {
		setup("s3cret")
		reactivation.results = []service.LeadResult{
			{LeadID: 1, Status: "ok"},
			{LeadID: 2, Status: "failed", Error: "assistant unavailable"},
		}

		req := httptest.NewRequest(http.MethodPost, "/cron/reactivate", nil)
		req.Header.Set("X-Cron-Secret", "s3cret")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(reactivation.calls).To(Equal(1))

		var body map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body["status"]).To(Equal("ok"))
		Expect(body["processed"]).To(BeNumerically("==", 2))
	})

	It("rejects a wrong secret", func() {
		setup("s3cret")

		req := httptest.NewRequest(http.MethodPost, "/cron/reactivate", nil)
		req.Header.Set("X-Cron-Secret", "nope")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(reactivation.calls).To(BeZero())
	})

	It("rejects a missing secret header", func() {
		setup("s3cret")

		req := httptest.NewRequest(http.MethodPost, "/cron/reactivate", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("refuses to run when no secret is configured", func() {
		setup("")

		req := httptest.NewRequest(http.MethodPost, "/cron/reactivate", nil)
		req.Header.Set("X-Cron-Secret", "")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(reactivation.calls).To(BeZero())
	})

	It("surfaces batch-level errors as 500", func() {
		setup("s3cret")
		reactivation.err = errors.New("kommo down")

		req := httptest.NewRequest(http.MethodPost, "/cron/reactivate", nil)
		req.Header.Set("X-Cron-Secret", "s3cret")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})

var _ = Describe("StatusHandler", func() {
	It("answers the liveness probes", func() {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		h := handler.NewStatusHandler()
		router.GET("/", h.Root)
		router.GET("/health", h.Health)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Code).To(Equal(http.StatusOK))

		var body map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body["service"]).To(Equal("kommo-middleware"))
		Expect(body["time_utc"]).NotTo(BeEmpty())

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})
