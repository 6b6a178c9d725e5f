package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
)

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(metrics.NewHTTPMetrics(reg)))
	r.Get("/devices/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, code := range []string{"1111222233334444", "5555666677778888"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/"+code, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, family := range families {
		if family.GetName() != "devicehub_http_requests_total" {
			continue
		}
		if len(family.GetMetric()) != 1 {
			t.Fatalf("expected one series, got %d", len(family.GetMetric()))
		}
		m := family.GetMetric()[0]
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["route"] != "/devices/{code}" || labels["status"] != "418" {
			t.Fatalf("unexpected labels %v", labels)
		}
		if m.GetCounter().GetValue() != 2 {
			t.Fatalf("expected 2 requests, got %v", m.GetCounter().GetValue())
		}
		found = true
	}
	if !found {
		t.Fatal("request counter not exported")
	}
}

func TestRequestIDEchoesValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "0b8b6c8e-4e0a-4a36-9d0e-5f7f2f0f9a11")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "0b8b6c8e-4e0a-4a36-9d0e-5f7f2f0f9a11" {
		t.Fatalf("expected caller id echoed, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) == "not a uuid" {
		t.Fatal("expected malformed id to be replaced")
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
