package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/api/middleware"
	"github.com/sensorgrid/devicehub-backend/internal/telemetry"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type stubTelemetry struct {
	telemetry.Service
	kind   enums.ReadingKind
	limit  int
	record telemetry.ReadingInput
}

func (s *stubTelemetry) List(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, kind enums.ReadingKind, limit int) (any, error) {
	s.kind = kind
	s.limit = limit
	return []telemetry.TemperaturePoint{}, nil
}

func (s *stubTelemetry) Record(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, input telemetry.ReadingInput) (*telemetry.RecordResult, error) {
	s.record = input
	return &telemetry.RecordResult{Series: []string{"temperature"}}, nil
}

func router(svc telemetry.Service) http.Handler {
	actor := rbac.Actor{ID: uuid.New(), Role: enums.RoleAdmin}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	r.Post("/devices/id/{deviceID}/readings", Record(svc, logger.Nop()))
	r.Get("/devices/id/{deviceID}/{kind}", List(svc, logger.Nop()))
	return r
}

func TestListParsesKindAndLimit(t *testing.T) {
	svc := &stubTelemetry{}
	rec := httptest.NewRecorder()
	router(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/id/"+uuid.NewString()+"/temperature?limit=20", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.kind != enums.ReadingKindTemperature || svc.limit != 20 {
		t.Fatalf("unexpected args %s %d", svc.kind, svc.limit)
	}

	rec = httptest.NewRecorder()
	router(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/id/"+uuid.NewString()+"/humidity", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind got %d", rec.Code)
	}
}

func TestRecordDecodesReadings(t *testing.T) {
	svc := &stubTelemetry{}
	rec := httptest.NewRecorder()
	body := `{"temperature":21.5,"recorded_at":"2025-05-01T10:00:00Z"}`
	router(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/devices/id/"+uuid.NewString()+"/readings", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.record.Temperature == nil || *svc.record.Temperature != 21.5 || svc.record.RecordedAt == nil {
		t.Fatalf("unexpected input %+v", svc.record)
	}
	if svc.record.Pressure1 != nil {
		t.Fatal("absent series must stay nil")
	}
}
