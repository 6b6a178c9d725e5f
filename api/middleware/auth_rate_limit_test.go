package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/types"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func limitedHandler(t *testing.T, policy AuthRateLimitPolicy, limiter fixedWindowLimiter) http.Handler {
	t.Helper()
	return AuthRateLimit(policy, limiter, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"phone"`) {
			t.Fatalf("body not restored: %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func sendOTP(handler http.Handler, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/send-otp", strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRateLimitPhoneWindow(t *testing.T) {
	handler := limitedHandler(t, NewAuthRateLimitPolicy("send-otp", time.Minute, 0, 2), newFakeLimiter())

	// formatting variants of one number share a counter
	bodies := []string{`{"phone":"9876543210"}`, `{"phone":"+91 98765 43210"}`, `{"phone":"919876543210"}`}
	for i, body := range bodies {
		rec := sendOTP(handler, "1.2.3.4:5678", body)
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429 got %d", rec.Code)
			}
			var env types.ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code %s", env.Code)
			}
		}
	}

	if rec := sendOTP(handler, "1.2.3.4:5678", `{"phone":"9123456780"}`); rec.Code != http.StatusOK {
		t.Fatalf("other phone should pass, got %d", rec.Code)
	}
}

func TestAuthRateLimitIPWindow(t *testing.T) {
	handler := limitedHandler(t, NewAuthRateLimitPolicy("verify-otp", time.Minute, 1, 0), newFakeLimiter())

	if rec := sendOTP(handler, "5.6.7.8:1234", `{"phone":"9876543210"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec := sendOTP(handler, "5.6.7.8:9999", `{"phone":"9123456780"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if rec := sendOTP(handler, "9.9.9.9:1", `{"phone":"9123456780"}`); rec.Code != http.StatusOK {
		t.Fatalf("other ip should pass, got %d", rec.Code)
	}
}

func TestAuthRateLimitLimiterFailure(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	handler := limitedHandler(t, NewAuthRateLimitPolicy("send-otp", time.Minute, 5, 5), limiter)
	if rec := sendOTP(handler, "1.1.1.1:1", `{"phone":"9876543210"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := limitedHandler(t, NewAuthRateLimitPolicy("send-otp", 0, 1, 1), newFakeLimiter())
	for i := 0; i < 3; i++ {
		if rec := sendOTP(handler, "1.1.1.1:1", `{"phone":"9876543210"}`); rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
	}
}
