package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

func TestStatusForErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.NotFoundf("notebook x"), http.StatusNotFound},
		{errors.Validationf("bad input"), http.StatusBadRequest},
		{errors.InvalidStatef("cannot cancel"), http.StatusConflict},
		{errors.ExternalServicef("upstream down"), http.StatusBadGateway},
		{errors.Validationf("wrapped: %v", "detail"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
	if got := statusFor(http.ErrServerClosed); got != http.StatusInternalServerError {
		t.Errorf("unknown error maps to %d, want 500", got)
	}
}

func TestRateLimitBudgetPerIP(t *testing.T) {
	handler := rateLimit(5)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// The bucket starts full with `perMinute` tokens.
	for i := 0; i < 5; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("over-budget request: status %d, want 429", code)
	}
	// A different client has its own budget.
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("second ip throttled: status %d", code)
	}
}

func TestDecodeBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "n", "bogus": 1}`))
	var body struct {
		Name string `json:"name"`
	}
	err := decodeBody(req, &body)
	if !errors.IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCreateRunBodyAcceptsGenerationModel(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"k": 5, "evaluation_type": "retrieval_only", "generation_model": "gpt-4o"}`))
	var body createRunRequest
	if err := decodeBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.K != 5 || body.EvaluationType != "retrieval_only" || body.GenerationModel != "gpt-4o" {
		t.Fatalf("body = %+v", body)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4711"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Fatalf("clientIP = %q", got)
	}
	req.RemoteAddr = "weird"
	if got := clientIP(req); got != "weird" {
		t.Fatalf("clientIP fallback = %q", got)
	}
}
