package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func submitQuoteRequest(key, body string) *http.Request {
	req := requestWithPattern(http.MethodPost, "/v1/requirements/r1/quotes", "/v1/requirements/{requirementId}/quotes", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestReplayClassFor(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    replayClass
		ok      bool
	}{
		{"create requirement", http.MethodPost, "/v1/requirements", classCreate, true},
		{"create requirement trailing slash", http.MethodPost, "/v1/requirements/", classCreate, true},
		{"submit quote", http.MethodPost, "/v1/requirements/{requirementId}/quotes", classCreate, true},
		{"accept quote", http.MethodPost, "/v1/quotes/{quoteId}/accept", classTransition, true},
		{"confirm order", http.MethodPost, "/v1/requirements/{requirementId}/order/confirm", classTransition, true},
		{"list quotes", http.MethodGet, "/v1/requirements/{requirementId}/quotes", 0, false},
		{"update requirement", http.MethodPatch, "/v1/requirements/{requirementId}", 0, false},
	}
	for _, tt := range tests {
		req := requestWithPattern(tt.method, "/x", tt.pattern, nil)
		class, ok := replayClassFor(req)
		if ok != tt.ok || class != tt.want {
			t.Fatalf("%s: expected (%v,%v) got (%v,%v)", tt.name, tt.want, tt.ok, class, ok)
		}
	}
	if got := classTransition.ttl(time.Hour); got != 7*time.Hour {
		t.Fatalf("expected transition ttl 7h got %v", got)
	}
	if got := classCreate.ttl(time.Hour); got != time.Hour {
		t.Fatalf("expected create ttl 1h got %v", got)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, submitQuoteRequest("", `{"price_per_kg":"5"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler should not run without idempotency key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"q1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, submitQuoteRequest("abc", `{"price_per_kg":"5"}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", first.Code)
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, submitQuoteRequest("abc", `{"price_per_kg":"5"}`))
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replay 201 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected content-type preserved")
	}
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay marker header")
	}
	if replay.Body.String() != `{"data":{"id":"q1"}}` {
		t.Fatalf("unexpected replay body %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != time.Hour {
			t.Fatalf("key %s stored with ttl %v", key, ttl)
		}
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), submitQuoteRequest("xyz", `{"price_per_kg":"5"}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, submitQuoteRequest("xyz", `{"price_per_kg":"6"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyRejectsConcurrentRepeat(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(okHandler())

	req := submitQuoteRequest("busy", `{}`)
	store.data[store.IdempotencyKey(replayScope(req), "busy")] = inflightMarker

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(pkgerrors.CodeConflict)) {
		t.Fatalf("expected conflict code, got %s", resp.Body.String())
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, submitQuoteRequest("retry", `{}`))
	if first.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", first.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected key released, store has %v", store.data)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, submitQuoteRequest("retry", `{}`))
	if second.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to run handler, got status %d calls %d", second.Code, calls)
	}
}

func TestIdempotencyPassesThroughUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, 0, nil)(okHandler())

	req := requestWithPattern(http.MethodGet, "/v1/requirements/r1", "/v1/requirements/{requirementId}", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(store.data) != 0 {
		t.Fatal("expected nothing stored for unlisted route")
	}
}
