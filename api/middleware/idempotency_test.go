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

	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	f.data[key] = str
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
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

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"release", http.MethodPost, "/api/v1/bins/release", criticalIdempotencyTTL, true},
		{"assign", http.MethodPost, "/api/v1/bins/assign", criticalIdempotencyTTL, true},
		{"scan", http.MethodPost, "/api/v1/bins/{binId}/scan", defaultIdempotencyTTL, true},
		{"status override", http.MethodPost, "/api/v1/bins/{binId}/status", defaultIdempotencyTTL, true},
		{"print ack", http.MethodPost, "/api/v1/print-jobs/{jobId}/ack", defaultIdempotencyTTL, true},
		{"bin read", http.MethodGet, "/api/v1/bins/{binId}", 0, false},
		{"scale ingest", http.MethodPost, "/api/v1/scale/readings", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{"foo":"bar"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{"foo":"bar"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{"foo":"bar"}`))
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{"foo":"diff"}`))
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

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
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyScopesKeysByStation(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for _, station := range []string{"ST-1", "ST-2"} {
		req := requestWithPattern(http.MethodPost, "/api/v1/bins/release", "/api/v1/bins/release", strings.NewReader(`{"jtc":"J1","binIds":["B1"]}`))
		req = req.WithContext(WithStationID(req.Context(), station))
		req.Header.Set("Idempotency-Key", "same")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected each station to run the handler, got %d calls", calls)
	}
	if len(store.data) != 2 {
		t.Fatalf("expected two stored records got %d", len(store.data))
	}
}

func TestIdempotencySkipsUnmatchedRoutes(t *testing.T) {
	mw := Idempotency(newFakeStore(), nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/scale/readings", "/api/v1/scale/readings", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if !called || resp.Code != http.StatusOK {
		t.Fatalf("expected pass-through, called=%v code=%d", called, resp.Code)
	}
}

func TestIdempotencyMarksReplays(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i, want := range []string{"", "true"} {
		req := requestWithPattern(http.MethodPost, "/api/v1/bins", "/api/v1/bins", strings.NewReader(`{"binId":"B9"}`))
		req.Header.Set(IdempotencyKeyHeader, "create-b9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("call %d: expected 201 got %d", i, rec.Code)
		}
		if got := rec.Header().Get(replayedHeader); got != want {
			t.Fatalf("call %d: expected replay header %q got %q", i, want, got)
		}
	}
}

func TestIdempotencyRejectsRetryWhileInFlight(t *testing.T) {
	store := newFakeStore()
	var calls int
	var inner http.Handler
	outer := Idempotency(store, nil)
	inner = outer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			retry := requestWithPattern(http.MethodPost, "/api/v1/bins/release", "/api/v1/bins/release", strings.NewReader(`{"jtc":"J1"}`))
			retry.Header.Set(IdempotencyKeyHeader, "rel-1")
			rec := httptest.NewRecorder()
			inner.ServeHTTP(rec, retry)
			if rec.Code != http.StatusConflict {
				t.Errorf("expected in-flight retry to get 409, got %d", rec.Code)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := requestWithPattern(http.MethodPost, "/api/v1/bins/release", "/api/v1/bins/release", strings.NewReader(`{"jtc":"J1"}`))
	req.Header.Set(IdempotencyKeyHeader, "rel-1")
	rec := httptest.NewRecorder()
	inner.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected one execution with 200, got %d calls and status %d", calls, rec.Code)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for range 2 {
		req := requestWithPattern(http.MethodPost, "/api/v1/bins/B1/scan", "/api/v1/bins/{binId}/scan", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "scan-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected retry after 503 to execute, got %d calls", calls)
	}
	if len(store.data) != 1 {
		t.Fatalf("expected the successful response to be stored, got %d records", len(store.data))
	}
}

func TestPathMatchesSegmentWildcard(t *testing.T) {
	if !pathMatches("/api/v1/bins/*/scan", "/api/v1/bins/B-01/scan") {
		t.Fatal("expected concrete path to match")
	}
	if pathMatches("/api/v1/bins/*/scan", "/api/v1/bins//scan") {
		t.Fatal("empty segment must not match")
	}
	if pathMatches("/api/v1/bins/*/scan", "/api/v1/bins/assign") {
		t.Fatal("different depth must not match")
	}
}
