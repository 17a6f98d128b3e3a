package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/fleet"
	"github.com/example/attendance-tracker/internal/testfixtures"
)

const (
	testAdminID = "admin-1"
	testUserID  = "user-1"
)

// testServer wires the real services over an in-memory store.
type testServer struct {
	handler http.Handler
	store   *testfixtures.CountingStore
	seeder  *testfixtures.Seeder
	agg     *fleet.Aggregator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := testfixtures.NewMemoryStore(t)
	store := testfixtures.NewCountingStore(mem)
	seeder := testfixtures.NewSeeder(t, mem)
	seeder.User(testfixtures.WithUserID(testAdminID), testfixtures.WithAdminRole())
	seeder.User(testfixtures.WithUserID(testUserID))

	ids := testfixtures.NewIDGenerator("generated")
	directory := application.NewDirectoryWithLogger(store, ids.NextFunc(), logger)
	gateway := application.NewGatewayWithLogger(store, logger)
	history := application.NewHistory(store, logger)

	agg := fleet.New(fleet.Config{Store: store, Logger: logger})
	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("failed to start aggregator: %v", err)
	}
	t.Cleanup(agg.Stop)

	router := NewRouter(RouterConfig{
		Users:      NewUserHandler(directory, logger),
		Attendance: NewAttendanceHandler(gateway, history, logger),
		Admin:      NewAdminHandler(gateway, agg, logger),
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(logger),
			AttachSession(directory, logger),
		},
	})

	ts := &testServer{handler: router, store: store, seeder: seeder, agg: agg}
	ts.flush(t)
	return ts
}

func (ts *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.agg.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, ts.handler, method, path, userID, body)
}

func serve(t *testing.T, handler http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, recorder.Code, recorder.Body.String())
	}
}
