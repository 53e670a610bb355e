package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/internal/tracker"
	"github.com/tapsum/tapsum/pkg/appname"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := config.New()
	logger := zerolog.Nop()

	resolver, err := appname.New(nil, 16)
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}

	agg := tracker.NewAggregator(resolver, 100, logger)
	pub := tracker.NewPublisher(logger)
	svc := tracker.NewService(cfg, nil, nil, nil, agg, pub, logger)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	agg.RecordSwitch("com.example.mail", base)
	agg.RecordInteraction(models.KindClicked, "Compose", "com.example.mail", base.Add(time.Second))
	agg.RecordSwitch("com.example.browser", base.Add(5*time.Second))
	pub.Publish(agg.Snapshot())

	return NewHandler(cfg, nil, svc, logger)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestHandleUsage(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	rec := httptest.NewRecorder()
	h.handleUsage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var usage map[string]models.AppUsage
	if err := json.Unmarshal(rec.Body.Bytes(), &usage); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(usage) != 2 {
		t.Errorf("Expected 2 packages, got %d", len(usage))
	}
	mail, ok := usage["com.example.mail"]
	if !ok {
		t.Fatal("Expected com.example.mail in usage")
	}
	if mail.TotalTime != 5*time.Second {
		t.Errorf("Expected 5s total time, got %v", mail.TotalTime)
	}
}

func TestHandleSessions(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.handleSessions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var sessions []models.AppSession
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].PackageName != "com.example.mail" {
		t.Errorf("Expected first session for com.example.mail, got %q", sessions[0].PackageName)
	}
	if sessions[0].Open() {
		t.Error("Expected first session to be closed")
	}
	if !sessions[1].Open() {
		t.Error("Expected second session to be open")
	}
}

func TestHandleEventsLimit(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=1", nil)
	rec := httptest.NewRecorder()
	h.handleEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var events []string
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if !strings.HasPrefix(events[0], "Clicked:") {
		t.Errorf("Unexpected event line %q", events[0])
	}
}

func TestHandleExport(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	rec := httptest.NewRecorder()
	h.handleExport(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected text/csv content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "Package Name,App Name,Category,Events,Usage,Sessions" {
		t.Errorf("Unexpected CSV header %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("Expected 3 CSV lines, got %d", len(lines))
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status["running"] != false {
		t.Errorf("Expected running false, got %v", status["running"])
	}
	if status["foreground"] != "com.example.browser" {
		t.Errorf("Expected foreground com.example.browser, got %v", status["foreground"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/usage", nil)
	rec := httptest.NewRecorder()
	h.handleUsage(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}
