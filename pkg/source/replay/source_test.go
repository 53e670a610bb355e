package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
)

func writeTrace(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0644); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

func TestReplay(t *testing.T) {
	trace := `{"type":"TYPE_WINDOW_STATE_CHANGED","package_name":"com.example.a","timestamp":"2024-03-01T10:00:00Z"}
{"type":"TYPE_VIEW_CLICKED","package_name":"com.example.a","description":"Send","timestamp":"2024-03-01T10:00:02Z"}
not json
{"type":"TYPE_WINDOW_STATE_CHANGED","package_name":"com.example.b","timestamp":"2024-03-01T10:00:05Z"}
`
	s := New(writeTrace(t, trace), zerolog.Nop())

	if !s.IsAvailable() {
		t.Fatal("IsAvailable() = false for an existing trace")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	var got []*models.RawEvent
	for ev := range s.Events() {
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("replayed %d events, want 3 (malformed line skipped)", len(got))
	}
	if got[0].PackageName != "com.example.a" || got[0].Kind() != models.KindWindowChanged {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Description != "Send" || got[1].Kind() != models.KindClicked {
		t.Errorf("second event = %+v", got[1])
	}
	if got[2].PackageName != "com.example.b" {
		t.Errorf("third event = %+v", got[2])
	}
}

func TestStart_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.jsonl"), zerolog.Nop())

	if s.IsAvailable() {
		t.Error("IsAvailable() = true for a missing trace")
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() accepted a missing trace file")
	}
}
