package tracker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/pkg/appname"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	resolver, err := appname.New(nil, 64)
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}
	return NewAggregator(resolver, 100, zerolog.Nop())
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)

func openSessions(snap models.Snapshot) []models.AppSession {
	var open []models.AppSession
	for _, s := range snap.Sessions {
		if s.Open() {
			open = append(open, s)
		}
	}
	return open
}

func TestSwitchExample(t *testing.T) {
	// A opens at 10:00:00, B at 10:00:05, back to A at 10:00:08.
	agg := newTestAggregator(t)

	agg.RecordSwitch("com.example.a", base)
	agg.RecordSwitch("com.example.b", base.Add(5*time.Second))

	snap := agg.Snapshot()
	if got := snap.Usage["com.example.a"].TotalTime; got != 5*time.Second {
		t.Errorf("A total = %v, want 5s", got)
	}
	if len(snap.Sessions) != 2 {
		t.Fatalf("%d sessions, want 2", len(snap.Sessions))
	}
	if snap.Sessions[0].Duration != 5*time.Second || snap.Sessions[0].Open() {
		t.Errorf("A session = %+v, want closed after 5s", snap.Sessions[0])
	}
	if !snap.Sessions[1].Open() {
		t.Errorf("B session should be open, got %+v", snap.Sessions[1])
	}

	agg.RecordSwitch("com.example.a", base.Add(8*time.Second))

	snap = agg.Snapshot()
	if got := snap.Usage["com.example.a"].OpenCount; got != 2 {
		t.Errorf("A open count = %d, want 2 (second open today)", got)
	}
	if got := snap.Usage["com.example.b"].TotalTime; got != 3*time.Second {
		t.Errorf("B total = %v, want 3s", got)
	}
	if snap.Sessions[1].Duration != 3*time.Second {
		t.Errorf("B session duration = %v, want 3s", snap.Sessions[1].Duration)
	}
}

func TestOpenCountOnlyOnTransition(t *testing.T) {
	agg := newTestAggregator(t)

	// Two consecutive content-change events for the same package.
	agg.RecordSwitch("com.example.a", base)
	agg.RecordSwitch("com.example.a", base.Add(2*time.Second))
	agg.RecordSwitch("com.example.a", base.Add(4*time.Second))

	snap := agg.Snapshot()
	if got := snap.Usage["com.example.a"].OpenCount; got != 1 {
		t.Errorf("open count = %d, want 1 (re-entry is not a new open)", got)
	}
	if got := len(snap.Sessions); got != 1 {
		t.Errorf("%d sessions, want 1", got)
	}
	// Time still accumulates across re-entry events.
	if got := snap.Usage["com.example.a"].TotalTime; got != 4*time.Second {
		t.Errorf("total = %v, want 4s", got)
	}
}

func TestConservationOfTime(t *testing.T) {
	agg := newTestAggregator(t)

	steps := []struct {
		pkg    string
		offset time.Duration
	}{
		{"com.example.a", 0},
		{"com.example.b", 7 * time.Second},
		{"com.example.a", 11 * time.Second},
		{"com.example.c", 24 * time.Second},
		{"com.example.c", 30 * time.Second},
		{"com.example.b", 45 * time.Second},
	}
	for _, st := range steps {
		agg.RecordSwitch(st.pkg, base.Add(st.offset))
	}

	now := base.Add(60 * time.Second)
	agg.Flush(now)

	var total time.Duration
	for _, u := range agg.Snapshot().Usage {
		total += u.TotalTime
	}

	if want := 60 * time.Second; total != want {
		t.Errorf("recorded time sums to %v, want %v (wall clock since first switch)", total, want)
	}
}

func TestAtMostOneOpenSession(t *testing.T) {
	agg := newTestAggregator(t)

	pkgs := []string{"com.a", "com.b", "com.a", "com.c", "com.b"}
	for i, pkg := range pkgs {
		agg.RecordSwitch(pkg, base.Add(time.Duration(i)*time.Second))

		open := openSessions(agg.Snapshot())
		if len(open) != 1 {
			t.Fatalf("after switch %d: %d open sessions, want 1", i, len(open))
		}
		if open[0].PackageName != pkg {
			t.Errorf("after switch %d: open session for %s, want %s", i, open[0].PackageName, pkg)
		}
	}
}

func TestDailyReset(t *testing.T) {
	agg := newTestAggregator(t)

	agg.RecordSwitch("com.example.a", base)
	agg.RecordSwitch("com.example.b", base.Add(10*time.Second))

	nextDay := base.AddDate(0, 0, 1)
	agg.RecordSwitch("com.example.a", nextDay)

	snap := agg.Snapshot()
	// The reset cleared everything accumulated yesterday; the switch
	// that triggered it is the first open of the new day.
	if got := snap.Usage["com.example.b"].TotalTime; got != 0 {
		t.Errorf("B total after reset = %v, want 0", got)
	}
	if got := snap.Usage["com.example.a"].OpenCount; got != 1 {
		t.Errorf("A open count after reset = %d, want 1", got)
	}
	if got := len(snap.Sessions); got != 1 {
		t.Errorf("%d sessions after reset, want 1 (log cleared)", got)
	}
	// Cached display names survive the reset.
	if snap.Usage["com.example.b"].DisplayName == "" {
		t.Error("display name lost on reset")
	}
}

func TestDailyResetIdempotent(t *testing.T) {
	agg := newTestAggregator(t)

	nextDay := base.AddDate(0, 0, 1)
	agg.RecordSwitch("com.example.a", base)
	agg.RecordSwitch("com.example.b", nextDay)
	agg.RecordSwitch("com.example.a", nextDay.Add(5*time.Second))

	// Only the first same-day rollover resets; later events on the same
	// date must keep accumulating.
	snap := agg.Snapshot()
	if got := snap.Usage["com.example.b"].TotalTime; got != 5*time.Second {
		t.Errorf("B total = %v, want 5s (second reset on same day must be a no-op)", got)
	}
}

func TestCloseWithoutOpenSessionIsDropped(t *testing.T) {
	agg := newTestAggregator(t)

	// The reset clears the session log while A is still foreground; the
	// close triggered by the next switch finds nothing and is dropped.
	agg.RecordSwitch("com.example.a", base)
	agg.RecordSwitch("com.example.b", base.AddDate(0, 0, 1))

	snap := agg.Snapshot()
	for _, s := range snap.Sessions {
		if s.PackageName == "com.example.a" {
			t.Errorf("unexpected session for A after reset: %+v", s)
		}
	}
	if got := len(openSessions(snap)); got != 1 {
		t.Errorf("%d open sessions, want 1 (B)", got)
	}
}

func TestFlushIdempotent(t *testing.T) {
	agg := newTestAggregator(t)

	agg.RecordSwitch("com.example.a", base)
	agg.Flush(base.Add(4 * time.Second))
	agg.Flush(base.Add(9 * time.Second))

	snap := agg.Snapshot()
	if got := snap.Usage["com.example.a"].TotalTime; got != 4*time.Second {
		t.Errorf("total = %v, want 4s (second flush must be a no-op)", got)
	}
	if got := len(openSessions(snap)); got != 0 {
		t.Errorf("%d open sessions after flush, want 0", got)
	}
}

func TestRecordInteraction(t *testing.T) {
	agg := newTestAggregator(t)

	agg.RecordInteraction(models.KindClicked, "Send button", "com.example.a", base)
	agg.RecordInteraction(models.KindFocused, "Search field", "com.example.a", base.Add(time.Second))

	snap := agg.Snapshot()
	if len(snap.Events) != 2 {
		t.Fatalf("%d event lines, want 2", len(snap.Events))
	}
	if snap.Events[0] != "Clicked: Send button" {
		t.Errorf("event line = %q", snap.Events[0])
	}
	if snap.Events[1] != "Focused: Search field" {
		t.Errorf("event line = %q", snap.Events[1])
	}
	if got := len(snap.PkgEvents["com.example.a"]); got != 2 {
		t.Errorf("%d package events, want 2", got)
	}
}

func TestEventLogCap(t *testing.T) {
	resolver, _ := appname.New(nil, 64)
	agg := NewAggregator(resolver, 3, zerolog.Nop())

	for i := 0; i < 5; i++ {
		agg.RecordInteraction(models.KindClicked, string(rune('a'+i)), "com.example.a", base)
	}

	snap := agg.Snapshot()
	if len(snap.Events) != 3 {
		t.Fatalf("%d event lines, want 3 (capped)", len(snap.Events))
	}
	if snap.Events[0] != "Clicked: c" {
		t.Errorf("oldest retained line = %q, want Clicked: c", snap.Events[0])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	agg := newTestAggregator(t)

	agg.RecordSwitch("com.example.a", base)
	snap := agg.Snapshot()

	agg.RecordSwitch("com.example.b", base.Add(5*time.Second))
	agg.RecordInteraction(models.KindClicked, "x", "com.example.b", base.Add(6*time.Second))

	if got := snap.Usage["com.example.a"].TotalTime; got != 0 {
		t.Errorf("snapshot mutated after publish: A total = %v", got)
	}
	if len(snap.Sessions) != 1 {
		t.Errorf("snapshot mutated: %d sessions, want 1", len(snap.Sessions))
	}
	if len(snap.Events) != 0 {
		t.Errorf("snapshot mutated: %d events, want 0", len(snap.Events))
	}
}
