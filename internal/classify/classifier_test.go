package classify

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
)

func newTestClassifier(exclude ...string) *Classifier {
	return New(50, exclude, zerolog.Nop())
}

func TestClassify_KindMapping(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		rawType string
		want    models.EventKind
		handled bool
	}{
		{"TYPE_VIEW_CLICKED", models.KindClicked, true},
		{"TYPE_VIEW_LONG_CLICKED", models.KindLongClicked, true},
		{"TYPE_VIEW_FOCUSED", models.KindFocused, true},
		{"TYPE_WINDOW_STATE_CHANGED", models.KindWindowChanged, true},
		{"TYPE_WINDOW_CONTENT_CHANGED", models.KindWindowChanged, true},
		{"TYPE_ANNOUNCEMENT", models.KindUnhandled, false},
		{"", models.KindUnhandled, false},
	}

	for _, tt := range tests {
		t.Run(tt.rawType, func(t *testing.T) {
			ev := &models.RawEvent{
				Type:        tt.rawType,
				PackageName: "com.example.app",
				Description: "a button",
				Timestamp:   time.Now(),
			}
			kind, _, ok := c.Classify(ev)
			if kind != tt.want {
				t.Errorf("Classify() kind = %v, want %v", kind, tt.want)
			}
			if ok != tt.handled {
				t.Errorf("Classify() handled = %v, want %v", ok, tt.handled)
			}
		})
	}
}

func TestClassify_PrefersContentDescription(t *testing.T) {
	c := newTestClassifier()

	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_CLICKED",
		PackageName: "com.example.app",
		Description: "Send button",
		Source: &models.Node{
			Text:      "ignored",
			Clickable: true,
		},
	}

	_, desc, ok := c.Classify(ev)
	if !ok {
		t.Fatal("Classify() dropped a clickable event")
	}
	if desc != "Send button" {
		t.Errorf("description = %q, want %q", desc, "Send button")
	}
}

func TestClassify_WalksNodeTree(t *testing.T) {
	c := newTestClassifier()

	// Interactive node buried two levels down; described by text.
	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_CLICKED",
		PackageName: "com.example.app",
		Source: &models.Node{
			Children: []*models.Node{
				{ViewID: "com.example.app:id/container"},
				{
					Children: []*models.Node{
						{Text: "OK", Clickable: true},
					},
				},
			},
		},
	}

	_, desc, _ := c.Classify(ev)
	if desc != "OK" {
		t.Errorf("description = %q, want %q", desc, "OK")
	}
}

func TestClassify_FallsBackToViewID(t *testing.T) {
	c := newTestClassifier()

	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_FOCUSED",
		PackageName: "com.example.app",
		Source: &models.Node{
			Children: []*models.Node{
				{ViewID: "com.example.app:id/input", Focusable: true},
			},
		},
	}

	_, desc, _ := c.Classify(ev)
	if desc != "com.example.app:id/input" {
		t.Errorf("description = %q, want view ID fallback", desc)
	}
}

func TestClassify_RootFallback(t *testing.T) {
	c := newTestClassifier()

	// Source subtree has nothing interactive; root does.
	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_CLICKED",
		PackageName: "com.example.app",
		Source:      &models.Node{ViewID: "com.example.app:id/decor"},
		Root: &models.Node{
			Children: []*models.Node{
				{Text: "Settings", Clickable: true},
			},
		},
	}

	_, desc, _ := c.Classify(ev)
	if desc != "Settings" {
		t.Errorf("description = %q, want %q", desc, "Settings")
	}
}

func TestClassify_NoDescription(t *testing.T) {
	c := newTestClassifier()

	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_CLICKED",
		PackageName: "com.example.app",
	}

	_, desc, _ := c.Classify(ev)
	if desc != NoDescription {
		t.Errorf("description = %q, want %q", desc, NoDescription)
	}
}

func TestFiltered(t *testing.T) {
	c := newTestClassifier("com.example.blocked")

	tests := []struct {
		pkg  string
		want bool
	}{
		{"com.android.systemui", true},
		{"com.sec.android.app.launcher", true},
		{"com.miui.home.Launcher", true},
		{"com.example.blocked", true},
		{"", true},
		{"com.example.app", false},
	}

	for _, tt := range tests {
		if got := c.Filtered(tt.pkg); got != tt.want {
			t.Errorf("Filtered(%q) = %v, want %v", tt.pkg, got, tt.want)
		}
	}
}

func TestClassify_DepthBound(t *testing.T) {
	c := New(2, nil, zerolog.Nop())

	// Interactive node beyond the depth bound is not reached.
	ev := &models.RawEvent{
		Type:        "TYPE_VIEW_CLICKED",
		PackageName: "com.example.app",
		Source: &models.Node{
			Children: []*models.Node{
				{
					Children: []*models.Node{
						{Text: "Too deep", Clickable: true},
					},
				},
			},
		},
	}

	_, desc, _ := c.Classify(ev)
	if desc != NoDescription {
		t.Errorf("description = %q, want %q (node beyond depth bound)", desc, NoDescription)
	}
}
