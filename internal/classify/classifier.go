package classify

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
)

// NoDescription is emitted when neither the event nor its node tree
// yields anything human-readable.
const NoDescription = "No description"

// shellPackages never produce events or usage records. Launchers are
// matched by substring since vendors ship their own.
var shellPackages = map[string]bool{
	"com.android.systemui":                 true,
	"com.google.android.inputmethod":       true,
	"com.google.android.inputmethod.latin": true,
	"android":                              true,
}

// Classifier turns raw source events into a kind plus a one-line
// description, filtering out system-shell packages first.
type Classifier struct {
	maxDepth int
	exclude  map[string]bool
	logger   zerolog.Logger
}

// New creates a classifier. maxDepth bounds the node-tree traversal;
// exclude lists additional package names to filter.
func New(maxDepth int, exclude []string, logger zerolog.Logger) *Classifier {
	ex := make(map[string]bool, len(exclude))
	for _, pkg := range exclude {
		ex[pkg] = true
	}
	return &Classifier{
		maxDepth: maxDepth,
		exclude:  ex,
		logger:   logger.With().Str("component", "classifier").Logger(),
	}
}

// Filtered reports whether the package is a system shell or explicitly
// excluded. Filtered packages are dropped before classification.
func (c *Classifier) Filtered(pkg string) bool {
	if pkg == "" {
		return true
	}
	if shellPackages[pkg] || c.exclude[pkg] {
		return true
	}
	return strings.Contains(strings.ToLower(pkg), "launcher")
}

// Classify determines the event's kind and, for interactive kinds, a
// description. The second return is false when the event should be
// dropped (filtered package or unhandled type). Node trees borrowed by
// the event are not retained; the caller releases them.
func (c *Classifier) Classify(ev *models.RawEvent) (models.EventKind, string, bool) {
	if c.Filtered(ev.PackageName) {
		return models.KindUnhandled, "", false
	}

	kind := ev.Kind()
	if kind == models.KindUnhandled {
		c.logger.Debug().
			Str("type", ev.Type).
			Str("package", ev.PackageName).
			Msg("Ignoring unhandled event type")
		return kind, "", false
	}

	if kind == models.KindWindowChanged {
		return kind, ev.PackageName, true
	}

	return kind, c.describe(ev), true
}

// describe produces a one-line description for an interactive event.
// Content description wins; otherwise the nearest interactive node in
// the event's subtree (falling back to the window root) is described by
// its visible text, else its view ID.
func (c *Classifier) describe(ev *models.RawEvent) string {
	if ev.Description != "" {
		return ev.Description
	}

	node := c.findInteractiveNode(ev.Source, c.maxDepth)
	if node == nil {
		node = c.findInteractiveNode(ev.Root, c.maxDepth)
	}
	if node == nil {
		return NoDescription
	}

	if node.Text != "" {
		return node.Text
	}
	if node.ViewID != "" {
		return node.ViewID
	}
	if node.Description != "" {
		return node.Description
	}
	return NoDescription
}

// findInteractiveNode is a depth-first search for the first node that
// is clickable, focusable, or long-clickable. The search is complete:
// it visits the entire subtree (up to depth) before giving up. Node
// pointers never escape this function.
func (c *Classifier) findInteractiveNode(root *models.Node, depth int) *models.Node {
	if root == nil || depth <= 0 {
		return nil
	}
	if root.Interactive() {
		return root
	}
	for _, child := range root.Children {
		if found := c.findInteractiveNode(child, depth-1); found != nil {
			return found
		}
	}
	return nil
}
