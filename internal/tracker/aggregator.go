package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/metrics"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/pkg/appname"
)

const dateLayout = "2006-01-02"

// Aggregator owns the process-lifetime aggregation state: per-package
// usage, the session log, and the formatted event log. All mutation
// happens on the capture goroutine; readers go through Snapshot, which
// returns copies. Nothing here survives a restart.
type Aggregator struct {
	mu sync.RWMutex

	resolver  *appname.Resolver
	usage     map[string]*models.AppUsage
	sessions  []*models.AppSession
	events    []string
	pkgEvents map[string][]string

	lastPkg       string
	lastSwitch    time.Time
	lastResetDate string

	maxEvents int
	logger    zerolog.Logger
}

// NewAggregator creates an empty aggregator. maxEvents caps the
// formatted event log; older lines are dropped from the front.
func NewAggregator(resolver *appname.Resolver, maxEvents int, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		resolver:  resolver,
		usage:     make(map[string]*models.AppUsage),
		pkgEvents: make(map[string][]string),
		maxEvents: maxEvents,
		logger:    logger.With().Str("component", "aggregator").Logger(),
	}
}

// RecordInteraction appends a formatted line for a click/long-click/
// focus event to the event log.
func (a *Aggregator) RecordInteraction(kind models.EventKind, description, pkg string, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.maybeReset(ts)

	line := fmt.Sprintf("%s: %s", kind, description)
	a.events = append(a.events, line)
	if a.maxEvents > 0 && len(a.events) > a.maxEvents {
		a.events = a.events[len(a.events)-a.maxEvents:]
	}
	a.pkgEvents[pkg] = append(a.pkgEvents[pkg], line)

	metrics.EventsTotal.WithLabelValues(kind.String()).Inc()
}

// RecordSwitch handles a foreground-change event. Time since the last
// switch is credited to the outgoing package; the open count increments
// only when the incoming package differs from the current foreground.
func (a *Aggregator) RecordSwitch(pkg string, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.maybeReset(ts)
	metrics.EventsTotal.WithLabelValues(models.KindWindowChanged.String()).Inc()

	if a.lastPkg == pkg {
		// Re-entry without an intervening switch: accumulate time,
		// never count a new open.
		if !a.lastSwitch.IsZero() {
			a.ensureUsage(pkg).TotalTime += ts.Sub(a.lastSwitch)
		}
		a.lastSwitch = ts
		return
	}

	if a.lastPkg != "" && !a.lastSwitch.IsZero() {
		a.ensureUsage(a.lastPkg).TotalTime += ts.Sub(a.lastSwitch)
		a.closeSession(a.lastPkg, ts)
	}

	usage := a.ensureUsage(pkg)
	usage.OpenCount++
	a.openSession(pkg, usage.DisplayName, ts)

	a.lastPkg = pkg
	a.lastSwitch = ts
	metrics.ForegroundSwitches.Inc()

	a.logger.Debug().
		Str("package", pkg).
		Int("open_count", usage.OpenCount).
		Msg("Foreground changed")
}

// Flush folds the in-progress interval into the current foreground
// package and closes its session. Called on shutdown; idempotent.
func (a *Aggregator) Flush(ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastPkg == "" || a.lastSwitch.IsZero() {
		return
	}

	a.ensureUsage(a.lastPkg).TotalTime += ts.Sub(a.lastSwitch)
	a.closeSession(a.lastPkg, ts)

	a.logger.Info().
		Str("package", a.lastPkg).
		Msg("Flushed in-progress interval")

	a.lastPkg = ""
	a.lastSwitch = time.Time{}
}

// Foreground returns the current foreground package, if any.
func (a *Aggregator) Foreground() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPkg
}

// Snapshot returns an immutable point-in-time copy of the aggregation
// state. Safe to call from any goroutine.
func (a *Aggregator) Snapshot() models.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := models.Snapshot{
		Events:     make([]string, len(a.events)),
		Usage:      make(map[string]models.AppUsage, len(a.usage)),
		Sessions:   make([]models.AppSession, len(a.sessions)),
		PkgEvents:  make(map[string][]string, len(a.pkgEvents)),
		Foreground: a.lastPkg,
		TakenAt:    time.Now(),
	}
	copy(snap.Events, a.events)
	for pkg, u := range a.usage {
		snap.Usage[pkg] = *u
	}
	for i, s := range a.sessions {
		snap.Sessions[i] = *s
	}
	for pkg, lines := range a.pkgEvents {
		cp := make([]string, len(lines))
		copy(cp, lines)
		snap.PkgEvents[pkg] = cp
	}
	return snap
}

// ensureUsage returns the usage record for pkg, creating it with a
// resolved display name on first sight. Callers hold the lock.
func (a *Aggregator) ensureUsage(pkg string) *models.AppUsage {
	if u, ok := a.usage[pkg]; ok {
		return u
	}
	name, category := a.resolver.Resolve(pkg)
	u := &models.AppUsage{
		PackageName: pkg,
		DisplayName: name,
		Category:    category,
	}
	a.usage[pkg] = u
	return u
}

// openSession starts a new session for pkg. Callers hold the lock.
func (a *Aggregator) openSession(pkg, appName string, ts time.Time) {
	a.sessions = append(a.sessions, &models.AppSession{
		ID:          ulid.Make().String(),
		PackageName: pkg,
		AppName:     appName,
		OpenedAt:    ts,
	})
	metrics.SessionsOpened.Inc()
}

// closeSession closes the most recent open session for pkg. A close
// with no matching open session is silently dropped; that happens after
// a restart mid-session and after a daily reset.
func (a *Aggregator) closeSession(pkg string, ts time.Time) {
	for i := len(a.sessions) - 1; i >= 0; i-- {
		s := a.sessions[i]
		if s.PackageName == pkg && s.Open() {
			s.ClosedAt = ts
			s.Duration = ts.Sub(s.OpenedAt)
			metrics.SessionsClosed.Inc()
			return
		}
	}
	a.logger.Debug().
		Str("package", pkg).
		Msg("No open session to close, dropping")
}

// maybeReset clears counters and the session log when the local date
// has rolled over since the last reset. Destructive and idempotent
// within a calendar day. The in-progress interval is discarded with the
// rest; cached display names survive. Callers hold the lock.
func (a *Aggregator) maybeReset(ts time.Time) {
	today := ts.Local().Format(dateLayout)
	if a.lastResetDate == "" {
		a.lastResetDate = today
		return
	}
	if a.lastResetDate == today {
		return
	}

	for _, u := range a.usage {
		u.TotalTime = 0
		u.OpenCount = 0
	}
	a.sessions = nil
	a.lastSwitch = ts
	a.lastResetDate = today

	metrics.DailyResets.Inc()
	a.logger.Info().
		Str("date", today).
		Msg("Daily reset: cleared usage counters and session log")
}
