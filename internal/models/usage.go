package models

import (
	"time"
)

// AppUsage is the cumulative usage record for one package. totalTime
// only grows except on the daily reset; OpenCount resets daily;
// DisplayName and Category are resolved once and cached.
type AppUsage struct {
	PackageName string        `json:"package_name"`
	DisplayName string        `json:"display_name"`
	Category    string        `json:"category"`
	TotalTime   time.Duration `json:"total_time_ms"`
	OpenCount   int           `json:"open_count"`
}

// AppSession is one contiguous foreground interval for a package.
// ClosedAt is zero while the session is open; at most one session
// system-wide may be open at any instant.
type AppSession struct {
	ID          string        `json:"id"`
	PackageName string        `json:"package_name"`
	AppName     string        `json:"app_name"`
	OpenedAt    time.Time     `json:"opened_at"`
	ClosedAt    time.Time     `json:"closed_at,omitzero"`
	Duration    time.Duration `json:"duration_ms"`
}

// Open reports whether the session has not been closed yet.
func (s AppSession) Open() bool {
	return s.ClosedAt.IsZero()
}

// Snapshot is an immutable point-in-time view of the aggregation state,
// published by replacement. All contained values are copies; consumers
// can hold a Snapshot indefinitely without racing the aggregator.
type Snapshot struct {
	Events     []string              `json:"events"`
	Usage      map[string]AppUsage   `json:"usage"`
	Sessions   []AppSession          `json:"sessions"`
	Foreground string                `json:"foreground"`
	TakenAt    time.Time             `json:"taken_at"`
	PkgEvents  map[string][]string   `json:"-"`
}

// ReportPeriod is the time range a report covers.
type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

// AppReport is one package's line in a generated report.
type AppReport struct {
	PackageName  string  `json:"package_name"`
	DisplayName  string  `json:"display_name"`
	Category     string  `json:"category"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalMinutes float64 `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	OpenCount    int     `json:"open_count"`
	EventCount   int64   `json:"event_count"`
	SessionCount int     `json:"session_count"`
	Percentage   float64 `json:"percentage,omitempty"`
}

// Report is the aggregate usage report returned by the reporter.
type Report struct {
	Period       ReportPeriod `json:"period"`
	Apps         []AppReport  `json:"apps"`
	TotalSeconds int64        `json:"total_seconds"`
	TotalMinutes float64      `json:"total_minutes"`
	TotalHours   float64      `json:"total_hours"`
	GeneratedAt  time.Time    `json:"generated_at"`
}
