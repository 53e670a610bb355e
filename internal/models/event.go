package models

import (
	"time"
)

// EventKind classifies a raw UI interaction event.
type EventKind int

const (
	KindUnhandled EventKind = iota
	KindClicked
	KindLongClicked
	KindFocused
	KindWindowChanged
)

// String returns the label used in the formatted event log.
func (k EventKind) String() string {
	switch k {
	case KindClicked:
		return "Clicked"
	case KindLongClicked:
		return "LongClicked"
	case KindFocused:
		return "Focused"
	case KindWindowChanged:
		return "WindowChanged"
	default:
		return "Unhandled"
	}
}

// Interactive reports whether this kind produces a formatted event line.
func (k EventKind) Interactive() bool {
	return k == KindClicked || k == KindLongClicked || k == KindFocused
}

// ParseEventType maps a source-level event type name to an EventKind.
// Type names follow the Android accessibility vocabulary since that is
// what the adb source emits; other sources use the same names.
func ParseEventType(raw string) EventKind {
	switch raw {
	case "TYPE_VIEW_CLICKED":
		return KindClicked
	case "TYPE_VIEW_LONG_CLICKED":
		return KindLongClicked
	case "TYPE_VIEW_FOCUSED":
		return KindFocused
	case "TYPE_WINDOW_STATE_CHANGED", "TYPE_WINDOW_CONTENT_CHANGED":
		return KindWindowChanged
	default:
		return KindUnhandled
	}
}

// RawEvent is one interaction delivered by an event source. It is
// ephemeral: produced by the source, consumed within one capture-loop
// iteration, and its node tree (if any) is released afterwards.
type RawEvent struct {
	Type        string    `json:"type"`
	PackageName string    `json:"package_name"`
	Description string    `json:"description,omitempty"`
	Source      *Node     `json:"source,omitempty"`
	Root        *Node     `json:"root,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Kind resolves the event's classification.
func (e *RawEvent) Kind() EventKind {
	return ParseEventType(e.Type)
}

// ReleaseNodes returns the event's node trees to the pool. Safe to call
// more than once; the fields are nilled on first release.
func (e *RawEvent) ReleaseNodes() {
	if e.Source != nil {
		e.Source.Release()
		e.Source = nil
	}
	if e.Root != nil {
		e.Root.Release()
		e.Root = nil
	}
}
