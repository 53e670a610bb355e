// Package source defines the event source contract: something that
// observes UI interactions and delivers them as RawEvents on a single
// channel. The capture service consumes exactly one source.
package source

import (
	"context"

	"github.com/tapsum/tapsum/internal/models"
)

// Source is the interface all event source implementations satisfy.
// Events are delivered one at a time on the Events channel; the channel
// is closed when the source stops.
type Source interface {
	// Start begins event delivery. It returns once delivery is running;
	// the source stops when ctx is cancelled.
	Start(ctx context.Context) error

	// Events returns the delivery channel.
	Events() <-chan *models.RawEvent

	// IsAvailable checks if this source can run on the current system.
	IsAvailable() bool

	// Name returns the source identifier ("adb", "x11", "replay").
	Name() string

	// Close releases any resources held by the source.
	Close() error
}
