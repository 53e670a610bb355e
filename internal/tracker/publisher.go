package tracker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/metrics"
	"github.com/tapsum/tapsum/internal/models"
)

// Publisher fans immutable snapshots out to subscribers. Publishing
// never blocks the capture path: a subscriber that has not drained its
// channel misses the intermediate snapshot and gets the next one.
type Publisher struct {
	mu      sync.Mutex
	subs    map[int]chan models.Snapshot
	nextID  int
	current models.Snapshot
	logger  zerolog.Logger
}

// NewPublisher creates a publisher with no subscribers.
func NewPublisher(logger zerolog.Logger) *Publisher {
	return &Publisher{
		subs:   make(map[int]chan models.Snapshot),
		logger: logger.With().Str("component", "publisher").Logger(),
	}
}

// Publish replaces the current snapshot and notifies subscribers.
func (p *Publisher) Publish(snap models.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = snap
	for id, ch := range p.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber is behind; drop the old snapshot so the
			// fresh one goes through.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
				p.logger.Debug().Int("subscriber", id).Msg("Subscriber not draining, skipped")
			}
		}
	}
}

// Current returns the most recently published snapshot.
func (p *Publisher) Current() models.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subscribe registers a snapshot channel. The returned cancel function
// unregisters and closes it; it is safe to call once.
func (p *Publisher) Subscribe() (<-chan models.Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan models.Snapshot, 1)
	p.subs[id] = ch
	metrics.ActiveSubscribers.Inc()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
			metrics.ActiveSubscribers.Dec()
		}
	}

	return ch, cancel
}
