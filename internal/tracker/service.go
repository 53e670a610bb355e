package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/classify"
	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/internal/database"
	"github.com/tapsum/tapsum/internal/metrics"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/pkg/source"
)

// Service is the capture loop: it drains one event source, classifies
// each event, journals it, folds it into the aggregator, and publishes
// a fresh snapshot. All aggregation state mutation happens here, on one
// goroutine. An error never stops the loop.
type Service struct {
	config     *config.Config
	repo       *database.Repository
	source     source.Source
	classifier *classify.Classifier
	aggregator *Aggregator
	publisher  *Publisher
	stopChan   chan struct{}
	running    bool
	logger     zerolog.Logger
}

// NewService wires the capture pipeline together.
func NewService(cfg *config.Config, repo *database.Repository, src source.Source,
	classifier *classify.Classifier, agg *Aggregator, pub *Publisher, logger zerolog.Logger) *Service {
	return &Service{
		config:     cfg,
		repo:       repo,
		source:     src,
		classifier: classifier,
		aggregator: agg,
		publisher:  pub,
		stopChan:   make(chan struct{}),
		logger:     logger.With().Str("component", "capture").Logger(),
	}
}

// Aggregator exposes the service's aggregation state for readers.
func (s *Service) Aggregator() *Aggregator { return s.aggregator }

// Publisher exposes the snapshot publisher.
func (s *Service) Publisher() *Publisher { return s.publisher }

// Start runs the capture loop until the context is cancelled, Stop is
// called, or the source closes its channel. Teardown always flushes the
// in-progress interval and open session first.
func (s *Service) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("capture service is already running")
	}
	s.running = true

	if err := s.source.Start(ctx); err != nil {
		s.running = false
		return fmt.Errorf("failed to start event source: %w", err)
	}

	s.logger.Info().Str("source", s.source.Name()).Msg("Capture started")

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()

		case <-s.stopChan:
			s.teardown()
			return nil

		case ev, ok := <-s.source.Events():
			if !ok {
				s.logger.Info().Msg("Event source closed")
				s.teardown()
				return nil
			}
			s.handleEvent(ev)
		}
	}
}

// Stop signals the capture loop to tear down.
func (s *Service) Stop() {
	if s.running {
		close(s.stopChan)
	}
}

// IsRunning reports whether the loop is active.
func (s *Service) IsRunning() bool {
	return s.running
}

func (s *Service) handleEvent(ev *models.RawEvent) {
	defer ev.ReleaseNodes()

	kind, description, ok := s.classifier.Classify(ev)
	if !ok {
		reason := "filtered"
		if kind == models.KindUnhandled && !s.classifier.Filtered(ev.PackageName) {
			reason = "unhandled"
		}
		metrics.EventsDropped.WithLabelValues(reason).Inc()
		return
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if kind == models.KindWindowChanged {
		s.aggregator.RecordSwitch(ev.PackageName, ts)
	} else {
		s.aggregator.RecordInteraction(kind, description, ev.PackageName, ts)
	}

	if err := s.repo.CreateEvent(&models.EventRecord{
		Timestamp:   ts,
		PackageName: ev.PackageName,
		Kind:        kind.String(),
		Description: description,
	}); err != nil {
		metrics.JournalErrors.Inc()
		s.storeError(err)
	}

	s.publisher.Publish(s.aggregator.Snapshot())
}

// teardown flushes aggregation state and publishes the final snapshot.
func (s *Service) teardown() {
	s.running = false
	s.aggregator.Flush(time.Now())
	s.publisher.Publish(s.aggregator.Snapshot())
	s.logger.Info().Msg("Capture stopped")
}

func (s *Service) storeError(err error) {
	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		ErrorMsg:  err.Error(),
	}

	if dbErr := s.repo.CreateErrorLog(errorLog); dbErr != nil {
		s.logger.Error().Err(dbErr).Str("original", err.Error()).Msg("Failed to store error in database")
	} else {
		s.logger.Warn().Err(err).Msg("Error logged to database")
	}
}
