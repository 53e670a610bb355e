// Package adb implements an event source that streams accessibility
// events from an attached Android device via the adb tool. Interaction
// events come from "uiautomator events"; when an event carries no
// content description the source attaches the window hierarchy from a
// throttled "uiautomator dump" so the classifier can walk it.
package adb

import (
	"bufio"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
)

const (
	eventBuffer  = 64
	dumpInterval = 5 * time.Second
)

// Source streams events from one device.
type Source struct {
	serial string
	events chan *models.RawEvent
	logger zerolog.Logger

	mu       sync.Mutex
	lastDump time.Time
	cmd      *exec.Cmd
}

// New creates an adb source. serial may be empty when exactly one
// device is attached.
func New(serial string, logger zerolog.Logger) *Source {
	return &Source{
		serial: serial,
		events: make(chan *models.RawEvent, eventBuffer),
		logger: logger.With().Str("component", "adb-source").Logger(),
	}
}

// Name returns "adb".
func (s *Source) Name() string { return "adb" }

// Events returns the delivery channel.
func (s *Source) Events() <-chan *models.RawEvent { return s.events }

// IsAvailable checks that the adb binary is on PATH.
func (s *Source) IsAvailable() bool {
	_, err := exec.LookPath("adb")
	return err == nil
}

// Start launches the event stream and the line reader goroutine.
func (s *Source) Start(ctx context.Context) error {
	args := s.deviceArgs("shell", "uiautomator", "events")
	cmd := exec.CommandContext(ctx, "adb", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	go func() {
		defer close(s.events)
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			ev := ParseEventLine(scanner.Text())
			if ev == nil {
				continue
			}

			if ev.Description == "" && ev.Kind().Interactive() {
				ev.Root = s.maybeDumpHierarchy(ctx)
			}

			select {
			case s.events <- ev:
			case <-ctx.Done():
				ev.ReleaseNodes()
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Event stream read failed")
		}
	}()

	s.logger.Info().Str("serial", s.serial).Msg("adb event stream started")
	return nil
}

// Close terminates the underlying adb process if still running.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return nil
}

// maybeDumpHierarchy fetches the current window hierarchy, at most once
// per dumpInterval. Returns nil when throttled or on any failure; the
// classifier treats a missing tree as "no description".
func (s *Source) maybeDumpHierarchy(ctx context.Context) *models.Node {
	s.mu.Lock()
	if time.Since(s.lastDump) < dumpInterval {
		s.mu.Unlock()
		return nil
	}
	s.lastDump = time.Now()
	s.mu.Unlock()

	args := s.deviceArgs("exec-out", "uiautomator", "dump", "/dev/tty")
	out, err := exec.CommandContext(ctx, "adb", args...).Output()
	if err != nil {
		s.logger.Debug().Err(err).Msg("Hierarchy dump failed")
		return nil
	}

	root, err := ParseHierarchy(out)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Hierarchy parse failed")
		return nil
	}
	return root
}

func (s *Source) deviceArgs(args ...string) []string {
	if s.serial == "" {
		return args
	}
	return append([]string{"-s", s.serial}, args...)
}
