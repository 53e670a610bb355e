// Package x11 implements a desktop event source: it polls the X11
// active window and emits a window-change event whenever focus moves to
// a different application. Clicks and focus inside applications are not
// visible at this level, so the source only feeds the usage aggregator.
package x11

import (
	"context"
	"encoding/binary"
	"os"
	"strings"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/models"
)

const eventBuffer = 16

// Source polls the X server for the active window.
type Source struct {
	interval time.Duration
	events   chan *models.RawEvent
	logger   zerolog.Logger

	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom

	lastClass string
}

// New creates an X11 source polling at the given interval.
func New(interval time.Duration, logger zerolog.Logger) *Source {
	return &Source{
		interval: interval,
		events:   make(chan *models.RawEvent, eventBuffer),
		logger:   logger.With().Str("component", "x11-source").Logger(),
	}
}

// Name returns "x11".
func (s *Source) Name() string { return "x11" }

// Events returns the delivery channel.
func (s *Source) Events() <-chan *models.RawEvent { return s.events }

// IsAvailable reports whether an X display is reachable.
func (s *Source) IsAvailable() bool {
	return os.Getenv("DISPLAY") != ""
}

// Start connects to the X server and begins the poll loop.
func (s *Source) Start(ctx context.Context) error {
	if err := s.connect(); err != nil {
		return err
	}

	go func() {
		defer close(s.events)
		defer s.conn.Close()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollOnce(ctx)
			}
		}
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("X11 poll loop started")
	return nil
}

// Close is a no-op; the poll goroutine owns the connection.
func (s *Source) Close() error { return nil }

func (s *Source) connect() error {
	conn, err := xgb.NewConn()
	if err != nil {
		return errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(conn)
	s.conn = conn
	s.root = setup.DefaultScreen(conn).Root
	s.atoms = make(map[string]xproto.Atom)

	for _, name := range []string{"_NET_ACTIVE_WINDOW", "_NET_WM_NAME", "WM_CLASS", "UTF8_STRING"} {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return errors.Wrapf(err, "failed to intern atom %s", name)
		}
		s.atoms[name] = reply.Atom
	}

	return nil
}

// pollOnce emits a window-change event when the focused application
// class differs from the last poll.
func (s *Source) pollOnce(ctx context.Context) {
	window := s.activeWindow()
	if window == 0 {
		return
	}

	class := s.windowClass(window)
	if class == "" || class == s.lastClass {
		return
	}
	s.lastClass = class

	ev := &models.RawEvent{
		Type:        "TYPE_WINDOW_STATE_CHANGED",
		PackageName: normalizeClass(class),
		Description: s.windowName(window),
		Timestamp:   time.Now(),
	}

	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Source) activeWindow() xproto.Window {
	data := s.property(s.root, s.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (s *Source) windowName(window xproto.Window) string {
	data := s.property(window, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], 256)
	return strings.TrimRight(string(data), "\x00")
}

func (s *Source) windowClass(window xproto.Window) string {
	data := s.property(window, s.atoms["WM_CLASS"], xproto.AtomString, 256)
	if len(data) == 0 {
		return ""
	}
	// WM_CLASS holds instance and class, NUL separated; the class is
	// the stable application identity.
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 2 {
		return parts[1]
	}
	return parts[0]
}

func (s *Source) property(window xproto.Window, atom, atomType xproto.Atom, length uint32) []byte {
	reply, err := xproto.GetProperty(s.conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil
	}
	return reply.Value
}

// normalizeClass turns a WM class like "Firefox" into a package-style
// identifier so desktop and device usage share one namespace.
func normalizeClass(class string) string {
	return "x11." + strings.ToLower(strings.ReplaceAll(class, " ", "-"))
}
