package source

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/pkg/source/adb"
	"github.com/tapsum/tapsum/pkg/source/replay"
	"github.com/tapsum/tapsum/pkg/source/x11"
)

// New builds the configured event source. "auto" prefers an attached
// device over the local desktop.
func New(cfg *config.Config, logger zerolog.Logger) (Source, error) {
	switch cfg.Capture.Source {
	case "adb":
		return adb.New(cfg.Capture.ADBSerial, logger), nil

	case "x11":
		return x11.New(cfg.Capture.PollInterval, logger), nil

	case "replay":
		return replay.New(cfg.Capture.ReplayPath, logger), nil

	case "auto":
		if s := adb.New(cfg.Capture.ADBSerial, logger); s.IsAvailable() {
			return s, nil
		}
		if s := x11.New(cfg.Capture.PollInterval, logger); s.IsAvailable() {
			return s, nil
		}
		return nil, fmt.Errorf("no event source available (adb not on PATH, no X display)")

	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Capture.Source)
	}
}
