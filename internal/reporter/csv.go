package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tapsum/tapsum/internal/metrics"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/pkg/utils"
)

// csvHeader is the fixed export header.
var csvHeader = []string{"Package Name", "App Name", "Category", "Events", "Usage", "Sessions"}

// WriteCSV writes the usage export for a snapshot. selected filters
// rows: a package is included only if it has no recorded events or at
// least one of its event lines is in the selection. A nil selection
// includes everything.
//
// Cell values never contain raw newlines; embedded newlines are written
// as the two characters `\n`, and the csv writer quotes cells that
// contain commas.
func WriteCSV(w io.Writer, snap models.Snapshot, selected map[string]bool) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		metrics.ExportFailures.Inc()
		return errors.Wrap(err, "failed to write csv header")
	}

	pkgs := make([]string, 0, len(snap.Usage))
	for pkg := range snap.Usage {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	sessionsByPkg := make(map[string][]models.AppSession)
	for _, s := range snap.Sessions {
		sessionsByPkg[s.PackageName] = append(sessionsByPkg[s.PackageName], s)
	}

	for _, pkg := range pkgs {
		events := snap.PkgEvents[pkg]
		if !includeRow(events, selected) {
			continue
		}

		u := snap.Usage[pkg]
		row := []string{
			escapeNewlines(pkg),
			escapeNewlines(u.DisplayName),
			escapeNewlines(u.Category),
			escapeNewlines(strings.Join(events, "\n")),
			formatUsageCell(u),
			formatSessionsCell(sessionsByPkg[pkg]),
		}
		if err := cw.Write(row); err != nil {
			metrics.ExportFailures.Inc()
			return errors.Wrapf(err, "failed to write csv row for %s", pkg)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		metrics.ExportFailures.Inc()
		return errors.Wrap(err, "failed to flush csv")
	}
	return nil
}

// includeRow applies the export filter: packages without events always
// appear; packages with events need at least one selected line.
func includeRow(events []string, selected map[string]bool) bool {
	if len(events) == 0 || selected == nil {
		return true
	}
	for _, line := range events {
		if selected[line] {
			return true
		}
	}
	return false
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

func formatUsageCell(u models.AppUsage) string {
	return fmt.Sprintf("Total Time: %s, Opened: %d times",
		utils.FormatUsageTime(u.TotalTime), u.OpenCount)
}

func formatSessionsCell(sessions []models.AppSession) string {
	if len(sessions) == 0 {
		return "No sessions recorded"
	}

	var total time.Duration
	closed := 0
	for _, s := range sessions {
		if !s.Open() {
			total += s.Duration
			closed++
		}
	}

	avg := time.Duration(0)
	if closed > 0 {
		avg = total / time.Duration(closed)
	}
	return fmt.Sprintf("%d sessions, avg. %s", len(sessions), utils.FormatRoundedUnit(avg))
}
