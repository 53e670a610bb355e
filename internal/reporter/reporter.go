package reporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/internal/database"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/pkg/utils"
)

// Reporter builds usage reports from the live snapshot plus the event
// journal. Usage totals come from the aggregator and therefore cover
// the current day only; event counts cover the requested period.
type Reporter struct {
	config *config.Config
	repo   *database.Repository
}

// New creates a new reporter
func New(cfg *config.Config, repo *database.Repository) *Reporter {
	return &Reporter{
		config: cfg,
		repo:   repo,
	}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string, snap models.Snapshot) (*models.Report, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}

	counts, err := r.repo.GetEventCountsSince(period.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to get event counts: %w", err)
	}
	countByPkg := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByPkg[c.PackageName] = c.Count
	}

	sessionsByPkg := make(map[string]int, len(snap.Sessions))
	for _, s := range snap.Sessions {
		sessionsByPkg[s.PackageName]++
	}

	var apps []models.AppReport
	var totalSeconds int64
	for pkg, u := range snap.Usage {
		seconds := int64(u.TotalTime.Seconds())
		apps = append(apps, models.AppReport{
			PackageName:  pkg,
			DisplayName:  u.DisplayName,
			Category:     u.Category,
			TotalSeconds: seconds,
			TotalMinutes: float64(seconds) / 60.0,
			TotalHours:   float64(seconds) / 3600.0,
			OpenCount:    u.OpenCount,
			EventCount:   countByPkg[pkg],
			SessionCount: sessionsByPkg[pkg],
		})
		totalSeconds += seconds
	}

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].TotalSeconds != apps[j].TotalSeconds {
			return apps[i].TotalSeconds > apps[j].TotalSeconds
		}
		return apps[i].PackageName < apps[j].PackageName
	})

	if totalSeconds > 0 {
		for i := range apps {
			apps[i].Percentage = (float64(apps[i].TotalSeconds) / float64(totalSeconds)) * 100.0
		}
	}

	return &models.Report{
		Period:       *period,
		Apps:         apps,
		TotalSeconds: totalSeconds,
		TotalMinutes: float64(totalSeconds) / 60.0,
		TotalHours:   float64(totalSeconds) / 3600.0,
		GeneratedAt:  time.Now(),
	}, nil
}

// getPeriod calculates the time range for the report
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	now := time.Now()
	var start time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &models.ReportPeriod{Start: start, End: start.Add(24 * time.Hour), Type: periodType}, nil

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		return &models.ReportPeriod{Start: start, End: start.AddDate(0, 0, 7), Type: periodType}, nil

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &models.ReportPeriod{Start: start, End: start.AddDate(0, 1, 0), Type: periodType}, nil

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	output := fmt.Sprintf("Usage Report - %s\n", report.Period.Type)
	output += fmt.Sprintf("Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	output += fmt.Sprintf("Total Time: %.2fh (%.0fm)\n\n", report.TotalHours, report.TotalMinutes)

	if len(report.Apps) == 0 {
		output += "No activity recorded for this period.\n"
		return output
	}

	output += fmt.Sprintf("%-30s %10s %7s %7s %9s %9s\n", "Application", "Minutes", "Opens", "Events", "Sessions", "Percent")
	output += fmt.Sprintf("%s\n", "--------------------------------------------------------------------------------")

	for _, app := range report.Apps {
		output += fmt.Sprintf("%-30s %10.0f %7d %7d %9d %8.1f%%\n",
			utils.Truncate(app.DisplayName, 30),
			app.TotalMinutes,
			app.OpenCount,
			app.EventCount,
			app.SessionCount,
			app.Percentage)
	}

	return output
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
