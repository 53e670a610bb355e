package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/internal/database"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/internal/reporter"
	"github.com/tapsum/tapsum/internal/tracker"
)

type Handler struct {
	config   *config.Config
	repo     *database.Repository
	service  *tracker.Service
	reporter *reporter.Reporter
	logger   zerolog.Logger
}

func NewHandler(cfg *config.Config, repo *database.Repository, svc *tracker.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		config:   cfg,
		repo:     repo,
		service:  svc,
		reporter: reporter.New(cfg, repo),
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/usage", h.handleUsage)
	mux.HandleFunc("/api/sessions", h.handleSessions)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/export", h.handleExport)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWS)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", h.handleHealth)
}

// handleEvents returns the formatted event log from the live snapshot.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events := h.service.Aggregator().Snapshot().Events

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}
	}
	if events == nil {
		events = []string{}
	}

	respondJSON(w, events)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, h.service.Aggregator().Snapshot().Usage)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := h.service.Aggregator().Snapshot().Sessions
	if sessions == nil {
		sessions = []models.AppSession{}
	}
	respondJSON(w, sessions)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.GenerateReport(periodType, h.service.Aggregator().Snapshot())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, report)
}

// handleExport streams the CSV export. An optional repeated "selected"
// query parameter restricts rows to packages with a selected event line.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var selected map[string]bool
	if lines, ok := r.URL.Query()["selected"]; ok {
		selected = make(map[string]bool, len(lines))
		for _, line := range lines {
			selected[line] = true
		}
	}

	filename := fmt.Sprintf("tapsum-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := reporter.WriteCSV(w, h.service.Aggregator().Snapshot(), selected); err != nil {
		h.logger.Error().Err(err).Msg("CSV export failed")
		http.Error(w, fmt.Sprintf("Export failed: %v", err), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.service.Aggregator().Snapshot()
	respondJSON(w, map[string]interface{}{
		"running":    h.service.IsRunning(),
		"foreground": snap.Foreground,
		"packages":   len(snap.Usage),
		"sessions":   len(snap.Sessions),
		"events":     len(snap.Events),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
