package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsum/tapsum/internal/classify"
	"github.com/tapsum/tapsum/internal/config"
	"github.com/tapsum/tapsum/internal/daemon"
	"github.com/tapsum/tapsum/internal/database"
	"github.com/tapsum/tapsum/internal/models"
	"github.com/tapsum/tapsum/internal/reporter"
	"github.com/tapsum/tapsum/internal/tracker"
	"github.com/tapsum/tapsum/internal/web"
	"github.com/tapsum/tapsum/pkg/appname"
	"github.com/tapsum/tapsum/pkg/source"
	"github.com/tapsum/tapsum/version"
)

const daemonChildEnv = "TAPSUM_DAEMON_CHILD"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start":
		startDaemon(false)
	case "serve":
		startDaemon(true)
	case "stop":
		stopDaemon()
	case "status":
		showStatus()
	case "report":
		generateReport()
	case "export":
		exportCSV()
	case "clear":
		clearDatabase()
	case "version":
		showVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`tapsum - UI interaction capture and per-app usage aggregation

Usage:
  tapsum <command> [options]

Commands:
  start              Start the capture daemon
  serve              Start daemon with web API server
  stop               Stop the capture daemon
  status             Show daemon status and current foreground app
  report [period]    Generate usage report (period: day, week, month)
  export [file]      Download today's usage as CSV (requires serve)
  clear              Clear the event journal
  version            Show version information
  help               Show this help message

Examples:
  tapsum serve
  tapsum status
  tapsum report day
  tapsum report week --json
  tapsum export usage.csv
  tapsum stop

Environment Variables:
  TAPSUM_DATABASE_PATH       Event journal file path
  TAPSUM_CAPTURE_SOURCE      Event source (auto, adb, x11, replay)
  TAPSUM_CAPTURE_ADB_SERIAL  Device serial for the adb source
  TAPSUM_DAEMON_PID_FILE     PID file path
  TAPSUM_WEB_PORT            Web API port
  TAPSUM_LOGGING_LEVEL       Log level (debug, info, warn, error)

Version: %s
`, version.Version)
}

func setupLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Logging.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadConfig() *config.Config {
	cfg, err := config.Load(os.Getenv("TAPSUM_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func startDaemon(withWeb bool) {
	cfg := loadConfig()

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check daemon status: %v\n", err)
		os.Exit(1)
	}
	if running {
		fmt.Fprintf(os.Stderr, "Daemon is already running (PID: %d)\n", pid)
		os.Exit(1)
	}

	if os.Getenv(daemonChildEnv) != "1" {
		daemonize(cfg, withWeb)
		return
	}

	runDaemon(cfg, dm, withWeb)
}

func runDaemon(cfg *config.Config, dm *daemon.Daemon, withWeb bool) {
	var out io.Writer = os.Stderr
	logPath := daemonLogPath()
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		out = logFile
		defer logFile.Close()
	}
	logger := setupLogger(cfg, out)

	db, repo, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if cfg.Database.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Database.RetentionDays)
		if deleted, err := repo.DeleteOldEvents(cutoff); err != nil {
			logger.Warn().Err(err).Msg("Journal cleanup failed")
		} else if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Pruned old journal entries")
		}
	}

	src, err := source.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize event source")
	}
	defer src.Close()
	logger.Info().Str("source", src.Name()).Msg("Event source initialized")

	if err := dm.WritePID(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}
	defer dm.RemovePID()

	resolver, err := appname.New(nil, 256)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create app name resolver")
	}

	classifier := classify.New(cfg.Capture.MaxTreeDepth, cfg.Capture.ExcludePackages, logger)
	agg := tracker.NewAggregator(resolver, cfg.Capture.EventLogSize, logger)
	pub := tracker.NewPublisher(logger)
	svc := tracker.NewService(cfg, repo, src, classifier, agg, pub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var webServer *web.Server
	if withWeb {
		webServer = web.NewServer(cfg, repo, svc, logger)
		go func() {
			if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Web server error")
			}
		}()
		logger.Info().Str("address", webServer.GetAddress()).Msg("Web API available")
	}

	go func() {
		<-sigChan
		logger.Info().Msg("Received shutdown signal")
		cancel()
		svc.Stop()
	}()

	logger.Info().Msg("Starting tapsum daemon")
	logger.Info().Msg(cfg.String())

	if err := svc.Start(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("Capture service error")
	}

	if webServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down web server")
		}
	}

	logger.Info().Msg("Daemon stopped")
}

func stopDaemon() {
	cfg := loadConfig()
	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check daemon status: %v\n", err)
		os.Exit(1)
	}
	if !running {
		fmt.Println("Daemon is not running")
		return
	}
	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Daemon stopped successfully")
}

func showStatus() {
	cfg := loadConfig()
	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check daemon status: %v\n", err)
		os.Exit(1)
	}
	if !running {
		fmt.Println("Status: Not running")
		return
	}

	fmt.Printf("Status: Running (PID: %d)\n", pid)
	fmt.Printf("Source: %s\n", cfg.Capture.Source)

	// The live foreground app is only known to the daemon; ask its API.
	resp, err := apiGet(cfg, "/api/status")
	if err != nil {
		fmt.Println("\nWeb API not reachable (start with 'tapsum serve' for live status)")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("\nLive status:\n%s", body)
}

func generateReport() {
	periodType := "day"
	if len(os.Args) > 2 {
		periodType = os.Args[2]
	}
	jsonOutput := len(os.Args) > 3 && os.Args[3] == "--json"

	cfg := loadConfig()
	db, repo, err := openDatabase(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rep := reporter.New(cfg, repo)
	report, err := rep.GenerateReport(periodType, liveSnapshot(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate report: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonStr, err := rep.FormatReportJSON(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to format JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(jsonStr)
	} else {
		fmt.Println(rep.FormatReportText(report))
	}
}

func exportCSV() {
	cfg := loadConfig()

	resp, err := apiGet(cfg, "/api/export")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export requires a running daemon with web API ('tapsum serve'): %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Export failed: %s", body)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if len(os.Args) > 2 {
		f, err := os.Create(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 2 {
		fmt.Printf("Exported to %s\n", os.Args[2])
	}
}

func clearDatabase() {
	cfg := loadConfig()
	fmt.Print("This will delete all journaled events. Are you sure? (yes/no): ")
	var response string
	fmt.Scanln(&response)
	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	db, repo, err := openDatabase(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repo.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clear database: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Event journal cleared")
}

func showVersion() {
	fmt.Printf("version: %s\n", version.Version)
	fmt.Printf("built  : %s\n", version.Date)
}

func openDatabase(cfg *config.Config) (*database.DB, *database.Repository, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = database.GetDefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}

	db, err := database.Connect(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, database.NewRepository(db), nil
}

// liveSnapshot fetches the daemon's current snapshot over the web API.
// A zero snapshot is returned when the daemon is not serving; the
// report then covers journaled events only.
func liveSnapshot(cfg *config.Config) models.Snapshot {
	resp, err := apiGet(cfg, "/api/usage")
	if err != nil {
		return models.Snapshot{}
	}
	defer resp.Body.Close()

	var usage map[string]models.AppUsage
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return models.Snapshot{}
	}
	return models.Snapshot{Usage: usage, TakenAt: time.Now()}
}

func apiGet(cfg *config.Config, path string) (*http.Response, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	url := fmt.Sprintf("http://%s:%d%s", cfg.Web.Host, cfg.Web.Port, path)
	return client.Get(url)
}

func daemonize(cfg *config.Config, withWeb bool) {
	env := os.Environ()
	env = append(env, daemonChildEnv+"=1")
	args := os.Args
	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}
	process, err := os.StartProcess(args[0], args, procAttr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon process: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Daemon started successfully (PID: %d)\n", process.Pid)
	if withWeb {
		fmt.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	}
	fmt.Printf("Logs: %s\n", daemonLogPath())
}

func daemonLogPath() string {
	return fmt.Sprintf("/tmp/tapsum-%d.log", os.Getuid())
}
