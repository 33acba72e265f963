package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rmchallenge/companion/internal/acquire"
	"github.com/rmchallenge/companion/internal/autosave"
	"github.com/rmchallenge/companion/internal/config"
	"github.com/rmchallenge/companion/internal/database"
	"github.com/rmchallenge/companion/internal/dispatcher"
	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/influx"
	"github.com/rmchallenge/companion/internal/launcher"
	"github.com/rmchallenge/companion/internal/logging"
	"github.com/rmchallenge/companion/internal/mapval"
	"github.com/rmchallenge/companion/internal/monitor"
	"github.com/rmchallenge/companion/internal/otel"
	"github.com/rmchallenge/companion/internal/recorder"
	"github.com/rmchallenge/companion/internal/rules"
	"github.com/rmchallenge/companion/internal/session"
	"github.com/rmchallenge/companion/internal/stream"
	"gorm.io/gorm"
)

const appName = "rmc-companion"

func main() {
	configDir := flag.String("config", ".", "directory containing companion.cfg.json")
	flag.Parse()

	command := strings.ToLower(flag.Arg(0))
	if command == "" {
		command = "run"
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "No usable config file, continuing with defaults:", err)
	}

	var err error
	switch command {
	case "run":
		err = runSession()
	case "scan":
		err = runScan()
	case "validate":
		err = runValidate()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected run, scan or validate)\n", command)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runValidate checks the configured rule set and reports the result.
func runValidate() error {
	rs := config.GetRules()
	if err := rs.Validate(); err != nil {
		return fmt.Errorf("rules invalid: %w", err)
	}
	fmt.Printf("Rules OK: limit %s, sites %s\n", rs.TimeLimit, siteList(rs))
	return nil
}

// runScan indexes the autosave directory once and prints a summary.
func runScan() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	game := config.GetGameConfig()

	registry := autosave.NewRegistry(game.AutosaveDir(), gbx.NewDecoder(), logger)
	if _, err := registry.ScanAll(); err != nil {
		return fmt.Errorf("scan %s: %w", game.AutosaveDir(), err)
	}
	registry.ScanDetails()

	fmt.Printf("Indexed %d played maps under %s\n", registry.Len(), game.AutosaveDir())
	return nil
}

// runSession wires the full companion and drives one session to its end.
func runSession() error {
	start := time.Now()
	game := config.GetGameConfig()
	rs := config.GetRules()

	// Logging: file + console, optional OTel and GELF fan-out.
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(
		logging.LogFilePath(logsDir, appName, start),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644,
	)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	provider, err := otel.New(otel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer provider.Shutdown(context.Background())

	var extraHandlers []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		gelfHandler, err := logging.NewGelfHandler(gl.Address, config.GetString("logLevel"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Graylog disabled, dial failed:", err)
		} else {
			extraHandlers = append(extraHandlers, gelfHandler)
		}
	}

	logManager := logging.NewSlogManager()
	logManager.Setup(logFile, config.GetString("logLevel"), provider.LoggerProvider(), extraHandlers...)
	logger := logManager.Logger()
	defer logManager.Flush(context.Background())

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Played-map index and autosave watcher.
	decoder := gbx.NewDecoder()
	registry := autosave.NewRegistry(game.AutosaveDir(), decoder, logger)
	if _, err := registry.ScanAll(); err != nil {
		return fmt.Errorf("scan autosaves %s: %w", game.AutosaveDir(), err)
	}
	registry.ScanDetails()
	logger.Info("Autosave index built", "dir", game.AutosaveDir(), "maps", registry.Len())

	watcherCfg := config.GetWatcherConfig()
	watcher := autosave.NewWatcher(registry, decoder, autosave.WatcherConfig{
		ReadRetries: watcherCfg.ReadRetries,
		RetryDelay:  watcherCfg.RetryDelay,
	}, logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("watch autosaves: %w", err)
	}
	defer watcher.Stop()

	// Map acquisition.
	validator := mapval.NewValidator(registry, rs.NoUnlimiter)
	acquireCfg := acquire.DefaultConfig(game.DownloadDir())
	acquireCfg.RequestTimeout = time.Duration(config.GetInt("acquire.requestTimeoutSec")) * time.Second
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	acquirer := acquire.NewAcquirer(decoder, validator, rnd, acquireCfg, logger)

	gameLauncher := launcher.New(game.ExePath(), logger)

	// Session record storage.
	storageCfg := config.GetStorageConfig()
	var db *gorm.DB
	if storageCfg.Backend == "database" {
		dbManager := database.NewManager(zlog)
		dbManager.SqliteFilePath = filepath.Join(game.SessionsRoot(), "companion.db")
		if err := dbManager.Connect(); err != nil {
			return fmt.Errorf("connect session database: %w", err)
		}
		if err := dbManager.Setup(recorder.Models()...); err != nil {
			return fmt.Errorf("migrate session database: %w", err)
		}
		db = dbManager.DB
		if dbManager.ShouldSaveLocal {
			defer dbManager.DumpMemoryToDisk()
		}
	}
	rec, err := recorder.New(storageCfg.Backend, game.SessionsRoot(), db, logger)
	if err != nil {
		return fmt.Errorf("init recorder: %w", err)
	}

	// Notifiers: log always, GUI stream and influx when configured.
	sessionID := uuid.NewString()
	logManager.SetContextAttrs(slog.String("session", sessionID))
	notifiers := stream.Multi{&stream.LogNotifier{Logger: logger}}

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable", "error", err)
			influxManager = nil
		} else {
			notifiers = append(notifiers, &influx.Notifier{Manager: influxManager, SessionID: sessionID})
		}
	}

	sess := session.New(rs, acquirer, gameLauncher, rec, nil, watcher.Events(),
		session.SystemClock(), session.Config{
			NetworkRetryDelay: config.GetSessionConfig().NetworkRetryDelay,
			InvalidRetryDelay: config.GetSessionConfig().InvalidRetryDelay,
		}, logger)

	// Control commands, from the GUI stream.
	disp, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}
	disp.Register("skip_map", func(dispatcher.Event) (any, error) {
		sess.SkipMapAsync()
		return "ok", nil
	}, dispatcher.Logged())
	disp.Register("reload_map", func(dispatcher.Event) (any, error) {
		return "ok", sess.ReloadMap()
	}, dispatcher.Logged())
	disp.Register("end_session", func(dispatcher.Event) (any, error) {
		sess.End()
		return "ok", nil
	}, dispatcher.Logged())
	disp.Register("rescan", func(dispatcher.Event) (any, error) {
		changed, err := registry.ScanAll()
		return changed, err
	}, dispatcher.Logged())

	var guiStream *stream.Notifier
	if streamCfg := config.GetStreamConfig(); streamCfg.Enabled {
		guiStream = stream.New(stream.Config{URL: streamCfg.URL}, logger)
		guiStream.OnCommand(func(cmd stream.CommandMessage) {
			if _, err := disp.Dispatch(dispatcher.Event{
				Command:   cmd.Command,
				Args:      cmd.Args,
				Timestamp: time.Now(),
			}); err != nil {
				logger.Error("Command failed", "command", cmd.Command, "error", err)
			}
		})
		if err := guiStream.Connect(); err != nil {
			logger.Warn("GUI stream unavailable", "url", streamCfg.URL, "error", err)
			guiStream = nil
		} else {
			defer guiStream.Close()
			notifiers = append(notifiers, guiStream)
		}
	}
	sess.SetNotifier(notifiers)

	if guiStream != nil {
		err := guiStream.SessionStarted(stream.SessionStartedPayload{
			ID:        sessionID,
			StartedAt: start,
			TimeLimit: rs.TimeLimit.String(),
			Sites:     siteList(rs),
		})
		if err != nil {
			logger.Warn("GUI did not acknowledge session start", "error", err)
		}
	}

	// Status monitor.
	mon := monitor.NewService(monitor.Dependencies{
		Source:          sess,
		LogManager:      logManager,
		Influx:          influxManager,
		EventQueueLen:   watcher.Events().Len,
		InvalidAttempts: acquirer.InvalidAttempts,
		StatusDir:       logsDir,
	})
	if err := mon.Start(sessionID); err != nil {
		logger.Warn("Status monitor failed to start", "error", err)
	}
	defer mon.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Session starting", "id", sessionID,
		"limit", rs.TimeLimit.String(), "sites", siteList(rs))
	return sess.Run(ctx)
}

func siteList(rs rules.RuleSet) string {
	var names []string
	for _, s := range rs.Request.Sites.Sites() {
		names = append(names, s.String())
	}
	if len(names) == 0 {
		return "Any"
	}
	return strings.Join(names, "|")
}
