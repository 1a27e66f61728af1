package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"stackpilot-go/internal/config"
	"stackpilot-go/internal/eventlog"
	"stackpilot-go/internal/logs"
	"stackpilot-go/internal/store"
	"stackpilot-go/internal/supervisor"
)

var (
	configFile    string
	dataDir       string
	logLevel      string
	logToFile     bool
	logDir        string
	notifications bool

	version = "v0.1.0" // injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stackpilot",
		Short:   "Stackpilot - local database and API stack supervisor",
		Version: version,
		RunE:    runSession,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory path (default: ~/.stackpilot)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", true, "Enable logging to file in standard OS location")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Custom log directory path (overrides standard OS location)")
	rootCmd.Flags().BoolVar(&notifications, "notifications", true, "Enable desktop notifications on ready/failed")

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newSessionsCommand())

	if err := rootCmd.Execute(); err != nil {
		code := exitCodeForError(err)
		fmt.Fprintf(os.Stderr, "Error: %v (%s)\n", err, exitCodeDescription(code))
		os.Exit(code)
	}
}

func runSession(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}

	if cmd.Flags().Changed("notifications") {
		cfg.Notifications = notifications
	}

	logger, err := logs.SetupLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	sugar.Infow("Starting stackpilot",
		"version", version,
		"data_dir", cfg.DataDir,
		"log_level", logLevel)

	sessions, err := store.Open(cfg.DataDir, sugar)
	if err != nil {
		// Run history is best-effort; a locked or corrupt store must not
		// block the session.
		sugar.Warnw("Session history unavailable", "error", err)
		sessions = nil
	} else {
		defer func() {
			_ = sessions.Close()
		}()
	}

	sessionID := store.NewSessionID()
	events := eventlog.Open(eventLogPath(cfg.DataDir, sessionID), 10)
	defer func() {
		_ = events.Close()
	}()

	sup := supervisor.New(cfg, events, sugar, version,
		supervisor.WithSessionID(sessionID),
		supervisor.WithSessions(sessions),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		sugar.Infow("Received signal, shutting down", "signal", sig.String())
		sup.Shutdown()
	}()

	return sup.Run(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, dataDir)
	if err != nil {
		return nil, err
	}

	if cfg.Logging == nil {
		cfg.Logging = &config.LogConfig{
			Level:         logLevel,
			EnableFile:    logToFile,
			EnableConsole: true,
			Filename:      "main.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
		}
	} else {
		cfg.Logging.Level = logLevel
		cfg.Logging.EnableFile = logToFile
	}
	if logDir != "" {
		cfg.Logging.LogDir = logDir
	}

	return cfg, nil
}

// eventLogPath returns the per-session event log location. One file per
// session, named by the session ID so files sort chronologically.
func eventLogPath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "events", sessionID+".log")
}
