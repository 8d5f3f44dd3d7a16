package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/fx"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/inkwell-studio/inkwell/ai"
	"github.com/inkwell-studio/inkwell/storage"
	"github.com/inkwell-studio/inkwell/workspace"
)

// LoggerResult holds the configured logger
type LoggerResult struct {
	fx.Out
	Logger *slog.Logger
}

// ProvideLogger creates the rotating file logger. The terminal belongs to the
// TUI, so nothing is ever written to stdout or stderr.
func ProvideLogger() (LoggerResult, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return LoggerResult{}, fmt.Errorf("failed to get user home directory: %w", err)
	}
	logDir := filepath.Join(homeDir, ".local", "share", "inkwell")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return LoggerResult{}, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "inkwell.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	logLevel := slog.LevelInfo
	if cli.Debug {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	logger := slog.New(slog.NewTextHandler(logFile, opts))
	slog.SetDefault(logger)
	return LoggerResult{Logger: logger}, nil
}

// ProvideConfig loads and returns the application configuration
func ProvideConfig(logger *slog.Logger) (*Config, error) {
	logger.Info("loading configuration")
	config, err := LoadConfig()
	if err != nil {
		logger.Warn("using default configuration due to load failure", "error", err)
		defaults := defaultConfig()
		config = &defaults
	}
	logger.Info("configuration loaded", "provider", config.LLM.Provider)
	return config, nil
}

// StorageParams holds parameters for storage initialization
type StorageParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *Config
	Logger    *slog.Logger
}

// StorageResult holds the storage initialization result
type StorageResult struct {
	fx.Out
	DB    *storage.DB
	Store *storage.Store
}

// ProvideStorage initializes the SQLite database and the document store
func ProvideStorage(params StorageParams) (StorageResult, error) {
	params.Logger.Info("initializing storage", "database_path", params.Config.Storage.DatabasePath)
	db, err := storage.InitDB(params.Config.Storage.DatabasePath)
	if err != nil {
		params.Logger.Error("failed to initialize storage", "error", err)
		return StorageResult{}, fmt.Errorf("failed to initialize storage: %w", err)
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("closing storage")
			return db.Close()
		},
	})

	return StorageResult{DB: db, Store: storage.NewStore(db)}, nil
}

// WorkspaceParams holds parameters for workspace store creation
type WorkspaceParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *Config
	Store     *storage.Store
	Logger    *slog.Logger
}

// ProvideWorkspace creates the workspace store, restores the last session
// layout, and registers a shutdown snapshot. The AI backend is attached later
// by ProvideModelClient once the LLM client is ready.
func ProvideWorkspace(params WorkspaceParams) (*workspace.Store, error) {
	opts := []workspace.Option{}
	if params.Config.Workspace.Author != "" {
		opts = append(opts, workspace.WithAuthor(params.Config.Workspace.Author))
	}
	if ms := params.Config.Workspace.FlushWindowMs; ms > 0 {
		opts = append(opts, workspace.WithFlushWindow(time.Duration(ms)*time.Millisecond))
	}

	ws := workspace.NewStore(nil, params.Store, opts...)
	if err := ws.RestoreWorkspace(); err != nil {
		// A corrupt snapshot should not block startup.
		params.Logger.Warn("failed to restore workspace layout", "error", err)
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("saving workspace snapshot")
			if _, err := ws.SnapshotWorkspace(); err != nil {
				params.Logger.Error("failed to save workspace snapshot", "error", err)
				return err
			}
			return nil
		},
	})

	return ws, nil
}

// ModelClientParams holds parameters for async LLM client initialization
type ModelClientParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *Config
	Workspace *workspace.Store
	Logger    *slog.Logger
}

// ProvideModelClient sets up async LLM client initialization. The client is
// built in a goroutine so the TUI can start immediately; when it is ready the
// streamer is attached to the workspace store and the TUI is notified.
func ProvideModelClient(params ModelClientParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				params.Logger.Info("connecting to LLM", "provider", params.Config.LLM.Provider)
				llm, err := ai.NewModel(ai.Config{
					Provider: params.Config.LLM.Provider,
					Model:    params.Config.LLM.Model,
					APIKey:   params.Config.LLM.APIKey,
					BaseURL:  params.Config.LLM.BaseURL,
				})
				if err != nil {
					params.Logger.Warn("failed to connect to LLM, running without AI capabilities", "error", err)
					if program != nil {
						program.Send(llmInitErrorMsg{err: err})
					}
					return
				}

				streamer := ai.NewStreamer(llm, func(m any) {
					if program != nil {
						program.Send(m)
					}
				})
				params.Workspace.SetBackend(streamer)
				params.Logger.Info("LLM client connected")
				if program != nil {
					program.Send(llmInitSuccessMsg{})
				}
			}()
			return nil
		},
	})
}

// TUIModelParams holds parameters for TUI model creation
type TUIModelParams struct {
	fx.In
	Config    *Config
	Workspace *workspace.Store
	Store     *storage.Store
	Logger    *slog.Logger
}

// ProvideTUIModel creates and returns the TUI model
func ProvideTUIModel(params TUIModelParams) *TUIModel {
	return NewTUIModel(params.Config, params.Workspace, params.Store)
}

// TUIProgramParams holds parameters for TUI program initialization
type TUIProgramParams struct {
	fx.In
	Model  *TUIModel
	Logger *slog.Logger
}

// StartTUI creates the TUI program
func StartTUI(params TUIProgramParams) *tea.Program {
	params.Logger.Info("creating TUI program")

	prog := tea.NewProgram(params.Model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Global program reference so async operations can send messages
	program = prog

	return prog
}
