package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/dagaz/internal/engine"
	"github.com/starford/dagaz/internal/extract"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/mutate"
	"github.com/starford/dagaz/internal/storage"
)

// App owns the components for one process run. It is constructed once in
// main and passed explicitly; Close tears everything down, which also gives
// tests a clean isolation boundary.
type App struct {
	Config *Config
	Engine *engine.Engine
	Logger *slog.Logger
}

// Open builds the application: logger, vault storage, cache, scanner,
// editor, and the engine facade on top.
func Open(opts ...Option) (*App, error) {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}
	if app.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.Config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	app.Logger = logger

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.ExternalMap(), cfg.Vault.Ignore)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	attach, err := storage.NewAttachmentStore(cfg.Attachments.Dir, cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init attachment storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	dialect := extract.CheckboxDialect{}
	scanner := index.NewScanner(db, store, dialect, cfg.Vault.Aliases(), logger)
	editor := mutate.NewEditor(store, dialect, cfg.Todos.AutoCompleteChildren)

	app.Engine = engine.New(store, attach, db, scanner, editor, logger)

	logger.Debug("application initialized",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("external_notebooks", len(cfg.Vault.External)))
	return app, nil
}

// Close releases the engine's resources.
func (a *App) Close() error {
	if a.Engine == nil {
		return nil
	}
	return a.Engine.Close()
}
