// Package internal provides application configuration and bootstrap.
package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Todos       TodosConfig       `yaml:"todos"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Attachments.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ExternalNotebook aliases a directory outside the managed vault root.
type ExternalNotebook struct {
	Alias string `yaml:"alias"`
	Path  string `yaml:"path"`
}

// Validate validates an external notebook entry.
func (n ExternalNotebook) Validate() error {
	if err := validation.ValidateStruct(&n,
		validation.Field(&n.Alias, validation.Required),
		validation.Field(&n.Path, validation.Required),
	); err != nil {
		return err
	}
	if strings.Contains(n.Alias, "/") {
		return fmt.Errorf("vault: external alias %q must be a single path segment", n.Alias)
	}
	return nil
}

// VaultConfig holds the managed notes root plus external notebooks and
// ignore patterns.
type VaultConfig struct {
	Path     string             `yaml:"path"`
	External []ExternalNotebook `yaml:"external"`
	Ignore   []string           `yaml:"ignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.External))
	for _, n := range c.External {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.Alias]; dup {
			return fmt.Errorf("vault: duplicate external alias %q", n.Alias)
		}
		seen[n.Alias] = struct{}{}
	}
	return nil
}

// ExternalMap returns alias -> path for the storage layer.
func (c *VaultConfig) ExternalMap() map[string]string {
	out := make(map[string]string, len(c.External))
	for _, n := range c.External {
		out[n.Alias] = n.Path
	}
	return out
}

// Aliases returns the external notebook aliases.
func (c *VaultConfig) Aliases() []string {
	out := make([]string, 0, len(c.External))
	for _, n := range c.External {
		out = append(out, n.Alias)
	}
	return out
}

// SQLiteConfig holds the cache database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AttachmentsConfig holds managed attachment storage settings.
type AttachmentsConfig struct {
	Dir           string `yaml:"dir"`
	CopyByDefault bool   `yaml:"copy_by_default"`
}

// Validate validates the attachments configuration.
func (c *AttachmentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// TodosConfig holds todo-handling behavior.
type TodosConfig struct {
	// AutoCompleteChildren completes nested child todos when their parent
	// is marked complete.
	AutoCompleteChildren bool `yaml:"auto_complete_children"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Vault: VaultConfig{
			Path: "./notes",
		},
		SQLite: SQLiteConfig{
			Path: "./dagaz.db",
		},
		Attachments: AttachmentsConfig{
			Dir:           "./notes/.attachments",
			CopyByDefault: true,
		},
		Todos: TodosConfig{
			AutoCompleteChildren: true,
		},
	}
}
