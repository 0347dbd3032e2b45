package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Attachments.CopyByDefault || !cfg.Todos.AutoCompleteChildren {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestVaultConfig_DuplicateAlias(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.External = []ExternalNotebook{
		{Alias: "team", Path: "/srv/a"},
		{Alias: "team", Path: "/srv/b"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("duplicate alias should fail validation")
	}
}

func TestVaultConfig_AliasMustBeSingleSegment(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Vault.External = []ExternalNotebook{{Alias: "a/b", Path: "/srv/a"}}
	if err := cfg.Validate(); err == nil {
		t.Error("multi-segment alias should fail validation")
	}
}

func TestVaultConfig_Accessors(t *testing.T) {
	v := VaultConfig{External: []ExternalNotebook{
		{Alias: "team", Path: "/srv/team"},
		{Alias: "ref", Path: "/srv/ref"},
	}}
	m := v.ExternalMap()
	if m["team"] != "/srv/team" || m["ref"] != "/srv/ref" {
		t.Errorf("ExternalMap = %v", m)
	}
	a := v.Aliases()
	if len(a) != 2 || a[0] != "team" || a[1] != "ref" {
		t.Errorf("Aliases = %v", a)
	}
}

func TestConfigLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DAGAZ_TEST_VAULT", "/tmp/vault")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "vault:\n  path: ${DAGAZ_TEST_VAULT}\nsqlite:\n  path: ./cache.db\nattachments:\n  dir: ./att\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := config.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Vault.Path != "/tmp/vault" {
		t.Errorf("vault path = %s, want env-expanded value", cfg.Vault.Path)
	}
}

func TestConfigLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := config.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Vault.Path != "./notes" {
		t.Errorf("vault path = %s, want default", cfg.Vault.Path)
	}
}

func TestConfigLoad_InvalidFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vault:\n  path: \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := config.Load(path, cfg); err == nil {
		t.Error("empty vault path should fail validation")
	}
}
