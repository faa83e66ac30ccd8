package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Prefix != "!" || cfg.StoreDriver != DriverSQLite || cfg.StoragePath != "data/cooldowns.db" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if !cfg.CooldownsEnabled || !cfg.OwnersBypass || !cfg.RegisterCommands {
		t.Fatalf("boolean defaults = %+v", cfg)
	}
	if cfg.JanitorInterval != time.Minute {
		t.Fatalf("janitor interval = %v, want 1m", cfg.JanitorInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseOwners(t *testing.T) {
	t.Setenv("BOT_OWNER_ID", "111,222")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(cfg.OwnerIDs, []string{"111", "222"}) {
		t.Fatalf("owners = %v", cfg.OwnerIDs)
	}
}

func TestParseError(t *testing.T) {
	t.Setenv("COOLDOWNS_JANITOR_INTERVAL", "soon")
	_, err := Parse()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err = %v, want parse env error", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreDriver: "mongo"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DISCORD_TOKEN", "STORE_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("err = %v, want mention of %s", err, want)
		}
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PREFIX=?\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("PREFIX") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Prefix != "?" {
		t.Fatalf("prefix = %q, want ?", cfg.Prefix)
	}
}
