package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/entitled/config"
	"github.com/rs/zerolog"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestHolder_GetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitled.yaml")
	writeConfigFile(t, path, `
features:
  api-access: pro
`)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	if h.Get().Features["api-access"] != "pro" {
		t.Fatalf("initial config not loaded: %v", h.Get().Features)
	}

	writeConfigFile(t, path, `
features:
  api-access: elite
`)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if h.Get().Features["api-access"] != "elite" {
		t.Errorf("reload did not pick up new requirement: %v", h.Get().Features)
	}
}

func TestHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitled.yaml")
	writeConfigFile(t, path, `
features:
  api-access: pro
`)

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	writeConfigFile(t, path, `
features:
  api-access: platinum
`)
	if err := h.Reload(); err == nil {
		t.Fatal("expected reload to fail on invalid tier")
	}
	if h.Get().Features["api-access"] != "pro" {
		t.Errorf("failed reload clobbered the old config: %v", h.Get().Features)
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entitled.yaml")
	writeConfigFile(t, path, "features: {}\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var got *config.Config
	h.OnChange(func(cfg *config.Config) { got = cfg })

	writeConfigFile(t, path, `
features:
  new-feature: elite
`)
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got == nil || got.Features["new-feature"] != "elite" {
		t.Errorf("listener did not receive the new config: %+v", got)
	}
}
