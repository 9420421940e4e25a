package config

import (
	"os"
	"testing"
)

// chdir is t.Chdir for toolchains predating Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("chdir back: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Driver != "sqlite" {
		t.Errorf("expected sqlite default driver, got %s", cfg.State.Driver)
	}
	if cfg.Pipeline.MaxAttemptsPerUnit != 5 {
		t.Errorf("expected 5 attempts default, got %d", cfg.Pipeline.MaxAttemptsPerUnit)
	}
	if cfg.Health.FailureThreshold != 3 || cfg.Health.CooldownBaseSecs != 30 || cfg.Health.CooldownMaxSecs != 3600 {
		t.Errorf("unexpected health defaults: %+v", cfg.Health)
	}
	if !cfg.Proxy.Enabled {
		t.Error("expected proxy enabled by default")
	}
	if cfg.Output.Format != "jsonl" {
		t.Errorf("expected jsonl default format, got %s", cfg.Output.Format)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LEADGEN_STATE_DRIVER", "postgres")
	t.Setenv("LEADGEN_PIPELINE_WORKERS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Driver != "postgres" {
		t.Errorf("env override ignored, got driver %s", cfg.State.Driver)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("env override ignored, got workers %d", cfg.Pipeline.Workers)
	}
}
