package config

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	apperrors "docworker/core/errors"
)

// setEnv clears every bound variable so the host environment cannot leak in.
func setEnv(t *testing.T, values map[string]string) {
	t.Helper()
	for _, b := range envBindings {
		t.Setenv(b.env, values[b.env])
	}
}

func TestLoadConfigMissingRequiredNamesAllFields(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, nil)

	_, err := LoadConfig("")
	if err == nil {
		t.Fatal("expected error for missing configuration")
	}
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var missing *apperrors.MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %T", err)
	}
	want := []string{"REDIS_ADDRESS", "REDIS_USERNAME", "REDIS_PASSWORD"}
	if !reflect.DeepEqual(missing.Fields, want) {
		t.Fatalf("missing fields: got %v want %v", missing.Fields, want)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{
		"REDIS_ADDRESS":  "redis.internal",
		"REDIS_USERNAME": "worker",
		"REDIS_PASSWORD": "s3cret",
	})

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("expected default port 6379, got %d", cfg.Redis.Port)
	}
	if cfg.Redis.Addr() != "redis.internal:6379" {
		t.Errorf("unexpected addr %q", cfg.Redis.Addr())
	}
	if cfg.Worker.Queue != "document_jobs" {
		t.Errorf("expected queue document_jobs, got %q", cfg.Worker.Queue)
	}
	if cfg.Worker.PopTimeout != time.Second {
		t.Errorf("expected 1s pop timeout, got %s", cfg.Worker.PopTimeout)
	}
	if cfg.Worker.ReconnectAttempts != 1 {
		t.Errorf("expected a single reconnect attempt, got %d", cfg.Worker.ReconnectAttempts)
	}
	if cfg.Ops.Address != "" {
		t.Errorf("expected ops listener disabled, got %q", cfg.Ops.Address)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{
		"REDIS_ADDRESS":             "10.0.0.5",
		"REDIS_PORT":                "6380",
		"REDIS_USERNAME":            "worker",
		"REDIS_PASSWORD":            "s3cret",
		"WORKER_RECONNECT_ATTEMPTS": "3",
		"WORKER_RECONNECT_BACKOFF":  "250ms",
		"OPS_ADDRESS":               ":9090",
	})

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.Port != 6380 || cfg.Worker.ReconnectAttempts != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Worker.ReconnectBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms backoff, got %s", cfg.Worker.ReconnectBackoff)
	}
	if cfg.Ops.Address != ":9090" {
		t.Errorf("expected ops address :9090, got %q", cfg.Ops.Address)
	}
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	chdir(t, t.TempDir())
	setEnv(t, map[string]string{
		"REDIS_ADDRESS":  "localhost",
		"REDIS_PORT":     "70000",
		"REDIS_USERNAME": "worker",
		"REDIS_PASSWORD": "s3cret",
	})

	if _, err := LoadConfig(""); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSaveGeneratedConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	setEnv(t, map[string]string{
		"REDIS_USERNAME": "worker",
		"REDIS_PASSWORD": "s3cret",
	})

	cfg := GenerateDefault()
	cfg.Worker.ReconnectBackoff = 2 * time.Second
	path := filepath.Join(dir, "docworker.yaml")
	if err := SaveGeneratedConfig(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load generated: %v", err)
	}
	if loaded.Redis.Address != "localhost" || loaded.Worker.ReconnectBackoff != 2*time.Second {
		t.Fatalf("unexpected config after round trip: %+v", loaded)
	}
}

func TestConnectionParametersStringMasksPassword(t *testing.T) {
	p := ConnectionParameters{Address: "h", Port: 1, Username: "u", Password: "topsecret"}
	if s := p.String(); s != "redis://u@h:1 (password=****)" {
		t.Fatalf("unexpected String(): %q", s)
	}
}
