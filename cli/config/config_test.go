package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sounder.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `endpoint: ws://127.0.0.1:8191
client_id: client-001

reconnect:
  max_attempts: 8
  base_delay: 500ms
  max_delay: 1m
  backoff_multiplier: 1.5

store:
  dir: /var/lib/sounder
  prefix: sounder-monitor

grace_window: 5s
journal_dir: /var/log/sounder

adapter:
  type: webhook
  url: https://hooks.example.com/sounder
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3

archive:
  bucket: my-bucket
  prefix: sounder
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Endpoint != "ws://127.0.0.1:8191" {
		t.Errorf("endpoint: got %q", cfg.Endpoint)
	}
	if cfg.ClientID != "client-001" {
		t.Errorf("client_id: got %q", cfg.ClientID)
	}
	if cfg.GraceWindow.Duration != 5*time.Second {
		t.Errorf("grace_window: got %v", cfg.GraceWindow.Duration)
	}
	if cfg.Store.Dir != "/var/lib/sounder" || cfg.Store.Prefix != "sounder-monitor" {
		t.Errorf("store: got %+v", cfg.Store)
	}
	if cfg.Adapter.Type != "webhook" || cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter: got %+v", cfg.Adapter)
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("adapter headers: got %v", cfg.Adapter.Headers)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter retries: got %v", cfg.Adapter.Retries)
	}
	if !cfg.Archive.S3PathStyle || cfg.Archive.Bucket != "my-bucket" {
		t.Errorf("archive: got %+v", cfg.Archive)
	}

	policy := cfg.Reconnect.Policy()
	if policy.MaxAttempts != 8 {
		t.Errorf("max attempts: got %d", policy.MaxAttempts)
	}
	if policy.BaseDelay != 500*time.Millisecond || policy.MaxDelay != time.Minute {
		t.Errorf("delays: got %v / %v", policy.BaseDelay, policy.MaxDelay)
	}
	if policy.BackoffMultiplier != 1.5 {
		t.Errorf("multiplier: got %v", policy.BackoffMultiplier)
	}
}

func TestLoad_EmptyConfigUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "endpoint: ws://localhost:8191\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	policy := cfg.Reconnect.Policy()
	if policy.MaxAttempts != 5 || policy.BaseDelay != time.Second {
		t.Errorf("expected default policy, got %+v", policy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "endpoint: [unclosed\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Fatalf("expected YAML error, got %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "grace_window: banana\n"))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SOUNDER_TEST_TOKEN", "secret-token")
	yaml := `adapter:
  type: webhook
  url: https://hooks.example.com
  headers:
    Authorization: Bearer ${SOUNDER_TEST_TOKEN}
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Adapter.Headers["Authorization"]; got != "Bearer secret-token" {
		t.Errorf("expansion: got %q", got)
	}
}
