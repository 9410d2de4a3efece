package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/node"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      string
		wantPath string
		wantErr  bool
	}{
		{"default path", nil, "", defaultConfigPath, false},
		{"env path", nil, "/etc/graylogic/node.yaml", "/etc/graylogic/node.yaml", false},
		{"flag beats env", []string{"--config", "/tmp/a.yaml"}, "/etc/graylogic/node.yaml", "/tmp/a.yaml", false},
		{"short flag", []string{"-c", "/tmp/b.yaml"}, "", "/tmp/b.yaml", false},
		{"unknown flag", []string{"--bogus"}, "", "", true},
		{"stray argument", []string{"extra"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnv, tt.env)

			opts, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && opts.configPath != tt.wantPath {
				t.Errorf("configPath = %q, want %q", opts.configPath, tt.wantPath)
			}
		})
	}
}

func TestParseFlags_VersionAndHelp(t *testing.T) {
	opts, err := parseFlags([]string{"--version"})
	if err != nil || !opts.showVersion {
		t.Errorf("--version: opts=%+v err=%v", opts, err)
	}

	opts, err = parseFlags([]string{"-h"})
	if err != nil || !opts.showHelp {
		t.Errorf("-h: opts=%+v err=%v", opts, err)
	}
}

func TestRun_Version(t *testing.T) {
	if err := run(context.Background(), []string{"--version"}); err != nil {
		t.Errorf("run(--version) error = %v", err)
	}
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// TestRun_NotProvisioned verifies a node without network credentials stops
// before touching the broker.
func TestRun_NotProvisioned(t *testing.T) {
	t.Setenv("GRAYLOGIC_NODE_WIFI_SSID", "")
	path := writeConfig(t, `
node:
  name: test-node
mqtt:
  broker:
    host: 127.0.0.1
    port: 1883
database:
  enabled: false
api:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"--config", path})
	if !errors.Is(err, node.ErrNotProvisioned) {
		t.Errorf("run() error = %v, want ErrNotProvisioned", err)
	}
}

// TestRun_ShutdownWithoutBroker runs a fully wired node against an
// unreachable broker and checks it shuts down cleanly on cancellation.
func TestRun_ShutdownWithoutBroker(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
node:
  name: test-node
  loop_interval_ms: 5
network:
  interface: ""
  ssid: test-ssid
mqtt:
  broker:
    host: 127.0.0.1
    port: 1
connectivity:
  max_retry: 3
  retry_delay_ms: 10
database:
  enabled: true
  path: `+filepath.Join(dir, "node.db")+`
api:
  enabled: true
  host: 127.0.0.1
  port: 19181
logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"--config", path}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "node.db")); err != nil {
		t.Errorf("journal database not created: %v", err)
	}
}

type recordingStatusWriter struct {
	writes []connectivity.Status
}

func (r *recordingStatusWriter) WriteStatus(st connectivity.Status) {
	r.writes = append(r.writes, st)
}

type fixedStatus struct{}

func (fixedStatus) Status() connectivity.Status {
	return connectivity.Status{State: connectivity.StateConnected}
}

func TestTelemetryDuty(t *testing.T) {
	w := &recordingStatusWriter{}
	duty := telemetryDuty(w, fixedStatus{}, time.Hour)

	duty.Poll(context.Background())
	duty.Poll(context.Background())

	if len(w.writes) != 1 {
		t.Fatalf("writes = %d, want 1 within the interval", len(w.writes))
	}
	if w.writes[0].State != connectivity.StateConnected {
		t.Errorf("state = %v", w.writes[0].State)
	}
}
