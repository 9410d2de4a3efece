package network

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

type recordingLogger struct {
	infos, warns int
}

func (l *recordingLogger) Info(string, ...any) { l.infos++ }
func (l *recordingLogger) Warn(string, ...any) { l.warns++ }

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCommand_Run(t *testing.T) {
	requireBinary(t, "true")
	log := &recordingLogger{}

	cmd := NewCommand("peripherals-off", []string{"true"}, time.Second, log)
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if log.infos != 1 || log.warns != 0 {
		t.Errorf("infos=%d warns=%d", log.infos, log.warns)
	}
}

func TestCommand_RunFailure(t *testing.T) {
	requireBinary(t, "false")
	log := &recordingLogger{}

	cmd := NewCommand("peripherals-off", []string{"false"}, time.Second, log)
	if err := cmd.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for failing command")
	}
	if log.warns != 1 {
		t.Errorf("warns = %d, want 1", log.warns)
	}
}

func TestCommand_Timeout(t *testing.T) {
	requireBinary(t, "sleep")

	cmd := NewCommand("slow", []string{"sleep", "5"}, 50*time.Millisecond, nil)
	start := time.Now()
	if err := cmd.Run(context.Background()); err == nil {
		t.Fatal("Run() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() took %v, timeout not applied", elapsed)
	}
}

func TestCommand_NotConfigured(t *testing.T) {
	for _, argv := range [][]string{nil, {""}} {
		cmd := NewCommand("empty", argv, 0, nil)
		if cmd.Configured() {
			t.Errorf("Configured() = true for %q", argv)
		}
		if err := cmd.Run(context.Background()); !errors.Is(err, ErrNoCommand) {
			t.Errorf("Run() error = %v, want ErrNoCommand", err)
		}
	}
}

func TestNewCommand_CopiesArgs(t *testing.T) {
	argv := []string{"wpa_cli", "reassociate"}
	cmd := NewCommand("reassociate", argv, 0, nil)
	argv[1] = "terminate"

	if cmd.argv[1] != "reassociate" {
		t.Error("NewCommand() kept a reference to the caller's slice")
	}
	if cmd.timeout != defaultCommandTimeout {
		t.Errorf("timeout = %v, want default", cmd.timeout)
	}
}

func TestCommandReassociator(t *testing.T) {
	requireBinary(t, "true")

	r := NewCommandReassociator(NewCommand("reassociate", []string{"true"}, time.Second, nil))
	if err := r.Reassociate(context.Background()); err != nil {
		t.Errorf("Reassociate() error = %v", err)
	}

	empty := NewCommandReassociator(NewCommand("reassociate", nil, time.Second, nil))
	if err := empty.Reassociate(context.Background()); !errors.Is(err, ErrNoCommand) {
		t.Errorf("Reassociate() error = %v, want ErrNoCommand", err)
	}
}
