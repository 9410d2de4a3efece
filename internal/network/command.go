package network

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultCommandTimeout = 10 * time.Second

	// maxOutputLog caps how much command output is logged.
	maxOutputLog = 512
)

// ErrNoCommand is returned when a runner has nothing to execute.
var ErrNoCommand = errors.New("network: no command configured")

// Logger defines the logging interface for this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Command runs an external program with a timeout. The node uses it for
// peripheral power-off on prolonged disconnection and for asking the OS to
// reassociate the network link.
type Command struct {
	name    string
	argv    []string
	timeout time.Duration
	logger  Logger
}

// NewCommand creates a command. argv[0] is the binary; an empty argv makes
// Run return ErrNoCommand.
func NewCommand(name string, argv []string, timeout time.Duration, logger Logger) *Command {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Command{
		name:    name,
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		logger:  logger,
	}
}

// Configured reports whether there is a program to run.
func (c *Command) Configured() bool {
	return len(c.argv) > 0 && c.argv[0] != ""
}

// Run executes the command and waits for it, bounded by the timeout.
func (c *Command) Run(ctx context.Context) error {
	if !c.Configured() {
		return ErrNoCommand
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...) //nolint:gosec // argv comes from the node's own config file
	out, err := cmd.CombinedOutput()

	output := strings.TrimSpace(string(out))
	if len(output) > maxOutputLog {
		output = output[:maxOutputLog]
	}

	if err != nil {
		c.logger.Warn("command failed",
			"name", c.name,
			"error", err,
			"output", output,
			"duration", time.Since(start),
		)
		return fmt.Errorf("running %s: %w", c.name, err)
	}

	c.logger.Info("command completed",
		"name", c.name,
		"output", output,
		"duration", time.Since(start),
	)
	return nil
}

// CommandReassociator implements connectivity.Reassociator by running a
// configured command (e.g. "wpa_cli -i wlan0 reassociate").
type CommandReassociator struct {
	cmd *Command
}

// NewCommandReassociator wraps a command as a reassociator.
func NewCommandReassociator(cmd *Command) *CommandReassociator {
	return &CommandReassociator{cmd: cmd}
}

// Reassociate implements connectivity.Reassociator.
func (r *CommandReassociator) Reassociate(ctx context.Context) error {
	return r.cmd.Run(ctx)
}
