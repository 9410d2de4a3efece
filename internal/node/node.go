package node

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultLoopInterval = 100 * time.Millisecond

// Duty is periodic work run on the control loop after each supervisor tick.
// Poll must not block.
type Duty interface {
	Poll(ctx context.Context)
}

// DutyFunc adapts a function to the Duty interface.
type DutyFunc func(ctx context.Context)

// Poll implements Duty.
func (f DutyFunc) Poll(ctx context.Context) {
	f(ctx)
}

// Provisioner collects network credentials on an unconfigured device
// (captive portal, serial console, companion app).
type Provisioner interface {
	Provision(ctx context.Context) error
}

// Ticker is the part of connectivity.Supervisor the loop drives.
type Ticker interface {
	Tick(ctx context.Context)
}

// Attacher connects the message dispatcher to its transport.
type Attacher interface {
	Attach()
}

// BootRecorder journals node start-up.
type BootRecorder interface {
	RecordBoot(details map[string]any)
}

// Logger defines the logging interface for the node.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the node's collaborators. Supervisor is required.
type Deps struct {
	Name    string
	Version string

	// NetworkConfigured is false on a factory-fresh device.
	NetworkConfigured bool

	LoopInterval time.Duration

	Supervisor  Ticker
	Dispatcher  Attacher
	Journal     BootRecorder
	Provisioner Provisioner
	Logger      Logger
}

// Node runs the control loop.
type Node struct {
	deps   Deps
	logger Logger

	mu      sync.Mutex
	duties  []Duty
	bootAt  time.Time
	running bool
}

// New creates a node.
func New(deps Deps) (*Node, error) {
	if deps.Supervisor == nil {
		return nil, ErrMissingSupervisor
	}
	if deps.LoopInterval <= 0 {
		deps.LoopInterval = defaultLoopInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Node{deps: deps, logger: logger}, nil
}

// AddDuty registers periodic work. Duties run in registration order.
func (n *Node) AddDuty(d Duty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.duties = append(n.duties, d)
}

// BootedAt returns when Setup completed, or zero before that.
func (n *Node) BootedAt() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bootAt
}

// Setup prepares the node for Run. Without network credentials it starts
// the provisioner and returns ErrNotProvisioned.
func (n *Node) Setup(ctx context.Context) error {
	if !n.deps.NetworkConfigured {
		n.logger.Warn("network not configured, entering provisioning")
		if n.deps.Provisioner != nil {
			if err := n.deps.Provisioner.Provision(ctx); err != nil {
				return fmt.Errorf("%w: provisioning failed: %w", ErrNotProvisioned, err)
			}
		}
		return ErrNotProvisioned
	}

	if n.deps.Dispatcher != nil {
		n.deps.Dispatcher.Attach()
	}

	bootAt := time.Now().UTC()
	n.mu.Lock()
	n.bootAt = bootAt
	n.mu.Unlock()

	if n.deps.Journal != nil {
		n.deps.Journal.RecordBoot(map[string]any{
			"name":    n.deps.Name,
			"version": n.deps.Version,
		})
	}

	n.logger.Info("node ready", "name", n.deps.Name, "version", n.deps.Version)
	return nil
}

// Run ticks the supervisor and then every duty, once per loop interval,
// until ctx is cancelled. It returns nil on cancellation.
func (n *Node) Run(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("node: already running")
	}
	n.running = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.running = false
		n.mu.Unlock()
	}()

	ticker := time.NewTicker(n.deps.LoopInterval)
	defer ticker.Stop()

	n.logger.Info("control loop started", "interval", n.deps.LoopInterval)
	for {
		n.iterate(ctx)

		select {
		case <-ctx.Done():
			n.logger.Info("control loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (n *Node) iterate(ctx context.Context) {
	n.deps.Supervisor.Tick(ctx)

	n.mu.Lock()
	duties := n.duties
	n.mu.Unlock()

	for _, d := range duties {
		if ctx.Err() != nil {
			return
		}
		d.Poll(ctx)
	}
}
