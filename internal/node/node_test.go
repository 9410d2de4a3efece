package node

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingTicker struct {
	ticks atomic.Int32
	order *[]string
	mu    *sync.Mutex
}

func (c *countingTicker) Tick(context.Context) {
	c.ticks.Add(1)
	if c.order != nil {
		c.mu.Lock()
		*c.order = append(*c.order, "tick")
		c.mu.Unlock()
	}
}

type mockAttacher struct{ attached int }

func (m *mockAttacher) Attach() { m.attached++ }

type mockJournal struct{ boots []map[string]any }

func (m *mockJournal) RecordBoot(details map[string]any) { m.boots = append(m.boots, details) }

type mockProvisioner struct {
	calls int
	err   error
}

func (m *mockProvisioner) Provision(context.Context) error {
	m.calls++
	return m.err
}

func TestNew_RequiresSupervisor(t *testing.T) {
	if _, err := New(Deps{}); !errors.Is(err, ErrMissingSupervisor) {
		t.Errorf("New() error = %v, want ErrMissingSupervisor", err)
	}

	n, err := New(Deps{Supervisor: &countingTicker{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if n.deps.LoopInterval != defaultLoopInterval {
		t.Errorf("LoopInterval = %v, want default", n.deps.LoopInterval)
	}
}

func TestSetup(t *testing.T) {
	disp := &mockAttacher{}
	journal := &mockJournal{}
	n, _ := New(Deps{
		Name:              "hall-node",
		Version:           "1.0.0",
		NetworkConfigured: true,
		Supervisor:        &countingTicker{},
		Dispatcher:        disp,
		Journal:           journal,
	})

	if err := n.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if disp.attached != 1 {
		t.Errorf("Attach() calls = %d, want 1", disp.attached)
	}
	if len(journal.boots) != 1 || journal.boots[0]["name"] != "hall-node" || journal.boots[0]["version"] != "1.0.0" {
		t.Errorf("boots = %v", journal.boots)
	}
	if n.BootedAt().IsZero() {
		t.Error("BootedAt() is zero after Setup()")
	}
}

func TestSetup_NotProvisioned(t *testing.T) {
	tests := []struct {
		name        string
		provisioner *mockProvisioner
		wantCalls   int
	}{
		{"without provisioner", nil, 0},
		{"provisioner succeeds", &mockProvisioner{}, 1},
		{"provisioner fails", &mockProvisioner{err: errors.New("portal")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := &mockAttacher{}
			deps := Deps{Supervisor: &countingTicker{}, Dispatcher: disp}
			if tt.provisioner != nil {
				deps.Provisioner = tt.provisioner
			}
			n, _ := New(deps)

			err := n.Setup(context.Background())
			if !errors.Is(err, ErrNotProvisioned) {
				t.Fatalf("Setup() error = %v, want ErrNotProvisioned", err)
			}
			if tt.provisioner != nil && tt.provisioner.calls != tt.wantCalls {
				t.Errorf("Provision() calls = %d, want %d", tt.provisioner.calls, tt.wantCalls)
			}
			if disp.attached != 0 {
				t.Error("dispatcher attached on an unprovisioned node")
			}
		})
	}
}

func TestRun_TicksThenDuties(t *testing.T) {
	var mu sync.Mutex
	var order []string
	ticker := &countingTicker{order: &order, mu: &mu}

	n, _ := New(Deps{Supervisor: ticker, LoopInterval: time.Millisecond, NetworkConfigured: true})

	ctx, cancel := context.WithCancel(context.Background())
	n.AddDuty(DutyFunc(func(context.Context) {
		mu.Lock()
		order = append(order, "duty-a")
		mu.Unlock()
	}))
	n.AddDuty(DutyFunc(func(context.Context) {
		mu.Lock()
		order = append(order, "duty-b")
		count := len(order)
		mu.Unlock()
		if count >= 9 {
			cancel()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("Run() did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i+2 < len(order); i += 3 {
		if order[i] != "tick" || order[i+1] != "duty-a" || order[i+2] != "duty-b" {
			t.Fatalf("order = %v, want tick, duty-a, duty-b repeating", order)
		}
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	n, _ := New(Deps{Supervisor: &countingTicker{}, LoopInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	n.AddDuty(DutyFunc(func(context.Context) {
		select {
		case <-started:
		default:
			close(started)
		}
	}))

	go n.Run(ctx) //nolint:errcheck // stopped by cancel
	<-started

	if err := n.Run(ctx); err == nil {
		t.Error("second Run() should fail while the loop is running")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ticker := &countingTicker{}
	n, _ := New(Deps{Supervisor: ticker, LoopInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if ticker.ticks.Load() != 1 {
		t.Errorf("ticks = %d, want 1", ticker.ticks.Load())
	}
}
