package connectivity

import (
	"context"
	"sync"
	"time"
)

// Deps holds the collaborators of a Supervisor.
type Deps struct {
	Config      Config
	Credentials Credentials

	// Transport and Probe are required.
	Transport Transport
	Probe     Probe

	// Reassociator is optional; without it escalation only runs the callbacks.
	Reassociator Reassociator

	Callbacks Callbacks
	Logger    Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State           State     `json:"state"`
	NetworkUp       bool      `json:"network_up"`
	Attempts        int       `json:"attempts"`
	NetworkAttempts int       `json:"network_attempts"`
	Connects        int       `json:"connects"`
	FastEscalations int       `json:"fast_escalations"`
	MaxEscalations  int       `json:"max_escalations"`
	CounterResets   int       `json:"counter_resets"`
	StartedAt       time.Time `json:"started_at"`
	LastConnected   time.Time `json:"last_connected"`
	LastNetworkUp   time.Time `json:"last_network_up"`
	LastContact     time.Time `json:"last_contact"`
}

// Supervisor drives the transport through outages. See the package
// documentation for the state machine.
type Supervisor struct {
	cfg          Config
	creds        Credentials
	transport    Transport
	probe        Probe
	reassociator Reassociator
	callbacks    Callbacks
	logger       Logger
	now          func() time.Time

	observers  []Observer
	observerMu sync.RWMutex

	// Owned by the control loop.
	state            State
	counter          int
	netCounter       int
	networkDown      bool
	heldThroughDown  bool
	fastFired        bool
	netFastFired     bool
	nextAttempt      time.Time
	nextNetworkCheck time.Time
	settleUntil      time.Time
	lastContact      time.Time
	lastConnected    time.Time
	lastNetworkUp    time.Time
	startedAt        time.Time
	connects         int
	fastEscalations  int
	maxEscalations   int
	counterResets    int

	status   Status
	statusMu sync.RWMutex
}

// NewSupervisor builds a Supervisor in StateIdle.
func NewSupervisor(deps Deps) (*Supervisor, error) {
	if deps.Transport == nil {
		return nil, ErrMissingTransport
	}
	if deps.Probe == nil {
		return nil, ErrMissingProbe
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}

	s := &Supervisor{
		cfg:          deps.Config,
		creds:        deps.Credentials,
		transport:    deps.Transport,
		probe:        deps.Probe,
		reassociator: deps.Reassociator,
		callbacks:    deps.Callbacks,
		logger:       deps.Logger,
		now:          deps.Now,
		state:        StateIdle,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.startedAt = s.now()
	s.publishStatus()

	return s, nil
}

// AddObserver registers an observer for supervisor events.
func (s *Supervisor) AddObserver(o Observer) {
	s.observerMu.Lock()
	s.observers = append(s.observers, o)
	s.observerMu.Unlock()
}

// SetLogger replaces the supervisor's logger. Call before the first Tick.
func (s *Supervisor) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

// State returns the current state. Control loop only.
func (s *Supervisor) State() State {
	return s.state
}

// Counter returns the transport failed-attempt counter. Control loop only.
func (s *Supervisor) Counter() int {
	return s.counter
}

// Config returns the supervisor's configuration.
func (s *Supervisor) Config() Config {
	return s.cfg
}

// Status returns the snapshot taken at the end of the last Tick.
// Safe for concurrent use.
func (s *Supervisor) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Tick advances the state machine by one step. It never sleeps; the only
// blocking calls are the transport connect attempt and the reassociation
// request, both bounded by ctx.
func (s *Supervisor) Tick(ctx context.Context) {
	defer s.publishStatus()

	now := s.now()

	if !s.probe.IsUp() {
		s.handleNetworkDown(now)
		return
	}

	if s.networkDown {
		s.networkDown = false
		s.netCounter = 0
		s.netFastFired = false
		s.lastNetworkUp = now
		s.emit(EventNetworkUp, LayerNetwork, 0, OutcomeContinue, now)
		s.logger.Info("network layer up")

		// A link that was up before the outage and is still up was never lost.
		if s.heldThroughDown && s.transport.IsConnected() {
			s.state = StateConnected
			s.logger.Info("transport connection survived network outage")
		}
		s.heldThroughDown = false
	}

	switch s.state {
	case StateIdle:
		s.state = StateConnecting
		s.attempt(ctx, now)

	case StateConnecting, StateEscalating:
		s.attempt(ctx, now)

	case StateConnected:
		if now.Before(s.settleUntil) {
			return
		}
		if !s.transport.IsConnected() {
			s.state = StateConnecting
			s.nextAttempt = time.Time{}
			s.emit(EventTransportLost, LayerTransport, 0, OutcomeContinue, now)
			s.logger.Warn("transport connection lost")
			s.attempt(ctx, now)
			return
		}
		if n := s.transport.Pump(); n > 0 {
			s.lastContact = now
		}
	}
}

// handleNetworkDown moves to Connecting and runs one rate-limited step of
// network-layer supervision.
func (s *Supervisor) handleNetworkDown(now time.Time) {
	if !s.networkDown {
		s.networkDown = true
		s.heldThroughDown = s.state == StateConnected
		s.netCounter = 0
		s.netFastFired = false
		s.nextNetworkCheck = time.Time{}
		s.emit(EventNetworkDown, LayerNetwork, 0, OutcomeContinue, now)
		s.logger.Warn("network layer down")
	}
	if s.state != StateConnecting {
		s.state = StateConnecting
	}

	if now.Before(s.nextNetworkCheck) {
		return
	}
	s.nextNetworkCheck = now.Add(s.cfg.RetryDelay)

	s.callbacks.hardwareInputPoll()
	s.netCounter++

	outcome := NetworkPolicy.Decide(s.netCounter, s.cfg)
	switch outcome {
	case OutcomeEscalateFast:
		if s.cfg.SingleShotFastEscalation && s.netFastFired {
			return
		}
		s.netFastFired = true
		s.escalate(nil, LayerNetwork, s.netCounter, outcome, now)
	case OutcomeEscalateMax:
		s.escalate(nil, LayerNetwork, s.netCounter, outcome, now)
	case OutcomeReset:
		s.netCounter = 0
		s.counterResets++
		s.emit(EventCounterReset, LayerNetwork, 0, outcome, now)
	}
}

// attempt makes one transport connect attempt once the retry deadline has passed.
func (s *Supervisor) attempt(ctx context.Context, now time.Time) {
	if now.Before(s.nextAttempt) {
		return
	}

	if s.transport.IsConnected() {
		s.onConnected(now)
		return
	}

	s.callbacks.hardwareInputPoll()

	err := s.transport.Connect(ctx, s.creds)
	now = s.now()
	if err == nil {
		s.onConnected(now)
		return
	}

	s.counter++
	outcome := TransportPolicy.Decide(s.counter, s.cfg)
	s.emit(EventConnectFailed, LayerTransport, s.counter, outcome, now)
	s.logger.Warn("transport connect attempt failed",
		"attempt", s.counter,
		"outcome", outcome.String(),
		"error", err,
	)

	switch outcome {
	case OutcomeEscalateFast:
		if !(s.cfg.SingleShotFastEscalation && s.fastFired) {
			s.fastFired = true
			s.escalate(ctx, LayerTransport, s.counter, outcome, now)
		}
	case OutcomeEscalateMax:
		s.escalate(ctx, LayerTransport, s.counter, outcome, now)
	case OutcomeReset:
		s.counter = 0
		s.counterResets++
		s.emit(EventCounterReset, LayerTransport, 0, outcome, now)
		s.logger.Info("transport attempt counter reset")
	}

	s.nextAttempt = now.Add(s.cfg.RetryDelay)
}

// onConnected records a successful connect and restores subscriptions.
func (s *Supervisor) onConnected(now time.Time) {
	s.state = StateConnected
	s.callbacks.reconnectSubscriptions()

	attempts := s.counter
	s.counter = 0
	s.fastFired = false
	s.connects++
	s.lastConnected = now
	s.lastContact = time.Time{}
	s.nextAttempt = time.Time{}
	s.settleUntil = now.Add(s.cfg.SettleDelay)

	s.emit(EventConnected, LayerTransport, attempts, OutcomeContinue, now)
	s.logger.Info("transport connected", "failed_attempts", attempts)
}

// escalate runs the disconnection callback and, for transport escalations,
// asks the network layer to reassociate. A nil ctx skips reassociation.
func (s *Supervisor) escalate(ctx context.Context, layer Layer, attempt int, outcome Outcome, now time.Time) {
	prev := s.state
	s.state = StateEscalating

	if outcome == OutcomeEscalateFast {
		s.fastEscalations++
	} else {
		s.maxEscalations++
	}
	s.emit(EventEscalated, layer, attempt, outcome, now)
	s.logger.Warn("escalating connectivity recovery",
		"layer", string(layer),
		"attempt", attempt,
		"outcome", outcome.String(),
	)

	s.callbacks.disconnectionRecovery()

	if ctx != nil && layer == LayerTransport && s.reassociator != nil {
		if err := s.reassociator.Reassociate(ctx); err != nil {
			s.logger.Error("network reassociation failed", "error", err)
		}
	}

	s.state = prev
}

func (s *Supervisor) emit(kind EventKind, layer Layer, attempt int, outcome Outcome, at time.Time) {
	ev := Event{
		Kind:    kind,
		Layer:   layer,
		State:   s.state,
		Attempt: attempt,
		Outcome: outcome,
		At:      at,
	}

	s.observerMu.RLock()
	observers := s.observers
	s.observerMu.RUnlock()

	for _, o := range observers {
		o.ObserveEvent(ev)
	}
}

func (s *Supervisor) publishStatus() {
	st := Status{
		State:           s.state,
		NetworkUp:       !s.networkDown,
		Attempts:        s.counter,
		NetworkAttempts: s.netCounter,
		Connects:        s.connects,
		FastEscalations: s.fastEscalations,
		MaxEscalations:  s.maxEscalations,
		CounterResets:   s.counterResets,
		StartedAt:       s.startedAt,
		LastConnected:   s.lastConnected,
		LastNetworkUp:   s.lastNetworkUp,
		LastContact:     s.lastContact,
	}

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}
