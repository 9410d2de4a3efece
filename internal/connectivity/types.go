package connectivity

import (
	"context"
	"fmt"
	"time"
)

// State is the supervisor's view of the transport link.
type State int

const (
	// StateIdle is the initial state before the first Tick.
	StateIdle State = iota

	// StateConnecting covers network-layer outages and failed connect attempts.
	StateConnecting

	// StateConnected means the transport is up and being pumped.
	StateConnected

	// StateEscalating is held while escalation callbacks run.
	StateEscalating
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateConnected:  "connected",
	StateEscalating: "escalating",
}

// String returns the lower-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so states render as names in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the retry policy decision for one failed attempt.
type Outcome int

const (
	// OutcomeContinue waits RetryDelay and tries again.
	OutcomeContinue Outcome = iota

	// OutcomeEscalateFast fires the disconnection callback before MaxRetry is reached.
	OutcomeEscalateFast

	// OutcomeEscalateMax fires the disconnection callback once MaxRetry is reached.
	OutcomeEscalateMax

	// OutcomeReset zeroes the attempt counter without escalating.
	OutcomeReset
)

var outcomeNames = map[Outcome]string{
	OutcomeContinue:     "continue",
	OutcomeEscalateFast: "escalate_fast",
	OutcomeEscalateMax:  "escalate_max",
	OutcomeReset:        "reset",
}

// String returns the snake-case outcome name.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Config is the device connectivity configuration. It is copied into the
// Supervisor at construction and never changes afterwards.
type Config struct {
	// MaxRetry is the attempt count at which EscalateMax fires.
	MaxRetry int

	// FastDisconnectManagement enables EscalateFast above FastDisconnectThreshold.
	FastDisconnectManagement bool

	// SingleShotFastEscalation fires EscalateFast at most once per outage.
	SingleShotFastEscalation bool

	// RetryDelay separates consecutive connect attempts.
	RetryDelay time.Duration

	// SettleDelay is the pause after a successful connect before pumping starts.
	SettleDelay time.Duration

	// KeepAlive is the transport keep-alive interval. The supervisor reports
	// it but the transport applies it.
	KeepAlive time.Duration
}

// Validate checks the configuration for values the policy cannot work with.
func (c Config) Validate() error {
	if c.MaxRetry < 1 {
		return fmt.Errorf("%w: max retry must be at least 1, got %d", ErrInvalidConfig, c.MaxRetry)
	}
	if c.RetryDelay < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Credentials identify the node to the broker.
// Username and Password are optional; both must be set to be used.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// Transport is the queue connection the supervisor keeps alive.
type Transport interface {
	// Connect makes one connection attempt. A nil error means connected.
	Connect(ctx context.Context, creds Credentials) error

	// IsConnected reports the current link state.
	IsConnected() bool

	// Pump processes at most one batch of pending inbound messages on the
	// caller's goroutine and returns how many were handled.
	Pump() int
}

// Probe reports network-layer connectivity.
type Probe interface {
	IsUp() bool
}

// Reassociator restarts the network layer's negotiation (e.g. WiFi reconnect).
type Reassociator interface {
	Reassociate(ctx context.Context) error
}

// Callbacks are the caller's side effects. Each is zero-argument and assumed
// total; nil entries are skipped.
type Callbacks struct {
	// DisconnectionRecovery powers off peripherals when connectivity is lost too long.
	DisconnectionRecovery func()

	// ReconnectSubscriptions restores topic subscriptions after a connect.
	ReconnectSubscriptions func()

	// HardwareInputPoll keeps physical controls responsive during outages.
	HardwareInputPoll func()
}

func (c Callbacks) disconnectionRecovery() {
	if c.DisconnectionRecovery != nil {
		c.DisconnectionRecovery()
	}
}

func (c Callbacks) reconnectSubscriptions() {
	if c.ReconnectSubscriptions != nil {
		c.ReconnectSubscriptions()
	}
}

func (c Callbacks) hardwareInputPoll() {
	if c.HardwareInputPoll != nil {
		c.HardwareInputPoll()
	}
}

// Layer names which side of the link an event concerns.
type Layer string

const (
	LayerNetwork   Layer = "network"
	LayerTransport Layer = "transport"
)

// EventKind classifies supervisor events.
type EventKind string

const (
	EventNetworkDown   EventKind = "network_down"
	EventNetworkUp     EventKind = "network_up"
	EventConnectFailed EventKind = "connect_failed"
	EventConnected     EventKind = "connected"
	EventTransportLost EventKind = "transport_lost"
	EventEscalated     EventKind = "escalated"
	EventCounterReset  EventKind = "counter_reset"
)

// Event is emitted to observers on every transition and escalation.
type Event struct {
	Kind    EventKind `json:"kind"`
	Layer   Layer     `json:"layer"`
	State   State     `json:"state"`
	Attempt int       `json:"attempt"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}

// Observer receives supervisor events synchronously on the control loop.
// Implementations must not block.
type Observer interface {
	ObserveEvent(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// ObserveEvent implements Observer.
func (f ObserverFunc) ObserveEvent(ev Event) {
	f(ev)
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
