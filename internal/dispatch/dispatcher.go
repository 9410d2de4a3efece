package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Transport is the queue connection the dispatcher publishes through.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	SetInboundHandler(handler func(topic string, payload []byte))
}

// Handler receives parsed inbound messages.
type Handler func(msg ParsedPayload)

// Logger defines the logging interface for the dispatcher.
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

// Options configures a Dispatcher.
type Options struct {
	// DefaultQoS is used by Subscribe without an explicit QoS and by the
	// PublishString / PublishDocument helpers.
	DefaultQoS byte

	// DebugMessages logs every message sent and received.
	DebugMessages bool

	Logger Logger
}

// Dispatcher is the message facade between the application and the transport.
//
// It tracks the subscription set so it can be restored after every
// reconnect, routes inbound messages to per-topic handlers and serialises
// outbound documents.
type Dispatcher struct {
	transport Transport
	qos       byte
	debug     bool
	logger    Logger

	mu       sync.RWMutex
	subs     map[string]byte
	routes   map[string]Handler
	fallback Handler
}

// New creates a Dispatcher over the given transport. Call Attach to start
// receiving messages.
func New(transport Transport, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Dispatcher{
		transport: transport,
		qos:       opts.DefaultQoS,
		debug:     opts.DebugMessages,
		logger:    logger,
		subs:      make(map[string]byte),
		routes:    make(map[string]Handler),
	}
}

// Attach registers the dispatcher as the transport's inbound handler.
func (d *Dispatcher) Attach() {
	d.transport.SetInboundHandler(d.HandleInbound)
}

// Handle routes messages on an exact topic to h. A nil h removes the route.
func (d *Dispatcher) Handle(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.routes, topic)
		return
	}
	d.routes[topic] = h
}

// SetDefaultHandler receives messages on topics without a route.
func (d *Dispatcher) SetDefaultHandler(h Handler) {
	d.mu.Lock()
	d.fallback = h
	d.mu.Unlock()
}

// HandleInbound parses one message and invokes its handler synchronously.
func (d *Dispatcher) HandleInbound(topic string, payload []byte) {
	msg := InboundMessage{Topic: topic, Payload: payload}
	parsed := Parse(msg.Topic, msg.Payload)

	if d.debug {
		d.logger.Debug("message received",
			"topic", msg.Topic,
			"length", msg.Len(),
			"plain", parsed.Plain,
			"payload", string(msg.Payload),
		)
	}

	d.mu.RLock()
	h, ok := d.routes[topic]
	if !ok {
		h = d.fallback
	}
	d.mu.RUnlock()

	if h != nil {
		h(parsed)
	}
}

// Publish serialises the payload and hands it to the transport exactly once.
// Transport failures are returned wrapped in ErrPublishFailed; nothing is
// retried. An unencodable payload returns ErrEncodeFailed without a publish.
func (d *Dispatcher) Publish(msg OutboundMessage) error {
	payload, err := encodePayload(msg.Payload)
	if err != nil {
		return err
	}

	if err := d.transport.Publish(msg.Topic, payload, msg.QoS, msg.Retained); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, msg.Topic, err)
	}

	if d.debug {
		d.logger.Debug("message sent",
			"topic", msg.Topic,
			"retained", msg.Retained,
			"payload", string(payload),
		)
	}

	return nil
}

// PublishString publishes a plain string with the default QoS.
func (d *Dispatcher) PublishString(topic, payload string, retained bool) error {
	return d.Publish(OutboundMessage{Topic: topic, Payload: payload, Retained: retained, QoS: d.qos})
}

// PublishDocument publishes a JSON document with the default QoS.
func (d *Dispatcher) PublishDocument(topic string, doc Document, retained bool) error {
	return d.Publish(OutboundMessage{Topic: topic, Payload: doc, Retained: retained, QoS: d.qos})
}

// Subscribe forwards a subscription to the transport and records the topic.
// Subscribing to a tracked topic again is not an error: the request is
// forwarded again and the set is unchanged.
func (d *Dispatcher) Subscribe(topic string, qos ...byte) error {
	q := d.qos
	if len(qos) > 0 {
		q = qos[0]
	}

	if err := d.transport.Subscribe(topic, q); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	d.mu.Lock()
	d.subs[topic] = q
	d.mu.Unlock()

	d.logger.Debug("subscribed", "topic", topic, "qos", q)
	return nil
}

// Unsubscribe forgets the topic and forwards the request to the transport.
// The topic is forgotten even when the transport call fails, so it is not
// restored on the next reconnect.
func (d *Dispatcher) Unsubscribe(topic string) error {
	d.mu.Lock()
	delete(d.subs, topic)
	d.mu.Unlock()

	if err := d.transport.Unsubscribe(topic); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, topic, err)
	}
	return nil
}

// Subscriptions returns the tracked topics in sorted order.
func (d *Dispatcher) Subscriptions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	topics := make([]string, 0, len(d.subs))
	for topic := range d.subs {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// RestoreSubscriptions re-subscribes every tracked topic. It attempts all of
// them and returns the joined failures.
func (d *Dispatcher) RestoreSubscriptions() error {
	d.mu.RLock()
	subs := make(map[string]byte, len(d.subs))
	for topic, q := range d.subs {
		subs[topic] = q
	}
	d.mu.RUnlock()

	var errs []error
	for topic, q := range subs {
		if err := d.transport.Subscribe(topic, q); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err))
		}
	}

	if len(errs) > 0 {
		d.logger.Warn("subscription restore incomplete",
			"failed", len(errs),
			"total", len(subs),
		)
		return errors.Join(errs...)
	}

	d.logger.Info("subscriptions restored", "count", len(subs))
	return nil
}
