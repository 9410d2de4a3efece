package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// defaultInboundBuffer is used when the config does not size the inbound queue.
const defaultInboundBuffer = 64

// pahoClient is the subset of pahomqtt.Client the adapter uses.
type pahoClient interface {
	IsConnected() bool
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// InboundHandler receives messages drained by Pump.
type InboundHandler func(topic string, payload []byte)

// inboundMessage is a message queued between paho's goroutine and Pump.
type inboundMessage struct {
	topic   string
	payload []byte
}

// Client is the node's MQTT transport.
//
// It connects only when asked. Paho's auto-reconnect is disabled and the
// connectivity supervisor drives every attempt through Connect. Messages
// arriving on paho's goroutine are queued and delivered to the inbound
// handler by Pump on the caller's goroutine.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The inbound handler only ever runs inside Pump.
type Client struct {
	cfg    config.MQTTConfig
	topics Topics

	newClient func(opts *pahomqtt.ClientOptions) pahoClient

	client   pahoClient
	clientID string
	clientMu sync.RWMutex

	// connected is cleared by paho's connection-lost handler.
	connected bool
	connMu    sync.RWMutex

	inbound   chan inboundMessage
	handler   InboundHandler
	handlerMu sync.RWMutex
	dropped   atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewClient creates a disconnected client for the given node topics.
func NewClient(cfg config.MQTTConfig, topics Topics) *Client {
	size := cfg.InboundBuffer
	if size <= 0 {
		size = defaultInboundBuffer
	}

	return &Client{
		cfg:    cfg,
		topics: topics,
		newClient: func(opts *pahomqtt.ClientOptions) pahoClient {
			return pahomqtt.NewClient(opts)
		},
		inbound: make(chan inboundMessage, size),
	}
}

// Topics returns the node topic builder the client was created with.
func (c *Client) Topics() Topics {
	return c.topics
}

// Connect makes one connection attempt with the given credentials.
//
// It performs the following setup:
//  1. Builds fresh connection options (broker URL, auth, TLS, keepalive)
//  2. Configures Last Will and Testament on the node status topic
//  3. Waits for the connect token, the context, or the connect timeout
//  4. Publishes online status to the node status topic
//
// A previous paho client, if any, is disconnected first. Failures wrap
// ErrConnectionFailed.
func (c *Client) Connect(ctx context.Context, creds connectivity.Credentials) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.discardClient()

	opts := buildClientOptions(c.cfg, creds)
	clientID := opts.ClientID
	configureLWT(opts, c.topics, clientID)
	opts.SetDefaultPublishHandler(c.onMessage)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	client := c.newClient(opts)
	token := client.Connect()

	timer := time.NewTimer(defaultConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	case <-timer.C:
		client.Disconnect(0)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.clientMu.Lock()
	c.client = client
	c.clientID = clientID
	c.clientMu.Unlock()

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.publishOnlineStatus()

	return nil
}

// discardClient drops a stale paho client left over from a lost connection.
func (c *Client) discardClient() {
	c.clientMu.Lock()
	old := c.client
	c.client = nil
	c.clientMu.Unlock()

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}
}

// handleConnectionLost is called by paho when the link drops.
func (c *Client) handleConnectionLost(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
}

// publishOnlineStatus publishes the retained online marker without waiting.
func (c *Client) publishOnlineStatus() {
	client, clientID := c.current()
	if client == nil {
		return
	}
	client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, buildOnlinePayload(clientID))
}

// onMessage runs on paho's goroutine. It never blocks: when the queue is
// full the message is dropped and counted.
func (c *Client) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case c.inbound <- inboundMessage{topic: msg.Topic(), payload: payload}:
	default:
		c.dropped.Add(1)
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT inbound queue full, message dropped",
				"topic", msg.Topic(),
				"dropped_total", c.dropped.Load(),
			)
		}
	}
}

// Pump delivers the messages queued at call time to the inbound handler and
// returns how many were taken off the queue. Messages arriving while Pump
// runs wait for the next call.
func (c *Client) Pump() int {
	batch := len(c.inbound)
	if batch == 0 {
		return 0
	}

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	n := 0
	for ; n < batch; n++ {
		var msg inboundMessage
		select {
		case msg = <-c.inbound:
		default:
			return n
		}
		if handler != nil {
			c.deliver(handler, msg)
		}
	}
	return n
}

// deliver calls the handler with panic recovery.
func (c *Client) deliver(handler InboundHandler, msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.topic,
					"panic", r,
				)
			}
		}
	}()
	handler(msg.topic, msg.payload)
}

// SetInboundHandler sets the function Pump delivers messages to.
func (c *Client) SetInboundHandler(handler func(topic string, payload []byte)) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// Dropped returns the number of inbound messages discarded because the
// queue was full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Close publishes a graceful offline status and disconnects.
//
// Returns:
//   - error: always nil; a client that never connected closes cleanly
func (c *Client) Close() error {
	client, clientID := c.current()
	if client == nil {
		return nil
	}

	if c.IsConnected() {
		token := client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, buildOfflinePayload(clientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	client.Disconnect(defaultDisconnectQuiesce)

	c.clientMu.Lock()
	c.client = nil
	c.clientMu.Unlock()

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	connected := c.connected
	c.connMu.RUnlock()
	if !connected {
		return false
	}

	client, _ := c.current()
	return client != nil && client.IsConnected()
}

// SetLogger sets a logger for connection and handler diagnostics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) current() (pahoClient, string) {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.client, c.clientID
}
