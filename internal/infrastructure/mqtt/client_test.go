package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-node-test",
		},
		QoS:              1,
		KeepAliveSeconds: 15,
		InboundBuffer:    8,
	}
}

// =============================================================================
// Test doubles
// =============================================================================

// fakeToken implements pahomqtt.Token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{err: err, done: ch}
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type fakePublish struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  string
}

// fakePaho implements pahoClient.
type fakePaho struct {
	mu           sync.Mutex
	opts         *pahomqtt.ClientOptions
	connected    bool
	connectToken *fakeToken
	publishErr   error
	subscribeErr error
	published    []fakePublish
	subscribed   map[string]pahomqtt.MessageHandler
	unsubscribed []string
	disconnects  int
}

func newFakePaho() *fakePaho {
	return &fakePaho{subscribed: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectToken != nil {
		return f.connectToken
	}
	f.connected = true
	return doneToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	f.published = append(f.published, fakePublish{Topic: topic, QoS: qos, Retained: retained, Payload: body})
	return doneToken(f.publishErr)
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr == nil {
		f.subscribed[topic] = callback
	}
	return doneToken(f.subscribeErr)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	return doneToken(nil)
}

func (f *fakePaho) publishes() []fakePublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakePublish(nil), f.published...)
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func newTestClient(t *testing.T, cfg config.MQTTConfig) (*Client, *fakePaho) {
	t.Helper()
	fake := newFakePaho()
	c := NewClient(cfg, Topics{NodeID: "node-1"})
	c.newClient = func(opts *pahomqtt.ClientOptions) pahoClient {
		fake.mu.Lock()
		fake.opts = opts
		fake.mu.Unlock()
		return fake
	}
	return c, fake
}

func connectedTestClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	c, fake := newTestClient(t, testConfig())
	if err := c.Connect(context.Background(), connectivity.Credentials{ClientID: "node-1"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c, fake
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	c, fake := connectedTestClient(t)

	if !c.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	if fake.opts.ClientID != "node-1" {
		t.Errorf("ClientID = %q, want node-1", fake.opts.ClientID)
	}
	if fake.opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false")
	}
	if fake.opts.WillTopic != "graylogic/node/node-1/status" || !fake.opts.WillRetained {
		t.Errorf("will = %q retained=%v, want retained status topic", fake.opts.WillTopic, fake.opts.WillRetained)
	}

	pubs := fake.publishes()
	if len(pubs) != 1 {
		t.Fatalf("published %d messages, want 1 online status", len(pubs))
	}
	if pubs[0].Topic != "graylogic/node/node-1/status" || !pubs[0].Retained {
		t.Errorf("online status = %+v", pubs[0])
	}
	if !strings.Contains(pubs[0].Payload, `"status":"online"`) {
		t.Errorf("online payload = %s", pubs[0].Payload)
	}
}

func TestConnectFailure(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	fake.connectToken = doneToken(errors.New("connection refused"))

	err := c.Connect(context.Background(), connectivity.Credentials{ClientID: "node-1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if !errors.Is(err, connectivity.ErrConnectFailed) {
		t.Errorf("Connect() error = %v, want connectivity.ErrConnectFailed", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestConnectCancelledContext(t *testing.T) {
	c, fake := newTestClient(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx, connectivity.Credentials{ClientID: "node-1"})
	if !errors.Is(err, ErrConnectionFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed wrapping context.Canceled", err)
	}
	if fake.opts != nil {
		t.Error("paho client created for a cancelled context")
	}
}

func TestConnectContextDeadlineWhileWaiting(t *testing.T) {
	c, fake := newTestClient(t, testConfig())
	fake.connectToken = pendingToken()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Connect(ctx, connectivity.Credentials{ClientID: "node-1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want deadline exceeded", err)
	}
	if fake.disconnects != 1 {
		t.Errorf("Disconnect called %d times, want 1", fake.disconnects)
	}
}

func TestConnectReplacesStaleClient(t *testing.T) {
	c, first := connectedTestClient(t)
	c.handleConnectionLost(errors.New("eof"))

	second := newFakePaho()
	c.newClient = func(*pahomqtt.ClientOptions) pahoClient { return second }

	if err := c.Connect(context.Background(), connectivity.Credentials{ClientID: "node-1"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if first.disconnects != 1 {
		t.Errorf("stale client disconnected %d times, want 1", first.disconnects)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after reconnect")
	}
}

func TestConnectionLost(t *testing.T) {
	c, _ := connectedTestClient(t)
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.handleConnectionLost(errors.New("keepalive timeout"))

	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings logged = %d, want 1", len(logger.warns))
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	c := NewClient(testConfig(), Topics{NodeID: "node-1"})
	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
}

func TestClose(t *testing.T) {
	c, fake := connectedTestClient(t)

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	pubs := fake.publishes()
	last := pubs[len(pubs)-1]
	if !strings.Contains(last.Payload, "graceful_shutdown") {
		t.Errorf("last publish = %s, want graceful offline status", last.Payload)
	}
	if fake.disconnects != 1 {
		t.Errorf("Disconnect called %d times, want 1", fake.disconnects)
	}
}

func TestCloseNeverConnected(t *testing.T) {
	c := NewClient(testConfig(), Topics{NodeID: "node-1"})
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _ := connectedTestClient(t)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}

	c.Close()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Inbound Queue Tests
// =============================================================================

func TestPump(t *testing.T) {
	c, _ := connectedTestClient(t)

	var got []string
	c.SetInboundHandler(func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	})

	if n := c.Pump(); n != 0 {
		t.Errorf("Pump() on empty queue = %d, want 0", n)
	}

	buf := []byte("on")
	c.onMessage(nil, fakeMessage{topic: "a", payload: buf})
	c.onMessage(nil, fakeMessage{topic: "b", payload: []byte("off")})
	buf[0] = 'X'

	if n := c.Pump(); n != 2 {
		t.Errorf("Pump() = %d, want 2", n)
	}
	want := []string{"a=on", "b=off"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("delivered %v, want %v", got, want)
	}
}

func TestPumpDropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.InboundBuffer = 2
	c, _ := newTestClient(t, cfg)
	c.SetLogger(&mockLogger{})

	for i := 0; i < 3; i++ {
		c.onMessage(nil, fakeMessage{topic: "t", payload: []byte("x")})
	}

	if c.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", c.Dropped())
	}
	if n := c.Pump(); n != 2 {
		t.Errorf("Pump() = %d, want 2", n)
	}
}

func TestPumpWithoutHandler(t *testing.T) {
	c, _ := connectedTestClient(t)
	c.onMessage(nil, fakeMessage{topic: "t", payload: []byte("x")})

	if n := c.Pump(); n != 1 {
		t.Errorf("Pump() = %d, want 1", n)
	}
	if n := c.Pump(); n != 0 {
		t.Errorf("second Pump() = %d, want 0", n)
	}
}

func TestPumpRecoversHandlerPanic(t *testing.T) {
	c, _ := connectedTestClient(t)
	logger := &mockLogger{}
	c.SetLogger(logger)

	delivered := 0
	c.SetInboundHandler(func(topic string, _ []byte) {
		if topic == "boom" {
			panic("handler failure")
		}
		delivered++
	})

	c.onMessage(nil, fakeMessage{topic: "boom"})
	c.onMessage(nil, fakeMessage{topic: "ok"})

	if n := c.Pump(); n != 2 {
		t.Errorf("Pump() = %d, want 2", n)
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %d, want 1", len(logger.errors))
	}
}

// =============================================================================
// Publish / Subscribe Tests
// =============================================================================

func TestPublish(t *testing.T) {
	c, fake := connectedTestClient(t)

	if err := c.Publish("graylogic/node/node-1/state", []byte(`{"on":true}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	pubs := fake.publishes()
	last := pubs[len(pubs)-1]
	if last.Topic != "graylogic/node/node-1/state" || last.Payload != `{"on":true}` || !last.Retained || last.QoS != 1 {
		t.Errorf("published %+v", last)
	}
}

func TestPublishRetained(t *testing.T) {
	c, fake := connectedTestClient(t)

	if err := c.PublishRetained("graylogic/node/node-1/state", []byte("1")); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	pubs := fake.publishes()
	if last := pubs[len(pubs)-1]; !last.Retained {
		t.Error("PublishRetained() did not set retained")
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	c, _ := connectedTestClient(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishDisconnected(t *testing.T) {
	c := NewClient(testConfig(), Topics{NodeID: "node-1"})
	if err := c.Publish("t", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishBrokerError(t *testing.T) {
	c, fake := connectedTestClient(t)
	fake.publishErr = errors.New("not authorised")

	if err := c.Publish("t", []byte("x"), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeDeliversThroughPump(t *testing.T) {
	c, fake := connectedTestClient(t)

	var got string
	c.SetInboundHandler(func(topic string, payload []byte) {
		got = topic + "=" + string(payload)
	})

	if err := c.Subscribe("graylogic/node/node-1/command", 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	callback := fake.subscribed["graylogic/node/node-1/command"]
	if callback == nil {
		t.Fatal("no paho callback registered")
	}
	callback(nil, fakeMessage{topic: "graylogic/node/node-1/command", payload: []byte("toggle")})

	if got != "" {
		t.Fatal("handler ran before Pump")
	}
	c.Pump()
	if got != "graylogic/node/node-1/command=toggle" {
		t.Errorf("delivered %q", got)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c, fake := connectedTestClient(t)

	if err := c.Subscribe("", 1); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 5); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v, want ErrInvalidQoS", err)
	}

	fake.subscribeErr = errors.New("denied")
	if err := c.Subscribe("t", 1); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}

	disconnected := NewClient(testConfig(), Topics{NodeID: "node-1"})
	if err := disconnected.Subscribe("t", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	c, fake := connectedTestClient(t)

	if err := c.Subscribe("t", 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Unsubscribe("t"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if len(fake.unsubscribed) != 1 || fake.unsubscribed[0] != "t" {
		t.Errorf("unsubscribed = %v, want [t]", fake.unsubscribed)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
}

// =============================================================================
// Options / Topics Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth = config.MQTTAuthConfig{Username: "cfg-user", Password: "cfg-pass"}

	t.Run("falls back to config", func(t *testing.T) {
		opts := buildClientOptions(cfg, connectivity.Credentials{})
		if opts.ClientID != "graylogic-node-test" {
			t.Errorf("ClientID = %q", opts.ClientID)
		}
		if opts.Username != "cfg-user" || opts.Password != "cfg-pass" {
			t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
		}
		if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
			t.Errorf("broker = %q", got)
		}
		if opts.KeepAlive != 15 {
			t.Errorf("KeepAlive = %d, want 15", opts.KeepAlive)
		}
		if opts.TLSConfig == nil {
			t.Error("TLSConfig not set")
		}
	})

	t.Run("credentials win", func(t *testing.T) {
		opts := buildClientOptions(cfg, connectivity.Credentials{ClientID: "c", Username: "u", Password: "p"})
		if opts.ClientID != "c" || opts.Username != "u" || opts.Password != "p" {
			t.Errorf("options = %q %q %q", opts.ClientID, opts.Username, opts.Password)
		}
	})
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{NodeID: "irrigation-01"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State(), "graylogic/node/irrigation-01/state"},
		{"command", topics.Command(), "graylogic/node/irrigation-01/command"},
		{"status", topics.Status(), "graylogic/node/irrigation-01/status"},
		{"system time", topics.SystemTime(), "graylogic/system/time"},
		{"all states", topics.AllNodeStates(), "graylogic/node/+/state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
