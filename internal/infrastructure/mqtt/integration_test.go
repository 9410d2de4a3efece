//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-node-integration",
		},
		QoS:              1,
		KeepAliveSeconds: 5,
		InboundBuffer:    16,
	}
}

func connectIntegration(t *testing.T, clientID string) *Client {
	t.Helper()

	client := NewClient(integrationConfig(), Topics{NodeID: clientID})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx, connectivity.Credentials{ClientID: clientID}); err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	client := connectIntegration(t, "graylogic-int-roundtrip")

	received := make(chan string, 1)
	client.SetInboundHandler(func(_ string, payload []byte) {
		received <- string(payload)
	})

	topic := client.Topics().Command()
	if err := client.Subscribe(topic, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Publish(topic, []byte(`{"cmd":"ping"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		client.Pump()
		select {
		case got := <-received:
			if got != `{"cmd":"ping"}` {
				t.Errorf("received %q", got)
			}
			return
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatal("message not delivered within 3s")
}

func TestIntegration_ReconnectAfterClose(t *testing.T) {
	client := connectIntegration(t, "graylogic-int-reconnect")

	client.Close()
	if client.IsConnected() {
		t.Fatal("IsConnected() = true after Close()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx, connectivity.Credentials{ClientID: "graylogic-int-reconnect"}); err != nil {
		t.Fatalf("Connect() after Close error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after reconnect")
	}
}
