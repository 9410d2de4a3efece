package mqtt

import (
	"fmt"
)

// Subscribe asks the broker for messages on the topic. Received messages are
// queued for Pump and delivered to the inbound handler.
//
// Topics can include MQTT wildcards (+ and #). The client keeps no
// subscription list of its own: sessions are clean, so the caller restores
// its subscriptions after every connect.
func (c *Client) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	client, _ := c.current()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Subscribe(topic, qos, c.onMessage)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe stops delivery for a topic. Messages already queued are still
// delivered by the next Pump.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	client, _ := c.current()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}
