// Package mqtt is the MQTT transport of a Gray Logic node.
//
// This package manages:
//   - Single connect attempts driven by the connectivity supervisor
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the node status topic
//   - A bounded inbound queue drained by Pump on the control loop
//
// # Architecture
//
// The paho library owns the socket and its own goroutines. Everything else
// happens on the node's control loop:
//
//	paho goroutine ──▶ inbound queue ──Pump()──▶ dispatcher ──▶ application
//
// Paho's auto-reconnect is disabled. When the link drops, IsConnected turns
// false and the supervisor decides when to call Connect again.
//
// # Security Considerations
//
//   - TLS is recommended for any broker outside the local network (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client := mqtt.NewClient(cfg.MQTT, mqtt.Topics{NodeID: "irrigation-01"})
//	client.SetInboundHandler(func(topic string, payload []byte) {
//	    log.Printf("Received: %s = %s", topic, payload)
//	})
//
//	if err := client.Connect(ctx, connectivity.Credentials{ClientID: "irrigation-01"}); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(client.Topics().Command(), 1)
//	for {
//	    client.Pump()
//	}
package mqtt
