// Package dispatch is the message facade between node code and the MQTT
// transport.
//
// Inbound payloads are normalised by Parse: a JSON object becomes a
// Document, anything else is kept as text under the reserved "value" key
// with ParsedPayload.Plain set. Parse never returns an error.
//
// Outbound documents are JSON-encoded; strings and byte slices pass through.
// Every Publish makes exactly one transport call and never retries. Retrying
// is the connectivity supervisor's job.
//
// The Dispatcher tracks the subscription set so RestoreSubscriptions can
// replay it after a reconnect (sessions are clean, so the broker forgets
// them).
package dispatch
