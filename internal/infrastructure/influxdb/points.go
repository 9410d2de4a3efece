package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/connectivity"
)

// Measurement names.
const (
	MeasurementEvents = "connectivity_events"
	MeasurementStatus = "connectivity_status"
)

// EventPoint converts a supervisor event into a point tagged by node,
// layer and kind.
func EventPoint(node string, ev connectivity.Event) *write.Point {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementEvents,
		map[string]string{
			"node":  node,
			"layer": string(ev.Layer),
			"kind":  string(ev.Kind),
		},
		map[string]interface{}{
			"state":   ev.State.String(),
			"attempt": int64(ev.Attempt),
			"outcome": ev.Outcome.String(),
		},
		at,
	)
}

// StatusPoint converts a supervisor status snapshot into a point.
func StatusPoint(node string, st connectivity.Status, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"state":            st.State.String(),
		"network_up":       st.NetworkUp,
		"attempts":         int64(st.Attempts),
		"network_attempts": int64(st.NetworkAttempts),
		"connects":         int64(st.Connects),
		"fast_escalations": int64(st.FastEscalations),
		"max_escalations":  int64(st.MaxEscalations),
		"counter_resets":   int64(st.CounterResets),
	}
	if !st.LastContact.IsZero() {
		fields["contact_age_s"] = at.Sub(st.LastContact).Seconds()
	}
	return write.NewPoint(MeasurementStatus, map[string]string{"node": node}, fields, at)
}

// ObserveEvent implements connectivity.Observer.
func (c *Client) ObserveEvent(ev connectivity.Event) {
	c.writePoint(EventPoint(c.node, ev))
}

// WriteStatus records a status snapshot taken now.
func (c *Client) WriteStatus(st connectivity.Status) {
	c.writePoint(StatusPoint(c.node, st, time.Now()))
}
