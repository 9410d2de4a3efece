// Package influxdb exports connectivity telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written, both tagged with the node name:
//
//   - connectivity_events: one point per supervisor event (connect failures,
//     escalations, counter resets, network and transport transitions)
//   - connectivity_status: periodic snapshots of the supervisor counters
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Node.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	supervisor.AddObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes go through the
// non-blocking batched write API; failures arrive on the SetOnError callback.
package influxdb
