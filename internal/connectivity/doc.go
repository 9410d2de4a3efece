// Package connectivity keeps a node's MQTT link alive across network faults.
//
// It contains two pieces:
//   - The retry policy engine (Decide, Policy): a pure, ordered rule table
//     that turns a failed-attempt counter into an Outcome.
//   - The reconnection Supervisor: a state machine ticked once per control
//     loop iteration that probes the network, drives connect attempts on the
//     transport, and fires the caller's recovery callbacks.
//
// # State machine
//
//	Idle ──probe up──▶ Connecting ──connect ok──▶ Connected
//	  │                 ▲  │  ▲                       │
//	  └──probe down─────┘  │  └──escalation done──┐   │ transport lost /
//	                       └──EscalateFast/Max──▶ Escalating   probe down
//	                                                   ▲       │
//	                       Connecting ◀────────────────┴───────┘
//
// Tick never sleeps. Retry delays and the post-connect settle pause are
// deadlines on the supervisor's clock that the next Tick checks, so button
// polling, OTA handling and other duties of the control loop keep running
// during an outage.
//
// # Escalation
//
// With fast disconnect management enabled the disconnection callback fires
// on every failed attempt above FastDisconnectThreshold, and on every attempt
// at or above MaxRetry regardless of the flag. Each transport escalation also
// asks the network layer to reassociate. Escalation repeats until a connect
// succeeds; set SingleShotFastEscalation to fire the fast path once per outage.
//
// # Thread Safety
//
// A Supervisor is owned by one control loop goroutine. Only Status and
// AddObserver may be called from other goroutines.
package connectivity
