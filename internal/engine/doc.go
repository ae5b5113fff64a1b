// Package engine implements the access decision logic and the control
// loop that drives it.
//
// # Architecture
//
//	            MQTT / REST / websocket
//	                     │ typed commands
//	                     ▼
//	┌────────────────────────────────────────────────┐
//	│                    Loop                        │
//	│  one goroutine, owns the Engine                │
//	│  tick: timeout check → auto-off sweep → poll   │
//	└───────────────────┬────────────────────────────┘
//	                    ▼
//	┌────────────────────────────────────────────────┐
//	│                   Engine                       │
//	│  OnScan: mode-gated match / enroll / remove    │
//	└──┬───────────┬───────────┬───────────┬─────────┘
//	   ▼           ▼           ▼           ▼
//	registry    actuator    auditlog    Reporter
//
// The engine itself is single-threaded by contract: every boundary entry
// point posts a command onto the loop's channel and the loop goroutine is
// the only caller of engine methods. Reads (status, cards, events) travel
// back over per-request reply channels as copies, so callers never hold a
// reference into live state.
//
// A scan's interpretation depends on the current mode. In Normal the
// identifier is matched against the registry and each authorized channel
// is pulsed; in Enroll the staged channel marks become the card's
// permission mask; in Unenroll the card is removed. Administrative modes
// are single-shot: any terminal scan outcome drops back to Normal, as
// does the mode timeout, which also emits a distinguished audit entry.
package engine
