// Package actuator drives the relay outputs behind the controller's
// channels and tracks per-channel auto-off deadlines.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│                Bank                  │
//	│                                      │
//	│  Pulse   on + arm off deadline       │
//	│  Set     on/off, untimed override    │
//	│  Sweep   release expired channels    │
//	└───────────────┬──────────────────────┘
//	                │ per channel
//	                ▼
//	        ┌───────────────┐
//	        │    Output     │  relay driver, owns polarity
//	        └───────────────┘
//
// The bank holds no goroutines and no timers. Auto-off rides on the
// control loop's tick: each tick calls Sweep with the current time and
// any timed channel past its deadline is driven off. Pulsing an already
// active channel extends its deadline rather than stacking timers, so a
// burst of grants yields one continuous release window.
package actuator
