// Package registry maintains the authoritative list of enrolled access
// cards and their per-channel authorization masks.
//
// # Architecture
//
//	┌────────────────────────────────────────────┐
//	│                 Registry                   │
//	│                                            │
//	│  cards []Card        in-memory, bounded    │
//	│  Find / Enroll / Unenroll / List           │
//	└──────────────────┬─────────────────────────┘
//	                   │ write-through
//	                   ▼
//	          ┌─────────────────┐
//	          │   store.Store   │  sqlite or flatfile
//	          └─────────────────┘
//
// The in-memory list is authoritative for access decisions; every
// mutation is written through to the persistence adapter immediately.
// If a durable write fails the mutation still takes effect and the
// registry latches a degraded flag, keeping the site operational while
// signalling that state may not survive a restart.
//
// Card identifiers are normalized (trimmed, uppercased hex) before they
// reach this package; see NormalizeUID and ValidUID.
package registry
