// Package store provides the persistence adapters for the card registry.
//
// The Store interface is a small durable key-value contract: put, get,
// delete, enumerate. Two adapters implement it:
//
//   - SQLite: one row per card in the card_slots table, shared with the
//     audit ring mirror on the same connection. The default backend.
//   - Flatfile: a fixed-slot binary file modelling wear-limited raw media.
//     Every write touches exactly one slot and syncs, so power loss during
//     a write can lose that record but never corrupts its neighbours.
//
// Both adapters report failed writes as errors wrapping ErrWriteFailed.
// The registry treats these as retryable: the in-memory mutation is kept
// and durability is flagged as degraded instead of halting the controller.
package store
