package auditlog

import (
	"time"
)

// Kind classifies an audit entry.
type Kind string

const (
	KindGranted         Kind = "granted"
	KindDenied          Kind = "denied"
	KindEnrolled        Kind = "enrolled"
	KindUnenrolled      Kind = "unenrolled"
	KindTimeoutReverted Kind = "timeout_reverted"
)

// Entry is one audit record.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Kind    Kind      `json:"kind"`
	// Subject is the card UID the entry concerns, empty for entries
	// with no card (mode timeouts).
	Subject string `json:"subject,omitempty"`
	// Mask carries the authorization mask for granted and enrolled
	// entries, zero otherwise.
	Mask uint8 `json:"mask"`
}

// Sink receives ring writes for durable mirroring.
// pos is the arena slot the entry landed in; head and count are the
// cursor after the write.
type Sink interface {
	Record(pos int, e Entry, head, count int) error
}

// Logger defines the logging interface used by the Ring.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Ring is a fixed-capacity audit buffer. Once full, each append
// overwrites the oldest entry. Memory is allocated once at construction
// and never grows.
//
// Not safe for concurrent use; the control loop is the only caller.
// Boundary readers get copies via Snapshot through the loop.
type Ring struct {
	entries []Entry
	head    int // next write position
	count   int

	sink   Sink
	logger Logger
}

// NewRing creates an audit ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	return &Ring{
		entries: make([]Entry, capacity),
		logger:  noopLogger{},
	}
}

// SetSink attaches a durable mirror. A failed mirror write is logged and
// the in-memory append stands.
func (r *Ring) SetSink(s Sink) {
	r.sink = s
}

// SetLogger sets the logger for the ring.
func (r *Ring) SetLogger(logger Logger) {
	r.logger = logger
}

// Append records an entry, overwriting the oldest once the ring is full.
func (r *Ring) Append(e Entry) {
	pos := r.head
	r.entries[pos] = e
	r.head = (r.head + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}

	if r.sink != nil {
		if err := r.sink.Record(pos, e, r.head, r.count); err != nil {
			r.logger.Warn("audit mirror write failed", "pos", pos, "error", err)
		}
	}
}

// Snapshot returns the buffered entries, most recent first.
func (r *Ring) Snapshot() []Entry {
	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		pos := (r.head - 1 - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[pos])
	}
	return out
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	return r.count
}

// Capacity returns the fixed size of the ring.
func (r *Ring) Capacity() int {
	return len(r.entries)
}

// Restore replaces the ring contents from a durable mirror.
// entries must be indexed by arena position and sized to the capacity.
func (r *Ring) Restore(entries []Entry, head, count int) {
	if len(entries) != len(r.entries) || head < 0 || head >= len(r.entries) ||
		count < 0 || count > len(r.entries) {
		r.logger.Warn("discarding mirrored audit state with mismatched geometry",
			"entries", len(entries), "head", head, "count", count)
		return
	}
	copy(r.entries, entries)
	r.head = head
	r.count = count
}
