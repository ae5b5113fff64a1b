package registry

import (
	"context"
	"fmt"

	"github.com/latchkeyhq/latchkey-core/internal/store"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the authoritative in-memory list of enrolled cards, backed
// by a persistence adapter with write-through on every mutation.
//
// Lookups are linear scans: the registry is bounded at MaxCards (64-80 in
// typical deployments) and scans arrive at sub-second rates, so a map
// would buy nothing.
//
// The Registry is NOT safe for concurrent use. The control loop is its
// only caller; boundary entry points reach it through the loop's command
// channel.
type Registry struct {
	store    store.Store
	cards    []Card
	maxCards int
	channels int

	// degraded latches true when a durable write fails. The in-memory
	// mutation is kept; the flag is surfaced through status reporting.
	degraded bool

	logger Logger
}

// New creates a card registry over the given persistence adapter.
//
// Parameters:
//   - st: Persistence adapter (sqlite or flatfile)
//   - maxCards: Registry capacity bound
//   - channels: Configured output channel count (mask width)
func New(st store.Store, maxCards, channels int) *Registry {
	return &Registry{
		store:    st,
		cards:    make([]Card, 0, maxCards),
		maxCards: maxCards,
		channels: channels,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load populates the registry from the persistence adapter.
// It should be called once on startup, before the control loop runs.
//
// Records that fail to decode are skipped with a warning; a registry that
// somehow outgrew the configured capacity keeps its cards but refuses new
// enrollments until it shrinks below the bound.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.store.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}

	r.cards = r.cards[:0]
	for _, rec := range records {
		card, err := decodeCard(rec.ID, rec.Data)
		if err != nil {
			r.logger.Warn("skipping undecodable card record", "id", rec.ID, "error", err)
			continue
		}
		r.cards = append(r.cards, card)
	}

	r.logger.Info("card registry loaded", "cards", len(r.cards), "capacity", r.maxCards)
	return nil
}

// Find returns the enrolled card for uid, if present.
func (r *Registry) Find(uid string) (Card, bool) {
	if i := r.indexOf(uid); i >= 0 {
		return r.cards[i], true
	}
	return Card{}, false
}

// Enroll adds uid with the given mask, or updates the mask in place if uid
// is already enrolled (idempotent, no growth).
//
// Returns:
//   - created: true if a new card was appended, false on mask update
//   - error: ErrRegistryFull if uid is new and the registry is at capacity
//
// A failed durable write keeps the in-memory mutation and latches the
// degraded flag instead of returning an error.
func (r *Registry) Enroll(ctx context.Context, uid string, mask Mask) (bool, error) {
	card := Card{UID: uid, Mask: mask}

	i := r.indexOf(uid)
	created := i < 0
	if created {
		if len(r.cards) >= r.maxCards {
			return false, ErrRegistryFull
		}
		r.cards = append(r.cards, card)
	} else {
		r.cards[i] = card
	}

	r.persist(ctx, card)
	r.logger.Info("card enrolled",
		"uid", card.UID,
		"mask", card.Mask.Describe(r.channels),
		"created", created,
		"cards", len(r.cards),
	)
	return created, nil
}

// Unenroll removes uid from the registry.
//
// Removal is swap-delete: the last card moves into the vacated position.
// Listing order is therefore not stable across removals; no external
// contract depends on it. The store is keyed by identifier, so removal is
// a single slot delete with no rewrite of the moved card.
//
// Returns ErrCardNotFound if uid is not enrolled.
func (r *Registry) Unenroll(ctx context.Context, uid string) error {
	i := r.indexOf(uid)
	if i < 0 {
		return ErrCardNotFound
	}

	last := len(r.cards) - 1
	r.cards[i] = r.cards[last]
	r.cards = r.cards[:last]

	if err := r.store.Delete(ctx, uid); err != nil {
		r.degraded = true
		r.logger.Warn("durable delete failed, registry running degraded",
			"uid", uid, "error", err)
	}

	r.logger.Info("card unenrolled", "uid", uid, "cards", len(r.cards))
	return nil
}

// List returns a copy of all enrolled cards.
// Order is insertion order, perturbed by swap-delete removals.
func (r *Registry) List() []Card {
	out := make([]Card, len(r.cards))
	copy(out, r.cards)
	return out
}

// Count returns the number of enrolled cards.
func (r *Registry) Count() int {
	return len(r.cards)
}

// Capacity returns the configured registry bound.
func (r *Registry) Capacity() int {
	return r.maxCards
}

// Degraded reports whether a durable write has failed since startup.
// In-memory state is authoritative but may not survive a restart.
func (r *Registry) Degraded() bool {
	return r.degraded
}

// indexOf returns the position of uid in the card list, or -1.
func (r *Registry) indexOf(uid string) int {
	for i := range r.cards {
		if r.cards[i].UID == uid {
			return i
		}
	}
	return -1
}

// persist write-throughs a card, latching the degraded flag on failure.
func (r *Registry) persist(ctx context.Context, card Card) {
	if err := r.store.Put(ctx, card.UID, encodeCard(card)); err != nil {
		r.degraded = true
		r.logger.Warn("durable write failed, registry running degraded",
			"uid", card.UID, "error", err)
	}
}
