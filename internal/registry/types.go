package registry

import (
	"fmt"
	"strings"
)

// UID length bounds for normalised identifiers (uppercase hex encodings of
// raw card UID bytes, no separators).
const (
	minUIDLen = 8
	maxUIDLen = 20
)

// Mask is a bitset of output channels a card is authorised to actuate.
// Bit i corresponds to channel i. The width in use equals the configured
// channel count (at most 8).
type Mask uint8

// Has reports whether channel is set in the mask.
func (m Mask) Has(channel int) bool {
	return channel >= 0 && channel < 8 && m&(1<<channel) != 0
}

// With returns a copy of the mask with channel set or cleared.
func (m Mask) With(channel int, selected bool) Mask {
	if channel < 0 || channel >= 8 {
		return m
	}
	if selected {
		return m | 1<<channel
	}
	return m &^ (1 << channel)
}

// Channels returns the set channel indices below count, ascending.
func (m Mask) Channels(count int) []int {
	var channels []int
	for i := 0; i < count; i++ {
		if m.Has(i) {
			channels = append(channels, i)
		}
	}
	return channels
}

// Describe returns a human-readable channel list, e.g. "ch0,ch1" or "none".
func (m Mask) Describe(count int) string {
	channels := m.Channels(count)
	if len(channels) == 0 {
		return "none"
	}
	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = fmt.Sprintf("ch%d", ch)
	}
	return strings.Join(parts, ",")
}

// Card is one enrolled card: a normalised identifier and its permission mask.
type Card struct {
	UID  string `json:"uid"`
	Mask Mask   `json:"mask"`
}

// NormalizeUID canonicalises a scanned identifier: trimmed, uppercased.
// An empty result means the scan was reader noise.
func NormalizeUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

// ValidUID reports whether uid is a plausible normalised identifier:
// even-length uppercase hex, within the supported length bounds.
func ValidUID(uid string) bool {
	if len(uid) < minUIDLen || len(uid) > maxUIDLen || len(uid)%2 != 0 {
		return false
	}
	for _, c := range uid {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// encodeCard serialises a card's payload for the persistence adapter.
// The identifier is the record key; only the mask travels in the payload.
func encodeCard(c Card) []byte {
	return []byte{byte(c.Mask)}
}

// decodeCard rebuilds a card from a stored record.
func decodeCard(uid string, data []byte) (Card, error) {
	if len(data) < 1 {
		return Card{}, fmt.Errorf("card %s: empty payload", uid)
	}
	return Card{UID: uid, Mask: Mask(data[0])}, nil
}
