package actuator

import (
	"fmt"
	"time"
)

// Output is the hardware driver behind a single relay channel.
//
// Implementations own electrical polarity: Set(true) always means
// "energize the lock release", whatever level that is on the wire.
type Output interface {
	// Set drives the output to the given logical state.
	Set(on bool) error
}

// OutputFunc adapts a function to the Output interface.
type OutputFunc func(on bool) error

// Set drives the output by calling the wrapped function.
func (f OutputFunc) Set(on bool) error { return f(on) }

// State is a point-in-time snapshot of one channel.
type State struct {
	Channel int       `json:"channel"`
	On      bool      `json:"on"`
	// Timed reports whether the channel turns itself off at OffAt.
	// Untimed channels stay on until explicitly commanded off.
	Timed bool      `json:"timed"`
	OffAt time.Time `json:"off_at,omitempty"`
}

// channel is the bank's per-output bookkeeping.
type channel struct {
	out   Output
	on    bool
	timed bool
	offAt time.Time
}

// Bank drives a fixed set of relay outputs with per-channel auto-off.
//
// Pulse turns a channel on and arms an off deadline; the control loop's
// periodic Sweep turns it back off once the deadline passes. Set drives a
// channel without a deadline, for manual override. A Pulse on a channel
// already active extends the deadline rather than stacking timers.
//
// Not safe for concurrent use; the control loop is the only caller.
type Bank struct {
	channels []channel
	pulse    time.Duration
}

// NewBank creates a bank over the given outputs.
// pulse is the default on-duration for Pulse.
func NewBank(outputs []Output, pulse time.Duration) *Bank {
	chs := make([]channel, len(outputs))
	for i, out := range outputs {
		chs[i] = channel{out: out}
	}
	return &Bank{channels: chs, pulse: pulse}
}

// Count returns the number of channels in the bank.
func (b *Bank) Count() int {
	return len(b.channels)
}

// Pulse turns channel ch on and arms its auto-off deadline at
// now + pulse duration. Pulsing an active channel extends the deadline.
func (b *Bank) Pulse(ch int, now time.Time) error {
	c, err := b.channel(ch)
	if err != nil {
		return err
	}
	if err := c.out.Set(true); err != nil {
		return fmt.Errorf("actuator: channel %d on: %w", ch, err)
	}
	c.on = true
	c.timed = true
	c.offAt = now.Add(b.pulse)
	return nil
}

// Set drives channel ch to the given state with no deadline.
// An untimed channel stays put until the next Set, Off or Pulse.
func (b *Bank) Set(ch int, on bool) error {
	c, err := b.channel(ch)
	if err != nil {
		return err
	}
	if err := c.out.Set(on); err != nil {
		return fmt.Errorf("actuator: channel %d set: %w", ch, err)
	}
	c.on = on
	c.timed = false
	c.offAt = time.Time{}
	return nil
}

// Off turns channel ch off and clears any deadline.
func (b *Bank) Off(ch int) error {
	c, err := b.channel(ch)
	if err != nil {
		return err
	}
	if err := c.out.Set(false); err != nil {
		return fmt.Errorf("actuator: channel %d off: %w", ch, err)
	}
	c.on = false
	c.timed = false
	c.offAt = time.Time{}
	return nil
}

// Sweep turns off every timed channel whose deadline has passed and
// returns the channels it released. Untimed channels are never swept.
func (b *Bank) Sweep(now time.Time) []int {
	var released []int
	for i := range b.channels {
		c := &b.channels[i]
		if !c.on || !c.timed || now.Before(c.offAt) {
			continue
		}
		if err := c.out.Set(false); err != nil {
			// Keep the deadline armed so the next sweep retries.
			continue
		}
		c.on = false
		c.timed = false
		c.offAt = time.Time{}
		released = append(released, i)
	}
	return released
}

// States returns a snapshot of every channel.
func (b *Bank) States() []State {
	out := make([]State, len(b.channels))
	for i := range b.channels {
		c := &b.channels[i]
		out[i] = State{Channel: i, On: c.on, Timed: c.timed, OffAt: c.offAt}
	}
	return out
}

// AllOff drives every channel off, for shutdown.
func (b *Bank) AllOff() {
	for i := range b.channels {
		b.Off(i)
	}
}

func (b *Bank) channel(ch int) (*channel, error) {
	if ch < 0 || ch >= len(b.channels) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	return &b.channels[ch], nil
}
