package actuator

import (
	"errors"
	"testing"
	"time"
)

// mockOutput records logical state transitions.
type mockOutput struct {
	on   bool
	sets []bool
	fail bool
}

func (m *mockOutput) Set(on bool) error {
	if m.fail {
		return errors.New("wire fault")
	}
	m.on = on
	m.sets = append(m.sets, on)
	return nil
}

func newTestBank(n int, pulse time.Duration) (*Bank, []*mockOutput) {
	outs := make([]*mockOutput, n)
	ifaces := make([]Output, n)
	for i := range outs {
		outs[i] = &mockOutput{}
		ifaces[i] = outs[i]
	}
	return NewBank(ifaces, pulse), outs
}

func TestPulseAndSweep(t *testing.T) {
	now := time.Now()
	bank, outs := newTestBank(2, 5*time.Second)

	if err := bank.Pulse(0, now); err != nil {
		t.Fatalf("Pulse() error = %v", err)
	}
	if !outs[0].on {
		t.Error("output 0 not driven on")
	}
	if outs[1].on {
		t.Error("output 1 driven without a pulse")
	}

	// Just inside the window the channel stays on.
	if released := bank.Sweep(now.Add(4999 * time.Millisecond)); len(released) != 0 {
		t.Errorf("Sweep() inside window released %v", released)
	}
	if !outs[0].on {
		t.Error("output 0 released early")
	}

	// Just past the window it is driven off.
	released := bank.Sweep(now.Add(5001 * time.Millisecond))
	if len(released) != 1 || released[0] != 0 {
		t.Errorf("Sweep() past window released %v, want [0]", released)
	}
	if outs[0].on {
		t.Error("output 0 still on after sweep")
	}
}

func TestPulseExtendsDeadline(t *testing.T) {
	now := time.Now()
	bank, outs := newTestBank(1, 5*time.Second)

	bank.Pulse(0, now)
	bank.Pulse(0, now.Add(3*time.Second))

	if released := bank.Sweep(now.Add(6 * time.Second)); len(released) != 0 {
		t.Errorf("Sweep() released %v against the superseded deadline", released)
	}
	if released := bank.Sweep(now.Add(8 * time.Second)); len(released) != 1 {
		t.Errorf("Sweep() = %v, want one release at the extended deadline", released)
	}
	if outs[0].on {
		t.Error("output 0 still on after extended window")
	}
}

func TestSetIsUntimed(t *testing.T) {
	now := time.Now()
	bank, outs := newTestBank(1, 5*time.Second)

	if err := bank.Set(0, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if released := bank.Sweep(now.Add(time.Hour)); len(released) != 0 {
		t.Errorf("Sweep() released manually held channel: %v", released)
	}
	if !outs[0].on {
		t.Error("manually held output driven off")
	}

	if err := bank.Off(0); err != nil {
		t.Fatalf("Off() error = %v", err)
	}
	if outs[0].on {
		t.Error("output still on after Off()")
	}
}

func TestSetClearsPendingDeadline(t *testing.T) {
	now := time.Now()
	bank, outs := newTestBank(1, 5*time.Second)

	bank.Pulse(0, now)
	bank.Set(0, true) // manual hold overrides the pulse

	if released := bank.Sweep(now.Add(time.Minute)); len(released) != 0 {
		t.Errorf("Sweep() released %v after manual override", released)
	}
	if !outs[0].on {
		t.Error("output released despite manual hold")
	}
}

func TestUnknownChannel(t *testing.T) {
	bank, _ := newTestBank(2, time.Second)

	if err := bank.Pulse(2, time.Now()); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Pulse(2) error = %v, want ErrUnknownChannel", err)
	}
	if err := bank.Set(-1, true); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Set(-1) error = %v, want ErrUnknownChannel", err)
	}
}

func TestSweepRetriesAfterDriverFault(t *testing.T) {
	now := time.Now()
	bank, outs := newTestBank(1, time.Second)
	bank.Pulse(0, now)

	outs[0].fail = true
	if released := bank.Sweep(now.Add(2 * time.Second)); len(released) != 0 {
		t.Errorf("Sweep() reported release despite driver fault: %v", released)
	}

	outs[0].fail = false
	if released := bank.Sweep(now.Add(3 * time.Second)); len(released) != 1 {
		t.Errorf("Sweep() retry = %v, want one release", released)
	}
}

func TestStates(t *testing.T) {
	now := time.Now()
	bank, _ := newTestBank(2, 5*time.Second)
	bank.Pulse(0, now)
	bank.Set(1, true)

	states := bank.States()
	if len(states) != 2 {
		t.Fatalf("States() length = %d, want 2", len(states))
	}
	if !states[0].On || !states[0].Timed {
		t.Errorf("channel 0 state = %+v, want on and timed", states[0])
	}
	if !states[1].On || states[1].Timed {
		t.Errorf("channel 1 state = %+v, want on and untimed", states[1])
	}
}

func TestAllOff(t *testing.T) {
	bank, outs := newTestBank(3, time.Second)
	bank.Pulse(0, time.Now())
	bank.Set(2, true)

	bank.AllOff()
	for i, out := range outs {
		if out.on {
			t.Errorf("channel %d still on after AllOff", i)
		}
	}
}
