package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
	"github.com/latchkeyhq/latchkey-core/internal/store"
)

// memStore implements store.Store for testing.
type memStore struct {
	records map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{records: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, id string, data []byte) error {
	m.records[id] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) ([]byte, error) {
	data, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memStore) Enumerate(_ context.Context) ([]store.Record, error) {
	var out []store.Record
	for id, data := range m.records {
		out = append(out, store.Record{ID: id, Data: data})
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

// mockOutput records driven states.
type mockOutput struct {
	on bool
}

func (m *mockOutput) Set(on bool) error {
	m.on = on
	return nil
}

// mockFeedback counts signalled patterns.
type mockFeedback struct {
	granted, denied, enrolled, unenrolled, timeout int
}

func (f *mockFeedback) Granted()      { f.granted++ }
func (f *mockFeedback) Denied()       { f.denied++ }
func (f *mockFeedback) Enrolled()     { f.enrolled++ }
func (f *mockFeedback) Unenrolled()   { f.unenrolled++ }
func (f *mockFeedback) TimeoutAlert() { f.timeout++ }

type markChange struct {
	channel  int
	selected bool
}

// mockReporter records published changes.
type mockReporter struct {
	events   []auditlog.Entry
	modes    []mode.Mode
	marks    []markChange
	channels []actuator.State
}

func (r *mockReporter) AccessEvent(e auditlog.Entry) { r.events = append(r.events, e) }
func (r *mockReporter) ModeChanged(m mode.Mode)      { r.modes = append(r.modes, m) }
func (r *mockReporter) MarkChanged(ch int, sel bool) {
	r.marks = append(r.marks, markChange{ch, sel})
}
func (r *mockReporter) ChannelChanged(st actuator.State) { r.channels = append(r.channels, st) }

type fixture struct {
	engine   *Engine
	outputs  []*mockOutput
	feedback *mockFeedback
	reporter *mockReporter
	ring     *auditlog.Ring
	registry *registry.Registry
}

func newFixture(t *testing.T, channels, maxCards int) *fixture {
	t.Helper()

	outs := make([]*mockOutput, channels)
	ifaces := make([]actuator.Output, channels)
	for i := range outs {
		outs[i] = &mockOutput{}
		ifaces[i] = outs[i]
	}

	reg := registry.New(newMemStore(), maxCards, channels)
	machine := mode.NewMachine(20 * time.Second)
	bank := actuator.NewBank(ifaces, 5*time.Second)
	ring := auditlog.NewRing(40)

	e := New(reg, machine, bank, ring, channels)
	fb := &mockFeedback{}
	rep := &mockReporter{}
	e.SetFeedback(fb)
	e.SetReporter(rep)

	return &fixture{engine: e, outputs: outs, feedback: fb, reporter: rep, ring: ring, registry: reg}
}

func (f *fixture) latest(t *testing.T) auditlog.Entry {
	t.Helper()
	snap := f.ring.Snapshot()
	if len(snap) == 0 {
		t.Fatal("audit ring is empty")
	}
	return snap[0]
}

func TestGrantScenario(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", registry.Mask(0b11))

	f.engine.OnScan(ctx, "04A1B2C3", now)

	for i, out := range f.outputs {
		if !out.on {
			t.Errorf("channel %d not pulsed on grant", i)
		}
	}
	e := f.latest(t)
	if e.Kind != auditlog.KindGranted || e.Subject != "04A1B2C3" || e.Mask != 0b11 {
		t.Errorf("entry = %+v, want granted 04A1B2C3 mask 0b11", e)
	}
	if f.feedback.granted != 1 {
		t.Errorf("granted feedback = %d, want 1", f.feedback.granted)
	}
	if f.registry.Count() != 1 {
		t.Errorf("registry size changed on grant: %d", f.registry.Count())
	}

	// Auto-off window per the pulse duration.
	f.engine.Tick(now.Add(4999 * time.Millisecond))
	if !f.outputs[0].on {
		t.Error("channel released before the pulse window closed")
	}
	f.engine.Tick(now.Add(5001 * time.Millisecond))
	if f.outputs[0].on || f.outputs[1].on {
		t.Error("channels still on after the pulse window")
	}
}

func TestDenyUnknownCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 8)

	f.engine.OnScan(ctx, "DEADBEEF", time.Now())

	for i, out := range f.outputs {
		if out.on {
			t.Errorf("channel %d activated on denial", i)
		}
	}
	if e := f.latest(t); e.Kind != auditlog.KindDenied {
		t.Errorf("entry kind = %s, want denied", e.Kind)
	}
	if f.feedback.denied != 1 {
		t.Errorf("denied feedback = %d, want 1", f.feedback.denied)
	}
}

func TestDenyZeroMask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", 0)

	f.engine.OnScan(ctx, "04A1B2C3", time.Now())

	if e := f.latest(t); e.Kind != auditlog.KindDenied {
		t.Errorf("entry kind = %s, want denied for zero mask", e.Kind)
	}
}

func TestEmptyScanIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 8)

	f.engine.OnScan(ctx, "", time.Now())
	f.engine.OnScan(ctx, "  \t ", time.Now())

	if got := len(f.ring.Snapshot()); got != 0 {
		t.Errorf("audit entries = %d, want 0 for reader noise", got)
	}
	if f.feedback.denied != 0 {
		t.Error("denial feedback fired for reader noise")
	}
}

func TestEnrollScenario(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 3, 8)

	f.engine.RequestMode(mode.Enroll, now)
	if err := f.engine.SetPendingMark(2, true); err != nil {
		t.Fatalf("SetPendingMark() error = %v", err)
	}
	f.engine.OnScan(ctx, "11223344", now.Add(time.Second))

	card, ok := f.registry.Find("11223344")
	if !ok {
		t.Fatal("card not enrolled")
	}
	if card.Mask != registry.Mask(0b100) {
		t.Errorf("mask = %08b, want %08b", card.Mask, 0b100)
	}
	if f.engine.Mode() != mode.Normal {
		t.Errorf("mode after enroll = %v, want Normal", f.engine.Mode())
	}
	if e := f.latest(t); e.Kind != auditlog.KindEnrolled || e.Mask != 0b100 {
		t.Errorf("entry = %+v, want enrolled mask 0b100", e)
	}
	if f.feedback.enrolled != 1 {
		t.Errorf("enrolled feedback = %d, want 1", f.feedback.enrolled)
	}
}

func TestEnrollCombinesStagedMarks(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 3, 8)

	f.engine.RequestMode(mode.Enroll, now)
	if err := f.engine.SetPendingMark(0, true); err != nil {
		t.Fatalf("SetPendingMark(0) error = %v", err)
	}
	if err := f.engine.SetPendingMark(2, true); err != nil {
		t.Fatalf("SetPendingMark(2) error = %v", err)
	}
	if err := f.engine.SetPendingMark(1, true); err != nil {
		t.Fatalf("SetPendingMark(1) error = %v", err)
	}
	if err := f.engine.SetPendingMark(1, false); err != nil {
		t.Fatalf("SetPendingMark(1, false) error = %v", err)
	}
	f.engine.OnScan(ctx, "55667788", now.Add(time.Second))

	card, ok := f.registry.Find("55667788")
	if !ok {
		t.Fatal("card not enrolled")
	}
	if card.Mask != registry.Mask(0b101) {
		t.Errorf("mask = %08b, want %08b", card.Mask, 0b101)
	}
}

func TestEnrollAtCapacityDeniedAndLogged(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 1)
	f.registry.Enroll(ctx, "04AB11FF", registry.Mask(0b01))

	f.engine.RequestMode(mode.Enroll, now)
	f.engine.SetPendingMark(0, true)
	f.engine.OnScan(ctx, "04AB22FF", now.Add(time.Second))

	if f.registry.Count() != 1 {
		t.Errorf("registry size = %d, want unchanged 1", f.registry.Count())
	}
	if e := f.latest(t); e.Kind != auditlog.KindDenied {
		t.Errorf("entry kind = %s, want denied at capacity", e.Kind)
	}
	if f.feedback.denied != 1 {
		t.Errorf("denied feedback = %d, want 1", f.feedback.denied)
	}
	if f.engine.Mode() != mode.Normal {
		t.Errorf("mode = %v, want Normal after single-shot attempt", f.engine.Mode())
	}
}

func TestUnenrollScan(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04AB11FF", registry.Mask(0b01))

	f.engine.RequestMode(mode.Unenroll, now)
	f.engine.OnScan(ctx, "04AB11FF", now.Add(time.Second))

	if _, ok := f.registry.Find("04AB11FF"); ok {
		t.Error("card still enrolled after removal scan")
	}
	if e := f.latest(t); e.Kind != auditlog.KindUnenrolled {
		t.Errorf("entry kind = %s, want unenrolled", e.Kind)
	}
	if f.engine.Mode() != mode.Normal {
		t.Errorf("mode = %v, want Normal", f.engine.Mode())
	}
}

func TestUnenrollUnknownDenied(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 8)

	f.engine.RequestMode(mode.Unenroll, now)
	f.engine.OnScan(ctx, "DEADBEEF", now.Add(time.Second))

	if e := f.latest(t); e.Kind != auditlog.KindDenied {
		t.Errorf("entry kind = %s, want denied", e.Kind)
	}
	if f.engine.Mode() != mode.Normal {
		t.Errorf("mode = %v, want Normal", f.engine.Mode())
	}
}

func TestModeExclusivityClearsMarks(t *testing.T) {
	now := time.Now()
	f := newFixture(t, 3, 8)

	f.engine.RequestMode(mode.Enroll, now)
	f.engine.SetPendingMark(1, true)
	f.engine.RequestMode(mode.Unenroll, now.Add(time.Second))

	if f.engine.Mode() != mode.Unenroll {
		t.Errorf("mode = %v, want Unenroll", f.engine.Mode())
	}
	for i, m := range f.engine.Status().Marks {
		if m {
			t.Errorf("mark %d still staged after supersede", i)
		}
	}
	// Superseding is silent: no timeout entry.
	if got := len(f.ring.Snapshot()); got != 0 {
		t.Errorf("audit entries = %d, want 0 on silent supersede", got)
	}
}

func TestTimeoutRevertsOnce(t *testing.T) {
	now := time.Now()
	f := newFixture(t, 2, 8)

	f.engine.RequestMode(mode.Enroll, now)
	f.engine.SetPendingMark(0, true)

	f.engine.Tick(now.Add(19 * time.Second))
	if f.engine.Mode() != mode.Enroll {
		t.Fatal("mode reverted before the timeout")
	}

	f.engine.Tick(now.Add(21 * time.Second))
	if f.engine.Mode() != mode.Normal {
		t.Errorf("mode = %v, want Normal after timeout", f.engine.Mode())
	}
	if f.feedback.timeout != 1 {
		t.Errorf("timeout feedback = %d, want 1", f.feedback.timeout)
	}

	var reverted int
	for _, e := range f.ring.Snapshot() {
		if e.Kind == auditlog.KindTimeoutReverted {
			reverted++
		}
	}
	if reverted != 1 {
		t.Errorf("timeout entries = %d, want exactly 1", reverted)
	}
	for i, m := range f.engine.Status().Marks {
		if m {
			t.Errorf("mark %d survived the timeout", i)
		}
	}

	// Later ticks stay quiet.
	f.engine.Tick(now.Add(30 * time.Second))
	if f.feedback.timeout != 1 {
		t.Error("timeout feedback fired again")
	}
}

func TestManualChannelNotSwept(t *testing.T) {
	now := time.Now()
	f := newFixture(t, 2, 8)

	if err := f.engine.ManualChannelSet(1, true); err != nil {
		t.Fatalf("ManualChannelSet() error = %v", err)
	}
	f.engine.Tick(now.Add(time.Hour))
	if !f.outputs[1].on {
		t.Error("manually held channel was swept")
	}

	if err := f.engine.ManualChannelSet(1, false); err != nil {
		t.Fatalf("ManualChannelSet(off) error = %v", err)
	}
	if f.outputs[1].on {
		t.Error("channel still on after manual off")
	}
}

func TestScanNormalizesIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", registry.Mask(0b01))

	f.engine.OnScan(ctx, " 04a1b2c3 ", time.Now())

	if e := f.latest(t); e.Kind != auditlog.KindGranted {
		t.Errorf("entry kind = %s, want granted for normalized scan", e.Kind)
	}
}

func TestReporterSeesOutcomes(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", registry.Mask(0b01))

	f.engine.OnScan(ctx, "04A1B2C3", now)

	if len(f.reporter.events) != 1 {
		t.Fatalf("reported events = %d, want 1", len(f.reporter.events))
	}
	if len(f.reporter.channels) == 0 {
		t.Error("channel actuation not reported")
	}

	f.engine.Tick(now.Add(6 * time.Second))
	last := f.reporter.channels[len(f.reporter.channels)-1]
	if last.On {
		t.Error("sweep release not reported as off")
	}
}

func TestStatusSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", registry.Mask(0b01))
	f.engine.RequestMode(mode.Enroll, now)

	st := f.engine.Status()
	if st.Mode != "enroll" {
		t.Errorf("Mode = %s, want enroll", st.Mode)
	}
	if st.ModeExpires == nil {
		t.Error("ModeExpires missing while armed")
	}
	if st.Cards != 1 || st.Capacity != 8 {
		t.Errorf("cards/capacity = %d/%d, want 1/8", st.Cards, st.Capacity)
	}
	if len(st.Channels) != 2 || len(st.Marks) != 2 {
		t.Errorf("channels/marks = %d/%d, want 2/2", len(st.Channels), len(st.Marks))
	}
}

func TestLastAccessSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, 8)
	f.registry.Enroll(ctx, "04A1B2C3", registry.Mask(0b11))

	f.engine.OnScan(ctx, "04A1B2C3", time.Now())
	st := f.engine.Status()
	if st.LastAccess == "" {
		t.Fatal("LastAccess empty after a grant")
	}
	for _, want := range []string{"04A1B2C3", "GRANTED", "ch0,ch1"} {
		if !strings.Contains(st.LastAccess, want) {
			t.Errorf("LastAccess = %q, missing %q", st.LastAccess, want)
		}
	}
}
