package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
)

// Feedback signals scan outcomes to the operator, typically as LED or
// beeper patterns driven by external hardware.
type Feedback interface {
	Granted()
	Denied()
	Enrolled()
	Unenrolled()
	// TimeoutAlert fires when an administrative mode expires unused.
	TimeoutAlert()
}

// Reporter receives state changes for external publication (MQTT,
// websocket clients, time-series sinks). Implementations must not block;
// they run on the control loop.
type Reporter interface {
	AccessEvent(e auditlog.Entry)
	ModeChanged(m mode.Mode)
	MarkChanged(channel int, selected bool)
	ChannelChanged(st actuator.State)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopFeedback struct{}

func (noopFeedback) Granted()      {}
func (noopFeedback) Denied()       {}
func (noopFeedback) Enrolled()     {}
func (noopFeedback) Unenrolled()   {}
func (noopFeedback) TimeoutAlert() {}

type noopReporter struct{}

func (noopReporter) AccessEvent(auditlog.Entry)    {}
func (noopReporter) ModeChanged(mode.Mode)         {}
func (noopReporter) MarkChanged(int, bool)         {}
func (noopReporter) ChannelChanged(actuator.State) {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time snapshot of the controller for reporting.
type Status struct {
	Mode        string           `json:"mode"`
	ModeExpires *time.Time       `json:"mode_expires,omitempty"`
	Cards       int              `json:"cards"`
	Capacity    int              `json:"capacity"`
	Degraded    bool             `json:"degraded"`
	Channels    []actuator.State `json:"channels"`
	Marks       []bool           `json:"marks"`
	LastAccess  string           `json:"last_access,omitempty"`
}

// Engine owns the access decision logic: it interprets scans against the
// current mode, mutates the registry or actuates channels, and records
// every terminal outcome in the audit log.
//
// Engine methods are NOT safe for concurrent use. The Loop owns the
// engine and serializes all entry points through its command channel;
// nothing else may call in.
type Engine struct {
	registry *registry.Registry
	modes    *mode.Machine
	bank     *actuator.Bank
	ring     *auditlog.Ring

	channels int
	marks    []bool

	lastAccess string

	feedback Feedback
	reporter Reporter
	logger   Logger
}

// New creates an engine over its collaborators.
// channels is the configured output channel count.
func New(reg *registry.Registry, modes *mode.Machine, bank *actuator.Bank, ring *auditlog.Ring, channels int) *Engine {
	return &Engine{
		registry: reg,
		modes:    modes,
		bank:     bank,
		ring:     ring,
		channels: channels,
		marks:    make([]bool, channels),
		feedback: noopFeedback{},
		reporter: noopReporter{},
		logger:   noopLogger{},
	}
}

// SetFeedback attaches the operator feedback collaborator.
func (e *Engine) SetFeedback(f Feedback) {
	e.feedback = f
}

// SetReporter attaches the external reporting collaborator.
func (e *Engine) SetReporter(r Reporter) {
	e.reporter = r
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// OnScan handles one physical card scan. Debouncing is the scan
// source's concern; this runs at most once per presentation.
//
// An empty identifier is reader noise and is ignored entirely, with no
// log entry and no feedback.
func (e *Engine) OnScan(ctx context.Context, uid string, now time.Time) {
	uid = registry.NormalizeUID(uid)
	if uid == "" {
		return
	}

	switch e.modes.Current() {
	case mode.Enroll:
		e.scanEnroll(ctx, uid, now)
	case mode.Unenroll:
		e.scanUnenroll(ctx, uid, now)
	default:
		e.scanNormal(ctx, uid, now)
	}
}

// scanEnroll commits the staged marks to the scanned card. One attempt
// per activation: the mode drops back to Normal whatever the outcome.
func (e *Engine) scanEnroll(ctx context.Context, uid string, now time.Time) {
	mask := e.pendingMask()
	_, err := e.registry.Enroll(ctx, uid, mask)
	switch {
	case errors.Is(err, registry.ErrRegistryFull):
		e.logger.Warn("enrollment rejected, registry full", "uid", uid)
		e.record(now, auditlog.KindDenied, uid, 0)
		e.feedback.Denied()
	case err != nil:
		e.logger.Error("enrollment failed", "uid", uid, "error", err)
		e.record(now, auditlog.KindDenied, uid, 0)
		e.feedback.Denied()
	default:
		e.record(now, auditlog.KindEnrolled, uid, uint8(mask))
		e.feedback.Enrolled()
	}
	e.transition(mode.Normal, now)
}

// scanUnenroll removes the scanned card. One attempt per activation.
func (e *Engine) scanUnenroll(ctx context.Context, uid string, now time.Time) {
	err := e.registry.Unenroll(ctx, uid)
	switch {
	case errors.Is(err, registry.ErrCardNotFound):
		e.logger.Info("removal scan for unknown card", "uid", uid)
		e.record(now, auditlog.KindDenied, uid, 0)
		e.feedback.Denied()
	case err != nil:
		e.logger.Error("removal failed", "uid", uid, "error", err)
		e.record(now, auditlog.KindDenied, uid, 0)
		e.feedback.Denied()
	default:
		e.record(now, auditlog.KindUnenrolled, uid, 0)
		e.feedback.Unenrolled()
	}
	e.transition(mode.Normal, now)
}

// scanNormal matches the scan against the registry and pulses every
// channel the card's mask authorizes.
func (e *Engine) scanNormal(_ context.Context, uid string, now time.Time) {
	card, ok := e.registry.Find(uid)
	if !ok || card.Mask == 0 {
		e.record(now, auditlog.KindDenied, uid, 0)
		e.feedback.Denied()
		e.setLastAccess(uid, now, false, 0)
		return
	}

	for _, ch := range card.Mask.Channels(e.channels) {
		if err := e.bank.Pulse(ch, now); err != nil {
			e.logger.Error("pulse failed", "channel", ch, "error", err)
			continue
		}
		e.reportChannel(ch)
	}
	e.record(now, auditlog.KindGranted, uid, uint8(card.Mask))
	e.feedback.Granted()
	e.setLastAccess(uid, now, true, card.Mask)
}

// RequestMode switches the controller mode. Superseding an active
// administrative mode is allowed and silent.
func (e *Engine) RequestMode(target mode.Mode, now time.Time) {
	e.transition(target, now)
}

// SetPendingMark stages a channel selection for the next enrollment.
func (e *Engine) SetPendingMark(channel int, selected bool) error {
	if channel < 0 || channel >= e.channels {
		return fmt.Errorf("%w: %d", actuator.ErrUnknownChannel, channel)
	}
	e.marks[channel] = selected
	e.reporter.MarkChanged(channel, selected)
	return nil
}

// ManualChannelSet toggles a channel directly, bypassing access logic.
// The channel is untimed: it holds until the next explicit command.
func (e *Engine) ManualChannelSet(channel int, on bool) error {
	if err := e.bank.Set(channel, on); err != nil {
		return err
	}
	e.logger.Info("manual channel override", "channel", channel, "on", on)
	e.reportChannel(channel)
	return nil
}

// EnrollCard enrolls a card administratively, without a scan.
// The identifier must already be normalized and valid.
func (e *Engine) EnrollCard(ctx context.Context, uid string, mask registry.Mask, now time.Time) error {
	if !registry.ValidUID(uid) {
		return registry.ErrInvalidUID
	}
	if _, err := e.registry.Enroll(ctx, uid, mask); err != nil {
		return err
	}
	e.record(now, auditlog.KindEnrolled, uid, uint8(mask))
	return nil
}

// UnenrollCard removes a card administratively, without a scan.
func (e *Engine) UnenrollCard(ctx context.Context, uid string, now time.Time) error {
	if err := e.registry.Unenroll(ctx, uid); err != nil {
		return err
	}
	e.record(now, auditlog.KindUnenrolled, uid, 0)
	return nil
}

// Tick advances time-driven behavior. Order is fixed: the mode timeout
// check runs before the auto-off sweep, so a reversion and a release due
// in the same tick both land this tick.
func (e *Engine) Tick(now time.Time) {
	if expired, reverted := e.modes.CheckTimeout(now); reverted {
		e.logger.Info("mode expired without a qualifying scan", "mode", expired.String())
		e.record(now, auditlog.KindTimeoutReverted, "", 0)
		e.feedback.TimeoutAlert()
		e.clearMarks()
		e.reporter.ModeChanged(mode.Normal)
	}

	for _, ch := range e.bank.Sweep(now) {
		e.reportChannel(ch)
	}
}

// Mode returns the current controller mode.
func (e *Engine) Mode() mode.Mode {
	return e.modes.Current()
}

// Status returns a snapshot for reporting.
func (e *Engine) Status() Status {
	st := Status{
		Mode:       e.modes.Current().String(),
		Cards:      e.registry.Count(),
		Capacity:   e.registry.Capacity(),
		Degraded:   e.registry.Degraded(),
		Channels:   e.bank.States(),
		Marks:      append([]bool(nil), e.marks...),
		LastAccess: e.lastAccess,
	}
	if deadline := e.modes.Deadline(); !deadline.IsZero() {
		st.ModeExpires = &deadline
	}
	return st
}

// Cards returns a copy of the registry listing.
func (e *Engine) Cards() []registry.Card {
	return e.registry.List()
}

// Events returns the audit history, most recent first.
func (e *Engine) Events() []auditlog.Entry {
	return e.ring.Snapshot()
}

// transition moves to target, clearing staged marks when the machine
// leaves Enroll or lands in Normal.
func (e *Engine) transition(target mode.Mode, now time.Time) {
	prev := e.modes.Request(target, now)
	if target == mode.Normal || (prev == mode.Enroll && target != mode.Enroll) {
		e.clearMarks()
	}
	if prev != target {
		e.logger.Info("mode changed", "from", prev.String(), "to", target.String())
		e.reporter.ModeChanged(target)
	}
}

// clearMarks drops every staged mark, reporting each channel as false.
func (e *Engine) clearMarks() {
	for ch := range e.marks {
		e.marks[ch] = false
		e.reporter.MarkChanged(ch, false)
	}
}

// pendingMask folds the staged marks into a permission mask.
func (e *Engine) pendingMask() registry.Mask {
	var mask registry.Mask
	for ch, selected := range e.marks {
		if selected {
			mask = mask.With(ch, true)
		}
	}
	return mask
}

// record appends an audit entry and hands it to the reporter.
func (e *Engine) record(now time.Time, kind auditlog.Kind, subject string, mask uint8) {
	entry := auditlog.Entry{
		ID:      uuid.NewString(),
		At:      now.UTC(),
		Kind:    kind,
		Subject: subject,
		Mask:    mask,
	}
	e.ring.Append(entry)
	e.reporter.AccessEvent(entry)
}

// setLastAccess formats the last-access summary exposed for reporting.
func (e *Engine) setLastAccess(uid string, now time.Time, granted bool, mask registry.Mask) {
	outcome := "DENIED"
	detail := ""
	if granted {
		outcome = "GRANTED"
		detail = " " + mask.Describe(e.channels)
	}
	e.lastAccess = fmt.Sprintf("%s %s %s%s",
		uid, now.UTC().Format(time.RFC3339), outcome, detail)
	e.lastAccess = strings.TrimSpace(e.lastAccess)
}

// reportChannel publishes the current state of one channel.
func (e *Engine) reportChannel(ch int) {
	states := e.bank.States()
	if ch >= 0 && ch < len(states) {
		e.reporter.ChannelChanged(states[ch])
	}
}
