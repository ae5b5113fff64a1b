package engine

import (
	"context"
	"time"

	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
)

// Source yields zero or one scanned identifier per poll. An empty string
// means no card is present. Poll must respect bounded hardware timeouts;
// it runs inside the control loop's tick budget.
type Source interface {
	Poll(ctx context.Context) (string, error)
}

// command is the closed set of boundary entry points. Everything that
// reaches the engine arrives as one of these, validated at the boundary
// and serialized through the loop's channel.
type command interface{ isCommand() }

type cmdRequestMode struct {
	target mode.Mode
}

type cmdSetMark struct {
	channel  int
	selected bool
	reply    chan error
}

type cmdSetChannel struct {
	channel int
	on      bool
	reply   chan error
}

type cmdScan struct {
	uid string
}

type cmdEnroll struct {
	uid   string
	mask  registry.Mask
	reply chan error
}

type cmdUnenroll struct {
	uid   string
	reply chan error
}

type cmdStatus struct {
	reply chan Status
}

type cmdCards struct {
	reply chan []registry.Card
}

type cmdEvents struct {
	reply chan []auditlog.Entry
}

func (cmdRequestMode) isCommand() {}
func (cmdSetMark) isCommand()     {}
func (cmdSetChannel) isCommand()  {}
func (cmdScan) isCommand()        {}
func (cmdEnroll) isCommand()      {}
func (cmdUnenroll) isCommand()    {}
func (cmdStatus) isCommand()      {}
func (cmdCards) isCommand()       {}
func (cmdEvents) isCommand()      {}

// Loop owns the engine and drives it from a single goroutine. Each tick
// runs the mode-timeout check and auto-off sweep, then polls the scan
// source. External entry points post typed commands onto the loop's
// channel, so engine state is only ever touched from one place.
type Loop struct {
	engine *Engine
	source Source
	tick   time.Duration
	cmds   chan command
	logger Logger
}

// NewLoop creates the control loop around an engine.
// tick is the sweep and poll interval.
func NewLoop(engine *Engine, tick time.Duration) *Loop {
	return &Loop{
		engine: engine,
		tick:   tick,
		cmds:   make(chan command, 16),
		logger: noopLogger{},
	}
}

// SetSource attaches a scan source polled every tick.
// Without one, scans arrive only through Scan.
func (l *Loop) SetSource(s Source) {
	l.source = s
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("control loop started", "tick", l.tick.String())

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped")
			return
		case now := <-ticker.C:
			l.engine.Tick(now)
			l.poll(ctx, now)
		case cmd := <-l.cmds:
			l.dispatch(ctx, cmd)
		}
	}
}

// poll asks the scan source for a card, if one is attached.
func (l *Loop) poll(ctx context.Context, now time.Time) {
	if l.source == nil {
		return
	}
	uid, err := l.source.Poll(ctx)
	if err != nil {
		l.logger.Warn("scan source poll failed", "error", err)
		return
	}
	if uid != "" {
		l.engine.OnScan(ctx, uid, now)
	}
}

// dispatch executes one boundary command on the engine.
func (l *Loop) dispatch(ctx context.Context, cmd command) {
	now := time.Now()
	switch c := cmd.(type) {
	case cmdRequestMode:
		l.engine.RequestMode(c.target, now)
	case cmdSetMark:
		c.reply <- l.engine.SetPendingMark(c.channel, c.selected)
	case cmdSetChannel:
		c.reply <- l.engine.ManualChannelSet(c.channel, c.on)
	case cmdScan:
		l.engine.OnScan(ctx, c.uid, now)
	case cmdEnroll:
		c.reply <- l.engine.EnrollCard(ctx, c.uid, c.mask, now)
	case cmdUnenroll:
		c.reply <- l.engine.UnenrollCard(ctx, c.uid, now)
	case cmdStatus:
		c.reply <- l.engine.Status()
	case cmdCards:
		c.reply <- l.engine.Cards()
	case cmdEvents:
		c.reply <- l.engine.Events()
	}
}

// post submits a command unless ctx is cancelled first.
func (l *Loop) post(ctx context.Context, c command) error {
	select {
	case l.cmds <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestMode switches the controller mode. Safe for concurrent use.
func (l *Loop) RequestMode(ctx context.Context, target mode.Mode) error {
	return l.post(ctx, cmdRequestMode{target: target})
}

// SetMark stages an enrollment channel selection.
func (l *Loop) SetMark(ctx context.Context, channel int, selected bool) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, cmdSetMark{channel: channel, selected: selected, reply: reply}); err != nil {
		return err
	}
	return l.wait(ctx, reply)
}

// SetChannel toggles an output directly, bypassing access logic.
func (l *Loop) SetChannel(ctx context.Context, channel int, on bool) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, cmdSetChannel{channel: channel, on: on, reply: reply}); err != nil {
		return err
	}
	return l.wait(ctx, reply)
}

// Scan injects a card scan, for transports that push rather than poll.
func (l *Loop) Scan(ctx context.Context, uid string) error {
	return l.post(ctx, cmdScan{uid: uid})
}

// Enroll adds a card administratively.
func (l *Loop) Enroll(ctx context.Context, uid string, mask registry.Mask) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, cmdEnroll{uid: uid, mask: mask, reply: reply}); err != nil {
		return err
	}
	return l.wait(ctx, reply)
}

// Unenroll removes a card administratively.
func (l *Loop) Unenroll(ctx context.Context, uid string) error {
	reply := make(chan error, 1)
	if err := l.post(ctx, cmdUnenroll{uid: uid, reply: reply}); err != nil {
		return err
	}
	return l.wait(ctx, reply)
}

// Status returns a controller snapshot.
func (l *Loop) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := l.post(ctx, cmdStatus{reply: reply}); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Cards returns the registry listing.
func (l *Loop) Cards(ctx context.Context) ([]registry.Card, error) {
	reply := make(chan []registry.Card, 1)
	if err := l.post(ctx, cmdCards{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case cards := <-reply:
		return cards, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events returns the audit history, most recent first.
func (l *Loop) Events(ctx context.Context) ([]auditlog.Entry, error) {
	reply := make(chan []auditlog.Entry, 1)
	if err := l.post(ctx, cmdEvents{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case events := <-reply:
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loop) wait(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
