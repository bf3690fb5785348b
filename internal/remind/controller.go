package remind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"notebell/internal/vault"
	logx "notebell/pkg/logx"
)

type ControllerConfig struct {
	// RescanInterval is the coarse safety-net cadence for full vault
	// rescans (clock drift, missed edits, DST edges).
	RescanInterval time.Duration
	// DebounceWindow is how long after the last edit in a burst the
	// document is rescanned.
	DebounceWindow time.Duration
}

func (c *ControllerConfig) defaults() {
	if c.RescanInterval <= 0 {
		c.RescanInterval = 15 * time.Minute
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 2 * time.Second
	}
}

// Controller decides when the scheduler runs: a full rescan at startup,
// a cron-driven periodic full rescan, and a per-document debounced
// rescan on every observed edit. It also reacts to authorization flips.
type Controller struct {
	log    logx.Logger
	sched  *Scheduler
	docs   Docs
	events <-chan vault.Event

	mu      sync.Mutex
	cfg     ControllerConfig
	cron    *cron.Cron
	running bool
	runCtx  context.Context

	// pending holds at most one debounce token per document; a new edit
	// replaces (never stacks on) the previous token.
	pending map[string]*time.Timer

	// snapshots keeps the last text seen per document so a flush can
	// detect a single-line edit and bound the rescan to that line.
	snapshots map[string]string
}

func NewController(cfg ControllerConfig, sched *Scheduler, docs Docs, events <-chan vault.Event, log logx.Logger) *Controller {
	cfg.defaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		log:       log,
		sched:     sched,
		docs:      docs,
		events:    events,
		cfg:       cfg,
		pending:   map[string]*time.Timer{},
		snapshots: map[string]string{},
	}
}

// Run blocks until ctx is done. The startup rescan happens first, then
// the edit loop; the periodic rescan runs on its own cron goroutine.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("controller already running")
	}
	c.running = true
	c.runCtx = ctx
	c.startCronLocked(ctx)
	c.mu.Unlock()

	defer c.shutdown()

	c.log.Info("initial vault rescan")
	c.sched.RescanAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			switch ev.Op {
			case vault.OpRemoved:
				c.drop(ev.Path)
			default:
				c.arm(ev.Path)
			}
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.cron != nil {
		<-c.cron.Stop().Done()
		c.cron = nil
	}
	for path, t := range c.pending {
		t.Stop()
		delete(c.pending, path)
	}
}

func (c *Controller) startCronLocked(ctx context.Context) {
	c.cron = cron.New()
	spec := fmt.Sprintf("@every %s", c.cfg.RescanInterval)
	if _, err := c.cron.AddFunc(spec, func() {
		c.log.Debug("periodic vault rescan")
		c.sched.RescanAll(ctx)
	}); err != nil {
		c.log.Warn("periodic rescan registration failed", logx.Err(err), logx.String("spec", spec))
	}
	c.cron.Start()
}

// Apply updates debounce/periodic settings; a changed interval restarts
// the cron schedule.
func (c *Controller) Apply(cfg ControllerConfig) {
	cfg.defaults()
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.cfg
	c.cfg = cfg
	if !c.running || old.RescanInterval == cfg.RescanInterval {
		return
	}
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
	c.startCronLocked(c.runCtx)
	c.log.Info("rescan interval changed", logx.Duration("interval", cfg.RescanInterval))
}

// GateChanged handles authorization flips: losing authorization drops
// every live timer immediately; regaining it rebuilds them all.
func (c *Controller) GateChanged(authorized bool) {
	c.mu.Lock()
	ctx := c.runCtx
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}

	if !authorized {
		c.log.Info("send authorization lost, cancelling all reminders")
		c.sched.reg.CancelAll()
		return
	}
	c.log.Info("send authorization gained, rescanning vault")
	go c.sched.RescanAll(ctx)
}

// arm starts (or replaces) the document's debounce token.
func (c *Controller) arm(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.pending[path]; t != nil {
		t.Stop()
	}
	c.pending[path] = time.AfterFunc(c.cfg.DebounceWindow, func() { c.flush(path) })
}

// flush runs once per edit burst, DebounceWindow after the last edit.
func (c *Controller) flush(path string) {
	c.mu.Lock()
	delete(c.pending, path)
	prev, hasPrev := c.snapshots[path]
	ctx := c.runCtx
	running := c.running
	c.mu.Unlock()
	if !running {
		return
	}

	text, err := c.docs.Read(ctx, path)
	if err != nil {
		// The document may have vanished between the event and the flush.
		c.log.Debug("edited document unreadable, dropping its reminders", logx.String("doc", path), logx.Err(err))
		c.drop(path)
		return
	}

	c.mu.Lock()
	c.snapshots[path] = text
	c.mu.Unlock()

	if hasPrev {
		if line, ok := vault.ChangedLine(prev, text); ok {
			if err := c.sched.RescanLine(ctx, path, line); err != nil {
				c.log.Warn("line rescan failed", logx.String("doc", path), logx.Int("line", line), logx.Err(err))
			}
			return
		}
	}
	if err := c.sched.RescanDocument(ctx, path); err != nil {
		c.log.Warn("document rescan failed", logx.String("doc", path), logx.Err(err))
	}
}

func (c *Controller) drop(path string) {
	c.mu.Lock()
	if t := c.pending[path]; t != nil {
		t.Stop()
		delete(c.pending, path)
	}
	delete(c.snapshots, path)
	c.mu.Unlock()

	c.sched.DropDocument(path)
}
