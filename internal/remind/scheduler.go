package remind

import (
	"context"
	"sync"
	"time"

	"notebell/internal/eventbus"
	"notebell/internal/stamp"
	"notebell/internal/vault"
	logx "notebell/pkg/logx"
)

// Docs is the document store the scheduler reads from.
type Docs interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) (string, error)
}

// Gate answers whether this process may currently send notifications.
type Gate interface {
	Authorized() bool
}

// Notifier delivers one fired reminder. Implementations must not retry;
// failures are theirs to surface.
type Notifier interface {
	Send(ctx context.Context, text string, priority int)
}

type SchedulerConfig struct {
	// DismissSet holds the task-status characters that suppress a line.
	DismissSet string
}

// Scheduler turns document text into registered timers and chains
// recurring reminders when they fire. It never touches timer state
// directly; all mutation goes through the Registry.
type Scheduler struct {
	log  logx.Logger
	docs Docs
	reg  *Registry
	gate Gate
	out  Notifier
	bus  eventbus.Bus
	now  func() time.Time

	mu      sync.Mutex
	dismiss string

	// inflight serializes rescans per document: a rescan that arrives
	// while one is running for the same path is skipped. The skipped
	// pass is always covered by a later debounce flush or the periodic
	// rescan.
	inflight map[string]bool
}

func NewScheduler(cfg SchedulerConfig, docs Docs, reg *Registry, gate Gate, out Notifier, bus eventbus.Bus, now func() time.Time, log logx.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		log:      log,
		docs:     docs,
		reg:      reg,
		gate:     gate,
		out:      out,
		bus:      bus,
		now:      now,
		dismiss:  stamp.NormalizeDismissSet(cfg.DismissSet),
		inflight: map[string]bool{},
	}
}

func (s *Scheduler) Apply(cfg SchedulerConfig) {
	s.mu.Lock()
	s.dismiss = stamp.NormalizeDismissSet(cfg.DismissSet)
	s.mu.Unlock()
}

func (s *Scheduler) dismissSet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismiss
}

// begin marks path as being rescanned; it reports false when a rescan
// for the same document is already running.
func (s *Scheduler) begin(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[path] {
		return false
	}
	s.inflight[path] = true
	return true
}

func (s *Scheduler) end(path string) {
	s.mu.Lock()
	delete(s.inflight, path)
	s.mu.Unlock()
}

// RescanAll rebuilds timers for every document in the vault. Per-document
// failures are logged and do not stop the pass.
func (s *Scheduler) RescanAll(ctx context.Context) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		s.log.Warn("vault listing failed", logx.Err(err))
		return
	}
	for _, path := range docs {
		if ctx.Err() != nil {
			return
		}
		if err := s.RescanDocument(ctx, path); err != nil {
			s.log.Warn("document rescan failed", logx.String("doc", path), logx.Err(err))
		}
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "vault.rescan", Data: len(docs)})
	}
}

// RescanDocument drops every timer for the document and re-derives them
// from its current text.
func (s *Scheduler) RescanDocument(ctx context.Context, path string) error {
	if !s.begin(path) {
		s.log.Debug("rescan already in flight, skipping", logx.String("doc", path))
		return nil
	}
	defer s.end(path)

	s.reg.CancelDocument(path)

	text, err := s.docs.Read(ctx, path)
	if err != nil {
		return err
	}

	now := s.now()
	dismiss := s.dismissSet()
	for i, line := range vault.SplitLines(text) {
		s.scheduleLine(path, i, line, dismiss, now)
	}
	return nil
}

// RescanLine re-derives timers for a single line, leaving the rest of
// the document's timers untouched. Used when an edit is known to have
// changed exactly one line.
func (s *Scheduler) RescanLine(ctx context.Context, path string, line int) error {
	if !s.begin(path) {
		s.log.Debug("rescan already in flight, skipping", logx.String("doc", path))
		return nil
	}
	defer s.end(path)

	s.reg.CancelLine(path, line)

	text, err := s.docs.Read(ctx, path)
	if err != nil {
		return err
	}

	lines := vault.SplitLines(text)
	if line < 0 || line >= len(lines) {
		return nil
	}
	s.scheduleLine(path, line, lines[line], s.dismissSet(), s.now())
	return nil
}

// DropDocument cancels all timers for a document that disappeared.
func (s *Scheduler) DropDocument(path string) {
	s.reg.CancelDocument(path)
}

func (s *Scheduler) scheduleLine(path string, line int, text, dismiss string, now time.Time) {
	if stamp.Dismissed(text, dismiss) {
		return
	}

	occs := stamp.Parse(text)
	if len(occs) == 0 {
		return
	}

	// All stamps on a line share the line's priority.
	priority := stamp.Priority(text)
	for _, occ := range occs {
		target, ok := firstFuture(occ, now)
		if !ok {
			continue
		}
		s.register(path, line, target, occ, priority, text)
	}
}

// firstFuture resolves the effective first future instant for an
// occurrence. Past non-recurring occurrences are discarded; recurring
// ones are advanced along their cadence.
func firstFuture(occ stamp.Occurrence, now time.Time) (time.Time, bool) {
	if occ.Recur != nil {
		return NextAfter(occ.When, *occ.Recur, now), true
	}
	if !occ.When.After(now) {
		return time.Time{}, false
	}
	return occ.When, true
}

func (s *Scheduler) register(path string, line int, target time.Time, occ stamp.Occurrence, priority int, raw string) {
	id := TimerID{Path: path, Line: line, Epoch: target.Unix(), Offset: occ.Offset}
	fired := s.reg.Schedule(id, target, func() {
		s.onFire(id, target, occ, priority, raw)
	})
	if fired {
		s.log.Debug("reminder scheduled",
			logx.String("doc", path),
			logx.Int("line", line),
			logx.Time("at", target),
			logx.Bool("recurring", occ.Recur != nil),
		)
	}
}

// onFire runs on the timer goroutine after the registry has already
// dropped the fired id. Delivery is gated; recurrence chaining is not,
// so a silenced instance keeps its cadence alive for when authorization
// returns.
func (s *Scheduler) onFire(id TimerID, firedAt time.Time, occ stamp.Occurrence, priority int, raw string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "reminder.fired", Data: id})
	}

	if s.gate == nil || s.gate.Authorized() {
		text := occ.LineText
		if text == "" {
			text = raw
		}
		s.out.Send(context.Background(), text, priority)
	}

	if occ.Recur == nil {
		return
	}

	// Tail-schedule the successor: exactly the cadence past the fired
	// instant, not past "now".
	next := NextAfter(firedAt, *occ.Recur, s.now())
	s.register(id.Path, id.Line, next, occ, priority, raw)
}
