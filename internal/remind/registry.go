package remind

import (
	"sync"
	"time"

	logx "notebell/pkg/logx"
)

// MaxTimerDelay bounds how far ahead a single-shot timer may be armed.
// Occurrences further out are skipped for the current rescan cycle; a
// later periodic rescan picks them up once they draw within range.
const MaxTimerDelay = 28 * 24 * time.Hour

// TimerID is the composite identity of one live timer. Epoch is the unix
// second of the target instant; Offset distinguishes multiple stamps on
// one line.
type TimerID struct {
	Path   string
	Line   int
	Epoch  int64
	Offset int
}

// Registry owns every live reminder timer. The primary map holds the
// platform timer handles; the secondary index groups ids by document so
// a whole document (or one line of it) can be invalidated cheaply. Both
// maps are mutated together under one lock and never go out of sync.
type Registry struct {
	log logx.Logger
	now func() time.Time

	mu     sync.Mutex
	timers map[TimerID]*time.Timer
	byDoc  map[string]map[TimerID]struct{}
}

func NewRegistry(now func() time.Time, log logx.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		log:    log,
		now:    now,
		timers: map[TimerID]*time.Timer{},
		byDoc:  map[string]map[TimerID]struct{}{},
	}
}

// Schedule arms a timer firing onFire at target. Registration is
// idempotent: a live id is left untouched and Schedule reports false.
// Past instants and instants beyond MaxTimerDelay are rejected.
func (r *Registry) Schedule(id TimerID, target time.Time, onFire func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.timers[id]; ok {
		return false
	}

	delay := target.Sub(r.now())
	if delay <= 0 {
		return false
	}
	if delay > MaxTimerDelay {
		r.log.Debug("reminder beyond timer range, deferring to periodic rescan",
			logx.String("doc", id.Path),
			logx.Int("line", id.Line),
			logx.Time("target", target),
		)
		return false
	}

	r.timers[id] = time.AfterFunc(delay, func() { r.fire(id, onFire) })
	set := r.byDoc[id.Path]
	if set == nil {
		set = map[TimerID]struct{}{}
		r.byDoc[id.Path] = set
	}
	set[id] = struct{}{}
	return true
}

// fire removes the id from both indices before running the callback, so
// a recurring successor computed inside onFire never collides with the
// just-fired id. The callback runs on its own timer goroutine where an
// uncaught panic would kill the process, so panics are contained here.
func (r *Registry) fire(id TimerID, onFire func()) {
	r.mu.Lock()
	if _, ok := r.timers[id]; !ok {
		// Cancelled after the platform timer already fired; the cancel wins.
		r.mu.Unlock()
		return
	}
	r.removeLocked(id)
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("reminder callback panicked",
				logx.String("doc", id.Path),
				logx.Int("line", id.Line),
				logx.Any("panic", p),
				logx.Stack(logx.CaptureStack()),
			)
		}
	}()
	onFire()
}

func (r *Registry) removeLocked(id TimerID) {
	delete(r.timers, id)
	if set := r.byDoc[id.Path]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byDoc, id.Path)
		}
	}
}

// Cancel stops and removes one timer. No-op if absent.
func (r *Registry) Cancel(id TimerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		r.removeLocked(id)
	}
}

// CancelDocument cancels every timer indexed under the document.
func (r *Registry) CancelDocument(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byDoc[path] {
		if t, ok := r.timers[id]; ok {
			t.Stop()
		}
		delete(r.timers, id)
	}
	delete(r.byDoc, path)
}

// CancelLine cancels only the timers whose identity starts with
// (path, line), leaving the document's other lines untouched.
func (r *Registry) CancelLine(path string, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byDoc[path] {
		if id.Line != line {
			continue
		}
		if t, ok := r.timers[id]; ok {
			t.Stop()
		}
		r.removeLocked(id)
	}
}

// CancelAll drops every live timer (used when this instance loses send
// authorization).
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.byDoc = map[string]map[TimerID]struct{}{}
}

// Contains reports whether id is live.
func (r *Registry) Contains(id TimerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[id]
	return ok
}

// Len returns the number of live timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// IDsForDocument snapshots the ids currently indexed under path.
func (r *Registry) IDsForDocument(path string) []TimerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byDoc[path]
	out := make([]TimerID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
