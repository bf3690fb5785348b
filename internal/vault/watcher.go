package vault

import (
	"context"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "notebell/pkg/logx"
)

type Op int

const (
	// OpChanged covers writes and newly created documents.
	OpChanged Op = iota
	// OpRemoved covers deletes and renames away.
	OpRemoved
)

// Event is one observed modification of a vault document.
type Event struct {
	Path string
	Op   Op
}

// Watcher emits an Event for every modification to a ".md" document
// under the vault root, including documents in subdirectories created
// after the watcher started.
//
// When fsnotify gets into a bad state the watcher may stop delivering
// events or close its channels. Run self-heals by recreating the watcher
// with a small exponential backoff, the same discipline the config
// watcher uses.
type Watcher struct {
	root   string
	log    logx.Logger
	events chan Event
}

func NewWatcher(root string, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{
		root:   filepath.Clean(root),
		log:    log,
		events: make(chan Event, 64),
	}
}

func (w *Watcher) Events() <-chan Event { return w.events }

// Run blocks until ctx is done. Watch failures are retried with jittered
// backoff; they never propagate.
func (w *Watcher) Run(ctx context.Context) error {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("vault watch init failed", logx.Err(err))
			if !wait() {
				return nil
			}
			continue
		}

		if err := w.addRecursive(fsw); err != nil {
			_ = fsw.Close()
			w.log.Warn("vault watch add failed", logx.Err(err), logx.String("root", w.root))
			if !wait() {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		w.log.Debug("vault watcher started", logx.String("root", w.root))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fsw.Close()
				return nil
			case ev, ok := <-fsw.Events:
				if !ok {
					broken = true
					break
				}
				w.handle(fsw, ev)
			case err, ok := <-fsw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				w.log.Warn("vault watch error", logx.Err(err))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = fsw.Close()
		if ctx.Err() != nil {
			return nil
		}
		w.log.Warn("vault watcher stopped; restarting", logx.String("root", w.root))
		if !wait() {
			return nil
		}
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	// New subdirectories must be watched too.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
				if err := fsw.Add(ev.Name); err != nil {
					w.log.Warn("vault watch subdir add failed", logx.Err(err), logx.String("dir", ev.Name))
				}
			}
			return
		}
	}

	if !IsDocument(ev.Name) {
		return
	}

	var op Op
	switch {
	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		op = OpChanged
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		op = OpRemoved
	default:
		return
	}

	select {
	case w.events <- Event{Path: filepath.Clean(ev.Name), Op: op}:
	default:
		// Dropped events are recovered by the periodic full rescan.
		w.log.Debug("vault event dropped (queue full)", logx.String("path", ev.Name))
	}
}
