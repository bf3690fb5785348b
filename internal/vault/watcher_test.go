package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "notebell/pkg/logx"
)

func collectEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("expected watcher event never arrived")
		}
	}
}

func TestWatcherSeesEdits(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(root, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	// Give the watcher a moment to install its watches.
	time.Sleep(100 * time.Millisecond)

	doc := filepath.Join(root, "a.md")
	if err := os.WriteFile(doc, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := collectEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == doc && ev.Op == OpChanged
	})
	_ = ev

	if err := os.Remove(doc); err != nil {
		t.Fatalf("remove: %v", err)
	}
	collectEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == doc && ev.Op == OpRemoved
	})

	cancel()
	<-done
}

func TestWatcherFollowsNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(root, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "projects")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// The new directory's watch is installed on its create event; give
	// that a moment before writing into it.
	time.Sleep(200 * time.Millisecond)

	doc := filepath.Join(sub, "b.md")
	if err := os.WriteFile(doc, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	collectEvent(t, w.Events(), func(ev Event) bool {
		return ev.Path == doc && ev.Op == OpChanged
	})

	cancel()
	<-done
}

func TestWatcherIgnoresNonDocuments(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(root, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "scratch.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := collectEvent(t, w.Events(), func(ev Event) bool { return ev.Op == OpChanged })
	if filepath.Base(ev.Path) != "real.md" {
		t.Fatalf("first document event = %+v, non-documents must be filtered", ev)
	}

	cancel()
	<-done
}
