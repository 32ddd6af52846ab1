package generate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherInvalidatesOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	pc := NewProjectCache(time.Hour, 20, []string{".git"})
	defer pc.Close()

	w, err := NewWatcher(pc)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	if got := pc.Get(root).Structure; got != structureEmpty {
		t.Fatalf("expected empty project, got %q", got)
	}
	os.WriteFile(filepath.Join(root, "main.py"), []byte("print(1)"), 0644)

	waitFor(t, func() bool { return len(pc.Cached()) == 0 })
	if got := pc.Get(root).Structure; !strings.Contains(got, "main.py") {
		t.Errorf("expected refreshed structure, got %q", got)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	pc := NewProjectCache(time.Hour, 20, nil)
	defer pc.Close()

	w, err := NewWatcher(pc)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.Watch(root)

	sub := filepath.Join(root, "src")
	os.Mkdir(sub, 0755)
	waitFor(t, func() bool { return len(pc.Cached()) == 0 })

	// Wait until the new directory is registered before writing into it.
	waitFor(t, func() bool {
		for _, p := range w.watcher.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	})

	pc.Get(root)
	os.WriteFile(filepath.Join(sub, "app.py"), nil, 0644)
	waitFor(t, func() bool { return len(pc.Cached()) == 0 })
}

func TestWatcherRootFor(t *testing.T) {
	pc := NewProjectCache(time.Hour, 20, nil)
	defer pc.Close()
	w, err := NewWatcher(pc)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	base := t.TempDir()
	outer := filepath.Join(base, "p")
	inner := filepath.Join(outer, "nested")
	os.MkdirAll(inner, 0755)
	w.Watch(outer)
	w.Watch(inner)

	tests := []struct {
		path string
		root string
		ok   bool
	}{
		{filepath.Join(outer, "a.txt"), outer, true},
		{filepath.Join(inner, "b.txt"), inner, true},
		{filepath.Join(base, "pother", "c.txt"), "", false},
	}
	for _, tt := range tests {
		root, ok := w.rootFor(tt.path)
		if root != tt.root || ok != tt.ok {
			t.Errorf("rootFor(%q) = (%q, %v), want (%q, %v)", tt.path, root, ok, tt.root, tt.ok)
		}
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pc := NewProjectCache(time.Hour, 20, nil)
	defer pc.Close()
	w, err := NewWatcher(pc)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
