package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const notifyDebounce = 2 * time.Second

// Notifier bridges filesystem events to the reconciler. Its only job is
// "something changed, schedule a pass": every event collapses into one
// debounced trigger, and the full rescan picks up whatever it was.
type Notifier struct {
	root    string
	ignore  map[string]bool
	watcher *fsnotify.Watcher
	trigger func() TriggerResult
}

func NewNotifier(root string, ignoreDirs []string, trigger func() TriggerResult) (*Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	ig := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ig[d] = true
	}
	n := &Notifier{root: root, ignore: ig, watcher: w, trigger: trigger}
	if err := n.watchTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return n, nil
}

// watchTree registers the root and every non-ignored subdirectory.
// fsnotify watches are not recursive.
func (n *Notifier) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (n.ignore[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return n.watcher.Add(path)
	})
}

// Start consumes watcher events until the context is canceled.
func (n *Notifier) Start(ctx context.Context) {
	go n.run(ctx)
}

func (n *Notifier) run(ctx context.Context) {
	defer n.watcher.Close()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			// New directories need their own watch. Errors are fine,
			// the created path may be a file or already gone.
			if ev.Op.Has(fsnotify.Create) {
				_ = n.watchTree(ev.Name)
			}
			if timer == nil {
				timer = time.AfterFunc(notifyDebounce, func() {
					n.trigger()
				})
			} else {
				timer.Reset(notifyDebounce)
			}

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}
