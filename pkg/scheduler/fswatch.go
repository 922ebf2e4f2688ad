package scheduler

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// fsTrigger binds one plan's declared watch paths and glob filter to a
// debounce timer. Structured after the teacher's
// pkg/ralph/control_watcher.go ControlWatcher (poll/checkForChanges,
// a debounce timer reset on every qualifying event), generalized from
// watching a single file to watching declared directories filtered by
// a "**"-capable glob.
type fsTrigger struct {
	planName string
	patterns []string
	debounce time.Duration
	fire     func()

	mu    sync.Mutex
	timer *time.Timer
}

func newFSTrigger(planName string, patterns []string, debounce time.Duration, fire func()) *fsTrigger {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &fsTrigger{planName: planName, patterns: patterns, debounce: debounce, fire: fire}
}

// handle is invoked for every fsnotify event on a watched directory;
// it applies the path filter and, on match, (re)schedules a debounced
// fire.
func (t *fsTrigger) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	if !t.matches(event.Name) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.fire)
}

func (t *fsTrigger) matches(name string) bool {
	name = filepath.ToSlash(name)
	for _, pattern := range t.patterns {
		if MatchGlob(pattern, name) {
			return true
		}
	}
	return false
}

func (t *fsTrigger) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// watchDirs derives the set of parent directories to register with
// fsnotify from a plan's declared path patterns (fsnotify watches
// directories, not globs).
func watchDirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range patterns {
		dir := p
		for i := 0; i < len(dir); i++ {
			if dir[i] == '*' {
				dir = filepath.Dir(dir[:i])
				break
			}
		}
		if dir == "" {
			dir = "."
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
