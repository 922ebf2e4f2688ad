// Package rollback implements the Rollback Tracker: per-step
// before/after file snapshots and the unified diffs derived from them,
// used to undo a step's filesystem writes or export the accumulated
// patch history.
package rollback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffEntry is one captured change: the step that produced it, the path
// touched, and the unified patch between pre- and post-content.
type DiffEntry struct {
	StepID string
	Path   string
	Patch  string
}

type snapshot struct {
	before map[string]string // path -> pre-content, first-write-wins
	order  []string          // insertion order of paths within the step
}

// Tracker accumulates snapshots and diffs across a run. Safe for
// concurrent use by multiple steps running in parallel branches of a
// plan.
type Tracker struct {
	mu        sync.Mutex
	steps     map[string]*snapshot
	stepOrder []string // insertion order of step ids
	diffs     []DiffEntry
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{steps: make(map[string]*snapshot)}
}

func readAllowMissing(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if os.IsNotExist(err) {
		return "", nil
	}
	return "", err
}

// CaptureBefore records path's current content under stepID's bucket.
// Idempotent per (step, path): the first call wins so the true pre-state
// of the step is preserved even if the step touches the same path twice.
func (t *Tracker) CaptureBefore(stepID, path string) error {
	path = filepath.Clean(path)
	content, err := readAllowMissing(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.steps[stepID]
	if !ok {
		snap = &snapshot{before: make(map[string]string)}
		t.steps[stepID] = snap
		t.stepOrder = append(t.stepOrder, stepID)
	}
	if _, exists := snap.before[path]; exists {
		return nil
	}
	snap.before[path] = content
	snap.order = append(snap.order, path)
	return nil
}

// CaptureAfter reads path's current content; if it differs from the
// step's recorded pre-state, appends a DiffEntry with the unified patch
// between them. Does nothing if CaptureBefore was never called for this
// (step, path).
func (t *Tracker) CaptureAfter(stepID, path string) error {
	path = filepath.Clean(path)
	after, err := readAllowMissing(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.steps[stepID]
	if !ok {
		return nil
	}
	before, ok := snap.before[path]
	if !ok || before == after {
		return nil
	}
	patch, err := buildUnifiedDiff(path, before, after)
	if err != nil {
		return err
	}
	t.diffs = append(t.diffs, DiffEntry{StepID: stepID, Path: path, Patch: patch})
	return nil
}

// RollbackStep writes every (path -> pre-content) recorded for stepID
// back to disk, in unspecified order, and returns the restored paths.
func (t *Tracker) RollbackStep(stepID string) ([]string, error) {
	t.mu.Lock()
	snap, ok := t.steps[stepID]
	t.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var restored []string
	for path, content := range snap.before {
		if content == "" {
			if _, err := os.Stat(path); err == nil {
				if err := os.Remove(path); err != nil {
					return restored, fmt.Errorf("rollback: remove %s: %w", path, err)
				}
			}
			restored = append(restored, path)
			continue
		}
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return restored, fmt.Errorf("rollback: restore %s: %w", path, err)
			}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return restored, fmt.Errorf("rollback: restore %s: %w", path, err)
		}
		restored = append(restored, path)
	}
	return restored, nil
}

// RollbackAll iterates step ids in reverse insertion order and rolls
// each back, returning the restored paths in the order steps were
// undone.
func (t *Tracker) RollbackAll() ([]string, error) {
	t.mu.Lock()
	order := append([]string{}, t.stepOrder...)
	t.mu.Unlock()

	var all []string
	for i := len(order) - 1; i >= 0; i-- {
		restored, err := t.RollbackStep(order[i])
		all = append(all, restored...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// ExportPatches concatenates every captured unified patch, delimited by
// a blank line, in capture order.
func (t *Tracker) ExportPatches() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	patches := make([]string, 0, len(t.diffs))
	for _, d := range t.diffs {
		patches = append(patches, d.Patch)
	}
	return strings.Join(patches, "\n")
}

// Diffs returns a copy of every accumulated diff entry.
func (t *Tracker) Diffs() []DiffEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]DiffEntry{}, t.diffs...)
}

func buildUnifiedDiff(path, before, after string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
