package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentrt/core/pkg/bus"
	"github.com/agentrt/core/pkg/redact"
)

const runLogFile = "run.json"
const diffsFile = "diffs.json"

// Logger owns one run's RunLog for the run's duration. It subscribes to
// every subject under "run.<id>." on the supplied bus and accumulates
// events, updating the matching StepRecord in place for step/diff
// events it recognizes.
type Logger struct {
	mu       sync.Mutex
	runsDir  string
	log      *RunLog
	bus      bus.MessageBus
	sub      bus.Subscription
	fileSeen map[string]bool
}

// New constructs a Logger for a freshly started run and subscribes it
// to the run's bus for the run's lifetime. runsDir is the project's
// ".agent/runs" directory.
func New(runsDir, runID, planName string, b bus.MessageBus) (*Logger, error) {
	l := &Logger{
		runsDir: runsDir,
		bus:     b,
		fileSeen: make(map[string]bool),
		log: &RunLog{
			RunID:     runID,
			PlanName:  planName,
			Status:    "running",
			StartedAt: time.Now(),
		},
	}

	sub, err := b.Subscribe(context.Background(), subjectPrefix(runID)+">", l.handle)
	if err != nil {
		return nil, fmt.Errorf("audit: subscribe: %w", err)
	}
	l.sub = sub
	l.mu.Lock()
	l.recordLocked(Event{Kind: KindRunStart, Timestamp: time.Now(), Payload: map[string]any{"runId": runID, "plan": planName}})
	l.mu.Unlock()
	return l, nil
}

func subjectPrefix(runID string) string {
	return "run." + runID + "."
}

// Subject returns the bus subject other components should publish audit
// events to for this run, e.g. subject + "tool_call".
func (l *Logger) Subject() string {
	return subjectPrefix(l.log.RunID)
}

// Emit publishes kind/payload onto the run's bus; the Logger's own
// subscription picks it up and records it.
func (l *Logger) Emit(ctx context.Context, kind Kind, payload map[string]any) error {
	data, err := json.Marshal(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	if err != nil {
		return err
	}
	return l.bus.Publish(ctx, l.Subject()+string(kind), data)
}

func (l *Logger) handle(msg *bus.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(ev)
}

func (l *Logger) recordLocked(ev Event) {
	ev.Payload = redactPayload(ev.Payload)
	l.log.Events = append(l.log.Events, ev)

	switch ev.Kind {
	case KindStepStart:
		id, _ := ev.Payload["stepId"].(string)
		l.log.Steps = append(l.log.Steps, StepRecord{ID: id, Status: "running"})
	case KindStepComplete, KindStepFailed:
		id, _ := ev.Payload["stepId"].(string)
		l.updateStepLocked(id, ev)
	case KindDiffGenerated:
		stepID, _ := ev.Payload["stepId"].(string)
		path, _ := ev.Payload["path"].(string)
		patch, _ := ev.Payload["patch"].(string)
		l.log.Diffs = append(l.log.Diffs, DiffRecord{StepID: stepID, Path: path, Patch: patch})
		l.fileSeen[path] = true
	}
}

func (l *Logger) updateStepLocked(id string, ev Event) {
	for i := range l.log.Steps {
		if l.log.Steps[i].ID != id {
			continue
		}
		switch {
		case ev.Kind == KindStepComplete:
			l.log.Steps[i].Status = "completed"
		case ev.Payload != nil:
			if status, ok := ev.Payload["status"].(string); ok {
				l.log.Steps[i].Status = status
				break
			}
			l.log.Steps[i].Status = "failed"
		default:
			l.log.Steps[i].Status = "failed"
		}
		if output, ok := ev.Payload["output"].(string); ok {
			l.log.Steps[i].Output = output
		}
		if errMsg, ok := ev.Payload["error"].(string); ok {
			l.log.Steps[i].Error = errMsg
		}
		if durMS, ok := ev.Payload["durationMs"].(float64); ok {
			l.log.Steps[i].Duration = time.Duration(durMS) * time.Millisecond
		}
		if verified, ok := ev.Payload["verified"].(bool); ok {
			l.log.Steps[i].Verified = &verified
		}
		return
	}
}

// Complete stamps the end time, computes the run summary, redacts and
// persists both the run log and the diffs file under the run's
// directory, and unsubscribes from the bus.
func (l *Logger) Complete(status string) (*RunLog, error) {
	l.mu.Lock()
	l.log.Status = status
	l.log.EndedAt = time.Now()
	l.log.Summary = l.summarizeLocked()
	snapshot := *l.log
	snapshot.Events = append([]Event{}, l.log.Events...)
	snapshot.Steps = append([]StepRecord{}, l.log.Steps...)
	snapshot.Diffs = append([]DiffRecord{}, l.log.Diffs...)
	l.mu.Unlock()

	if l.sub != nil {
		_ = l.sub.Unsubscribe()
	}

	if err := persist(l.runsDir, &snapshot); err != nil {
		return &snapshot, err
	}
	return &snapshot, nil
}

func (l *Logger) summarizeLocked() *Summary {
	s := &Summary{Duration: l.log.EndedAt.Sub(l.log.StartedAt)}
	for _, step := range l.log.Steps {
		switch step.Status {
		case "completed":
			s.StepsCompleted++
		case "failed":
			s.StepsFailed++
		case "skipped":
			s.StepsSkipped++
		}
		if step.Verified != nil {
			if *step.Verified {
				s.VerificationsPassed++
			} else {
				s.VerificationsFailed++
			}
		}
	}
	s.DistinctFilesChanged = len(l.fileSeen)
	return s
}

func persist(runsDir string, log *RunLog) error {
	dir := filepath.Join(runsDir, log.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("audit: mkdir: %w", err)
	}

	redacted := redactRunLog(log)

	runBytes, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal run log: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, runLogFile), runBytes, 0o644); err != nil {
		return fmt.Errorf("audit: write run log: %w", err)
	}

	diffBytes, err := json.MarshalIndent(redacted.Diffs, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal diffs: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, diffsFile), diffBytes, 0o644); err != nil {
		return fmt.Errorf("audit: write diffs: %w", err)
	}
	return nil
}

func redactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	return redact.Map(payload).(map[string]any)
}

func redactRunLog(log *RunLog) *RunLog {
	out := *log
	out.Events = make([]Event, len(log.Events))
	for i, ev := range log.Events {
		out.Events[i] = ev
		out.Events[i].Payload = redactPayload(ev.Payload)
	}
	out.Steps = make([]StepRecord, len(log.Steps))
	for i, st := range log.Steps {
		out.Steps[i] = st
		out.Steps[i].Output = redact.String(st.Output)
		out.Steps[i].Error = redact.String(st.Error)
	}
	out.Diffs = make([]DiffRecord, len(log.Diffs))
	for i, d := range log.Diffs {
		out.Diffs[i] = d
		out.Diffs[i].Patch = redact.String(d.Patch)
	}
	return &out
}

// Load returns the saved run log for runID, or nil if it does not
// exist.
func Load(runsDir, runID string) (*RunLog, error) {
	data, err := os.ReadFile(filepath.Join(runsDir, runID, runLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var log RunLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("audit: decode run log %s: %w", runID, err)
	}
	return &log, nil
}

// List returns every saved run id, in reverse chronological order
// (lexicographic-descending — run ids are ULIDs, which sort
// chronologically as strings).
func List(runsDir string) ([]string, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// PruneProposals deletes run directories whose status is "proposed" and
// whose end time (or start time, if never completed) is older than
// horizon. Invoked by the daemon's periodic housekeeping per the
// configurable proposalRetentionDays default (7 days).
func PruneProposals(runsDir string, horizon time.Duration) error {
	ids, err := List(runsDir)
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-horizon)
	for _, id := range ids {
		log, err := Load(runsDir, id)
		if err != nil || log == nil {
			continue
		}
		if !strings.EqualFold(log.Status, "proposed") {
			continue
		}
		ts := log.EndedAt
		if ts.IsZero() {
			ts = log.StartedAt
		}
		if ts.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(runsDir, id)); err != nil {
				return fmt.Errorf("audit: prune %s: %w", id, err)
			}
		}
	}
	return nil
}
