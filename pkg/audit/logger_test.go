package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/core/pkg/bus"
)

func TestLoggerRecordsStepLifecycleAndPersists(t *testing.T) {
	dir := t.TempDir()
	b := bus.NewMemoryBus()
	defer b.Close()

	logger, err := New(dir, "run-001", "deploy", b)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, logger.Emit(ctx, KindStepStart, map[string]any{"stepId": "step1"}))
	require.NoError(t, logger.Emit(ctx, KindStepComplete, map[string]any{"stepId": "step1", "output": "ok", "verified": true}))
	require.NoError(t, logger.Emit(ctx, KindDiffGenerated, map[string]any{"stepId": "step1", "path": "/tmp/a.txt", "patch": "--- a\n+++ b\n"}))

	time.Sleep(50 * time.Millisecond)

	log, err := logger.Complete("completed")
	require.NoError(t, err)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, "completed", log.Steps[0].Status)
	assert.Equal(t, "ok", log.Steps[0].Output)
	require.NotNil(t, log.Summary)
	assert.Equal(t, 1, log.Summary.StepsCompleted)
	assert.Equal(t, 1, log.Summary.VerificationsPassed)

	loaded, err := Load(dir, "run-001")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "completed", loaded.Status)
	assert.Len(t, loaded.Diffs, 1)
}

func TestLoggerRedactsSensitivePayload(t *testing.T) {
	dir := t.TempDir()
	b := bus.NewMemoryBus()
	defer b.Close()

	logger, err := New(dir, "run-002", "deploy", b)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, logger.Emit(ctx, KindToolCall, map[string]any{"tool": "cmd.run", "password": "hunter2"}))
	time.Sleep(50 * time.Millisecond)

	log, err := logger.Complete("completed")
	require.NoError(t, err)

	found := false
	for _, ev := range log.Events {
		if ev.Kind == KindToolCall {
			found = true
			assert.Equal(t, "[REDACTED]", ev.Payload["password"])
		}
	}
	assert.True(t, found)
}

func TestListReturnsReverseChronological(t *testing.T) {
	dir := t.TempDir()
	b := bus.NewMemoryBus()
	defer b.Close()

	for _, id := range []string{"01AAA", "01BBB", "01CCC"} {
		logger, err := New(dir, id, "plan", b)
		require.NoError(t, err)
		_, err = logger.Complete("completed")
		require.NoError(t, err)
	}

	ids, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"01CCC", "01BBB", "01AAA"}, ids)
}

func TestPruneProposalsRemovesOldDrafts(t *testing.T) {
	dir := t.TempDir()
	b := bus.NewMemoryBus()
	defer b.Close()

	logger, err := New(dir, "run-old", "plan", b)
	require.NoError(t, err)
	_, err = logger.Complete("proposed")
	require.NoError(t, err)

	// Backdate the persisted run log past the retention horizon.
	stored, err := Load(dir, "run-old")
	require.NoError(t, err)
	stored.EndedAt = time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, persist(dir, stored))

	require.NoError(t, PruneProposals(dir, 7*24*time.Hour))

	_, err = Load(dir, "run-old")
	require.NoError(t, err)
	ids, err := List(dir)
	require.NoError(t, err)
	assert.NotContains(t, ids, "run-old")
}
