package rollback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCaptureBeforeIsFirstWriteWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "v1")

	tr := New()
	require.NoError(t, tr.CaptureBefore("step1", path))

	writeFile(t, path, "v2")
	require.NoError(t, tr.CaptureBefore("step1", path))

	restored, err := tr.RollbackStep("step1")
	require.NoError(t, err)
	assert.Contains(t, restored, path)
	content, _ := os.ReadFile(path)
	assert.Equal(t, "v1", string(content))
}

func TestCaptureAfterRecordsDiffOnlyWhenChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "v1")

	tr := New()
	require.NoError(t, tr.CaptureBefore("step1", path))
	require.NoError(t, tr.CaptureAfter("step1", path))
	assert.Empty(t, tr.Diffs())

	writeFile(t, path, "v2")
	require.NoError(t, tr.CaptureAfter("step1", path))
	diffs := tr.Diffs()
	require.Len(t, diffs, 1)
	assert.Equal(t, "step1", diffs[0].StepID)
	assert.Contains(t, diffs[0].Patch, "-v1")
	assert.Contains(t, diffs[0].Patch, "+v2")
}

func TestRollbackStepRemovesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")

	tr := New()
	require.NoError(t, tr.CaptureBefore("step1", path))
	writeFile(t, path, "created")

	restored, err := tr.RollbackStep("step1")
	require.NoError(t, err)
	assert.Contains(t, restored, path)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRollbackAllReversesInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	writeFile(t, pathA, "a1")
	writeFile(t, pathB, "b1")

	tr := New()
	require.NoError(t, tr.CaptureBefore("step1", pathA))
	writeFile(t, pathA, "a2")
	require.NoError(t, tr.CaptureBefore("step2", pathB))
	writeFile(t, pathB, "b2")

	restored, err := tr.RollbackAll()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pathA, pathB}, restored)

	contentA, _ := os.ReadFile(pathA)
	contentB, _ := os.ReadFile(pathB)
	assert.Equal(t, "a1", string(contentA))
	assert.Equal(t, "b1", string(contentB))
}

func TestExportPatchesConcatenates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "v1")

	tr := New()
	require.NoError(t, tr.CaptureBefore("step1", path))
	writeFile(t, path, "v2")
	require.NoError(t, tr.CaptureAfter("step1", path))

	exported := tr.ExportPatches()
	assert.Contains(t, exported, "+v2")
}
