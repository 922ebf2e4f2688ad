package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentrt/core/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	ec := &tool.ExecutionContext{WorkDir: dir}

	writeRes, err := FSWrite().Operation(context.Background(), map[string]any{"path": "note.txt", "content": "hello"}, ec)
	require.NoError(t, err)
	require.True(t, writeRes.Success)

	readRes, err := FSRead().Operation(context.Background(), map[string]any{"path": "note.txt"}, ec)
	require.NoError(t, err)
	require.True(t, readRes.Success)
	assert.Equal(t, "hello", readRes.Output["content"])
}

func TestFSWriteDryRunDoesNotTouchDisk(t *testing.T) {
	dir := t.TempDir()
	ec := &tool.ExecutionContext{WorkDir: dir, DryRun: true}

	res, err := FSWrite().Operation(context.Background(), map[string]any{"path": "note.txt", "content": "hello"}, ec)
	require.NoError(t, err)
	require.True(t, res.Success)

	_, statErr := os.Stat(filepath.Join(dir, "note.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFSPatchReplacesFirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo bar foo"), 0o644))
	ec := &tool.ExecutionContext{WorkDir: dir}

	res, err := FSPatch().Operation(context.Background(), map[string]any{"path": "note.txt", "search": "foo", "replace": "baz"}, ec)
	require.NoError(t, err)
	require.True(t, res.Success)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "baz bar foo", string(data))
}

func TestFSPatchFailsWhenSearchTextMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo"), 0o644))
	ec := &tool.ExecutionContext{WorkDir: dir}

	res, err := FSPatch().Operation(context.Background(), map[string]any{"path": "note.txt", "search": "nope", "replace": "x"}, ec)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestFSExistsReportsPresenceAndAbsence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.txt"), []byte("x"), 0o644))
	ec := &tool.ExecutionContext{WorkDir: dir}

	res, err := FSExists().Operation(context.Background(), map[string]any{"path": "present.txt"}, ec)
	require.NoError(t, err)
	assert.Equal(t, true, res.Output["exists"])

	res, err = FSExists().Operation(context.Background(), map[string]any{"path": "absent.txt"}, ec)
	require.NoError(t, err)
	assert.Equal(t, false, res.Output["exists"])
}

func TestResolvePathRejectsNullByte(t *testing.T) {
	_, err := resolvePath("/work", "a\x00b")
	assert.Error(t, err)
}

func TestResolvePathJoinsRelativeToWorkDir(t *testing.T) {
	got, err := resolvePath("/work", "sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/work/sub/file.txt"), got)
}
