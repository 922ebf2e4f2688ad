package builtin

import (
	"context"
	"testing"

	"github.com/agentrt/core/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmdRunWithoutSandboxCapturesStdout(t *testing.T) {
	def := CmdRun(nil)
	ec := &tool.ExecutionContext{WorkDir: t.TempDir()}

	res, err := def.Operation(context.Background(), map[string]any{"command": "echo hi"}, ec)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi\n", res.Output["stdout"])
	assert.Equal(t, 0, res.Output["exitCode"])
}

func TestCmdRunWithoutSandboxReportsNonZeroExit(t *testing.T) {
	def := CmdRun(nil)
	ec := &tool.ExecutionContext{WorkDir: t.TempDir()}

	res, err := def.Operation(context.Background(), map[string]any{"command": "exit 3"}, ec)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Output["exitCode"])
}

func TestCmdRunRejectsEmptyCommand(t *testing.T) {
	def := CmdRun(nil)
	ec := &tool.ExecutionContext{WorkDir: t.TempDir()}

	res, err := def.Operation(context.Background(), map[string]any{"command": "   "}, ec)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
