package skillrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/core/pkg/sandbox"
	"github.com/agentrt/core/pkg/skill"
	"github.com/agentrt/core/pkg/tool"
)

func TestDispatcherRunsPromptDrivenSkill(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "reader")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "skill.yaml"), []byte(`
name: reader
version: 1.0.0
description: reads files
entrypoint: prompt.txt
allowedTools: [fs.read]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "prompt.txt"), []byte("read: {{path}}"), 0o644))

	reg := skill.NewRegistry()
	require.NoError(t, reg.Load([]string{dir}))
	require.NoError(t, reg.Transition("reader", skill.Approved))

	toolReg := newRegistry(t)
	runner := New(toolReg, allowAllEngine(), &scriptedModel{turns: []ChatResult{{Content: "ok"}}}, sandbox.NewWithDefaults())
	d := NewDispatcher(reg, runner)

	result, err := d.Dispatch(context.Background(), "reader", map[string]any{"path": "a.txt"}, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDispatcherRejectsUnapprovedSkill(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "reader")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "skill.yaml"), []byte(`
name: reader
version: 1.0.0
description: reads files
entrypoint: prompt.txt
`), 0o644))

	reg := skill.NewRegistry()
	require.NoError(t, reg.Load([]string{dir}))

	d := NewDispatcher(reg, New(newRegistry(t), allowAllEngine(), &scriptedModel{}, sandbox.NewWithDefaults()))
	_, err := d.Dispatch(context.Background(), "reader", map[string]any{}, &tool.ExecutionContext{})
	assert.Error(t, err)
}

func TestDispatcherRunsRegisteredWorkflow(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "worker")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "skill.yaml"), []byte(`
name: worker
version: 1.0.0
description: runs a workflow
entrypoint: run
allowedTools: [fs.read]
`), 0o644))

	reg := skill.NewRegistry()
	require.NoError(t, reg.Load([]string{dir}))
	require.NoError(t, reg.Transition("worker", skill.Approved))

	runner := New(newRegistry(t), allowAllEngine(), &scriptedModel{}, sandbox.NewWithDefaults())
	d := NewDispatcher(reg, runner)
	d.RegisterWorkflow("worker", func(ctx context.Context, inputs map[string]any, exec ToolExecutor, ec *tool.ExecutionContext) (string, error) {
		return "workflow ran", nil
	})

	result, err := d.Dispatch(context.Background(), "worker", map[string]any{}, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "workflow ran", result.Output)
}
