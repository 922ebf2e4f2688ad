package execengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/core/pkg/permission"
	"github.com/agentrt/core/pkg/plan"
	"github.com/agentrt/core/pkg/policy"
	"github.com/agentrt/core/pkg/rollback"
	"github.com/agentrt/core/pkg/schema"
	"github.com/agentrt/core/pkg/skillrunner"
	"github.com/agentrt/core/pkg/tool"
)

func writeRegistry(t *testing.T, content map[string]string) (*tool.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range content {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	reg := tool.New()
	require.NoError(t, reg.Register(&tool.Definition{
		Name:        "fs.write",
		Category:    "filesystem",
		Description: "writes a file",
		Input:       schema.Object(map[string]*schema.Type{"path": schema.String("path"), "content": schema.String("content")}, "path"),
		Permissions: []permission.Category{permission.FilesystemWrite},
		Operation: func(ctx context.Context, input map[string]any, ec *tool.ExecutionContext) (*tool.Result, error) {
			path, _ := input["path"].(string)
			content, _ := input["content"].(string)
			if err := os.WriteFile(filepath.Join(dir, path), []byte(content), 0o644); err != nil {
				return &tool.Result{Success: false, Error: err.Error()}, nil
			}
			return &tool.Result{Success: true, Output: map[string]any{"bytes": len(content)}}, nil
		},
	}))
	return reg, dir
}

func allowAllEngine(root string) *policy.Engine {
	cfg := policy.DefaultConfig(root)
	cfg.Rules = []policy.Rule{{Permission: permission.Filesystem, Action: policy.ActionAllow}}
	return policy.New(cfg, nil)
}

func TestExecuteStepDispatchesToolAndCapturesRollback(t *testing.T) {
	reg, dir := writeRegistry(t, map[string]string{"a.txt": "before"})
	tracker := rollback.New()
	e := New(reg, allowAllEngine(dir), tracker, nil)

	step := plan.Step{ID: "s1", Name: "write", Tool: "fs.write", Args: map[string]any{"path": filepath.Join(dir, "a.txt"), "content": "after"}}
	result, err := e.ExecuteStep(context.Background(), step, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	diffs := tracker.Diffs()
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0].Patch, "-before")
	assert.Contains(t, diffs[0].Patch, "+after")
}

func TestExecuteStepDeniesOnPolicy(t *testing.T) {
	reg, dir := writeRegistry(t, nil)
	cfg := policy.DefaultConfig(dir)
	cfg.Rules = []policy.Rule{{Permission: permission.Filesystem, Action: policy.ActionDeny}}
	e := New(reg, policy.New(cfg, nil), rollback.New(), nil)

	step := plan.Step{ID: "s1", Name: "write", Tool: "fs.write", Args: map[string]any{"path": filepath.Join(dir, "a.txt"), "content": "x"}}
	result, err := e.ExecuteStep(context.Background(), step, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "permission denied")
}

func TestExecuteStepUnknownTool(t *testing.T) {
	reg, dir := writeRegistry(t, nil)
	e := New(reg, allowAllEngine(dir), rollback.New(), nil)
	result, err := e.ExecuteStep(context.Background(), plan.Step{ID: "s1", Tool: "fs.nope"}, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool")
}

type fakeDispatcher struct {
	result *skillrunner.SkillRunResult
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, name string, args map[string]any, ec *tool.ExecutionContext) (*skillrunner.SkillRunResult, error) {
	return f.result, f.err
}

func TestExecuteStepDispatchesSkill(t *testing.T) {
	reg, dir := writeRegistry(t, nil)
	e := New(reg, allowAllEngine(dir), rollback.New(), &fakeDispatcher{result: &skillrunner.SkillRunResult{Success: true, Output: "done"}})
	result, err := e.ExecuteStep(context.Background(), plan.Step{ID: "s1", Skill: "deploy"}, &tool.ExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "done", result.Output)
}

func TestVerifyFileExists(t *testing.T) {
	reg, dir := writeRegistry(t, map[string]string{"a.txt": "x"})
	e := New(reg, allowAllEngine(dir), rollback.New(), nil)
	ok, _ := e.Verify(context.Background(), &plan.Verify{Checks: []plan.VerifyCheck{{FileExists: filepath.Join(dir, "a.txt")}}}, nil)
	assert.True(t, ok)

	ok, detail := e.Verify(context.Background(), &plan.Verify{Checks: []plan.VerifyCheck{{FileExists: filepath.Join(dir, "missing.txt")}}}, nil)
	assert.False(t, ok)
	assert.Contains(t, detail, "not found")
}

func TestVerifyNilClausePasses(t *testing.T) {
	reg, dir := writeRegistry(t, nil)
	e := New(reg, allowAllEngine(dir), rollback.New(), nil)
	ok, detail := e.Verify(context.Background(), nil, nil)
	assert.True(t, ok)
	assert.Empty(t, detail)
}
