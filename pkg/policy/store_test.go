package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndLoadConfig(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadConfig()
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := DefaultConfig()
	cfg.FilesystemAllowlist = []string{"/tmp/project"}
	require.NoError(t, s.SaveConfig(cfg))

	loaded, ok, err := s.LoadConfig()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cfg.FilesystemAllowlist, loaded.FilesystemAllowlist)
	assert.Equal(t, cfg.DefaultApproval, loaded.DefaultApproval)
}

func TestStoreSaveConfigOverwritesPriorSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveConfig(Config{DefaultApproval: ActionConfirm}))
	require.NoError(t, s.SaveConfig(Config{DefaultApproval: ActionAllow}))

	loaded, ok, err := s.LoadConfig()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ActionAllow, loaded.DefaultApproval)
}

func TestStoreApprovalLifecycle(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordApprovalRequest("req-1", "cmd.run", "exec", "run-1", "step-1"))

	pending, err := s.PendingApprovals()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "req-1", pending[0].ID)
	assert.Equal(t, "cmd.run", pending[0].ToolName)

	require.NoError(t, s.ResolveApproval("req-1", true))

	pending, err = s.PendingApprovals()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStoreResolveApprovalRejectsUnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.ResolveApproval("nope", true)
	assert.Error(t, err)
}

func TestStoreResolveApprovalRejectsDoubleResolve(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordApprovalRequest("req-1", "cmd.run", "exec", "run-1", "step-1"))
	require.NoError(t, s.ResolveApproval("req-1", false))
	assert.Error(t, s.ResolveApproval("req-1", true))
}

func TestStoreRecordToolAudit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordToolAudit("run-1", "step-1", "fs.write", "filesystem.write", "allow", "within allowlist"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM tool_audit WHERE run_id = ?`, "run-1").Scan(&count))
	assert.Equal(t, 1, count)
}
