package skill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, body string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "skill.yaml"), []byte(body), 0o644))
}

func TestRegistryLoadAndTransition(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "deploy", `
name: deploy
version: 1.0.0
description: deploys the app
entrypoint: run.sh
allowedTools: [cmd.run]
`)

	r := NewRegistry()
	require.NoError(t, r.Load([]string{dir}))
	assert.Equal(t, 1, r.Count())

	m, err := r.Get("deploy")
	require.NoError(t, err)
	assert.Equal(t, Draft, m.Lifecycle)

	_, err = r.GetApproved("deploy")
	assert.Error(t, err)

	require.NoError(t, r.Transition("deploy", Approved))
	m, err = r.GetApproved("deploy")
	require.NoError(t, err)
	assert.Equal(t, Approved, m.Lifecycle)
}

func TestRegistryTransitionRejectsIllegalMove(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "deploy", `
name: deploy
version: 1.0.0
description: deploys the app
entrypoint: run.sh
`)

	r := NewRegistry()
	require.NoError(t, r.Load([]string{dir}))

	err := r.Transition("deploy", Deprecated)
	assert.Error(t, err)
}

func TestRegistryLaterPathOverridesEarlier(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeManifest(t, dirA, "deploy", `
name: deploy
version: 1.0.0
description: from A
entrypoint: run.sh
`)
	writeManifest(t, dirB, "deploy", `
name: deploy
version: 2.0.0
description: from B
entrypoint: run.sh
`)

	r := NewRegistry()
	require.NoError(t, r.Load([]string{dirA, dirB}))

	m, err := r.Get("deploy")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)
}

func TestRegistryGetUnknownSkill(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}
