package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestValidateRejectsBadName(t *testing.T) {
	m := &Manifest{Name: "Bad Name", Version: "1.0.0", Description: "x", Entrypoint: "run.sh"}
	err := m.Validate()
	assert.Error(t, err)
}

func TestManifestValidateRejectsBadVersion(t *testing.T) {
	m := &Manifest{Name: "deploy", Version: "v1", Description: "x", Entrypoint: "run.sh"}
	err := m.Validate()
	assert.Error(t, err)
}

func TestManifestValidateDefaultsLifecycleToDraft(t *testing.T) {
	m := &Manifest{Name: "deploy", Version: "1.0.0", Description: "x", Entrypoint: "run.sh"}
	assert.NoError(t, m.Validate())
	assert.Equal(t, Draft, m.Lifecycle)
}

func TestManifestAllowsTool(t *testing.T) {
	m := &Manifest{AllowedTools: []string{"fs.read", "fs.write"}}
	assert.True(t, m.AllowsTool("fs.read"))
	assert.False(t, m.AllowsTool("cmd.run"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Draft, Approved))
	assert.True(t, CanTransition(Approved, Deprecated))
	assert.True(t, CanTransition(Deprecated, Approved))
	assert.False(t, CanTransition(Draft, Deprecated))
	assert.False(t, CanTransition(Approved, Draft))
}
