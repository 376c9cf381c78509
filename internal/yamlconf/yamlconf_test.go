package yamlconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/lazyinit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	path := write(t, `
policy:
  eligible: [wlan, camera, gpu]
  already_active: [ufs_core]
  excluded: [touchscreen]
  tail: [gpu]
diagnostics:
  debug: true
  pending_interval: 2s
`)

	m, err := NewLoader().Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, []string{"wlan", "camera", "gpu"}, m.Policy.Eligible)
	assert.Equal(t, []string{"ufs_core"}, m.Policy.AlreadyActive)
	assert.Equal(t, []string{"touchscreen"}, m.Policy.Excluded)
	assert.Equal(t, []string{"gpu"}, m.Policy.Tail)
	require.NotNil(t, m.Diagnostics.Debug)
	assert.True(t, *m.Diagnostics.Debug)
	require.NotNil(t, m.Diagnostics.PendingInterval)
	assert.Equal(t, 2*time.Second, *m.Diagnostics.PendingInterval)
	assert.Equal(t, []string{path}, m.Sources)
}

func TestLoadEmptyFile(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	m, err := NewLoader().Load(ctx, write(t, ""))
	require.NoError(t, err)
	assert.Empty(t, m.Policy.Eligible)
	assert.Nil(t, m.Diagnostics.Debug)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	_, err := NewLoader().Load(ctx, write(t, "policy:\n  required: [a]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	_, err := NewLoader().Load(ctx, write(t, "diagnostics:\n  pending_interval: soon\n"))
	require.ErrorContains(t, err, "invalid pending_interval")
}

func TestLoadMissingFile(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	_, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "failed to read YAML file")
}
