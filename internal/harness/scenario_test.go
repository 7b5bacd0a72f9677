package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioFileParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s6.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s6\nshard_slots: 8\nnum_hashes: 8\n"), 0o644))

	spec, err := LoadScenarioFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s6", spec.Name)
	assert.Equal(t, 8, spec.ShardSlots)
	assert.Equal(t, 8, spec.NumHashes)
}

func TestLoadScenarioFileMissing(t *testing.T) {
	_, err := LoadScenarioFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
