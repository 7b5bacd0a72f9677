package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDerivedWidths(t *testing.T) {
	c := Default()
	assert.Equal(t, 1024, c.NumNames())
	assert.Equal(t, 3, c.Rounds())
	assert.Equal(t, 1024, c.MaxRefs())
}

func TestValidateRejectsNonPowerOfTwoPool(t *testing.T) {
	c := Default()
	c.Pool = 6
	assert.Error(t, c.Validate())
}

func TestValidateRejectsHashesBeyondShardSlots(t *testing.T) {
	c := Default()
	c.NumHashes = c.ShardSlots + 1
	assert.Error(t, c.Validate())
}

func TestScenarioS6Shape(t *testing.T) {
	// Scenario S6 of spec.md §8: SHARD_SLOTS=NUM_HASHES=8.
	c := Default()
	c.ShardSlots = 8
	c.NumHashes = 8
	c.NumShards = 1
	require.NoError(t, c.Validate())
	assert.Equal(t, 8, c.NumNames())
}
