package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conflicts(a, b []uint64, aw, bw []uint64) bool {
	set := func(xs []uint64) map[uint64]bool {
		m := make(map[uint64]bool, len(xs))
		for _, x := range xs {
			m[x] = true
		}
		return m
	}
	bwSet, brSet := set(bw), set(b)
	for _, x := range aw {
		if brSet[x] || bwSet[x] {
			return true
		}
	}
	for _, x := range a {
		if bwSet[x] {
			return true
		}
	}
	return false
}

func TestScenarioS1AllPairwiseDisjoint(t *testing.T) {
	txs := ScenarioS1()
	require.Len(t, txs, 8)
	for i := range txs {
		for j := i + 1; j < len(txs); j++ {
			ri, wi := txs[i].Split()
			rj, wj := txs[j].Split()
			assert.False(t, conflicts(ri, rj, wi, wj), "S1 transactions %d and %d must be disjoint", i, j)
		}
	}
}

func TestScenarioS2PairsConflictAcrossPairsDisjoint(t *testing.T) {
	txs := ScenarioS2()
	r0, w0 := txs[0].Split()
	r1, w1 := txs[1].Split()
	assert.True(t, conflicts(r0, r1, w0, w1), "tid 0 and 1 must conflict (same pair)")

	r2, w2 := txs[2].Split()
	assert.False(t, conflicts(r0, r2, w0, w2), "tid 0 and 2 are different pairs and must not conflict")
}

func TestScenarioS3HalvesConflict(t *testing.T) {
	txs := ScenarioS3()
	r0, w0 := txs[0].Split()
	r2, w2 := txs[2].Split()
	assert.True(t, conflicts(r0, r2, w0, w2), "tid 0 and 2 are both even and must conflict")

	r1, w1 := txs[1].Split()
	assert.False(t, conflicts(r0, r1, w0, w1), "tid 0 and 1 are different halves and must not conflict")
}

func TestScenarioS4AllConflict(t *testing.T) {
	txs := ScenarioS4()
	for i := 0; i < len(txs); i++ {
		for j := i + 1; j < len(txs); j++ {
			ri, wi := txs[i].Split()
			rj, wj := txs[j].Split()
			assert.True(t, conflicts(ri, rj, wi, wj), "S4 tid %d and %d must conflict", i, j)
		}
	}
}

func TestScenarioS5AppendsNinthMatchingFirst(t *testing.T) {
	txs := ScenarioS5()
	require.Len(t, txs, 9)
	r0, w0 := txs[0].Split()
	r8, w8 := txs[8].Split()
	assert.Equal(t, r0, r8)
	assert.Equal(t, w0, w8)
	assert.Equal(t, uint64(8), txs[8].TID)
}

func TestScenarioS6NineCollidingAddresses(t *testing.T) {
	txs := ScenarioS6()
	require.Len(t, txs, 9)
	for i, tx := range txs {
		reads, _ := tx.Split()
		require.Len(t, reads, 1)
		assert.Equal(t, uint64(i)*8, reads[0])
	}
}

func TestPadToPoolRoundsUpToPoolMinusOne(t *testing.T) {
	txs := ScenarioS1() // 8 transactions
	padded := PadToPool(txs, 8)
	require.Len(t, padded, 14, "8 rounds up to the next multiple of Pool-1=7")
	for _, tx := range padded[8:] {
		reads, writes := tx.Split()
		assert.Empty(t, reads)
		assert.Empty(t, writes)
	}
}

func TestPadToPoolNoopWhenAlreadyAMultiple(t *testing.T) {
	txs := ScenarioS1()
	padded := PadToPool(txs, 9) // Pool-1 == 8, already exact
	assert.Len(t, padded, 8)
}

func TestPadToPoolNoopOnEmptyInput(t *testing.T) {
	assert.Empty(t, PadToPool(nil, 8))
}

func TestScenarioSpecBuildDispatchesByName(t *testing.T) {
	spec := ScenarioSpec{Name: "s4"}
	txs, err := spec.Build()
	require.NoError(t, err)
	assert.Len(t, txs, 8)

	_, err = ScenarioSpec{Name: "bogus"}.Build()
	assert.Error(t, err)
}
