package rename

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/puppetmaster/internal/config"
)

func testConfig() config.Config {
	c := config.Default()
	c.NumShards = 2
	c.ShardSlots = 8
	c.NumHashes = 4
	return c
}

func mkTx(tid uint64, reads, writes []uint64) InputTransaction {
	var tx InputTransaction
	tx.TID = tid
	i := 0
	for _, a := range reads {
		tx.Objs[i] = ObjectRef{Address: a, Write: false, Valid: true}
		i++
	}
	for _, a := range writes {
		tx.Objs[i] = ObjectRef{Address: a, Write: true, Valid: true}
		i++
	}
	return tx
}

func TestRenamerRenamesDisjointTransactions(t *testing.T) {
	r := NewRenamer(testConfig(), zap.NewNop(), nil)
	ctx := context.Background()

	resp1, ok, err := r.Put(ctx, mkTx(1, []uint64{0, 2}, []uint64{1, 3}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), resp1.Renamed.TID)
	assert.Equal(t, 2, resp1.Renamed.ReadSet.Count())
	assert.Equal(t, 2, resp1.Renamed.WriteSet.Count())

	resp2, ok, err := r.Put(ctx, mkTx(2, []uint64{4}, []uint64{5}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, bset(t, resp1, resp2))
}

// bset reports whether a's renamed write set overlaps b's read or write
// set, a small helper used only by this test.
func bset(t *testing.T, a, b RenamerResponse) bool {
	t.Helper()
	conflict := false
	a.Renamed.WriteSet.ForEach(func(n int) {
		if b.Renamed.ReadSet.Test(n) || b.Renamed.WriteSet.Test(n) {
			conflict = true
		}
	})
	return conflict
}

func TestRenamerSameAddressReusesName(t *testing.T) {
	r := NewRenamer(testConfig(), zap.NewNop(), nil)
	ctx := context.Background()

	resp1, ok, err := r.Put(ctx, mkTx(1, []uint64{7}, nil))
	require.NoError(t, err)
	require.True(t, ok)

	resp2, ok, err := r.Put(ctx, mkTx(2, []uint64{7}, nil))
	require.NoError(t, err)
	require.True(t, ok)

	// Same address -> same name while the entry is still live.
	assert.True(t, sameSingleBit(resp1.Renamed.ReadSet, resp2.Renamed.ReadSet))
}

func sameSingleBit(a, b interface{ ForEach(func(int)) }) bool {
	var an, bn int = -1, -1
	a.ForEach(func(n int) { an = n })
	b.ForEach(func(n int) { bn = n })
	return an == bn && an != -1
}

func TestRenamerDeleteReturnsSlotToPreState(t *testing.T) {
	cfg := testConfig()
	r := NewRenamer(cfg, zap.NewNop(), nil)
	ctx := context.Background()

	before := r.Shard(0).RefCount(0)

	resp, ok, err := r.Put(ctx, mkTx(1, []uint64{0}, nil))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.Delete(resp.Renamed))

	after := r.Shard(0).RefCount(0)
	assert.Equal(t, before, after)
}

func TestRenamerHashExhaustionFails(t *testing.T) {
	cfg := config.Default()
	cfg.NumShards = 1
	cfg.ShardSlots = 4
	cfg.NumHashes = 4
	r := NewRenamer(cfg, zap.NewNop(), nil)
	ctx := context.Background()

	// Fill the single shard's 4 slots with 4 distinct addresses that all
	// share base slot 0 (addresses that are multiples of ShardSlots).
	for i := uint64(0); i < 4; i++ {
		_, ok, err := r.Put(ctx, mkTx(i, []uint64{i * 4}, nil))
		require.NoError(t, err)
		require.True(t, ok)
	}

	// A 5th distinct colliding address must fail (scenario S6, spec.md §8).
	_, ok, err := r.Put(ctx, mkTx(5, []uint64{4 * 4}, nil))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrProbingExhausted)
}

func TestRenamerPartialFailureDrainsSucceededObjects(t *testing.T) {
	cfg := config.Default()
	cfg.NumShards = 2
	cfg.ShardSlots = 4
	cfg.NumHashes = 4
	r := NewRenamer(cfg, zap.NewNop(), nil)
	ctx := context.Background()

	// Addresses 0,16,32,48 all route to shard 0 (shardIdx = (addr>>2)%2 = 0
	// when addr/4 is even) at base slot 0; fill all four of its slots.
	fill := mkTx(1, []uint64{0, 16, 32, 48}, nil)
	_, ok, err := r.Put(ctx, fill)
	require.NoError(t, err)
	require.True(t, ok)

	// Second transaction: one object (64) collides into the now-full
	// shard 0 and must fail; the other (4) routes to shard 1 and would
	// succeed on its own. The whole transaction must fail, and the
	// shard-1 slot it grabbed must be released again.
	shard1Addr := uint64(4) // (4>>2)=1, 1%2=1 -> shard 1, base slot 4&3=0

	before1 := r.Shard(1).RefCount(0)

	_, ok, err = r.Put(ctx, mkTx(2, []uint64{64, shard1Addr}, nil))
	assert.False(t, ok)
	assert.Error(t, err)

	assert.Equal(t, before1, r.Shard(1).RefCount(0), "shard-1 slot grabbed by the doomed transaction must be released")
}
