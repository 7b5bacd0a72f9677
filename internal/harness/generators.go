package harness

import "github.com/dreamware/puppetmaster/internal/rename"

// The six scenario generators of spec.md §8, built as data rather than
// left as prose: each returns the exact InputTransaction stream the
// section describes, so both tests and the CLI's --scenario flag can run
// them without hand-transcribing addresses.

// ScenarioS1 builds 8 pairwise-disjoint transactions (i%4==0): reads
// {0,2,...,14}+128*tid, writes {1,3,...,15}+128*tid. All 8 are expected to
// start within ROUNDS+1 cycles of the buffer filling.
func ScenarioS1() []rename.InputTransaction {
	return buildEight(func(tid uint64) (reads, writes []uint64) {
		base := 128 * tid
		for i := uint64(0); i < 8; i++ {
			reads = append(reads, base+2*i)
			writes = append(writes, base+2*i+1)
		}
		return reads, writes
	})
}

// ScenarioS2 pairs even/odd tids on a shared write set (i%4==1): writes
// {1,...,15}+128*(tid &^ 1), so tid 2k and 2k+1 conflict and at most one
// of each pair may run at a time. Which member of a pair runs first
// depends on the tournament's pairings, not on parity: in the first
// batch tid 2 is dropped alongside tid 1, so tid 3 runs before tid 2.
func ScenarioS2() []rename.InputTransaction {
	return buildEight(func(tid uint64) (reads, writes []uint64) {
		pairBase := 128 * (tid &^ 1)
		readBase := 128 * tid
		for i := uint64(0); i < 8; i++ {
			reads = append(reads, readBase+2*i)
			writes = append(writes, pairBase+2*i+1)
		}
		return reads, writes
	})
}

// ScenarioS3 splits all 8 into two conflicting halves (i%4==2): writes
// {1,...,15}+128*(tid&1), so every even tid conflicts with every other
// even tid, and likewise for odd; exactly 2 puppets may be concurrently
// busy (the even-half and odd-half winners).
func ScenarioS3() []rename.InputTransaction {
	return buildEight(func(tid uint64) (reads, writes []uint64) {
		halfBase := 128 * (tid & 1)
		readBase := 128 * tid
		for i := uint64(0); i < 8; i++ {
			reads = append(reads, readBase+2*i)
			writes = append(writes, halfBase+2*i+1)
		}
		return reads, writes
	})
}

// ScenarioS4 makes all 8 mutually conflicting (i%4==3): every transaction
// writes the identical set {1,...,15}+16, so execution is strictly
// sequential, one transaction at a time, with tid 0 first. The order of
// the rest follows the dispatcher's buffer compaction (the tail entry
// moves into a dispatched slot), not tid order: tid 6 runs second.
func ScenarioS4() []rename.InputTransaction {
	return buildEight(func(tid uint64) (reads, writes []uint64) {
		readBase := 128 * tid
		for i := uint64(0); i < 8; i++ {
			reads = append(reads, readBase+2*i)
			writes = append(writes, 16+2*i+1)
		}
		return reads, writes
	})
}

// ScenarioS5 replays S4's 8 fully-conflicting transactions, then appends a
// 9th that touches tid 0's exact address set. It models delete recycling:
// once tid 0 completes and its names are deleted, the 9th's identical
// addresses must be admitted again.
func ScenarioS5() []rename.InputTransaction {
	txs := ScenarioS4()
	ninth := txs[0]
	ninth.TID = 8
	return append(txs, ninth)
}

// ScenarioS6 submits 9 distinct addresses that all share base slot 0
// (multiples of 8), meant to run against a single-shard Renamer
// (NumShards=1) configured with ShardSlots=NumHashes=8: the 9th collides
// past every probe and the associated transaction must never produce
// Started/Finished events. With more than one shard the addresses route
// to different shards and no probe sequence is exhausted.
func ScenarioS6() []rename.InputTransaction {
	txs := make([]rename.InputTransaction, 9)
	for i := range txs {
		var tx rename.InputTransaction
		tx.TID = uint64(i)
		tx.Objs[0] = rename.ObjectRef{Address: uint64(i) * 8, Write: false, Valid: true}
		txs[i] = tx
	}
	return txs
}

// padTIDBase offsets synthetic filler tids well clear of any realistic
// workload's own tid range, so callers can always tell real transactions
// from padding by a simple comparison.
const padTIDBase = uint64(1) << 32

// PadToPool appends no-op transactions (touching no objects, so they
// never conflict with anything) until len(txs) is a multiple of pool-1 —
// the number of real candidate slots the dispatcher's buffer holds per
// round (spec.md §4.5, rule 2: a round only launches once the buffer is
// exactly full). A continuously-fed production workload never needs this;
// a finite batch does, or its tail — fewer than pool-1 stragglers —
// stalls forever waiting for a transaction that will never arrive.
func PadToPool(txs []rename.InputTransaction, pool int) []rename.InputTransaction {
	candidateSlots := pool - 1
	if candidateSlots <= 0 || len(txs) == 0 {
		return txs
	}
	remainder := len(txs) % candidateSlots
	if remainder == 0 {
		return txs
	}
	for i := 0; i < candidateSlots-remainder; i++ {
		txs = append(txs, rename.InputTransaction{TID: padTIDBase + uint64(i)})
	}
	return txs
}

// buildEight assembles 8 transactions (tid 0..7) from a per-tid
// read/write address generator, the shape every S1-S4 generator shares.
func buildEight(gen func(tid uint64) (reads, writes []uint64)) []rename.InputTransaction {
	txs := make([]rename.InputTransaction, 8)
	for tid := uint64(0); tid < 8; tid++ {
		reads, writes := gen(tid)
		var tx rename.InputTransaction
		tx.TID = tid
		slot := 0
		for _, a := range reads {
			tx.Objs[slot] = rename.ObjectRef{Address: a, Write: false, Valid: true}
			slot++
		}
		for _, a := range writes {
			tx.Objs[slot] = rename.ObjectRef{Address: a, Write: true, Valid: true}
			slot++
		}
		txs[tid] = tx
	}
	return txs
}
