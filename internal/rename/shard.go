package rename

import (
	"errors"
	"fmt"
	"sync"
)

// ErrProbingExhausted is returned when NUM_HASHES probes found neither a
// free slot nor a matching, unsaturated entry (spec.md §4.1, §7).
var ErrProbingExhausted = errors.New("rename: probing exhausted")

// ErrRefCounterSaturated is returned when an address already resolves to a
// name whose counter has reached MAX_REFS (spec.md §4.1, §7).
var ErrRefCounterSaturated = errors.New("rename: reference counter saturated")

// RenameTableEntry is one slot of a Shard's table (spec.md §3). Counter ==
// 0 means the slot is free.
type RenameTableEntry struct {
	Counter int
	Address uint64
}

// Shard owns one partition of the rename table: SHARD_SLOTS cells,
// addressed by a slot key, reached by open addressing with linear probing
// bounded by NumHashes (spec.md §4.1).
//
// At most one request is in flight against a Shard at a time — mu
// serializes Rename/Delete/Reset exactly as §4.1 requires ("At most one
// request in flight at a time... a backing memory with single-cycle read
// latency and at-most-one outstanding read is sufficient"). This mirrors
// the RWMutex-guarded single-owner state pattern of a typical in-memory
// store.
type Shard struct {
	mu        sync.Mutex
	entries   []RenameTableEntry
	numHashes int
	maxRefs   int
	debug     bool
}

// NewShard creates a shard with the given slot count, probing bound, and
// saturation threshold. debug enables the delete-of-free-slot assertion
// spec.md §4.1 and §9 recommend.
func NewShard(slots, numHashes, maxRefs int, debug bool) *Shard {
	return &Shard{
		entries:   make([]RenameTableEntry, slots),
		numHashes: numHashes,
		maxRefs:   maxRefs,
		debug:     debug,
	}
}

// Rename implements the probe sequence of spec.md §4.1: for attempt i in
// [0, NumHashes), examine slot (baseSlot + i) mod len(entries). Allocates
// a free slot, bumps a matching unsaturated entry, or fails.
func (s *Shard) Rename(addr uint64, baseSlot int) (slot int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	for i := 0; i < s.numHashes; i++ {
		probe := (baseSlot + i) % n
		e := &s.entries[probe]

		switch {
		case e.Counter == 0:
			// Free: allocate.
			e.Counter = 1
			e.Address = addr
			return probe, nil

		case e.Address == addr && e.Counter < s.maxRefs:
			// Same address, room to bump.
			e.Counter++
			return probe, nil

		case e.Address == addr:
			// Same address, saturated.
			return 0, ErrRefCounterSaturated

		default:
			// Collision on a different address: keep probing.
		}
	}

	return 0, ErrProbingExhausted
}

// Delete releases one reference on the entry at slot, per spec.md §4.1:
// "Issues a read on slot_key..., then writes back with counter-1 and the
// same object_address." When the counter reaches zero the stored address
// is cleared as well. Delete on a free slot is undefined behavior per
// the source; in debug builds it is asserted against instead of silently
// corrupting state (spec.md §7, §9 Open Questions).
func (s *Shard) Delete(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &s.entries[slot]
	if e.Counter == 0 {
		if s.debug {
			panic(fmt.Sprintf("rename: delete of free slot %d", slot))
		}
		return nil
	}

	e.Counter--
	if e.Counter == 0 {
		e.Address = 0
	}
	return nil
}

// Reset clears every slot to free, as performed once at startup (spec.md §4.1).
func (s *Shard) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		s.entries[i] = RenameTableEntry{}
	}
}

// Snapshot returns a point-in-time copy of the table, for debugging — the
// software analogue of a Shard.Info() snapshot pattern.
func (s *Shard) Snapshot() []RenameTableEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RenameTableEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// RefCount returns the current counter at slot, used by invariant tests
// (spec.md §8, invariant 1) to compare against the number of in-flight
// transactions referencing the corresponding name.
func (s *Shard) RefCount(slot int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[slot].Counter
}
