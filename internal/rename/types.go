// Package rename implements the Renamer and its Shards: the sharded,
// bounded-probing, reference-counted hash table that maps wide object
// addresses to compact ObjectNames (spec.md §4.1, §4.2).
package rename

import "github.com/dreamware/puppetmaster/internal/bitset"

// ObjectRef is one address slot of a submitter's request, per spec.md §6:
// the submitter supplies 16 slots and the core must tell reads from writes
// by the Write flag, not by position.
type ObjectRef struct {
	Address uint64
	Write   bool
	Valid   bool
}

// InputTransaction is the Renamer's input: a tid plus up to ObjsPerTx read
// addresses and ObjsPerTx write addresses, conventionally carried in the 16
// Objs slots but order-independent (spec.md §3, §6).
type InputTransaction struct {
	TID  uint64
	Objs [16]ObjectRef
}

// Split extracts the valid read and write addresses, ignoring slot
// position entirely, per §6's explicit ordering-independence requirement.
func (t InputTransaction) Split() (reads, writes []uint64) {
	for _, o := range t.Objs {
		if !o.Valid {
			continue
		}
		if o.Write {
			writes = append(writes, o.Address)
		} else {
			reads = append(reads, o.Address)
		}
	}
	return reads, writes
}

// RenamedTransaction is a transaction after successful renaming: its tid
// plus the ObjectName bit-sets for its reads and writes (spec.md §3).
type RenamedTransaction struct {
	TID      uint64
	ReadSet  bitset.ObjectSet
	WriteSet bitset.ObjectSet
}

// SchedulerTransaction is the {readSet, writeSet} pair the Scheduler
// consumes, stripped of the tid it doesn't need (spec.md §3).
type SchedulerTransaction struct {
	Read  bitset.ObjectSet
	Write bitset.ObjectSet
}

// RenamerResponse is what get() returns for a completed rename request
// (spec.md §4.2): the fully renamed transaction plus its scheduler-ready
// projection.
type RenamerResponse struct {
	Renamed     RenamedTransaction
	SchedulerTr SchedulerTransaction
}
