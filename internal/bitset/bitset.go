// Package bitset provides the fixed-capacity object-name bit-vector used
// throughout Puppetmaster's scheduling hot path.
//
// A transaction's read set and write set are each represented as one
// ObjectSet: a bit is set at position n iff the transaction touches the
// object currently bound to ObjectName n. Every set in the system shares
// the same capacity (config.NumNames), so the only operations the
// scheduler ever needs are bitwise OR (union) and AND (conflict test) over
// fixed-width words — see the design notes in spec.md §9.
package bitset

import bbs "github.com/bits-and-blooms/bitset"

// ObjectSet is a fixed-capacity bit-vector indexed by ObjectName.
// The zero value is not usable; construct with New.
type ObjectSet struct {
	bits *bbs.BitSet
	cap  uint
}

// New returns an empty ObjectSet with room for exactly capacity names.
func New(capacity int) ObjectSet {
	return ObjectSet{bits: bbs.New(uint(capacity)), cap: uint(capacity)}
}

// Cap reports the configured bit width of the set.
func (s ObjectSet) Cap() int { return int(s.cap) }

// Set marks name as present in the set.
func (s ObjectSet) Set(name int) {
	s.bits.Set(uint(name))
}

// Clear removes name from the set.
func (s ObjectSet) Clear(name int) {
	s.bits.Clear(uint(name))
}

// Test reports whether name is present in the set.
func (s ObjectSet) Test(name int) bool {
	return s.bits.Test(uint(name))
}

// Clone returns an independent copy of the set.
func (s ObjectSet) Clone() ObjectSet {
	return ObjectSet{bits: s.bits.Clone(), cap: s.cap}
}

// Reset clears every bit in place.
func (s ObjectSet) Reset() {
	s.bits.ClearAll()
}

// UnionWith ORs other into s in place (s |= other).
func (s ObjectSet) UnionWith(other ObjectSet) {
	s.bits.InPlaceUnion(other.bits)
}

// IntersectionWith ANDs other into s in place (s &= other).
func (s ObjectSet) IntersectionWith(other ObjectSet) {
	s.bits.InPlaceIntersection(other.bits)
}

// Union returns a new set holding s | other, leaving both inputs untouched.
func Union(a, b ObjectSet) ObjectSet {
	out := a.Clone()
	out.UnionWith(b)
	return out
}

// Intersects reports whether a & b is non-empty, without allocating.
func Intersects(a, b ObjectSet) bool {
	return a.bits.IntersectionCardinality(b.bits) > 0
}

// Conflicts implements the scheduler's merge-rule conflict predicate for two
// {read, write} set pairs:
//
//	(aR & bW) | (aW & bR) | (aW & bW) != 0
func Conflicts(aRead, aWrite, bRead, bWrite ObjectSet) bool {
	return Intersects(aRead, bWrite) || Intersects(aWrite, bRead) || Intersects(aWrite, bWrite)
}

// IsEmpty reports whether the set has no bits set.
func (s ObjectSet) IsEmpty() bool {
	return s.bits.None()
}

// Count returns the number of set bits.
func (s ObjectSet) Count() int {
	return int(s.bits.Count())
}

// ForEach calls fn once for every set bit, in ascending order.
func (s ObjectSet) ForEach(fn func(name int)) {
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		fn(int(i))
	}
}
