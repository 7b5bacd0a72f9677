// Package arbiter implements the generic round-robin arbiter spec.md §9
// calls for: "Round-robin arbiters appear in three places (per-shard
// request routing, start/finish event serialization, delete-request
// serialization). A single generic round-robin structure with a rotating
// priority pointer suffices."
//
// The shape mirrors the rotate-on-each-use pattern of a cycling server
// list (seen in the pack's hashicorp-nomad server-manager tests,
// Servers.cycle()), reimplemented generically over a fixed candidate count
// rather than over a concrete slice of servers.
package arbiter

// RoundRobin picks a winner among n candidates (indices [0, n)) each round,
// rotating priority so that no candidate is starved by always-present
// higher-priority neighbors. It is not safe for concurrent use without
// external synchronization — every core component that embeds one already
// owns a mutex or is single-threaded by construction (§5).
type RoundRobin struct {
	n   int
	ptr int
}

// New returns a round-robin arbiter over n candidates, starting priority at
// candidate 0.
func New(n int) *RoundRobin {
	if n <= 0 {
		n = 1
	}
	return &RoundRobin{n: n}
}

// Pick returns the highest-priority candidate among those whose bit is set
// in ready (a bitmask over [0, n)), or (-1, false) if ready is empty. It
// does not itself rotate the pointer; call Advance once the picked
// candidate has been serviced.
func (r *RoundRobin) Pick(ready uint64) (int, bool) {
	for i := 0; i < r.n; i++ {
		idx := (r.ptr + i) % r.n
		if ready&(1<<uint(idx)) != 0 {
			return idx, true
		}
	}
	return -1, false
}

// Advance rotates the priority pointer to just past serviced, so serviced
// becomes the lowest-priority candidate on the next Pick.
func (r *RoundRobin) Advance(serviced int) {
	r.ptr = (serviced + 1) % r.n
}

// PickAndAdvance is the common case: pick the next ready candidate and
// immediately rotate past it.
func (r *RoundRobin) PickAndAdvance(ready uint64) (int, bool) {
	idx, ok := r.Pick(ready)
	if ok {
		r.Advance(idx)
	}
	return idx, ok
}
