// Package dispatcher implements the Puppetmaster itself: the top-level,
// single-threaded cooperative state machine that ties the Renamer, the
// Tournament Scheduler, and the pool of Puppets into one cycle-by-cycle
// pipeline (spec.md §4.5).
//
// Modeled on a coordinator struct that owns every subsystem and drives
// them from one place, and on a ticker-driven checkAllNodes loop for the
// cycle-by-cycle edge detection on a bank of workers: both observe a set
// of workers' busy/healthy state once per tick and react only to the
// transitions, not the level.
package dispatcher

import (
	"context"
	"math/bits"

	"go.uber.org/zap"

	"github.com/dreamware/puppetmaster/internal/arbiter"
	bset "github.com/dreamware/puppetmaster/internal/bitset"
	"github.com/dreamware/puppetmaster/internal/config"
	"github.com/dreamware/puppetmaster/internal/metrics"
	"github.com/dreamware/puppetmaster/internal/puppet"
	"github.com/dreamware/puppetmaster/internal/rename"
	"github.com/dreamware/puppetmaster/internal/scheduler"
)

// Dispatcher is the Puppetmaster: it owns a Renamer, a Scheduler, and a
// pool of Puppets, and advances all three by exactly one cycle per call to
// Tick (spec.md §4.5, §9 "advance all components in lock-step").
//
// It is not safe for concurrent use: Tick must be called from a single
// goroutine, matching the cooperative single-threaded scheduler model of
// spec.md §5. Submit may be called concurrently with itself and with Tick;
// it only talks to the Renamer (which is already concurrency-safe) and a
// buffered channel.
type Dispatcher struct {
	cfg      config.Config
	renamer  *rename.Renamer
	sched    *scheduler.Scheduler
	puppets  []*puppet.Puppet
	eventArb *arbiter.RoundRobin
	delArb   *arbiter.RoundRobin
	logger   *zap.Logger
	metrics  *metrics.Collector

	buffer       []rename.RenamerResponse // pool-1 wide candidate staging area
	bufferIndex  int
	pendingFlags uint64
	sentToPuppet []rename.RenamerResponse // one slot per puppet, valid iff busy
	prevBusy     []bool
	cycle        uint64

	ready chan rename.RenamerResponse
}

// New builds a Dispatcher around a fresh Renamer, Scheduler, and pool of
// Puppets sized from cfg. The metrics collector may be nil, in which case
// observations are silently dropped (see metrics.Collector's nil-receiver
// methods).
func New(cfg config.Config, logger *zap.Logger, mc *metrics.Collector) *Dispatcher {
	puppets := make([]*puppet.Puppet, cfg.NumPuppets)
	for i := range puppets {
		puppets[i] = puppet.New(cfg.TxDuration)
	}
	return &Dispatcher{
		cfg:          cfg,
		renamer:      rename.NewRenamer(cfg, logger, mc),
		sched:        scheduler.New(cfg.Pool, cfg.NumComparators, cfg.NumNames(), logger),
		puppets:      puppets,
		eventArb:     arbiter.New(cfg.NumPuppets),
		delArb:       arbiter.New(cfg.NumPuppets),
		logger:       logger,
		metrics:      mc,
		buffer:       make([]rename.RenamerResponse, cfg.Pool-1),
		sentToPuppet: make([]rename.RenamerResponse, cfg.NumPuppets),
		prevBusy:     make([]bool, cfg.NumPuppets),
		ready:        make(chan rename.RenamerResponse, cfg.MaxPending),
	}
}

// Submit renames tx and, on success, queues it for intake on a future
// cycle. It blocks on the Renamer's own in-flight admission bound
// (spec.md §4.2), and also once ready already holds MaxPending renamed
// transactions awaiting intake, until Tick takes one. A failed rename is logged and counted,
// never queued — the transaction simply never produces Started/Finished
// events (spec.md §8, scenario S6).
func (d *Dispatcher) Submit(ctx context.Context, tx rename.InputTransaction) error {
	resp, ok, err := d.renamer.Put(ctx, tx)
	if !ok {
		d.logger.Warn("transaction rejected at rename", zap.Uint64("tid", tx.TID), zap.Error(err))
		d.metrics.IncEvent("rejected")
		return err
	}
	d.ready <- resp
	return nil
}

// Tick advances the whole pipeline by exactly one cycle and returns the
// Started/Finished events observed during it (spec.md §4.5's numbered
// rules, all evaluated once per call):
//
//  1. advance in-flight latency (scheduler tournament, puppet countdowns)
//  2. intake a ready renamed transaction into the candidate buffer
//  3. launch a new scheduling request once the buffer is pool-1 full
//  4. receive a scheduling response and record its winners as pending
//  5. dispatch pending winners to idle puppets, compacting the buffer
//  6. emit Started/Finished events for every busy-flag transition, and
//     issue the corresponding Delete for every Started transaction
func (d *Dispatcher) Tick() []Event {
	d.sched.Tick()
	for _, p := range d.puppets {
		p.Tick()
	}

	d.intake()
	d.scheduleLaunch()
	d.scheduleReceive()
	d.dispatch()
	events := d.emitEvents()

	d.observe()
	d.cycle++
	return events
}

// intake moves one ready renamed transaction into the candidate buffer, if
// there is room and one is available (spec.md §4.5, rule 1).
func (d *Dispatcher) intake() {
	if d.bufferIndex >= len(d.buffer) {
		return
	}
	select {
	case resp := <-d.ready:
		d.buffer[d.bufferIndex] = resp
		d.bufferIndex++
	default:
	}
}

// scheduleLaunch submits a new tournament once the buffer holds exactly
// Pool-1 candidates and no prior winners are still awaiting dispatch
// (spec.md §4.5, rule 2). This assumes a source that eventually supplies
// enough transactions to fill the buffer; a finite batch whose length
// isn't a multiple of Pool-1 must pad its tail itself (see
// internal/harness.PadToPool) or its last few transactions never launch.
// The running set is built from prevBusy, the busy flags as of the start
// of this cycle: a puppet that finishes during this cycle's countdown
// still counts as running for this request, and one dispatched later in
// this cycle cannot influence it (the Open Question of spec.md §9,
// decided in DESIGN.md).
func (d *Dispatcher) scheduleLaunch() {
	if d.bufferIndex != len(d.buffer) || d.pendingFlags != 0 || d.sched.Busy() {
		return
	}

	running := d.runningSet()
	candidates := make([]rename.SchedulerTransaction, d.bufferIndex)
	for i := 0; i < d.bufferIndex; i++ {
		candidates[i] = d.buffer[i].SchedulerTr
	}
	req := scheduler.BuildRequest(d.cfg.Pool, d.cfg.NumNames(), running, candidates)
	if err := d.sched.Put(req); err != nil {
		d.logger.Error("scheduler rejected a request the dispatcher believed it was free to send", zap.Error(err))
	}
}

// runningSet unions the scheduler projections of the transaction on every
// puppet that was busy at the start of this cycle (prevBusy).
func (d *Dispatcher) runningSet() rename.SchedulerTransaction {
	read := bset.New(d.cfg.NumNames())
	write := bset.New(d.cfg.NumNames())
	for p, busy := range d.prevBusy {
		if !busy {
			continue
		}
		read.UnionWith(d.sentToPuppet[p].SchedulerTr.Read)
		write.UnionWith(d.sentToPuppet[p].SchedulerTr.Write)
	}
	return rename.SchedulerTransaction{Read: read, Write: write}
}

// scheduleReceive collects a finished tournament's winners into
// pendingFlags (spec.md §4.5, rule 3). Winner.Indices bit 0 is the
// synthetic running set and is discarded; bits 1..Pool-1 map to buffer
// positions 0..Pool-2.
func (d *Dispatcher) scheduleReceive() {
	resp, ok := d.sched.Get()
	if !ok {
		return
	}
	d.pendingFlags = resp.Winner.Indices >> 1
	d.metrics.ObserveSchedulerCycles(resp.Cycles)
}

// dispatch hands every pending winner to the lowest-index idle puppet,
// compacting the buffer by swapping the last live entry into the freed
// slot and migrating its pendingFlags bit along with it (spec.md §4.5,
// rule 4).
func (d *Dispatcher) dispatch() {
	for p := 0; p < len(d.puppets); p++ {
		if d.pendingFlags == 0 {
			return
		}
		if d.puppets[p].Busy() {
			continue
		}
		b := bits.TrailingZeros64(d.pendingFlags)
		if b >= d.bufferIndex {
			// Stale bit past the live buffer region; defensive only, never
			// expected given rule 2 always sizes winners to bufferIndex.
			d.pendingFlags &^= 1 << uint(b)
			continue
		}

		d.sentToPuppet[p] = d.buffer[b]
		d.pendingFlags &^= 1 << uint(b)

		last := d.bufferIndex - 1
		if b != last {
			d.buffer[b] = d.buffer[last]
			if d.pendingFlags&(1<<uint(last)) != 0 {
				d.pendingFlags &^= 1 << uint(last)
				d.pendingFlags |= 1 << uint(b)
			}
		}
		d.bufferIndex--

		d.puppets[p].Start(d.sentToPuppet[p].Renamed.TID)
	}
}

// emitEvents compares this cycle's final busy state to the snapshot taken
// at the end of the previous cycle, round-robin serializing the
// transitions it finds and the deletes they trigger (spec.md §4.5, rule 5;
// §9's three round-robin arbitration points). Comparing only the boolean
// busy level means a puppet that finishes and is immediately redispatched
// within the same cycle never shows an edge: the old tid's Finished and
// the new tid's Started are both lost. This mirrors sampling a single
// hardware busy register once per clock rather than per assignment, and
// is accepted as faithful to spec.md §4.5 rather than special-cased away.
func (d *Dispatcher) emitEvents() []Event {
	n := len(d.puppets)
	now := make([]bool, n)
	var changed uint64
	for p := 0; p < n; p++ {
		now[p] = d.puppets[p].Busy()
		if now[p] != d.prevBusy[p] {
			changed |= 1 << uint(p)
		}
	}

	var events []Event
	var toDelete uint64
	for {
		p, ok := d.eventArb.PickAndAdvance(changed)
		if !ok {
			break
		}
		changed &^= 1 << uint(p)

		switch {
		case now[p] && !d.prevBusy[p]:
			events = append(events, Event{TID: d.sentToPuppet[p].Renamed.TID, Status: Started, Cycle: d.cycle})
			d.metrics.IncEvent("started")
			toDelete |= 1 << uint(p)
		case !now[p] && d.prevBusy[p]:
			events = append(events, Event{TID: d.puppets[p].TID(), Status: Finished, Cycle: d.cycle})
			d.metrics.IncEvent("finished")
		}
	}

	for {
		p, ok := d.delArb.PickAndAdvance(toDelete)
		if !ok {
			break
		}
		toDelete &^= 1 << uint(p)
		if err := d.renamer.Delete(d.sentToPuppet[p].Renamed); err != nil {
			d.logger.Warn("delete failed for a started transaction", zap.Uint64("tid", d.sentToPuppet[p].Renamed.TID), zap.Error(err))
		}
	}

	d.prevBusy = now
	return events
}

// observe reports the cycle's occupancy snapshot to metrics.
func (d *Dispatcher) observe() {
	busy := 0
	for _, b := range d.prevBusy {
		if b {
			busy++
		}
	}
	d.metrics.ObservePuppetsBusy(busy)
}

// Cycle reports the number of cycles Tick has completed so far.
func (d *Dispatcher) Cycle() uint64 { return d.cycle }

// PendingCount reports how many transactions are currently buffered
// awaiting either a scheduling request or dispatch, for tests and
// diagnostics.
func (d *Dispatcher) PendingCount() int { return d.bufferIndex }

// BusyCount reports how many puppets are currently executing a
// transaction, for tests and diagnostics.
func (d *Dispatcher) BusyCount() int {
	n := 0
	for _, p := range d.puppets {
		if p.Busy() {
			n++
		}
	}
	return n
}
