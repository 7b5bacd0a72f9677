package rename

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	bset "github.com/dreamware/puppetmaster/internal/bitset"
	"github.com/dreamware/puppetmaster/internal/config"
	"github.com/dreamware/puppetmaster/internal/metrics"
)

// ErrTooManyObjects is returned when an InputTransaction carries more reads
// or writes than ObjsPerTx allows. Like over-delete, this is a submitter
// bug (spec.md §7) rather than a condition the core must recover from.
var ErrTooManyObjects = errors.New("rename: more than ObjsPerTx reads or writes in one transaction")

// Renamer fans rename/delete requests across NumShards Shards by address
// prefix and reassembles per-object responses into per-transaction
// RenamerResponses (spec.md §4.2).
//
// Modeled on an address/key routed to a fixed partition count behind a
// mutex-protected accessor, generalized from a byte-key store to the
// fixed-width renamed address space.
type Renamer struct {
	cfg     config.Config
	shards  []*Shard
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Collector

	logShardSlots uint
}

// NewRenamer builds a Renamer with cfg.NumShards independent Shards and a
// MaxPending-wide in-flight admission bound — the back-pressure boundary
// spec.md §4.2 requires ("The renamer admits a new request only when
// internal in-flight slots are free; the caller's put blocks otherwise").
// mc may be nil, in which case failure counts are silently dropped (see
// metrics.Collector's nil-receiver methods).
func NewRenamer(cfg config.Config, logger *zap.Logger, mc *metrics.Collector) *Renamer {
	shards := make([]*Shard, cfg.NumShards)
	for i := range shards {
		shards[i] = NewShard(cfg.ShardSlots, cfg.NumHashes, cfg.MaxRefs(), cfg.Debug)
	}
	return &Renamer{
		cfg:           cfg,
		shards:        shards,
		sem:           semaphore.NewWeighted(int64(cfg.MaxPending)),
		logger:        logger,
		metrics:       mc,
		logShardSlots: uint(bits.Len(uint(cfg.ShardSlots)) - 1),
	}
}

// route implements the slot-key derivation of spec.md §4.1: shard_index is
// the bits above log2(ShardSlots), base slot_key is the bits below it.
func (r *Renamer) route(addr uint64) (shardIdx, baseSlot int) {
	shardIdx = int((addr >> r.logShardSlots) % uint64(len(r.shards)))
	baseSlot = int(addr & uint64(r.cfg.ShardSlots-1))
	return shardIdx, baseSlot
}

type objOutcome struct {
	read     bool
	shardIdx int
	slot     int
	err      error
}

// Put is the rename path of spec.md §4.2: it blocks until an in-flight
// admission slot is free, then dispatches up to 2*ObjsPerTx concurrent
// per-object rename requests and reassembles them by tid. ok is false when
// the transaction is rejected: it carries more than ObjsPerTx reads or
// writes, ctx ends while waiting for admission, or some object's rename
// failed. In the last case the Renamer has already drained deletes for
// every object that *did* succeed before returning (the Open Question of spec.md §9 is decided in favor of
// cleanup — see DESIGN.md).
func (r *Renamer) Put(ctx context.Context, tx InputTransaction) (resp RenamerResponse, ok bool, err error) {
	reads, writes := tx.Split()
	if len(reads) > r.cfg.ObjsPerTx || len(writes) > r.cfg.ObjsPerTx {
		return RenamerResponse{}, false, fmt.Errorf("%w: tid=%d reads=%d writes=%d", ErrTooManyObjects, tx.TID, len(reads), len(writes))
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return RenamerResponse{}, false, err
	}
	defer r.sem.Release(1)

	total := len(reads) + len(writes)
	outcomes := make([]objOutcome, total)

	var wg sync.WaitGroup
	wg.Add(total)
	submit := func(i int, addr uint64, isRead bool) {
		defer wg.Done()
		shardIdx, base := r.route(addr)
		slot, err := r.shards[shardIdx].Rename(addr, base)
		outcomes[i] = objOutcome{read: isRead, shardIdx: shardIdx, slot: slot, err: err}
	}

	i := 0
	for _, a := range reads {
		go submit(i, a, true)
		i++
	}
	for _, a := range writes {
		go submit(i, a, false)
		i++
	}
	wg.Wait()

	readSet := bset.New(r.cfg.NumNames())
	writeSet := bset.New(r.cfg.NumNames())
	var succeeded []objOutcome
	var firstErr error
	var failedShard int
	for _, o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
				failedShard = o.shardIdx
			}
			continue
		}
		succeeded = append(succeeded, o)
		name := o.shardIdx*r.cfg.ShardSlots + o.slot
		if o.read {
			readSet.Set(name)
		} else {
			writeSet.Set(name)
		}
	}

	if firstErr != nil {
		r.drain(succeeded, tx.TID, firstErr)
		r.metrics.IncShardFailure(failedShard, firstErr.Error())
		return RenamerResponse{}, false, firstErr
	}

	renamed := RenamedTransaction{TID: tx.TID, ReadSet: readSet, WriteSet: writeSet}
	r.logger.Debug("renamed transaction", zap.Uint64("tid", tx.TID), zap.Int("reads", len(reads)), zap.Int("writes", len(writes)))
	return RenamerResponse{
		Renamed:     renamed,
		SchedulerTr: SchedulerTransaction{Read: readSet, Write: writeSet},
	}, true, nil
}

// drain releases every object that succeeded before the whole-transaction
// failure was known, so a failed transaction never leaves a live reference
// with nothing holding it (spec.md §9 Open Questions, decided in
// DESIGN.md).
func (r *Renamer) drain(succeeded []objOutcome, tid uint64, cause error) {
	var cleanupErr error
	for _, o := range succeeded {
		if err := r.shards[o.shardIdx].Delete(o.slot); err != nil {
			cleanupErr = multierr.Append(cleanupErr, err)
		}
	}
	r.logger.Warn("transaction rename failed, partial names drained",
		zap.Uint64("tid", tid), zap.Error(cause), zap.Int("released", len(succeeded)), zap.NamedError("cleanup", cleanupErr))
}

// Delete issues one Delete per name in readSet ∪ writeSet to the owning
// shard (spec.md §4.2, the delete path).
func (r *Renamer) Delete(renamed RenamedTransaction) error {
	var errs error
	del := func(name int) {
		shardIdx := name / r.cfg.ShardSlots
		slot := name % r.cfg.ShardSlots
		if err := r.shards[shardIdx].Delete(slot); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	renamed.ReadSet.ForEach(del)
	renamed.WriteSet.ForEach(del)
	return errs
}

// Reset clears every shard's table, issued once at startup.
func (r *Renamer) Reset() {
	for _, s := range r.shards {
		s.Reset()
	}
}

// Shard exposes one partition for tests and invariant checking (spec.md §8).
func (r *Renamer) Shard(i int) *Shard { return r.shards[i] }

// NumShards reports the shard count.
func (r *Renamer) NumShards() int { return len(r.shards) }
