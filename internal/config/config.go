// Package config holds Puppetmaster's sizing constants and the validated,
// flag/file/env-overridable harness configuration built around them.
//
// spec.md §3 fixes a reference set of widths (NUM_SHARDS, POOL, NUM_PUPPETS,
// ...) as compile-time constants; §6 additionally names them as
// "compile-time configuration" knobs an implementation may parameterize
// "but must preserve the relationships" between them. Puppetmaster keeps
// the reference values as real Go constants (Defaults) for anyone importing
// the core packages directly, and layers a Config struct on top for the
// CLI harness, which needs to vary shard sizing to reproduce scenario S6
// (hash exhaustion) without recompiling.
package config

import (
	"fmt"
	"math/bits"
)

// Defaults mirrors the reference design's values from spec.md §3.
const (
	DefaultLogShards      = 3     // NUM_SHARDS = 8
	DefaultLogShardSlots  = 7     // SHARD_SLOTS = 128 -> NUM_NAMES = 1024
	DefaultObjsPerTx      = 8     // OBJS_PER_TR
	DefaultLogPool        = 3     // POOL = 8
	DefaultNumPuppets     = 8     // NUM_PUPPETS
	DefaultNumHashes      = 8     // NUM_HASHES
	DefaultNumComparators = 2     // NUM_COMPARATORS
	DefaultTxDuration     = 2000  // TX_DURATION, in cycles
	DefaultMaxPending     = 1 << 10
)

// Config is the fully-resolved, validated sizing configuration for one
// Puppetmaster instance. All fields correspond 1:1 to the compile-time
// knobs named in spec.md §6.
type Config struct {
	// NumShards is NUM_SHARDS: number of rename-table partitions.
	NumShards int
	// ShardSlots is SHARD_SLOTS: table slots per shard.
	ShardSlots int
	// ObjsPerTx is OBJS_PER_TR: reads (and writes) per transaction.
	ObjsPerTx int
	// Pool is POOL: transactions per scheduling batch. Must be a power of two.
	Pool int
	// NumPuppets is NUM_PUPPETS: execution engines.
	NumPuppets int
	// NumHashes is NUM_HASHES: bound on linear probing attempts.
	NumHashes int
	// NumComparators is NUM_COMPARATORS: merge pairs processed per cycle.
	NumComparators int
	// TxDuration is TX_DURATION: cycles a puppet stays busy per transaction.
	TxDuration int
	// MaxPending is MAX_PENDING_TRANSACTIONS: renamer in-flight admission bound.
	MaxPending int
	// Debug enables per-event trace logging (the DEBUG gate of §6) and
	// enables debug-only assertions (over-delete, double-delete).
	Debug bool
}

// NumNames returns NUM_NAMES = NumShards * ShardSlots.
func (c Config) NumNames() int { return c.NumShards * c.ShardSlots }

// Rounds returns ROUNDS = log2(Pool).
func (c Config) Rounds() int { return bits.Len(uint(c.Pool)) - 1 }

// MaxRefs returns MAX_REFS = NumNames (reference counter saturation point).
func (c Config) MaxRefs() int { return c.NumNames() }

// Default returns the reference design's configuration from spec.md §3.
func Default() Config {
	return Config{
		NumShards:      1 << DefaultLogShards,
		ShardSlots:     1 << DefaultLogShardSlots,
		ObjsPerTx:      DefaultObjsPerTx,
		Pool:           1 << DefaultLogPool,
		NumPuppets:     DefaultNumPuppets,
		NumHashes:      DefaultNumHashes,
		NumComparators: DefaultNumComparators,
		TxDuration:     DefaultTxDuration,
		MaxPending:     DefaultMaxPending,
	}
}

// Validate enforces the width relationships spec.md §3 requires every
// implementation to preserve, even when the individual widths are
// parameterized. There is no dynamic resizing (Non-goals, §1): these checks
// run once at load time, not per-operation.
func (c Config) Validate() error {
	if c.NumShards <= 0 || !isPowerOfTwo(c.NumShards) {
		return fmt.Errorf("config: NumShards must be a positive power of two, got %d", c.NumShards)
	}
	if c.ShardSlots <= 0 || !isPowerOfTwo(c.ShardSlots) {
		return fmt.Errorf("config: ShardSlots must be a positive power of two, got %d", c.ShardSlots)
	}
	if c.Pool <= 0 || !isPowerOfTwo(c.Pool) {
		return fmt.Errorf("config: Pool must be a positive power of two, got %d", c.Pool)
	}
	if c.Pool < 2 {
		return fmt.Errorf("config: Pool must be at least 2 (position 0 is the running set), got %d", c.Pool)
	}
	if c.ObjsPerTx <= 0 {
		return fmt.Errorf("config: ObjsPerTx must be positive, got %d", c.ObjsPerTx)
	}
	if c.NumPuppets <= 0 {
		return fmt.Errorf("config: NumPuppets must be positive, got %d", c.NumPuppets)
	}
	if c.NumHashes <= 0 || c.NumHashes > c.ShardSlots {
		return fmt.Errorf("config: NumHashes must be in (0, ShardSlots], got %d (ShardSlots=%d)", c.NumHashes, c.ShardSlots)
	}
	if c.NumComparators <= 0 {
		return fmt.Errorf("config: NumComparators must be positive, got %d", c.NumComparators)
	}
	if c.TxDuration <= 0 {
		return fmt.Errorf("config: TxDuration must be positive, got %d", c.TxDuration)
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("config: MaxPending must be positive, got %d", c.MaxPending)
	}
	if c.NumNames() > 1<<30 {
		return fmt.Errorf("config: NumNames=%d is implausibly large", c.NumNames())
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
