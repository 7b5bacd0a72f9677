package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RegisterFlags attaches the harness-overridable knobs of Config to fs,
// following the same flag-then-env-then-file layering
// MetalBlockchain-coreth wires spf13/pflag and spf13/viper for node
// configuration. Production sizing (the hot-path widths) stays at the
// compile-time Default(); these flags exist for the CLI harness, most
// visibly to reproduce the SHARD_SLOTS=NUM_HASHES=8 setup of scenario S6.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("num-shards", d.NumShards, "NUM_SHARDS: rename-table partitions (power of two)")
	fs.Int("shard-slots", d.ShardSlots, "SHARD_SLOTS: table slots per shard (power of two)")
	fs.Int("objs-per-tx", d.ObjsPerTx, "OBJS_PER_TR: reads (and writes) per transaction")
	fs.Int("pool", d.Pool, "POOL: transactions per scheduling batch (power of two)")
	fs.Int("num-puppets", d.NumPuppets, "NUM_PUPPETS: execution engines")
	fs.Int("num-hashes", d.NumHashes, "NUM_HASHES: bound on linear probing")
	fs.Int("num-comparators", d.NumComparators, "NUM_COMPARATORS: merge pairs per cycle")
	fs.Int("tx-duration", d.TxDuration, "TX_DURATION: cycles a puppet stays busy")
	fs.Int("max-pending", d.MaxPending, "MAX_PENDING_TRANSACTIONS: renamer admission bound")
	fs.Bool("debug", d.Debug, "enable per-event trace logging and debug assertions")
}

// Load resolves a Config from the parsed flag set, an optional config file
// (via viper, if configFile is non-empty), and the PUPPETMASTER_* env
// prefix, then validates it.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("puppetmaster")
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	c := Config{
		NumShards:      v.GetInt("num-shards"),
		ShardSlots:     v.GetInt("shard-slots"),
		ObjsPerTx:      v.GetInt("objs-per-tx"),
		Pool:           v.GetInt("pool"),
		NumPuppets:     v.GetInt("num-puppets"),
		NumHashes:      v.GetInt("num-hashes"),
		NumComparators: v.GetInt("num-comparators"),
		TxDuration:     v.GetInt("tx-duration"),
		MaxPending:     v.GetInt("max-pending"),
		Debug:          v.GetBool("debug"),
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
