// Package main implements the puppetmaster CLI: a batch harness that feeds
// a stream of transactions (from a CSV file or a named synthetic
// scenario) through the Renamer/Scheduler/Dispatcher pipeline and prints
// the resulting Started/Finished event trace.
//
// Architecture:
//
//	┌──────────────────────────────────────────┐
//	│              cmd/puppetmaster             │
//	├──────────────────────────────────────────┤
//	│  input:    --csv  or  --scenario/-file    │
//	│  pipeline: internal/dispatcher.Dispatcher │
//	│    ├─ internal/rename.Renamer             │
//	│    ├─ internal/scheduler.Scheduler        │
//	│    └─ []*internal/puppet.Puppet           │
//	│  output:   event table (tablewriter)      │
//	└──────────────────────────────────────────┘
//
// Configuration is layered flag > env (PUPPETMASTER_*) > optional config
// file, via internal/config. See that package for the full flag list.
//
// Exit codes:
//   - 0: every submitted transaction finished, the --max-cycles budget ran
//     out, or the run was interrupted cleanly via SIGINT/SIGTERM
//   - 1: fatal startup error
//   - 1-4: CSV parse failure, per spec.md §6 (see internal/harness.ExitCode)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dreamware/puppetmaster/internal/config"
	"github.com/dreamware/puppetmaster/internal/dispatcher"
	"github.com/dreamware/puppetmaster/internal/harness"
	"github.com/dreamware/puppetmaster/internal/metrics"
	"github.com/dreamware/puppetmaster/internal/obslog"
	"github.com/dreamware/puppetmaster/internal/rename"
)

func main() {
	os.Exit(run())
}

// run wires the CLI together and returns the process exit code, rather
// than calling os.Exit directly, so deferred cleanup always runs.
func run() int {
	fs := pflag.NewFlagSet("puppetmaster", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	csvPath := fs.String("csv", "", "path to a CSV transaction file (spec.md §6)")
	scenarioName := fs.String("scenario", "", "name of a built-in scenario (s1-s6)")
	scenarioFile := fs.String("scenario-file", "", "path to a YAML scenario file overriding --scenario")
	configFile := fs.String("config", "", "optional config file (any viper-supported format)")
	maxCycles := fs.Uint64("max-cycles", 1_000_000, "cycle budget before the run is abandoned")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 1
	}

	cfg, err := config.Load(fs, *configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "puppetmaster: config:", err)
		return 1
	}

	logger := obslog.New(cfg.Debug)
	defer logger.Sync() //nolint:errcheck

	txs, err := loadTransactions(&cfg, *csvPath, *scenarioName, *scenarioFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "puppetmaster:", err)
		return harness.ExitCode(err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "puppetmaster: config after scenario overrides:", err)
		return 1
	}
	if len(txs) == 0 {
		fmt.Fprintln(os.Stderr, "puppetmaster: no transactions to run (pass --csv or --scenario)")
		return 1
	}
	realCount := len(txs)
	realTIDs := make(map[uint64]bool, realCount)
	for _, tx := range txs {
		realTIDs[tx.TID] = true
	}
	txs = harness.PadToPool(txs, cfg.Pool)

	mc := metrics.New(prometheus.DefaultRegisterer)
	d := dispatcher.New(cfg, logger, mc)
	rec := dispatcher.NewRecorder()

	ctx := context.Background()
	for _, tx := range txs {
		if err := d.Submit(ctx, tx); err != nil {
			logger.Warn("transaction rejected", zap.Uint64("tid", tx.TID), zap.Error(err))
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	finished := make(map[uint64]bool, realCount)
	for cycle := uint64(0); cycle < *maxCycles && len(finished) < realCount; cycle++ {
		select {
		case <-stop:
			logger.Info("interrupted, printing partial trace", zap.Uint64("cycle", d.Cycle()))
			printEvents(rec)
			return 0
		default:
		}

		events := d.Tick()
		rec.Record(events)
		for _, e := range events {
			if e.Status == dispatcher.Finished && realTIDs[e.TID] {
				finished[e.TID] = true
			}
		}
	}

	printEvents(rec)
	return 0
}

// loadTransactions resolves --csv / --scenario / --scenario-file into a
// transaction stream, applying any ShardSlots/NumHashes overrides a
// scenario file carries (S6's hash-exhaustion setup needs them) before the
// pipeline is built by the caller.
func loadTransactions(cfg *config.Config, csvPath, scenarioName, scenarioFile string) ([]rename.InputTransaction, error) {
	if csvPath != "" {
		return harness.ReadCSV(csvPath, uint64(cfg.NumNames()-1))
	}

	spec := harness.ScenarioSpec{Name: scenarioName}
	if scenarioFile != "" {
		loaded, err := harness.LoadScenarioFile(scenarioFile)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}
	if spec.Name == "" {
		return nil, nil
	}
	if spec.ShardSlots != 0 {
		cfg.ShardSlots = spec.ShardSlots
	}
	if spec.NumHashes != 0 {
		cfg.NumHashes = spec.NumHashes
	}
	return spec.Build()
}

// printEvents renders the recorded Started/Finished trace as a table.
func printEvents(rec *dispatcher.Recorder) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"cycle", "tid", "status"})
	for _, e := range rec.Events() {
		table.Append([]string{fmt.Sprint(e.Cycle), fmt.Sprint(e.TID), e.Status.String()})
	}
	table.Render()
}
