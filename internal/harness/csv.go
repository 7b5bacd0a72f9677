// Package harness implements the test-input machinery spec.md §6 scopes
// out of the core: CSV ingestion with its four-way error/exit-code
// contract, plus the named synthetic scenario generators §8 describes.
// None of this is part of the Renamer/Scheduler/Dispatcher pipeline — it
// only ever produces rename.InputTransaction values for something else to
// Submit.
package harness

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/puppetmaster/internal/rename"
)

// Sentinel errors behind spec.md §6's exit codes 1-4. ExitCode maps them
// back to the numbers a CLI process actually returns.
var (
	ErrFileNotFound      = errors.New("harness: csv file not found")
	ErrHeaderMissing     = errors.New("harness: csv header missing or carries no object columns")
	ErrNonNumericAddress = errors.New("harness: address is not a non-negative integer")
	ErrAddressOutOfRange = errors.New("harness: address exceeds the configured name width")
)

// ExitCode maps a ReadCSV error to the process exit code spec.md §6
// defines: 0 success, 1 file not found, 2 header missing, 3 non-numeric
// address, 4 address out of range.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFileNotFound):
		return 1
	case errors.Is(err, ErrHeaderMissing):
		return 2
	case errors.Is(err, ErrNonNumericAddress):
		return 3
	case errors.Is(err, ErrAddressOutOfRange):
		return 4
	default:
		return 1
	}
}

type column struct {
	index int
	write bool
}

// ReadCSV parses a transaction stream per spec.md §6: a header row naming
// "Read object N"/"Written object N" columns (any other column is
// ignored), one transaction per subsequent row, empty cells meaning "no
// object here". maxAddress bounds what an address may be (config.NumNames
// - 1, the renamed address space's width).
func ReadCSV(path string, maxAddress uint64) ([]rename.InputTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil || len(header) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrHeaderMissing, path)
	}

	var cols []column
	for i, name := range header {
		trimmed := strings.TrimSpace(name)
		switch {
		case strings.HasPrefix(trimmed, "Read object"):
			cols = append(cols, column{index: i, write: false})
		case strings.HasPrefix(trimmed, "Written object"):
			cols = append(cols, column{index: i, write: true})
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrHeaderMissing, path)
	}
	// Column order in the file is arbitrary; slot assignment below must be
	// stable across re-reads, so sort by source column index.
	slices.SortFunc(cols, func(a, b column) int { return a.index - b.index })

	var txs []rename.InputTransaction
	tid := uint64(0)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		tx, err := parseRow(tid, row, cols, maxAddress)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
		tid++
	}
	return txs, nil
}

func parseRow(tid uint64, row []string, cols []column, maxAddress uint64) (rename.InputTransaction, error) {
	var tx rename.InputTransaction
	tx.TID = tid

	slot := 0
	for _, c := range cols {
		if c.index >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[c.index])
		if cell == "" {
			continue
		}
		addr, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return rename.InputTransaction{}, fmt.Errorf("%w: tid=%d value=%q", ErrNonNumericAddress, tid, cell)
		}
		if addr > maxAddress {
			return rename.InputTransaction{}, fmt.Errorf("%w: tid=%d address=%d", ErrAddressOutOfRange, tid, addr)
		}
		if slot >= len(tx.Objs) {
			return rename.InputTransaction{}, fmt.Errorf("harness: tid=%d carries more than %d objects", tid, len(tx.Objs))
		}
		tx.Objs[slot] = rename.ObjectRef{Address: addr, Write: c.write, Valid: true}
		slot++
	}
	return tx, nil
}
