// Package storage is the bbolt-backed persistent blockchain and UTXO store:
// headers, full blocks, transaction locations, the block index (height,
// parent, cumulative work, status), the active UTXO set, and per-block undo
// records, plus the atomic apply_block/reorg contract that keeps all of
// them consistent across a crash (spec §4.2).
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChainDir returns the on-disk directory for a given chain under datadir:
// datadir/chains/<network>/
func ChainDir(datadir string, network string) string {
	return filepath.Join(datadir, "chains", network)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
