package storage

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/crypto"
	"github.com/btpc-network/btpc/wire"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketHeaders      = []byte("headers_by_hash")
	bucketBlocks       = []byte("blocks_by_hash")
	bucketIndex        = []byte("block_index_by_hash")
	bucketUtxo         = []byte("utxo_by_outpoint")
	bucketUtxoByScript = []byte("utxo_by_script_hash")
	bucketUndo         = []byte("undo_by_block_hash")
	bucketTransactions = []byte("tx_location_by_txid")
)

// BlockStatus classifies a block in the index: whether it has been
// validated, applied as part of the active chain, or rejected.
type BlockStatus byte

const (
	BlockStatusUnknown  BlockStatus = 0
	BlockStatusValid    BlockStatus = 1
	BlockStatusInvalid  BlockStatus = 2
	BlockStatusOrphaned BlockStatus = 3
)

// BlockIndexEntry is the per-block chain-graph metadata: its height, its
// parent, the cumulative proof-of-work behind it, and its validation
// status. The most-work entry with BlockStatusValid is the active tip.
type BlockIndexEntry struct {
	Height         uint64
	PrevHash       [64]byte
	CumulativeWork *big.Int
	Status         BlockStatus
}

// DB is the persistent blockchain and UTXO store for a single network
// (spec §4.2). All mutations needed to apply or disconnect one block are
// grouped into a single bbolt write transaction, so a crash mid-write
// leaves the store at either the pre- or post-block state, never a mix
// (spec §3 Invariants).
type DB struct {
	chainDir string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens (creating if necessary) the chain database under
// datadir/chains/<network>. If no manifest exists yet the chain is
// uninitialized and the caller must call InitGenesis.
func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("storage: datadir required")
	}
	if network == "" {
		return nil, fmt.Errorf("storage: network required")
	}

	chainDir := ChainDir(datadir, network)
	if err := ensureDir(chainDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(chainDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(chainDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open bbolt: %w", err)
	}

	d := &DB{chainDir: chainDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHeaders, bucketBlocks, bucketIndex, bucketUtxo, bucketUtxoByScript, bucketUndo, bucketTransactions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(chainDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("storage: read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("storage: manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) ChainDir() string { return d.chainDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

// TipHeader decodes and returns the active tip's block header, for callers
// (the miner's template assembly) that need its hash, bits, and timestamp
// without re-deriving them from the manifest and a raw header blob
// themselves.
func (d *DB) TipHeader() (consensus.BlockHeader, bool, error) {
	if d.manifest == nil {
		return consensus.BlockHeader{}, false, nil
	}
	tipHash, err := parseHex64(d.manifest.TipHashHex)
	if err != nil {
		return consensus.BlockHeader{}, false, err
	}
	raw, ok, err := d.GetHeader(tipHash)
	if err != nil || !ok {
		return consensus.BlockHeader{}, ok, err
	}
	h, err := consensus.DecodeHeader(raw)
	if err != nil {
		return consensus.BlockHeader{}, false, err
	}
	return h, true, nil
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("storage: db is nil")
	}
	if err := writeManifestAtomic(d.chainDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

func (d *DB) PutHeader(hash [64]byte, headerBytes []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeaders).Put(hash[:], headerBytes)
	})
}

func (d *DB) GetHeader(hash [64]byte) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(hash[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

func (d *DB) PutBlockBytes(hash [64]byte, blockBytes []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocks).Put(hash[:], blockBytes)
	})
}

func (d *DB) GetBlockBytes(hash [64]byte) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocks).Get(hash[:])
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

func (d *DB) PutIndex(hash [64]byte, e BlockIndexEntry) error {
	b, err := encodeIndexEntry(e)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Put(hash[:], b)
	})
}

func (d *DB) GetIndex(hash [64]byte) (BlockIndexEntry, bool, error) {
	var out BlockIndexEntry
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get(hash[:])
		if v == nil {
			return nil
		}
		e, err := decodeIndexEntry(v)
		if err != nil {
			return err
		}
		out = e
		found = true
		return nil
	})
	return out, found, err
}

func (d *DB) GetUTXO(op consensus.OutPoint) (consensus.UTXOEntry, bool, error) {
	var out consensus.UTXOEntry
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUtxo).Get(encodeOutpointKey(op))
		if v == nil {
			return nil
		}
		e, err := decodeUTXOEntry(v)
		if err != nil {
			return err
		}
		out = e
		found = true
		return nil
	})
	return out, found, err
}

func (d *DB) PutTxLocation(txid [64]byte, loc TxLocation) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Put(txid[:], encodeTxLocation(loc))
	})
}

func (d *DB) GetTxLocation(txid [64]byte) (TxLocation, bool, error) {
	var out TxLocation
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTransactions).Get(txid[:])
		if v == nil {
			return nil
		}
		loc, err := decodeTxLocation(v)
		if err != nil {
			return err
		}
		out = loc
		found = true
		return nil
	})
	return out, found, err
}

func (d *DB) PutUndo(blockHash [64]byte, u UndoRecord) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUndo).Put(blockHash[:], encodeUndoRecord(u))
	})
}

func (d *DB) GetUndo(blockHash [64]byte) (UndoRecord, bool, error) {
	var out UndoRecord
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(blockHash[:])
		if v == nil {
			return nil
		}
		u, err := decodeUndoRecord(v)
		if err != nil {
			return err
		}
		out = u
		found = true
		return nil
	})
	return out, found, err
}

// UTXOsByLockingScript returns every confirmed UTXO whose locking script
// equals lockingScript exactly, keyed by outpoint. It is the lookup the
// wallet-facing RPC surface uses for balances and spend-candidate
// selection, since the primary utxo_by_outpoint bucket only supports
// point lookups by a known outpoint.
func (d *DB) UTXOsByLockingScript(lockingScript []byte) (map[consensus.OutPoint]consensus.UTXOEntry, error) {
	out := make(map[consensus.OutPoint]consensus.UTXOEntry)
	prefix := scriptIndexPrefix(lockingScript)
	err := d.db.View(func(tx *bolt.Tx) error {
		bu := tx.Bucket(bucketUtxo)
		c := tx.Bucket(bucketUtxoByScript).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			opKey := k[len(prefix):]
			op, err := decodeOutpointKey(opKey)
			if err != nil {
				return err
			}
			raw := bu.Get(opKey)
			if raw == nil {
				continue
			}
			entry, err := decodeUTXOEntry(raw)
			if err != nil {
				return err
			}
			out[op] = entry
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// UTXOView returns a consensus.UTXOView backed directly by the persisted
// UTXO set, for callers (validation, mempool, wallet) that need a
// read-only view of confirmed chain state.
func (d *DB) UTXOView() consensus.UTXOView {
	return dbUTXOView{d: d}
}

type dbUTXOView struct{ d *DB }

func (v dbUTXOView) Get(op consensus.OutPoint) (consensus.UTXOEntry, bool) {
	e, ok, err := v.d.GetUTXO(op)
	if err != nil {
		return consensus.UTXOEntry{}, false
	}
	return e, ok
}

func encodeIndexEntry(e BlockIndexEntry) ([]byte, error) {
	if e.CumulativeWork == nil || e.CumulativeWork.Sign() < 0 {
		return nil, fmt.Errorf("storage: index: cumulative_work required")
	}
	work := e.CumulativeWork.Bytes()
	w := wire.NewWriter(8 + 64 + 1 + 2 + len(work))
	w.WriteU64(e.Height)
	w.WriteFixed(e.PrevHash[:])
	w.WriteU8(byte(e.Status))
	w.WriteVarBytes(work)
	return w.Bytes(), nil
}

func decodeIndexEntry(b []byte) (BlockIndexEntry, error) {
	c := wire.NewCursor(b)
	height, err := c.ReadU64()
	if err != nil {
		return BlockIndexEntry{}, err
	}
	var prev [64]byte
	if err := c.ReadFixed(prev[:]); err != nil {
		return BlockIndexEntry{}, err
	}
	statusByte, err := c.ReadU8()
	if err != nil {
		return BlockIndexEntry{}, err
	}
	workLen, err := c.ReadCompactLen(1 << 20)
	if err != nil {
		return BlockIndexEntry{}, err
	}
	workBytes, err := c.ReadBytes(workLen)
	if err != nil {
		return BlockIndexEntry{}, err
	}
	if !c.Done() {
		return BlockIndexEntry{}, fmt.Errorf("storage: index entry has trailing bytes")
	}
	return BlockIndexEntry{
		Height:         height,
		PrevHash:       prev,
		CumulativeWork: new(big.Int).SetBytes(workBytes),
		Status:         BlockStatus(statusByte),
	}, nil
}

