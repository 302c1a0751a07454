package consensus

// BlockHeaderBytes is the fixed, 148-byte on-wire header layout (spec §3):
// version(4) | prev_hash(64) | merkle_root(64) | timestamp(8) | bits(4) | nonce(4).
const BlockHeaderBytes = 4 + 64 + 64 + 8 + 4 + 4

// Consensus-critical limits (spec §3, §4.4).
const (
	MaxTxInputs    = 100_000
	MaxTxOutputs   = 100_000
	MaxScriptBytes = 10_000
)

// BlockHeader is the 148-byte fixed-layout block header (spec §3).
type BlockHeader struct {
	Version    uint32
	PrevHash   [64]byte
	MerkleRoot [64]byte
	Timestamp  uint64
	Bits       uint32
	Nonce      uint32
}

// Block is a header plus its ordered transaction list; the first
// transaction is always the coinbase (spec §3).
type Block struct {
	Header       BlockHeader
	Transactions []Tx
}

// OutPoint identifies a previously created output by (txid, vout).
type OutPoint struct {
	Txid [64]byte
	Vout uint32
}

// TxInput references a previous output, carries the unlocking script and a
// detached signature sized for the PQ scheme, plus a sequence number (spec §3).
type TxInput struct {
	PrevOut        OutPoint
	UnlockingScript []byte
	Signature       []byte
	Sequence        uint32
}

// TxOutput carries an atomic-unit amount and a locking script (spec §3).
type TxOutput struct {
	Amount        uint64
	LockingScript []byte
}

// Tx is a transaction: version, inputs, outputs, and a lock time (spec §3).
type Tx struct {
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32
}

// IsCoinbase reports whether tx has the coinbase shape: no inputs that
// reference a real previous output (a single input whose PrevOut is the
// all-zero/maxvout sentinel).
func (tx *Tx) IsCoinbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	in := tx.Inputs[0]
	return in.PrevOut.Txid == [64]byte{} && in.PrevOut.Vout == CoinbasePrevoutVout
}

// CoinbasePrevoutVout is the sentinel vout value used in a coinbase input's
// PrevOut, matching the Bitcoin-family convention (all-ones u32).
const CoinbasePrevoutVout = ^uint32(0)
