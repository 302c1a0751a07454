package consensus

import (
	"github.com/btpc-network/btpc/wire"
)

// EncodeHeader serializes a BlockHeader to its canonical 148-byte form
// (spec §3, §4.1).
func EncodeHeader(h BlockHeader) []byte {
	w := wire.NewWriter(BlockHeaderBytes)
	w.WriteU32(h.Version)
	w.WriteFixed(h.PrevHash[:])
	w.WriteFixed(h.MerkleRoot[:])
	w.WriteU64(h.Timestamp)
	w.WriteU32(h.Bits)
	w.WriteU32(h.Nonce)
	return w.Bytes()
}

// DecodeHeader parses a 148-byte header. Any length mismatch or truncation
// is reported as ErrParse (spec §4.1 MalformedInput).
func DecodeHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) != BlockHeaderBytes {
		return h, newErr(ErrParse, "header: wrong length")
	}
	c := wire.NewCursor(b)
	var err error
	if h.Version, err = c.ReadU32(); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if err := c.ReadFixed(h.PrevHash[:]); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if err := c.ReadFixed(h.MerkleRoot[:]); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if h.Timestamp, err = c.ReadU64(); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if h.Bits, err = c.ReadU32(); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if h.Nonce, err = c.ReadU32(); err != nil {
		return h, newErr(ErrParse, err.Error())
	}
	if !c.Done() {
		return h, newErr(ErrParse, "header: trailing bytes")
	}
	return h, nil
}

// EncodeTx serializes a transaction to its canonical binary form.
func EncodeTx(tx Tx) []byte {
	w := wire.NewWriter(256)
	w.WriteU32(tx.Version)
	w.WriteCompactSize(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		w.WriteFixed(in.PrevOut.Txid[:])
		w.WriteU32(in.PrevOut.Vout)
		w.WriteVarBytes(in.UnlockingScript)
		w.WriteVarBytes(in.Signature)
		w.WriteU32(in.Sequence)
	}
	w.WriteCompactSize(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		w.WriteU64(out.Amount)
		w.WriteVarBytes(out.LockingScript)
	}
	w.WriteU32(tx.LockTime)
	return w.Bytes()
}

// DecodeTx parses a canonical transaction encoding, returning the number of
// bytes consumed (callers parsing a block use this to locate the next
// transaction).
func DecodeTx(b []byte) (Tx, int, error) {
	var tx Tx
	c := wire.NewCursor(b)

	version, err := c.ReadU32()
	if err != nil {
		return tx, 0, newErr(ErrParse, err.Error())
	}
	tx.Version = version

	inCount, err := c.ReadCompactLen(MaxTxInputs)
	if err != nil {
		return tx, 0, newErr(ErrParse, "input_count: "+err.Error())
	}
	tx.Inputs = make([]TxInput, 0, inCount)
	for i := 0; i < inCount; i++ {
		var in TxInput
		if err := c.ReadFixed(in.PrevOut.Txid[:]); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		if in.PrevOut.Vout, err = c.ReadU32(); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		scriptLen, err := c.ReadCompactLen(MaxScriptBytes)
		if err != nil {
			return tx, 0, newErr(ErrParse, "unlocking_script: "+err.Error())
		}
		if in.UnlockingScript, err = c.ReadBytes(scriptLen); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		sigLen, err := c.ReadCompactLen(MaxScriptBytes)
		if err != nil {
			return tx, 0, newErr(ErrParse, "signature: "+err.Error())
		}
		if in.Signature, err = c.ReadBytes(sigLen); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		if in.Sequence, err = c.ReadU32(); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		tx.Inputs = append(tx.Inputs, in)
	}
	if len(tx.Inputs) == 0 {
		return tx, 0, newErr(ErrParse, "tx: at least one input required")
	}

	outCount, err := c.ReadCompactLen(MaxTxOutputs)
	if err != nil {
		return tx, 0, newErr(ErrParse, "output_count: "+err.Error())
	}
	tx.Outputs = make([]TxOutput, 0, outCount)
	for i := 0; i < outCount; i++ {
		var out TxOutput
		if out.Amount, err = c.ReadU64(); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		scriptLen, err := c.ReadCompactLen(MaxScriptBytes)
		if err != nil {
			return tx, 0, newErr(ErrParse, "locking_script: "+err.Error())
		}
		if out.LockingScript, err = c.ReadBytes(scriptLen); err != nil {
			return tx, 0, newErr(ErrParse, err.Error())
		}
		tx.Outputs = append(tx.Outputs, out)
	}
	if len(tx.Outputs) == 0 {
		return tx, 0, newErr(ErrParse, "tx: at least one output required")
	}

	if tx.LockTime, err = c.ReadU32(); err != nil {
		return tx, 0, newErr(ErrParse, err.Error())
	}
	return tx, c.Offset(), nil
}

// EncodeBlock serializes a full block: header, CompactSize tx count, then
// each transaction's canonical encoding concatenated.
func EncodeBlock(b Block) []byte {
	w := wire.NewWriter(BlockHeaderBytes + 1024)
	w.WriteFixed(EncodeHeader(b.Header))
	w.WriteCompactSize(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		w.WriteFixed(EncodeTx(tx))
	}
	return w.Bytes()
}

// DecodeBlock parses a full block.
func DecodeBlock(raw []byte) (Block, error) {
	var blk Block
	if len(raw) < BlockHeaderBytes {
		return blk, newErr(ErrParse, "block: shorter than header")
	}
	header, err := DecodeHeader(raw[:BlockHeaderBytes])
	if err != nil {
		return blk, err
	}
	blk.Header = header

	rest := raw[BlockHeaderBytes:]
	c := wire.NewCursor(rest)
	txCount, err := c.ReadCompactLen(1_000_000)
	if err != nil {
		return blk, newErr(ErrParse, "tx_count: "+err.Error())
	}
	offset := BlockHeaderBytes + c.Offset()
	blk.Transactions = make([]Tx, 0, txCount)
	for i := 0; i < txCount; i++ {
		tx, consumed, err := DecodeTx(raw[offset:])
		if err != nil {
			return blk, err
		}
		blk.Transactions = append(blk.Transactions, tx)
		offset += consumed
	}
	if offset != len(raw) {
		return blk, newErr(ErrParse, "block: trailing bytes")
	}
	return blk, nil
}
