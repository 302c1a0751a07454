package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/storage"
)

// blockHashAtHeight walks back from the active tip to the block at
// targetHeight. The block index is keyed by hash, not height (spec.md
// names no height index), so lookup by height is a backward walk rather
// than a direct read; acceptable since it is only ever used to serve one
// get_block(height) call at a time, not on any hot validation path.
func blockHashAtHeight(db *storage.DB, targetHeight uint64) ([64]byte, bool, error) {
	tip, ok, err := db.TipHeader()
	if err != nil || !ok {
		return [64]byte{}, false, err
	}
	cur := consensus.BlockHash(tip)
	curIdx, ok, err := db.GetIndex(cur)
	if err != nil || !ok {
		return [64]byte{}, false, err
	}
	if curIdx.Height < targetHeight {
		return [64]byte{}, false, nil
	}
	for curIdx.Height > targetHeight {
		cur = curIdx.PrevHash
		curIdx, ok, err = db.GetIndex(cur)
		if err != nil {
			return [64]byte{}, false, err
		}
		if !ok {
			return [64]byte{}, false, nil
		}
	}
	return cur, true, nil
}

type getBlockParams struct {
	Hash   string  `json:"hash"`
	Height *uint64 `json:"height"`
}

type blockView struct {
	Hash         string   `json:"hash"`
	Height       uint64   `json:"height"`
	PrevHash     string   `json:"prev_hash"`
	MerkleRoot   string   `json:"merkle_root"`
	Timestamp    uint64   `json:"timestamp"`
	Bits         uint32   `json:"bits"`
	Nonce        uint32   `json:"nonce"`
	Transactions []string `json:"transactions"`
}

func init() {
	registerHandler("get_block", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p getBlockParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}

		var hash [64]byte
		if p.Hash != "" {
			b, err := hex.DecodeString(p.Hash)
			if err != nil || len(b) != 64 {
				return nil, fmt.Errorf("rpcserver: malformed block hash")
			}
			copy(hash[:], b)
		} else if p.Height != nil {
			h, ok, err := blockHashAtHeight(s.db, *p.Height)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("rpcserver: no block at that height")
			}
			hash = h
		} else {
			return nil, fmt.Errorf("rpcserver: get_block requires hash or height")
		}

		blockBytes, ok, err := s.db.GetBlockBytes(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("rpcserver: unknown block")
		}
		blk, err := consensus.DecodeBlock(blockBytes)
		if err != nil {
			return nil, err
		}
		idx, ok, err := s.db.GetIndex(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("rpcserver: block index missing")
		}

		txids := make([]string, len(blk.Transactions))
		for i, tx := range blk.Transactions {
			id := consensus.TxID(tx)
			txids[i] = hex.EncodeToString(id[:])
		}

		return blockView{
			Hash:         hex.EncodeToString(hash[:]),
			Height:       idx.Height,
			PrevHash:     hex.EncodeToString(blk.Header.PrevHash[:]),
			MerkleRoot:   hex.EncodeToString(blk.Header.MerkleRoot[:]),
			Timestamp:    blk.Header.Timestamp,
			Bits:         blk.Header.Bits,
			Nonce:        blk.Header.Nonce,
			Transactions: txids,
		}, nil
	})
}

func init() {
	registerHandler("get_block_count", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		tip, ok, err := s.db.TipHeader()
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]any{"height": uint64(0)}, nil
		}
		idx, ok, err := s.db.GetIndex(consensus.BlockHash(tip))
		if err != nil || !ok {
			return nil, err
		}
		return map[string]any{"height": idx.Height}, nil
	})
}

func init() {
	registerHandler("get_best_block_hash", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		m := s.db.Manifest()
		if m == nil {
			return nil, fmt.Errorf("rpcserver: chain not initialized")
		}
		return map[string]any{"hash": m.TipHashHex}, nil
	})
}

type getRawTransactionParams struct {
	Txid string `json:"txid"`
}

func init() {
	registerHandler("get_raw_transaction", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p getRawTransactionParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}
		txidBytes, err := hex.DecodeString(p.Txid)
		if err != nil || len(txidBytes) != 64 {
			return nil, fmt.Errorf("rpcserver: malformed txid")
		}
		var txid [64]byte
		copy(txid[:], txidBytes)

		if entry, ok := s.pool.Get(txid); ok {
			return map[string]any{
				"hex":       hex.EncodeToString(consensus.EncodeTx(entry.Tx)),
				"confirmed": false,
			}, nil
		}

		loc, ok, err := s.db.GetTxLocation(txid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("rpcserver: unknown transaction")
		}
		blockBytes, ok, err := s.db.GetBlockBytes(loc.BlockHash)
		if err != nil || !ok {
			return nil, err
		}
		blk, err := consensus.DecodeBlock(blockBytes)
		if err != nil {
			return nil, err
		}
		if int(loc.Index) >= len(blk.Transactions) {
			return nil, fmt.Errorf("rpcserver: tx location out of range")
		}
		return map[string]any{
			"hex":        hex.EncodeToString(consensus.EncodeTx(blk.Transactions[loc.Index])),
			"confirmed":  true,
			"block_hash": hex.EncodeToString(loc.BlockHash[:]),
		}, nil
	})
}

type sendRawTransactionParams struct {
	Hex string `json:"hex"`
}

func init() {
	registerHandler("send_raw_transaction", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p sendRawTransactionParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}
		b, err := hex.DecodeString(p.Hex)
		if err != nil {
			return nil, fmt.Errorf("rpcserver: malformed transaction hex")
		}
		tx, _, err := consensus.DecodeTx(b)
		if err != nil {
			return nil, err
		}
		entry, _, err := s.pool.Accept(tx, nowUnix())
		if err != nil {
			return nil, err
		}
		return map[string]any{"txid": hex.EncodeToString(entry.Txid[:])}, nil
	})
}

type getUTXOParams struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func init() {
	registerHandler("get_utxo", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p getUTXOParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}
		txidBytes, err := hex.DecodeString(p.Txid)
		if err != nil || len(txidBytes) != 64 {
			return nil, fmt.Errorf("rpcserver: malformed txid")
		}
		var txid [64]byte
		copy(txid[:], txidBytes)

		entry, ok, err := s.db.GetUTXO(consensus.OutPoint{Txid: txid, Vout: p.Vout})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return map[string]any{
			"amount":         entry.Amount,
			"height_created": entry.HeightCreated,
			"is_coinbase":    entry.IsCoinbase,
		}, nil
	})
}

// difficultyFromBits expresses bits as a multiple of the network's
// genesis difficulty, the conventional "difficulty 1" reference target
// (spec §4.8 get_blockchain_info "difficulty" field).
func difficultyFromBits(genesisBits, bits uint32) float64 {
	genesisTargetBytes := consensus.ExpandBits(genesisBits)
	targetBytes := consensus.ExpandBits(bits)
	genesisTarget := new(big.Int).SetBytes(genesisTargetBytes[:])
	target := new(big.Int).SetBytes(targetBytes[:])
	if target.Sign() == 0 {
		return 0
	}
	ratio := new(big.Rat).SetFrac(genesisTarget, target)
	f, _ := ratio.Float64()
	return f
}

func init() {
	registerHandler("get_blockchain_info", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		tip, ok, err := s.db.TipHeader()
		if err != nil {
			return nil, err
		}
		var height uint64
		var bestHash string
		var difficulty float64
		if ok {
			idx, found, err := s.db.GetIndex(consensus.BlockHash(tip))
			if err != nil {
				return nil, err
			}
			if found {
				height = idx.Height
			}
			h := consensus.BlockHash(tip)
			bestHash = hex.EncodeToString(h[:])
			difficulty = difficultyFromBits(s.params.GenesisBits, tip.Bits)
		}
		return map[string]any{
			"chain":           s.params.Network.String(),
			"blocks":          height,
			"headers":         height,
			"difficulty":      difficulty,
			"best_block_hash": bestHash,
			// No p2p layer in this build (a dropped teacher subsystem per
			// DESIGN.md); this node only ever observes itself.
			"connections":    0,
			"sync_progress": 1.0,
		}, nil
	})
}
