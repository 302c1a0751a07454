package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
)

func init() {
	registerHandler("get_mempool_info", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		return map[string]any{
			"size":       s.pool.Size(),
			"bytes":      s.pool.TotalBytes(),
		}, nil
	})
}

func init() {
	registerHandler("get_raw_mempool", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		entries := s.pool.OrderedByFeeRate()
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = hex.EncodeToString(e.Txid[:])
		}
		return out, nil
	})
}
