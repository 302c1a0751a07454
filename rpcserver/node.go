package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/btpc-network/btpc/consensus"
)

// refreshNodeStatus recomputes NodeStatus from current storage state. The
// p2p layer itself is out of scope (a dropped teacher subsystem, see
// DESIGN.md), so start_node/stop_node here only toggle whether this
// process considers itself active for status-reporting purposes; they do
// not bind a listener or dial peers.
func refreshNodeStatus(s *Server, running bool) (NodeStatus, error) {
	status := NodeStatus{Running: running, Network: s.params.Network.String(), StartedAtUnix: nowUnix()}
	tip, ok, err := s.db.TipHeader()
	if err != nil {
		return NodeStatus{}, err
	}
	if ok {
		hash := consensus.BlockHash(tip)
		idx, found, err := s.db.GetIndex(hash)
		if err != nil {
			return NodeStatus{}, err
		}
		if found {
			status.BlockHeight = idx.Height
		}
		status.BestBlockHash = hex.EncodeToString(hash[:])
	}
	return status, nil
}

func init() {
	registerHandler("start_node", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		status, err := refreshNodeStatus(s, true)
		if err != nil {
			return nil, err
		}
		snapshot, err := s.nodeStatus.Update(func(NodeStatus) NodeStatus { return status })
		if err != nil {
			return nil, err
		}
		s.hub.publish(s.nodeStatus.EventName(), snapshot)
		return snapshot, nil
	})
}

func init() {
	registerHandler("stop_node", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		snapshot, err := s.nodeStatus.Update(func(v NodeStatus) NodeStatus {
			v.Running = false
			return v
		})
		if err != nil {
			return nil, err
		}
		s.hub.publish(s.nodeStatus.EventName(), snapshot)
		return snapshot, nil
	})
}

func init() {
	registerHandler("get_node_status", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		return s.nodeStatus.Get()
	})
}
