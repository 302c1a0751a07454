// Package rpcserver implements the node's JSON-RPC 2.0 surface (spec
// §4.8): a single HTTP endpoint dispatching to the blockchain, mempool,
// wallet, mining, and node-lifecycle methods, plus a websocket event feed
// (spec §6) subscribers use to observe state transitions as they happen.
//
// No pack repo carries a JSON-RPC framework, so the dispatcher itself is
// built directly on net/http and encoding/json — the ecosystem dependency
// budget goes instead to gorilla/websocket for the event feed, uuid for
// wallet identifiers, and the storage/mempool/wallet/miner packages this
// server only wires together.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/miner"
	"github.com/btpc-network/btpc/nodeerrors"
	"github.com/btpc-network/btpc/process"
	"github.com/btpc-network/btpc/storage"
	"github.com/btpc-network/btpc/utxo"
)

// DefaultTimeout is used when a request carries no X-RPC-Timeout-Ms
// header (spec §5 "RPC calls carry a client-supplied or default timeout").
const DefaultTimeout = 30 * time.Second

// NodeStatus is the snapshot get_node_status reads and node_status_changed
// carries.
type NodeStatus struct {
	Running       bool   `json:"running"`
	Network       string `json:"network"`
	BlockHeight   uint64 `json:"block_height"`
	BestBlockHash string `json:"best_block_hash"`
	StartedAtUnix uint64 `json:"started_at_unix,omitempty"`
}

// MiningStatusView is the snapshot get_mining_status reads.
type MiningStatusView struct {
	Running     bool   `json:"running"`
	UseGPU      bool   `json:"use_gpu"`
	Threads     int    `json:"threads"`
	BlocksFound uint64 `json:"blocks_found"`
}

// Server wires together the storage, mempool, wallet registry, miner, and
// utxo reservation layer into one JSON-RPC surface. One utxo.Manager is
// shared across every loaded wallet: reservations are scoped to outpoints,
// not to a wallet, so two wallets (or two concurrent sends from the same
// wallet) contend over the same node-wide reservation set (spec §8
// scenario 5).
type Server struct {
	params  chainparams.Params
	dataDir string

	db      *storage.DB
	pool    *mempool.Pool
	utxos   *utxo.Manager
	miner   *miner.Miner
	thermal *miner.ThermalController

	wallets *walletRegistry

	nodeStatus   *process.StateManager[NodeStatus]
	miningStatus *process.StateManager[MiningStatusView]

	hub *eventHub
}

// Deps collects Server's collaborators. All fields are required except
// Thermal, which defaults to a controller with an 80 °C threshold.
type Deps struct {
	Params  chainparams.Params
	DataDir string
	DB      *storage.DB
	Pool    *mempool.Pool
	UTXOs   *utxo.Manager
	Miner   *miner.Miner
	Thermal *miner.ThermalController
}

// NewServer constructs a Server ready to be mounted as an http.Handler.
func NewServer(deps Deps) (*Server, error) {
	if deps.DB == nil || deps.Pool == nil || deps.UTXOs == nil || deps.Miner == nil {
		return nil, fmt.Errorf("rpcserver: DB, Pool, UTXOs and Miner are required")
	}
	if deps.Thermal == nil {
		deps.Thermal = miner.NewThermalController(80)
	}

	wallets, err := loadWalletRegistry(deps.DataDir, deps.Params.Network)
	if err != nil {
		return nil, err
	}

	s := &Server{
		params:  deps.Params,
		dataDir: deps.DataDir,
		db:      deps.DB,
		pool:    deps.Pool,
		utxos:   deps.UTXOs,
		miner:   deps.Miner,
		thermal: deps.Thermal,
		wallets: wallets,
		nodeStatus: process.NewStateManager("node_status_changed", NodeStatus{
			Network: deps.Params.Network.String(),
		}),
		miningStatus: process.NewStateManager("mining_status_changed", MiningStatusView{}),
		hub:          newEventHub(),
	}
	return s, nil
}

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result/Error
// is populated, per the spec.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *errorPayload   `json:"error,omitempty"`
}

// errorPayload is the JSON-RPC "error" member, carrying the nodeerrors
// taxonomy alongside the numeric code JSON-RPC 2.0 itself requires.
type errorPayload struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *errorData `json:"data,omitempty"`
}

type errorData struct {
	Kind             string `json:"kind"`
	TechnicalDetails string `json:"technical_details,omitempty"`
}

var errUnknownMethod = errors.New("rpcserver: unknown method")

// handlerFunc is one RPC method's implementation. params is the raw
// "params" member of the request, still to be unmarshaled by the handler
// into whatever shape it expects.
type handlerFunc func(ctx context.Context, s *Server, params json.RawMessage) (any, error)

// handlers is the full spec §4.8 method surface, populated by each
// domain file's init() (blockchain.go, mempool.go, wallets.go, mining.go,
// node.go) so that no single file has to enumerate every method.
var handlers = map[string]handlerFunc{}

func registerHandler(method string, fn handlerFunc) {
	handlers[method] = fn
}

// ServeHTTP implements http.Handler: one JSON-RPC request per POST body.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.hub.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "rpcserver: POST required", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", Error: toErrorPayload(nodeerrors.New(nodeerrors.MalformedInput, "request body is not valid JSON-RPC", err))})
		return
	}

	timeout := DefaultTimeout
	if raw := r.Header.Get("X-RPC-Timeout-Ms"); raw != "" {
		var ms int64
		if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := s.dispatch(ctx, req)
	writeResponse(w, resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	fn, ok := handlers[req.Method]
	if !ok {
		resp.Error = toErrorPayload(classify(fmt.Errorf("%w: %s", errUnknownMethod, req.Method)))
		return resp
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(ctx, s, req.Params)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			logger.Warn("rpc call failed", "method", req.Method, "err", o.err)
			resp.Error = toErrorPayload(classify(o.err))
			return resp
		}
		resp.Result = o.result
		return resp
	case <-ctx.Done():
		logger.Warn("rpc call timed out", "method", req.Method)
		resp.Error = toErrorPayload(classify(ctx.Err()))
		return resp
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Error != nil {
		w.WriteHeader(http.StatusOK) // JSON-RPC reports errors in-band, not via HTTP status
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// jsonRPCCode maps each nodeerrors.Kind to a stable numeric code.
// MalformedInput maps to -32602 (invalid params); every other kind maps to
// -32000, the top of the JSON-RPC 2.0 "Server error" range. -32601 and
// -32700 are not produced here.
func jsonRPCCode(kind nodeerrors.Kind) int {
	switch kind {
	case nodeerrors.MalformedInput:
		return -32602
	default:
		return -32000
	}
}

func nowUnix() uint64 { return uint64(time.Now().Unix()) }

// unmarshalParams decodes a request's params into dst. Empty params
// unmarshal as a zero-value dst rather than an error, since several
// methods (lock_wallets, get_node_status, ...) take none.
func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("rpcserver: invalid params: %w", err)
	}
	return nil
}

func toErrorPayload(e *nodeerrors.Error) *errorPayload {
	if e == nil {
		return nil
	}
	return &errorPayload{
		Code:    jsonRPCCode(e.Kind),
		Message: e.UserMessage,
		Data: &errorData{
			Kind:             string(e.Kind),
			TechnicalDetails: e.TechnicalDetails,
		},
	}
}
