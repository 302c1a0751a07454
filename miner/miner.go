package miner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/consensus"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/storage"
)

// Config configures one mining run (spec §4.8 start_mining(address,
// threads, use_gpu)).
type Config struct {
	PayoutAddress string
	Threads       int
	UseGPU        bool
	GPUKernel     GPUKernel
	WorkGroupSize int
	WorkGroups    int
	Intensity     IntensitySource

	// TimestampSource defaults to the wall clock; overridable for
	// deterministic regtest mining.
	TimestampSource func() uint64
}

// Result describes one block this miner found and got accepted.
type Result struct {
	Height  uint64
	Hash    [64]byte
	Nonce   uint32
	TxCount int
}

// Miner assembles templates from the mempool and the chain tip, searches
// for a satisfying nonce, and offers the solved block back through
// storage.DB.ApplyBlock — the same entry point any received block goes
// through. It holds no privileged write path of its own (spec §4.7
// "Contract").
type Miner struct {
	params chainparams.Params
	db     *storage.DB
	pool   *mempool.Pool

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	cfg         Config
	blocksFound uint64
}

// New constructs a Miner over db and pool, which must outlive it.
func New(p chainparams.Params, db *storage.DB, pool *mempool.Pool) *Miner {
	return &Miner{params: p, db: db, pool: pool}
}

// MiningStatus is what get_mining_status reads.
type MiningStatus struct {
	Running     bool
	UseGPU      bool
	Threads     int
	BlocksFound uint64
}

func (m *Miner) Status() MiningStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MiningStatus{Running: m.running, UseGPU: m.cfg.UseGPU, Threads: m.cfg.Threads, BlocksFound: m.blocksFound}
}

// Start launches a background mining loop under cfg. onBlock, if non-nil,
// is invoked (from the mining goroutine) after each block this miner gets
// accepted — callers use it to fire the send_transaction-style RPC event
// (spec §5 "every RPC call that mutates state also emits an event").
func (m *Miner) Start(cfg Config, onBlock func(Result)) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.TimestampSource == nil {
		cfg.TimestampSource = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if cfg.Intensity == nil {
		cfg.Intensity = FixedIntensity{}
	}
	if cfg.WorkGroupSize <= 0 {
		cfg.WorkGroupSize = 256
	}
	if cfg.WorkGroups <= 0 {
		cfg.WorkGroups = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cfg = cfg
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	logger.Info("mining started", "threads", cfg.Threads, "use_gpu", cfg.UseGPU, "payout_address", cfg.PayoutAddress)
	go m.run(ctx, cfg, onBlock)
	return nil
}

// Stop cancels any in-flight search and marks the miner idle. Safe to call
// whether or not a run is active.
func (m *Miner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	logger.Info("mining stopped", "blocks_found", m.blocksFound)
}

func (m *Miner) run(ctx context.Context, cfg Config, onBlock func(Result)) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := m.mineOnce(ctx, cfg, onBlock); err != nil {
			if err == context.Canceled {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// mineOnce builds one template, searches it to completion or cancellation,
// and offers any solution back through ApplyBlock. A nil error with no
// block found means the nonce space was exhausted for this template's
// timestamp; the caller's loop simply tries again with a fresh one.
func (m *Miner) mineOnce(ctx context.Context, cfg Config, onBlock func(Result)) error {
	tmpl, err := BuildTemplate(m.params, m.db, m.pool, cfg.PayoutAddress, cfg.TimestampSource())
	if err != nil {
		return err
	}

	var found consensus.BlockHeader
	var ok bool
	if cfg.UseGPU {
		if cfg.GPUKernel == nil {
			return fmt.Errorf("miner: use_gpu requested with no GPUKernel configured")
		}
		workGroups := ScaleWorkGroups(cfg.WorkGroups, cfg.Intensity.Intensity())
		found, ok, err = SearchGPU(ctx, cfg.GPUKernel, tmpl.Header, workGroups, cfg.WorkGroupSize)
	} else {
		found, ok, err = SearchCPUParallel(ctx, tmpl.Header, cfg.Threads)
	}
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	blk := consensus.Block{Header: found, Transactions: tmpl.Transactions}
	decision, err := m.db.ApplyBlock(m.params, blk, storage.ApplyOptions{LocalTimeUnix: cfg.TimestampSource()})
	if err != nil {
		return fmt.Errorf("miner: mined block rejected by validation: %w", err)
	}
	if decision == storage.ApplyAppliedAsTip || decision == storage.ApplyTriggeredReorg {
		m.pool.RemoveConfirmed(blk, m.db.UTXOView(), tmpl.Height)
	}

	m.mu.Lock()
	m.blocksFound++
	m.mu.Unlock()

	logger.Info("block found", "height", tmpl.Height, "nonce", found.Nonce, "tx_count", len(tmpl.Transactions))

	if onBlock != nil {
		onBlock(Result{Height: tmpl.Height, Hash: consensus.BlockHash(found), Nonce: found.Nonce, TxCount: len(tmpl.Transactions)})
	}
	return nil
}

// MineN synchronously mines exactly n blocks against an empty or
// already-populated mempool, for regtest bring-up and tests (spec §8
// scenario 1: "mine 101 blocks to address A"). It reuses mineOnce directly
// rather than the background Start/Stop loop, so callers get a definite
// result or error per block instead of a fire-and-forget goroutine.
func (m *Miner) MineN(ctx context.Context, n int, cfg Config) ([]Result, error) {
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	if cfg.TimestampSource == nil {
		cfg.TimestampSource = func() uint64 { return uint64(time.Now().Unix()) }
	}
	if cfg.Intensity == nil {
		cfg.Intensity = FixedIntensity{}
	}
	if cfg.WorkGroupSize <= 0 {
		cfg.WorkGroupSize = 256
	}
	if cfg.WorkGroups <= 0 {
		cfg.WorkGroups = 64
	}

	results := make([]Result, 0, n)
	var mu sync.Mutex
	collect := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	for i := 0; i < n; i++ {
		before := len(results)
		for len(results) == before {
			if err := m.mineOnce(ctx, cfg, collect); err != nil {
				return results, err
			}
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			default:
			}
		}
	}
	return results, nil
}
