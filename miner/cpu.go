package miner

import (
	"context"
	"sync"

	"github.com/btpc-network/btpc/consensus"
)

// SearchCPU iterates nonces sequentially starting at nonceStart, comparing
// each candidate header's SHA-512 against the target (spec §4.7 "CPU
// search"). It returns ok=false, nil if the uint32 nonce space is
// exhausted with no solution; the caller is expected to rebuild the
// template with a fresh timestamp and try again, the same backoff the
// teacher's single-threaded miner loop used.
func SearchCPU(ctx context.Context, header consensus.BlockHeader, nonceStart uint32) (consensus.BlockHeader, bool, error) {
	h := header
	nonce := nonceStart
	for {
		select {
		case <-ctx.Done():
			return consensus.BlockHeader{}, false, ctx.Err()
		default:
		}
		h.Nonce = nonce
		if err := consensus.PowCheck(h); err == nil {
			return h, true, nil
		}
		if nonce == ^uint32(0) {
			return consensus.BlockHeader{}, false, nil
		}
		nonce++
	}
}

// SearchCPUParallel partitions the uint32 nonce space across threads
// goroutines, each striding by threads so no two threads ever test the
// same nonce, and returns as soon as any of them finds one (spec §4.7's
// CPU path generalized to the configurable thread count start_mining
// accepts).
func SearchCPUParallel(ctx context.Context, header consensus.BlockHeader, threads int) (consensus.BlockHeader, bool, error) {
	if threads <= 0 {
		threads = 1
	}
	if threads == 1 {
		return SearchCPU(ctx, header, 0)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		h     consensus.BlockHeader
		found bool
		err   error
	}
	results := make(chan result, threads)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(start, stride uint32) {
			defer wg.Done()
			h := header
			nonce := start
			for {
				select {
				case <-ctx.Done():
					results <- result{err: ctx.Err()}
					return
				default:
				}
				h.Nonce = nonce
				if err := consensus.PowCheck(h); err == nil {
					results <- result{h: h, found: true}
					return
				}
				next := nonce + stride
				if next < nonce {
					results <- result{}
					return
				}
				nonce = next
			}
		}(uint32(i), uint32(threads))
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.found {
			cancel()
			return r.h, true, nil
		}
		if r.err != nil && r.err != context.Canceled {
			cancel()
			return consensus.BlockHeader{}, false, r.err
		}
	}
	return consensus.BlockHeader{}, false, nil
}
