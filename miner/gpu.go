package miner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btpc-network/btpc/consensus"
)

// NoSolutionFound is the sentinel a GPU kernel's shared result slot starts
// at (spec §4.7: "a shared result slot, initialized to 0xFFFFFFFF").
const NoSolutionFound uint32 = 0xFFFFFFFF

// GPUKernel is the work-group-parallel nonce search contract (spec §4.7).
// DispatchBatch evaluates workGroupCount*workGroupSize candidate nonces
// starting at nonceStart — work-item global_id is assigned
// nonce_start+global_id — and reports the minimum succeeding nonce in the
// batch, or ok=false if none of them satisfied header's target. A real
// implementation runs this on an OpenCL/CUDA device; SoftwareGPUKernel
// below is the reference implementation this package ships.
type GPUKernel interface {
	DispatchBatch(header consensus.BlockHeader, nonceStart uint32, workGroupCount, workGroupSize int) (nonce uint32, ok bool, err error)
}

// SoftwareGPUKernel simulates work-group-parallel dispatch with one
// goroutine per work-item, each computing SHA-512 over its own copy of the
// header and racing to install the minimum succeeding nonce into a shared
// result slot via atomic compare-exchange (spec §4.7's described access
// pattern, without a real device binding — no pure-Go OpenCL/CUDA binding
// is available to wire here, so this is the documented software stand-in
// behind the same interface a real kernel would implement).
type SoftwareGPUKernel struct{}

func (SoftwareGPUKernel) DispatchBatch(header consensus.BlockHeader, nonceStart uint32, workGroupCount, workGroupSize int) (uint32, bool, error) {
	if workGroupCount <= 0 || workGroupSize <= 0 {
		return 0, false, fmt.Errorf("miner: work-group dimensions must be positive")
	}
	total := int64(workGroupCount) * int64(workGroupSize)
	result := uint64(NoSolutionFound)

	var wg sync.WaitGroup
	for group := 0; group < workGroupCount; group++ {
		wg.Add(1)
		go func(groupID int) {
			defer wg.Done()
			base := int64(groupID) * int64(workGroupSize)
			for item := int64(0); item < int64(workGroupSize); item++ {
				globalID := base + item
				if globalID >= total {
					return
				}
				nonce := nonceStart + uint32(globalID)
				h := header
				h.Nonce = nonce
				if err := consensus.PowCheck(h); err != nil {
					continue
				}
				for {
					cur := atomic.LoadUint64(&result)
					if uint32(cur) <= nonce {
						break
					}
					if atomic.CompareAndSwapUint64(&result, cur, uint64(nonce)) {
						break
					}
				}
			}
		}(group)
	}
	wg.Wait()

	final := uint32(atomic.LoadUint64(&result))
	if final == NoSolutionFound {
		return 0, false, nil
	}
	return final, true, nil
}

// SearchGPU repeatedly dispatches batches of workGroupCount*workGroupSize
// candidates, advancing nonceStart by the batch size each time none
// succeed, until kernel reports a solution, the uint32 nonce space is
// exhausted, or ctx is cancelled (spec §4.7: "a batch that finds no
// solution advances nonce_start and dispatches again").
func SearchGPU(ctx context.Context, kernel GPUKernel, header consensus.BlockHeader, workGroupCount, workGroupSize int) (consensus.BlockHeader, bool, error) {
	batch := uint64(workGroupCount) * uint64(workGroupSize)
	if batch == 0 {
		return consensus.BlockHeader{}, false, fmt.Errorf("miner: empty GPU batch dimensions")
	}
	var nonceStart uint32
	for {
		select {
		case <-ctx.Done():
			return consensus.BlockHeader{}, false, ctx.Err()
		default:
		}
		nonce, ok, err := kernel.DispatchBatch(header, nonceStart, workGroupCount, workGroupSize)
		if err != nil {
			return consensus.BlockHeader{}, false, err
		}
		if ok {
			h := header
			h.Nonce = nonce
			return h, true, nil
		}
		next := uint64(nonceStart) + batch
		if next > uint64(^uint32(0)) {
			return consensus.BlockHeader{}, false, nil
		}
		nonceStart = uint32(next)
	}
}
