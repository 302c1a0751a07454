package process

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/btpc-network/btpc/nodeerrors"
)

// Status is a supervised child process's lifecycle state.
type Status string

const (
	StatusStopped Status = "Stopped"
	StatusRunning Status = "Running"
	StatusCrashed Status = "Crashed"
)

// Timing constants from spec §4.9's supervision contract.
const (
	HealthCheckInterval = 5 * time.Second
	ShutdownGrace       = 10 * time.Second
	CrashWindow         = 3600 * time.Second
)

// Spawner starts one instance of the supervised child process, parented to
// ctx so its stdio/pipes are torn down with the run.
type Spawner func(ctx context.Context) (*exec.Cmd, error)

// ProcessHandle supervises one external child process: spawn, a 5s
// health-check tick, a single automatic restart on its first crash, and an
// escalation callback on a second crash within CrashWindow (spec §4.9
// "ProcessHandle supervision — contract only; the supervisor is a
// collaborator"). onStatusChanged is called from the supervision goroutine
// on every status transition; wire it to a StateManager[Status] Update so
// subscribers observe it in commit order.
type ProcessHandle struct {
	mu          sync.Mutex
	processType string
	spawn       Spawner
	onChanged   func(status Status, crashCount int)

	cmd          *exec.Cmd
	status       Status
	crashCount   int
	runningSince time.Time
	cancel       context.CancelFunc
}

// NewProcessHandle constructs a handle for one named process type (e.g.
// "gpu-miner-helper"). onStatusChanged may be nil.
func NewProcessHandle(processType string, spawn Spawner, onStatusChanged func(Status, int)) *ProcessHandle {
	return &ProcessHandle{processType: processType, spawn: spawn, onChanged: onStatusChanged, status: StatusStopped}
}

// Status returns the current lifecycle state and crash counter.
func (h *ProcessHandle) Status() (Status, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.crashCount
}

// Start spawns the child process and begins supervising it. Calling Start
// while already running returns a ValidationFailure.
func (h *ProcessHandle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.status == StatusRunning {
		h.mu.Unlock()
		return nodeerrors.NewValidationFailure("process", fmt.Sprintf("%s is already running", h.processType))
	}
	runCtx, cancel := context.WithCancel(ctx)
	cmd, err := h.spawn(runCtx)
	if err != nil {
		cancel()
		h.mu.Unlock()
		return nodeerrors.New(nodeerrors.ProcessCrash, fmt.Sprintf("failed to start %s", h.processType), err)
	}
	h.cmd = cmd
	h.cancel = cancel
	h.status = StatusRunning
	h.runningSince = time.Now()
	h.mu.Unlock()

	h.setStatus(StatusRunning)
	go h.supervise(runCtx, cmd)
	return nil
}

// Stop requests graceful shutdown: SIGTERM, up to ShutdownGrace to exit,
// then a forced kill (spec §4.9 "Graceful shutdown").
func (h *ProcessHandle) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *ProcessHandle) supervise(ctx context.Context, cmd *exec.Cmd) {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.shutdown(cmd, exited)
			return
		case err := <-exited:
			h.handleExit(err)
			return
		case <-ticker.C:
			h.mu.Lock()
			if time.Since(h.runningSince) >= CrashWindow {
				h.crashCount = 0
			}
			h.mu.Unlock()
		}
	}
}

func (h *ProcessHandle) shutdown(cmd *exec.Cmd, exited <-chan error) {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-exited:
	case <-time.After(ShutdownGrace):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-exited
	}
	h.mu.Lock()
	h.status = StatusStopped
	h.mu.Unlock()
	h.setStatus(StatusStopped)
}

func (h *ProcessHandle) handleExit(_ error) {
	h.mu.Lock()
	h.status = StatusCrashed
	h.crashCount++
	crashCount := h.crashCount
	h.mu.Unlock()

	h.setStatus(StatusCrashed)

	// First crash restarts automatically; the second (and any later one)
	// within CrashWindow is left Crashed for the caller's onStatusChanged
	// to surface as a restart prompt (spec §4.9).
	if crashCount == 1 {
		logger.Warn("process crashed, restarting", "process_type", h.processType, "crash_count", crashCount)
		_ = h.Start(context.Background())
	} else {
		logger.Error("process crashed again within crash window, not restarting", "process_type", h.processType, "crash_count", crashCount)
	}
}

func (h *ProcessHandle) setStatus(s Status) {
	if h.onChanged == nil {
		return
	}
	_, crashCount := h.Status()
	h.onChanged(s, crashCount)
}
