package node

import (
	"log/slog"

	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/miner"
	"github.com/btpc-network/btpc/process"
	"github.com/btpc-network/btpc/rpcserver"
	"github.com/btpc-network/btpc/storage"
)

// logger is the structured logger used for node-lifecycle events (genesis
// initialization, lock acquisition); defaults to slog.Default() until
// cmd/btpcd overrides it with SetLogger.
var logger = slog.Default()

// SetLogger overrides the package logger and propagates it to every
// long-lived collaborator package (storage, mempool, miner, rpcserver,
// process) so a single call from cmd/btpcd gives every component
// consistent structured logging, the way the teacher's HSMMonitor takes
// one *slog.Logger and every collaborator it spawns inherits it.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l
	storage.SetLogger(l)
	mempool.SetLogger(l)
	miner.SetLogger(l)
	rpcserver.SetLogger(l)
	process.SetLogger(l)
}
