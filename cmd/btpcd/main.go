// Command btpcd is the node daemon: it opens the chain database, wires
// the mempool, miner, and RPC surface together, and serves JSON-RPC over
// HTTP until asked to stop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag"

	"github.com/btpc-network/btpc/chainparams"
	"github.com/btpc-network/btpc/mempool"
	"github.com/btpc-network/btpc/miner"
	"github.com/btpc-network/btpc/node"
	"github.com/btpc-network/btpc/rpcserver"
	"github.com/btpc-network/btpc/storage"
	"github.com/btpc-network/btpc/utxo"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("btpcd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Network, "network", defaults.Network, "network name (mainnet/testnet/regtest)")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.StringVar(&cfg.RPCBindAddr, "rpc-bind", defaults.RPCBindAddr, "JSON-RPC bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	configPath := fs.String("config", "", "path to a JSON config file (flags override its fields)")
	dryRun := fs.Bool("dry-run", false, "print the effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *configPath != "" {
		fileCfg, err := node.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "config load failed: %v\n", err)
			return 2
		}
		cfg = fileCfg
		// Flags explicitly passed on the command line still win over the
		// file: re-parse the same args against a flag set seeded with the
		// file's values, so only flags actually present in args change
		// anything. Every flag main defines must be re-declared here too,
		// or flag.Parse stops at the first one it doesn't recognize.
		fs2 := flag.NewFlagSet("btpcd", flag.ContinueOnError)
		fs2.SetOutput(io.Discard)
		fs2.StringVar(&cfg.Network, "network", cfg.Network, "")
		fs2.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "")
		fs2.StringVar(&cfg.RPCBindAddr, "rpc-bind", cfg.RPCBindAddr, "")
		fs2.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "")
		fs2.String("config", *configPath, "")
		fs2.Bool("dry-run", *dryRun, "")
		_ = fs2.Parse(args)
	}

	if err := node.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevelOf(cfg.LogLevel)}))
	node.SetLogger(logger)

	if err := printConfig(stdout, cfg); err != nil {
		fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}

	if *dryRun {
		return 0
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	lockPath := node.LockFilePath(cfg.DataDir)
	lock, err := acquireLockFn(lockPath)
	if err != nil {
		fmt.Fprintf(stderr, "lock acquisition failed: %v\n", err)
		return 2
	}
	defer lock.Release()

	network, _ := chainparams.ParseNetwork(cfg.Network)
	params := chainparams.For(network)

	db, err := storage.Open(cfg.DataDir, cfg.Network)
	if err != nil {
		fmt.Fprintf(stderr, "storage open failed: %v\n", err)
		return 2
	}
	defer db.Close()

	if db.Manifest() == nil {
		genesis, err := node.GenesisBlock(context.Background(), params)
		if err != nil {
			fmt.Fprintf(stderr, "genesis construction failed: %v\n", err)
			return 2
		}
		if err := db.InitGenesis(params, genesis); err != nil {
			fmt.Fprintf(stderr, "genesis init failed: %v\n", err)
			return 2
		}
	}

	pool := mempool.New(params, db.UTXOView(), db.Manifest().TipHeight, 0)
	m := miner.New(params, db, pool)
	reservations := utxo.NewManager(db.UTXOView())

	srv, err := rpcserver.NewServer(rpcserver.Deps{
		Params:  params,
		DataDir: cfg.DataDir,
		DB:      db,
		Pool:    pool,
		UTXOs:   reservations,
		Miner:   m,
	})
	if err != nil {
		fmt.Fprintf(stderr, "rpc server init failed: %v\n", err)
		return 2
	}

	httpSrv := &http.Server{
		Addr:              cfg.RPCBindAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()

	fmt.Fprintf(stdout, "btpcd listening: network=%s rpc=%s height=%d\n", cfg.Network, cfg.RPCBindAddr, db.Manifest().TipHeight)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "rpc server error: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		fmt.Fprintln(stdout, "btpcd shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "rpc server shutdown error: %v\n", err)
		}
	}

	fmt.Fprintln(stdout, "btpcd stopped")
	return 0
}

// acquireLockFn is a package variable so main_test.go can stub out the
// single-instance lock without touching the real filesystem path twice in
// the same process.
var acquireLockFn func(path string) (releaser, error) = defaultAcquireLock

func logLevelOf(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
