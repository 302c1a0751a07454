// Package node holds the node process's top-level configuration: the
// flags and JSON file cmd/btpcd reads before wiring storage, mempool,
// miner, and rpcserver together.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/btpc-network/btpc/chainparams"
)

// Config is the full set of knobs cmd/btpcd accepts, either via flags or
// a JSON file (spec §6 "node configuration").
type Config struct {
	Network    string `json:"network"`
	DataDir    string `json:"data_dir"`
	RPCBindAddr string `json:"rpc_bind_addr"`
	LogLevel   string `json:"log_level"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".btpc"
	}
	return filepath.Join(home, ".btpc")
}

func DefaultConfig() Config {
	return Config{
		Network:     "mainnet",
		DataDir:     DefaultDataDir(),
		RPCBindAddr: "127.0.0.1:8332",
		LogLevel:    "info",
	}
}

// ValidateConfig checks cfg is internally consistent before any storage or
// network resource is touched.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if _, ok := chainparams.ParseNetwork(cfg.Network); !ok {
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.RPCBindAddr); err != nil {
		return fmt.Errorf("invalid rpc_bind_addr: %w", err)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

// LockFilePath is the single-instance advisory lock's location within a
// node's data directory (spec §4.9, §6 "btpcd.lock").
func LockFilePath(dataDir string) string {
	return filepath.Join(dataDir, "btpcd.lock")
}

// LoadConfigFile reads and parses an operator-supplied JSON config file
// (cmd/btpcd's -config flag), starting from defaults so a partial file
// only overrides the fields it sets. The path is split into dir+name and
// re-validated before the read (readFileByPath) rather than handed to
// os.ReadFile directly, since this path ultimately comes from a command
// line flag an operator controls.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := readFileByPath(path)
	if err != nil {
		return cfg, fmt.Errorf("node: reading config file: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("node: parsing config file: %w", err)
	}
	return cfg, nil
}
