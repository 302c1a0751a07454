// Command btpc-wallet manages wallets against a running btpcd node over
// its JSON-RPC surface: create a wallet, mint a new receive address,
// check a balance, and send a payment.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *errorPayload   `json:"error,omitempty"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcClient calls method against rpcURL with params marshaled from a Go
// value, and decodes result into out (if non-nil).
func rpcClient(rpcURL string, timeout time.Duration, method string, params any, out any) error {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		raw = b
	}
	req := request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: raw}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	httpReq, err := http.NewRequest(http.MethodPost, rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if out != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, rpcClient))
}

type rpcCallFunc func(rpcURL string, timeout time.Duration, method string, params any, out any) error

func run(args []string, stdout, stderr io.Writer, call rpcCallFunc) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}
	subcommand := args[0]
	rest := args[1:]

	fs := flag.NewFlagSet("btpc-wallet "+subcommand, flag.ContinueOnError)
	fs.SetOutput(stderr)
	rpcURL := fs.String("rpc-url", "http://127.0.0.1:8332", "btpcd JSON-RPC endpoint")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")

	switch subcommand {
	case "create":
		nickname := fs.String("nickname", "", "wallet nickname")
		password := fs.String("password", "", "master password")
		network := fs.String("network", "", "network override (defaults to the node's own)")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *nickname == "" || *password == "" {
			fmt.Fprintln(stderr, "create requires -nickname and -password")
			return 2
		}
		var summary json.RawMessage
		if err := call(*rpcURL, *timeout, "create_wallet", map[string]any{
			"nickname": *nickname, "password": *password, "network": *network,
		}, &summary); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return printJSON(stdout, stderr, summary)

	case "new-address":
		walletID := fs.String("wallet-id", "", "wallet id")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *walletID == "" {
			fmt.Fprintln(stderr, "new-address requires -wallet-id")
			return 2
		}
		var out json.RawMessage
		if err := call(*rpcURL, *timeout, "new_address", map[string]any{"wallet_id": *walletID}, &out); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return printJSON(stdout, stderr, out)

	case "balance":
		walletID := fs.String("wallet-id", "", "wallet id")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *walletID == "" {
			fmt.Fprintln(stderr, "balance requires -wallet-id")
			return 2
		}
		var out json.RawMessage
		if err := call(*rpcURL, *timeout, "get_balance", map[string]any{"wallet_id": *walletID}, &out); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return printJSON(stdout, stderr, out)

	case "send":
		walletID := fs.String("wallet-id", "", "wallet id")
		to := fs.String("to", "", "recipient address")
		amount := fs.Uint64("amount", 0, "amount in base units")
		fee := fs.Uint64("fee", 0, "fee in base units")
		changeAddress := fs.String("change-address", "", "change address (defaults to the wallet's own)")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *walletID == "" || *to == "" || *amount == 0 {
			fmt.Fprintln(stderr, "send requires -wallet-id, -to, and a nonzero -amount")
			return 2
		}
		var out json.RawMessage
		if err := call(*rpcURL, *timeout, "send_transaction", map[string]any{
			"wallet_id": *walletID, "to_address": *to, "amount": *amount, "fee": *fee, "change_address": *changeAddress,
		}, &out); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return printJSON(stdout, stderr, out)

	default:
		printUsage(stderr)
		return 2
	}
}

func printJSON(stdout, stderr io.Writer, raw json.RawMessage) int {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, pretty.String())
	return 0
}

func printUsage(stderr io.Writer) {
	fmt.Fprintln(stderr, "usage: btpc-wallet <create|new-address|balance|send> [flags]")
}
