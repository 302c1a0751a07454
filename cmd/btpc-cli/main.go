// Command btpc-cli is a thin JSON-RPC client for scripting against a
// running btpcd node: it sends one request per invocation and prints the
// result as indented JSON on stdout; an RPC error is printed to stderr as
// its code and message.
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

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("btpc-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rpcURL := fs.String("rpc-url", "http://127.0.0.1:8332", "btpcd JSON-RPC endpoint")
	paramsJSON := fs.String("params", "{}", "JSON object of named parameters")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(stderr, "usage: btpc-cli [flags] <method>")
		return 2
	}
	method := rest[0]

	if !json.Valid([]byte(*paramsJSON)) {
		fmt.Fprintf(stderr, "params is not valid JSON: %s\n", *paramsJSON)
		return 2
	}

	req := request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  json.RawMessage(*paramsJSON),
	}
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(stderr, "encode request: %v\n", err)
		return 2
	}

	client := &http.Client{Timeout: *timeout}
	httpReq, err := http.NewRequest(http.MethodPost, *rpcURL, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(stderr, "build request: %v\n", err)
		return 2
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	defer httpResp.Body.Close()

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		fmt.Fprintf(stderr, "decode response: %v\n", err)
		return 1
	}

	if resp.Error != nil {
		fmt.Fprintf(stderr, "rpc error %d: %s\n", resp.Error.Code, resp.Error.Message)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp.Result); err != nil {
		fmt.Fprintf(stderr, "encode result: %v\n", err)
		return 1
	}
	return 0
}
