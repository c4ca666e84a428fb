package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const usage = `recctl talks to a running rec-hub.

Usage:
  recctl [global flags] <command> [flags]

Commands:
  info       print token metadata and totals
  facilities list registered facilities
  balance    print an account's balances over gRPC
  register   register a facility
  mint       mint certificates for generated MWh
  seed       register a facility and mint to a list of accounts
  watch      stream ledger events from /ws/events
  hash-key   print the bcrypt hash to configure for an API key

Global flags:
`

func main() {
	global := flag.NewFlagSet("recctl", flag.ExitOnError)
	server := global.String("server", envOr("RECCTL_SERVER", "http://localhost:8080"), "REST base URL")
	grpcAddr := global.String("grpc", envOr("RECCTL_GRPC", "localhost:50051"), "gRPC address")
	apiKey := global.String("api-key", os.Getenv("RECCTL_API_KEY"), "operator API key")
	token := global.String("token", os.Getenv("RECCTL_TOKEN"), "bearer access token")
	timeout := global.Duration("timeout", 10*time.Second, "request timeout")
	verbose := global.Bool("verbose", false, "enable verbose logging")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &cli{
		api:      &apiClient{baseURL: *server, apiKey: *apiKey, token: *token, timeout: *timeout},
		grpcAddr: *grpcAddr,
		timeout:  *timeout,
		log:      logger,
	}
	name, args := global.Arg(0), global.Args()[1:]
	cmd, ok := env.commands()[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		global.Usage()
		os.Exit(2)
	}
	if err := cmd(ctx, args); err != nil {
		logger.Error("Command failed", zap.String("command", name), zap.Error(err))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
