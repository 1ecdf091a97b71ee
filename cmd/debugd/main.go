// Package main provides the entry point for the debugd node.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/stable-net/debugd/pkg/config"
	"github.com/stable-net/debugd/pkg/debug"
	"github.com/stable-net/debugd/pkg/genesis"
	"github.com/stable-net/debugd/pkg/rpc"
	"github.com/stable-net/debugd/pkg/store"
	"github.com/stable-net/debugd/pkg/tracing"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "debugd",
		Usage:   "debug/introspection JSON-RPC node",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to JSON config file"},
			&cli.StringFlag{Name: "host", Usage: "server listen host"},
			&cli.IntFlag{Name: "port", Usage: "server listen port"},
			&cli.Uint64Flag{Name: "chain-id", Usage: "chain ID of the dev chain"},
			&cli.IntFlag{Name: "accounts", Usage: "number of dev accounts"},
			&cli.StringFlag{Name: "mnemonic", Usage: "mnemonic for dev accounts"},
			&cli.IntFlag{Name: "seed-blocks", Usage: "number of blocks to seed"},
			&cli.IntFlag{Name: "trace-pool-size", Usage: "trace worker pool size"},
			&cli.DurationFlag{Name: "trace-timeout", Usage: "default trace timeout"},
			&cli.StringFlag{Name: "allow-origin", Usage: "CORS allowed origin"},
			&cli.IntFlag{Name: "verbosity", Value: 3, Usage: "log verbosity (0-5)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(c.Int("verbosity")), true)
	log.SetDefault(log.NewLogger(handler))

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st := store.New(new(big.Int).SetUint64(cfg.ChainID))

	accounts, err := genesis.Seed(st, cfg)
	if err != nil {
		return fmt.Errorf("failed to seed chain: %w", err)
	}
	log.Info("Seeded dev chain",
		"chainId", cfg.ChainID,
		"blocks", st.BlockNumber(),
		"head", st.CurrentBlock().Hash(),
		"accounts", len(accounts),
	)

	engine := tracing.NewEngine(st, cfg.TraceTimeout, cfg.MaxTraceTimeout)
	service := debug.NewService(st, engine)

	server := rpc.NewServer(service, cfg)
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("RPC server listening", "addr", cfg.ServerAddr())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info("Shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// loadConfig builds the effective configuration: file first, then flag
// overrides, then validation.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("chain-id") {
		cfg.ChainID = c.Uint64("chain-id")
	}
	if c.IsSet("accounts") {
		cfg.AccountCount = c.Int("accounts")
	}
	if c.IsSet("mnemonic") {
		cfg.Mnemonic = c.String("mnemonic")
	}
	if c.IsSet("seed-blocks") {
		cfg.SeedBlocks = c.Int("seed-blocks")
	}
	if c.IsSet("trace-pool-size") {
		cfg.TracePoolSize = c.Int("trace-pool-size")
	}
	if c.IsSet("trace-timeout") {
		cfg.TraceTimeout = c.Duration("trace-timeout")
	}
	if c.IsSet("allow-origin") {
		cfg.AllowOrigin = c.String("allow-origin")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
