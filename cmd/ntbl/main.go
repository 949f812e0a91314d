// Package main provides the entry point for the ntbl command.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noteable-io/noteable-notebook-magics/internal/kernel"
)

// Version is set by the linker at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	showVersion bool
}

func parseFlags() (options, []string) {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts, flag.Args()
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func run() error {
	opts, args := parseFlags()

	if opts.showVersion {
		fmt.Printf("ntbl version %s\n", Version)
		return nil
	}

	cfg := kernel.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := kernel.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	k, err := kernel.New(cfg, os.Stdout)
	if err != nil {
		return fmt.Errorf("starting kernel: %w", err)
	}
	defer func() { _ = k.Close() }()

	ctx := setupSignalHandler()
	return k.Run(ctx, args)
}
