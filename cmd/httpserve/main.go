package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nczempin/0005_std_lib_http_server/config"
	"github.com/nczempin/0005_std_lib_http_server/resolver"
	"github.com/nczempin/0005_std_lib_http_server/server"
	"github.com/nczempin/0005_std_lib_http_server/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Parse("httpserve", args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logger.Printf("E config: %v", err)
		return 2
	}

	ln, err := transport.Listen(cfg.Transport, cfg.Address, cfg.TransportOptions())
	if err != nil {
		logger.Printf("E %v", err)
		return 1
	}

	if _, err := resolver.CanonicalBase(cfg.BaseDir); err != nil {
		logger.Printf("W %v", err)
	}

	r := resolver.New(cfg.BaseDir)
	srv := server.New(ln, server.NewHandler(r, logger), logger)
	logger.Printf("I serving %s via %s", cfg.BaseDir, cfg.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// A second signal during shutdown terminates the process
	context.AfterFunc(ctx, stop)

	if err := srv.Serve(ctx); err != nil {
		logger.Printf("E %v", err)
		return 1
	}
	return 0
}
