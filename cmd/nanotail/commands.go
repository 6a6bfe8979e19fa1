package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coffersTech/nanotail/internal/config"
	"github.com/coffersTech/nanotail/internal/engine"
	"github.com/coffersTech/nanotail/internal/server"
	"github.com/urfave/cli"
)

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load config: %v", err), 2)
	}
	if v := c.String("addr"); v != "" {
		cfg.Addr = v
	}
	if v := c.String("log-dir"); v != "" {
		cfg.LogDir = v
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("nanotail started",
		"log_dir", cfg.LogDir,
		"default_count", cfg.DefaultCount,
		"chunk_size", cfg.ChunkSize,
		"request_timeout", cfg.RequestTimeout,
	)

	qe := engine.NewQueryEngine(engine.NewScanner(cfg.ChunkSize))
	srv := server.NewLogServer(qe, server.Options{
		LogDir:         cfg.LogDir,
		WebDir:         cfg.WebDir,
		DefaultCount:   cfg.DefaultCount,
		RequestTimeout: cfg.RequestTimeout,
		Gzip:           cfg.Gzip,
		Logger:         logger,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- srv.Start(cfg.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("server stopped: %v", err), 1)
		}
		return nil
	case sig := <-quit:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("nanotail exited gracefully")
	return nil
}

func query(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		return cli.NewExitError("--file is required", 2)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load config: %v", err), 2)
	}
	chunkSize := cfg.ChunkSize
	if c.IsSet("chunk-size") {
		chunkSize = c.Int("chunk-size")
	}

	q := engine.Query{Path: path, Count: cfg.DefaultCount}
	if c.IsSet("count") {
		q.Count = c.Int("count")
	}
	if c.IsSet("filter") {
		f := c.String("filter")
		q.Filter = &f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	qe := engine.NewQueryEngine(engine.NewScanner(chunkSize))
	events, err := qe.Execute(ctx, q)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	w := bufio.NewWriter(os.Stdout)
	for _, e := range events {
		fmt.Fprintln(w, e.Raw)
	}
	return w.Flush()
}
