package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/arturoeanton/go-english-tutor/internal/adapter/loader"
	"github.com/arturoeanton/go-english-tutor/internal/adapter/watcher"
	"github.com/arturoeanton/go-english-tutor/internal/app"
	"github.com/arturoeanton/go-english-tutor/internal/handler"
	"github.com/arturoeanton/go-english-tutor/internal/mcp"
	"github.com/spf13/cobra"
)

var skipIngest bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, the MCP server and the corpus watcher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "Do not rebuild the index at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("🚀 Starting English Tutor",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"llm", cfg.LLMProvider,
		"mcp_enabled", cfg.MCPEnabled,
	)

	tutor, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer tutor.Close()

	if !skipIngest {
		if _, err := tutor.Knowledge.Rebuild(ctx, nil); err != nil {
			// Serve anyway; answers fall back to no reference material.
			slog.Error("initial ingest failed", "error", err)
		}
	}

	if cfg.WatchCorpus {
		startWatcher(ctx, tutor)
	}

	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(tutor.Tutor, tutor.Knowledge, tutor.Store, cfg.MCPPort, cfg.Tutor.TopK)
		go func() {
			if err := mcpServer.Start(ctx); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	fiberApp := handler.NewApp(handler.AppConfig{
		Name:        cfg.AppName,
		FrontendURL: cfg.FrontendURL,
		AccessLog:   true,
	}, handler.Deps{
		Tutor:     tutor.Tutor,
		Progress:  tutor.Progress,
		Knowledge: tutor.Knowledge,
		Store:     tutor.Store,
	})

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := fiberApp.Shutdown(); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := fiberApp.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func startWatcher(ctx context.Context, tutor *app.App) {
	dirs := loader.Dirs(cfg.DataDir)
	if len(dirs) == 0 {
		slog.Warn("corpus watcher disabled: no corpus directories", "data_dir", cfg.DataDir)
		return
	}

	w, err := watcher.NewFSNotifyWatcher(loader.Extensions())
	if err != nil {
		slog.Error("corpus watcher failed", "error", err)
		return
	}
	events, err := w.Watch(ctx, dirs...)
	if err != nil {
		w.Stop()
		slog.Error("corpus watcher failed", "error", err)
		return
	}

	go func() {
		defer w.Stop()
		tutor.Knowledge.Watch(ctx, events, cfg.Tutor.WatchDebounce)
	}()
	slog.Info("watching corpus", "dirs", dirs, "debounce", cfg.Tutor.WatchDebounce)
}
