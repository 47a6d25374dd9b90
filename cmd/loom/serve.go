package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/loom/internal/compiler"
	httpAdapter "github.com/aretw0/loom/pkg/adapters/http"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve <dir>",
	Short: "Serve a directory of machines over HTTP",
	Long:  `Loads every machine file in the directory and exposes the catalog, schemas, and run execution as a JSON API, with Prometheus metrics on /metrics.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cmd, args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("provider", "openai", "Default LLM provider")
	serveCmd.Flags().String("model", "gpt-4o-mini", "Default LLM model")
	serveCmd.Flags().String("bridge", "", "Command spawning an MCP stdio server for tool states")
}

func serve(cmd *cobra.Command, dir string) error {
	loader, err := loadMachines(dir)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	port, _ := cmd.Flags().GetString("port")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	bridge, _ := cmd.Flags().GetString("bridge")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	contextFor := func() *domain.Context {
		ctx := buildContext(logger, provider, model, bridge, loader)
		ctx.Hooks = ctx.Hooks.Merge(metrics.Hooks())
		return ctx
	}

	server := httpAdapter.NewServer(loader, contextFor, httpAdapter.WithLogger(logger))

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Mount("/", server.Handler())

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("Serving %d machines on %s\n", len(loader.IDs()), srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		fmt.Printf("\nShutting down... Signal: %v\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return srv.Close()
		}
	}
	return nil
}

func loadMachines(dir string) (*memory.Loader, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	more, _ := filepath.Glob(filepath.Join(dir, "*.yml"))
	paths = append(paths, more...)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no machine files in %s", dir)
	}

	parser := compiler.NewParser()
	loader := memory.NewLoader()
	for _, path := range paths {
		machine, err := parser.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		loader.Add(machine)
	}
	return loader, nil
}
