// Command gateway-server replays stored items as a custom gateway
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/JamesPrial/custom-gateway-core/internal/admin"
	"github.com/JamesPrial/custom-gateway-core/internal/replay"
	"github.com/JamesPrial/custom-gateway-core/internal/source"
	"github.com/JamesPrial/custom-gateway-core/internal/stream"
	"github.com/JamesPrial/custom-gateway-core/internal/transport"
	"github.com/JamesPrial/custom-gateway-core/pkg/config"
	"github.com/JamesPrial/custom-gateway-core/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("gateway-server: %v", err)
	}
}

// loadSettings reads path, or starts from the defaults when path is empty
func loadSettings(path string) (*config.Settings, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("gateway-server", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to a YAML or TOML configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadSettings(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Shutdown()
	logger := logging.GetGlobalLogger("main")

	backend, err := source.NewBackend(ctx, &cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to create item source: %w", err)
	}
	defer backend.Close()

	manager := replay.NewManager(backend)
	server := transport.NewServer(cfg.Server, stream.NewAdapter(manager.Handle))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	if cfg.Admin.Enabled {
		adminServer := admin.NewServer(cfg.Admin, logging.GetGlobalFactory(), manager)
		g.Go(func() error {
			return adminServer.Start(gctx)
		})
	}

	logger.Info("Gateway server running",
		slog.String("address", cfg.Server.Address()),
		slog.String("source", cfg.Source.Type),
		slog.Bool("admin", cfg.Admin.Enabled),
	)

	if err := g.Wait(); err != nil {
		logger.Error("Gateway server failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Gateway server exited")
	return nil
}
