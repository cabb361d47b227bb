package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/theroutercompany/apidocs/internal/openapi"
	hostconfig "github.com/theroutercompany/apidocs/pkg/host/config"
	hostmetrics "github.com/theroutercompany/apidocs/pkg/host/metrics"
	"github.com/theroutercompany/apidocs/pkg/host/server"
	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "Path to docs host configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("docserver failed: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := hostconfig.Load(hostconfig.WithPath(configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defer func() {
		if syncErr := pkglog.Sync(); syncErr != nil {
			log.Printf("logger sync failed: %v", syncErr)
		}
	}()

	registry := hostmetrics.NewRegistry()
	documents := newDocumentService(cfg, registry)

	srv, err := server.New(cfg, documents,
		server.WithLogger(pkglog.Named("server")),
		server.WithMetrics(registry),
	)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDocumentService(cfg hostconfig.Config, registry *hostmetrics.Registry) *openapi.Service {
	opts := []openapi.Option{
		openapi.WithLogger(pkglog.Named("openapi")),
		openapi.WithBuildObserver(registry.ObserveDocument),
	}
	if cfg.Documents.DistDir != "" {
		opts = append(opts, openapi.WithDistDir(cfg.Documents.DistDir))
	}
	if len(cfg.Documents.Versions) > 0 {
		for _, doc := range cfg.Documents.Versions {
			opts = append(opts, openapi.WithDocument(doc.Version, doc.Inputs...))
		}
	} else {
		opts = append(opts, openapi.WithConfigPath(cfg.Documents.MergeConfig))
	}
	return openapi.NewService(opts...)
}
