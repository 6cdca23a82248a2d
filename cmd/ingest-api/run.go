package main

import (
	"context"
	"encoding/base64"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	apiserver "github.com/annolab/tile-ingest/internal/api_server"
	"github.com/annolab/tile-ingest/internal/blobstore"
	"github.com/annolab/tile-ingest/internal/config"
	"github.com/annolab/tile-ingest/internal/handlers"
	"github.com/annolab/tile-ingest/internal/pod"
	"github.com/annolab/tile-ingest/internal/service"
	"github.com/annolab/tile-ingest/internal/store"
	"github.com/annolab/tile-ingest/pkg/log"
	"github.com/annolab/tile-ingest/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tile ingest api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}

		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		blobs, err := blobstore.NewMinioStore(
			blobstore.WithEndpoint(cfg.Service.S3.Endpoint),
			blobstore.WithAccessKey(cfg.Service.S3.AccessKey),
			blobstore.WithSecretKey(cfg.Service.S3.SecretKey),
			blobstore.WithSSL(cfg.Service.S3.UseSSL),
		)
		if err != nil {
			zap.S().Fatalw("initializing object store", "error", err)
		}

		orchestrator, err := newOrchestrator(cfg)
		if err != nil {
			zap.S().Fatalw("initializing pod orchestrator", "error", err)
		}

		ingestService := service.NewIngestService(s, blobs, orchestrator, cfg)
		projectService := service.NewProjectService(s)
		handler := handlers.NewIngestHandler(ingestService, projectService)

		metrics.RegisterStoreCollector(s)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			metricsListener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, metricsListener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("running metrics server", "error", err)
			}
		}()

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			zap.S().Fatalw("creating listener", "error", err)
		}

		server := apiserver.New(cfg, handler, listener)
		if err := server.Run(ctx); err != nil {
			zap.S().Fatalw("running server", "error", err)
		}

		return nil
	},
}

// newOrchestrator wires the Kubernetes client only when a cluster credential
// is configured; without one, every pod operation is a no-op.
func newOrchestrator(cfg *config.Config) (*pod.Orchestrator, error) {
	if cfg.Service.Kube.Server == "" || cfg.Service.Kube.Token == "" {
		zap.S().Info("no cluster credential configured, pod orchestration disabled")
		return pod.NewOrchestrator(nil, cfg), nil
	}

	caData, err := base64.StdEncoding.DecodeString(cfg.Service.Kube.CAData)
	if err != nil {
		return nil, err
	}

	restCfg := &rest.Config{
		Host:        cfg.Service.Kube.Server,
		BearerToken: cfg.Service.Kube.Token,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: caData,
		},
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, err
	}

	return pod.NewOrchestrator(client, cfg,
		pod.WithExecutorFactory(pod.NewSPDYExecutorFactory(client, restCfg)),
	), nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
