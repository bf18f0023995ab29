package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	instanceclient "github.com/magictoy/arachni/clients/instance"
	"github.com/magictoy/arachni/pkg/initializers"
	"github.com/magictoy/arachni/pkg/metrics"
	"github.com/magictoy/arachni/pkg/retrier"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/dispatcher"
	"github.com/magictoy/arachni/services/instance"
	"github.com/magictoy/arachni/services/instance/spawner"
)

const serviceKey = scan.DispatcherServiceKey

// main starts the DispatcherService: a pool of pre-spawned instances
// handed out to masters one allocation at a time.
func main() {
	logger := initializers.Logger("DispatcherService")
	appConfig := initializers.FromEnv(serviceKey)

	if appConfig.Addr == "" {
		appConfig.Addr = ":7340"
	}
	if appConfig.PoolSize <= 0 {
		appConfig.PoolSize = dispatcher.DefaultPoolSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	srv := rpc.NewServer(appConfig.Addr, appConfig.Token, rpc.WithLogger(logger), rpc.WithMetrics(collector))
	if err := srv.Listen(); err != nil {
		logger.Fatal().Err(err).Str("addr", appConfig.Addr).Msg("failed to listen")
	}

	// the dispatcher spawns instance binaries, not copies of itself
	binary := os.Getenv("APP_INSTANCE_BINARY")
	if binary == "" {
		logger.Fatal().Msg("APP_INSTANCE_BINARY must point at the instance binary")
	}

	spawn := spawner.NewProcessSpawner(binary, spawner.WithSpawnLogger(logger))
	prober := spawner.NewProber(instanceclient.NewForSlave,
		spawner.WithProbeCounter(collector.ProbeAttempts),
		spawner.WithProbeLogger(logger),
	)
	provisioner := instance.NewProvisioner(nil, spawn, prober, srv.Addr,
		instance.WithProvisionerMetrics(collector),
		instance.WithProvisionerLogger(logger),
	)

	service := dispatcher.New(provisioner,
		dispatcher.WithPoolSize(appConfig.PoolSize),
		dispatcher.WithLogger(logger),
	)

	err := retrier.Retry(func() error {
		return service.Init(ctx)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("error initializing service")
	}

	service.RegisterHandlers(srv)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown requested")
		coordinator := instance.NewShutdownCoordinator(instanceclient.NewForSlave, logger)
		coordinator.ShutdownSlaves(context.Background(), service.Pool())
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	logger.Info().Str("addr", srv.Addr()).Int("pool", appConfig.PoolSize).Msg("Starting Service")
	if err := srv.Serve(); err != nil {
		logger.Fatal().Err(err).Msg("failed to serve rpc")
	}
}
