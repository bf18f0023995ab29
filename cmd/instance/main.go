package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	instanceclient "github.com/magictoy/arachni/clients/instance"
	"github.com/magictoy/arachni/pkg/initializers"
	"github.com/magictoy/arachni/pkg/metrics"
	"github.com/magictoy/arachni/pkg/rpc"
	"github.com/magictoy/arachni/scan"
	"github.com/magictoy/arachni/services/framework"
	"github.com/magictoy/arachni/services/instance"
	"github.com/magictoy/arachni/services/instance/spawner"
)

const serviceKey = scan.InstanceServiceKey

// main starts one scanning instance. A fresh configuration and engine
// pair is built per process, so forked slaves never share state with
// their parent.
func main() {
	logger := initializers.Logger("InstanceService")
	appConfig := initializers.FromEnv(serviceKey)

	if appConfig.Addr == "" {
		appConfig.Addr = ":7331"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()
	opts := scan.NewOptions()

	serverOpts := []rpc.ServerOption{rpc.WithLogger(logger), rpc.WithMetrics(collector)}
	if appConfig.CertFile != "" {
		serverOpts = append(serverOpts, rpc.WithTLS(appConfig.CertFile, appConfig.KeyFile))
	}
	srv := rpc.NewServer(appConfig.Addr, appConfig.Token, serverOpts...)
	if err := srv.Listen(); err != nil {
		logger.Fatal().Err(err).Str("addr", appConfig.Addr).Msg("failed to listen")
	}

	fw := framework.New(opts, srv.Addr(), framework.WithLogger(logger))
	if pages := initializers.SeedPages(appConfig); len(pages) > 0 {
		if err := fw.UpdatePageQueue(pages); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed page queue")
		}
	}
	dispatcherClient := initializers.DispatcherClient(ctx, appConfig)

	binary, err := os.Executable()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve instance binary")
	}

	spawn := spawner.NewProcessSpawner(binary, spawner.WithSpawnLogger(logger))
	prober := spawner.NewProber(instanceclient.NewForSlave,
		spawner.WithProbeCounter(collector.ProbeAttempts),
		spawner.WithProbeLogger(logger),
	)
	provisioner := instance.NewProvisioner(dispatcherClient, spawn, prober, fw.SelfURL,
		instance.WithProvisionerMetrics(collector),
		instance.WithProvisionerLogger(logger),
	)

	serviceOpts := []instance.Option{instance.WithLogger(logger)}
	if dispatcherClient != nil {
		serviceOpts = append(serviceOpts, instance.WithDispatcher(dispatcherClient))
	}
	service := instance.New(opts, fw, provisioner, serviceOpts...)
	service.RegisterHandlers(srv)
	service.SetTransport(srv)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown requested")
		if err := service.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("shutdown did not complete cleanly")
		}
	}()

	logger.Info().Str("addr", srv.Addr()).Msg("Starting Service")
	if err := srv.Serve(); err != nil {
		logger.Fatal().Err(err).Msg("failed to serve rpc")
	}
}
