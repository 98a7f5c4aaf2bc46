package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/haven-dev/haven/api"
	"github.com/haven-dev/haven/cluster"
	"github.com/haven-dev/haven/deploy"
	"github.com/haven-dev/haven/ha"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func setupCluster(logger kitlog.Logger) (*cluster.Cluster, shutdownFunc) {
	conf := cluster.DefaultConfig()
	conf.NodeName = opts.Node.Name
	conf.BindAddr = opts.Gossip.BindAddr
	conf.BindPort = opts.Gossip.BindPort
	conf.AdvertiseAddr = opts.Gossip.AdvertiseAddr
	conf.AdvertisePort = opts.Gossip.AdvertisePort
	conf.Logger = logger

	cl, err := cluster.New(conf)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create cluster", "err", err)
		os.Exit(1)
	}

	shutdown := func(ctx context.Context) error {
		level.Info(logger).Log("msg", "leaving cluster")

		if err := cl.Leave(ctx); err != nil {
			return fmt.Errorf("leave cluster: %w", err)
		}

		return nil
	}

	return cl, shutdown
}

func setupDeployer(logger kitlog.Logger) *deploy.Deployer {
	registry := deploy.NewRegistry()
	deploy.RegisterBuiltins(registry, logger)

	return deploy.New(registry, logger)
}

func setupManager(cl *cluster.Cluster, deployer *deploy.Deployer, logger kitlog.Logger) (*ha.Manager, shutdownFunc) {
	conf := ha.DefaultConfig()
	conf.Group = opts.Node.Group
	conf.QuorumSize = opts.Cluster.QuorumSize
	conf.Logger = logger

	manager, err := ha.New(conf, cl, cl.Registry(), deployer)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create HA manager", "err", err)
		os.Exit(1)
	}

	manager.Start()

	shutdown := func(ctx context.Context) error {
		level.Info(logger).Log("msg", "stopping HA manager")

		if err := manager.Stop(ctx); err != nil {
			return fmt.Errorf("stop HA manager: %w", err)
		}

		return nil
	}

	return manager, shutdown
}

func setupAPIServer(
	wg *sync.WaitGroup,
	manager *ha.Manager,
	cl *cluster.Cluster,
	deployer *deploy.Deployer,
	logger kitlog.Logger,
) shutdownFunc {
	ctx, cancel := context.WithCancel(context.Background())
	router := api.CreateRouter(manager, cl, deployer)

	wg.Add(1)

	go func() {
		defer wg.Done()

		if err := api.StartServer(ctx, router, logger, opts.API.BindAddr); err != nil {
			level.Error(logger).Log("msg", "API server failed", "err", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		level.Info(logger).Log("msg", "shutting down API server")
		cancel()

		return nil
	}

	return shutdown
}
