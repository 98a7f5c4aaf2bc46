package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"

	"github.com/haven-dev/haven/cluster"
)

const shutdownTimeout = 30 * time.Second

// join keeps trying to merge with the cluster at the given addresses,
// backing off between attempts. A node that starts before its peers must
// not give up just because nobody is listening yet.
func join(ctx context.Context, cl *cluster.Cluster, logger kitlog.Logger, addrs []string) {
	var (
		backoff = 1 * time.Second
		max     = 30 * time.Second
	)

	for {
		err := cl.Join(addrs)
		if err == nil {
			return
		}

		level.Error(logger).Log("msg", "failed to join cluster", "err", err)

		backoff = backoff * 2
		if backoff > max {
			backoff = max
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Println("cli error:", err)
		}

		os.Exit(2)
	}

	wg := sync.WaitGroup{}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Initialize all components.
	logger, closeLogger := setupLogger()
	cl, closeCluster := setupCluster(logger)
	deployer := setupDeployer(logger)
	manager, closeManager := setupManager(cl, deployer, logger)
	closeAPIServer := setupAPIServer(&wg, manager, cl, deployer, logger)

	// The manager must remove its registry entry before the node leaves
	// the cluster, otherwise the leave looks like a crash to the others.
	shutdownOrder := []shutdownFunc{
		closeAPIServer,
		closeManager,
		closeCluster,
		closeLogger,
	}

	joinCtx, cancelJoin := context.WithCancel(context.Background())
	if addrs := parseAddrs(opts.Cluster.JoinAddrs); len(addrs) > 0 {
		go join(joinCtx, cl, logger, addrs)
	}

	// Block until we receive a signal to shut down.
	<-interrupt
	cancelJoin()
	level.Info(logger).Log("msg", "received interrupt signal, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, f := range shutdownOrder {
		if err := f(ctx); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
		}
	}

	wg.Wait()
}
