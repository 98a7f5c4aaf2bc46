package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// RegisterBuiltins registers the workloads shipped with the server binary.
func RegisterBuiltins(r *Registry, logger kitlog.Logger) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	r.Register("heartbeat", func(options json.RawMessage) (Workload, error) {
		return newHeartbeat(options, logger)
	})
}

type heartbeatOptions struct {
	IntervalMS int    `json:"interval_ms"`
	Message    string `json:"message"`
}

// heartbeat is a trivial long-running workload that logs a message at a
// fixed interval. Useful for demos and for watching failovers happen.
type heartbeat struct {
	logger   kitlog.Logger
	interval time.Duration
	message  string
	cancel   context.CancelFunc
	done     chan struct{}
}

func newHeartbeat(options json.RawMessage, logger kitlog.Logger) (*heartbeat, error) {
	opts := heartbeatOptions{
		IntervalMS: 5000,
		Message:    "alive",
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &opts); err != nil {
			return nil, fmt.Errorf("parse heartbeat options: %w", err)
		}
	}

	if opts.IntervalMS <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %d", opts.IntervalMS)
	}

	return &heartbeat{
		logger:   logger,
		interval: time.Duration(opts.IntervalMS) * time.Millisecond,
		message:  opts.Message,
	}, nil
}

func (h *heartbeat) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				level.Info(h.logger).Log("msg", "heartbeat", "message", h.message)
			}
		}
	}()

	return nil
}

func (h *heartbeat) Stop(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
