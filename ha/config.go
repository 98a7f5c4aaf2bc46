package ha

import (
	"time"

	kitlog "github.com/go-kit/log"
)

// DefaultGroup is the HA group used when none is configured.
const DefaultGroup = "__DEFAULT__"

type Config struct {
	// Group is the HA group of the local node. Workloads only fail over
	// between nodes of the same group.
	Group string

	// QuorumSize is the number of live group members required before HA
	// workloads may run. Must be positive.
	QuorumSize int

	// ReconcileInterval is how often the pending queue is drained (with a
	// quorum) or active HA workloads are torn down (without one).
	ReconcileInterval time.Duration

	// JoinPollInterval and JoinPollTimeout bound the wait for a joined
	// node's HA info to appear in the registry.
	JoinPollInterval time.Duration
	JoinPollTimeout  time.Duration

	// DeployTimeout bounds a single deploy or undeploy call.
	DeployTimeout time.Duration

	// FailoverTimeout bounds the redeployment of all workloads of a single
	// failed node.
	FailoverTimeout time.Duration

	// CallbackTimeout bounds the wait for the failover completion callback
	// to return.
	CallbackTimeout time.Duration

	Logger kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		Group:             DefaultGroup,
		QuorumSize:        1,
		ReconcileInterval: 1 * time.Second,
		JoinPollInterval:  200 * time.Millisecond,
		JoinPollTimeout:   10 * time.Second,
		DeployTimeout:     30 * time.Second,
		FailoverTimeout:   2 * time.Minute,
		CallbackTimeout:   10 * time.Second,
		Logger:            kitlog.NewNopLogger(),
	}
}
