package handler

import (
	"context"
	"encoding/json"

	"github.com/haven-dev/haven/ha"
	"github.com/haven-dev/haven/internal/future"
)

// Manager is the part of the HA coordinator the API depends on.
type Manager interface {
	DeployHA(workload string, options json.RawMessage) *future.Future[string]
	UndeployHA(ctx context.Context, deploymentID string) error
	QuorumAttained() bool
	Group() string
	PendingCount() int
	Snapshot() ha.NodeInfo
}

// Cluster is the part of the membership provider the API depends on.
type Cluster interface {
	SelfID() string
	Nodes() []string
}

// Deployer is the read side of the deployment executor.
type Deployer interface {
	Deployments() []string
	Deployment(deploymentID string) (ha.DeploymentInfo, bool)
}
