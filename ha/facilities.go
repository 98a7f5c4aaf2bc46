package ha

import (
	"context"
	"encoding/json"
)

// Membership is the cluster membership provider. Implementations must
// guarantee that every node processing the same membership event observes
// the same node list, which is what makes the quorum and failover
// computations agree across the cluster.
type Membership interface {
	// SelfID returns the identifier of the local node.
	SelfID() string

	// Nodes returns the identifiers of the currently live nodes.
	Nodes() []string

	// RegisterListener subscribes to membership changes. Listeners are
	// invoked one event at a time.
	RegisterListener(l MembershipListener)

	// Leave removes the local node from the cluster.
	Leave(ctx context.Context) error
}

// MembershipListener receives membership change notifications.
type MembershipListener interface {
	NodeAdded(nodeID string)
	NodeLeft(nodeID string)
}

// Registry is a cluster-wide replicated map keyed by node ID. An entry for
// a node exists exactly as long as the node has neither left cleanly nor
// been failed over: a lingering entry for an absent node means failover
// work is still outstanding.
type Registry interface {
	Get(nodeID string) ([]byte, bool)
	Put(nodeID string, value []byte)
	Remove(nodeID string)
	Contains(nodeID string) bool
	Entries() map[string][]byte
}

// DeploymentInfo describes a deployment known to the executor.
type DeploymentInfo struct {
	WorkloadName string
	Options      json.RawMessage
	HA           bool
}

// Deployer executes workloads on the local node. The options blob is
// opaque to the HA layer and is carried verbatim through failovers.
type Deployer interface {
	// Deploy starts a workload and returns its deployment ID.
	Deploy(ctx context.Context, workload string, options json.RawMessage) (string, error)

	// Undeploy stops a previously deployed workload.
	Undeploy(ctx context.Context, deploymentID string) error

	// Deployments lists the IDs of all active deployments.
	Deployments() []string

	// Deployment returns information about an active deployment.
	Deployment(deploymentID string) (DeploymentInfo, bool)
}
