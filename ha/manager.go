// Package ha contains the high-availability coordination core: it decides
// whether the local group has a quorum of live members, defers HA
// deployments until one exists, and fails the workloads of a crashed node
// over to a surviving node.
//
// Quorum and failover are computed synchronously as membership events
// arrive. The membership provider guarantees that every node processing
// the same event observes the same node list, so every node arrives at the
// same failover decision without a central coordinator. The replicated
// registry holds one entry per node describing its group and HA
// deployments; a node removes its own entry on clean shutdown, which is
// how the rest of the cluster tells a clean exit from a crash.
package ha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/haven-dev/haven/internal/future"
)

// Manager owns all HA coordination state for the local node. All
// membership event handling goes through a single mutex: the correctness
// of the distributed computation depends on events being processed one at
// a time against a consistent node-list snapshot.
type Manager struct {
	conf     Config
	logger   kitlog.Logger
	cluster  Membership
	registry Registry
	deployer Deployer
	selfID   string

	// mut serializes membership event handling and quorum checks.
	mut sync.Mutex

	infoMut sync.Mutex
	info    NodeInfo

	pending  *pendingQueue
	attained atomic.Bool

	cbMut              sync.Mutex
	onFailoverComplete func(success bool)

	failDuringFailover atomic.Bool
	stopped            atomic.Bool
	killed             atomic.Bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a manager, publishes the local node's empty HA descriptor
// into the registry, and computes the initial quorum state. Call Start to
// begin periodic reconciliation.
func New(conf Config, cluster Membership, registry Registry, deployer Deployer) (*Manager, error) {
	if conf.QuorumSize <= 0 {
		return nil, errors.New("ha: quorum size must be positive")
	}

	if conf.Group == "" {
		conf.Group = DefaultGroup
	}

	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	m := &Manager{
		conf:     conf,
		logger:   conf.Logger,
		cluster:  cluster,
		registry: registry,
		deployer: deployer,
		selfID:   cluster.SelfID(),
		pending:  newPendingQueue(),
		stop:     make(chan struct{}),
		info: NodeInfo{
			Group:       conf.Group,
			Deployments: []DeploymentRecord{},
		},
	}

	m.infoMut.Lock()
	m.publishLocked()
	m.infoMut.Unlock()

	cluster.RegisterListener(m)

	m.mut.Lock()
	m.checkQuorum()
	m.mut.Unlock()

	return m, nil
}

// Start launches the periodic reconciler.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.reconcileLoop()
}

func (m *Manager) reconcileLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.conf.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reconcile()
		}
	}
}

// reconcile runs on the timer. The quorum is recomputed first: a joiner
// whose registry entry propagated after the join-poll ceiling is picked up
// here, with no further membership event needed. The whole tick holds the
// event mutex, so its quorum-dependent branch cannot interleave with a
// membership handler flipping the flag mid-deploy.
func (m *Manager) reconcile() {
	m.mut.Lock()
	defer m.mut.Unlock()

	m.checkQuorum()

	if m.attained.Load() {
		m.deployPending()
	} else {
		m.undeployAll()
	}
}

// deployPending drains the queue of deployments that were waiting for a
// quorum. Each entry is attempted at most once per tick: an entry that
// gets re-deferred because the quorum flipped mid-drain waits for the next
// tick.
func (m *Manager) deployPending() {
	n := m.pending.Len()
	if n == 0 {
		return
	}

	level.Info(m.logger).Log("msg", "deploying HA workloads that were waiting for a quorum", "count", n)

	for i := 0; i < n; i++ {
		dep, ok := m.pending.Pop()
		if !ok {
			return
		}

		m.deployWithFuture(dep.workload, dep.options, dep.fut)
	}
}

// undeployAll tears down every HA workload on this node and re-queues it,
// so it redeploys automatically once the quorum returns.
func (m *Manager) undeployAll() {
	for _, id := range m.deployer.Deployments() {
		dep, ok := m.deployer.Deployment(id)
		if !ok || !dep.HA {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.conf.DeployTimeout)
		err := m.deployer.Undeploy(ctx, id)
		cancel()

		if err != nil {
			level.Error(m.logger).Log(
				"msg", "failed to undeploy HA workload on lost quorum",
				"deployment_id", id,
				"workload", dep.WorkloadName,
				"err", err,
			)

			continue
		}

		m.removeRecord(id)

		level.Info(m.logger).Log(
			"msg", "undeployed HA workload, no quorum",
			"deployment_id", id,
			"workload", dep.WorkloadName,
		)

		fut := future.New[string]()
		m.watchRedeploy(dep.WorkloadName, fut)
		m.pending.Push(pendingDeployment{
			workload: dep.WorkloadName,
			options:  dep.Options,
			fut:      fut,
		})
	}
}

// watchRedeploy logs the outcome of a deployment that was re-queued after
// a lost quorum, since no caller is waiting on its future anymore.
func (m *Manager) watchRedeploy(workload string, fut *future.Future[string]) {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		select {
		case <-m.stop:
		case <-fut.Done():
			if _, err := fut.Result(); err != nil {
				level.Error(m.logger).Log("msg", "failed to redeploy workload after quorum was re-attained", "workload", workload, "err", err)
			} else {
				level.Info(m.logger).Log("msg", "redeployed workload after quorum was re-attained", "workload", workload)
			}
		}
	}()
}

// DeployHA deploys an HA workload, or defers it until a quorum is
// attained. Deferral is not an error: the returned future resolves once
// the workload is eventually deployed.
func (m *Manager) DeployHA(workload string, options json.RawMessage) *future.Future[string] {
	fut := future.New[string]()
	m.deployWithFuture(workload, options, fut)

	return fut
}

func (m *Manager) deployWithFuture(workload string, options json.RawMessage, fut *future.Future[string]) {
	if !m.attained.Load() {
		level.Info(m.logger).Log("msg", "quorum not attained, deployment deferred", "workload", workload)
		m.pending.Push(pendingDeployment{workload: workload, options: options, fut: fut})

		return
	}

	id, err := m.doDeploy(workload, options)
	if err != nil {
		fut.Fail(err)
		return
	}

	fut.Complete(id)
}

// doDeploy submits the workload to the deployment executor and, on
// success, announces the new deployment to the rest of the cluster.
func (m *Manager) doDeploy(workload string, options json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.conf.DeployTimeout)
	defer cancel()

	id, err := m.deployer.Deploy(ctx, workload, options)
	if err != nil {
		return "", fmt.Errorf("deploy %s: %w", workload, err)
	}

	m.addRecord(DeploymentRecord{
		DeploymentID: id,
		WorkloadName: workload,
		Options:      options,
	})

	return id, nil
}

// UndeployHA stops an HA deployment and removes its record from the local
// descriptor.
func (m *Manager) UndeployHA(ctx context.Context, deploymentID string) error {
	if err := m.deployer.Undeploy(ctx, deploymentID); err != nil {
		return fmt.Errorf("undeploy %s: %w", deploymentID, err)
	}

	m.removeRecord(deploymentID)

	return nil
}

// NodeAdded implements MembershipListener. The joined node's HA info may
// not have propagated into the registry yet, so the quorum check is
// retried off the event path until the entry appears or the wait ceiling
// is hit.
func (m *Manager) NodeAdded(nodeID string) {
	if m.stopped.Load() {
		return
	}

	m.wg.Add(1)
	go m.checkQuorumWhenAdded(nodeID)
}

func (m *Manager) checkQuorumWhenAdded(nodeID string) {
	defer m.wg.Done()

	deadline := time.Now().Add(m.conf.JoinPollTimeout)

	for {
		if m.stopped.Load() {
			return
		}

		if m.registry.Contains(nodeID) {
			m.mut.Lock()
			m.checkQuorum()
			m.mut.Unlock()

			return
		}

		if time.Now().After(deadline) {
			level.Warn(m.logger).Log("msg", "timed out waiting for HA info of joined node to appear", "node", nodeID)
			return
		}

		select {
		case <-m.stop:
			return
		case <-time.After(m.conf.JoinPollInterval):
		}
	}
}

// NodeLeft implements MembershipListener. A lingering registry entry for
// the left node means it did not shut down cleanly and its workloads must
// be failed over. Registry entries for nodes that are not in the live list
// at all are failovers that never completed, left behind by a failover
// node that itself failed; they are resumed here as well, which makes
// failover self-healing.
func (m *Manager) NodeLeft(nodeID string) {
	if m.stopped.Load() {
		return
	}

	m.mut.Lock()
	defer m.mut.Unlock()

	m.checkQuorum()

	if data, ok := m.registry.Get(nodeID); ok {
		info, err := DecodeNodeInfo(data)
		if err != nil {
			level.Error(m.logger).Log("msg", "unreadable HA info for failed node", "node", nodeID, "err", err)
		} else {
			m.checkFailover(nodeID, info)
		}
	}

	live := make(map[string]struct{})
	for _, id := range m.cluster.Nodes() {
		live[id] = struct{}{}
	}

	for id, data := range m.registry.Entries() {
		if _, ok := live[id]; ok || id == nodeID {
			continue
		}

		info, err := DecodeNodeInfo(data)
		if err != nil {
			level.Error(m.logger).Log("msg", "unreadable HA info for orphaned node", "node", id, "err", err)
			continue
		}

		m.checkFailover(id, info)
	}
}

// SetFailoverCompleteCallback registers a callback invoked after every
// failover attempt this node owned, with its outcome. Primarily an
// observability and testing hook.
func (m *Manager) SetFailoverCompleteCallback(cb func(success bool)) {
	m.cbMut.Lock()
	m.onFailoverComplete = cb
	m.cbMut.Unlock()
}

// FailDuringFailover makes the next owned failover fail before removing
// the registry entry, as if the node crashed mid-failover. Test seam: the
// leftover entry must be recovered by orphan resumption like any other
// incomplete failover.
func (m *Manager) FailDuringFailover(fail bool) {
	m.failDuringFailover.Store(fail)
}

// QuorumAttained reports whether the local group currently has a quorum.
func (m *Manager) QuorumAttained() bool {
	return m.attained.Load()
}

// Group returns the HA group of the local node.
func (m *Manager) Group() string {
	return m.conf.Group
}

// PendingCount returns the number of deployments waiting for a quorum.
func (m *Manager) PendingCount() int {
	return m.pending.Len()
}

// Killed reports whether the manager was taken down via SimulateKill.
func (m *Manager) Killed() bool {
	return m.killed.Load()
}

// SimulateKill drops out of the cluster without removing the local
// registry entry, as if the process had crashed. Test seam.
func (m *Manager) SimulateKill(ctx context.Context) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	m.killed.Store(true)
	close(m.stop)
	m.wg.Wait()

	if err := m.cluster.Leave(ctx); err != nil {
		return fmt.Errorf("leave cluster: %w", err)
	}

	return nil
}

// Stop cancels the reconciler and removes the local registry entry. The
// absence of the entry is what tells the other nodes this was a clean exit
// and no failover is needed. The caller is expected to leave the cluster
// afterwards.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(m.stop)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for background tasks: %w", ctx.Err())
	}

	m.registry.Remove(m.selfID)

	return nil
}
