package ha

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log/level"
	"github.com/twmb/murmur3"

	"github.com/haven-dev/haven/internal/generic"
)

// errSimulatedCrash is returned by redeploy when the fault-injection hook
// is armed.
var errSimulatedCrash = errors.New("simulated crash during failover")

// chooseNode picks the failover node for a failed node. The choice is a
// pure function of (group, failedNodeID, eligible set), so every node
// computing it from the same membership snapshot arrives at the same
// answer. Eligible nodes are sorted by ID before indexing: the raw node
// list alone carries no ordering guarantee, and two nodes holding the same
// list in different orders would elect different owners.
func (m *Manager) chooseNode(group, failedNodeID string) (string, bool) {
	var eligible []string

	for _, nodeID := range m.cluster.Nodes() {
		info, ok := m.lookupInfo(nodeID)
		if ok && info.Group == group {
			eligible = append(eligible, nodeID)
		}
	}

	if len(eligible) == 0 {
		return "", false
	}

	generic.SortSlice(eligible, false)

	// Unlike a signed hash code, the murmur3 sum is unsigned, so the
	// modulo needs no normalization.
	h := murmur3.Sum32([]byte(failedNodeID))

	return eligible[int(h%uint32(len(eligible)))], true
}

// checkFailover runs the failover flow for a failed node whose registry
// entry is still present. Every live node runs this; only the elected node
// proceeds past the selector, all others no-op.
//
// Per-workload redeploy failures are logged and do not abort the rest of
// the pass. Only the overall deadline and the fault-injection hook abort
// it: the registry entry is then left in place so that a later node-left
// event on any live node resumes the failover.
func (m *Manager) checkFailover(failedNodeID string, info *NodeInfo) {
	chosen, ok := m.chooseNode(info.Group, failedNodeID)
	if !ok {
		level.Warn(m.logger).Log(
			"msg", "no failover candidates in group, workloads remain undeployed",
			"node", failedNodeID,
			"group", info.Group,
		)

		return
	}

	if chosen != m.selfID {
		return
	}

	level.Info(m.logger).Log(
		"msg", "node failed, this node will take over its deployments",
		"node", failedNodeID,
		"deployments", len(info.Deployments),
	)

	ctx, cancel := context.WithTimeout(context.Background(), m.conf.FailoverTimeout)
	defer cancel()

	for _, rec := range info.Deployments {
		err := m.redeploy(ctx, rec)
		if err == nil {
			redeployedWorkloads.Inc()
			level.Info(m.logger).Log("msg", "redeployed workload after failover", "workload", rec.WorkloadName)

			continue
		}

		if errors.Is(err, errSimulatedCrash) || ctx.Err() != nil {
			level.Error(m.logger).Log("msg", "failover aborted", "node", failedNodeID, "err", err)
			failovers.WithLabelValues("failed").Inc()
			m.notifyFailoverComplete(false)

			return
		}

		level.Error(m.logger).Log(
			"msg", "failed to redeploy workload during failover",
			"node", failedNodeID,
			"workload", rec.WorkloadName,
			"err", err,
		)
	}

	// Removing the entry is the durable signal that this failover is
	// finished.
	m.registry.Remove(failedNodeID)
	failovers.WithLabelValues("completed").Inc()
	m.notifyFailoverComplete(true)
}

// redeploy blocks until a workload from the failed node is running on this
// node, or the failover deadline expires.
func (m *Manager) redeploy(ctx context.Context, rec DeploymentRecord) error {
	if m.failDuringFailover.Load() {
		return errSimulatedCrash
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := m.deployer.Deploy(ctx, rec.WorkloadName, rec.Options)
	if err != nil {
		return err
	}

	m.addRecord(DeploymentRecord{
		DeploymentID: id,
		WorkloadName: rec.WorkloadName,
		Options:      rec.Options,
	})

	return nil
}

// notifyFailoverComplete delivers the completion callback on its own
// goroutine rather than the membership event path, with a bounded wait for
// it to return.
func (m *Manager) notifyFailoverComplete(success bool) {
	m.cbMut.Lock()
	cb := m.onFailoverComplete
	m.cbMut.Unlock()

	if cb == nil {
		return
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		cb(success)
	}()

	select {
	case <-done:
	case <-time.After(m.conf.CallbackTimeout):
		level.Warn(m.logger).Log("msg", "failover completion callback did not return in time")
	}
}
