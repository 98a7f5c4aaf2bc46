package ha

import (
	"github.com/go-kit/log/level"
)

// checkQuorum recounts the live members of the local group and flips the
// quorum flag when the count crosses the configured size. The flip is
// edge-triggered: the reconciler consumes the flag, so repeated checks
// with an unchanged membership must not re-fire. Callers must hold m.mut.
func (m *Manager) checkQuorum() {
	count := 0

	for _, nodeID := range m.cluster.Nodes() {
		info, ok := m.lookupInfo(nodeID)
		if ok && info.Group == m.conf.Group {
			count++
		}
	}

	attained := count >= m.conf.QuorumSize

	switch {
	case attained && !m.attained.Load():
		level.Info(m.logger).Log(
			"msg", "quorum attained, deployments waiting on a quorum will now be deployed",
			"group", m.conf.Group,
			"members", count,
		)
		quorumTransitions.WithLabelValues("attained").Inc()
		m.attained.Store(true)

	case !attained && m.attained.Load():
		level.Info(m.logger).Log(
			"msg", "quorum lost, HA deployments will be undeployed until it is re-attained",
			"group", m.conf.Group,
			"members", count,
		)
		quorumTransitions.WithLabelValues("lost").Inc()
		m.attained.Store(false)
	}
}

// lookupInfo reads a node's published HA descriptor. Any read or decode
// problem counts as an absent entry: quorum computation never fails.
func (m *Manager) lookupInfo(nodeID string) (*NodeInfo, bool) {
	data, ok := m.registry.Get(nodeID)
	if !ok {
		return nil, false
	}

	info, err := DecodeNodeInfo(data)
	if err != nil {
		return nil, false
	}

	return info, true
}
