package ha

import (
	"encoding/json"
	"fmt"

	"github.com/go-kit/log/level"
)

// DeploymentRecord describes a single HA deployment published to the rest
// of the cluster. The field layout is stable and versionless: nodes running
// different releases must be able to read each other's entries during a
// rolling upgrade.
type DeploymentRecord struct {
	DeploymentID string          `json:"dep_id"`
	WorkloadName string          `json:"workload_name"`
	Options      json.RawMessage `json:"options,omitempty"`
}

// NodeInfo is the HA descriptor a node publishes into the replicated
// registry under its own ID. It is owned and mutated exclusively by that
// node and read by everyone else.
type NodeInfo struct {
	Group       string             `json:"group"`
	Deployments []DeploymentRecord `json:"deployments"`
}

// Encode serializes the descriptor for publication.
func (inf *NodeInfo) Encode() ([]byte, error) {
	data, err := json.Marshal(inf)
	if err != nil {
		return nil, fmt.Errorf("encode node info: %w", err)
	}

	return data, nil
}

// DecodeNodeInfo parses a descriptor read from the registry.
func DecodeNodeInfo(data []byte) (*NodeInfo, error) {
	info := &NodeInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("decode node info: %w", err)
	}

	return info, nil
}

// addRecord appends a deployment record to the local descriptor and
// republishes it.
func (m *Manager) addRecord(rec DeploymentRecord) {
	m.infoMut.Lock()
	defer m.infoMut.Unlock()

	m.info.Deployments = append(m.info.Deployments, rec)
	m.publishLocked()
}

// removeRecord drops the record with the given deployment ID, if present,
// and republishes the descriptor.
func (m *Manager) removeRecord(deploymentID string) {
	m.infoMut.Lock()
	defer m.infoMut.Unlock()

	kept := m.info.Deployments[:0]

	for _, rec := range m.info.Deployments {
		if rec.DeploymentID != deploymentID {
			kept = append(kept, rec)
		}
	}

	m.info.Deployments = kept
	m.publishLocked()
}

// publishLocked puts the full serialized descriptor into the registry.
// Publishes always carry the complete structure: the registry is a plain
// replicated map, so a partial update would be visible to other nodes as
// the whole state. Callers must hold infoMut.
func (m *Manager) publishLocked() {
	data, err := m.info.Encode()
	if err != nil {
		level.Error(m.logger).Log("msg", "failed to encode HA info", "err", err)
		return
	}

	m.registry.Put(m.selfID, data)
}

// Snapshot returns a copy of the local HA descriptor.
func (m *Manager) Snapshot() NodeInfo {
	m.infoMut.Lock()
	defer m.infoMut.Unlock()

	deployments := make([]DeploymentRecord, len(m.info.Deployments))
	copy(deployments, m.info.Deployments)

	return NodeInfo{
		Group:       m.info.Group,
		Deployments: deployments,
	}
}
