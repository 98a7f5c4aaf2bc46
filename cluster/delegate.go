package cluster

import (
	"encoding/json"

	"github.com/go-kit/log/level"
)

// delegate implements memberlist.Delegate, carrying registry entries over
// gossip broadcasts and full snapshots over push/pull.
type delegate struct {
	cluster *Cluster
}

func (d *delegate) NodeMeta(limit int) []byte {
	return nil
}

func (d *delegate) NotifyMsg(data []byte) {
	if len(data) == 0 {
		return
	}

	var e kvEntry
	if err := json.Unmarshal(data, &e); err != nil {
		level.Warn(d.cluster.logger).Log("msg", "dropped malformed registry broadcast", "err", err)
		return
	}

	// Re-queue entries that changed the local replica so the gossip keeps
	// spreading beyond the first hop.
	if d.cluster.kv.applyRemote(e) {
		d.cluster.queueBroadcast(e)
	}
}

func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return d.cluster.broadcasts.GetBroadcasts(overhead, limit)
}

func (d *delegate) LocalState(join bool) []byte {
	data, err := json.Marshal(d.cluster.kv.snapshot())
	if err != nil {
		level.Error(d.cluster.logger).Log("msg", "failed to encode registry snapshot", "err", err)
		return nil
	}

	return data
}

func (d *delegate) MergeRemoteState(buf []byte, join bool) {
	if len(buf) == 0 {
		return
	}

	var state kvState
	if err := json.Unmarshal(buf, &state); err != nil {
		level.Warn(d.cluster.logger).Log("msg", "dropped malformed registry snapshot", "err", err)
		return
	}

	d.cluster.kv.merge(state)
}
