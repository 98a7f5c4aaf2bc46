package cluster

import (
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
)

// eventDelegate translates memberlist node events into membership listener
// callbacks. Memberlist delivers events from a single goroutine, which
// gives listeners the one-event-at-a-time processing the HA computations
// rely on.
type eventDelegate struct {
	cluster *Cluster
}

func (d *eventDelegate) NotifyJoin(node *memberlist.Node) {
	cl := d.cluster

	// The first join notification is the local node bootstrapping itself,
	// delivered while memberlist.Create is still running.
	if cl.ml == nil || node.Name == cl.ml.LocalNode().Name {
		return
	}

	level.Debug(cl.logger).Log("msg", "node joined", "node", node.Name)

	for _, l := range cl.listenersCopy() {
		l.NodeAdded(node.Name)
	}
}

func (d *eventDelegate) NotifyLeave(node *memberlist.Node) {
	cl := d.cluster

	if cl.ml == nil || node.Name == cl.ml.LocalNode().Name {
		return
	}

	level.Debug(cl.logger).Log("msg", "node left", "node", node.Name)

	for _, l := range cl.listenersCopy() {
		l.NodeLeft(node.Name)
	}
}

func (d *eventDelegate) NotifyUpdate(node *memberlist.Node) {}
