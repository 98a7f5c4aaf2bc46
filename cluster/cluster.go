// Package cluster provides the membership and replicated registry
// facilities of the HA core on top of hashicorp/memberlist. Registry
// mutations spread through gossip broadcasts, with memberlist's periodic
// push/pull acting as anti-entropy for nodes that missed a broadcast.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"

	"github.com/haven-dev/haven/ha"
	"github.com/haven-dev/haven/internal/generic"
	"github.com/haven-dev/haven/internal/multierror"
)

type Cluster struct {
	conf       Config
	logger     kitlog.Logger
	kv         *kvStore
	ml         *memberlist.Memberlist
	broadcasts *memberlist.TransmitLimitedQueue

	mut       sync.Mutex
	listeners []ha.MembershipListener
}

// New creates the memberlist instance and starts listening for gossip.
// The node becomes a cluster of one until Join is called.
func New(conf Config) (*Cluster, error) {
	if conf.NodeName == "" {
		return nil, errors.New("cluster: node name is required")
	}

	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	cl := &Cluster{
		conf:   conf,
		logger: conf.Logger,
		kv:     newKVStore(),
	}

	cl.kv.broadcast = cl.queueBroadcast

	cl.broadcasts = &memberlist.TransmitLimitedQueue{
		RetransmitMult: conf.RetransmitMult,
		NumNodes: func() int {
			if cl.ml == nil {
				return 1
			}

			return cl.ml.NumMembers()
		},
	}

	mlConf := memberlist.DefaultLANConfig()
	mlConf.Name = conf.NodeName
	mlConf.BindAddr = conf.BindAddr
	mlConf.BindPort = conf.BindPort
	if conf.AdvertiseAddr != "" {
		mlConf.AdvertiseAddr = conf.AdvertiseAddr
	}

	mlConf.AdvertisePort = conf.AdvertisePort
	if mlConf.AdvertisePort == 0 {
		mlConf.AdvertisePort = conf.BindPort
	}
	mlConf.Delegate = &delegate{cluster: cl}
	mlConf.Events = &eventDelegate{cluster: cl}

	// Memberlist logs through the stdlib logger; ours is structured.
	mlConf.LogOutput = io.Discard

	ml, err := memberlist.Create(mlConf)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}

	cl.ml = ml

	return cl, nil
}

// SelfID returns the identifier of the local node.
func (cl *Cluster) SelfID() string {
	return cl.ml.LocalNode().Name
}

// Nodes returns the IDs of the currently live members, in lexicographic
// order.
func (cl *Cluster) Nodes() []string {
	members := cl.ml.Members()

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.Name)
	}

	generic.SortSlice(ids, false)

	return ids
}

// Join contacts the given addresses to merge with an existing cluster.
func (cl *Cluster) Join(addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}

	n, err := cl.ml.Join(addrs)
	if err != nil {
		return fmt.Errorf("join cluster: %w", err)
	}

	level.Info(cl.logger).Log("msg", "joined cluster", "contacted", n)

	return nil
}

// RegisterListener subscribes to membership changes. Listeners are invoked
// from the memberlist event goroutine, one event at a time.
func (cl *Cluster) RegisterListener(l ha.MembershipListener) {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	cl.listeners = append(cl.listeners, l)
}

func (cl *Cluster) listenersCopy() []ha.MembershipListener {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	listeners := make([]ha.MembershipListener, len(cl.listeners))
	copy(listeners, cl.listeners)

	return listeners
}

// Registry returns the replicated registry view backed by this cluster.
func (cl *Cluster) Registry() ha.Registry {
	return cl.kv
}

// Leave broadcasts a graceful leave and shuts the gossip listener down.
func (cl *Cluster) Leave(ctx context.Context) error {
	timeout := cl.conf.LeaveTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	errs := multierror.New[string]()

	if err := cl.ml.Leave(timeout); err != nil {
		errs.Add("leave", err)
	}

	if err := cl.ml.Shutdown(); err != nil {
		errs.Add("shutdown", err)
	}

	return errs.Combined()
}

// queueBroadcast enqueues a registry entry for gossip retransmission. A
// newer broadcast for the same key supersedes any older one still queued.
func (cl *Cluster) queueBroadcast(e kvEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		level.Error(cl.logger).Log("msg", "failed to encode registry broadcast", "err", err)
		return
	}

	cl.broadcasts.QueueBroadcast(&kvBroadcast{key: e.Key, data: data})
}

type kvBroadcast struct {
	key  string
	data []byte
}

func (b *kvBroadcast) Invalidates(other memberlist.Broadcast) bool {
	o, ok := other.(*kvBroadcast)
	return ok && o.key == b.key
}

func (b *kvBroadcast) Message() []byte {
	return b.data
}

func (b *kvBroadcast) Finished() {}
