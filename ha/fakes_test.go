package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRegistry is a process-local stand-in for the replicated registry.
// Sharing a single instance between several managers simulates the
// cluster-wide map.
type fakeRegistry struct {
	mut  sync.Mutex
	data map[string][]byte
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		data: make(map[string][]byte),
	}
}

func (r *fakeRegistry) Get(nodeID string) ([]byte, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()

	value, ok := r.data[nodeID]

	return value, ok
}

func (r *fakeRegistry) Put(nodeID string, value []byte) {
	r.mut.Lock()
	defer r.mut.Unlock()

	r.data[nodeID] = value
}

func (r *fakeRegistry) Remove(nodeID string) {
	r.mut.Lock()
	defer r.mut.Unlock()

	delete(r.data, nodeID)
}

func (r *fakeRegistry) Contains(nodeID string) bool {
	_, ok := r.Get(nodeID)
	return ok
}

func (r *fakeRegistry) Entries() map[string][]byte {
	r.mut.Lock()
	defer r.mut.Unlock()

	out := make(map[string][]byte, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}

	return out
}

// fakeMembership is a membership provider driven by the test.
type fakeMembership struct {
	mut       sync.Mutex
	selfID    string
	nodes     []string
	listeners []MembershipListener
	left      bool
}

func newFakeMembership(selfID string) *fakeMembership {
	return &fakeMembership{
		selfID: selfID,
		nodes:  []string{selfID},
	}
}

func (f *fakeMembership) SelfID() string {
	return f.selfID
}

func (f *fakeMembership) Nodes() []string {
	f.mut.Lock()
	defer f.mut.Unlock()

	nodes := make([]string, len(f.nodes))
	copy(nodes, f.nodes)

	return nodes
}

func (f *fakeMembership) RegisterListener(l MembershipListener) {
	f.mut.Lock()
	defer f.mut.Unlock()

	f.listeners = append(f.listeners, l)
}

func (f *fakeMembership) Leave(ctx context.Context) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	f.left = true

	return nil
}

func (f *fakeMembership) setNodes(nodes []string) {
	f.mut.Lock()
	defer f.mut.Unlock()

	f.nodes = make([]string, len(nodes))
	copy(f.nodes, nodes)
}

func (f *fakeMembership) listenersCopy() []MembershipListener {
	f.mut.Lock()
	defer f.mut.Unlock()

	listeners := make([]MembershipListener, len(f.listeners))
	copy(listeners, f.listeners)

	return listeners
}

func (f *fakeMembership) fireNodeAdded(nodeID string) {
	for _, l := range f.listenersCopy() {
		l.NodeAdded(nodeID)
	}
}

func (f *fakeMembership) fireNodeLeft(nodeID string) {
	for _, l := range f.listenersCopy() {
		l.NodeLeft(nodeID)
	}
}

// fakeDeployer records deployments in memory.
type fakeDeployer struct {
	mut        sync.Mutex
	seq        int
	deployed   map[string]DeploymentInfo
	failDeploy map[string]error
}

func newFakeDeployer() *fakeDeployer {
	return &fakeDeployer{
		deployed:   make(map[string]DeploymentInfo),
		failDeploy: make(map[string]error),
	}
}

func (d *fakeDeployer) Deploy(ctx context.Context, workload string, options json.RawMessage) (string, error) {
	d.mut.Lock()
	defer d.mut.Unlock()

	if err := d.failDeploy[workload]; err != nil {
		return "", err
	}

	var opts struct {
		HA bool `json:"ha"`
	}
	if len(options) > 0 {
		_ = json.Unmarshal(options, &opts)
	}

	d.seq++
	id := fmt.Sprintf("dep-%d", d.seq)

	d.deployed[id] = DeploymentInfo{
		WorkloadName: workload,
		Options:      options,
		HA:           opts.HA,
	}

	return id, nil
}

func (d *fakeDeployer) Undeploy(ctx context.Context, deploymentID string) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if _, ok := d.deployed[deploymentID]; !ok {
		return fmt.Errorf("unknown deployment: %s", deploymentID)
	}

	delete(d.deployed, deploymentID)

	return nil
}

func (d *fakeDeployer) Deployments() []string {
	d.mut.Lock()
	defer d.mut.Unlock()

	ids := make([]string, 0, len(d.deployed))
	for id := range d.deployed {
		ids = append(ids, id)
	}

	return ids
}

func (d *fakeDeployer) Deployment(deploymentID string) (DeploymentInfo, bool) {
	d.mut.Lock()
	defer d.mut.Unlock()

	info, ok := d.deployed[deploymentID]

	return info, ok
}

func (d *fakeDeployer) workloads() []string {
	d.mut.Lock()
	defer d.mut.Unlock()

	names := make([]string, 0, len(d.deployed))
	for _, info := range d.deployed {
		names = append(names, info.WorkloadName)
	}

	return names
}

// testNode bundles one simulated cluster member.
type testNode struct {
	membership *fakeMembership
	deployer   *fakeDeployer
	manager    *Manager
}

// testCluster drives several managers against a shared registry, playing
// the role of the membership provider: every node observes the same node
// list, and events are delivered to every live listener.
type testCluster struct {
	t        *testing.T
	registry *fakeRegistry
	mut      sync.Mutex
	nodes    map[string]*testNode
	order    []string
}

func newTestCluster(t *testing.T) *testCluster {
	return &testCluster{
		t:        t,
		registry: newFakeRegistry(),
		nodes:    make(map[string]*testNode),
	}
}

func testConfig(group string, quorumSize int) Config {
	conf := DefaultConfig()
	conf.Group = group
	conf.QuorumSize = quorumSize
	conf.ReconcileInterval = 10 * time.Millisecond
	conf.JoinPollInterval = 5 * time.Millisecond
	conf.JoinPollTimeout = 250 * time.Millisecond
	conf.DeployTimeout = time.Second
	conf.FailoverTimeout = 2 * time.Second
	conf.CallbackTimeout = time.Second

	return conf
}

func (tc *testCluster) liveIDs() []string {
	ids := make([]string, len(tc.order))
	copy(ids, tc.order)

	return ids
}

// addNode brings a new member up: it appears in everyone's node list, its
// manager publishes its HA info, and the other members get a node-added
// event.
func (tc *testCluster) addNode(nodeID string, conf Config) *testNode {
	tc.mut.Lock()

	tc.order = append(tc.order, nodeID)
	membership := newFakeMembership(nodeID)

	node := &testNode{
		membership: membership,
		deployer:   newFakeDeployer(),
	}
	tc.nodes[nodeID] = node

	ids := tc.liveIDs()
	for _, n := range tc.nodes {
		n.membership.setNodes(ids)
	}

	others := tc.others(nodeID)
	tc.mut.Unlock()

	manager, err := New(conf, membership, tc.registry, node.deployer)
	require.NoError(tc.t, err)
	node.manager = manager

	tc.t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = manager.Stop(ctx)
	})

	for _, n := range others {
		n.membership.fireNodeAdded(nodeID)
	}

	return node
}

func (tc *testCluster) others(nodeID string) []*testNode {
	others := make([]*testNode, 0, len(tc.nodes))
	for id, n := range tc.nodes {
		if id != nodeID {
			others = append(others, n)
		}
	}

	return others
}

func (tc *testCluster) node(nodeID string) *testNode {
	tc.mut.Lock()
	defer tc.mut.Unlock()

	return tc.nodes[nodeID]
}

func (tc *testCluster) removeLocked(nodeID string) []*testNode {
	delete(tc.nodes, nodeID)

	kept := tc.order[:0]
	for _, id := range tc.order {
		if id != nodeID {
			kept = append(kept, id)
		}
	}
	tc.order = kept

	ids := tc.liveIDs()

	survivors := make([]*testNode, 0, len(tc.nodes))
	for _, n := range tc.nodes {
		n.membership.setNodes(ids)
		survivors = append(survivors, n)
	}

	return survivors
}

// crashNode kills a member without a clean shutdown: its registry entry
// stays behind and the survivors get a node-left event.
func (tc *testCluster) crashNode(nodeID string) {
	tc.mut.Lock()
	survivors := tc.removeLocked(nodeID)
	tc.mut.Unlock()

	for _, n := range survivors {
		n.membership.fireNodeLeft(nodeID)
	}
}

// stopNode shuts a member down cleanly: its registry entry is removed
// before the node-left event reaches the survivors.
func (tc *testCluster) stopNode(nodeID string) {
	tc.mut.Lock()
	node := tc.nodes[nodeID]
	survivors := tc.removeLocked(nodeID)
	tc.mut.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(tc.t, node.manager.Stop(ctx))

	for _, n := range survivors {
		n.membership.fireNodeLeft(nodeID)
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func haOptions(t *testing.T) json.RawMessage {
	t.Helper()
	return json.RawMessage(`{"ha":true}`)
}
