package cluster

import (
	"encoding/json"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/require"
)

// newTestCluster builds a cluster around the kv store without a live
// memberlist: the delegate paths under test never touch the network.
func newTestCluster(t *testing.T) *Cluster {
	t.Helper()

	cl := &Cluster{
		conf:   Config{NodeName: "local", RetransmitMult: 3},
		logger: kitlog.NewNopLogger(),
		kv:     newKVStore(),
	}

	cl.kv.broadcast = cl.queueBroadcast
	cl.broadcasts = &memberlist.TransmitLimitedQueue{
		RetransmitMult: cl.conf.RetransmitMult,
		NumNodes:       func() int { return 3 },
	}

	return cl
}

func TestDelegate_NotifyMsgAppliesAndRelays(t *testing.T) {
	cl := newTestCluster(t)
	d := &delegate{cluster: cl}

	data, err := json.Marshal(kvEntry{Key: "n1", Value: []byte("info"), Version: 1})
	require.NoError(t, err)

	d.NotifyMsg(data)

	value, ok := cl.kv.Get("n1")
	require.True(t, ok)
	require.Equal(t, []byte("info"), value)

	// The applied entry is queued for retransmission to further nodes.
	msgs := cl.broadcasts.GetBroadcasts(0, 1024)
	require.Len(t, msgs, 1)
	require.JSONEq(t, string(data), string(msgs[0]))
}

func TestDelegate_NotifyMsgIgnoresStale(t *testing.T) {
	cl := newTestCluster(t)
	d := &delegate{cluster: cl}

	cl.kv.applyRemote(kvEntry{Key: "n1", Value: []byte("new"), Version: 5})

	data, err := json.Marshal(kvEntry{Key: "n1", Value: []byte("old"), Version: 2})
	require.NoError(t, err)

	d.NotifyMsg(data)

	value, _ := cl.kv.Get("n1")
	require.Equal(t, []byte("new"), value)

	// Stale entries are not relayed.
	require.Empty(t, cl.broadcasts.GetBroadcasts(0, 1024))
}

func TestDelegate_NotifyMsgDropsMalformed(t *testing.T) {
	cl := newTestCluster(t)
	d := &delegate{cluster: cl}

	d.NotifyMsg([]byte(`{"key":`))
	d.NotifyMsg(nil)

	require.Empty(t, cl.kv.Entries())
}

func TestDelegate_PushPullRoundTrip(t *testing.T) {
	src := newTestCluster(t)
	src.kv.Put("n1", []byte("one"))
	src.kv.Put("n2", []byte("two"))
	src.kv.Remove("n2")

	dst := newTestCluster(t)
	dst.kv.Put("n2", []byte("resurrected"))

	buf := (&delegate{cluster: src}).LocalState(true)
	require.NotEmpty(t, buf)

	(&delegate{cluster: dst}).MergeRemoteState(buf, true)

	require.True(t, dst.kv.Contains("n1"))
	require.False(t, dst.kv.Contains("n2"), "push/pull must carry tombstones")
}
