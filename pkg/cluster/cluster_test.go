package cluster_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberql/emberql/pkg/cluster"
)

func TestRingOwnerIsStable(t *testing.T) {
	r := cluster.BuildRing([]string{"a", "b", "c"})
	assert.Equal(t, cluster.RingSize, 256) // sanity on the documented default

	owner, ok := r.Owner("some-key")
	require.True(t, ok)
	owner2, ok := r.Owner("some-key")
	require.True(t, ok)
	assert.Equal(t, owner, owner2)
}

func TestManagerJoinRebuildsRingAndReportsOwner(t *testing.T) {
	m := cluster.New("n1", "localhost:1")
	_, err := m.Owner("k")
	require.NoError(t, err)

	m.Join(cluster.Member{ID: "n2", Address: "localhost:2"})
	info := m.Info()
	assert.Len(t, info.Members, 2)

	m.Depart("n2")
	info = m.Info()
	assert.Len(t, info.Members, 1)
}

func TestHealthMonitorClassification(t *testing.T) {
	mgr := cluster.New("n1", "x")
	mgr.Join(cluster.Member{ID: "n2"})
	mgr.Join(cluster.Member{ID: "n3"})

	var failedPeer string
	hm := cluster.NewHealthMonitor(mgr, func(id string) { failedPeer = id })

	assert.Equal(t, cluster.HealthUnknown, hm.Classify())

	hm.ReportDown("n2")
	hm.ReportDown("n2")
	assert.Equal(t, cluster.HealthHealthy, hm.Classify())

	// Third failure opens the recovery window but does not yet fail the peer.
	hm.ReportDown("n2")
	assert.Equal(t, cluster.HealthHealthy, hm.Classify())
}

func TestLoopbackRPCDispatch(t *testing.T) {
	rpc := cluster.NewLoopbackRPC()
	rpc.Register("n2", "ping", func(ctx context.Context, from string, payload any) (any, error) {
		return "pong", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := rpc.Send(ctx, "n2", "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp)

	_, err = rpc.Send(ctx, "n3", "ping", nil)
	assert.Error(t, err)
}
