package group

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Disconnected:       "disconnected",
		FindingCoordinator: "finding_coordinator",
		Joining:            "joining",
		Syncing:            "syncing",
		Stable:             "stable",
		Rebalancing:        "rebalancing",
		Leaving:            "leaving",
	}
	for s, want := range cases {
		require.Equal(t, want, s.String())
	}
}

func TestNewGroupStartsDisconnected(t *testing.T) {
	g := New(nil, Config{GroupID: "g1", SessionTimeoutMs: 9000})
	require.Equal(t, Disconnected, g.State())
	require.Nil(t, g.Assignment())
}

func TestRebalanceNeededSignalsOnce(t *testing.T) {
	g := New(nil, Config{GroupID: "g1"})
	ch := g.RebalanceNeeded()
	select {
	case <-ch:
		t.Fatal("should not be signaled yet")
	default:
	}
	g.mu.Lock()
	g.signalRebalance()
	g.mu.Unlock()
	select {
	case <-ch:
	default:
		t.Fatal("expected signal after signalRebalance")
	}
}
