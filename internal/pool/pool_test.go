package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/kerrors"
)

func TestGetDedupesInFlightOpen(t *testing.T) {
	var dials int32
	block := make(chan struct{})
	p := New(func(ctx context.Context, addr string) (*conn.Conn, error) {
		atomic.AddInt32(&dials, 1)
		<-block
		return nil, kerrors.Network(nil, "fake dial result")
	}, Options{})
	p.UpdateAddrs([]Node{{ID: 1, Addr: "broker-1:9092"}})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := p.Get(context.Background(), 1)
			results <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(block)

	err1 := <-results
	err2 := <-results
	require.Error(t, err1)
	require.Error(t, err2)
	require.EqualValues(t, 1, atomic.LoadInt32(&dials))
}

func TestGetUnknownNodeIsUserError(t *testing.T) {
	p := New(func(ctx context.Context, addr string) (*conn.Conn, error) {
		return nil, nil
	}, Options{})
	_, err := p.Get(context.Background(), 99)
	require.Error(t, err)
	require.True(t, kerrors.Is(err, kerrors.UserError))
}

func TestGetFirstAvailableSkipsFailingNodes(t *testing.T) {
	p := New(func(ctx context.Context, addr string) (*conn.Conn, error) {
		if addr == "good:9092" {
			return &conn.Conn{}, nil
		}
		return nil, kerrors.Network(nil, "down")
	}, Options{})
	p.UpdateAddrs([]Node{
		{ID: 1, Addr: "bad:9092"},
		{ID: 2, Addr: "good:9092"},
	})

	c, err := p.GetFirstAvailable(context.Background(), []int32{1, 2})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestUpdateAddrsEvictsOnAddrChange(t *testing.T) {
	var dials int32
	p := New(func(ctx context.Context, addr string) (*conn.Conn, error) {
		atomic.AddInt32(&dials, 1)
		return &conn.Conn{}, nil
	}, Options{})
	p.UpdateAddrs([]Node{{ID: 1, Addr: "a:9092"}})
	_, err := p.Get(context.Background(), 1)
	require.NoError(t, err)

	p.UpdateAddrs([]Node{{ID: 1, Addr: "b:9092"}})
	_, err = p.Get(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&dials))
}
