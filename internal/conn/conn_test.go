package conn

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/protocol"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// fakeBroker speaks just enough of the wire format to answer the
// ApiVersions bootstrap and one more request, using an in-process pipe
// instead of a real socket.
type fakeBroker struct {
	conn net.Conn
}

func newFakeBrokerPair(t *testing.T) (client net.Conn, broker *fakeBroker) {
	t.Helper()
	a, b := net.Pipe()
	return a, &fakeBroker{conn: b}
}

func (f *fakeBroker) readFrame(t *testing.T) (apiKey, version int16, correlationID int32, body *protocol.Reader) {
	t.Helper()
	var sizeBuf [4]byte
	_, err := io.ReadFull(f.conn, sizeBuf[:])
	require.NoError(t, err)
	size := binary.BigEndian.Uint32(sizeBuf[:])
	payload := make([]byte, size)
	_, err = io.ReadFull(f.conn, payload)
	require.NoError(t, err)

	r := protocol.NewReader(payload)
	apiKey, err = r.ReadInt16()
	require.NoError(t, err)
	version, err = r.ReadInt16()
	require.NoError(t, err)
	correlationID, err = r.ReadInt32()
	require.NoError(t, err)
	return apiKey, version, correlationID, r
}

func (f *fakeBroker) writeFrame(t *testing.T, correlationID int32, body *protocol.Writer) {
	t.Helper()
	out := protocol.NewWriter()
	out.WriteInt32(correlationID)
	out.WriteRaw(body.Bytes())
	out.PrependLengthInt32()
	_, err := f.conn.Write(out.Bytes())
	require.NoError(t, err)
}

func (f *fakeBroker) serveApiVersions(t *testing.T) {
	t.Helper()
	_, _, correlationID, body := f.readFrame(t)
	// ApiVersions request: two compact strings, no tagged trailer.
	_, err := body.ReadString(protocol.Compact)
	require.NoError(t, err)
	_, err = body.ReadString(protocol.Compact)
	require.NoError(t, err)

	resp := protocol.NewWriter()
	resp.WriteInt16(0) // error code
	protocol.WriteArray(resp, 1, protocol.Compact, true, func(w *protocol.Writer, i int) {
		w.WriteInt16(int16(registry.APIKeyProduce))
		w.WriteInt16(0)
		w.WriteInt16(9)
	})
	resp.WriteInt32(0) // throttle time
	f.writeFrame(t, correlationID, resp)
}

// TestDialBootstrapsApiVersions exercises Dial end to end over an
// in-process pipe standing in for the TCP socket.
func TestDialBootstrapsApiVersions(t *testing.T) {
	client, broker := newFakeBrokerPair(t)
	defer client.Close()
	defer broker.conn.Close()

	dialDone := make(chan struct{})
	var dialed *Conn
	var dialErr error
	go func() {
		defer close(dialDone)
		dialed, dialErr = dialTestConn(client)
	}()

	broker.serveApiVersions(t)
	<-dialDone

	require.NoError(t, dialErr)
	require.NotNil(t, dialed)
	v, ok := dialed.NegotiatedVersion(registry.APIKeyProduce)
	require.True(t, ok)
	require.EqualValues(t, 9, v)
	dialed.Close()
}

// dialTestConn wires Dial's internals around a pre-connected net.Conn so
// tests can drive both sides of the pipe without a real listener.
func dialTestConn(netConn net.Conn) (*Conn, error) {
	o := (&Options{MaxInflight: 8}).withDefaults()
	c := &Conn{
		netConn: netConn,
		opts:    o,
		tickets: make(map[int32]*ticket),
		sem:     make(chan struct{}, o.MaxInflight),
		doneCh:  make(chan struct{}),
	}
	c.diag = o.Diag
	c.raw = bufio.NewReader(netConn)

	go c.readLoop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.bootstrapAPIVersions(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func TestTeardownFailsOutstandingTickets(t *testing.T) {
	client, broker := newFakeBrokerPair(t)
	defer broker.conn.Close()

	dialDone := make(chan struct{})
	var dialed *Conn
	go func() {
		defer close(dialDone)
		dialed, _ = dialTestConn(client)
	}()
	broker.serveApiVersions(t)
	<-dialDone
	require.NotNil(t, dialed)

	sendErrCh := make(chan error, 1)
	go func() {
		req := &registry.ApiVersionsRequest{ClientSoftwareName: "t"}
		resp := &registry.ApiVersionsResponse{}
		sendErrCh <- dialed.Send(context.Background(), registry.APIKeyApiVersions, 3, req, resp)
	}()

	// Read and discard the request frame, then kill the broker side without
	// answering: the pending ticket must fail with a network error.
	broker.readFrame(t)
	broker.conn.Close()

	err := <-sendErrCh
	require.Error(t, err)
}

func TestSendNoResponseReturnsOnceWritten(t *testing.T) {
	client, broker := newFakeBrokerPair(t)
	defer client.Close()
	defer broker.conn.Close()

	dialDone := make(chan struct{})
	var dialed *Conn
	go func() {
		defer close(dialDone)
		dialed, _ = dialTestConn(client)
	}()
	broker.serveApiVersions(t)
	<-dialDone
	require.NotNil(t, dialed)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		broker.readFrame(t)
	}()

	req := &registry.ApiVersionsRequest{ClientSoftwareName: "t"}
	err := dialed.SendNoResponse(context.Background(), registry.APIKeyApiVersions, 3, req)
	require.NoError(t, err)
	<-readDone
	dialed.Close()
}
