// Package conn implements a single framed TCP connection to one broker:
// dial, optional TLS, the ApiVersions bootstrap, optional SASL handshake,
// and the correlation-id multiplexer described in spec.md §4.5. Connection
// pooling across brokers lives one layer up in internal/pool.
package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// Options configures a Conn at dial time.
type Options struct {
	ClientID      string
	TLS           *tls.Config
	DialTimeout   time.Duration
	MaxInflight   int
	SASL          *SASLConfig
	Diag          diagnostic.Diagnostic
	SoftwareName  string
	SoftwareVersion string
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.ClientID == "" {
		out.ClientID = "kafka-go-client"
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.MaxInflight <= 0 {
		out.MaxInflight = 128
	}
	if out.Diag == nil {
		out.Diag = diagnostic.Discard
	}
	if out.SoftwareName == "" {
		out.SoftwareName = "kafkaclient"
	}
	return &out
}

// ticket is one outstanding request awaiting its response.
type ticket struct {
	apiKey  registry.APIKey
	version int16
	entry   *registry.Entry
	resp    registry.Response
	done    chan error
	once    sync.Once
}

func (t *ticket) complete(err error) {
	t.once.Do(func() {
		t.done <- err
		close(t.done)
	})
}

// Conn is one multiplexed connection to a single broker.
type Conn struct {
	netConn net.Conn
	raw     *bufio.Reader

	opts *Options

	correlationID int32 // atomic

	mu      sync.Mutex
	tickets map[int32]*ticket
	closed  bool

	writeMu sync.Mutex
	sem     chan struct{}

	apiVersionsMu sync.RWMutex
	apiVersions   map[registry.APIKey]registry.ApiVersionRange

	diag diagnostic.Diagnostic

	doneCh chan struct{}
}

// Dial connects to addr, performs the ApiVersions bootstrap and, if
// configured, the SASL handshake+authenticate loop, then starts the reader
// goroutine (spec.md §4.5 open()).
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	o := opts.withDefaults()

	dialer := &net.Dialer{Timeout: o.DialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, kerrors.Network(err, "dial %s", addr)
	}
	if o.TLS != nil {
		netConn = tls.Client(netConn, o.TLS)
	}

	c := &Conn{
		netConn: netConn,
		raw:     bufio.NewReader(netConn),
		opts:    o,
		tickets: make(map[int32]*ticket),
		sem:     make(chan struct{}, o.MaxInflight),
		diag:    o.Diag.WithContext(diagnostic.String("remote_addr", addr)),
		doneCh:  make(chan struct{}),
	}

	go c.readLoop()

	if err := c.bootstrapAPIVersions(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if o.SASL != nil {
		if err := c.authenticateSASL(ctx, o.SASL); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.diag.Info("connection open")
	return c, nil
}

func (c *Conn) bootstrapAPIVersions(ctx context.Context) error {
	req := &registry.ApiVersionsRequest{
		ClientSoftwareName:    c.opts.SoftwareName,
		ClientSoftwareVersion: c.opts.SoftwareVersion,
	}
	resp := &registry.ApiVersionsResponse{}
	entry, err := registry.Lookup(registry.APIKeyApiVersions, 3)
	if err != nil {
		return err
	}
	if err := c.sendEntry(ctx, entry, req, resp); err != nil {
		return err
	}
	if resp.ErrorCode != 0 {
		return kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "ApiVersions")
	}
	versions := make(map[registry.APIKey]registry.ApiVersionRange, len(resp.APIVersions))
	for _, v := range resp.APIVersions {
		versions[registry.APIKey(v.APIKey)] = v
	}
	c.apiVersionsMu.Lock()
	c.apiVersions = versions
	c.apiVersionsMu.Unlock()
	return nil
}

// NegotiatedVersion returns the highest version this connection's broker
// advertises for apiKey that is also present in the local registry, or ok=false
// if the two have no overlap.
func (c *Conn) NegotiatedVersion(apiKey registry.APIKey) (int16, bool) {
	c.apiVersionsMu.RLock()
	r, ok := c.apiVersions[apiKey]
	c.apiVersionsMu.RUnlock()
	if !ok {
		return 0, false
	}
	local, ok := registry.MaxVersion(apiKey)
	if !ok {
		return 0, false
	}
	v := r.MaxVersion
	if local < v {
		v = local
	}
	if v < r.MinVersion {
		return 0, false
	}
	return v, true
}

// Send encodes req, frames it per spec.md §4.4, and blocks until the
// matching response is parsed into resp, ctx is done, or the connection
// fails. This realizes the spec's callback+promise duality as a single
// blocking call, the idiomatic Go shape for a synchronous RPC.
func (c *Conn) Send(ctx context.Context, apiKey registry.APIKey, version int16, req registry.Request, resp registry.Response) error {
	entry, err := registry.Lookup(apiKey, version)
	if err != nil {
		return err
	}
	return c.sendEntry(ctx, entry, req, resp)
}

// SendNoResponse writes req and returns as soon as the bytes are on the
// wire, without registering a ticket or waiting for a reply. This is the
// one framing the broker itself breaks the request/response symmetry for:
// a Produce sent with acks=0 gets no response frame at all, so a caller
// that went through Send would block forever waiting for a correlationId
// that will never arrive (spec.md §4.8 step 7).
func (c *Conn) SendNoResponse(ctx context.Context, apiKey registry.APIKey, version int16, req registry.Request) error {
	entry, err := registry.Lookup(apiKey, version)
	if err != nil {
		return err
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return kerrors.Timeout("send: waiting for in-flight window: %v", ctx.Err())
	case <-c.doneCh:
		return kerrors.Network(nil, "connection closed")
	}
	defer func() { <-c.sem }()

	correlationID := atomic.AddInt32(&c.correlationID, 1)

	body := protocol.NewWriter()
	req.Encode(body, entry.Encoding)

	frame := protocol.NewWriter()
	frame.WriteInt16(int16(entry.APIKey))
	frame.WriteInt16(entry.APIVersion)
	frame.WriteInt32(correlationID)
	frame.WriteString(&c.opts.ClientID, protocol.Compact)
	if entry.Flags.RequestHeaderTagged {
		frame.WriteTaggedFieldTrailer()
	}
	frame.WriteRaw(body.Bytes())
	frame.PrependLengthInt32()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return kerrors.Network(nil, "connection closed")
	}
	return c.write(frame.Bytes())
}

func (c *Conn) sendEntry(ctx context.Context, entry *registry.Entry, req registry.Request, resp registry.Response) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return kerrors.Timeout("send: waiting for in-flight window: %v", ctx.Err())
	case <-c.doneCh:
		return kerrors.Network(nil, "connection closed")
	}
	defer func() { <-c.sem }()

	correlationID := atomic.AddInt32(&c.correlationID, 1)

	body := protocol.NewWriter()
	req.Encode(body, entry.Encoding)

	frame := protocol.NewWriter()
	frame.WriteInt16(int16(entry.APIKey))
	frame.WriteInt16(entry.APIVersion)
	frame.WriteInt32(correlationID)
	frame.WriteString(&c.opts.ClientID, protocol.Compact)
	if entry.Flags.RequestHeaderTagged {
		frame.WriteTaggedFieldTrailer()
	}
	frame.WriteRaw(body.Bytes())
	frame.PrependLengthInt32()

	t := &ticket{apiKey: entry.APIKey, version: entry.APIVersion, entry: entry, resp: resp, done: make(chan error, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return kerrors.Network(nil, "connection closed")
	}
	c.tickets[correlationID] = t
	c.mu.Unlock()

	if err := c.write(frame.Bytes()); err != nil {
		c.mu.Lock()
		delete(c.tickets, correlationID)
		c.mu.Unlock()
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.tickets, correlationID)
		c.mu.Unlock()
		return kerrors.Timeout("request %s v%d: %v", entry.APIKey, entry.APIVersion, ctx.Err())
	case <-c.doneCh:
		return kerrors.Network(nil, "connection closed")
	}
}

func (c *Conn) write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.netConn.Write(b)
	if err != nil {
		return kerrors.Network(err, "write")
	}
	return nil
}

// readLoop reads frame after frame, matches each to its ticket by
// correlationId, and invokes the ticket's parser. Socket failure fails
// every outstanding ticket with NetworkError exactly once (spec.md §4.5).
func (c *Conn) readLoop() {
	for {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(c.raw, sizeBuf[:]); err != nil {
			c.teardown(kerrors.Network(err, "read frame size"))
			return
		}
		size := binary.BigEndian.Uint32(sizeBuf[:])
		payload := make([]byte, size)
		if _, err := io.ReadFull(c.raw, payload); err != nil {
			c.teardown(kerrors.Network(err, "read frame body"))
			return
		}

		r := protocol.NewReader(payload)
		correlationID, err := r.ReadInt32()
		if err != nil {
			c.teardown(kerrors.Wrap(kerrors.MalformedInput, err, "read correlationId"))
			return
		}

		c.mu.Lock()
		t, ok := c.tickets[correlationID]
		if ok {
			delete(c.tickets, correlationID)
		}
		c.mu.Unlock()
		if !ok {
			// Ticket already expired (timeout) or this is a stray frame;
			// discard per spec.md §4.5's "later matching response is
			// discarded" rule.
			continue
		}

		if t.entry.Flags.ResponseHeaderTagged {
			if err := r.ReadTaggedFieldTrailer(); err != nil {
				t.complete(err)
				continue
			}
		}
		if err := t.resp.Decode(r, t.entry.Encoding); err != nil {
			t.complete(err)
			continue
		}
		t.complete(nil)
	}
}

// teardown fails every outstanding ticket with err and closes the
// connection. Safe to call multiple times; only the first call has effect.
func (c *Conn) teardown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	tickets := c.tickets
	c.tickets = nil
	c.mu.Unlock()

	for _, t := range tickets {
		t.complete(err)
	}
	if c.doneCh != nil {
		close(c.doneCh)
	}
	if c.netConn != nil {
		c.netConn.Close()
	}
	if c.diag != nil {
		c.diag.Warn("connection closed", diagnostic.Error(err))
	}
}

// Close tears the connection down cleanly, failing outstanding tickets
// with a "closed" NetworkError.
func (c *Conn) Close() error {
	c.teardown(kerrors.Network(nil, "connection closed by caller"))
	return nil
}

// IsClosed reports whether the connection has already torn down.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.doneCh:
		return true
	default:
		return false
	}
}
