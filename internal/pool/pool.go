// Package pool manages one internal/conn.Conn per broker nodeId: lazy open
// with in-flight dedup, first-healthy-of-many lookup for bootstrap and
// coordinator discovery, and a cooldown so a node that just failed isn't
// retried on every subsequent request (spec.md §4.6).
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/eapache/go-resiliency/breaker"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/kerrors"
)

// Dialer opens a connection to a broker address; internal/conn.Dial
// satisfies this directly.
type Dialer func(ctx context.Context, addr string) (*conn.Conn, error)

// Node describes one broker's current address, as published by the
// metadata cache.
type Node struct {
	ID   int32
	Addr string
}

type entry struct {
	mu      sync.Mutex
	conn    *conn.Conn
	opening chan struct{}
	openErr error
	breaker *breaker.Breaker
}

// Pool holds at most one live Conn per nodeId.
type Pool struct {
	dial Dialer
	diag diagnostic.Diagnostic

	mu      sync.RWMutex
	entries map[int32]*entry
	addrs   map[int32]string

	breakerErrorThreshold   int
	breakerSuccessThreshold int
	breakerTimeout          time.Duration
}

// Options configures cooldown behavior; zero values fall back to sane
// defaults (5 consecutive failures opens the breaker for 30s).
type Options struct {
	BreakerErrorThreshold   int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration
	Diag                    diagnostic.Diagnostic
}

func New(dial Dialer, opts Options) *Pool {
	if opts.BreakerErrorThreshold <= 0 {
		opts.BreakerErrorThreshold = 5
	}
	if opts.BreakerSuccessThreshold <= 0 {
		opts.BreakerSuccessThreshold = 1
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Diag == nil {
		opts.Diag = diagnostic.Discard
	}
	return &Pool{
		dial:                    dial,
		diag:                    opts.Diag,
		entries:                 make(map[int32]*entry),
		addrs:                   make(map[int32]string),
		breakerErrorThreshold:   opts.BreakerErrorThreshold,
		breakerSuccessThreshold: opts.BreakerSuccessThreshold,
		breakerTimeout:          opts.BreakerTimeout,
	}
}

// UpdateAddrs records the current nodeId -> host:port bindings from a fresh
// metadata snapshot. A node whose address changed has its cached connection
// evicted so the next Get reconnects to the new address.
func (p *Pool) UpdateAddrs(nodes []Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nodes {
		if old, ok := p.addrs[n.ID]; ok && old != n.Addr {
			if e, ok := p.entries[n.ID]; ok {
				if e.conn != nil {
					e.conn.Close()
				}
				delete(p.entries, n.ID)
			}
		}
		p.addrs[n.ID] = n.Addr
	}
}

func (p *Pool) nodeEntry(nodeID int32) (*entry, string, bool) {
	p.mu.RLock()
	e, ok := p.entries[nodeID]
	addr, hasAddr := p.addrs[nodeID]
	p.mu.RUnlock()
	if !hasAddr {
		return nil, "", false
	}
	if ok {
		return e, addr, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok = p.entries[nodeID]
	if !ok {
		e = &entry{breaker: breaker.New(p.breakerErrorThreshold, p.breakerSuccessThreshold, p.breakerTimeout)}
		p.entries[nodeID] = e
	}
	return e, addr, true
}

// Get returns the live connection for nodeID, opening one if necessary and
// awaiting an already in-flight open from another caller (spec.md §4.6).
func (p *Pool) Get(ctx context.Context, nodeID int32) (*conn.Conn, error) {
	e, addr, ok := p.nodeEntry(nodeID)
	if !ok {
		return nil, kerrors.User("pool: no known address for node %d", nodeID)
	}
	return p.get(ctx, nodeID, addr, e)
}

func (p *Pool) get(ctx context.Context, nodeID int32, addr string, e *entry) (*conn.Conn, error) {
	e.mu.Lock()
	if e.conn != nil && !e.conn.IsClosed() {
		c := e.conn
		e.mu.Unlock()
		return c, nil
	}
	if e.opening != nil {
		ch := e.opening
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, kerrors.Timeout("pool: waiting for node %d open: %v", nodeID, ctx.Err())
		}
		e.mu.Lock()
		c, err := e.conn, e.openErr
		e.mu.Unlock()
		return c, err
	}

	ch := make(chan struct{})
	e.opening = ch
	e.mu.Unlock()

	var c *conn.Conn
	err := e.breaker.Run(func() error {
		var derr error
		c, derr = p.dial(ctx, addr)
		return derr
	})

	e.mu.Lock()
	if err == breaker.ErrBreakerOpen {
		err = kerrors.Network(err, "pool: node %d is in cooldown after repeated failures", nodeID)
	}
	e.conn = c
	e.openErr = err
	e.opening = nil
	close(ch)
	e.mu.Unlock()

	if err != nil {
		p.diag.Warn("node open failed", diagnostic.Int("node_id", int(nodeID)), diagnostic.String("addr", addr), diagnostic.Error(err))
		return nil, err
	}
	return c, nil
}

// GetFirstAvailable tries nodes in order and returns the first connection
// that opens successfully, for metadata/admin/coordinator-discovery
// requests and initial bootstrap from seed addresses.
func (p *Pool) GetFirstAvailable(ctx context.Context, nodeIDs []int32) (*conn.Conn, error) {
	var lastErr error
	for _, id := range nodeIDs {
		c, err := p.Get(ctx, id)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = kerrors.Network(nil, "pool: no candidate nodes")
	}
	return nil, lastErr
}

// MarkDead evicts nodeID's cached connection and records a breaker failure,
// used when a protocol error maps to a node-level fault (NOT_CONTROLLER,
// NETWORK_EXCEPTION) rather than a transport failure the Conn itself
// already observed.
func (p *Pool) MarkDead(nodeID int32) {
	p.mu.RLock()
	e, ok := p.entries[nodeID]
	p.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.mu.Unlock()
	e.breaker.Run(func() error { return kerrors.Network(nil, "marked dead") })
}

// Close tears down every open connection.
func (p *Pool) Close() {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[int32]*entry)
	p.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		if e.conn != nil {
			e.conn.Close()
		}
		e.mu.Unlock()
	}
}

// reconnectBackOff is the schedule a caller can use to retry Get after a
// transient failure, grounded on the teacher's own use of exponential
// backoff for reconnects. The pool itself performs a single dial attempt
// per Get; callers orchestrating retries (e.g. the metadata refresher)
// pull their schedule from here rather than each hand-rolling one.
func reconnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// RetryBackOff exposes reconnectBackOff's schedule to other internal
// packages (internal/metadata's refresher) that need to retry an operation
// against this pool with the same cadence.
func RetryBackOff() backoff.BackOff {
	return reconnectBackOff()
}
