// Package metadata is the single-writer/multi-reader cluster topology
// cache of spec.md §4.7: refreshes run on the calling goroutine and are
// serialized by a mutex, so one writer at a time publishes a new Snapshot by
// atomically swapping a pointer, and readers never block behind a refresh
// and never observe a partially-updated snapshot.
package metadata

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff"
	"github.com/cespare/xxhash"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/pool"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// PartitionInfo is the per-partition view a caller needs to route a
// produce or fetch request: the current leader and the in-sync replica set.
type PartitionInfo struct {
	Topic     string
	Partition int32
	LeaderID  int32
	Replicas  []int32
	ISR       []int32
}

// Snapshot is one immutable view of cluster topology. Callers hold a
// *Snapshot for the lifetime of one operation; a concurrent refresh
// replaces the Cache's pointer, never this value.
type Snapshot struct {
	ControllerID int32
	Brokers      map[int32]pool.Node
	Partitions   map[string]map[int32]PartitionInfo // topic -> partition -> info
	fingerprint  uint64
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Brokers:    make(map[int32]pool.Node),
		Partitions: make(map[string]map[int32]PartitionInfo),
	}
}

// Leader returns the leader nodeId for topic/partition, or ok=false if the
// snapshot has no binding for it, or the broker reported no current leader
// (LeaderID -1) — both cases mean the caller should trigger a refresh
// instead of dialing a leader that doesn't exist.
func (s *Snapshot) Leader(topic string, partition int32) (int32, bool) {
	parts, ok := s.Partitions[topic]
	if !ok {
		return 0, false
	}
	p, ok := parts[partition]
	if !ok || p.LeaderID == -1 {
		return 0, false
	}
	return p.LeaderID, true
}

// PartitionCount returns how many partitions topic has in this snapshot.
func (s *Snapshot) PartitionCount(topic string) int {
	return len(s.Partitions[topic])
}

// Fingerprint returns a cheap identity hash for the snapshot's topology,
// stable across refreshes that see no change — used by the idempotent
// refresh check in Cache.refreshLocked so an unchanged topology never
// triggers a needless pointer swap or stale-read churn.
func (s *Snapshot) Fingerprint() uint64 { return s.fingerprint }

func computeFingerprint(brokers map[int32]pool.Node, partitions map[string]map[int32]PartitionInfo) uint64 {
	var topics []string
	for t := range partitions {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	h := xxhash.New()
	for _, t := range topics {
		h.Write([]byte(t))
		parts := partitions[t]
		var indexes []int32
		for p := range parts {
			indexes = append(indexes, p)
		}
		sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
		for _, idx := range indexes {
			p := parts[idx]
			writeInt64(h, int64(p.Partition))
			writeInt64(h, int64(p.LeaderID))
		}
	}
	var nodeIDs []int32
	for id := range brokers {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		h.Write([]byte(brokers[id].Addr))
	}
	return h.Sum64()
}

func writeInt64(h *xxhash.Digest, v int64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}

// Requester is the one connection-level capability the cache needs: send a
// Metadata request to any currently-reachable broker. internal/pool's
// GetFirstAvailable plus conn.Conn.Send satisfy this via a thin adapter at
// construction time.
type Requester interface {
	RequestMetadata(ctx context.Context, topics []string) (*registry.MetadataResponse, error)
}

// Cache is the atomic-swap snapshot holder.
type Cache struct {
	req  Requester
	diag diagnostic.Diagnostic

	snap atomic.Value // *Snapshot

	mu          sync.Mutex // serializes refreshLocked; readers never take this
	refreshBack backoff.BackOff
}

func New(req Requester, diag diagnostic.Diagnostic) *Cache {
	if diag == nil {
		diag = diagnostic.Discard
	}
	c := &Cache{req: req, diag: diag, refreshBack: pool.RetryBackOff()}
	c.snap.Store(emptySnapshot())
	return c
}

// Current returns the latest published snapshot without blocking on any
// in-flight refresh.
func (c *Cache) Current() *Snapshot {
	return c.snap.Load().(*Snapshot)
}

// Refresh fetches topology for topics (nil = all topics the broker knows
// about) and publishes the result. Concurrent Refresh calls serialize on an
// internal mutex; Current() is never blocked by this.
func (c *Cache) Refresh(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx, topics)
}

func (c *Cache) refreshLocked(ctx context.Context, topics []string) error {
	resp, err := c.req.RequestMetadata(ctx, topics)
	if err != nil {
		return err
	}

	brokers := make(map[int32]pool.Node, len(resp.Brokers))
	for _, b := range resp.Brokers {
		brokers[b.NodeID] = pool.Node{ID: b.NodeID, Addr: joinHostPort(b.Host, b.Port)}
	}

	partitions := make(map[string]map[int32]PartitionInfo, len(resp.Topics))
	for _, t := range resp.Topics {
		if t.ErrorCode != 0 {
			c.diag.Warn("metadata refresh: topic error", diagnostic.String("topic", t.Name), diagnostic.Int("error_code", int(t.ErrorCode)))
			continue
		}
		parts := make(map[int32]PartitionInfo, len(t.Partitions))
		for _, p := range t.Partitions {
			parts[p.PartitionIndex] = PartitionInfo{
				Topic:     t.Name,
				Partition: p.PartitionIndex,
				LeaderID:  p.LeaderID,
				Replicas:  p.ReplicaNodes,
				ISR:       p.IsrNodes,
			}
		}
		partitions[t.Name] = parts
	}

	next := &Snapshot{ControllerID: resp.ControllerID, Brokers: brokers, Partitions: partitions}
	next.fingerprint = computeFingerprint(brokers, partitions)

	prev := c.Current()
	if prev.fingerprint != 0 && prev.fingerprint == next.fingerprint {
		c.diag.Debug("metadata refresh: topology unchanged")
		return nil
	}
	c.snap.Store(next)
	c.diag.Info("metadata refreshed", diagnostic.Int("topics", len(partitions)), diagnostic.Int("brokers", len(brokers)))
	return nil
}

// RefreshOnStaleError invokes Refresh only if code signals stale topology
// (spec.md §4.7/§4.9); callers pass the error code observed on a partition-
// or request-level failure.
func (c *Cache) RefreshOnStaleError(ctx context.Context, code kerrors.ProtocolCode, topics []string) error {
	if !code.IsStaleTopology() {
		return nil
	}
	return c.Refresh(ctx, topics)
}

// RetryRefresh retries Refresh using the pool's shared reconnect schedule
// until ctx is done or a refresh succeeds — used at client start, where a
// single failed attempt shouldn't leave the cache permanently empty.
func (c *Cache) RetryRefresh(ctx context.Context, topics []string) error {
	b := backoff.WithContext(pool.RetryBackOff(), ctx)
	return backoff.Retry(func() error {
		return c.Refresh(ctx, topics)
	}, b)
}

func joinHostPort(host string, port int32) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
