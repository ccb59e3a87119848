package kafka

import (
	"context"
	"sync"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/internal/metadata"
	"github.com/kafkaclient/kafka/internal/pool"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// Client is the shared cluster handle Producer, Consumer and Admin are
// built from: one connection pool, one metadata cache, seeded from the
// configured broker addresses. Grounded on services/kafka/service.go's
// Cluster, generalized from sarama's own client to this module's registry-
// driven conn/pool/metadata stack.
type Client struct {
	cfg  Config
	pool *pool.Pool
	meta *metadata.Cache
	diag diagnostic.Diagnostic

	mu          sync.Mutex
	seedNodeIDs []int32
}

// Dial validates cfg, builds the connection pool and metadata cache, and
// seeds the pool with the configured broker addresses under synthetic
// negative node ids (real node ids are learned from the first successful
// Metadata response and replace these).
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := cfg.withDefaults()

	dialer := func(ctx context.Context, addr string) (*conn.Conn, error) {
		return conn.Dial(ctx, addr, conn.Options{
			ClientID:    c.ClientID,
			TLS:         c.TLS,
			DialTimeout: c.DialTimeout,
			MaxInflight: c.MaxInflight,
			SASL:        c.SASL,
			Diag:        c.Diag,
		})
	}

	p := pool.New(dialer, pool.Options{
		BreakerErrorThreshold:   c.BreakerErrorThreshold,
		BreakerSuccessThreshold: c.BreakerSuccessThreshold,
		BreakerTimeout:          c.BreakerTimeout,
		Diag:                    c.Diag,
	})

	seedIDs := make([]int32, len(c.Brokers))
	seedNodes := make([]pool.Node, len(c.Brokers))
	for i, addr := range c.Brokers {
		id := int32(-(i + 1))
		seedIDs[i] = id
		seedNodes[i] = pool.Node{ID: id, Addr: addr}
	}
	p.UpdateAddrs(seedNodes)

	cl := &Client{cfg: c, pool: p, diag: c.Diag, seedNodeIDs: seedIDs}
	cl.meta = metadata.New(metadataRequester{cl}, c.Diag)

	if err := cl.meta.RetryRefresh(ctx, nil); err != nil {
		p.Close()
		return nil, kerrors.Wrap(kerrors.NetworkError, err, "kafka: initial metadata fetch")
	}
	cl.adoptBrokerNodeIDs()
	return cl, nil
}

// adoptBrokerNodeIDs registers the real broker addresses learned from
// metadata under their real node ids, so subsequent bootstrap lookups (e.g.
// a second Dial-less client operation) use the broker's own id space
// instead of the synthetic seed ids.
func (c *Client) adoptBrokerNodeIDs() {
	snap := c.meta.Current()
	nodes := make([]pool.Node, 0, len(snap.Brokers))
	for _, b := range snap.Brokers {
		nodes = append(nodes, b)
	}
	c.pool.UpdateAddrs(nodes)

	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int32, 0, len(snap.Brokers))
	for id := range snap.Brokers {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		c.seedNodeIDs = ids
	}
}

func (c *Client) bootstrapNodeIDs() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int32, len(c.seedNodeIDs))
	copy(out, c.seedNodeIDs)
	return out
}

// metadataRequester adapts Client to internal/metadata.Requester by routing
// a Metadata request through any currently reachable broker.
type metadataRequester struct{ c *Client }

func (m metadataRequester) RequestMetadata(ctx context.Context, topics []string) (*registry.MetadataResponse, error) {
	c, err := m.c.pool.GetFirstAvailable(ctx, m.c.bootstrapNodeIDs())
	if err != nil {
		return nil, err
	}
	req := &registry.MetadataRequest{Topics: topics, AllowAutoTopicCreation: false}
	resp := &registry.MetadataResponse{}
	if err := c.Send(ctx, registry.APIKeyMetadata, 9, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Metadata exposes the live topology cache to Producer/Consumer/Admin.
func (c *Client) Metadata() *metadata.Cache { return c.meta }

// Pool exposes the connection pool to Producer/Consumer/Admin.
func (c *Client) Pool() *pool.Pool { return c.pool }

// Close tears down every pooled connection.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}
