package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/group"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/metrics"
	"github.com/kafkaclient/kafka/protocol/batch"
	"github.com/kafkaclient/kafka/protocol/registry"
	"github.com/kafkaclient/kafka/serde"
)

// ConsumerConfig configures one Consumer's group membership and fetch
// behavior.
type ConsumerConfig struct {
	GroupID             string
	Topics              []string
	SessionTimeoutMs    int32
	RebalanceTimeoutMs  int32
	AutoCommit          bool
	AutoCommitInterval  time.Duration
	ResetPolicy         ResetPolicy
	MaxWaitMs           int32
	MinBytes            int32
	MaxBytes            int32
	PartitionMaxBytes   int32
	Serde               *serde.Pipeline
}

func (cc ConsumerConfig) Validate() error {
	if cc.GroupID == "" {
		return kerrors.User("kafka: consumer requires a group_id")
	}
	if len(cc.Topics) == 0 {
		return kerrors.User("kafka: consumer requires at least one topic")
	}
	return cc.ResetPolicy.Validate()
}

func (cc ConsumerConfig) withDefaults() ConsumerConfig {
	if cc.SessionTimeoutMs == 0 {
		cc.SessionTimeoutMs = 10000
	}
	if cc.RebalanceTimeoutMs == 0 {
		cc.RebalanceTimeoutMs = 30000
	}
	if cc.AutoCommitInterval == 0 {
		cc.AutoCommitInterval = 5 * time.Second
	}
	if cc.MaxWaitMs == 0 {
		cc.MaxWaitMs = 500
	}
	if cc.MinBytes == 0 {
		cc.MinBytes = 1
	}
	if cc.MaxBytes == 0 {
		cc.MaxBytes = 1 << 20
	}
	if cc.PartitionMaxBytes == 0 {
		cc.PartitionMaxBytes = 1 << 20
	}
	return cc
}

// Record is one decoded message handed back from Poll.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       interface{}
	Value     interface{}
	Headers   map[string][]byte
}

// Consumer drives one consumer-group member through internal/group's FSM
// and the per-partition fetch/commit loop of spec.md §4.9.
type Consumer struct {
	client *Client
	cfg    ConsumerConfig
	group  *group.Group
	diag   diagnostic.Diagnostic

	consumed metrics.Counter
	gauge    metrics.Gauge

	mu          sync.Mutex
	positions   map[string]map[int32]int64
	lastCommit  time.Time
	dirtyCommit bool
}

func NewConsumer(client *Client, cfg ConsumerConfig) (*Consumer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Consumer{
		client:    client,
		cfg:       cfg,
		diag:      client.diag.WithContext(diagnostic.String("component", "consumer"), diagnostic.String("group_id", cfg.GroupID)),
		consumed:  client.cfg.Metrics.Counter(metrics.SeriesConsumedMessages),
		gauge:     client.cfg.Metrics.Gauge(metrics.SeriesConsumers),
		positions: make(map[string]map[int32]int64),
	}
	c.group = group.New(client.Pool(), group.Config{
		GroupID:            cfg.GroupID,
		ProtocolType:       "consumer",
		Protocols:          []registry.JoinGroupProtocol{{Name: consumerProtocolName, Metadata: encodeSubscription(cfg.Topics)}},
		SessionTimeoutMs:   cfg.SessionTimeoutMs,
		RebalanceTimeoutMs: cfg.RebalanceTimeoutMs,
		Assignor:           c.assign,
		Diag:               client.diag,
	})
	c.gauge.Inc()
	return c, nil
}

// assign implements internal/group.Assignor using the "range" strategy
// (kafka/consumer_protocol.go), resolving partition counts from the live
// metadata cache rather than trusting any member's stale subscription.
func (c *Consumer) assign(protocolName string, members []registry.JoinGroupMember) ([]registry.SyncGroupAssignment, error) {
	snap := c.client.Metadata().Current()
	memberTopics := make(map[string][]string, len(members))
	allTopics := make(map[string]struct{})
	for _, m := range members {
		topics, err := decodeSubscription(m.Metadata)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "decode member subscription")
		}
		memberTopics[m.MemberID] = topics
		for _, t := range topics {
			allTopics[t] = struct{}{}
		}
	}
	counts := make(map[string]int, len(allTopics))
	for t := range allTopics {
		counts[t] = snap.PartitionCount(t)
	}

	assignment := rangeAssignor(memberTopics, counts)
	out := make([]registry.SyncGroupAssignment, 0, len(members))
	for _, m := range members {
		out = append(out, registry.SyncGroupAssignment{MemberID: m.MemberID, Assignment: encodeAssignment(assignment[m.MemberID])})
	}
	return out, nil
}

// Join (re)joins the group, then resolves a starting fetch position for
// every newly assigned partition: the last committed offset if one exists,
// otherwise ResetPolicy's earliest/latest.
func (c *Consumer) Join(ctx context.Context) error {
	if err := c.group.Join(ctx, c.client.bootstrapNodeIDs()); err != nil {
		return err
	}
	parts, err := decodeAssignment(c.group.Assignment())
	if err != nil {
		return kerrors.Wrap(kerrors.MalformedInput, err, "decode own assignment")
	}

	committed, err := c.fetchCommittedOffsets(ctx, parts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.positions = make(map[string]map[int32]int64)
	c.mu.Unlock()

	for topic, indexes := range parts {
		for _, idx := range indexes {
			offset, ok := committed[topic][idx]
			if !ok || offset < 0 {
				offset, err = c.resetOffset(ctx, topic, idx)
				if err != nil {
					return err
				}
			}
			c.setPosition(topic, idx, offset)
		}
	}
	return nil
}

func (c *Consumer) fetchCommittedOffsets(ctx context.Context, parts topicPartitions) (map[string]map[int32]int64, error) {
	conn, err := c.group.Coordinator()
	if err != nil {
		return nil, err
	}
	req := &registry.OffsetFetchRequest{GroupID: c.cfg.GroupID, RequireStable: true}
	for topic, indexes := range parts {
		req.Topics = append(req.Topics, registry.OffsetFetchTopic{Name: topic, PartitionIndexes: indexes})
	}
	resp := &registry.OffsetFetchResponse{}
	if err := conn.Send(ctx, registry.APIKeyOffsetFetch, 8, req, resp); err != nil {
		return nil, err
	}
	out := make(map[string]map[int32]int64, len(resp.Topics))
	for _, t := range resp.Topics {
		m := make(map[int32]int64, len(t.Partitions))
		for _, p := range t.Partitions {
			m[p.PartitionIndex] = p.CommittedOffset
		}
		out[t.Name] = m
	}
	return out, nil
}

// resetOffset resolves a fresh starting position via ListOffsets, per
// ConsumerConfig.ResetPolicy.
func (c *Consumer) resetOffset(ctx context.Context, topic string, partition int32) (int64, error) {
	return c.resetOffsetRetry(ctx, topic, partition, true)
}

func (c *Consumer) resetOffsetRetry(ctx context.Context, topic string, partition int32, allowRetry bool) (int64, error) {
	leader, ok := c.client.Metadata().Current().Leader(topic, partition)
	if !ok {
		// No leader bound (unknown partition, or broker reported LeaderID -1
		// mid-election): refresh and retry once instead of failing outright.
		if allowRetry {
			if err := c.client.Metadata().Refresh(ctx, []string{topic}); err != nil {
				return 0, err
			}
			return c.resetOffsetRetry(ctx, topic, partition, false)
		}
		return 0, kerrors.User("kafka: no known leader for %s/%d after metadata refresh", topic, partition)
	}
	conn, err := c.client.Pool().Get(ctx, leader)
	if err != nil {
		return 0, err
	}
	ts := registry.ListOffsetsLatest
	if c.cfg.ResetPolicy == ResetEarliest {
		ts = registry.ListOffsetsEarliest
	}
	req := &registry.ListOffsetsRequest{
		ReplicaID: -1,
		Topics: []registry.ListOffsetsTopicRequest{{
			Name:       topic,
			Partitions: []registry.ListOffsetsPartitionRequest{{PartitionIndex: partition, CurrentLeaderEpoch: -1, Timestamp: ts}},
		}},
	}
	resp := &registry.ListOffsetsResponse{}
	if err := conn.Send(ctx, registry.APIKeyListOffsets, 7, req, resp); err != nil {
		return 0, err
	}
	for _, t := range resp.Topics {
		if t.Name != topic {
			continue
		}
		for _, p := range t.Partitions {
			if p.PartitionIndex != partition {
				continue
			}
			if p.ErrorCode != 0 {
				return 0, kerrors.NewProtocolError(kerrors.ProtocolCode(p.ErrorCode), "ListOffsets "+topic)
			}
			return p.Offset, nil
		}
	}
	return 0, kerrors.Malformed("kafka: ListOffsets response missing %s/%d", topic, partition)
}

func (c *Consumer) setPosition(topic string, partition int32, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts, ok := c.positions[topic]
	if !ok {
		parts = make(map[int32]int64)
		c.positions[topic] = parts
	}
	parts[partition] = offset
}

func (c *Consumer) snapshotPositions() map[string]map[int32]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[int32]int64, len(c.positions))
	for topic, parts := range c.positions {
		m := make(map[int32]int64, len(parts))
		for p, off := range parts {
			m[p] = off
		}
		out[topic] = m
	}
	return out
}

// Poll runs one fetch round across every assigned partition, grouped by
// current leader, and returns the decoded records in partition order.
// Callers loop Poll until ctx is done; RebalanceNeeded() firing mid-poll
// means the caller should call Join again before the next Poll.
func (c *Consumer) Poll(ctx context.Context) ([]Record, error) {
	select {
	case <-c.group.RebalanceNeeded():
		return nil, kerrors.NewProtocolError(kerrors.CodeRebalanceInProgress, "poll: rejoin required")
	default:
	}

	positions := c.snapshotPositions()
	if len(positions) == 0 {
		return nil, nil
	}
	snap := c.client.Metadata().Current()

	byLeader := make(map[int32][]registry.FetchTopicRequest)
	var noLeaderTopics []string
	for topic, parts := range positions {
		for partition, offset := range parts {
			leader, ok := snap.Leader(topic, partition)
			if !ok {
				// No leader bound (unknown partition, or broker reported
				// LeaderID -1 mid-election): drop the partition from this
				// fetch round, but flag its topic for a post-round refresh
				// instead of silently stalling it forever.
				noLeaderTopics = append(noLeaderTopics, topic)
				continue
			}
			fp := registry.FetchPartitionRequest{
				Partition:          partition,
				CurrentLeaderEpoch: -1,
				FetchOffset:        offset,
				LastFetchedEpoch:   -1,
				PartitionMaxBytes:  c.cfg.PartitionMaxBytes,
			}
			found := false
			for i := range byLeader[leader] {
				if byLeader[leader][i].Topic == topic {
					byLeader[leader][i].Partitions = append(byLeader[leader][i].Partitions, fp)
					found = true
					break
				}
			}
			if !found {
				byLeader[leader] = append(byLeader[leader], registry.FetchTopicRequest{Topic: topic, Partitions: []registry.FetchPartitionRequest{fp}})
			}
		}
	}

	var out []Record
	var staleCode kerrors.ProtocolCode

	for leader, topics := range byLeader {
		conn, err := c.client.Pool().Get(ctx, leader)
		if err != nil {
			continue
		}
		req := &registry.FetchRequest{
			ReplicaID: -1,
			MaxWaitMs: c.cfg.MaxWaitMs,
			MinBytes:  c.cfg.MinBytes,
			MaxBytes:  c.cfg.MaxBytes,
			Topics:    topics,
		}
		resp := &registry.FetchResponse{}
		if err := conn.Send(ctx, registry.APIKeyFetch, 13, req, resp); err != nil {
			return out, err
		}

		for _, t := range resp.Topics {
			for _, p := range t.Partitions {
				switch kerrors.ProtocolCode(p.ErrorCode) {
				case kerrors.CodeNone:
				case kerrors.CodeOffsetOutOfRange:
					offset, err := c.resetOffset(ctx, t.Topic, p.Partition)
					if err != nil {
						return out, err
					}
					c.setPosition(t.Topic, p.Partition, offset)
					continue
				default:
					code := kerrors.ProtocolCode(p.ErrorCode)
					if code.IsStaleTopology() {
						staleCode = code
						continue
					}
					return out, kerrors.NewProtocolError(code, "Fetch "+t.Topic)
				}

				if len(p.Records) == 0 {
					continue
				}
				batches, err := registry.DecodeBatches(p.Records, true)
				if err != nil {
					return out, kerrors.Wrap(kerrors.MalformedInput, err, "decode fetch records")
				}
				nextOffset := positions[t.Topic][p.Partition]
				for _, b := range batches {
					for _, rec := range b.Records {
						decoded, err := c.decodeRecord(ctx, t.Topic, p.Partition, rec)
						if err != nil {
							return out, err
						}
						out = append(out, decoded)
						nextOffset = rec.Offset + 1
					}
				}
				c.setPosition(t.Topic, p.Partition, nextOffset)
			}
		}
	}

	if staleCode != 0 {
		c.client.Metadata().RefreshOnStaleError(ctx, staleCode, c.cfg.Topics)
	}
	if len(noLeaderTopics) > 0 {
		if err := c.client.Metadata().Refresh(ctx, noLeaderTopics); err != nil {
			c.diag.Warn("metadata refresh after missing leader failed", diagnostic.Error(err))
		}
	}

	if len(out) > 0 {
		c.consumed.Add(float64(len(out)))
		c.mu.Lock()
		c.dirtyCommit = true
		c.mu.Unlock()
	}

	if c.cfg.AutoCommit {
		c.mu.Lock()
		due := c.dirtyCommit && time.Since(c.lastCommit) >= c.cfg.AutoCommitInterval
		c.mu.Unlock()
		if due {
			if err := c.CommitOffsets(ctx); err != nil {
				c.diag.Warn("auto-commit failed", diagnostic.Error(err))
			}
		}
	}

	return out, nil
}

func (c *Consumer) decodeRecord(ctx context.Context, topic string, partition int32, rec batch.Record) (Record, error) {
	key, err := c.decodeSlot(ctx, serde.SlotKey, topic, rec.Key)
	if err != nil {
		return Record{}, err
	}
	value, err := c.decodeSlot(ctx, serde.SlotValue, topic, rec.Value)
	if err != nil {
		return Record{}, err
	}
	var headers map[string][]byte
	if len(rec.Headers) > 0 {
		headers = make(map[string][]byte, len(rec.Headers))
		for _, h := range rec.Headers {
			headers[h.Key] = h.Value
		}
	}
	return Record{Topic: topic, Partition: partition, Offset: rec.Offset, Key: key, Value: value, Headers: headers}, nil
}

func (c *Consumer) decodeSlot(ctx context.Context, slot serde.Slot, topic string, b []byte) (interface{}, error) {
	if c.cfg.Serde == nil {
		return b, nil
	}
	msg := &serde.Message{Topic: topic}
	return c.cfg.Serde.DecodeSlot(ctx, slot, msg, b)
}

// CommitOffsets commits the current fetch positions for every assigned
// partition. A REBALANCE_IN_PROGRESS per-partition error is logged and
// left for the next Join/CommitOffsets cycle rather than surfaced as a
// hard failure (spec.md §4.9).
func (c *Consumer) CommitOffsets(ctx context.Context) error {
	positions := c.snapshotPositions()
	var topics []registry.OffsetCommitTopic
	for topic, parts := range positions {
		t := registry.OffsetCommitTopic{Name: topic}
		for partition, offset := range parts {
			t.Partitions = append(t.Partitions, registry.OffsetCommitPartition{
				PartitionIndex:       partition,
				CommittedOffset:      offset,
				CommittedLeaderEpoch: -1,
			})
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil
	}

	resp, err := c.group.CommitOffsets(ctx, topics)
	if err != nil {
		return err
	}
	for _, t := range resp.Topics {
		for _, p := range t.Partitions {
			code := kerrors.ProtocolCode(p.ErrorCode)
			switch code {
			case kerrors.CodeNone:
			case kerrors.CodeRebalanceInProgress:
				c.diag.Warn("commit deferred: rebalance in progress", diagnostic.String("topic", t.Name))
			default:
				c.diag.Warn("commit failed", diagnostic.String("topic", t.Name), diagnostic.Int("error_code", int(p.ErrorCode)))
			}
		}
	}

	c.mu.Lock()
	c.lastCommit = time.Now()
	c.dirtyCommit = false
	c.mu.Unlock()
	return nil
}

// Close leaves the group and releases the gauge slot this consumer held.
func (c *Consumer) Close(ctx context.Context) error {
	c.gauge.Dec()
	return c.group.Leave(ctx)
}
