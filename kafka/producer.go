package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/metrics"
	"github.com/kafkaclient/kafka/protocol/batch"
	"github.com/kafkaclient/kafka/protocol/registry"
	"github.com/kafkaclient/kafka/serde"
)

// ProducerConfig configures one Producer. Validate is called once at
// NewProducer time (spec.md §4.8 step 1's strict-mode option validation);
// nothing here is re-checked per Send call.
type ProducerConfig struct {
	Acks                  Acks
	Compression           batch.Compression
	Idempotent            bool
	RepeatOnStaleMetadata bool
	Partitioner           Partitioner
	TimeoutMs             int32
	Serde                 *serde.Pipeline
}

func (pc ProducerConfig) Validate() error {
	if err := pc.Acks.Validate(); err != nil {
		return err
	}
	if pc.Idempotent && pc.Acks != AcksAll {
		return kerrors.User("kafka: idempotent producer requires acks=ALL")
	}
	if pc.TimeoutMs < 0 {
		return kerrors.User("kafka: produce timeout_ms must not be negative")
	}
	return nil
}

func (pc ProducerConfig) withDefaults() ProducerConfig {
	if pc.Partitioner == nil {
		pc.Partitioner = newRoundRobinPartitioner().partition
	}
	if pc.TimeoutMs == 0 {
		pc.TimeoutMs = 30000
	}
	return pc
}

// ProducerMessage is one caller-supplied record. Key/Value/Headers are
// passed through the configured serde.Pipeline if one is set; with no
// pipeline they must already be []byte (or nil).
type ProducerMessage struct {
	Topic   string
	Key     interface{}
	Value   interface{}
	Headers map[string]interface{}
}

// ProduceResult reports where one message landed.
type ProduceResult struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Producer implements spec.md §4.8's send() algorithm: validate, optional
// idempotence bootstrap, serialize, partition, group by leader, batch,
// send, and a single stale-metadata retry.
type Producer struct {
	client *Client
	cfg    ProducerConfig
	diag   diagnostic.Diagnostic

	produced metrics.Counter
	gauge    metrics.Gauge

	mu            sync.Mutex
	initialized   bool
	producerID    int64
	producerEpoch int16
	sequences     map[string]map[int32]int32 // topic -> partition -> next sequence
}

func NewProducer(client *Client, cfg ProducerConfig) (*Producer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Producer{
		client:    client,
		cfg:       cfg,
		diag:      client.diag.WithContext(diagnostic.String("component", "producer")),
		produced:  client.cfg.Metrics.Counter(metrics.SeriesProducedMessages),
		gauge:     client.cfg.Metrics.Gauge(metrics.SeriesProducers),
		sequences: make(map[string]map[int32]int32),
	}
	p.gauge.Inc()
	return p, nil
}

// Close releases the gauge slot this producer held. It does not close the
// underlying Client, which may be shared with a Consumer or Admin.
func (p *Producer) Close() error {
	p.gauge.Dec()
	return nil
}

// Send implements the full 8-step algorithm, retrying once on a
// stale-metadata response per RepeatOnStaleMetadata.
func (p *Producer) Send(ctx context.Context, msgs []ProducerMessage) ([]ProduceResult, error) {
	return p.send(ctx, msgs, true)
}

func (p *Producer) send(ctx context.Context, msgs []ProducerMessage, allowRetry bool) ([]ProduceResult, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	if p.cfg.Idempotent {
		if err := p.ensureInitialized(ctx); err != nil {
			return nil, err
		}
	}

	type encoded struct {
		topic     string
		partition int32
		record    batch.Record
	}
	recs := make([]encoded, len(msgs))
	snap := p.client.Metadata().Current()

	for i, m := range msgs {
		key, err := p.encodeSlot(ctx, serde.SlotKey, m.Topic, m.Key)
		if err != nil {
			return nil, err
		}
		value, err := p.encodeSlot(ctx, serde.SlotValue, m.Topic, m.Value)
		if err != nil {
			return nil, err
		}
		headers, err := p.encodeHeaders(ctx, m.Topic, m.Headers)
		if err != nil {
			return nil, err
		}

		count := snap.PartitionCount(m.Topic)
		if count == 0 {
			// Topic absent from the snapshot: refresh it and retry once, the
			// same way a missing leader is handled below.
			if allowRetry {
				if err := p.client.Metadata().Refresh(ctx, []string{m.Topic}); err != nil {
					return nil, err
				}
				return p.send(ctx, msgs, false)
			}
			return nil, kerrors.User("kafka: no known partitions for topic %q (refresh metadata?)", m.Topic)
		}
		partition := p.cfg.Partitioner(key, int32(count))

		recs[i] = encoded{
			topic:     m.Topic,
			partition: partition,
			record:    batch.Record{Key: key, Value: value, Headers: headers},
		}
	}

	// Group by leader, then by (topic,partition) within a leader, preserving
	// caller order within each partition (spec.md §4.8 step 5).
	type partitionGroup struct {
		topic        string
		partition    int32
		recordIdxs   []int // index into recs / msgs
	}
	leaderOrder := make([]int32, 0)
	leaderGroups := make(map[int32]map[string]*partitionGroup)

	for i, e := range recs {
		leaderID, ok := snap.Leader(e.topic, e.partition)
		if !ok {
			// No leader bound (absent partition, or broker reported LeaderID
			// -1 mid-election): the snapshot is stale by definition, so
			// refresh and retry once rather than fail the whole Send.
			if allowRetry {
				if err := p.client.Metadata().Refresh(ctx, []string{e.topic}); err != nil {
					return nil, err
				}
				return p.send(ctx, msgs, false)
			}
			return nil, kerrors.User("kafka: no known leader for %s/%d after metadata refresh", e.topic, e.partition)
		}
		key := e.topic + "/" + strconv.Itoa(int(e.partition))
		groups, ok := leaderGroups[leaderID]
		if !ok {
			groups = make(map[string]*partitionGroup)
			leaderGroups[leaderID] = groups
			leaderOrder = append(leaderOrder, leaderID)
		}
		g, ok := groups[key]
		if !ok {
			g = &partitionGroup{topic: e.topic, partition: e.partition}
			groups[key] = g
		}
		g.recordIdxs = append(g.recordIdxs, i)
	}

	results := make([]ProduceResult, len(msgs))
	var staleCode kerrors.ProtocolCode
	var firstErr error

	for _, leaderID := range leaderOrder {
		c, err := p.client.Pool().Get(ctx, leaderID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		var topics []registry.ProduceTopicData
		var groupOrder []*partitionGroup
		byTopic := make(map[string][]registry.ProducePartitionData)
		topicOrder := make([]string, 0)
		for _, g := range leaderGroups[leaderID] {
			groupOrder = append(groupOrder, g)

			b := &batch.Batch{FirstSequence: -1}
			for _, idx := range g.recordIdxs {
				b.Records = append(b.Records, recs[idx].record)
			}
			if p.cfg.Idempotent {
				b.ProducerID = p.producerID
				b.ProducerEpoch = p.producerEpoch
				b.FirstSequence = p.nextSequence(g.topic, g.partition, len(g.recordIdxs))
			} else {
				b.ProducerID = -1
				b.ProducerEpoch = -1
				b.FirstSequence = -1
			}
			raw, err := batch.Encode(b, p.cfg.Compression)
			if err != nil {
				return nil, err
			}
			if _, ok := byTopic[g.topic]; !ok {
				topicOrder = append(topicOrder, g.topic)
			}
			byTopic[g.topic] = append(byTopic[g.topic], registry.ProducePartitionData{Index: g.partition, Records: raw})
		}
		for _, t := range topicOrder {
			topics = append(topics, registry.ProduceTopicData{Name: t, Partitions: byTopic[t]})
		}

		req := &registry.ProduceRequest{Acks: int16(p.cfg.Acks), TimeoutMs: p.cfg.TimeoutMs, Topics: topics}

		if p.cfg.Acks == AcksNoResponse {
			if err := c.SendNoResponse(ctx, registry.APIKeyProduce, 9, req); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			for _, g := range groupOrder {
				for _, idx := range g.recordIdxs {
					results[idx] = ProduceResult{Topic: g.topic, Partition: g.partition, Offset: -1}
				}
			}
			continue
		}

		resp := &registry.ProduceResponse{}
		if err := c.Send(ctx, registry.APIKeyProduce, 9, req, resp); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		partitionResp := make(map[string]map[int32]registry.ProducePartitionResponse)
		for _, t := range resp.Topics {
			m := make(map[int32]registry.ProducePartitionResponse, len(t.Partitions))
			for _, pr := range t.Partitions {
				m[pr.Index] = pr
			}
			partitionResp[t.Name] = m
		}

		for _, g := range groupOrder {
			pr, ok := partitionResp[g.topic][g.partition]
			if !ok {
				continue
			}
			code := kerrors.ProtocolCode(pr.ErrorCode)
			switch code {
			case kerrors.CodeNone, kerrors.CodeDuplicateSequenceNumber:
				for j, idx := range g.recordIdxs {
					results[idx] = ProduceResult{Topic: g.topic, Partition: g.partition, Offset: pr.BaseOffset + int64(j)}
				}
			case kerrors.CodeOutOfOrderSequenceNumber:
				p.mu.Lock()
				p.initialized = false
				p.mu.Unlock()
				return nil, kerrors.NewProtocolError(code, "Produce: sequence gap, producer epoch fenced")
			default:
				if code.IsStaleTopology() {
					staleCode = code
				}
				if firstErr == nil {
					firstErr = kerrors.NewProtocolError(code, "Produce "+g.topic)
				}
			}
		}
	}

	if staleCode != 0 && p.cfg.RepeatOnStaleMetadata && allowRetry {
		if err := p.client.Metadata().RefreshOnStaleError(ctx, staleCode, nil); err != nil {
			return nil, err
		}
		return p.send(ctx, msgs, false)
	}
	if firstErr != nil {
		return results, firstErr
	}

	p.produced.Add(float64(len(msgs)))
	return results, nil
}

func (p *Producer) encodeSlot(ctx context.Context, slot serde.Slot, topic string, v interface{}) ([]byte, error) {
	if p.cfg.Serde == nil {
		if v == nil {
			return nil, nil
		}
		b, ok := v.([]byte)
		if !ok {
			return nil, kerrors.User("kafka: no serde pipeline configured; %s value must be []byte", slot)
		}
		return b, nil
	}
	msg := &serde.Message{Topic: topic}
	b, err := p.cfg.Serde.EncodeSlot(ctx, slot, msg, v)
	return b, err
}

// encodeHeaders builds the wire header list. The header key is always a
// plain string per the record-batch format (protocol/batch.Header.Key); it
// only runs through the serde pipeline's header-key slot when one is
// configured, so a caller with no pipeline can pass ordinary map keys
// instead of being forced to supply []byte.
func (p *Producer) encodeHeaders(ctx context.Context, topic string, headers map[string]interface{}) ([]batch.Header, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make([]batch.Header, 0, len(headers))
	for k, v := range headers {
		key := []byte(k)
		if p.cfg.Serde != nil {
			var err error
			key, err = p.encodeSlot(ctx, serde.SlotHeaderKey, topic, k)
			if err != nil {
				return nil, err
			}
		}
		value, err := p.encodeSlot(ctx, serde.SlotHeaderValue, topic, v)
		if err != nil {
			return nil, err
		}
		out = append(out, batch.Header{Key: string(key), Value: value})
	}
	return out, nil
}

// ensureInitialized runs InitProducerId exactly once, lazily on the first
// Send of an idempotent producer (spec.md §4.8 step 2). p.mu is held across
// the request, so concurrent first Sends wait for the one in flight.
func (p *Producer) ensureInitialized(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	c, err := p.client.Pool().GetFirstAvailable(ctx, p.client.bootstrapNodeIDs())
	if err != nil {
		return err
	}
	req := &registry.InitProducerIDRequest{
		TransactionTimeoutMs: int32(60 * time.Second / time.Millisecond),
		ProducerID:           -1,
		ProducerEpoch:        -1,
	}
	resp := &registry.InitProducerIDResponse{}
	if err := c.Send(ctx, registry.APIKeyInitProducerID, 4, req, resp); err != nil {
		return err
	}
	if resp.ErrorCode != 0 {
		return kerrors.NewProtocolError(kerrors.ProtocolCode(resp.ErrorCode), "InitProducerId")
	}

	p.producerID = resp.ProducerID
	p.producerEpoch = resp.ProducerEpoch
	p.sequences = make(map[string]map[int32]int32)
	p.initialized = true
	return nil
}

// nextSequence returns the first sequence number for a batch of n records on
// (topic, partition) and advances the counter past it. Sequence counters
// reset (via ensureInitialized rebuilding p.sequences) whenever the producer
// re-acquires a new epoch after a fencing error.
func (p *Producer) nextSequence(topic string, partition int32, n int) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	parts, ok := p.sequences[topic]
	if !ok {
		parts = make(map[int32]int32)
		p.sequences[topic] = parts
	}
	first := parts[partition]
	parts[partition] = first + int32(n)
	return first
}
