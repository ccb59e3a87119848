// Package kafkatest provides a minimal single-broker stand-in for tests
// that need something to Dial against without a real Kafka cluster. It
// answers ApiVersions, Metadata and Produce the way a real broker would and
// records every accepted record so a test can assert on what a Producer
// actually sent.
//
// Modeled on services/kafka/kafkatest/server.go's scope (the same three
// APIs, hardcoded single broker/partition count), generalized to decode and
// encode through this module's own protocol/registry types instead of
// hand-rolled big-endian byte slicing.
package kafkatest

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/kafkaclient/kafka/protocol"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// Message is one record the mock broker accepted via Produce.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Server is the mock broker itself.
type Server struct {
	Addr net.Addr

	NodeID         int32
	PartitionCount int32

	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
	closing  chan struct{}
	messages []Message
	offsets  map[string]int64 // "topic/partition" -> next offset
}

// NewServer starts listening on an ephemeral local port and begins serving
// connections in the background.
func NewServer() (*Server, error) {
	s := &Server{
		closing:        make(chan struct{}),
		NodeID:         1,
		PartitionCount: 3,
		offsets:        make(map[string]int64),
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.Addr = l.Addr()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(l)
	}()
	return s, nil
}

// Close stops accepting connections and waits for in-flight handlers to
// return.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()
	s.wg.Wait()
}

// Messages returns every record accepted so far, in acceptance order.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Server) run(l net.Listener) {
	defer l.Close()

	accepts := make(chan net.Conn)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			select {
			case accepts <- c:
			case <-s.closing:
				c.Close()
				return
			}
		}
	}()

	for {
		select {
		case c := <-accepts:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer c.Close()
				for {
					if err := s.handleOne(c); err != nil {
						return
					}
				}
			}()
		case <-s.closing:
			return
		}
	}
}

func (s *Server) handleOne(c net.Conn) error {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(c, sizeBuf[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(c, payload); err != nil {
		return err
	}

	r := protocol.NewReader(payload)
	apiKey, err := r.ReadInt16()
	if err != nil {
		return err
	}
	version, err := r.ReadInt16()
	if err != nil {
		return err
	}
	correlationID, err := r.ReadInt32()
	if err != nil {
		return err
	}
	// Client id is always a flexible-header compact string regardless of the
	// negotiated body encoding; see internal/conn.Conn.sendEntry.
	if _, err := r.ReadString(protocol.Compact); err != nil {
		return err
	}

	entry, err := registry.Lookup(registry.APIKey(apiKey), version)
	if err != nil {
		return err
	}
	if entry.Flags.RequestHeaderTagged {
		if err := r.ReadTaggedFieldTrailer(); err != nil {
			return err
		}
	}

	body := protocol.NewWriter()
	switch registry.APIKey(apiKey) {
	case registry.APIKeyApiVersions:
		if err := s.handleApiVersions(r, body); err != nil {
			return err
		}
	case registry.APIKeyMetadata:
		if err := s.handleMetadata(r, entry.Encoding, body); err != nil {
			return err
		}
	case registry.APIKeyProduce:
		if err := s.handleProduce(r, entry.Encoding, body); err != nil {
			return err
		}
	default:
		return fmt.Errorf("kafkatest: unsupported %s v%d", registry.APIKey(apiKey), version)
	}

	frame := protocol.NewWriter()
	frame.WriteInt32(correlationID)
	if entry.Flags.ResponseHeaderTagged {
		frame.WriteTaggedFieldTrailer()
	}
	frame.WriteRaw(body.Bytes())
	frame.PrependLengthInt32()
	_, err = c.Write(frame.Bytes())
	return err
}

// handleApiVersions answers with ranges covering only the three APIs this
// mock broker actually implements, so a client negotiating against it never
// picks a version this server can't decode.
func (s *Server) handleApiVersions(r *protocol.Reader, body *protocol.Writer) error {
	if _, err := r.ReadString(protocol.Compact); err != nil { // client_software_name
		return err
	}
	if _, err := r.ReadString(protocol.Compact); err != nil { // client_software_version
		return err
	}
	if err := r.ReadTaggedFieldTrailer(); err != nil {
		return err
	}

	body.WriteInt16(0) // error_code
	ranges := []registry.ApiVersionRange{
		{APIKey: int16(registry.APIKeyProduce), MinVersion: 9, MaxVersion: 9},
		{APIKey: int16(registry.APIKeyMetadata), MinVersion: 9, MaxVersion: 9},
		{APIKey: int16(registry.APIKeyApiVersions), MinVersion: 3, MaxVersion: 3},
	}
	protocol.WriteArray(body, len(ranges), protocol.Compact, true, func(w *protocol.Writer, i int) {
		v := ranges[i]
		w.WriteInt16(v.APIKey)
		w.WriteInt16(v.MinVersion)
		w.WriteInt16(v.MaxVersion)
	})
	body.WriteInt32(0) // throttle_time_ms
	body.WriteTaggedFieldTrailer()
	return nil
}

// handleMetadata answers every requested topic as if it existed with
// PartitionCount partitions, all led by this single broker.
func (s *Server) handleMetadata(r *protocol.Reader, enc protocol.Encoding, body *protocol.Writer) error {
	var topics []string
	if _, err := protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		name, err := r.ReadString(enc)
		if err != nil {
			return err
		}
		if name != nil {
			topics = append(topics, *name)
		}
		return nil
	}); err != nil {
		return err
	}
	if _, err := r.ReadBool(); err != nil { // allow_auto_topic_creation
		return err
	}
	if _, err := r.ReadBool(); err != nil { // include_cluster_authorized_operations
		return err
	}
	if _, err := r.ReadBool(); err != nil { // include_topic_authorized_operations
		return err
	}
	if err := r.ReadTaggedFieldTrailer(); err != nil {
		return err
	}

	host, portStr, err := net.SplitHostPort(s.Addr.String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	body.WriteInt32(0) // throttle_time_ms
	protocol.WriteArray(body, 1, protocol.Compact, true, func(w *protocol.Writer, i int) {
		w.WriteInt32(s.NodeID)
		w.WriteStringValue(host, protocol.Compact)
		w.WriteInt32(int32(port))
		w.WriteString(nil, protocol.Compact) // rack
	})
	body.WriteString(nil, protocol.Compact) // cluster_id
	body.WriteInt32(s.NodeID)               // controller_id
	protocol.WriteArray(body, len(topics), protocol.Compact, true, func(w *protocol.Writer, i int) {
		w.WriteInt16(0) // error_code
		w.WriteStringValue(topics[i], protocol.Compact)
		w.WriteBool(false) // is_internal
		protocol.WriteArray(w, int(s.PartitionCount), protocol.Compact, true, func(w *protocol.Writer, j int) {
			w.WriteInt16(0) // error_code
			w.WriteInt32(int32(j))
			w.WriteInt32(s.NodeID) // leader_id
			w.WriteInt32(0)        // leader_epoch
			protocol.WriteArray(w, 0, protocol.Compact, false, func(*protocol.Writer, int) {}) // replica_nodes
			protocol.WriteArray(w, 0, protocol.Compact, false, func(*protocol.Writer, int) {}) // isr_nodes
			protocol.WriteArray(w, 0, protocol.Compact, false, func(*protocol.Writer, int) {}) // offline_replicas
		})
	})
	body.WriteTaggedFieldTrailer()
	return nil
}

// handleProduce decodes every partition's record batch, assigns monotonic
// offsets per (topic, partition) and records the individual messages for
// Messages() to return, ignoring Acks (this mock always behaves as if
// acks=1 was honored).
func (s *Server) handleProduce(r *protocol.Reader, enc protocol.Encoding, body *protocol.Writer) error {
	if _, err := r.ReadString(enc); err != nil { // transactional_id
		return err
	}
	if _, err := r.ReadInt16(); err != nil { // acks
		return err
	}
	if _, err := r.ReadInt32(); err != nil { // timeout_ms
		return err
	}

	type partitionResult struct {
		index      int32
		baseOffset int64
	}
	type topicResult struct {
		name    string
		results []partitionResult
	}
	var topicResults []topicResult

	if _, err := protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		name, err := r.ReadString(enc)
		if err != nil {
			return err
		}
		topic := ""
		if name != nil {
			topic = *name
		}
		tr := topicResult{name: topic}
		if _, err := protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			index, err := r.ReadInt32()
			if err != nil {
				return err
			}
			records, err := r.ReadBytes(enc)
			if err != nil {
				return err
			}
			baseOffset, err := s.appendRecords(topic, index, records)
			if err != nil {
				return err
			}
			tr.results = append(tr.results, partitionResult{index: index, baseOffset: baseOffset})
			return nil
		}); err != nil {
			return err
		}
		topicResults = append(topicResults, tr)
		return nil
	}); err != nil {
		return err
	}
	if err := r.ReadTaggedFieldTrailer(); err != nil {
		return err
	}

	protocol.WriteArray(body, len(topicResults), enc, true, func(w *protocol.Writer, i int) {
		t := topicResults[i]
		w.WriteStringValue(t.name, enc)
		protocol.WriteArray(w, len(t.results), enc, true, func(w *protocol.Writer, j int) {
			p := t.results[j]
			w.WriteInt32(p.index)
			w.WriteInt16(0) // error_code
			w.WriteInt64(p.baseOffset)
			w.WriteInt64(-1) // log_append_time_ms
			w.WriteInt64(0)  // log_start_offset
			protocol.WriteArray(w, 0, enc, true, func(*protocol.Writer, int) {}) // record_errors
			w.WriteString(nil, enc)                                             // error_message
		})
	})
	body.WriteInt32(0) // throttle_time_ms
	body.WriteTaggedFieldTrailer()
	return nil
}

// appendRecords decodes raw's record batches, stores one Message per record
// and returns the offset the first of them landed at.
func (s *Server) appendRecords(topic string, partition int32, raw []byte) (int64, error) {
	batches, err := registry.DecodeBatches(raw, true)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := topic + "/" + strconv.Itoa(int(partition))
	base := s.offsets[key]
	next := base
	for _, b := range batches {
		for _, rec := range b.Records {
			s.messages = append(s.messages, Message{Topic: topic, Partition: partition, Offset: next, Key: rec.Key, Value: rec.Value})
			next++
		}
	}
	s.offsets[key] = next
	return base, nil
}
