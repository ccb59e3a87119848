package kafka

import (
	"sort"

	"github.com/kafkaclient/kafka/protocol"
)

// The consumer group embedded protocol ("range"/"roundrobin"/"sticky")
// carries its own little wire format inside JoinGroupProtocol.Metadata and
// SyncGroupAssignment.Assignment: plain (non-compact, non-tagged) int16
// version + arrays, independent of whichever encoding wraps the outer
// request. This file is that subscription/assignment codec plus the
// default "range" assignor (spec.md §4.9's "Assignor" hook).

const consumerProtocolName = "range"
const consumerProtocolVersion = int16(1)

func encodeSubscription(topics []string) []byte {
	w := protocol.NewWriter()
	w.WriteInt16(consumerProtocolVersion)
	protocol.WriteArray(w, len(topics), protocol.Legacy, false, func(w *protocol.Writer, i int) {
		w.WriteStringValue(topics[i], protocol.Legacy)
	})
	w.WriteBytes(nil, protocol.Legacy) // UserData
	return w.Bytes()
}

func decodeSubscription(b []byte) ([]string, error) {
	r := protocol.NewReader(b)
	if _, err := r.ReadInt16(); err != nil {
		return nil, err
	}
	var topics []string
	_, err := protocol.ReadArray(r, protocol.Legacy, false, func(r *protocol.Reader) error {
		s, err := r.ReadString(protocol.Legacy)
		if err != nil {
			return err
		}
		if s != nil {
			topics = append(topics, *s)
		}
		return nil
	})
	return topics, err
}

// topicPartitions is one member's resolved assignment: topic -> partitions.
type topicPartitions map[string][]int32

func encodeAssignment(assignment topicPartitions) []byte {
	topics := make([]string, 0, len(assignment))
	for t := range assignment {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	w := protocol.NewWriter()
	w.WriteInt16(consumerProtocolVersion)
	protocol.WriteArray(w, len(topics), protocol.Legacy, false, func(w *protocol.Writer, i int) {
		t := topics[i]
		w.WriteStringValue(t, protocol.Legacy)
		parts := assignment[t]
		protocol.WriteArray(w, len(parts), protocol.Legacy, false, func(w *protocol.Writer, j int) {
			w.WriteInt32(parts[j])
		})
	})
	w.WriteBytes(nil, protocol.Legacy)
	return w.Bytes()
}

func decodeAssignment(b []byte) (topicPartitions, error) {
	r := protocol.NewReader(b)
	if _, err := r.ReadInt16(); err != nil {
		return nil, err
	}
	out := make(topicPartitions)
	_, err := protocol.ReadArray(r, protocol.Legacy, false, func(r *protocol.Reader) error {
		name, err := r.ReadString(protocol.Legacy)
		if err != nil {
			return err
		}
		var topic string
		if name != nil {
			topic = *name
		}
		var parts []int32
		_, err = protocol.ReadArray(r, protocol.Legacy, false, func(r *protocol.Reader) error {
			p, err := r.ReadInt32()
			if err != nil {
				return err
			}
			parts = append(parts, p)
			return nil
		})
		if err != nil {
			return err
		}
		out[topic] = parts
		return nil
	})
	return out, err
}

// rangeAssignor distributes each topic's partitions evenly (remainder to
// the first members, sorted by member id) across the members subscribed to
// it, the same "range" strategy the native Kafka consumer defaults to.
func rangeAssignor(memberTopics map[string][]string, partitionCounts map[string]int) map[string]topicPartitions {
	out := make(map[string]topicPartitions, len(memberTopics))
	for m := range memberTopics {
		out[m] = make(topicPartitions)
	}

	topicMembers := make(map[string][]string)
	for member, topics := range memberTopics {
		for _, t := range topics {
			topicMembers[t] = append(topicMembers[t], member)
		}
	}

	for topic, members := range topicMembers {
		sort.Strings(members)
		count := partitionCounts[topic]
		if count == 0 || len(members) == 0 {
			continue
		}
		per := count / len(members)
		extra := count % len(members)
		next := int32(0)
		for i, member := range members {
			n := per
			if i < extra {
				n++
			}
			parts := make([]int32, 0, n)
			for j := 0; j < n; j++ {
				parts = append(parts, next)
				next++
			}
			if len(parts) > 0 {
				out[member][topic] = parts
			}
		}
	}
	return out
}
