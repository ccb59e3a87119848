package kafka

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// Partitioner resolves the partition for a message with the given key
// within a topic of partitionCount partitions (spec.md §4.8 step 4: explicit
// partitioner, partitioner(keyHash, partitionCount), or round-robin for
// keyless messages).
type Partitioner func(key []byte, partitionCount int32) int32

// roundRobinPartitioner hashes keyed messages with murmur3 the same way the
// rest of the murmur2-based ecosystem does (32-bit hash, top bit masked off,
// modulo partition count), and hands out partitions in sequence for keyless
// messages so they still spread across the topic instead of piling onto
// partition zero. One instance is created per Producer (see
// ProducerConfig.withDefaults) so the round-robin counter isn't shared or
// raced across unrelated producers.
type roundRobinPartitioner struct {
	mu   sync.Mutex
	next int32
}

func newRoundRobinPartitioner() *roundRobinPartitioner {
	return &roundRobinPartitioner{}
}

func (p *roundRobinPartitioner) partition(key []byte, partitionCount int32) int32 {
	if partitionCount <= 0 {
		return 0
	}
	if key != nil {
		h := murmur3.Sum32(key)
		return int32(h&0x7fffffff) % partitionCount
	}
	p.mu.Lock()
	n := p.next
	p.next = (p.next + 1) % partitionCount
	p.mu.Unlock()
	return n
}
