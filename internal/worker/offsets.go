package worker

import (
	"sort"
	"sync"

	"github.com/jmehdipour/credit-gateway/internal/kafka"
)

type partitionKey struct {
	topic     string
	partition int
}

// offsetTracker releases a partition's offset for commit only once every
// earlier fetched offset of that partition is done, so processors may finish
// out of order without committing past unflushed events.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[partitionKey]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64 // fetch order, ascending
	done    map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[partitionKey]*partitionOffsets)}
}

// track records a fetched message. Call it in fetch order.
func (t *offsetTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := partitionKey{m.Topic, m.Partition}
	p, ok := t.parts[k]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[k] = p
	}
	p.pending = append(p.pending, m.Offset)
}

// complete marks msgs done and returns, per partition, the highest offset now
// safe to commit.
func (t *offsetTracker) complete(msgs []kafka.Message) []kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	touched := make(map[partitionKey]struct{}, 4)
	for _, m := range msgs {
		k := partitionKey{m.Topic, m.Partition}
		p, ok := t.parts[k]
		if !ok {
			continue
		}
		p.done[m.Offset] = true
		touched[k] = struct{}{}
	}

	var out []kafka.Message
	for k := range touched {
		p := t.parts[k]
		last := int64(-1)
		n := 0
		for n < len(p.pending) && p.done[p.pending[n]] {
			last = p.pending[n]
			delete(p.done, last)
			n++
		}
		if n == 0 {
			continue
		}
		p.pending = p.pending[n:]
		out = append(out, kafka.Message{Topic: k.topic, Partition: k.partition, Offset: last})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}
