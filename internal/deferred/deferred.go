// Package deferred implements the deferred-decrement queue used to break
// up long chains of cascading reference-count decrements (dropping the
// head of a long dag-shaped list would otherwise recurse or loop once per
// element). Decrements are coalesced per object in O(1) using a
// doubly-linked pending list plus a hashmap from object to list node, and
// are drained in bounded batches.
package deferred

import (
	"sync"
	"unsafe"

	"github.com/orizon-lang/memcore/internal/hashmap"
)

const defaultBatchSize = 32

// Decrementer is implemented by whatever owns the actual reference count
// for an object (symmetric, typically). Decrement is called once per
// drained entry, with count set to the number of deferred decrements that
// were coalesced into this object's entry.
type Decrementer interface {
	Decrement(obj unsafe.Pointer, count int)
}

type node struct {
	obj        unsafe.Pointer
	count      int
	prev, next *node
}

// Config controls the batch size, following the teacher's Option pattern.
type Config struct {
	BatchSize int
}

// Option configures a Queue at construction time.
type Option func(*Config)

// WithBatchSize overrides the default batch size of 32.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

func defaultConfig() Config {
	return Config{BatchSize: defaultBatchSize}
}

// Queue is the deferred-decrement queue (Component D).
type Queue struct {
	mu     sync.Mutex
	config Config
	index  *hashmap.Map[*node]
	head   *node // oldest
	tail   *node // newest
	count  int   // number of distinct pending entries
	total  uint64
}

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Queue{config: cfg, index: hashmap.New[*node]()}
}

// Defer enqueues a decrement for obj, coalescing with any already-pending
// entry for the same object in O(1).
func (q *Queue) Defer(obj unsafe.Pointer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n, ok := q.index.Get(obj); ok {
		n.count++
		q.total++
		return
	}

	n := &node{obj: obj, count: 1}
	q.index.Insert(obj, n)
	q.pushTailLocked(n)
	q.count++
	q.total++
}

func (q *Queue) pushTailLocked(n *node) {
	n.prev = q.tail
	n.next = nil
	if q.tail != nil {
		q.tail.next = n
	}
	q.tail = n
	if q.head == nil {
		q.head = n
	}
}

func (q *Queue) popHeadLocked() *node {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.next
	if q.head != nil {
		q.head.prev = nil
	} else {
		q.tail = nil
	}
	n.next, n.prev = nil, nil
	return n
}

// Pending returns the number of distinct objects with a coalesced
// decrement still outstanding.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// ShouldProcess reports whether the queue has reached its batch-size
// trigger threshold (pending_count >= batch_size).
func (q *Queue) ShouldProcess() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count >= q.config.BatchSize
}

// Process drains up to batch_size pending entries, applying each
// coalesced decrement to dec via dec.Decrement. Entries popped from the
// head that cannot be fully processed in this call are never produced by
// this implementation (each entry is processed to completion), matching
// the "drain in bounded batches, the rest stays queued" semantics: only
// the oldest batch_size entries are drained per call, the remainder stays
// at the head of the list for the next call.
func (q *Queue) Process(dec Decrementer) int {
	q.mu.Lock()
	batch := q.config.BatchSize
	drained := make([]*node, 0, batch)
	for i := 0; i < batch; i++ {
		n := q.popHeadLocked()
		if n == nil {
			break
		}
		q.index.Remove(n.obj)
		q.count--
		drained = append(drained, n)
	}
	q.mu.Unlock()

	for _, n := range drained {
		dec.Decrement(n.obj, n.count)
	}
	return len(drained)
}

// Flush fully drains the queue, regardless of batch size, running
// Process repeatedly until empty.
func (q *Queue) Flush(dec Decrementer) int {
	total := 0
	for {
		n := q.Process(dec)
		total += n
		if n == 0 {
			break
		}
	}
	return total
}

// TotalDeferred returns the lifetime count of Defer calls (pre-coalescing).
func (q *Queue) TotalDeferred() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
