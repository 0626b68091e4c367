// Package arena implements the bump allocator used for tree-shaped data:
// a growable list of byte chunks allocated in LIFO-release order, plus a
// side list of external-release callbacks (e.g. native resources owned by
// a value living in the arena) that must run, in reverse registration
// order, when the arena is destroyed or reset.
package arena

import (
	"fmt"
	"sync"
)

const (
	defaultChunkSize = 64 * 1024
	defaultAlignment = 8
)

// Config controls arena sizing, following the teacher's Option-function
// pattern.
type Config struct {
	ChunkSize uintptr
	Alignment uintptr
}

// Option configures an Arena at construction time.
type Option func(*Config)

// WithChunkSize overrides the default chunk size new chunks are allocated
// with when the current chunk runs out of space.
func WithChunkSize(size uintptr) Option {
	return func(c *Config) { c.ChunkSize = size }
}

// WithAlignment overrides the default 8-byte allocation alignment.
func WithAlignment(align uintptr) Option {
	return func(c *Config) { c.Alignment = align }
}

func defaultConfig() Config {
	return Config{ChunkSize: defaultChunkSize, Alignment: defaultAlignment}
}

type chunk struct {
	buf  []byte
	used uintptr
}

type external struct {
	ptr     any
	release func(any)
}

// Arena is a bump allocator with LIFO external-release semantics.
type Arena struct {
	mu        sync.Mutex
	config    Config
	chunks    []*chunk
	externals []external
	destroyed bool

	totalAllocated uintptr
	allocations    uint64
}

// New creates an empty Arena. No chunk is allocated until the first Alloc.
func New(opts ...Option) *Arena {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Arena{config: cfg}
}

func alignUp(n, align uintptr) uintptr {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Alloc returns a zeroed byte slice of length size, bump-allocated from
// the current chunk, growing a new chunk if the current one doesn't have
// room. Panics if the arena has been destroyed.
func (a *Arena) Alloc(size uintptr) []byte {
	if err := validateSize(size); err != nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		panic("arena: alloc after destroy")
	}

	aligned := alignUp(size, a.config.Alignment)

	var cur *chunk
	if len(a.chunks) > 0 {
		cur = a.chunks[len(a.chunks)-1]
	}
	if cur == nil || cur.used+aligned > uintptr(len(cur.buf)) {
		chunkSize := a.config.ChunkSize
		if aligned > chunkSize {
			chunkSize = aligned
		}
		cur = &chunk{buf: make([]byte, chunkSize)}
		a.chunks = append(a.chunks, cur)
	}

	start := cur.used
	cur.used += aligned
	a.totalAllocated += aligned
	a.allocations++

	// Chunks reused after Reset still hold earlier bytes.
	clear(cur.buf[start : start+aligned])
	return cur.buf[start : start+size : start+aligned]
}

// RegisterExternal records a cleanup that must run when the arena is
// destroyed or reset. Callbacks run in LIFO order: the most recently
// registered external resource is released first.
func (a *Arena) RegisterExternal(ptr any, release func(any)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		panic("arena: register after destroy")
	}
	a.externals = append(a.externals, external{ptr: ptr, release: release})
}

// Destroy runs every registered external-release callback exactly once,
// in LIFO order, and marks the arena unusable. Destroy is idempotent.
func (a *Arena) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.drainExternalsLocked()
	a.chunks = nil
	a.destroyed = true
}

// Reset drains all external-release callbacks in LIFO order and reclaims
// chunk space for reuse, without destroying the arena.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.drainExternalsLocked()
	for _, c := range a.chunks {
		c.used = 0
	}
	a.totalAllocated = 0
	a.allocations = 0
}

func (a *Arena) drainExternalsLocked() {
	for i := len(a.externals) - 1; i >= 0; i-- {
		e := a.externals[i]
		if e.release != nil {
			e.release(e.ptr)
		}
	}
	a.externals = a.externals[:0]
}

// Stats mirrors the teacher allocator's reporting surface.
type Stats struct {
	TotalAllocated uintptr
	Allocations    uint64
	Chunks         int
	ExternalCount  int
}

func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		TotalAllocated: a.totalAllocated,
		Allocations:    a.allocations,
		Chunks:         len(a.chunks),
		ExternalCount:  len(a.externals),
	}
}

// Destroyed reports whether Destroy has been called.
func (a *Arena) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

func validateSize(size uintptr) error {
	if size == 0 {
		return fmt.Errorf("arena: size must be greater than 0")
	}
	return nil
}
