// Package concurrent implements the shared-memory concurrency primitives
// for values that cross goroutine boundaries: an atomically-refcounted
// object carrying an owning-thread field, and a bounded channel that
// transfers ownership of a sent object from sender to receiver instead of
// bumping its refcount. A successful send consumes the sender's sole
// reference; the receiver gets that exact reference back with no atomic
// increment in between, which is what makes the transfer race-free
// without a second lock around the refcount itself.
package concurrent

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// NoOwner marks an object with no owning thread — set while an object sits
// buffered inside a Channel, between a completed send and the matching
// recv.
const NoOwner int64 = -1

// ConcObj is a reference-counted object shared across goroutines.
type ConcObj struct {
	refCount    int32 // atomic
	owner       int64 // atomic; goroutine/thread id, or NoOwner
	IsImmutable bool  // frozen objects skip refcounting and mutation entirely
	IsPair      bool  // true if Data holds a pair (car, cdr) rather than a scalar
	Data        any
}

// NewConcObj creates a ConcObj with refcount 1, owned by ownerThread.
func NewConcObj(ownerThread int64, data any) *ConcObj {
	return &ConcObj{refCount: 1, owner: ownerThread, Data: data}
}

// NewImmutableConcObj creates a frozen ConcObj. Retain and Release on it
// are no-ops: an immutable object is never reclaimed via refcounting, and
// never mutated regardless of owner.
func NewImmutableConcObj(data any, isPair bool) *ConcObj {
	return &ConcObj{refCount: 1, owner: NoOwner, IsImmutable: true, IsPair: isPair, Data: data}
}

// Retain atomically increments the refcount and returns the new value.
// Immutable objects skip the atomic op entirely and report their fixed
// refcount of 1.
func (o *ConcObj) Retain() int32 {
	if o.IsImmutable {
		return 1
	}
	return atomic.AddInt32(&o.refCount, 1)
}

// Release atomically decrements the refcount and returns the new value.
// The caller is responsible for reclaiming o once this reaches zero.
// Immutable objects skip the op entirely and are never reclaimed this way.
func (o *ConcObj) Release() int32 {
	if o.IsImmutable {
		return 1
	}
	return atomic.AddInt32(&o.refCount, -1)
}

// RefCount returns the current refcount.
func (o *ConcObj) RefCount() int32 { return atomic.LoadInt32(&o.refCount) }

// OwnerThread returns the id of the owning thread, or NoOwner.
func (o *ConcObj) OwnerThread() int64 { return atomic.LoadInt64(&o.owner) }

func (o *ConcObj) setOwner(id int64) { atomic.StoreInt64(&o.owner, id) }

// CanMutate reports whether callerThread may mutate o's non-atomic
// fields: only the current owner may, and only if o is not immutable.
func (o *ConcObj) CanMutate(callerThread int64) bool {
	return !o.IsImmutable && atomic.LoadInt64(&o.owner) == callerThread
}

// SetData mutates o's payload if the caller is the current owner and o is
// not immutable; returns false otherwise and leaves o untouched.
func (o *ConcObj) SetData(callerThread int64, data any) bool {
	if !o.CanMutate(callerThread) {
		return false
	}
	o.Data = data
	return true
}

// ErrClosed is returned by Send/Recv once the channel has been closed.
var ErrClosed = errors.New("concurrent: channel closed")

// ErrFull and ErrEmpty are returned by the non-blocking TrySend/TryRecv.
var (
	ErrFull  = errors.New("concurrent: channel full")
	ErrEmpty = errors.New("concurrent: channel empty")
)

// Channel is a bounded MPMC channel with ownership-transfer semantics: it
// never touches a transferred object's refcount, only its owner field.
type Channel struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf        []*ConcObj
	head, tail int
	_          cpu.CacheLinePad
	count      atomic.Int32
	capacity   int
	closed     bool
}

// NewChannel creates a bounded Channel of the given capacity (minimum 1).
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	c := &Channel{buf: make([]*ConcObj, capacity), capacity: capacity}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// Send blocks until there is room, transferring ownership of obj into the
// channel: obj's owner field is set to NoOwner and its refcount is left
// untouched — the caller must not use obj again after a successful send.
func (c *Channel) Send(obj *ConcObj) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for int(c.count.Load()) == c.capacity && !c.closed {
		c.notFull.Wait()
	}
	if c.closed {
		return ErrClosed
	}

	obj.setOwner(NoOwner)
	c.buf[c.tail] = obj
	c.tail = (c.tail + 1) % c.capacity
	c.count.Add(1)
	c.notEmpty.Signal()
	return nil
}

// TrySend is the non-blocking form of Send.
func (c *Channel) TrySend(obj *ConcObj) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if int(c.count.Load()) == c.capacity {
		return ErrFull
	}

	obj.setOwner(NoOwner)
	c.buf[c.tail] = obj
	c.tail = (c.tail + 1) % c.capacity
	c.count.Add(1)
	c.notEmpty.Signal()
	return nil
}

// Recv blocks until a value is available, transferring ownership to
// receiverThread. Returns ErrClosed once the channel is closed and
// drained.
func (c *Channel) Recv(receiverThread int64) (*ConcObj, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.count.Load() == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if c.count.Load() == 0 && c.closed {
		return nil, ErrClosed
	}

	obj := c.buf[c.head]
	c.buf[c.head] = nil
	c.head = (c.head + 1) % c.capacity
	c.count.Add(-1)
	obj.setOwner(receiverThread)
	c.notFull.Signal()
	return obj, nil
}

// TryRecv is the non-blocking form of Recv.
func (c *Channel) TryRecv(receiverThread int64) (*ConcObj, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count.Load() == 0 {
		if c.closed {
			return nil, ErrClosed
		}
		return nil, ErrEmpty
	}

	obj := c.buf[c.head]
	c.buf[c.head] = nil
	c.head = (c.head + 1) % c.capacity
	c.count.Add(-1)
	obj.setOwner(receiverThread)
	c.notFull.Signal()
	return obj, nil
}

// Close marks the channel closed and wakes every blocked sender and
// receiver. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// Len returns the number of buffered values.
func (c *Channel) Len() int { return int(c.count.Load()) }

// Cap returns the channel's capacity.
func (c *Channel) Cap() int { return c.capacity }
