// Package strategy is the glue layer: given a value's shape, it picks the
// cheapest safe reclamation primitive and drives the corresponding
// component (plain dec-ref, the deferred-decrement queue, or SCC
// collection), wiring in telemetry along the way. This is the "I" in the
// component table — everything else in this module is a building block
// strategy composes, not a caller of it.
package strategy

import (
	"unsafe"

	"github.com/orizon-lang/memcore/internal/deferred"
	"github.com/orizon-lang/memcore/internal/scc"
	"github.com/orizon-lang/memcore/internal/shape"
	"github.com/orizon-lang/memcore/internal/symmetric"
	"github.com/orizon-lang/memcore/internal/telemetry"
)

// Name identifies a reclamation primitive.
type Name string

const (
	FreeTree         Name = "free_tree"
	DecRef           Name = "dec_ref"
	DeferredRelease  Name = "deferred_release"
	SCCRelease       Name = "scc_release"
)

// Input is what the dispatcher needs to decide a strategy. Frozen is an
// additive refinement (not part of the base shape lattice): when a cyclic
// value is known immutable, its cycles can go straight to SCC collection
// instead of the deferred queue.
type Input struct {
	Shape  shape.Shape
	Frozen bool
}

// Decide maps an Input to the reclamation primitive that should run.
// With Frozen left at its zero value, this reproduces the shape package's
// FreeStrategy table exactly.
func Decide(in Input) Name {
	switch in.Shape {
	case shape.Tree:
		return FreeTree
	case shape.DAG:
		return DecRef
	case shape.Cyclic:
		if in.Frozen {
			return SCCRelease
		}
		return DeferredRelease
	default:
		return DecRef
	}
}

// Dispatcher wires the shape-driven decision to the actual components.
type Dispatcher struct {
	Deferred  *deferred.Queue
	SCC       *scc.Registry
	Symmetric *symmetric.Context
	Metrics   *telemetry.Metrics
}

// New creates a Dispatcher over the given components. Metrics may be nil
// to disable instrumentation.
func New(sym *symmetric.Context, def *deferred.Queue, reg *scc.Registry, metrics *telemetry.Metrics) *Dispatcher {
	d := &Dispatcher{Deferred: def, SCC: reg, Symmetric: sym, Metrics: metrics}
	sym.OnOrphan = d.handleOrphan
	return d
}

func (d *Dispatcher) count(strategy Name) {
	if d.Metrics != nil {
		d.Metrics.AllocationsByStrategy.WithLabelValues(string(strategy)).Inc()
	}
}

// Reclaim releases one reference to obj via the strategy the input shape
// selects. DecRef drops one external reference immediately;
// DeferredRelease queues one internal decrement, applied once the queue
// reaches its batch threshold or on FlushDeferred; SCCRelease runs SCC
// detection rooted at obj and releases the groups it finds. FreeTree is a
// no-op here (tree-shaped data is reclaimed in bulk when its owning arena
// is reset or destroyed).
func (d *Dispatcher) Reclaim(obj *symmetric.Object, in Input) Name {
	strategy := Decide(in)
	d.count(strategy)

	switch strategy {
	case FreeTree:
		// Nothing to do: the arena owns reclamation for tree-shaped data.
	case DecRef:
		symmetric.DecExternal(obj, d.handleOrphan)
	case DeferredRelease:
		d.Deferred.Defer(unsafe.Pointer(obj))
		if d.Deferred.ShouldProcess() {
			d.flushDeferred()
		}
	case SCCRelease:
		d.collectCycles(obj)
	}
	return strategy
}

// FlushDeferred drains the entire deferred queue regardless of the batch
// threshold, applying coalesced internal decrements to each object.
func (d *Dispatcher) FlushDeferred() int {
	n := d.Deferred.Flush(symmetricDecrementer{d: d})
	if n > 0 && d.Metrics != nil {
		d.Metrics.DeferredBatchesFlushed.Inc()
	}
	return n
}

func (d *Dispatcher) flushDeferred() {
	d.Deferred.Process(symmetricDecrementer{d: d})
	if d.Metrics != nil {
		d.Metrics.DeferredBatchesFlushed.Inc()
	}
}

type symmetricDecrementer struct{ d *Dispatcher }

func (s symmetricDecrementer) Decrement(ptr unsafe.Pointer, count int) {
	obj := (*symmetric.Object)(ptr)
	for i := 0; i < count; i++ {
		symmetric.DecInternal(obj, s.d.handleOrphan)
	}
}

// handleOrphan is invoked whenever the symmetric counter finds an object
// with zero external references but a nonzero internal count: a cycle
// that plain reference counting cannot see is garbage. Route it to SCC
// detection rooted at the orphan.
func (d *Dispatcher) handleOrphan(obj *symmetric.Object) {
	if d.Metrics != nil {
		d.Metrics.OrphansReported.Inc()
	}
	d.collectCycles(obj)
}

func (d *Dispatcher) collectCycles(root *symmetric.Object) {
	groups := d.SCC.Detect([]*symmetric.Object{root})
	for _, g := range groups {
		if d.Metrics != nil {
			d.Metrics.SCCCollections.Inc()
		}
		d.SCC.Release(g, 1, func(o *symmetric.Object) {
			o.Freed = true
			o.Refs = nil
			o.Data = nil
		})
	}
}
