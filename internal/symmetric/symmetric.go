// Package symmetric implements the symmetric reference counter: each
// object tracks external references (from live scopes) separately from
// internal references (from other objects in the graph). An object is
// destroyed only when both counts reach zero. An object with zero
// external references but nonzero internal references is an orphaned
// cycle — garbage that symmetric counting alone cannot see, reported via
// IsOrphaned so the SCC collector (internal/scc) can reclaim it. This
// package never frees an object while it still has internal referents;
// doing so would double-free cycles the SCC pass is responsible for.
package symmetric

import "sync"

// Object participates in the symmetric reference-counted graph.
type Object struct {
	ExternalRC int
	InternalRC int
	Refs       []*Object // objects this one references, for cascade on free
	Data       any
	Freed      bool
}

// NewObject creates an unowned object with zero references.
func NewObject(data any) *Object {
	return &Object{Data: data}
}

// IsOrphaned reports whether the object has no external references but
// still has internal ones — the signature of an unreachable cycle that
// symmetric counting cannot collect on its own.
func (o *Object) IsOrphaned() bool {
	return !o.Freed && o.ExternalRC == 0 && o.InternalRC > 0
}

// TotalRC returns ExternalRC+InternalRC, for diagnostics.
func (o *Object) TotalRC() int { return o.ExternalRC + o.InternalRC }

// Scope owns a set of objects via external references.
type Scope struct {
	Owned  []*Object
	Parent *Scope
}

// NewScope creates a scope nested under parent (nil for the root scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{Parent: parent}
}

// Own takes an external reference to obj on behalf of the scope.
func (s *Scope) Own(obj *Object) {
	if obj == nil || obj.Freed {
		return
	}
	obj.ExternalRC++
	s.Owned = append(s.Owned, obj)
}

// OrphanHandler is notified when releasing a scope leaves an object
// orphaned (zero external, nonzero internal refs) rather than destroyed.
type OrphanHandler func(obj *Object)

// Release drops the scope's external reference to every object it owns.
// Objects that become orphaned (rather than destroyed) are reported to
// onOrphan, if non-nil, instead of being freed.
func (s *Scope) Release(onOrphan OrphanHandler) {
	for _, obj := range s.Owned {
		DecExternal(obj, onOrphan)
	}
	s.Owned = nil
}

// IncRef records an internal reference from `from` to `to`. from may be
// nil (e.g. a transient reference not itself tracked).
func IncRef(from, to *Object) {
	if to == nil || to.Freed {
		return
	}
	to.InternalRC++
	if from != nil {
		from.Refs = append(from.Refs, to)
	}
}

// DecExternal drops one external reference from obj and frees it if that
// brings both counts to zero. If the object becomes orphaned instead
// (internal refs remain), onOrphan is invoked and the object is left
// alone for the SCC collector.
func DecExternal(obj *Object, onOrphan OrphanHandler) {
	if obj == nil || obj.Freed {
		return
	}
	obj.ExternalRC--
	checkFree(obj, onOrphan)
}

// DecInternal drops one internal reference from obj and frees it if that
// brings both counts to zero.
func DecInternal(obj *Object, onOrphan OrphanHandler) {
	if obj == nil || obj.Freed {
		return
	}
	obj.InternalRC--
	checkFree(obj, onOrphan)
}

func checkFree(obj *Object, onOrphan OrphanHandler) {
	if obj == nil || obj.Freed {
		return
	}
	if obj.ExternalRC == 0 && obj.InternalRC == 0 {
		obj.Freed = true
		refs := obj.Refs
		obj.Refs = nil
		obj.Data = nil
		for _, ref := range refs {
			DecInternal(ref, onOrphan)
		}
		return
	}
	if obj.IsOrphaned() && onOrphan != nil {
		onOrphan(obj)
	}
}

// Stats holds lifetime counters for diagnostics and tests. Context.Alloc
// updates ObjectsCreated and ExternalIncRefs, Context.Link updates
// InternalIncRefs, and orphans found by ExitScope update CyclesReported.
// ObjectsFreed, ExternalDecRefs and InternalDecRefs are never updated.
type Stats struct {
	ObjectsCreated  int
	ObjectsFreed    int
	ExternalIncRefs int
	ExternalDecRefs int
	InternalIncRefs int
	InternalDecRefs int
	CyclesReported  int
}

// Context manages a symmetric-RC scope stack.
type Context struct {
	mu         sync.Mutex
	global     *Scope
	stack      []*Scope
	OnOrphan   OrphanHandler
	Stats      Stats
}

// NewContext creates a Context with a single global scope.
func NewContext() *Context {
	global := NewScope(nil)
	return &Context{global: global, stack: []*Scope{global}}
}

// CurrentScope returns the innermost open scope.
func (c *Context) CurrentScope() *Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stack[len(c.stack)-1]
}

// EnterScope pushes and returns a new child of the current scope.
func (c *Context) EnterScope() *Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	scope := NewScope(c.stack[len(c.stack)-1])
	c.stack = append(c.stack, scope)
	return scope
}

// ExitScope pops and releases the current scope. The global scope is
// never popped.
func (c *Context) ExitScope() {
	c.mu.Lock()
	if len(c.stack) <= 1 {
		c.mu.Unlock()
		return
	}
	scope := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.mu.Unlock()

	scope.Release(c.onOrphanLocked)
}

func (c *Context) onOrphanLocked(obj *Object) {
	c.mu.Lock()
	c.Stats.CyclesReported++
	c.mu.Unlock()
	if c.OnOrphan != nil {
		c.OnOrphan(obj)
	}
}

// Alloc creates a new object owned by the current scope.
func (c *Context) Alloc(data any) *Object {
	obj := NewObject(data)
	c.CurrentScope().Own(obj)

	c.mu.Lock()
	c.Stats.ObjectsCreated++
	c.Stats.ExternalIncRefs++
	c.mu.Unlock()
	return obj
}

// Link records an internal reference from `from` to `to`.
func (c *Context) Link(from, to *Object) {
	IncRef(from, to)
	c.mu.Lock()
	c.Stats.InternalIncRefs++
	c.mu.Unlock()
}

// GetStats returns a snapshot of lifetime counters.
func (c *Context) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Stats
}
