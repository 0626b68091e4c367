// Package region implements a region (scope) stack: a tree of nested
// lifetimes where a deeper region may reference an object owned by any of
// its ancestors, but never the reverse. This is the discipline that lets
// tree-shaped data live in bump arenas without per-object bookkeeping:
// an inward-pointing reference would outlive the allocation it reaches
// into, so it is rejected at creation time rather than detected later.
package region

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/orizon-lang/memcore/internal/hashmap"
)

// ErrScopeViolation is returned by CreateRef when the source region is
// shallower than the target region — the reference would reach inward
// to an object that may be freed first — or when either object's region
// has already been exited.
var ErrScopeViolation = errors.New("region: reference would cross into a deeper scope")

// ErrUnderflow is returned by ExitRegion when called on the root region
// or a region that has already been exited.
var ErrUnderflow = errors.New("region: cannot exit root or already-closed region")

// ID uniquely identifies a Region within a Context.
type ID uint64

// Depth is the nesting depth of a Region; the root is depth 0.
type Depth uint32

// Region is one scope in the stack.
type Region struct {
	ID       ID
	Depth    Depth
	Parent   *Region
	Children []*Region
	Closed   bool

	objects []*Object
	index   *hashmap.Map[*Object]
}

// Object is a value owned by a Region.
type Object struct {
	Region  *Region
	Data    any
	release func(any)
}

// Ref is a validated reference from one Object to another, created only
// when the depth discipline permits it.
type Ref struct {
	Source *Object
	Target *Object
}

// Context owns the region tree and tracks the current (innermost) region.
type Context struct {
	mu      sync.Mutex
	root    *Region
	current *Region
	nextID  ID
	regions map[ID]*Region
}

// NewContext creates a Context with a single root region at depth 0.
func NewContext() *Context {
	c := &Context{regions: make(map[ID]*Region)}
	c.root = &Region{ID: 0, Depth: 0, index: hashmap.New[*Object]()}
	c.current = c.root
	c.regions[0] = c.root
	c.nextID = 1
	return c
}

// Current returns the innermost open region.
func (c *Context) Current() *Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// EnterRegion pushes a new child region of the current region and makes
// it current.
func (c *Context) EnterRegion() *Region {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &Region{
		ID:     c.nextID,
		Depth:  c.current.Depth + 1,
		Parent: c.current,
		index:  hashmap.New[*Object](),
	}
	c.nextID++
	c.current.Children = append(c.current.Children, r)
	c.regions[r.ID] = r
	c.current = r
	return r
}

// ExitRegion closes the current region, releases every object it owns in
// LIFO (reverse allocation) order, and makes its parent current. Returns
// ErrUnderflow for the root region or a region already closed.
func (c *Context) ExitRegion() error {
	c.mu.Lock()
	r := c.current
	if r.Parent == nil || r.Closed {
		c.mu.Unlock()
		return ErrUnderflow
	}

	r.Closed = true
	c.current = r.Parent
	c.mu.Unlock()

	releaseRegionObjects(r)
	return nil
}

// ContextFree releases every region still open, innermost first, running
// each owned object's release function in LIFO order, down to and
// including the root.
func (c *Context) ContextFree() {
	for {
		if err := c.ExitRegion(); err != nil {
			break
		}
	}

	c.mu.Lock()
	root := c.root
	root.Closed = true
	c.mu.Unlock()
	releaseRegionObjects(root)
}

// releaseRegionObjects invokes every owned object's release function, in
// reverse allocation order, and detaches the object from the region.
func releaseRegionObjects(r *Region) {
	for i := len(r.objects) - 1; i >= 0; i-- {
		obj := r.objects[i]
		obj.Region = nil
		if obj.release != nil {
			obj.release(obj.Data)
		}
	}
}

// Alloc creates a new Object owned by the given region. release, if
// non-nil, is invoked with the object's data when the region exits or the
// context is freed, in LIFO order among the region's own objects.
func (c *Context) Alloc(r *Region, data any, release func(any)) *Object {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj := &Object{Region: r, Data: data, release: release}
	r.objects = append(r.objects, obj)
	r.index.Insert(unsafe.Pointer(obj), obj)
	return obj
}

// CreateRef validates and creates a reference from source to target. It
// succeeds exactly when target.Region.Depth <= source.Region.Depth: the
// referent must live in the same region or an ancestor of it.
func CreateRef(source, target *Object) (*Ref, error) {
	if source.Region == nil || target.Region == nil {
		return nil, ErrScopeViolation
	}
	if target.Region.Depth > source.Region.Depth {
		return nil, ErrScopeViolation
	}
	return &Ref{Source: source, Target: target}, nil
}

// Deref returns the referent's data, or ok=false if its region has since
// been exited.
func (r *Ref) Deref() (any, bool) {
	if r.Target.Region == nil {
		return nil, false
	}
	return r.Target.Data, true
}

// CanReference reports whether a reference from source to target would be
// permitted, without constructing one.
func CanReference(source, target *Object) bool {
	if source.Region == nil || target.Region == nil {
		return false
	}
	return target.Region.Depth <= source.Region.Depth
}

// IsAncestor reports whether ancestor is ancestor (or the same) of r by
// walking the parent chain.
func IsAncestor(ancestor, r *Region) bool {
	for cur := r; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Owns reports whether region r currently owns obj (O(1) via the
// region-local pointer index, supplementing the plain ownership slice).
func (r *Region) Owns(obj *Object) bool {
	return obj != nil && obj.Region == r && r.index.Contains(unsafe.Pointer(obj))
}

// ObjectCount returns the number of objects ever allocated in r (objects
// remain counted after the region closes).
func (r *Region) ObjectCount() int { return len(r.objects) }
