// Package scc detects strongly connected components in the
// symmetric-reference-counted object graph and collects them as a unit.
// Detection uses an explicit work stack rather than recursion: the graphs
// this runs over are exactly the ones a recursive walk would blow the
// native stack on (self-referential and mutually-referential cycles), so
// Tarjan's algorithm is restructured here with its own call-frame stack
// standing in for the native one.
package scc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/orizon-lang/memcore/internal/hashmap"
	"github.com/orizon-lang/memcore/internal/symmetric"
)

func ptrOf(o *symmetric.Object) unsafe.Pointer { return unsafe.Pointer(o) }

// frame is one explicit call frame of the iterative Tarjan walk, standing
// in for a native recursive call to strongconnect(node).
type frame struct {
	node     *symmetric.Object
	childIdx int
}

// tarjanSCCs returns every strongly connected component reachable from
// roots, in the order Tarjan's algorithm discovers them (reverse
// topological order of the condensation graph).
func tarjanSCCs(roots []*symmetric.Object) [][]*symmetric.Object {
	index := hashmap.New[int]()
	lowlink := hashmap.New[int]()
	onStack := hashmap.New[bool]()
	var tarjanStack []*symmetric.Object
	nextIndex := 0
	var components [][]*symmetric.Object

	for _, root := range roots {
		if root == nil {
			continue
		}
		if _, visited := index.Get(ptrOf(root)); visited {
			continue
		}

		var work []*frame
		index.Insert(ptrOf(root), nextIndex)
		lowlink.Insert(ptrOf(root), nextIndex)
		nextIndex++
		tarjanStack = append(tarjanStack, root)
		onStack.Insert(ptrOf(root), true)
		work = append(work, &frame{node: root})

		for len(work) > 0 {
			top := work[len(work)-1]

			if top.childIdx < len(top.node.Refs) {
				child := top.node.Refs[top.childIdx]
				top.childIdx++
				if child == nil {
					continue
				}

				if _, visited := index.Get(ptrOf(child)); !visited {
					index.Insert(ptrOf(child), nextIndex)
					lowlink.Insert(ptrOf(child), nextIndex)
					nextIndex++
					tarjanStack = append(tarjanStack, child)
					onStack.Insert(ptrOf(child), true)
					work = append(work, &frame{node: child})
				} else if onS, _ := onStack.Get(ptrOf(child)); onS {
					childIdxVal, _ := index.Get(ptrOf(child))
					selfLowlink, _ := lowlink.Get(ptrOf(top.node))
					if childIdxVal < selfLowlink {
						lowlink.Insert(ptrOf(top.node), childIdxVal)
					}
				}
				continue
			}

			// All children visited: pop the frame and propagate lowlink.
			work = work[:len(work)-1]
			selfLowlink, _ := lowlink.Get(ptrOf(top.node))
			selfIndex, _ := index.Get(ptrOf(top.node))

			if len(work) > 0 {
				parent := work[len(work)-1].node
				parentLowlink, _ := lowlink.Get(ptrOf(parent))
				if selfLowlink < parentLowlink {
					lowlink.Insert(ptrOf(parent), selfLowlink)
				}
			}

			if selfLowlink == selfIndex {
				var comp []*symmetric.Object
				for {
					w := tarjanStack[len(tarjanStack)-1]
					tarjanStack = tarjanStack[:len(tarjanStack)-1]
					onStack.Insert(ptrOf(w), false)
					comp = append(comp, w)
					if w == top.node {
						break
					}
				}
				components = append(components, comp)
			}
		}
	}

	return components
}

func isSelfLoop(o *symmetric.Object) bool {
	for _, r := range o.Refs {
		if r == o {
			return true
		}
	}
	return false
}

// GroupID identifies an SCC group within a Registry.
type GroupID uint64

// Group collapses a strongly connected component into a single
// reference-counted unit: freeing the group frees every member together.
type Group struct {
	ID       GroupID
	Members  []*symmetric.Object
	Frozen   bool
	refCount int32
	_        cpu.CacheLinePad
	removed  bool

	next *Group // threads the registry's result list, oldest-registered first
}

// RefCount returns the group's current shared refcount.
func (g *Group) RefCount() int32 { return atomic.LoadInt32(&g.refCount) }

// Registry owns every live SCC group, indexed by member for O(1) lookup.
type Registry struct {
	mu      sync.Mutex
	head    *Group // oldest
	tail    *Group
	nextID  GroupID
	byMember *hashmap.Map[*Group]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byMember: hashmap.New[*Group]()}
}

// Detect runs the iterative Tarjan pass over the graph reachable from
// roots and registers every true cycle found (components with more than
// one member, or a single self-referencing member) as a new Group.
// Acyclic singleton components are not registered — dec_ref already
// handles them. Returns the newly created groups, oldest first.
func (r *Registry) Detect(roots []*symmetric.Object) []*Group {
	components := tarjanSCCs(roots)

	var created []*Group
	for _, comp := range components {
		if len(comp) == 1 && !isSelfLoop(comp[0]) {
			continue
		}
		created = append(created, r.createGroup(comp))
	}
	return created
}

// Compute is the full result-list form of the algorithm (spec §6's
// `compute(root) -> result-list`): every component reachable from roots,
// in discovery order, including acyclic singletons — unlike Detect, which
// only registers and returns the components that actually need SCC-based
// collection. Use Compute to inspect the graph's full cycle structure
// (e.g. "a linear chain of length k yields k singleton components"); use
// Detect to drive reclamation.
func (r *Registry) Compute(roots []*symmetric.Object) [][]*symmetric.Object {
	return tarjanSCCs(roots)
}

func (r *Registry) createGroup(members []*symmetric.Object) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	var refCount int32
	for _, m := range members {
		refCount += int32(m.ExternalRC)
	}

	g := &Group{ID: r.nextID, Members: members, refCount: refCount}
	r.nextID++

	if r.tail != nil {
		r.tail.next = g
	} else {
		r.head = g
	}
	r.tail = g

	for _, m := range members {
		r.byMember.Insert(ptrOf(m), g)
	}
	return g
}

// FindGroup returns the group owning obj, if any.
func (r *Registry) FindGroup(obj *symmetric.Object) (*Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byMember.Get(ptrOf(obj))
}

// Release drops delta from the group's shared refcount. When the count
// reaches zero, every member is finalized via onFree (or simply marked
// Freed if onFree is nil) and the group is removed from the registry.
// Release is a no-op on an already-removed group.
func (r *Registry) Release(g *Group, delta int32, onFree func(*symmetric.Object)) {
	if g == nil {
		return
	}
	remaining := atomic.AddInt32(&g.refCount, -delta)
	if remaining > 0 {
		return
	}

	r.mu.Lock()
	if g.removed {
		r.mu.Unlock()
		return
	}
	g.removed = true
	r.removeLocked(g)
	r.mu.Unlock()

	for _, m := range g.Members {
		if onFree != nil {
			onFree(m)
		} else {
			m.Freed = true
			m.Refs = nil
			m.Data = nil
		}
	}
}

func (r *Registry) removeLocked(g *Group) {
	for _, m := range g.Members {
		r.byMember.Remove(ptrOf(m))
	}
	// Unlink from the singly linked result list.
	if r.head == g {
		r.head = g.next
		if r.tail == g {
			r.tail = nil
		}
		return
	}
	for cur := r.head; cur != nil; cur = cur.next {
		if cur.next == g {
			cur.next = g.next
			if r.tail == g {
				r.tail = cur
			}
			return
		}
	}
}

// Groups returns every live group, oldest-registered first, following the
// registry's internal result-list thread.
func (r *Registry) Groups() []*Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Group
	for g := r.head; g != nil; g = g.next {
		out = append(out, g)
	}
	return out
}
