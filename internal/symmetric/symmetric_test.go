package symmetric

import "testing"

func TestDecExternalFreesWhenBothCountsZero(t *testing.T) {
	ctx := NewContext()
	obj := ctx.Alloc("leaf")
	DecExternal(obj, nil)
	if !obj.Freed {
		t.Fatalf("expected object freed once external and internal both zero")
	}
}

func TestOrphanedCycleIsNotFreedDirectly(t *testing.T) {
	ctx := NewContext()
	a := ctx.Alloc("a")
	b := ctx.Alloc("b")
	ctx.Link(a, b)
	ctx.Link(b, a) // a <-> b cycle, each held internally by the other

	var reported []*Object
	ctx.OnOrphan = func(o *Object) { reported = append(reported, o) }

	// Drop a's and b's only external references (from the global scope).
	DecExternal(a, ctx.OnOrphan)
	DecExternal(b, ctx.OnOrphan)

	if a.Freed || b.Freed {
		t.Fatalf("orphaned cycle must not be freed by symmetric counting alone")
	}
	if !a.IsOrphaned() || !b.IsOrphaned() {
		t.Fatalf("expected both members to report orphaned")
	}
	if len(reported) != 2 {
		t.Fatalf("expected orphan callback for both members, got %d", len(reported))
	}
}

func TestScopeReleaseCascadesThroughAcyclicChain(t *testing.T) {
	ctx := NewContext()
	ctx.EnterScope()

	head := ctx.Alloc("head") // owned externally by the scope
	tail := NewObject("tail") // owned only internally, via head
	ctx.Link(head, tail)

	ctx.ExitScope()
	if !head.Freed {
		t.Fatalf("expected head freed on scope exit")
	}
	if !tail.Freed {
		t.Fatalf("expected tail freed by cascade once head's internal ref dropped")
	}
}

func TestLinkWithNilFromStillIncrementsTarget(t *testing.T) {
	ctx := NewContext()
	target := ctx.Alloc("t")
	IncRef(nil, target)
	if target.InternalRC != 1 {
		t.Fatalf("expected InternalRC 1, got %d", target.InternalRC)
	}
}

func TestGetStatsTracksAllocationsAndLinks(t *testing.T) {
	ctx := NewContext()
	a := ctx.Alloc("a")
	b := ctx.Alloc("b")
	ctx.Link(a, b)

	stats := ctx.GetStats()
	if stats.ObjectsCreated != 2 {
		t.Fatalf("expected 2 objects created, got %d", stats.ObjectsCreated)
	}
	if stats.InternalIncRefs != 1 {
		t.Fatalf("expected 1 internal inc ref, got %d", stats.InternalIncRefs)
	}
}
