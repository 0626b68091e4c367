package arena

import (
	"testing"
)

func TestArenaAlloc(t *testing.T) {
	t.Run("bump allocates within a chunk", func(t *testing.T) {
		a := New(WithChunkSize(4096))
		p1 := a.Alloc(16)
		p2 := a.Alloc(16)
		if len(p1) != 16 || len(p2) != 16 {
			t.Fatalf("unexpected slice lengths")
		}
		stats := a.Stats()
		if stats.Chunks != 1 {
			t.Fatalf("expected single chunk, got %d", stats.Chunks)
		}
	})

	t.Run("grows a new chunk when current is exhausted", func(t *testing.T) {
		a := New(WithChunkSize(32))
		a.Alloc(24)
		a.Alloc(24) // doesn't fit in remaining 8 bytes of chunk 1
		if a.Stats().Chunks != 2 {
			t.Fatalf("expected 2 chunks, got %d", a.Stats().Chunks)
		}
	})

	t.Run("zero size allocation returns nil", func(t *testing.T) {
		a := New()
		if a.Alloc(0) != nil {
			t.Fatalf("expected nil for zero-size alloc")
		}
	})
}

func TestArenaExternalReleaseLIFO(t *testing.T) {
	a := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		a.RegisterExternal(i, func(v any) {
			order = append(order, v.(int))
		})
	}
	a.Destroy()

	want := []int{4, 3, 2, 1, 0}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestArenaDestroyIsIdempotentAndBlocksFurtherUse(t *testing.T) {
	a := New()
	released := 0
	a.RegisterExternal(nil, func(any) { released++ })
	a.Destroy()
	a.Destroy()
	if released != 1 {
		t.Fatalf("expected exactly one release, got %d", released)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic allocating from destroyed arena")
		}
	}()
	a.Alloc(8)
}

func TestArenaResetReleasesExternalsAndReclaimsSpace(t *testing.T) {
	a := New(WithChunkSize(64))
	released := false
	a.RegisterExternal(nil, func(any) { released = true })
	a.Alloc(32)
	a.Reset()

	if !released {
		t.Fatalf("expected external release on reset")
	}
	if a.Stats().TotalAllocated != 0 {
		t.Fatalf("expected reclaimed space after reset")
	}
	// Arena remains usable after Reset (unlike Destroy).
	a.Alloc(8)
}
