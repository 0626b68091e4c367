package hashmap

import (
	"testing"
	"unsafe"
)

func ptrOf(v *int) unsafe.Pointer { return unsafe.Pointer(v) }

func TestMapBasic(t *testing.T) {
	t.Run("insert and get", func(t *testing.T) {
		m := New[string]()
		a, b := 1, 2
		if !m.Insert(ptrOf(&a), "a") {
			t.Fatalf("expected fresh insert")
		}
		if m.Insert(ptrOf(&a), "a-updated") {
			t.Fatalf("expected overwrite, not fresh insert")
		}
		v, ok := m.Get(ptrOf(&a))
		if !ok || v != "a-updated" {
			t.Fatalf("got %q, %v", v, ok)
		}
		if _, ok := m.Get(ptrOf(&b)); ok {
			t.Fatalf("unexpected hit for unrelated key")
		}
	})

	t.Run("nil key is a no-op for insert and remove", func(t *testing.T) {
		m := New[string]()
		if m.Insert(nil, "x") {
			t.Fatalf("expected Insert(nil, ...) to report no fresh insert")
		}
		if m.Size() != 0 {
			t.Fatalf("expected nil-key insert to be a no-op, got size %d", m.Size())
		}
		if m.Remove(nil) {
			t.Fatalf("expected Remove(nil) to report nothing removed")
		}
	})

	t.Run("remove leaves tombstone but preserves lookups", func(t *testing.T) {
		m := New[int]()
		keys := make([]int, 8)
		for i := range keys {
			keys[i] = i
			m.Insert(ptrOf(&keys[i]), i*10)
		}
		if !m.Remove(ptrOf(&keys[3])) {
			t.Fatalf("expected remove to find key")
		}
		if m.Remove(ptrOf(&keys[3])) {
			t.Fatalf("expected second remove to miss")
		}
		for i := range keys {
			if i == 3 {
				continue
			}
			v, ok := m.Get(ptrOf(&keys[i]))
			if !ok || v != i*10 {
				t.Fatalf("key %d: got %d, %v", i, v, ok)
			}
		}
	})

	t.Run("resizes past load factor and keeps all entries", func(t *testing.T) {
		m := New[int]()
		const n = 200
		keys := make([]int, n)
		for i := 0; i < n; i++ {
			keys[i] = i
			m.Insert(ptrOf(&keys[i]), i)
		}
		if m.Size() != n {
			t.Fatalf("expected size %d, got %d", n, m.Size())
		}
		for i := 0; i < n; i++ {
			v, ok := m.Get(ptrOf(&keys[i]))
			if !ok || v != i {
				t.Fatalf("key %d: got %d, %v", i, v, ok)
			}
		}
	})

	t.Run("for each visits every live entry once", func(t *testing.T) {
		m := New[int]()
		keys := make([]int, 10)
		for i := range keys {
			keys[i] = i
			m.Insert(ptrOf(&keys[i]), i)
		}
		m.Remove(ptrOf(&keys[5]))

		seen := map[int]bool{}
		m.ForEach(func(_ unsafe.Pointer, v int) {
			seen[v] = true
		})
		if len(seen) != 9 {
			t.Fatalf("expected 9 live entries, saw %d", len(seen))
		}
		if seen[5] {
			t.Fatalf("removed key still visible")
		}
	})

	t.Run("clear resets to empty", func(t *testing.T) {
		m := New[int]()
		a := 1
		m.Insert(ptrOf(&a), 1)
		m.Clear()
		if m.Size() != 0 {
			t.Fatalf("expected empty map after clear")
		}
		if m.Contains(ptrOf(&a)) {
			t.Fatalf("expected key gone after clear")
		}
	})
}
