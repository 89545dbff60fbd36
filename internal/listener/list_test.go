package listener

import (
	"sync"
	"testing"
)

func TestList_EmitInOrder(t *testing.T) {
	var l List[int]
	var got []string

	l.Add(func(v int) { got = append(got, "a") })
	l.Add(func(v int) { got = append(got, "b") })
	l.Add(func(v int) { got = append(got, "c") })

	l.Emit(1, nil)

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestList_RemoveByID(t *testing.T) {
	var l List[int]
	calls := map[string]int{}

	fn := func(name string) func(int) {
		return func(int) { calls[name]++ }
	}

	l.Add(fn("a"))
	b := l.Add(fn("b"))
	l.Add(fn("c"))

	if !l.Remove(b) {
		t.Fatal("Remove(b) = false, want true")
	}
	if l.Remove(b) {
		t.Error("second Remove(b) = true, want false")
	}
	if l.Remove(0) {
		t.Error("Remove(0) = true, want false")
	}

	l.Emit(0, nil)

	if calls["a"] != 1 || calls["b"] != 0 || calls["c"] != 1 {
		t.Errorf("calls = %v, want a:1 b:0 c:1", calls)
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestList_SameFuncTwice(t *testing.T) {
	var l List[int]
	count := 0
	fn := func(int) { count++ }

	first := l.Add(fn)
	l.Add(fn)

	l.Emit(0, nil)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	l.Remove(first)
	l.Emit(0, nil)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestList_PanicIsolation(t *testing.T) {
	var l List[string]
	var got []string
	var panicked []ID

	l.Add(func(s string) { got = append(got, "first:"+s) })
	bad := l.Add(func(s string) { panic("boom") })
	l.Add(func(s string) { got = append(got, "third:"+s) })

	failed := l.Emit("x", func(id ID, err error) {
		panicked = append(panicked, id)
		if err == nil {
			t.Error("expected non-nil panic error")
		}
	})

	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if len(panicked) != 1 || panicked[0] != bad {
		t.Errorf("panicked = %v, want [%d]", panicked, bad)
	}
	if len(got) != 2 || got[0] != "first:x" || got[1] != "third:x" {
		t.Errorf("got = %v", got)
	}
}

func TestList_RemoveDuringEmit(t *testing.T) {
	var l List[int]
	var second ID
	secondCalls := 0

	l.Add(func(int) { l.Remove(second) })
	second = l.Add(func(int) { secondCalls++ })

	// The snapshot taken at Emit start still includes the second listener.
	l.Emit(0, nil)
	if secondCalls != 1 {
		t.Errorf("secondCalls = %d, want 1", secondCalls)
	}

	l.Emit(0, nil)
	if secondCalls != 1 {
		t.Errorf("secondCalls = %d after removal, want 1", secondCalls)
	}
}

func TestList_Concurrent(t *testing.T) {
	var l List[int]
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := l.Add(func(int) {})
			l.Remove(id)
		}()
		go func() {
			defer wg.Done()
			l.Emit(1, nil)
		}()
	}
	wg.Wait()

	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if id == 0 {
			t.Fatal("NewID returned 0")
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
