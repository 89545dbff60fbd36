package outbox

import (
	"sync"
	"testing"
)

func TestQueue_EnqueueDrain(t *testing.T) {
	q := New[int](10, 0)

	for i := 0; i < 5; i++ {
		if _, dropped := q.Enqueue(i); dropped {
			t.Fatalf("Enqueue(%d) dropped an item on an unbounded queue", i)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	items := q.Drain()
	if len(items) != 5 {
		t.Fatalf("Drain() returned %d items, want 5", len(items))
	}
	for i, val := range items {
		if val != i {
			t.Errorf("items[%d] = %d, want %d", i, val, i)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Len() = %d after Drain, want 0", q.Len())
	}
	if again := q.Drain(); again != nil {
		t.Errorf("Drain() on empty queue = %v, want nil", again)
	}
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := New[int](10, 0)

	for i := 0; i < 7; i++ {
		q.Enqueue(i)
	}

	stats := q.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth after 70%% fill", stats.Capacity)
	}
	if stats.ResizeCount != 1 {
		t.Errorf("ResizeCount = %d, want 1", stats.ResizeCount)
	}

	for i, val := range q.Drain() {
		if val != i {
			t.Errorf("received %d, want %d", val, i)
		}
	}
}

func TestQueue_MultipleGrowsPreserveOrder(t *testing.T) {
	q := New[int](4, 0)

	for i := 0; i < 100; i++ {
		q.Enqueue(i)
	}

	stats := q.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.ResizeCount < 3 {
		t.Errorf("ResizeCount = %d, expected at least 3 resizes", stats.ResizeCount)
	}

	items := q.Drain()
	for i := 0; i < 100; i++ {
		if items[i] != i {
			t.Fatalf("items[%d] = %d, want %d", i, items[i], i)
		}
	}
}

func TestQueue_WrapAround(t *testing.T) {
	q := New[int](5, 3)

	// Bounded at 3: enqueueing 1..6 keeps the newest three, wrapping the ring.
	for i := 1; i <= 6; i++ {
		q.Enqueue(i)
	}

	expected := []int{4, 5, 6}
	got := q.Drain()
	if len(got) != len(expected) {
		t.Fatalf("Drain() = %v, want %v", got, expected)
	}
	for i, want := range expected {
		if got[i] != want {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := New[string](2, 3)

	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")

	evicted, dropped := q.Enqueue("d")
	if !dropped || evicted != "a" {
		t.Errorf("Enqueue(d) = (%q, %v), want (a, true)", evicted, dropped)
	}

	evicted, dropped = q.Enqueue("e")
	if !dropped || evicted != "b" {
		t.Errorf("Enqueue(e) = (%q, %v), want (b, true)", evicted, dropped)
	}

	stats := q.Stats()
	if stats.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", stats.Dropped)
	}
	if stats.MaxLen != 3 {
		t.Errorf("MaxLen = %d, want 3", stats.MaxLen)
	}

	got := q.Drain()
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestQueue_Stats(t *testing.T) {
	q := New[int](10, 0)

	stats := q.Stats()
	if stats.Count != 0 || stats.Capacity != 10 || stats.TotalEnqueued != 0 || stats.TotalDrained != 0 {
		t.Errorf("initial stats incorrect: %+v", stats)
	}

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	stats = q.Stats()
	if stats.Count != 3 || stats.TotalEnqueued != 3 {
		t.Errorf("stats after enqueues: %+v", stats)
	}

	q.Drain()

	stats = q.Stats()
	if stats.Count != 0 || stats.TotalDrained != 3 {
		t.Errorf("stats after drain: %+v", stats)
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := New[int](10, 0)
	const perWriter = 250

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q.Enqueue(base + i)
			}
		}(w * perWriter)
	}
	wg.Wait()

	items := q.Drain()
	if len(items) != 4*perWriter {
		t.Fatalf("drained %d items, want %d", len(items), 4*perWriter)
	}

	// Each writer's own items must stay in the order it enqueued them.
	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for _, v := range items {
		w := v / perWriter
		if v <= last[w] {
			t.Fatalf("writer %d out of order: %d after %d", w, v, last[w])
		}
		last[w] = v
	}
}

func TestNew_MinCapacity(t *testing.T) {
	q := New[int](0, 0)
	if q.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1 for initial capacity 0", q.Cap())
	}

	q = New[int](-5, -1)
	if q.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1 for negative initial capacity", q.Cap())
	}
	if q.Stats().MaxLen != 0 {
		t.Errorf("MaxLen = %d, want 0 for negative bound", q.Stats().MaxLen)
	}
}
