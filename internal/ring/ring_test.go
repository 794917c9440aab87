package ring

import "testing"

func TestPushBelowCapacity(t *testing.T) {
	b := New[int](5)
	for i := 1; i <= 3; i++ {
		b.Push(i)
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	got := b.Snapshot()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
}

func TestEvictionOrder(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}
	if b.Len() != 3 {
		t.Fatalf("len = %d, want 3", b.Len())
	}
	got := b.Snapshot()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
	if v, ok := b.At(0); !ok || v != 3 {
		t.Fatalf("At(0) = %v, %v; want 3, true", v, ok)
	}
	if v, ok := b.Last(); !ok || v != 5 {
		t.Fatalf("Last() = %v, %v; want 5, true", v, ok)
	}
}

func TestOutOfRange(t *testing.T) {
	b := New[string](2)
	if _, ok := b.At(0); ok {
		t.Fatal("At(0) on empty buffer reported ok")
	}
	if _, ok := b.Last(); ok {
		t.Fatal("Last() on empty buffer reported ok")
	}
	b.Push("a")
	if _, ok := b.At(1); ok {
		t.Fatal("At(1) with one element reported ok")
	}
	if _, ok := b.At(-1); ok {
		t.Fatal("At(-1) reported ok")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	s := b.Snapshot()
	s[0] = 99
	if v, _ := b.At(0); v != 1 {
		t.Fatalf("snapshot mutation leaked into buffer: %d", v)
	}
}
