package ringbuf

import "testing"

func TestBufferRecent(t *testing.T) {
	b := New(3, 0.0)

	b.Push(1.0)
	b.Push(2.0)
	b.Push(3.0)

	if got := b.Recent(0); got != 3.0 {
		t.Errorf("Recent(0) = %v, want 3.0", got)
	}
	if got := b.Recent(1); got != 2.0 {
		t.Errorf("Recent(1) = %v, want 2.0", got)
	}
	if got := b.Recent(2); got != 1.0 {
		t.Errorf("Recent(2) = %v, want 1.0", got)
	}
}

func TestBufferEviction(t *testing.T) {
	b := New(2, 0.0)

	b.Push(1.0)
	b.Push(2.0)
	b.Push(3.0) // evicts 1.0

	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if got := b.Recent(0); got != 3.0 {
		t.Errorf("Recent(0) = %v, want 3.0", got)
	}
	if got := b.Recent(1); got != 2.0 {
		t.Errorf("Recent(1) = %v, want 2.0", got)
	}
}

func TestBufferToSlice(t *testing.T) {
	b := New(4, 0.0)
	b.Push(1.0)
	b.Push(2.0)

	got := b.ToSlice()
	want := []float64{0.0, 0.0, 1.0, 2.0}
	if len(got) != len(want) {
		t.Fatalf("ToSlice() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ToSlice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOffsetClamping(t *testing.T) {
	b := New(3, -1.0)
	b.Push(5.0)

	if got := b.Recent(10); got != -1.0 {
		t.Errorf("Recent(10) = %v, want -1.0 (oldest sample)", got)
	}
}
