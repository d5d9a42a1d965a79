package list

import "testing"

func TestPushBackOrder(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)
	got := l.ToSlice()
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ToSlice = %v, want %v", got, want)
		}
	}
}

func TestPopFrontEmpty(t *testing.T) {
	l := New[int]()
	if _, ok := l.PopFront(); ok {
		t.Fatal("PopFront on empty list should report ok=false")
	}
}

func TestHandleRemoveMiddle(t *testing.T) {
	l := New[string]()
	l.PushBack("a")
	h := l.PushBack("b")
	l.PushBack("c")
	l.Remove(h)
	got := l.ToSlice()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("ToSlice after remove = %v", got)
	}
}

func TestRemoveNilHandlePanics(t *testing.T) {
	l := New[int]()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic removing nil handle")
		}
	}()
	l.Remove(nil)
}

func TestRemoveMatch(t *testing.T) {
	l := New[int]()
	l.PushBack(10)
	l.PushBack(20)
	l.PushBack(30)
	v, ok := l.RemoveMatch(func(x int) bool { return x == 20 })
	if !ok || v != 20 {
		t.Fatalf("RemoveMatch = %v, %v", v, ok)
	}
	if l.Len() != 2 {
		t.Fatalf("Len after RemoveMatch = %d, want 2", l.Len())
	}
}

func TestLenAndEmpty(t *testing.T) {
	l := New[int]()
	if !l.Empty() {
		t.Fatal("new list should be empty")
	}
	l.PushFront(1)
	if l.Empty() || l.Len() != 1 {
		t.Fatalf("Len=%d Empty=%v after one push", l.Len(), l.Empty())
	}
}
