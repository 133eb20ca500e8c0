package conntab

import "testing"

func TestAcquireReleaseCycle(t *testing.T) {
	tab := New(2)
	a, err := tab.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	b, err := tab.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if a == b {
		t.Fatalf("Acquire() returned the same slot twice: %d", a)
	}
	if _, err := tab.Acquire(); err != ErrNoFreeSlot {
		t.Fatalf("Acquire() on a full table = %v, want ErrNoFreeSlot", err)
	}

	tab.Release(a)
	c, err := tab.Acquire()
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if c != a {
		t.Errorf("Acquire() after release = %d, want freed slot %d", c, a)
	}
}

func TestFreeJobNo(t *testing.T) {
	tab := New(4)
	a, _ := tab.Acquire()
	tab.Set(a, Slot{InUse: true, FSAPos: 1, JobNo: 0})
	b, _ := tab.Acquire()
	tab.Set(b, Slot{InUse: true, FSAPos: 1, JobNo: 1})

	got, err := tab.FreeJobNo(1, 3)
	if err != nil {
		t.Fatalf("FreeJobNo() error = %v", err)
	}
	if got != 2 {
		t.Errorf("FreeJobNo() = %d, want 2", got)
	}

	if _, err := tab.FreeJobNo(1, 2); err == nil {
		t.Error("FreeJobNo() with no free slots returned nil error")
	}
}

func TestInUseCountAndLen(t *testing.T) {
	tab := New(3)
	if tab.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tab.Len())
	}
	tab.Acquire()
	tab.Acquire()
	if got := tab.InUseCount(); got != 2 {
		t.Errorf("InUseCount() = %d, want 2", got)
	}
}

func TestForEachInUse(t *testing.T) {
	tab := New(3)
	a, _ := tab.Acquire()
	tab.Set(a, Slot{InUse: true, HostAlias: "host-a"})

	seen := 0
	tab.ForEachInUse(func(pos int, s Slot) {
		seen++
		if s.HostAlias != "host-a" {
			t.Errorf("ForEachInUse slot = %+v, want HostAlias host-a", s)
		}
	})
	if seen != 1 {
		t.Errorf("ForEachInUse called %d times, want 1", seen)
	}
}
