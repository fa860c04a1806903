package reqslot

import "testing"

type entry struct {
	rank int32
	tag  int32
}

func TestPushFillsToCapacity(t *testing.T) {
	tbl := NewTable[entry](4)
	var ptrs []*entry
	for i := 0; i < 4; i++ {
		p, ok := tbl.Push()
		if !ok {
			t.Fatalf("Push() failed before reaching capacity at i=%d", i)
		}
		ptrs = append(ptrs, p)
	}
	if _, ok := tbl.Push(); ok {
		t.Fatal("Push() should fail once at capacity")
	}
	if tbl.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", tbl.Len())
	}
	for i, p := range ptrs {
		if !tbl.Contains(p) {
			t.Fatalf("Contains() false for slot %d", i)
		}
	}
}

func TestEraseFreesSlotForReuse(t *testing.T) {
	tbl := NewTable[entry](2)
	a, _ := tbl.Push()
	a.rank, a.tag = 1, 100
	b, _ := tbl.Push()
	b.rank, b.tag = 2, 200

	tbl.Erase(a)
	if tbl.Contains(a) {
		t.Fatal("Contains() true for erased slot")
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}

	c, ok := tbl.Push()
	if !ok {
		t.Fatal("Push() failed after Erase freed a slot")
	}
	c.rank, c.tag = 3, 300
	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}
}

func TestEachVisitsAllOccupiedInOrder(t *testing.T) {
	tbl := NewTable[entry](4)
	for i := 0; i < 3; i++ {
		p, _ := tbl.Push()
		p.rank = int32(i)
	}
	mid, _ := tbl.Push()
	tbl.Erase(mid)

	var seen []int32
	tbl.Each(func(e *entry) bool {
		seen = append(seen, e.rank)
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("Each visited %d entries, want 3", len(seen))
	}
	for i, r := range seen {
		if r != int32(i) {
			t.Errorf("seen[%d] = %d, want %d", i, r, i)
		}
	}
}

func TestFindByPredicate(t *testing.T) {
	tbl := NewTable[entry](4)
	for i := 0; i < 3; i++ {
		p, _ := tbl.Push()
		p.rank = int32(i)
		p.tag = int32(i * 10)
	}

	found := tbl.Find(func(e *entry) bool { return e.rank == 1 })
	if found == nil || found.tag != 10 {
		t.Fatalf("Find() = %+v, want rank=1 tag=10", found)
	}

	if tbl.Find(func(e *entry) bool { return e.rank == 99 }) != nil {
		t.Fatal("Find() should return nil for no match")
	}
}

func TestEraseNonMemberIsNoop(t *testing.T) {
	tbl := NewTable[entry](2)
	tbl.Push()
	foreign := &entry{}
	tbl.Erase(foreign) // must not panic or corrupt state
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after no-op erase", tbl.Len())
	}
}
