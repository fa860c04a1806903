package commgroup

import (
	"testing"

	"github.com/behrlich/shmmpi/internal/wire"
)

func TestNewRegistrySeedsSelfAndWorld(t *testing.T) {
	r := NewRegistry(2, 4)

	self := r.Get(wire.CommSelf)
	if self == nil || self.Size() != 1 || self.Prank[0] != 2 {
		t.Fatalf("COMM_SELF = %+v, want single member rank 2", self)
	}

	world := r.Get(wire.CommWorld)
	if world == nil || world.Size() != 4 || world.Rank != 2 {
		t.Fatalf("COMM_WORLD = %+v, want 4 members, local rank 2", world)
	}
	for i, p := range world.Prank {
		if p != wire.Rank(i) {
			t.Fatalf("COMM_WORLD.Prank[%d] = %d, want %d", i, p, i)
		}
	}
	if self.Key == world.Key {
		t.Fatal("COMM_SELF and COMM_WORLD must draw distinct keys")
	}
}

func TestRankMapRoundTrip(t *testing.T) {
	c := &Communicator{Prank: []wire.Rank{5, 1, 9}, Rank: 1}
	if got := RankMap(c, 2); got != 9 {
		t.Fatalf("RankMap(2) = %d, want 9", got)
	}
	if got := RankUnmap(c, 9); got != 2 {
		t.Fatalf("RankUnmap(9) = %d, want 2", got)
	}
	if got := RankUnmap(c, 42); got != -1 {
		t.Fatalf("RankUnmap(42) = %d, want -1 for non-member", got)
	}
}

func TestTagMapNamespacesAndUnmapStrips(t *testing.T) {
	c := &Communicator{Key: 3}
	wireTag := TagMap(c, 100)
	if TagUnmap(wireTag) != 100 {
		t.Fatalf("TagUnmap(TagMap(100)) = %d, want 100", TagUnmap(wireTag))
	}

	other := &Communicator{Key: 4}
	if TagMap(other, 100) == wireTag {
		t.Fatal("different communicator keys must namespace to different wire tags")
	}
}

func TestKeyChangerRestoresOnDefer(t *testing.T) {
	c := &Communicator{Key: 10}
	func() {
		restore := KeyChanger(c)
		defer restore()
		if c.Key != 11 {
			t.Fatalf("Key during KeyChanger scope = %d, want 11", c.Key)
		}
	}()
	if c.Key != 10 {
		t.Fatalf("Key after KeyChanger scope = %d, want restored to 10", c.Key)
	}
}

func TestRegistryAppendAndNextKey(t *testing.T) {
	r := NewRegistry(0, 2)
	startKeyMax := r.KeyMax()

	k := r.NextKey()
	if k != startKeyMax {
		t.Fatalf("NextKey() = %d, want %d", k, startKeyMax)
	}

	dup := &Communicator{Prank: r.Get(wire.CommWorld).Prank, Key: k}
	id := r.Append(dup)
	if id != wire.CommId(r.Size()-1) {
		t.Fatalf("Append id = %d, want last index %d", id, r.Size()-1)
	}
	if r.Get(id) != dup {
		t.Fatal("Get(id) did not return the appended communicator")
	}
}
