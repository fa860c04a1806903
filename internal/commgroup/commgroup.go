// Package commgroup holds the Communicator value and the rank/tag
// translation math every layer above the progress engine needs. It
// deliberately does not implement Comm_dup or Comm_split itself — both
// need to run a collective (an all-reduce or all-gather) over the
// communicator being split, and internal/collectives in turn needs a
// rank/tag translator, so the orchestration for those two operations
// lives in the root package instead of here to avoid a two-package
// import cycle. This package only holds the data Dup/Split build from.
package commgroup

import (
	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/wire"
)

// Communicator is a communicator's process-local view: which global
// ranks are members, this process's position among them, and the tag
// namespace key collectives use to avoid colliding with user traffic
// or with each other.
type Communicator struct {
	// Prank maps a communicator-local rank to a global rank.
	Prank []wire.Rank

	// Rank is this process's communicator-local rank.
	Rank wire.Rank

	// Key is the tag-namespace prefix this communicator's collectives
	// use, bumped by KeyChanger for the duration of a nested call.
	Key int32

	// ErrHandler is the error handler currently bound to this
	// communicator.
	ErrHandler wire.ErrHandlerId
}

// Size returns the number of member ranks.
func (c *Communicator) Size() int32 { return int32(len(c.Prank)) }

// NewSelf builds the single-member COMM_SELF communicator for a
// process whose global rank is me.
func NewSelf(me wire.Rank, key int32) *Communicator {
	return &Communicator{
		Prank: []wire.Rank{me},
		Rank:  0,
		Key:   key,
	}
}

// NewWorld builds the COMM_WORLD communicator: every global rank,
// ordered by rank number, local rank equal to global rank.
func NewWorld(me wire.Rank, size int32, key int32) *Communicator {
	prank := make([]wire.Rank, size)
	for i := range prank {
		prank[i] = wire.Rank(i)
	}
	return &Communicator{
		Prank: prank,
		Rank:  me,
		Key:   key,
	}
}

// RankMap translates a communicator-local rank to its global rank.
func RankMap(c *Communicator, local wire.Rank) wire.Rank {
	return c.Prank[local]
}

// RankUnmap translates a global rank to its communicator-local rank,
// or -1 if global is not a member of c.
func RankUnmap(c *Communicator, global wire.Rank) wire.Rank {
	for i, r := range c.Prank {
		if r == global {
			return wire.Rank(i)
		}
	}
	return -1
}

// TagMap namespaces a user tag under c's current key, producing the
// wire tag actually carried on the channel.
func TagMap(c *Communicator, tag int32) int32 {
	return (c.Key << constants.TagBits) | (tag & constants.TagMask)
}

// TagUnmap strips the communicator-key prefix back off a wire tag,
// returning the user-visible tag.
func TagUnmap(tag int32) int32 {
	return tag & constants.TagMask
}

// IncKey and DecKey bracket a collective's internal Send/Recv traffic
// in its own tag namespace, distinct from both user traffic and
// concurrently nested collectives on the same communicator.
func IncKey(c *Communicator) { c.Key++ }
func DecKey(c *Communicator) { c.Key-- }

// KeyChanger bumps c's key and returns a restore function; callers
// defer the result so the key change brackets exactly one collective
// call, however it returns.
//
//	restore := commgroup.KeyChanger(c)
//	defer restore()
func KeyChanger(c *Communicator) func() {
	IncKey(c)
	return func() { DecKey(c) }
}

// Registry owns the growing set of communicators a process has
// created (COMM_SELF, COMM_WORLD, and every later Dup/Split result)
// plus the monotonic key generator new communicators draw from.
type Registry struct {
	comms  []*Communicator
	keyMax int32
}

// NewRegistry seeds a registry with COMM_SELF at index 0 and
// COMM_WORLD at index 1, matching wire.CommSelf and wire.CommWorld.
func NewRegistry(me wire.Rank, worldSize int32) *Registry {
	r := &Registry{}
	self := NewSelf(me, r.keyMax)
	r.keyMax += constants.CommKeyInc
	world := NewWorld(me, worldSize, r.keyMax)
	r.keyMax += constants.CommKeyInc
	r.comms = []*Communicator{self, world}
	return r
}

// Get returns the communicator for id, or nil if id is out of range.
func (r *Registry) Get(id wire.CommId) *Communicator {
	if id < 0 || int(id) >= len(r.comms) {
		return nil
	}
	return r.comms[id]
}

// Valid reports whether id names a live communicator.
func (r *Registry) Valid(id wire.CommId) bool {
	return r.Get(id) != nil
}

// Size returns the number of communicators the registry currently
// tracks (including COMM_SELF and COMM_WORLD).
func (r *Registry) Size() int { return len(r.comms) }

// KeyMax returns the current key generator value.
func (r *Registry) KeyMax() int32 { return r.keyMax }

// SetKeyMax overwrites the key generator, used after a Dup/Split
// collective agrees on a new high-water mark across all members.
func (r *Registry) SetKeyMax(v int32) { r.keyMax = v }

// NextKey returns the current key generator value and advances it by
// CommKeyInc, for a caller building a brand new communicator.
func (r *Registry) NextKey() int32 {
	k := r.keyMax
	r.keyMax += constants.CommKeyInc
	return k
}

// Append registers a newly built communicator and returns its id.
func (r *Registry) Append(c *Communicator) wire.CommId {
	r.comms = append(r.comms, c)
	return wire.CommId(len(r.comms) - 1)
}
