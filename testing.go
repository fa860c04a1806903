package mpi

import (
	"fmt"

	"github.com/behrlich/shmmpi/internal/commgroup"
	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/progress"
	"github.com/behrlich/shmmpi/internal/shm"
	"github.com/behrlich/shmmpi/internal/wire"
)

// Loopback builds a world of RuntimeContexts that share a single
// shared-memory plane without forking or spawning separate OS
// processes, so package tests can drive real multi-rank traffic
// (the actual progress engine, the actual wire format) from ordinary
// goroutines. Each RuntimeContext it returns behaves exactly like one
// Init'd by a real process: Send/Recv/Isend/Irecv/collectives all run
// the production code path, just without Init's fork or env-var
// bootstrap.
//
// Because each rank's blocking calls only ever advance that rank's
// own queues, exercising a protocol that needs two ranks progressing
// concurrently (anything beyond a single Isend/Test probe) requires
// running each rank's side of the exchange in its own goroutine, the
// same way it would require a separate OS process in production.
type Loopback struct {
	ctxs  []*RuntimeContext
	plane *shm.Plane
}

// NewLoopback allocates a loopback world of the given size. Every rank
// starts with COMM_SELF/COMM_WORLD and ERRORS_RETURN bound on both, so
// a test failure surfaces as a Go error rather than os.Exit.
func NewLoopback(size int32) (*Loopback, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mpi: loopback size must be positive, got %d", size)
	}
	plane, err := shm.NewAnonymous(size)
	if err != nil {
		return nil, fmt.Errorf("mpi: loopback plane: %w", err)
	}

	ctxs := make([]*RuntimeContext, size)
	for r := int32(0); r < size; r++ {
		rank := wire.Rank(r)
		ctxs[r] = &RuntimeContext{
			plane:     plane,
			rank:      rank,
			worldSize: size,
			registry:  commgroup.NewRegistry(rank, size),
			queues:    progress.NewQueues(constants.DefaultSlotCapacity),
			metrics:   NewMetrics(),
			observer:  &NoOpObserver{},
			errHandlers: map[wire.CommId]ErrHandler{
				wire.CommWorld: ReturnErrHandler,
				wire.CommSelf:  ReturnErrHandler,
			},
			initialized: true,
		}
	}
	return &Loopback{ctxs: ctxs, plane: plane}, nil
}

// Rank returns the RuntimeContext standing in for global rank r.
func (l *Loopback) Rank(r int32) *RuntimeContext { return l.ctxs[r] }

// Size returns the world size the loopback was built with.
func (l *Loopback) Size() int32 { return int32(len(l.ctxs)) }

// Close unmaps the shared plane. It does not call Finalize on any
// rank, since a test may intentionally leave requests outstanding
// when asserting on failure paths.
func (l *Loopback) Close() error {
	return l.plane.Close()
}
