package mpi

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/behrlich/shmmpi/internal/blockcopy"
	"github.com/behrlich/shmmpi/internal/commgroup"
	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/launch"
	"github.com/behrlich/shmmpi/internal/logging"
	"github.com/behrlich/shmmpi/internal/progress"
	"github.com/behrlich/shmmpi/internal/shm"
	"github.com/behrlich/shmmpi/internal/wire"
)

// RuntimeContext is the single process-wide handle Init builds and
// every public call looks up: the shared-memory plane, this process's
// rank and the world size, the communicator registry, the per-rank
// progress queues, and the metrics/observer pair. The public
// operations are methods on RuntimeContext; Current returns the one
// Init installed.
type RuntimeContext struct {
	mu sync.Mutex

	plane     *shm.Plane
	rank      wire.Rank
	worldSize int32
	registry  *commgroup.Registry
	queues    *progress.Queues

	metrics  *Metrics
	observer Observer

	errHandlers map[wire.CommId]ErrHandler

	initialized bool
}

var (
	current   *RuntimeContext
	currentMu sync.RWMutex
)

// Current returns the process singleton installed by Init, or nil if
// Init has not yet succeeded.
func Current() *RuntimeContext {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func setCurrent(rc *RuntimeContext) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = rc
}

// InitOptions configures Init. The zero value is the default
// configuration: world size from SHMMPI_SIZE (or -n/-np), an anonymous
// fork-bootstrapped plane, metrics-backed observation, and
// ERRORS_ARE_FATAL on COMM_WORLD and COMM_SELF, matching the reference runtime's
// default error handler.
type InitOptions struct {
	// Observer overrides the default MetricsObserver. Nil keeps the
	// default.
	Observer Observer

	// Logger overrides the default package logger. Nil keeps
	// logging.Default().
	Logger *logging.Logger

	// DefaultErrHandler overrides ERRORS_ARE_FATAL for COMM_WORLD and
	// COMM_SELF.
	DefaultErrHandler ErrHandler

	// SlotCapacity overrides constants.DefaultSlotCapacity for the
	// send/recv/unexpected queues.
	SlotCapacity int
}

// worldSizeFromArgs implements the reference runtime's -n/-np argument
// scan: the first recognized flag wins and its value replaces
// whatever the environment already supplied. An invalid or
// non-positive argument is silently ignored, falling back to the
// environment-derived size.
func worldSizeFromArgs(args []string, fallback int32) int32 {
	for i, a := range args {
		if a != "-n" && a != "-np" {
			continue
		}
		if i+1 >= len(args) {
			break
		}
		var n int32
		if _, err := fmt.Sscanf(args[i+1], "%d", &n); err != nil || n <= 0 {
			break
		}
		return n
	}
	return fallback
}

// Init bootstraps the runtime: it determines the world size, builds
// the shared-memory plane, establishes this process's rank, and
// installs the process singleton. args is scanned for -n/-np the way
// the reference launcher's argv is; pass os.Args[1:] or nil.
//
// A process spawned by cmd/mpirun (SHMMPI_LAUNCHED=1 in its
// environment) skips the fork bootstrap entirely: it already knows its
// rank and world size from the environment and attaches to the named
// shared-memory segment cmd/mpirun created. Anywhere else, Init forks
// the calling process recursively, splitting the rank range in half at
// every fork until each descendant holds exactly one rank — the same
// split_proc recursion the reference context.rs bootstrap uses. Raw
// fork() under the Go runtime only clones the calling OS thread; the
// child inherits none of the other scheduler-owned threads, so the
// child process must not touch anything beyond the already-mapped
// shared memory and its own stack until it calls Init's continuation.
// This is why the fork happens before newRuntime builds the queues,
// registry and metrics: only the plane mapping exists yet. (The
// progress engine itself runs synchronously inside API calls and
// starts no goroutines.)
func Init(args []string, opts *InitOptions) (*RuntimeContext, error) {
	if opts == nil {
		opts = &InitOptions{}
	}

	if info := launch.FromEnv(); info.Launched {
		return initLaunched(info, opts)
	}
	return initForked(args, opts)
}

// initLaunched attaches to the named shared-memory segment cmd/mpirun
// already created, using the rank/size/key it was handed over the
// environment. No fork occurs: cmd/mpirun already spawned one OS
// process per rank.
func initLaunched(info launch.Info, opts *InitOptions) (*RuntimeContext, error) {
	plane, err := shm.NewNamed(info.Size, info.ShmKey, info.Rank == 0)
	if err != nil {
		return nil, fmt.Errorf("mpi: attach named plane: %w", err)
	}
	return newRuntime(plane, info.Rank, info.Size, opts)
}

// initForked runs the recursive fork bootstrap starting from a single
// process holding the whole rank range, matching split_proc(0, size)
// in the reference implementation: the size/2 upper half goes to the
// child on every fork, the lower half (plus the odd leftover rank)
// stays with the parent, and the recursion bottoms out once a process
// holds exactly one rank.
func initForked(args []string, opts *InitOptions) (*RuntimeContext, error) {
	envSize, _ := launch.SizeFromEnv()
	size := worldSizeFromArgs(args, envSize)
	if size <= 0 {
		size = 1
	}

	plane, err := shm.NewAnonymous(size)
	if err != nil {
		return nil, fmt.Errorf("mpi: allocate anonymous plane: %w", err)
	}

	rank, err := splitProc(0, size)
	if err != nil {
		return nil, fmt.Errorf("mpi: fork bootstrap: %w", err)
	}

	return newRuntime(plane, rank, size, opts)
}

// splitProc is the fork-based rank assignment recursion: the calling
// process owns [rank, rank+size), forks once per halving, hands the
// child the upper half of the range, and keeps recursing in the
// parent with the lower half (plus the remainder when size is odd)
// until exactly one rank remains. It returns the rank the calling
// process (the one that actually returns, post-fork) ends up owning.
func splitProc(rank, size int32) (int32, error) {
	if size <= 1 {
		return rank, nil
	}

	lower := size/2 + size%2
	upper := size / 2

	pid, _, errno := syscall.RawSyscall(syscall.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("fork: %w", errno)
	}
	if pid == 0 {
		return splitProc(rank+lower, upper)
	}
	return splitProc(rank, lower)
}

func newRuntime(plane *shm.Plane, rank wire.Rank, size int32, opts *InitOptions) (*RuntimeContext, error) {
	slotCap := opts.SlotCapacity
	if slotCap <= 0 {
		slotCap = constants.DefaultSlotCapacity
	}

	if launch.UseNTFromEnv() {
		blockcopy.EnableNontemporal()
	}

	metrics := NewMetrics()
	var observer Observer = NewMetricsObserver(metrics)
	if opts.Observer != nil {
		observer = opts.Observer
	}

	defaultErrH := FatalErrHandler
	if opts.DefaultErrHandler != nil {
		defaultErrH = opts.DefaultErrHandler
	}

	if opts.Logger != nil {
		logging.SetDefault(opts.Logger)
	}

	rc := &RuntimeContext{
		plane:       plane,
		rank:        rank,
		worldSize:   size,
		registry:    commgroup.NewRegistry(rank, size),
		queues:      progress.NewQueues(slotCap),
		metrics:     metrics,
		observer:    observer,
		errHandlers: map[wire.CommId]ErrHandler{wire.CommWorld: defaultErrH, wire.CommSelf: defaultErrH},
		initialized: true,
	}

	setCurrent(rc)
	logging.Default().WithRank(int32(rank)).Info("mpi init complete")
	return rc, nil
}

// Finalize tears down rc: unmaps the shared-memory plane and clears
// the process singleton if rc is still installed as Current. It is a
// usage error to call Finalize while requests remain posted; callers
// must Wait/Waitall everything outstanding first.
func (rc *RuntimeContext) Finalize() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.initialized {
		return newOpError("Finalize", wire.CommWorld, rc.rank, ErrOther)
	}
	if rc.queues.Send.Len() != 0 || rc.queues.Recv.Len() != 0 {
		return wrapOpError("Finalize", wire.CommWorld, rc.rank, ErrPending,
			fmt.Errorf("requests still outstanding: %d send, %d recv", rc.queues.Send.Len(), rc.queues.Recv.Len()))
	}

	rc.metrics.Stop()
	err := rc.plane.Close()
	rc.initialized = false

	if Current() == rc {
		setCurrent(nil)
	}
	if err != nil {
		return fmt.Errorf("mpi: finalize: %w", err)
	}
	return nil
}

// Rank returns this process's global rank (its COMM_WORLD rank).
func (rc *RuntimeContext) Rank() wire.Rank { return rc.rank }

// WorldSize returns the total number of ranks in this run.
func (rc *RuntimeContext) WorldSize() int32 { return rc.worldSize }

// Metrics returns rc's metrics instance.
func (rc *RuntimeContext) Metrics() *Metrics { return rc.metrics }

// progress drives one non-blocking pass over rc's posted sends and
// receives, matching the reference runtime's "call shm.progress()
// before every blocking operation" convention.
func (rc *RuntimeContext) progress() error {
	err := progress.Run(rc.plane, rc.rank, rc.queues)
	rc.observer.ObserveUnexpectedDepth(uint32(rc.queues.Unexp.Len()))
	return err
}

func (rc *RuntimeContext) comm(id wire.CommId) *commgroup.Communicator {
	return rc.registry.Get(id)
}

func (rc *RuntimeContext) errHandlerFor(id wire.CommId) ErrHandler {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if h, ok := rc.errHandlers[id]; ok {
		return h
	}
	return ReturnErrHandler
}

// fail routes class through comm's bound error handler (fatal handlers
// never return) and, for a handler that does return, builds the
// public-facing opError carrying this call's op and rank rather than
// whatever the handler itself constructed.
func (rc *RuntimeContext) fail(op string, comm wire.CommId, class ErrorClass) error {
	_ = rc.errHandlerFor(comm).Handle(comm, class)
	return newOpError(op, comm, rc.rank, class)
}
