package mpi

import (
	"os"
	"time"

	"github.com/behrlich/shmmpi/internal/logging"
)

// Wtime returns the wall-clock time in seconds since the Unix epoch,
// for timing spans between two Wtime calls. It reads
// time.Now().UnixNano(), which carries no monotonic reading, so a
// wall-clock adjustment between two calls shows up in their
// difference. It does not attempt cross-rank clock synchronization.
func Wtime() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Abort exits the calling process with code, after releasing the
// shared-memory plane. Other ranks are not signalled and keep running
// until they exit on their own. Unlike Finalize, Abort does not
// check for outstanding requests: it is meant for the unrecoverable
// paths that can't wait on an orderly drain.
func (rc *RuntimeContext) Abort(comm CommId, code int) error {
	c := rc.comm(comm)
	if c == nil {
		return rc.fail("Abort", comm, ErrComm)
	}

	logging.Default().WithRank(int32(rc.rank)).Errorf("mpi abort on comm %d, code %d", comm, code)

	rc.mu.Lock()
	if rc.initialized {
		rc.metrics.Stop()
		_ = rc.plane.Close()
		rc.initialized = false
	}
	rc.mu.Unlock()

	if Current() == rc {
		setCurrent(nil)
	}
	os.Exit(code)
	return nil
}
