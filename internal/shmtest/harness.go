// Package shmtest is the real multi-process counterpart to the root
// package's in-process Loopback harness: it re-execs the test binary
// itself, once per rank, wiring each child up exactly the way
// cmd/mpirun does (the same SHMMPI_LAUNCHED/SHMMPI_RANK/SHMMPI_SIZE/
// SHMMPI_SHMKEY environment contract), so a scenario test can assert
// against genuinely separate OS processes rather than goroutines
// sharing one address space. Loopback is faster and should cover most
// table-driven cases; reach for this package when a test specifically
// needs to exercise process-boundary behavior Loopback can't simulate
// (Init's fork/attach path, a worker crashing independently of the
// parent).
package shmtest

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	mpi "github.com/behrlich/shmmpi"
	"github.com/behrlich/shmmpi/internal/constants"
)

// EnvCase names the case a re-exec'd worker process should run, read
// by Main in the child and set by RunCase in the parent.
const EnvCase = "SHMMPI_SHMTEST_CASE"

// RunCase spawns size copies of the running test binary as worker
// processes, each attached to the same named shared-memory plane via
// the SHMMPI_LAUNCHED contract, with EnvCase set to name so each
// child's shmtest.Main dispatches to the matching case function. It
// waits for every worker and returns the first non-nil exit error, if
// any.
//
// runArg restricts the re-exec'd binary to tests matching a pattern
// (e.g. "^TestShmtestWorker$") so the child doesn't re-run the whole
// parent suite; pass "" to run the whole binary unrestricted.
func RunCase(name string, size int32, runArg string) error {
	if size <= 0 {
		return fmt.Errorf("shmtest: size must be positive, got %d", size)
	}

	shmKey := (int32(os.Getpid()) << 1) | 1

	cmds := make([]*exec.Cmd, size)
	for rank := int32(0); rank < size; rank++ {
		var args []string
		if runArg != "" {
			args = []string{"-test.run", runArg}
		}
		c := exec.Command(os.Args[0], args...)
		c.Env = append(os.Environ(),
			constants.EnvLaunched+"=1",
			constants.EnvRank+"="+strconv.Itoa(int(rank)),
			constants.EnvSize+"="+strconv.Itoa(int(size)),
			constants.EnvShmKey+"="+strconv.Itoa(int(shmKey)),
			EnvCase+"="+name,
		)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Start(); err != nil {
			return fmt.Errorf("shmtest: start rank %d: %w", rank, err)
		}
		cmds[rank] = c
	}

	var firstErr error
	for rank, c := range cmds {
		if err := c.Wait(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shmtest: rank %d: %w", rank, err)
		}
	}
	return firstErr
}

// Main is a worker process's entry point: if EnvCase isn't set, this
// process is the parent test binary and Main returns immediately so
// the normal test suite runs. Otherwise this process is a re-exec'd
// worker: Main looks up the named case, runs it against a freshly
// Init'd RuntimeContext, and os.Exits with the result — it never
// returns in that branch. Call it first thing in TestMain.
func Main(cases map[string]func(rc *mpi.RuntimeContext) error) {
	name := os.Getenv(EnvCase)
	if name == "" {
		return
	}

	fn, ok := cases[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "shmtest: unknown case %q\n", name)
		os.Exit(1)
	}

	rc, err := mpi.Init(nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shmtest: init: %v\n", err)
		os.Exit(1)
	}

	if err := fn(rc); err != nil {
		fmt.Fprintf(os.Stderr, "shmtest: case %q: %v\n", name, err)
		os.Exit(1)
	}

	if err := rc.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "shmtest: finalize: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
