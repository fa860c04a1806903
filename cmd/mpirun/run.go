package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/logging"
)

func newRunCmd() *cobra.Command {
	var (
		size    int
		shmKey  int
		verbose bool
		useNT   bool
	)

	cmd := &cobra.Command{
		Use:   "run -- <program> [args...]",
		Short: "spawn one worker process per rank and wait for all of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkers(runOpts{
				size:    int32(size),
				shmKey:  int32(shmKey),
				verbose: verbose,
				useNT:   useNT,
				program: args[0],
				args:    args[1:],
			})
		},
	}

	cmd.Flags().IntVarP(&size, "n", "n", 1, "number of ranks to launch")
	cmd.Flags().IntVar(&shmKey, "shmkey", int(constants.AutoAssignShmKey), "SysV shared memory key every rank attaches to (0 picks one)")
	cmd.Flags().BoolVarP(&verbose, "v", "v", false, "verbose logging")
	cmd.Flags().BoolVar(&useNT, "nt", false, "enable non-temporal block copies (SHMMPI_USE_NT)")

	return cmd
}

type runOpts struct {
	size    int32
	shmKey  int32
	verbose bool
	useNT   bool
	program string
	args    []string
}

// runWorkers spawns opts.size worker processes, one per rank, handing
// each its rank/size/shmkey over the environment the way internal/launch
// expects, then waits for all of them, forwarding SIGINT/SIGTERM so a
// Ctrl-C tears down the whole job instead of orphaning workers.
func runWorkers(opts runOpts) error {
	if opts.size <= 0 {
		return fmt.Errorf("mpirun: -n must be positive, got %d", opts.size)
	}

	logConfig := logging.DefaultConfig()
	if opts.verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	runID := xid.New()
	shmKey := opts.shmKey
	if shmKey == constants.AutoAssignShmKey {
		shmKey = deriveShmKey(runID)
	}

	logger.Info("launching job", "run_id", runID.String(), "ranks", opts.size, "shmkey", shmKey, "program", opts.program)

	cmds := make([]*exec.Cmd, opts.size)
	for rank := int32(0); rank < opts.size; rank++ {
		c := exec.Command(opts.program, opts.args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Stdin = os.Stdin
		c.Env = append(os.Environ(),
			constants.EnvLaunched+"=1",
			constants.EnvRank+"="+strconv.Itoa(int(rank)),
			constants.EnvSize+"="+strconv.Itoa(int(opts.size)),
			constants.EnvShmKey+"="+strconv.Itoa(int(shmKey)),
		)
		if opts.useNT {
			c.Env = append(c.Env, constants.EnvUseNT+"=1")
		}
		if err := c.Start(); err != nil {
			return fmt.Errorf("mpirun: rank %d: start %s: %w", rank, opts.program, err)
		}
		cmds[rank] = c
		logger.Debug("spawned rank", "rank", rank, "pid", c.Process.Pid)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, forwarding to workers", "signal", sig.String())
		for _, c := range cmds {
			if c.Process != nil {
				_ = c.Process.Signal(sig)
			}
		}
	}()

	var firstErr error
	for rank, c := range cmds {
		if err := c.Wait(); err != nil {
			logger.Error("rank exited with error", "rank", rank, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("rank %d: %w", rank, err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	logger.Info("job completed", "run_id", runID.String())
	return nil
}

// deriveShmKey picks a SysV key from the launch's run ID so concurrent
// mpirun invocations on the same host don't collide on IPC_PRIVATE (0,
// which shmget treats as "always create a fresh segment" rather than a
// shared name every rank can attach to).
func deriveShmKey(id xid.ID) int32 {
	h := id.Counter() ^ uint32(id.Time().UnixNano()) ^ uint32(id.Pid())
	if h == 0 {
		h = uint32(time.Now().UnixNano())
	}
	return int32(h&0x7fffffff) | 1
}
