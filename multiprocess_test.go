package mpi_test

import (
	"fmt"
	"os"
	"testing"

	mpi "github.com/behrlich/shmmpi"
	"github.com/behrlich/shmmpi/internal/shmtest"

	"github.com/stretchr/testify/require"
)

// TestMain dispatches to the shmtest worker body when this binary is
// the re-exec'd child of a shmtest.RunCase call (SHMMPI_SHMTEST_CASE
// set); otherwise it runs the package's tests as usual. shmtest.Main
// never returns in the worker branch.
func TestMain(m *testing.M) {
	shmtest.Main(map[string]func(rc *mpi.RuntimeContext) error{
		"hello": helloWorkerCase,
	})
	os.Exit(m.Run())
}

// helloWorkerCase is scenario S1 run for real across two separate OS
// processes: rank 0 sends "Hello world!!!\0" to rank 1, which echoes
// it back, and rank 0 checks the echo matches.
func helloWorkerCase(rc *mpi.RuntimeContext) error {
	hello := []byte("Hello world!!!\x00")

	switch rc.Rank() {
	case 0:
		if err := rc.Send(hello, int32(len(hello)), mpi.Byte, 1, 0, mpi.CommWorld); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		buf := make([]byte, 100)
		stat, err := rc.Recv(buf, 100, mpi.Byte, 1, 1, mpi.CommWorld)
		if err != nil {
			return fmt.Errorf("recv echo: %w", err)
		}
		if string(buf[:stat.Count]) != string(hello) {
			return fmt.Errorf("echo mismatch: got %q, want %q", buf[:stat.Count], hello)
		}
		return nil
	case 1:
		buf := make([]byte, 100)
		stat, err := rc.Recv(buf, 100, mpi.Byte, 0, 0, mpi.CommWorld)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if err := rc.Send(buf[:stat.Count], stat.Count, mpi.Byte, 0, 1, mpi.CommWorld); err != nil {
			return fmt.Errorf("echo send: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unexpected rank %d", rc.Rank())
	}
}

// TestMultiProcessHello drives helloWorkerCase across two genuinely
// separate OS processes via shmtest, exercising Init's launcher-attach
// bootstrap rather than Loopback's in-goroutine simulation.
func TestMultiProcessHello(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real OS processes; skipped with -short")
	}
	require.NoError(t, shmtest.RunCase("hello", 2, "^TestShmtestWorkerNoop$"))
}

// TestShmtestWorkerNoop exists only so shmtest.RunCase's -test.run
// filter has a matching test name in the re-exec'd child; TestMain's
// shmtest.Main dispatch always os.Exits before the child reaches here.
func TestShmtestWorkerNoop(t *testing.T) {}
