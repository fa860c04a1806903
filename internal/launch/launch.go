// Package launch reads the environment variables cmd/mpirun sets in
// each worker process it spawns, so the root package's Init can tell a
// launcher-spawned process apart from one bootstrapping itself via
// fork and join the already-allocated named shared-memory segment
// instead of allocating its own.
package launch

import (
	"os"
	"strconv"

	"github.com/behrlich/shmmpi/internal/constants"
)

// Info is what a launcher-spawned worker learns about its place in the
// world from the environment, as set by cmd/mpirun.
type Info struct {
	// Launched is true when SHMMPI_LAUNCHED=1 is set: this process was
	// spawned by a launcher rather than bootstrapping its own children
	// via fork.
	Launched bool

	// Rank is this process's assigned global rank.
	Rank int32

	// Size is the total world size.
	Size int32

	// ShmKey is the System V shared memory key every rank attaches to.
	ShmKey int32
}

// FromEnv reads SHMMPI_LAUNCHED/SHMMPI_RANK/SHMMPI_SIZE/SHMMPI_SHMKEY.
// Info.Launched is false (and the other fields are zero) if
// SHMMPI_LAUNCHED isn't set to a truthy value.
func FromEnv() Info {
	if os.Getenv(constants.EnvLaunched) != "1" {
		return Info{}
	}
	rank, _ := strconv.Atoi(os.Getenv(constants.EnvRank))
	size, _ := strconv.Atoi(os.Getenv(constants.EnvSize))
	key, _ := strconv.Atoi(os.Getenv(constants.EnvShmKey))
	return Info{
		Launched: true,
		Rank:     int32(rank),
		Size:     int32(size),
		ShmKey:   int32(key),
	}
}

// SizeFromEnv reads SHMMPI_SIZE alone, for the fork-based bootstrap
// path where no rank/key has been assigned yet.
func SizeFromEnv() (int32, bool) {
	v := os.Getenv(constants.EnvSize)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return int32(n), true
}

// UseNTFromEnv reports whether SHMMPI_USE_NT is present, selecting the
// non-temporal block-copy path.
func UseNTFromEnv() bool {
	_, ok := os.LookupEnv(constants.EnvUseNT)
	return ok
}
