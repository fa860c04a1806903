// Package wire holds the small value types shared across the transport,
// progress, communicator, and collective layers: rank/tag/communicator
// identifiers and the on-the-wire status shape. Kept dependency-free so
// every other internal package can import it without risk of a cycle.
package wire

// Rank identifies a process, either globally (process-wide) or within
// a communicator, depending on context.
type Rank int32

// CommId identifies a communicator. Matches the public API's integer
// communicator codes (NULL=-1, SELF=0, WORLD=1, >=2 for dup/split
// results).
type CommId int32

const (
	CommNull  CommId = -1
	CommSelf  CommId = 0
	CommWorld CommId = 1
)

// Datatype codes: the numeric value is the element size in bytes.
type Datatype int32

const (
	Byte   Datatype = 1
	Int    Datatype = 4
	Double Datatype = 8
)

// Size returns the element size in bytes for the datatype.
func (d Datatype) Size() int32 { return int32(d) }

// Op identifies a reduction operator.
type Op int32

const (
	OpMax Op = 0
	OpMin Op = 1
	OpSum Op = 2
)

// ErrHandlerId identifies an error handler binding.
type ErrHandlerId int32

const (
	ErrHandlerFatal  ErrHandlerId = 0
	ErrHandlerReturn ErrHandlerId = 1
)

// Status describes a completed request. The progress engine fills it
// with the sender's global rank and the namespaced wire tag; the root
// package converts it to the sender's communicator-local rank and the
// user tag (key prefix stripped) before handing it to callers,
// collectives included.
type Status struct {
	Source Rank
	Tag    int32
	Error  int32
	Count  int32
}

// ErrorClass is the wire-level error code stashed in a Status.Error
// field. The root package's error handling exposes these same values
// as its public error-class constants; they live here so the progress
// engine can fill one in without importing the root package.
type ErrorClass int32

const (
	Success ErrorClass = iota
	ErrBuffer
	ErrCount
	ErrType
	ErrTag
	ErrComm
	ErrRank
	ErrRequest
	ErrRoot
	ErrOp
	ErrArg
	ErrUnknown
	ErrTruncate
	ErrOther
	ErrIntern
	ErrPending
	ErrInStatus
	ErrLastCode
)
