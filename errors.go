package mpi

import (
	"errors"
	"fmt"
	"os"

	"github.com/behrlich/shmmpi/internal/wire"
)

// ErrorClass is the stable public error-code surface. Values match the
// wire-level codes an arriving Status.Error can carry, so a class read
// off a completed request and a class returned by an API call compare
// equal.
type ErrorClass int32

const (
	ErrSuccess  ErrorClass = ErrorClass(wire.Success)
	ErrBuffer   ErrorClass = ErrorClass(wire.ErrBuffer)
	ErrCount    ErrorClass = ErrorClass(wire.ErrCount)
	ErrType     ErrorClass = ErrorClass(wire.ErrType)
	ErrTag      ErrorClass = ErrorClass(wire.ErrTag)
	ErrComm     ErrorClass = ErrorClass(wire.ErrComm)
	ErrRank     ErrorClass = ErrorClass(wire.ErrRank)
	ErrRequest  ErrorClass = ErrorClass(wire.ErrRequest)
	ErrRoot     ErrorClass = ErrorClass(wire.ErrRoot)
	ErrOp       ErrorClass = ErrorClass(wire.ErrOp)
	ErrArg      ErrorClass = ErrorClass(wire.ErrArg)
	ErrUnknown  ErrorClass = ErrorClass(wire.ErrUnknown)
	ErrTruncate ErrorClass = ErrorClass(wire.ErrTruncate)
	ErrOther    ErrorClass = ErrorClass(wire.ErrOther)
	ErrIntern   ErrorClass = ErrorClass(wire.ErrIntern)
	ErrPending  ErrorClass = ErrorClass(wire.ErrPending)
	ErrInStatus ErrorClass = ErrorClass(wire.ErrInStatus)
	ErrLastcode ErrorClass = ErrorClass(wire.ErrLastCode)
)

var classStrings = [...]string{
	ErrSuccess:  "no error",
	ErrBuffer:   "invalid buffer pointer",
	ErrCount:    "invalid count argument",
	ErrType:     "invalid datatype argument",
	ErrTag:      "invalid tag argument",
	ErrComm:     "invalid communicator",
	ErrRank:     "invalid rank",
	ErrRequest:  "invalid request",
	ErrRoot:     "invalid root",
	ErrOp:       "invalid reduction operation",
	ErrArg:      "invalid argument",
	ErrUnknown:  "unknown error",
	ErrTruncate: "message truncated on receive",
	ErrOther:    "other error",
	ErrIntern:   "internal error",
	ErrPending:  "pending request",
	ErrInStatus: "error code in status",
}

// Error_string returns the fixed description for an error class, per
// the public ABI's Error_string.
func Error_string(class ErrorClass) string {
	if class < 0 || int(class) >= len(classStrings) || classStrings[class] == "" {
		return "unknown error class"
	}
	return classStrings[class]
}

// opError is the internal, structured error carried behind the flat
// ErrorClass surface. API calls return it as a plain error whose
// concrete type is unexported; Error_class reads its class back out.
type opError struct {
	Op    string
	Comm  wire.CommId
	Rank  wire.Rank
	Class ErrorClass
	Inner error
}

func (e *opError) Error() string {
	msg := Error_string(e.Class)
	if e.Op == "" {
		return fmt.Sprintf("mpi: %s", msg)
	}
	return fmt.Sprintf("mpi: %s: %s (comm=%d rank=%d)", e.Op, msg, e.Comm, e.Rank)
}

func (e *opError) Unwrap() error {
	return e.Inner
}

func (e *opError) Is(target error) bool {
	if ce, ok := target.(*opError); ok {
		return e.Class == ce.Class
	}
	return false
}

func newOpError(op string, comm wire.CommId, rank wire.Rank, class ErrorClass) *opError {
	return &opError{Op: op, Comm: comm, Rank: rank, Class: class}
}

func wrapOpError(op string, comm wire.CommId, rank wire.Rank, class ErrorClass, inner error) *opError {
	return &opError{Op: op, Comm: comm, Rank: rank, Class: class, Inner: inner}
}

// Error_class extracts the ErrorClass carried by an error produced by
// this package, or ErrUnknown if err doesn't carry one.
func Error_class(err error) ErrorClass {
	if err == nil {
		return ErrSuccess
	}
	var oe *opError
	if errors.As(err, &oe) {
		return oe.Class
	}
	return ErrUnknown
}

// ErrHandlerId names one of the two built-in handlers a communicator
// can be set to, matching the public ABI's FATAL=0/RETURN=1 codes.
type ErrHandlerId = wire.ErrHandlerId

const (
	ErrorsAreFatal = wire.ErrHandlerFatal
	ErrorsReturn   = wire.ErrHandlerReturn
)

// ErrHandler reacts to an argument or protocol error raised against a
// communicator. The two built-ins mirror the public ABI's FATAL/RETURN
// error-handler codes.
type ErrHandler interface {
	Handle(comm wire.CommId, class ErrorClass) error
}

// fatalErrHandler prints the error and terminates the process, matching
// MPI_ERRORS_ARE_FATAL.
type fatalErrHandler struct{}

func (fatalErrHandler) Handle(comm wire.CommId, class ErrorClass) error {
	fmt.Fprintf(os.Stderr, "mpi: fatal error on comm %d: %s\n", comm, Error_string(class))
	os.Exit(1)
	return nil
}

// returnErrHandler propagates the error class back to the caller,
// matching MPI_ERRORS_RETURN.
type returnErrHandler struct{}

func (returnErrHandler) Handle(comm wire.CommId, class ErrorClass) error {
	return newOpError("", comm, -1, class)
}

// FatalErrHandler and ReturnErrHandler are the two built-in handlers
// installed on SELF and WORLD at Init time.
var (
	FatalErrHandler  ErrHandler = fatalErrHandler{}
	ReturnErrHandler ErrHandler = returnErrHandler{}
)
