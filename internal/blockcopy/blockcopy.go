// Package blockcopy moves message payload bytes between cells. It picks
// a copy strategy at init time based on detected CPU features, and
// offers a temporal copy and a non-temporal copy entry point; see
// Copier.CopyNontemporal for what the latter does.
package blockcopy

// Copier moves bytes from src into dst and reports how many bytes were
// copied. Implementations copy min(len(dst), len(src)) bytes,
// mirroring the copy() builtin.
type Copier interface {
	// CopyTemporal performs a regular cached copy, suitable for small
	// or short-lived payloads that the receiver will touch again soon.
	CopyTemporal(dst, src []byte) int

	// CopyNontemporal is the copy used for large payloads (at least
	// NontemporalThreshold) once EnableNontemporal has been called. No
	// implementation issues streaming stores that bypass the cache: the
	// bytes move through ordinary cached copies. The amd64 copier
	// follows them with an SFENCE; the generic copier adds no fence.
	CopyNontemporal(dst, src []byte) int

	// Name identifies the selected strategy, for logging/diagnostics.
	Name() string
}

// NontemporalThreshold is the payload size above which callers should
// prefer CopyNontemporal over CopyTemporal. It is exported so the
// progress engine can make the temporal/non-temporal decision without
// reaching into CPU feature detection itself.
const NontemporalThreshold = 32 * 1024

// Default is the process-wide Copier selected at init time from the
// detected CPU feature set. It is safe for concurrent use: all
// implementations are stateless.
var Default Copier = selectCopier()

// useNontemporal gates Copy's choice of streaming stores. It starts
// false (ordinary cached copies) and is flipped process-wide by
// EnableNontemporal, which the root package calls at Init time when
// the runtime's USE_NT toggle is set.
var useNontemporal bool

// EnableNontemporal turns on the non-temporal copy path for payloads
// at or above NontemporalThreshold, process-wide. Call once at
// startup; not safe to race against concurrent Copy calls.
func EnableNontemporal() { useNontemporal = true }

// Copy moves src into dst using Default, choosing CopyNontemporal over
// CopyTemporal when the non-temporal path is enabled and the payload
// is at least NontemporalThreshold bytes.
func Copy(dst, src []byte) int {
	if useNontemporal && len(src) >= NontemporalThreshold {
		return Default.CopyNontemporal(dst, src)
	}
	return Default.CopyTemporal(dst, src)
}
