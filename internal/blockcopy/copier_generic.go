package blockcopy

// genericCopier implements Copier with the stdlib copy() builtin. It is
// the fallback on non-amd64 architectures and the baseline every
// architecture-specific Copier is benchmarked against.
//
// There is no portable non-temporal store in pure Go, so
// CopyNontemporal degrades to the same cached copy here. amd64 does
// not get a true streaming store either — copier_amd64.go still moves
// bytes through copy() — but it does chunk the copy to the detected
// vector width and follows non-temporal copies with an SFENCE.
type genericCopier struct{}

func (genericCopier) CopyTemporal(dst, src []byte) int    { return copy(dst, src) }
func (genericCopier) CopyNontemporal(dst, src []byte) int { return copy(dst, src) }
func (genericCopier) Name() string                        { return "generic" }

var _ Copier = genericCopier{}
