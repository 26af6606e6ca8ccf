package compositor

import "fmt"

// Kind classifies a compositor failure.
type Kind int

const (
	// KindAllocFailed means the output surface could not be created.
	KindAllocFailed Kind = iota + 1
	// KindExtractionFailed means a frame could not be decoded.
	KindExtractionFailed
	// KindEncodeFailed means the finished image could not be encoded.
	KindEncodeFailed
)

func (k Kind) String() string {
	switch k {
	case KindAllocFailed:
		return "alloc_failed"
	case KindExtractionFailed:
		return "extraction_failed"
	case KindEncodeFailed:
		return "encode_failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned for failures that abort a single mosaic.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
