package delegation

// Default values applied when options are not set explicitly.
const (
	// DefaultMaxDepth bounds delegation below the root when no edge on the
	// path sets a tighter limit.
	DefaultMaxDepth = 8
)
