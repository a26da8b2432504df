package cache

// ScopedKeyer wraps a Keyer with a prefix, giving each server or user its
// own namespace in a shared backend.
//
// Example usage:
//
//	// Keys for one deployment sharing a Redis database
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "fibertree:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RunKey generates a prefixed key for kernel results.
func (k *ScopedKeyer) RunKey(op string, inputHashes []string, opts RunKeyOpts) string {
	return k.prefix + k.inner.RunKey(op, inputHashes, opts)
}

// ArtifactKey generates a prefixed key for rendered artifacts.
func (k *ScopedKeyer) ArtifactKey(tensorHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(tensorHash, opts)
}
