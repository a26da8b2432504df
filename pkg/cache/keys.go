package cache

import "slices"

// Keyer builds cache keys. Implementations must be deterministic: equal
// inputs always produce equal keys.
type Keyer interface {
	// RunKey identifies the result of running op over inputs, given the
	// content hashes of the input tensors in operand order.
	RunKey(op string, inputHashes []string, opts RunKeyOpts) string

	// ArtifactKey identifies a rendering of a tensor.
	ArtifactKey(tensorHash string, opts ArtifactKeyOpts) string
}

// RunKeyOpts holds the run options that change the cached result.
type RunKeyOpts struct {
	// Trace lists the rank ids whose traces were recorded. Order is
	// irrelevant.
	Trace []string `json:"trace,omitempty"`
}

// ArtifactKeyOpts holds the rendering options that change the output.
type ArtifactKeyOpts struct {
	Format     string `json:"format"`
	ShowValues bool   `json:"show_values"`
	RankDir    string `json:"rank_dir,omitempty"`
}

// DefaultKeyer produces "run:<sha256>" and "artifact:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RunKey implements Keyer.
func (DefaultKeyer) RunKey(op string, inputHashes []string, opts RunKeyOpts) string {
	trace := slices.Clone(opts.Trace)
	slices.Sort(trace)
	return hashKey("run", op, inputHashes, RunKeyOpts{Trace: trace})
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(tensorHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", tensorHash, opts)
}
