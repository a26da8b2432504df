package fibertree

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Tensor is a named stack of ranks holding one fiber tree. Rank 0 owns the
// root fiber, rank i+1 owns the sub-fibers reached through rank i. A tensor
// with no ranks holds a single scalar payload.
type Tensor struct {
	rankIDs []string
	ranks   []*Rank
	root    any // *Fiber, or *Payload for rank-0 tensors

	name    string
	color   string
	mutable bool
}

// TensorOption configures tensor constructors.
type TensorOption func(*tensorConfig)

type tensorConfig struct {
	shape  []Coord
	name   string
	color  string
	def    any
	hasDef bool
}

// WithTensorShape declares the shape of each rank. A nil entry leaves that
// rank's shape to be estimated from the data.
func WithTensorShape(shape ...Coord) TensorOption {
	return func(c *tensorConfig) { c.shape = shape }
}

// WithName names the tensor.
func WithName(name string) TensorOption {
	return func(c *tensorConfig) { c.name = name }
}

// WithColor sets the display color of the tensor.
func WithColor(color string) TensorOption {
	return func(c *tensorConfig) { c.color = color }
}

// WithTensorDefault sets the default payload of the leaf rank.
func WithTensorDefault(v any) TensorOption {
	return func(c *tensorConfig) {
		c.def = normalizeValue(Unbox(v))
		c.hasDef = true
	}
}

// NewTensor creates an empty tensor with the given rank ids, outermost
// first. With no rank ids it creates a scalar tensor holding the default.
func NewTensor(rankIDs []string, opts ...TensorOption) *Tensor {
	var cfg tensorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	t := newTensor(rankIDs, &cfg)
	if len(t.ranks) == 0 {
		t.root = NewPayload(t.leafDefault(&cfg))
		return t
	}
	root := &Fiber{ordered: true, unique: true}
	t.ranks[0].Append(root)
	t.root = root
	return t
}

// NewScalarTensor creates a rank-0 tensor holding v.
func NewScalarTensor(v any, opts ...TensorOption) *Tensor {
	t := NewTensor(nil, opts...)
	t.root = NewPayload(v)
	return t
}

func newTensor(rankIDs []string, cfg *tensorConfig) *Tensor {
	t := &Tensor{
		rankIDs: slices.Clone(rankIDs),
		name:    cfg.name,
		color:   cfg.color,
		mutable: true,
	}
	if t.color == "" {
		t.color = "red"
	}
	for i, id := range rankIDs {
		var shape Coord
		if i < len(cfg.shape) {
			shape = cfg.shape[i]
		}
		r := NewRank(NewRankAttrs(id, shape))
		if i > 0 {
			t.ranks[i-1].SetNextRank(r)
		}
		t.ranks = append(t.ranks, r)
	}
	if n := len(t.ranks); n > 0 {
		t.ranks[n-1].attrs.def = t.leafDefault(cfg)
	}
	return t
}

func (t *Tensor) leafDefault(cfg *tensorConfig) any {
	if cfg.hasDef {
		return cfg.def
	}
	return 0
}

// FromFiber creates a tensor around f. With nil rankIDs the ranks are
// named R0, R1, ... after the depth of f. Shapes not given explicitly are
// taken from f. A fiber owned by another tensor is deep-copied.
func FromFiber(rankIDs []string, f *Fiber, opts ...TensorOption) (*Tensor, error) {
	f = FromLazy(f)
	depth := f.Depth()
	if rankIDs == nil {
		for i := range depth {
			rankIDs = append(rankIDs, fmt.Sprintf("R%d", i))
		}
	}
	if len(rankIDs) < depth {
		return nil, fmt.Errorf("fiber has %d ranks but %d rank ids were given: %w", depth, len(rankIDs), ErrTooDeep)
	}

	var cfg tensorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasDef {
		cfg.def, cfg.hasDef = f.leafDefault(), true
	}
	var estimated []Coord
	if cfg.shape == nil {
		cfg.shape = f.GetShape(ShapeOptions{AllRanks: true, Authoritative: true})
		if cfg.shape == nil {
			estimated = f.GetShape(ShapeOptions{AllRanks: true})
		}
	}
	t := newTensor(rankIDs, &cfg)
	for i, s := range estimated {
		if i < len(t.ranks) && t.ranks[i].attrs.estimated {
			t.ranks[i].attrs.shape = s
		}
	}
	if err := t.SetRoot(f); err != nil {
		return nil, err
	}
	return t, nil
}

// TensorFromUncompressed builds a tensor from nested slices. The shape of
// each rank is the length of the nested lists unless given explicitly.
func TensorFromUncompressed(rankIDs []string, data any, opts ...TensorOption) (*Tensor, error) {
	f, err := FromUncompressed(data)
	if err != nil {
		return nil, err
	}
	shape := denseShape(data)
	if rankIDs == nil {
		for i := range shape {
			rankIDs = append(rankIDs, fmt.Sprintf("R%d", i))
		}
	}
	opts = append([]TensorOption{WithTensorShape(shape...)}, opts...)
	return FromFiber(rankIDs, f, opts...)
}

func denseShape(data any) []Coord {
	var shape []Coord
	for v := data; ; {
		l, ok := normalizeValue(v).(Tuple)
		if !ok {
			return shape
		}
		shape = append(shape, len(l))
		if len(l) == 0 {
			return shape
		}
		v = l[0]
	}
}

// TensorFromRandom builds a random tensor; see [FromRandom].
func TensorFromRandom(rankIDs []string, shape []int, density []float64, interval int, seed int64, opts ...TensorOption) (*Tensor, error) {
	f, err := FromRandom(shape, density, interval, seed)
	if err != nil {
		return nil, err
	}
	s := make([]Coord, len(shape))
	for i, n := range shape {
		s[i] = n
	}
	opts = append([]TensorOption{WithTensorShape(s...)}, opts...)
	return FromFiber(rankIDs, f, opts...)
}

// SetRoot makes f the root of the tensor and re-populates every rank from
// the tree. Lazy fibers are materialized and fibers owned elsewhere are
// deep-copied.
func (t *Tensor) SetRoot(f *Fiber) error {
	if len(t.ranks) == 0 {
		return fmt.Errorf("scalar tensor has no root fiber: %w", ErrTooDeep)
	}
	f = FromLazy(f)
	if f.owner != nil && f.owner != t.ranks[0] {
		f = f.Copy()
	}
	for _, r := range t.ranks {
		r.ClearFibers()
	}
	if err := t.populate(f, 0); err != nil {
		return err
	}
	t.root = f
	return nil
}

func (t *Tensor) populate(f *Fiber, level int) error {
	r := t.ranks[level]
	r.Append(f)
	for i, p := range f.payloads {
		sub, ok := p.(*Fiber)
		if !ok {
			continue
		}
		if level+1 >= len(t.ranks) {
			return fmt.Errorf("fiber tree deeper than %d ranks: %w", len(t.ranks), ErrTooDeep)
		}
		sub = FromLazy(sub)
		if sub.owner != nil && sub.owner != t.ranks[level+1] {
			sub = sub.Copy()
		}
		f.payloads[i] = sub
		if err := t.populate(sub, level+1); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the root fiber, nil for a scalar tensor.
func (t *Tensor) Root() *Fiber {
	f, _ := t.root.(*Fiber)
	return f
}

// Value returns the payload of a scalar tensor, nil otherwise.
func (t *Tensor) Value() *Payload {
	p, _ := t.root.(*Payload)
	return p
}

// RankIDs returns the rank ids, outermost first.
func (t *Tensor) RankIDs() []string { return slices.Clone(t.rankIDs) }

// Ranks returns the ranks, outermost first.
func (t *Tensor) Ranks() []*Rank { return slices.Clone(t.ranks) }

// Depth returns the number of ranks.
func (t *Tensor) Depth() int { return len(t.ranks) }

// Rank returns the rank with the given id.
func (t *Tensor) Rank(id string) (*Rank, error) {
	i, err := t.rankIndex(id)
	if err != nil {
		return nil, err
	}
	return t.ranks[i], nil
}

func (t *Tensor) rankIndex(id string) (int, error) {
	i := slices.Index(t.rankIDs, id)
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRank, id)
	}
	return i, nil
}

// Shape returns the shape of every rank.
func (t *Tensor) Shape() []Coord {
	shape := make([]Coord, len(t.ranks))
	for i, r := range t.ranks {
		shape[i] = r.attrs.shape
	}
	return shape
}

// Name returns the tensor name.
func (t *Tensor) Name() string { return t.name }

// SetName renames the tensor.
func (t *Tensor) SetName(name string) { t.name = name }

// Color returns the display color.
func (t *Tensor) Color() string { return t.color }

// SetColor sets the display color.
func (t *Tensor) SetColor(color string) { t.color = color }

// Mutable reports whether mutators are allowed.
func (t *Tensor) Mutable() bool { return t.mutable }

// SetMutable allows or forbids mutators.
func (t *Tensor) SetMutable(mutable bool) { t.mutable = mutable }

// Default returns the leaf default.
func (t *Tensor) Default() any {
	if len(t.ranks) == 0 {
		return 0
	}
	return t.ranks[len(t.ranks)-1].Default()
}

// SetDefault sets the leaf default.
func (t *Tensor) SetDefault(v any) error {
	if !t.mutable {
		return ErrImmutable
	}
	if len(t.ranks) == 0 {
		return fmt.Errorf("scalar tensor has no ranks: %w", ErrTooDeep)
	}
	t.ranks[len(t.ranks)-1].attrs.SetDefault(v)
	return nil
}

// SetFormat sets the storage format of one rank.
func (t *Tensor) SetFormat(rankID string, format Format) error {
	r, err := t.Rank(rankID)
	if err != nil {
		return err
	}
	r.attrs.SetFormat(format)
	return nil
}

// SetCollecting enables reuse statistics for one rank.
func (t *Tensor) SetCollecting(rankID string, on bool) error {
	r, err := t.Rank(rankID)
	if err != nil {
		return err
	}
	r.attrs.SetCollecting(on)
	return nil
}

// At returns the element at position pos of the root fiber.
func (t *Tensor) At(pos int) CoordPayload { return t.Root().At(pos) }

// SetAt replaces the element at position pos of the root fiber.
func (t *Tensor) SetAt(pos int, v any) error {
	if !t.mutable {
		return ErrImmutable
	}
	return t.Root().SetAt(pos, v)
}

// All iterates the root fiber.
func (t *Tensor) All() iter.Seq2[Coord, any] {
	if f := t.Root(); f != nil {
		return f.All()
	}
	return func(func(Coord, any) bool) {}
}

// Backward iterates the root fiber in reverse.
func (t *Tensor) Backward() iter.Seq2[Coord, any] {
	if f := t.Root(); f != nil {
		return f.Backward()
	}
	return func(func(Coord, any) bool) {}
}

// Equal compares rank ids and contents.
func (t *Tensor) Equal(o *Tensor) bool {
	if o == nil || !slices.Equal(t.rankIDs, o.rankIDs) {
		return false
	}
	if a, b := t.Root(), o.Root(); a != nil || b != nil {
		return a != nil && b != nil && a.Equal(b)
	}
	return equalValues(t.root, o.root)
}

// GetPayload forwards to the root fiber.
func (t *Tensor) GetPayload(coords ...Coord) any {
	if f := t.Root(); f != nil {
		return f.GetPayload(coords...)
	}
	return t.root
}

// GetPayloadRef forwards to the root fiber.
func (t *Tensor) GetPayloadRef(coords ...Coord) (any, error) {
	if !t.mutable {
		return nil, ErrImmutable
	}
	if f := t.Root(); f != nil {
		return f.GetPayloadRef(coords...), nil
	}
	return t.root, nil
}

// CountValues counts the non-default leaves.
func (t *Tensor) CountValues() int {
	if f := t.Root(); f != nil {
		return f.CountValues()
	}
	if equalValues(t.root, 0) {
		return 0
	}
	return 1
}

// UpdateCoords forwards to the root fiber.
func (t *Tensor) UpdateCoords(fn func(i int, c Coord, p any) Coord, depth int) error {
	if !t.mutable {
		return ErrImmutable
	}
	return t.Root().UpdateCoords(fn, depth)
}

// UpdatePayloads forwards to the root fiber.
func (t *Tensor) UpdatePayloads(fn func(p any) any, depth int) error {
	if !t.mutable {
		return ErrImmutable
	}
	return t.Root().UpdatePayloads(fn, depth)
}

// Uncompress expands the tensor to nested slices using the rank shapes.
func (t *Tensor) Uncompress() (any, error) {
	f := t.Root()
	if f == nil {
		return Unbox(t.root), nil
	}
	return f.Uncompress()
}

// String prints the tensor header followed by the tree.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "T(%s)/", strings.Join(t.rankIDs, ","))
	if f := t.Root(); f != nil {
		f.format(&b)
	} else {
		b.WriteString(fmtValue(t.root))
	}
	return b.String()
}
