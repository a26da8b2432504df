package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrNotCollecting is the panic value of [Collector.IncCount] when no frame
// is open. Counting outside a frame is a programming error.
var ErrNotCollecting = errors.New("metrics: not collecting")

// Dump holds the counters of a frame keyed by line (usually a rank id, or
// "Compute" for payload arithmetic) and then by counter name.
type Dump map[string]map[string]int

// Get returns the value of a counter, 0 when it was never incremented.
func (d Dump) Get(line, metric string) int {
	return d[line][metric]
}

// Clone returns a deep copy.
func (d Dump) Clone() Dump {
	out := make(Dump, len(d))
	for k, v := range d {
		out[k] = maps.Clone(v)
	}
	return out
}

func (d Dump) add(line, metric string, delta int) {
	m, ok := d[line]
	if !ok {
		m = make(map[string]int)
		d[line] = m
	}
	m[metric] += delta
}

// Collector records counters and traces. The zero value is ready to use.
// All methods are safe for concurrent use, but counters from concurrent
// traversals interleave within a frame.
type Collector struct {
	mu     sync.Mutex
	frames []*frame

	// open mirrors len(frames) so IsCollecting needs no lock.
	open atomic.Int32
}

type frame struct {
	traceDir string
	counts   Dump
	traces   map[string]*trace

	ranks  []string
	pos    map[string]int
	coords map[string]any

	clock    map[string]int
	lastUsed map[string]map[string]int
}

type trace struct {
	rank, typ  string
	consumable bool

	file   *os.File
	w      *csv.Writer
	header bool
	rows   [][]string
}

func traceKey(rank, typ string) string { return rank + "-" + typ }

// BeginCollect pushes a new collection frame. A non-empty traceDir is
// created if needed and receives the trace files of this frame.
func (c *Collector) BeginCollect(traceDir string) error {
	if traceDir != "" {
		if err := os.MkdirAll(traceDir, 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, &frame{
		traceDir: traceDir,
		counts:   make(Dump),
		traces:   make(map[string]*trace),
		pos:      make(map[string]int),
		coords:   make(map[string]any),
		clock:    make(map[string]int),
		lastUsed: make(map[string]map[string]int),
	})
	c.open.Add(1)
	return nil
}

// EndCollect pops the innermost frame, flushes and closes its trace files
// and returns its counters. The counters are also added to the enclosing
// frame, if any.
func (c *Collector) EndCollect() (Dump, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil, ErrNotCollecting
	}
	fr := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.open.Add(-1)

	var errs []error
	for _, key := range slices.Sorted(maps.Keys(fr.traces)) {
		tr := fr.traces[key]
		fr.writeHeader(tr)
		if err := tr.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n := len(c.frames); n > 0 {
		for line, m := range fr.counts {
			for metric, v := range m {
				c.frames[n-1].counts.add(line, metric, v)
			}
		}
	}
	return fr.counts, errors.Join(errs...)
}

// Dump returns a copy of the counters of the innermost frame, or nil.
func (c *Collector) Dump() Dump {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return nil
	}
	return fr.counts.Clone()
}

// IsCollecting reports whether a frame is open. It does not lock.
func (c *Collector) IsCollecting() bool {
	return c.open.Load() > 0
}

// IncCount adds delta to line/metric. It panics with [ErrNotCollecting]
// when no frame is open.
func (c *Collector) IncCount(line, metric string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		panic(fmt.Errorf("%w: IncCount(%q, %q)", ErrNotCollecting, line, metric))
	}
	fr.counts.add(line, metric, delta)
}

// Trace enables the trace of event type typ for rank. It is a no-op when
// the trace is already enabled or no frame is open.
func (c *Collector) Trace(rank, typ string, consumable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return nil
	}
	key := traceKey(rank, typ)
	if tr, ok := fr.traces[key]; ok {
		tr.consumable = tr.consumable || consumable
		return nil
	}
	tr := &trace{rank: rank, typ: typ, consumable: consumable}
	if fr.traceDir != "" {
		f, err := os.Create(filepath.Join(fr.traceDir, key+".csv"))
		if err != nil {
			return fmt.Errorf("create trace %s: %w", key, err)
		}
		tr.file = f
		tr.w = csv.NewWriter(f)
	}
	fr.traces[key] = tr
	return nil
}

// IsTraced reports whether the (rank, typ) trace is enabled.
func (c *Collector) IsTraced(rank, typ string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return false
	}
	_, ok := fr.traces[traceKey(rank, typ)]
	return ok
}

// ConsumeTrace returns the buffered lines of a consumable trace, header
// first, and clears the buffer.
func (c *Collector) ConsumeTrace(rank, typ string) [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return nil
	}
	tr, ok := fr.traces[traceKey(rank, typ)]
	if !ok {
		return nil
	}
	rows := tr.rows
	tr.rows = nil
	return rows
}

// RegisterRank appends rank to the loop nest of the current frame.
// Registering a rank twice has no effect.
func (c *Collector) RegisterRank(rank string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil || slices.Contains(fr.ranks, rank) {
		return
	}
	fr.ranks = append(fr.ranks, rank)
}

// IsRegistered reports whether rank is part of the loop nest.
func (c *Collector) IsRegistered(rank string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	return fr != nil && slices.Contains(fr.ranks, rank)
}

// IncIter advances the loop position of rank and counts an iteration.
func (c *Collector) IncIter(rank string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return
	}
	fr.pos[rank]++
	fr.counts.add(rank, "iterations", 1)
}

// EndIter resets the loop position of rank at the end of its loop.
func (c *Collector) EndIter(rank string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return
	}
	fr.pos[rank] = 0
	delete(fr.coords, rank)
}

// AddUse records an event of type typ on rank at coordinate coord and
// fiber position pos. The optional extra values are joined into the event
// column. Nothing is written unless the (rank, typ) trace is enabled, but
// the rank's current coordinate is always updated.
func (c *Collector) AddUse(rank string, coord any, pos int, typ string, extra ...string) {
	c.addUse(rank, coord, pos, typ, nil, extra)
}

// AddUseAt is AddUse with an explicit iteration stamp replacing the loop
// positions of the registered ranks.
func (c *Collector) AddUseAt(rank string, coord any, pos int, typ string, iteration []int, extra ...string) {
	c.addUse(rank, coord, pos, typ, iteration, extra)
}

func (c *Collector) addUse(rank string, coord any, pos int, typ string, iteration []int, extra []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return
	}
	fr.coords[rank] = coord
	tr, ok := fr.traces[traceKey(rank, typ)]
	if !ok {
		return
	}

	nest := fr.nest(rank)
	fr.writeHeader(tr)

	row := make([]string, 0, 2*len(nest)+2)
	for i, r := range nest {
		p := fr.pos[r]
		if i < len(iteration) {
			p = iteration[i]
		}
		row = append(row, strconv.Itoa(p))
	}
	for _, r := range nest {
		row = append(row, formatCoord(fr.coords[r]))
	}
	event := typ
	for _, e := range extra {
		event += ":" + e
	}
	row = append(row, strconv.Itoa(pos), event)
	tr.write(row)
}

// AddReuse records an access to key on rank. An access to a key seen before
// counts a reuse and adds the number of accesses since the previous one to
// the rank's reuse_distance.
func (c *Collector) AddReuse(rank, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fr := c.top()
	if fr == nil {
		return
	}
	last, ok := fr.lastUsed[rank]
	if !ok {
		last = make(map[string]int)
		fr.lastUsed[rank] = last
	}
	now := fr.clock[rank]
	if prev, seen := last[key]; seen {
		fr.counts.add(rank, "reuses", 1)
		fr.counts.add(rank, "reuse_distance", now-prev)
	}
	last[key] = now
	fr.clock[rank] = now + 1
}

func (c *Collector) top() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

// nest returns the registered ranks down to and including rank. An
// unregistered rank is traced on its own.
func (fr *frame) nest(rank string) []string {
	i := slices.Index(fr.ranks, rank)
	if i < 0 {
		return []string{rank}
	}
	return fr.ranks[:i+1]
}

// writeHeader writes the header row of tr unless it has one: the loop
// position and coordinate of every rank in the nest, then the fiber
// position and the event.
func (fr *frame) writeHeader(tr *trace) {
	if tr.header {
		return
	}
	nest := fr.nest(tr.rank)
	header := make([]string, 0, 2*len(nest)+2)
	for _, r := range nest {
		header = append(header, r+"_pos")
	}
	header = append(header, nest...)
	header = append(header, "fiber_pos", "event")
	tr.write(header)
	tr.header = true
}

func (tr *trace) write(row []string) {
	if tr.w != nil {
		// Write errors are sticky in csv.Writer and surface at close.
		_ = tr.w.Write(row)
	}
	if tr.consumable || tr.w == nil {
		tr.rows = append(tr.rows, row)
	}
}

func (tr *trace) close() error {
	if tr.w == nil {
		return nil
	}
	tr.w.Flush()
	err := tr.w.Error()
	if cerr := tr.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write trace %s: %w", traceKey(tr.rank, tr.typ), err)
	}
	return nil
}

func formatCoord(c any) string {
	if c == nil {
		return ""
	}
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(c)
}
