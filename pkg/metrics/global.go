package metrics

import "sync/atomic"

var defaultCollector atomic.Pointer[Collector]

func init() {
	defaultCollector.Store(&Collector{})
}

// Default returns the process-wide collector used by the package-level
// functions.
func Default() *Collector {
	return defaultCollector.Load()
}

// SetDefault replaces the process-wide collector and returns the previous
// one. Tests use it to isolate their frames.
func SetDefault(c *Collector) *Collector {
	return defaultCollector.Swap(c)
}

// BeginCollect pushes a frame on the default collector.
func BeginCollect(traceDir string) error { return Default().BeginCollect(traceDir) }

// EndCollect pops a frame of the default collector.
func EndCollect() (Dump, error) { return Default().EndCollect() }

// Snapshot returns the counters of the innermost frame of the default
// collector.
func Snapshot() Dump { return Default().Dump() }

// IsCollecting reports whether the default collector has an open frame.
func IsCollecting() bool { return Default().IsCollecting() }

// IncCount increments a counter of the default collector.
func IncCount(line, metric string, delta int) { Default().IncCount(line, metric, delta) }

// Trace enables a trace on the default collector.
func Trace(rank, typ string, consumable bool) error { return Default().Trace(rank, typ, consumable) }

// IsTraced reports whether a trace is enabled on the default collector.
func IsTraced(rank, typ string) bool { return Default().IsTraced(rank, typ) }

// ConsumeTrace drains a buffered trace of the default collector.
func ConsumeTrace(rank, typ string) [][]string { return Default().ConsumeTrace(rank, typ) }

// RegisterRank registers a rank with the default collector.
func RegisterRank(rank string) { Default().RegisterRank(rank) }

// IsRegistered reports whether rank is registered with the default
// collector.
func IsRegistered(rank string) bool { return Default().IsRegistered(rank) }

// IncIter advances a loop position on the default collector.
func IncIter(rank string) { Default().IncIter(rank) }

// EndIter resets a loop position on the default collector.
func EndIter(rank string) { Default().EndIter(rank) }

// AddUse records a trace event on the default collector.
func AddUse(rank string, coord any, pos int, typ string, extra ...string) {
	Default().AddUse(rank, coord, pos, typ, extra...)
}

// AddUseAt records a trace event with an explicit iteration stamp.
func AddUseAt(rank string, coord any, pos int, typ string, iteration []int, extra ...string) {
	Default().AddUseAt(rank, coord, pos, typ, iteration, extra...)
}

// AddReuse records a keyed access for reuse statistics.
func AddReuse(rank, key string) { Default().AddReuse(rank, key) }
