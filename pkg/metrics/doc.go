// Package metrics collects counters and per-rank traces while fiber trees
// are being traversed.
//
// # Overview
//
// A [Collector] is a stack of collection frames. [Collector.BeginCollect]
// pushes a frame, [Collector.EndCollect] pops it and returns its counters
// as a [Dump]. Everything in between is recorded into the innermost frame:
//
//	metrics.BeginCollect(dir)
//	metrics.Trace("K", "intersect_0", false)
//	for c, p := range fibertree.Intersect(a, b).All() {
//	    ...
//	}
//	dump, err := metrics.EndCollect()
//	fmt.Println(dump["K"]["intersection_tests"])
//
// The package-level functions operate on a process-wide default collector,
// so instrumented code does not need a collector threaded through it.
// Instrumentation is gated by [IsCollecting]; outside a frame the fibertree
// algebra pays a single mutex-protected check per event.
//
// # Iteration stamps
//
// Ranks taking part in a loop nest are registered outermost first with
// [RegisterRank]. [IncIter] advances a rank's loop position and [EndIter]
// resets it when its loop finishes. Every trace line carries the current
// loop position and coordinate of each registered rank down to the rank
// being traced, so cost models can reconstruct the loop nest.
//
// # Trace files
//
// [Trace] enables a (rank, type) trace. With a trace directory the lines go
// to <dir>/<rank>-<type>.csv with the header
//
//	<r0>_pos,...,<rk>_pos,<r0>,...,<rk>,fiber_pos,event
//
// Consumable traces are also buffered in memory and handed out by
// [ConsumeTrace]. Output is deterministic for identical inputs and loop
// order.
package metrics
