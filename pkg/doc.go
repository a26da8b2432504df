// Package pkg provides the libraries behind the fibertree tools.
//
// # Overview
//
// A fibertree stores a sparse tensor as a tree: every rank of the tensor is
// a level, every fiber holds the sorted coordinates of its non-default
// elements, and every payload is either a sub-fiber or a leaf value. Kernels
// walk operand trees together (co-iteration), and a metrics collector
// records what each rank touched along the way. The pkg directory is
// organized into these areas:
//
//  1. [fibertree] - Fibers, ranks, tensors, co-iteration and rank transforms
//  2. [metrics] - Counters and per-rank access traces
//  3. [io] - YAML tensor documents
//  4. [pipeline] - Named kernels with caching (used by CLI and API)
//  5. [render/dot] - Fibertree diagrams via Graphviz
//
// # Architecture
//
// The typical data flow through a kernel run:
//
//	YAML tensor files
//	         ↓
//	    [io] package (decode, validate structure)
//	         ↓
//	    [fibertree] package (co-iterate, populate output)
//	         ↓            ↘
//	    [metrics]        [cache] (results keyed by input hashes)
//	         ↓
//	    YAML output + metrics table + trace CSVs
//
// # Quick Start
//
// Multiply two matrices and read the intersection count of rank K:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/fibertree/pkg/io"
//	    "github.com/matzehuels/fibertree/pkg/pipeline"
//	)
//
//	a, _ := io.ImportYAML("a.yaml")
//	b, _ := io.ImportYAML("b.yaml")
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.Execute(context.Background(), pipeline.Options{
//	    Op:     pipeline.OpMatmul,
//	    Inputs: []*fibertree.Tensor{a, b},
//	})
//	fmt.Println(res.Metrics.Get("K", "successful_intersect"))
//
// # Main Packages
//
// ## Core
//
// [fibertree] - The data structure and its algebra. Intersection, union,
// difference, xor and populate are lazy: they return fibers whose
// iteration drives the operands. Tensors add rank ids, shapes and
// defaults, and support swizzle, swap, split and flatten.
//
// [metrics] - A process-wide collector. Begin and end a frame around a
// computation to read its counters; enable traces per rank to get one CSV
// file per (rank, trace type).
//
// ## Application
//
// [io] - YAML import and export. Structural errors carry the path of the
// offending node.
//
// [pipeline] - Named kernels (intersect, union, difference, xor, populate,
// matmul), rank transforms and renderings with shared caching. Used by
// both the CLI and the HTTP API.
//
// [render/dot] - Fibertree diagrams as DOT, SVG and PNG.
//
// ## Infrastructure
//
// [cache] - File, Redis and no-op caches behind one interface, plus cache
// key derivation.
//
// [errors] - Structured error codes shared by the CLI and the API.
//
// [observability] - Hook interfaces for runs, caches and HTTP requests.
//
// [buildinfo] - Version information set at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/fibertree/...          # Specific package
//	go test -run Example ./pkg/...       # Examples only
//
// [fibertree]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/fibertree
// [metrics]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/metrics
// [io]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/pipeline
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/render/dot
// [cache]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/fibertree/pkg/buildinfo
package pkg
