// Package io provides YAML import and export for fibertree tensors.
//
// # Overview
//
// This package serializes tensors to and from the nested YAML layout used
// by the fibertree tooling. The format is a convenience for exchanging small
// tensors between tools and for test fixtures. It is not a storage format:
// there is no versioning and no schema evolution.
//
// # YAML Format
//
// The document has a single top-level "tensor" key:
//
//	tensor:
//	  name: A
//	  rank_ids: [M, K]
//	  shape: [3, 4]
//	  root:
//	    - fiber:
//	        coords: [0, 2]
//	        payloads:
//	          - fiber:
//	              coords: [1, 3]
//	              payloads: [5, 7]
//	          - fiber:
//	              coords: [0]
//	              payloads: [2]
//
// # Tensor Fields
//
// Required:
//   - rank_ids: Rank ids, outermost first
//   - root: A single-element list holding the root fiber
//
// Optional:
//   - name: Tensor name
//   - shape: One entry per rank; omitted shapes are estimated from the data
//   - default: Leaf default payload (0 when omitted)
//
// A tensor with no rank ids is a scalar; its root list holds the value.
//
// # Fiber Fields
//
// A fiber is a mapping with a single "fiber" key holding two lists of equal
// length:
//   - coords: Coordinates in ascending order (lists for flattened ranks)
//   - payloads: Leaf values, lists for tuple payloads, or nested fibers
//
// Explicit zero payloads are preserved as written.
//
// # Errors
//
// Structural problems are reported as [errors.PathError] values carrying
// the dotted path of the offending node and its source line, wrapped in an
// INVALID_YAML error:
//
//	tensor.root[0].fiber.payloads[1] (line 9): expected a fiber
//
// # Round-Trip Guarantee
//
// [WriteYAML] followed by [ReadYAML] yields a tensor equal to the original
// (same rank ids, shapes, coordinates and payload values). Floats keep a
// decimal point so they are not read back as integers.
//
// # Usage
//
//	t, err := io.ImportYAML("a.yaml")
//	if err != nil {
//	    return err
//	}
//	s, _ := t.SwapRanks(0)
//	err = io.ExportYAML(s, "a_swapped.yaml")
//
// [errors.PathError]: github.com/matzehuels/fibertree/pkg/errors.PathError
package io
