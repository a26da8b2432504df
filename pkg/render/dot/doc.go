// Package dot renders fibertree tensors as Graphviz diagrams.
//
// # Overview
//
// A tensor is drawn top to bottom, one row per rank. Each fiber is a record
// node listing its coordinates; leaf fibers add the payload under each
// coordinate. An edge leaves every coordinate cell of an upper rank and
// points at the sub-fiber stored there.
//
// # Usage
//
// Convert a tensor to DOT, then render to SVG:
//
//	src := dot.ToDOT(t, dot.Options{})
//	svg, err := dot.RenderSVG(src)
//
// For PNG output:
//
//	png, err := dot.RenderPNG(src)
//
// # Options
//
// The [Options] struct controls diagram generation:
//
//   - HideValues: draw leaf fibers with coordinates only
//   - RankDir: Graphviz rankdir, "TB" by default, "LR" for wide tensors
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process rendering;
// no Graphviz installation is needed.
package dot
