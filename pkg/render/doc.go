// Package render holds the visual outputs of the fibertree tools.
//
// The [dot] subpackage draws a tensor as a Graphviz diagram, one row of
// fiber records per rank, and renders it to SVG or PNG in process.
//
//	src := dot.ToDOT(t, dot.Options{})
//	svg, err := dot.RenderSVG(src)
//
// [dot]: github.com/matzehuels/fibertree/pkg/render/dot
package render
