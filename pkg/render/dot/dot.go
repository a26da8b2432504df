package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/fibertree/pkg/fibertree"
)

// Options configures fibertree diagrams.
type Options struct {
	// HideValues draws leaf fibers with coordinates only.
	HideValues bool

	// RankDir is the Graphviz rankdir (default "TB").
	RankDir string
}

// ToDOT converts a tensor to Graphviz DOT format.
//
// Every fiber becomes a record node holding its coordinates. Leaf fibers
// also show their values, one column per element. Edges run from a
// coordinate cell to the sub-fiber it points at, and the fibers of each
// rank share one row labeled with the rank id.
//
// A rank-0 tensor produces a single node with its value.
func ToDOT(t *fibertree.Tensor, opts Options) string {
	rankDir := opts.RankDir
	if rankDir == "" {
		rankDir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph T {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankDir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=record, fontname=\"SF Mono, Menlo, monospace\", fontsize=14, style=filled, fillcolor=white];\n")
	buf.WriteString("  edge [arrowsize=0.6];\n")
	if name := t.Name(); name != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", name)
	}
	buf.WriteString("\n")

	root := t.Root()
	if root == nil {
		fmt.Fprintf(&buf, "  v [shape=box, label=%q];\n", fmt.Sprint(fibertree.Unbox(t.Value())))
		buf.WriteString("}\n")
		return buf.String()
	}

	w := &writer{opts: opts, levels: make([][]string, t.Depth())}
	w.writeFiber(root, 0)

	ids := t.RankIDs()
	for level, nodes := range w.levels {
		fmt.Fprintf(&buf, "  subgraph rank_%d {\n", level)
		buf.WriteString("    rank=same;\n")
		fmt.Fprintf(&buf, "    r%d [shape=plaintext, style=\"\", fontcolor=%q, label=%q];\n", level, t.Color(), ids[level])
		for _, n := range nodes {
			fmt.Fprintf(&buf, "    %s;\n", n)
		}
		buf.WriteString("  }\n")
	}
	for level := 1; level < len(w.levels); level++ {
		fmt.Fprintf(&buf, "  r%d -> r%d [style=invis];\n", level-1, level)
	}

	buf.WriteString("\n")
	buf.WriteString(w.edges.String())
	buf.WriteString("}\n")
	return buf.String()
}

type writer struct {
	opts   Options
	next   int
	levels [][]string
	edges  strings.Builder
}

// writeFiber records the node of f at the given level and recurses into its
// sub-fibers. It returns the node id.
func (w *writer) writeFiber(f *fibertree.Fiber, level int) string {
	id := fmt.Sprintf("f%d", w.next)
	w.next++

	var cells []string
	pos := 0
	for c, p := range f.All() {
		port := "p" + strconv.Itoa(pos)
		pos++
		sub, ok := p.(*fibertree.Fiber)
		switch {
		case ok:
			cells = append(cells, fmt.Sprintf("<%s>%s", port, escape(fmt.Sprint(c))))
			child := w.writeFiber(sub, level+1)
			fmt.Fprintf(&w.edges, "  %s:%s -> %s;\n", id, port, child)
		case w.opts.HideValues:
			cells = append(cells, escape(fmt.Sprint(c)))
		default:
			cells = append(cells, fmt.Sprintf("{%s|%s}", escape(fmt.Sprint(c)), escape(fmt.Sprint(fibertree.Unbox(p)))))
		}
	}
	label := strings.Join(cells, "|")
	if label == "" {
		label = "empty"
	}

	for len(w.levels) <= level {
		w.levels = append(w.levels, nil)
	}
	w.levels[level] = append(w.levels[level], fmt.Sprintf(`%s [label="%s"]`, id, strings.ReplaceAll(label, `"`, `\"`)))
	return id
}

var recordSpecial = strings.NewReplacer(
	`\`, `\\`,
	`{`, `\{`,
	`}`, `\}`,
	`|`, `\|`,
	`<`, `\<`,
	`>`, `\>`,
)

// escape quotes the characters that delimit record fields. The label is
// written without Go quoting so the backslashes reach Graphviz unchanged.
func escape(s string) string {
	return recordSpecial.Replace(s)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	out, err := render(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
