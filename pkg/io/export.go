package io

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/fibertree/pkg/fibertree"
)

// WriteYAML encodes a tensor as a YAML document and writes it to w.
// Leaf coordinate and payload lists are written in flow style. The output
// can be re-imported with [ReadYAML] for round-trip processing.
func WriteYAML(t *fibertree.Tensor, w io.Writer) error {
	ty := tensorYAML{
		Name:    t.Name(),
		RankIDs: t.RankIDs(),
	}
	if ty.RankIDs == nil {
		ty.RankIDs = []string{}
	}
	if shape := t.Shape(); hasShape(shape) {
		ty.Shape = make([]yaml.Node, len(shape))
		for i, s := range shape {
			ty.Shape[i] = *valueNode(s)
		}
	}
	if d := fibertree.Unbox(t.Default()); d != 0 && t.Depth() > 0 {
		ty.Default = valueNode(d)
	}

	if root := t.Root(); root != nil {
		ty.Root = []yaml.Node{*fiberNode(root)}
	} else {
		ty.Root = []yaml.Node{*valueNode(fibertree.Unbox(t.Value()))}
	}
	return encode(w, tensorDoc{Tensor: &ty})
}

// ExportYAML writes a tensor to a YAML file at path.
// This is a convenience wrapper around [WriteYAML] for file-based output.
func ExportYAML(t *fibertree.Tensor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteYAML(t, f)
}

// WriteFiberYAML encodes a single fiber as a bare fiber document, the
// counterpart of [ReadFiberYAML]. Lazy fibers are materialized first.
func WriteFiberYAML(f *fibertree.Fiber, w io.Writer) error {
	return encode(w, fiberNode(f))
}

func encode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func hasShape(shape []fibertree.Coord) bool {
	for _, s := range shape {
		if s != nil {
			return true
		}
	}
	return false
}

// fiberNode builds the {fiber: {coords, payloads}} mapping for f.
func fiberNode(f *fibertree.Fiber) *yaml.Node {
	f = fibertree.FromLazy(f)
	coords := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	payloads := &yaml.Node{Kind: yaml.SequenceNode}
	leaf := true
	for c, p := range f.All() {
		coords.Content = append(coords.Content, valueNode(c))
		if sub, ok := p.(*fibertree.Fiber); ok {
			payloads.Content = append(payloads.Content, fiberNode(sub))
			leaf = false
			continue
		}
		payloads.Content = append(payloads.Content, valueNode(fibertree.Unbox(p)))
	}
	if leaf {
		payloads.Style = yaml.FlowStyle
	}
	body := mapping("coords", coords, "payloads", payloads)
	return mapping("fiber", body)
}

func mapping(kv ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(kv); i += 2 {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv[i].(string)}
		n.Content = append(n.Content, key, kv[i+1].(*yaml.Node))
	}
	return n
}

// valueNode encodes a coordinate or leaf value. Tuples become flow
// sequences and floats always carry a decimal point.
func valueNode(v any) *yaml.Node {
	switch x := v.(type) {
	case fibertree.Tuple:
		n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, e := range x {
			n.Content = append(n.Content, valueNode(e))
		}
		return n
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(x)}
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v)}
	}
	return n
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
