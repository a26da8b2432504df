package io

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
)

type tensorDoc struct {
	Tensor *tensorYAML `yaml:"tensor"`
}

type tensorYAML struct {
	Name    string      `yaml:"name,omitempty"`
	RankIDs []string    `yaml:"rank_ids,flow"`
	Shape   []yaml.Node `yaml:"shape,omitempty,flow"`
	Default *yaml.Node  `yaml:"default,omitempty"`
	Root    []yaml.Node `yaml:"root"`
}

type fiberDoc struct {
	Fiber *yaml.Node `yaml:"fiber"`
}

// ReadYAML decodes a YAML tensor document from r.
//
// The document must have a top-level "tensor" key; see the package
// documentation for the layout. ReadYAML returns an INVALID_YAML error if:
//   - The YAML is malformed or has unknown keys
//   - The root list does not hold exactly one entry
//   - A fiber's coords and payloads differ in length
//   - A coordinate is null or not a number, string, bool or list of them
//   - A payload list mixes fibers and leaf values
//   - The tree is deeper than the number of rank ids
//
// Structural errors wrap an [errs.PathError] naming the offending node.
// ReadYAML does not close r.
func ReadYAML(r io.Reader) (*fibertree.Tensor, error) {
	var doc tensorDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidYAML, err, "decode")
	}
	if doc.Tensor == nil {
		return nil, invalid(pathError("tensor", nil, "missing tensor key"))
	}
	t, err := doc.Tensor.build()
	if err != nil {
		return nil, invalid(err)
	}
	return t, nil
}

// ImportYAML reads a YAML tensor file at path.
//
// ImportYAML opens the file, decodes it using [ReadYAML], and closes the
// file. A missing file is reported with the FILE_NOT_FOUND code.
func ImportYAML(path string) (*fibertree.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadFiberYAML decodes a bare fiber document (a mapping with a single
// "fiber" key) from r. The fiber is detached: it belongs to no tensor.
func ReadFiberYAML(r io.Reader) (*fibertree.Fiber, error) {
	var doc fiberDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidYAML, err, "decode")
	}
	if doc.Fiber == nil {
		return nil, invalid(pathError("fiber", nil, "missing fiber key"))
	}
	f, err := decodeFiberBody(doc.Fiber, "fiber")
	if err != nil {
		return nil, invalid(err)
	}
	return f, nil
}

func (ty *tensorYAML) build() (*fibertree.Tensor, error) {
	if err := errs.ValidateRankIDs(ty.RankIDs); err != nil {
		return nil, pathError("tensor.rank_ids", nil, errs.UserMessage(err))
	}
	if err := errs.ValidateTensorName(ty.Name); err != nil {
		return nil, pathError("tensor.name", nil, errs.UserMessage(err))
	}

	var opts []fibertree.TensorOption
	if ty.Name != "" {
		opts = append(opts, fibertree.WithName(ty.Name))
	}
	if ty.Default != nil {
		v, err := decodeLeaf(ty.Default, "tensor.default")
		if err != nil {
			return nil, err
		}
		opts = append(opts, fibertree.WithTensorDefault(v))
	}
	if len(ty.Shape) > 0 {
		if len(ty.Shape) != len(ty.RankIDs) {
			return nil, pathError("tensor.shape", &ty.Shape[0],
				fmt.Sprintf("has %d entries for %d ranks", len(ty.Shape), len(ty.RankIDs)))
		}
		shape := make([]fibertree.Coord, len(ty.Shape))
		for i := range ty.Shape {
			s, err := decodeLeaf(&ty.Shape[i], fmt.Sprintf("tensor.shape[%d]", i))
			if err != nil {
				return nil, err
			}
			shape[i] = s
		}
		opts = append(opts, fibertree.WithTensorShape(shape...))
	}

	if len(ty.Root) != 1 {
		return nil, pathError("tensor.root", nil, fmt.Sprintf("expected exactly one entry, got %d", len(ty.Root)))
	}
	rootNode := &ty.Root[0]

	if len(ty.RankIDs) == 0 {
		v, err := decodeLeaf(rootNode, "tensor.root[0]")
		if err != nil {
			return nil, err
		}
		return fibertree.NewScalarTensor(v, opts...), nil
	}

	root, err := decodeFiber(rootNode, "tensor.root[0]")
	if err != nil {
		return nil, err
	}
	t, err := fibertree.FromFiber(ty.RankIDs, root, opts...)
	if err != nil {
		return nil, pathError("tensor.root[0]", rootNode, err.Error())
	}
	return t, nil
}

// decodeFiber decodes a {fiber: {...}} mapping.
func decodeFiber(n *yaml.Node, path string) (*fibertree.Fiber, error) {
	body, ok := fiberBody(n)
	if !ok {
		return nil, pathError(path, n, "expected a fiber")
	}
	return decodeFiberBody(body, path+".fiber")
}

// fiberBody returns the value of the "fiber" key of a single-key mapping.
func fiberBody(n *yaml.Node) (*yaml.Node, bool) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 || n.Content[0].Value != "fiber" {
		return nil, false
	}
	return n.Content[1], true
}

func decodeFiberBody(n *yaml.Node, path string) (*fibertree.Fiber, error) {
	if n.Kind != yaml.MappingNode {
		return nil, pathError(path, n, "expected a mapping with coords and payloads")
	}
	var coordsNode, payloadsNode *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch key := n.Content[i].Value; key {
		case "coords":
			coordsNode = n.Content[i+1]
		case "payloads":
			payloadsNode = n.Content[i+1]
		default:
			return nil, pathError(path+"."+key, n.Content[i], "unknown key")
		}
	}
	if coordsNode == nil {
		return nil, pathError(path+".coords", n, "missing")
	}
	if payloadsNode == nil {
		return nil, pathError(path+".payloads", n, "missing")
	}
	if coordsNode.Kind != yaml.SequenceNode {
		return nil, pathError(path+".coords", coordsNode, "expected a list")
	}
	if payloadsNode.Kind != yaml.SequenceNode {
		return nil, pathError(path+".payloads", payloadsNode, "expected a list")
	}
	if len(coordsNode.Content) != len(payloadsNode.Content) {
		return nil, pathError(path, n, fmt.Sprintf("%d coords but %d payloads",
			len(coordsNode.Content), len(payloadsNode.Content)))
	}

	coords := make([]fibertree.Coord, len(coordsNode.Content))
	for i, cn := range coordsNode.Content {
		c, err := decodeCoord(cn, fmt.Sprintf("%s.coords[%d]", path, i))
		if err != nil {
			return nil, err
		}
		coords[i] = c
	}

	payloads := make([]any, len(payloadsNode.Content))
	nested := -1
	for i, pn := range payloadsNode.Content {
		ppath := fmt.Sprintf("%s.payloads[%d]", path, i)
		_, isFiber := fiberBody(pn)
		switch {
		case nested == -1:
			nested = boolInt(isFiber)
		case (nested == 1) != isFiber:
			return nil, pathError(ppath, pn, "mixes fibers and leaf values")
		}
		if isFiber {
			sub, err := decodeFiber(pn, ppath)
			if err != nil {
				return nil, err
			}
			payloads[i] = sub
			continue
		}
		v, err := decodeLeaf(pn, ppath)
		if err != nil {
			return nil, err
		}
		payloads[i] = v
	}

	f, err := fibertree.NewFiber(coords, payloads)
	if err != nil {
		return nil, pathError(path, n, err.Error())
	}
	if !f.Ordered() || !f.Unique() {
		return nil, pathError(path+".coords", coordsNode, "must be strictly ascending")
	}
	return f, nil
}

// decodeCoord decodes a coordinate: an integer, float, string or bool, or
// a list of them for flattened ranks.
func decodeCoord(n *yaml.Node, path string) (fibertree.Coord, error) {
	v, err := decodeLeaf(n, path)
	if err != nil {
		return nil, err
	}
	if bad, at := invalidCoord(v, path); bad != nil {
		return nil, pathError(at, n, fmt.Sprintf("%v is not a valid coordinate", bad))
	}
	return v, nil
}

// invalidCoord returns the first component of c that cannot be ordered,
// with its path. A nil component is reported as "null".
func invalidCoord(c any, path string) (any, string) {
	switch x := c.(type) {
	case int, float64, string, bool:
		return nil, ""
	case fibertree.Tuple:
		for i, e := range x {
			if bad, at := invalidCoord(e, fmt.Sprintf("%s[%d]", path, i)); bad != nil {
				return bad, at
			}
		}
		return nil, ""
	case nil:
		return "null", path
	}
	return fmt.Sprintf("%T value %v", c, c), path
}

// decodeLeaf decodes a scalar, or a list of scalars as a tuple.
func decodeLeaf(n *yaml.Node, path string) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, pathError(path, n, err.Error())
		}
		return v, nil
	case yaml.SequenceNode:
		t := make(fibertree.Tuple, len(n.Content))
		for i, e := range n.Content {
			v, err := decodeLeaf(e, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			t[i] = v
		}
		return t, nil
	case yaml.AliasNode:
		return decodeLeaf(n.Alias, path)
	}
	return nil, pathError(path, n, "expected a value")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func pathError(path string, n *yaml.Node, msg string) *errs.PathError {
	pe := &errs.PathError{Path: path, Message: msg}
	if n != nil {
		pe.Line = n.Line
	}
	return pe
}

func invalid(err error) error {
	return errs.Wrap(errs.ErrCodeInvalidYAML, err, "invalid tensor document")
}
