// Package metadata renders capabilities subtrees as display trees.
package metadata

import (
	"encoding/json"

	"github.com/mohammed-shakir/wms-catalog/internal/capabilities/tree"
)

// Node is one displayable entry. Value points into the capabilities tree it
// was built from; Children mirror the fields of a mapping value.
type Node struct {
	Name     string
	Value    *tree.Node
	Children []*Node
}

// New returns a root node named name holding the fields of source.
func New(name string, source *tree.Node) *Node {
	root := &Node{Name: name, Value: source}
	Build(root, source)
	return root
}

// Build appends one child per field of source to target, recursing into
// mapping values. Scalars and sequences are leaves. A BoundingBox sequence
// is expanded into one child per element named after its reference system,
// since servers often publish the same extent in several of them.
func Build(target *Node, source *tree.Node) {
	if !source.IsMapping() {
		return
	}
	for _, f := range source.Fields() {
		if f.Name == "BoundingBox" && f.Value.IsSequence() {
			for _, bb := range f.Value.Items() {
				child := &Node{Name: "BoundingBox (" + crs(bb) + ")", Value: bb}
				Build(child, bb)
				target.Children = append(target.Children, child)
			}
			continue
		}
		child := &Node{Name: f.Name, Value: f.Value}
		Build(child, f.Value)
		target.Children = append(target.Children, child)
	}
}

// WMS 1.3.0 uses CRS, 1.1.x uses SRS.
func crs(bb *tree.Node) string {
	if v := bb.Str("CRS"); v != "" {
		return v
	}
	return bb.Str("SRS")
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Len counts every node below n.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	total := 0
	for _, c := range n.Children {
		total += 1 + c.Len()
	}
	return total
}

type jsonNode struct {
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value,omitempty"`
	Text     string          `json:"text,omitempty"`
	Children []*Node         `json:"children,omitempty"`
}

// MarshalJSON writes leaf values in full; mappings are described by their
// children, with any character data kept under "text".
func (n *Node) MarshalJSON() ([]byte, error) {
	out := jsonNode{Name: n.Name, Children: n.Children}
	if n.Value.IsMapping() {
		out.Text = n.Value.Text()
	} else if n.Value != nil {
		raw, err := n.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out.Value = raw
	}
	return json.Marshal(out)
}
