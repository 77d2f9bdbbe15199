// Package tree converts a capabilities document into a generic name/value tree.
//
// A node is one of three kinds: a scalar, an ordered sequence or an ordered
// mapping. Repeated sibling tags collapse into a sequence while a tag that
// occurs once stays a scalar or mapping, so consumers can tell "one" from
// "many" by kind alone.
package tree

import (
	"bytes"
	"encoding/json"
)

type Kind int

const (
	Scalar Kind = iota
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "unknown"
	}
}

type Field struct {
	Name  string
	Value *Node
}

// Node is immutable once built. All accessors are nil-safe.
type Node struct {
	kind   Kind
	text   string
	items  []*Node
	fields []Field
	index  map[string]int

	// set on sequences built from repeated tags
	grouped bool
}

func NewScalar(text string) *Node {
	return &Node{kind: Scalar, text: text}
}

func NewSequence(items ...*Node) *Node {
	return &Node{kind: Sequence, items: items}
}

// NewMapping builds a mapping; repeated names collapse into a sequence placed
// at the position of the first occurrence.
func NewMapping(fields ...Field) *Node {
	return NewMappingText("", fields...)
}

// NewMappingText is NewMapping with character data attached, as for an
// element that carries both attributes and text.
func NewMappingText(text string, fields ...Field) *Node {
	n := &Node{kind: Mapping, text: text}
	for _, f := range fields {
		n.add(f.Name, f.Value)
	}
	return n
}

func (n *Node) add(name string, v *Node) {
	if n.index == nil {
		n.index = make(map[string]int)
	}
	pos, ok := n.index[name]
	if !ok {
		n.index[name] = len(n.fields)
		n.fields = append(n.fields, Field{Name: name, Value: v})
		return
	}
	cur := n.fields[pos].Value
	if cur.kind == Sequence && cur.grouped {
		cur.items = append(cur.items, v)
		return
	}
	seq := NewSequence(cur, v)
	seq.grouped = true
	n.fields[pos].Value = seq
}

func (n *Node) Kind() Kind {
	if n == nil {
		return Scalar
	}
	return n.kind
}

func (n *Node) IsScalar() bool   { return n != nil && n.kind == Scalar }
func (n *Node) IsSequence() bool { return n != nil && n.kind == Sequence }
func (n *Node) IsMapping() bool  { return n != nil && n.kind == Mapping }

// Text returns the value of a scalar or the character data of a mapping.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.text
}

// Get returns the named field of a mapping, or nil.
func (n *Node) Get(name string) *Node {
	if n == nil || n.kind != Mapping {
		return nil
	}
	if pos, ok := n.index[name]; ok {
		return n.fields[pos].Value
	}
	return nil
}

// Has reports whether a mapping carries the named field.
func (n *Node) Has(name string) bool {
	return n.Get(name) != nil
}

// Str is shorthand for Get(name).Text().
func (n *Node) Str(name string) string {
	return n.Get(name).Text()
}

func (n *Node) Items() []*Node {
	if n == nil || n.kind != Sequence {
		return nil
	}
	return n.items
}

func (n *Node) Fields() []Field {
	if n == nil || n.kind != Mapping {
		return nil
	}
	return n.fields
}

// All normalizes a node to a slice for iteration: the items of a sequence,
// the node itself otherwise, nothing for nil. The tree is not modified.
func (n *Node) All() []*Node {
	switch {
	case n == nil:
		return nil
	case n.kind == Sequence:
		return n.items
	default:
		return []*Node{n}
	}
}

func (n *Node) Len() int {
	switch {
	case n == nil:
		return 0
	case n.kind == Sequence:
		return len(n.items)
	case n.kind == Mapping:
		return len(n.fields)
	default:
		return 1
	}
}

// MarshalJSON renders scalars as strings, sequences as arrays and mappings as
// objects in document order. Character data of a mapping goes under "#text".
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.kind {
	case Sequence:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Mapping:
		buf.WriteByte('{')
		first := true
		if n.text != "" {
			writeKey(buf, "#text")
			b, err := json.Marshal(n.text)
			if err != nil {
				return err
			}
			buf.Write(b)
			first = false
		}
		for _, f := range n.fields {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			writeKey(buf, f.Name)
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		b, err := json.Marshal(n.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func writeKey(buf *bytes.Buffer, k string) {
	b, _ := json.Marshal(k)
	buf.Write(b)
	buf.WriteByte(':')
}
