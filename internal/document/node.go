package document

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the shape of a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Node is one value of a parsed document. Objects remember the order in
// which their fields appeared in the source.
type Node struct {
	kind   Kind
	text   string
	fields *orderedmap.OrderedMap[string, *Node]
	items  []*Node
}

// NewString returns a string scalar.
func NewString(s string) *Node { return &Node{kind: KindString, text: s} }

// NewNumber returns a number scalar holding its literal text.
func NewNumber(literal string) *Node { return &Node{kind: KindNumber, text: literal} }

// NewBool returns a boolean scalar.
func NewBool(b bool) *Node {
	if b {
		return &Node{kind: KindBool, text: "true"}
	}
	return &Node{kind: KindBool, text: "false"}
}

// NewNull returns a null scalar.
func NewNull() *Node { return &Node{kind: KindNull, text: "null"} }

// NewObject returns an empty object.
func NewObject() *Node {
	return &Node{kind: KindObject, fields: orderedmap.New[string, *Node]()}
}

// NewArray returns an array holding items.
func NewArray(items ...*Node) *Node {
	return &Node{kind: KindArray, items: items}
}

// Set stores a field on an object. A repeated name keeps its original
// position and takes the new value. Set on a non-object is a no-op.
func (n *Node) Set(name string, v *Node) *Node {
	if n.kind == KindObject {
		n.fields.Set(name, v)
	}
	return n
}

// Append adds an item to an array. Append on a non-array is a no-op.
func (n *Node) Append(v *Node) *Node {
	if n.kind == KindArray {
		n.items = append(n.items, v)
	}
	return n
}

// Kind returns the node's shape.
func (n *Node) Kind() Kind { return n.kind }

// Len returns the number of fields or items; zero for scalars.
func (n *Node) Len() int {
	switch n.kind {
	case KindObject:
		return n.fields.Len()
	case KindArray:
		return len(n.items)
	default:
		return 0
	}
}

// Field returns the named field of an object.
func (n *Node) Field(name string) (*Node, bool) {
	if n.kind != KindObject {
		return nil, false
	}
	return n.fields.Get(name)
}

// First returns the earliest inserted field of an object, regardless of its
// name. It is false for empty objects and non-objects.
func (n *Node) First() (string, *Node, bool) {
	if n.kind != KindObject {
		return "", nil, false
	}
	pair := n.fields.Oldest()
	if pair == nil {
		return "", nil, false
	}
	return pair.Key, pair.Value, true
}

// Keys returns object field names in insertion order.
func (n *Node) Keys() []string {
	if n.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, n.fields.Len())
	for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Index returns item i of an array.
func (n *Node) Index(i int) (*Node, bool) {
	if n.kind != KindArray || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Text returns the value of a string scalar.
func (n *Node) Text() (string, bool) {
	if n.kind != KindString {
		return "", false
	}
	return n.text, true
}

// Literal returns the source text of a non-string scalar.
func (n *Node) Literal() string {
	switch n.kind {
	case KindNull, KindBool, KindNumber:
		return n.text
	default:
		return ""
	}
}
