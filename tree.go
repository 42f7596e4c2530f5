package plist

import (
	"bytes"
	"fmt"
	"math"
)

func indexError(i, size int) error {
	return fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfRange, i, size)
}

// adopt checks that child may become a child of n.
func (n *Node) adopt(child *Node) error {
	if child == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidChild)
	}
	if child.typ == KeyType {
		return fmt.Errorf("%w: key nodes cannot be container items", ErrInvalidChild)
	}
	if child.parent != nil {
		return fmt.Errorf("%w: node already has a parent", ErrInvalidChild)
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: node is an ancestor of the container", ErrInvalidChild)
		}
	}
	return nil
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.array {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) removeAt(i int) {
	old := n.array[i]
	copy(n.array[i:], n.array[i+1:])
	n.array[len(n.array)-1] = nil
	n.array = n.array[:len(n.array)-1]
	old.parent = nil
}

// ArraySize returns the number of items in an Array node.
func (n *Node) ArraySize() (int, error) {
	if !IsType(n, ArrayType) {
		return 0, typeMismatch(n, ArrayType)
	}
	return len(n.array), nil
}

// ArrayItem returns the i-th item of an Array node.
func (n *Node) ArrayItem(i int) (*Node, error) {
	if !IsType(n, ArrayType) {
		return nil, typeMismatch(n, ArrayType)
	}
	if i < 0 || i >= len(n.array) {
		return nil, indexError(i, len(n.array))
	}
	return n.array[i], nil
}

// SetArrayItem replaces the i-th item. The replaced node becomes a root.
func (n *Node) SetArrayItem(i int, item *Node) error {
	if !IsType(n, ArrayType) {
		return typeMismatch(n, ArrayType)
	}
	if i < 0 || i >= len(n.array) {
		return indexError(i, len(n.array))
	}
	if n.array[i] == item {
		return nil
	}
	if err := n.adopt(item); err != nil {
		return err
	}
	n.array[i].parent = nil
	n.array[i] = item
	item.parent = n
	return nil
}

// InsertArrayItem inserts item before position i; i may equal the size.
func (n *Node) InsertArrayItem(i int, item *Node) error {
	if !IsType(n, ArrayType) {
		return typeMismatch(n, ArrayType)
	}
	if i < 0 || i > len(n.array) {
		return indexError(i, len(n.array))
	}
	if err := n.adopt(item); err != nil {
		return err
	}
	n.array = append(n.array, nil)
	copy(n.array[i+1:], n.array[i:])
	n.array[i] = item
	item.parent = n
	return nil
}

// AppendArrayItem adds item at the end of an Array node.
func (n *Node) AppendArrayItem(item *Node) error {
	if !IsType(n, ArrayType) {
		return typeMismatch(n, ArrayType)
	}
	if err := n.adopt(item); err != nil {
		return err
	}
	n.array = append(n.array, item)
	item.parent = n
	return nil
}

// RemoveArrayItem removes the i-th item. The removed node becomes a root.
func (n *Node) RemoveArrayItem(i int) error {
	if !IsType(n, ArrayType) {
		return typeMismatch(n, ArrayType)
	}
	if i < 0 || i >= len(n.array) {
		return indexError(i, len(n.array))
	}
	n.removeAt(i)
	return nil
}

// ArrayItemIndex returns the position of n within its parent array.
func (n *Node) ArrayItemIndex() (int, error) {
	p := n.Parent()
	if !IsType(p, ArrayType) {
		return 0, fmt.Errorf("%w: parent is %v, want array", ErrTypeMismatch, p.Type())
	}
	return p.indexOf(n), nil
}

// DictSize returns the number of items in a Dictionary node.
func (n *Node) DictSize() (int, error) {
	if !IsType(n, DictType) {
		return 0, typeMismatch(n, DictType)
	}
	return n.dict.len(), nil
}

// DictItem returns the value stored under key.
func (n *Node) DictItem(key string) (*Node, error) {
	if !IsType(n, DictType) {
		return nil, typeMismatch(n, DictType)
	}
	v, ok := n.dict.get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

// SetDictItem stores item under key. An existing value is replaced in place
// and becomes a root. A key seen for the first time is appended to the
// iteration order; a previously removed key returns to its old position.
func (n *Node) SetDictItem(key string, item *Node) error {
	if !IsType(n, DictType) {
		return typeMismatch(n, DictType)
	}
	if cur, ok := n.dict.get(key); ok && cur == item {
		return nil
	}
	if err := n.adopt(item); err != nil {
		return err
	}
	if old := n.dict.set(key, item); old != nil {
		old.parent, old.key = nil, ""
	}
	item.parent, item.key = n, key
	return nil
}

// RemoveDictItem removes key from a Dictionary node.
func (n *Node) RemoveDictItem(key string) error {
	if !IsType(n, DictType) {
		return typeMismatch(n, DictType)
	}
	old := n.dict.remove(key)
	if old == nil {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	old.parent, old.key = nil, ""
	return nil
}

// DictItemKey returns the key under which n is stored in its parent dictionary.
func (n *Node) DictItemKey() (string, error) {
	p := n.Parent()
	if !IsType(p, DictType) {
		return "", fmt.Errorf("%w: parent is %v, want dict", ErrTypeMismatch, p.Type())
	}
	return n.key, nil
}

// DictKeys returns the keys of a Dictionary node in iteration order.
func (n *Node) DictKeys() ([]string, error) {
	if !IsType(n, DictType) {
		return nil, typeMismatch(n, DictType)
	}
	keys, _ := n.dict.items()
	return keys, nil
}

// DictIter walks a dictionary in insertion order.
type DictIter struct {
	dict *orderedDict
	pos  int
}

// DictIter returns an iterator positioned before the first item.
func (n *Node) DictIter() (*DictIter, error) {
	if !IsType(n, DictType) {
		return nil, typeMismatch(n, DictType)
	}
	return &DictIter{dict: n.dict}, nil
}

// Next returns the next item. ok is false once the dictionary is exhausted.
func (it *DictIter) Next() (key string, value *Node, ok bool) {
	for it.pos < len(it.dict.keys) {
		key, value = it.dict.keys[it.pos], it.dict.values[it.pos]
		it.pos++
		if value != nil {
			return key, value, true
		}
	}
	return "", nil, false
}

// MergeDict copies every item of src into n. Existing keys are replaced.
func (n *Node) MergeDict(src *Node) error {
	if !IsType(n, DictType) {
		return typeMismatch(n, DictType)
	}
	if !IsType(src, DictType) {
		return typeMismatch(src, DictType)
	}
	// snapshot src first: n may be an ancestor of src or src itself
	keys, values := src.dict.items()
	for i, v := range values {
		values[i] = v.Copy()
	}
	for i, k := range keys {
		if err := n.SetDictItem(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of n with no parent.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		typ:    n.typ,
		b:      n.b,
		u:      n.u,
		signed: n.signed,
		f:      n.f,
		s:      n.s,
		sec:    n.sec,
		usec:   n.usec,
	}
	switch n.typ {
	case DataType:
		c.data = cloneBytes(n.data)
	case ArrayType:
		c.array = make([]*Node, len(n.array))
		for i, item := range n.array {
			ci := item.Copy()
			ci.parent = c
			c.array[i] = ci
		}
	case DictType:
		c.dict = newOrderedDict()
		keys, values := n.dict.items()
		for i, k := range keys {
			ci := values[i].Copy()
			ci.parent, ci.key = c, k
			c.dict.set(k, ci)
		}
	}
	return c
}

// Compare reports whether a and b hold the same value. Arrays compare item by
// item in order; dictionaries compare key sets and values regardless of order.
// NaN reals compare equal to each other.
func Compare(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case BooleanType:
		return a.b == b.b
	case UIntType:
		return a.u == b.u && a.signed == b.signed
	case UIDType:
		return a.u == b.u
	case RealType:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case StringType, KeyType:
		return a.s == b.s
	case DataType:
		return bytes.Equal(a.data, b.data)
	case DateType:
		return a.sec == b.sec && a.usec == b.usec
	case ArrayType:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Compare(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case DictType:
		if a.dict.len() != b.dict.len() {
			return false
		}
		keys, values := a.dict.items()
		for i, k := range keys {
			bv, ok := b.dict.get(k)
			if !ok || !Compare(values[i], bv) {
				return false
			}
		}
		return true
	}
	return true
}

// Equal is Compare(n, o).
func (n *Node) Equal(o *Node) bool {
	return Compare(n, o)
}
