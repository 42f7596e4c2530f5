package plist

import (
	"math"
	"time"
)

// Type identifies the variant held by a Node.
type Type int

const (
	BooleanType Type = iota
	UIntType
	RealType
	StringType
	ArrayType
	DictType
	DateType
	DataType
	KeyType
	UIDType
	NoneType
)

var typeNames = [...]string{
	BooleanType: "boolean",
	UIntType:    "uint",
	RealType:    "real",
	StringType:  "string",
	ArrayType:   "array",
	DictType:    "dict",
	DateType:    "date",
	DataType:    "data",
	KeyType:     "key",
	UIDType:     "uid",
	NoneType:    "none",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "invalid"
	}
	return typeNames[t]
}

// IsStructured reports whether nodes of type t own children.
func (t Type) IsStructured() bool {
	return t == ArrayType || t == DictType
}

// UID is the object reference type used by keyed archives.
type UID uint64

// Node is one value of a property list tree.
//
// Arrays and dictionaries exclusively own their children: a node has at most
// one parent, and inserting a node that already belongs to a container fails
// with ErrInvalidChild. Nodes are not safe for concurrent mutation.
type Node struct {
	typ    Type
	parent *Node
	key    string // own key while the parent is a dictionary

	b      bool
	u      uint64 // UInt and UID
	signed bool   // u holds a negative int64
	f      float64
	s      string // String and Key
	data   []byte
	sec    int32
	usec   int32

	array []*Node
	dict  *orderedDict
}

// NewBool returns a Boolean node.
func NewBool(v bool) *Node { return &Node{typ: BooleanType, b: v} }

// NewUInt returns an unsigned integer node.
func NewUInt(v uint64) *Node { return &Node{typ: UIntType, u: v} }

// NewInt returns an integer node for a signed value. Negative values are
// stored in two's complement and encoded as signed integers.
func NewInt(v int64) *Node { return &Node{typ: UIntType, u: uint64(v), signed: v < 0} }

// NewReal returns a floating point node.
func NewReal(v float64) *Node { return &Node{typ: RealType, f: v} }

// NewString returns a String node.
func NewString(v string) *Node { return &Node{typ: StringType, s: v} }

// NewKey returns a Key node. Keys name dictionary items and cannot be stored
// inside a container themselves.
func NewKey(v string) *Node { return &Node{typ: KeyType, s: v} }

// NewData returns a Data node holding a copy of v.
func NewData(v []byte) *Node { return &Node{typ: DataType, data: cloneBytes(v)} }

// NewUID returns a Uid node.
func NewUID(v UID) *Node { return &Node{typ: UIDType, u: uint64(v)} }

// NewArray returns an empty Array node.
func NewArray() *Node { return &Node{typ: ArrayType} }

// NewDict returns an empty Dictionary node.
func NewDict() *Node { return &Node{typ: DictType, dict: newOrderedDict()} }

// NewNone returns the absence marker.
func NewNone() *Node { return &Node{typ: NoneType} }

// NewDate returns a Date node sec seconds and usec microseconds after
// 2001-01-01T00:00:00Z. Microseconds are normalized into [0, 1e6).
func NewDate(sec, usec int32) *Node {
	n := &Node{typ: DateType}
	n.sec, n.usec = normalizeDate(int64(sec), int64(usec))
	return n
}

// NewDateFromTime returns a Date node for t, truncated to microseconds.
func NewDateFromTime(t time.Time) *Node {
	n := &Node{typ: DateType}
	n.sec, n.usec = dateFromTime(t)
	return n
}

// Type returns the variant of n. A nil node reports NoneType.
func (n *Node) Type() Type {
	if n == nil {
		return NoneType
	}
	return n.typ
}

// IsType reports whether n is non-nil and of type t.
func IsType(n *Node, t Type) bool {
	return n != nil && n.typ == t
}

// Parent returns the container holding n, or nil for a root.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// Detach removes n from its parent container, making it a root.
func (n *Node) Detach() {
	p := n.Parent()
	if p == nil {
		return
	}
	switch p.typ {
	case ArrayType:
		if i := p.indexOf(n); i >= 0 {
			p.removeAt(i)
		}
	case DictType:
		p.dict.remove(n.key)
		n.parent, n.key = nil, ""
	}
}

func (n *Node) BoolVal() (bool, error) {
	if !IsType(n, BooleanType) {
		return false, typeMismatch(n, BooleanType)
	}
	return n.b, nil
}

func (n *Node) SetBoolVal(v bool) error {
	if !IsType(n, BooleanType) {
		return typeMismatch(n, BooleanType)
	}
	n.b = v
	return nil
}

func (n *Node) UIntVal() (uint64, error) {
	if !IsType(n, UIntType) {
		return 0, typeMismatch(n, UIntType)
	}
	return n.u, nil
}

func (n *Node) SetUIntVal(v uint64) error {
	if !IsType(n, UIntType) {
		return typeMismatch(n, UIntType)
	}
	n.u, n.signed = v, false
	return nil
}

// IntVal returns the value of an integer node reinterpreted as an int64.
func (n *Node) IntVal() (int64, error) {
	if !IsType(n, UIntType) {
		return 0, typeMismatch(n, UIntType)
	}
	return int64(n.u), nil
}

func (n *Node) SetIntVal(v int64) error {
	if !IsType(n, UIntType) {
		return typeMismatch(n, UIntType)
	}
	n.u, n.signed = uint64(v), v < 0
	return nil
}

// IsSigned reports whether n is an integer node holding a negative value.
func (n *Node) IsSigned() bool {
	return IsType(n, UIntType) && n.signed
}

func (n *Node) RealVal() (float64, error) {
	if !IsType(n, RealType) {
		return 0, typeMismatch(n, RealType)
	}
	return n.f, nil
}

func (n *Node) SetRealVal(v float64) error {
	if !IsType(n, RealType) {
		return typeMismatch(n, RealType)
	}
	n.f = v
	return nil
}

func (n *Node) StringVal() (string, error) {
	if !IsType(n, StringType) {
		return "", typeMismatch(n, StringType)
	}
	return n.s, nil
}

func (n *Node) SetStringVal(v string) error {
	if !IsType(n, StringType) {
		return typeMismatch(n, StringType)
	}
	n.s = v
	return nil
}

func (n *Node) KeyVal() (string, error) {
	if !IsType(n, KeyType) {
		return "", typeMismatch(n, KeyType)
	}
	return n.s, nil
}

func (n *Node) SetKeyVal(v string) error {
	if !IsType(n, KeyType) {
		return typeMismatch(n, KeyType)
	}
	n.s = v
	return nil
}

// DataVal returns a copy of the bytes held by a Data node.
func (n *Node) DataVal() ([]byte, error) {
	if !IsType(n, DataType) {
		return nil, typeMismatch(n, DataType)
	}
	return cloneBytes(n.data), nil
}

func (n *Node) SetDataVal(v []byte) error {
	if !IsType(n, DataType) {
		return typeMismatch(n, DataType)
	}
	n.data = cloneBytes(v)
	return nil
}

// DateVal returns the seconds and microseconds since 2001-01-01T00:00:00Z.
func (n *Node) DateVal() (sec, usec int32, err error) {
	if !IsType(n, DateType) {
		return 0, 0, typeMismatch(n, DateType)
	}
	return n.sec, n.usec, nil
}

func (n *Node) SetDateVal(sec, usec int32) error {
	if !IsType(n, DateType) {
		return typeMismatch(n, DateType)
	}
	n.sec, n.usec = normalizeDate(int64(sec), int64(usec))
	return nil
}

// Time returns the instant held by a Date node, in UTC.
func (n *Node) Time() (time.Time, error) {
	if !IsType(n, DateType) {
		return time.Time{}, typeMismatch(n, DateType)
	}
	return dateToTime(n.sec, n.usec), nil
}

func (n *Node) UIDVal() (UID, error) {
	if !IsType(n, UIDType) {
		return 0, typeMismatch(n, UIDType)
	}
	return UID(n.u), nil
}

func (n *Node) SetUIDVal(v UID) error {
	if !IsType(n, UIDType) {
		return typeMismatch(n, UIDType)
	}
	n.u = uint64(v)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Dates count from the Core Foundation reference date.
var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

func normalizeDate(sec, usec int64) (int32, int32) {
	sec += usec / 1e6
	usec %= 1e6
	if usec < 0 {
		usec += 1e6
		sec--
	}
	return clampInt32(sec), int32(usec)
}

func clampInt32(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func dateFromTime(t time.Time) (int32, int32) {
	return normalizeDate(t.Unix()-appleEpoch.Unix(), int64(t.Nanosecond()/1000))
}

func dateToTime(sec, usec int32) time.Time {
	return time.Unix(appleEpoch.Unix()+int64(sec), int64(usec)*1000).UTC()
}

// dateSeconds is the binary encoding of a date: seconds since the epoch as a double.
func dateSeconds(sec, usec int32) float64 {
	return float64(sec) + float64(usec)/1e6
}

func dateFromSeconds(f float64) (int32, int32) {
	whole := math.Floor(f)
	usec := math.Round((f - whole) * 1e6)
	return normalizeDate(int64(whole), int64(usec))
}
