package plist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// bplistObjectKey identifies scalar objects that are written once and shared
// by every reference.
type bplistObjectKey struct {
	typ    Type
	u      uint64
	signed bool
	s      string
}

type bplistGenerator struct {
	buf        *bytes.Buffer
	objtable   []*Node
	refs       [][]uint64
	objmap     map[bplistObjectKey]uint64
	objRefSize uint8
}

func newBplistGenerator() *bplistGenerator {
	return &bplistGenerator{
		buf:    &bytes.Buffer{},
		objmap: make(map[bplistObjectKey]uint64),
	}
}

func objectKey(n *Node) (bplistObjectKey, bool) {
	switch n.typ {
	case BooleanType:
		var u uint64
		if n.b {
			u = 1
		}
		return bplistObjectKey{typ: BooleanType, u: u}, true
	case UIntType, UIDType:
		return bplistObjectKey{typ: n.typ, u: n.u, signed: n.signed}, true
	case RealType:
		return bplistObjectKey{typ: RealType, u: math.Float64bits(n.f)}, true
	case StringType, KeyType:
		// keys and strings share the same wire representation
		return bplistObjectKey{typ: StringType, s: n.s}, true
	case DataType:
		return bplistObjectKey{typ: DataType, s: string(n.data)}, true
	case DateType:
		return bplistObjectKey{typ: DateType, u: uint64(uint32(n.sec))<<32 | uint64(uint32(n.usec))}, true
	case NoneType:
		return bplistObjectKey{typ: NoneType}, true
	}
	return bplistObjectKey{}, false
}

func (p *bplistGenerator) addObject(n *Node) uint64 {
	p.objtable = append(p.objtable, n)
	p.refs = append(p.refs, nil)
	return uint64(len(p.objtable) - 1)
}

func (p *bplistGenerator) flattenPlistValue(n *Node) uint64 {
	if key, ok := objectKey(n); ok {
		if idx, ok := p.objmap[key]; ok {
			return idx
		}
		idx := p.addObject(n)
		p.objmap[key] = idx
		return idx
	}

	idx := p.addObject(n)
	switch n.typ {
	case ArrayType:
		refs := make([]uint64, len(n.array))
		for i, item := range n.array {
			refs[i] = p.flattenPlistValue(item)
		}
		p.refs[idx] = refs
	case DictType:
		keys, values := n.dict.items()
		count := len(keys)
		refs := make([]uint64, 2*count)
		for i, k := range keys {
			refs[i] = p.flattenPlistValue(NewString(k))
		}
		for i, v := range values {
			refs[count+i] = p.flattenPlistValue(v)
		}
		p.refs[idx] = refs
	}
	return idx
}

func (p *bplistGenerator) generateDocument(root *Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil node", ErrUnsupportedType)
	}
	p.buf.WriteString(bplistMagic + bplistVersion)

	top := p.flattenPlistValue(root)
	numObjects := uint64(len(p.objtable))
	p.objRefSize = minimumSizeForInt(numObjects - 1)

	offtable := make([]uint64, numObjects)
	for i, n := range p.objtable {
		offtable[i] = uint64(p.buf.Len())
		if err := p.writePlistValue(n, p.refs[i]); err != nil {
			return nil, err
		}
	}

	offsetTableOffset := uint64(p.buf.Len())
	offsetIntSize := minimumSizeForInt(offtable[len(offtable)-1])
	for _, off := range offtable {
		p.writeSizedInt(off, offsetIntSize)
	}

	trailer := bplistTrailer{
		OffsetIntSize:     offsetIntSize,
		ObjectRefSize:     p.objRefSize,
		NumObjects:        numObjects,
		TopObject:         top,
		OffsetTableOffset: offsetTableOffset,
	}
	if err := binary.Write(p.buf, binary.BigEndian, &trailer); err != nil {
		return nil, err
	}
	return p.buf.Bytes(), nil
}

func (p *bplistGenerator) writeSizedInt(n uint64, nbytes uint8) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	p.buf.Write(b[8-nbytes:])
}

// writeIntTag writes a marker whose low nibble holds count, spilling counts of
// 15 or more into a following integer object.
func (p *bplistGenerator) writeIntTag(tag uint8, count uint64) {
	if count < 0xF {
		p.buf.WriteByte(tag | uint8(count))
		return
	}
	p.buf.WriteByte(tag | 0xF)
	p.writeIntObject(count)
}

func (p *bplistGenerator) writeIntObject(n uint64) {
	switch {
	case n <= 0xff:
		p.buf.WriteByte(bpTagInteger | 0x0)
		p.writeSizedInt(n, 1)
	case n <= 0xffff:
		p.buf.WriteByte(bpTagInteger | 0x1)
		p.writeSizedInt(n, 2)
	case n <= 0xffffffff:
		p.buf.WriteByte(bpTagInteger | 0x2)
		p.writeSizedInt(n, 4)
	case n <= math.MaxInt64:
		p.buf.WriteByte(bpTagInteger | 0x3)
		p.writeSizedInt(n, 8)
	default:
		// eight byte integers are signed; larger unsigned values need sixteen
		p.buf.WriteByte(bpTagInteger | 0x4)
		p.writeSizedInt(0, 8)
		p.writeSizedInt(n, 8)
	}
}

func (p *bplistGenerator) writeRealObject(f float64) {
	if float64(float32(f)) == f {
		p.buf.WriteByte(bpTagReal | 0x2)
		binary.Write(p.buf, binary.BigEndian, float32(f))
		return
	}
	p.buf.WriteByte(bpTagReal | 0x3)
	binary.Write(p.buf, binary.BigEndian, f)
}

func (p *bplistGenerator) writeStringObject(s string) error {
	if isASCII(s) {
		p.writeIntTag(bpTagASCIIString, uint64(len(s)))
		p.buf.WriteString(s)
		return nil
	}
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("plist: encoding string as UTF-16: %w", err)
	}
	p.writeIntTag(bpTagUTF16String, uint64(len(encoded)/2))
	p.buf.Write(encoded)
	return nil
}

func (p *bplistGenerator) writeRefs(refs []uint64) {
	for _, r := range refs {
		p.writeSizedInt(r, p.objRefSize)
	}
}

func (p *bplistGenerator) writePlistValue(n *Node, refs []uint64) error {
	switch n.typ {
	case NoneType:
		p.buf.WriteByte(bpTagNull)
	case BooleanType:
		if n.b {
			p.buf.WriteByte(bpTagBoolTrue)
		} else {
			p.buf.WriteByte(bpTagBoolFalse)
		}
	case UIntType:
		if n.signed {
			p.buf.WriteByte(bpTagInteger | 0x3)
			p.writeSizedInt(n.u, 8)
		} else {
			p.writeIntObject(n.u)
		}
	case RealType:
		p.writeRealObject(n.f)
	case DateType:
		p.buf.WriteByte(bpTagDate | 0x3)
		binary.Write(p.buf, binary.BigEndian, dateSeconds(n.sec, n.usec))
	case DataType:
		p.writeIntTag(bpTagData, uint64(len(n.data)))
		p.buf.Write(n.data)
	case StringType, KeyType:
		return p.writeStringObject(n.s)
	case UIDType:
		nbytes := minimumSizeForInt(n.u)
		p.buf.WriteByte(bpTagUID | (nbytes - 1))
		p.writeSizedInt(n.u, nbytes)
	case ArrayType:
		p.writeIntTag(bpTagArray, uint64(len(refs)))
		p.writeRefs(refs)
	case DictType:
		p.writeIntTag(bpTagDictionary, uint64(len(refs)/2))
		p.writeRefs(refs)
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedType, n.typ)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
