package plist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

type bplistParser struct {
	buf     []byte
	trailer bplistTrailer

	objEnd     uint64 // objects live in [bplistHeaderSize, objEnd)
	inProgress []bool
	depth      int
	budget     int
}

func newBplistParser(buf []byte) *bplistParser {
	return &bplistParser{buf: buf}
}

func (p *bplistParser) errorf(off uint64, format string, args ...interface{}) error {
	return &ParseError{Format: "binary", Offset: int64(off), Err: fmt.Errorf(format, args...)}
}

func (p *bplistParser) wrap(off uint64, err error) error {
	return &ParseError{Format: "binary", Offset: int64(off), Err: err}
}

func (p *bplistParser) parseDocument() (*Node, error) {
	size := uint64(len(p.buf))
	if size < bplistHeaderSize {
		return nil, p.wrap(0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrTruncatedInput, size))
	}
	if !bytes.HasPrefix(p.buf, []byte(bplistMagic)) {
		return nil, p.errorf(0, "missing %q magic", bplistMagic)
	}
	if v := string(p.buf[6:8]); v != bplistVersion {
		return nil, p.wrap(6, fmt.Errorf("%w: %q", ErrUnsupportedVersion, v))
	}
	if size < bplistHeaderSize+bplistTrailerSize {
		return nil, p.wrap(size, fmt.Errorf("%w: no room for trailer", ErrTruncatedInput))
	}

	trailerStart := size - bplistTrailerSize
	if err := binary.Read(bytes.NewReader(p.buf[trailerStart:]), binary.BigEndian, &p.trailer); err != nil {
		return nil, p.wrap(trailerStart, err)
	}
	t := &p.trailer
	if t.OffsetIntSize < 1 || t.OffsetIntSize > 8 {
		return nil, p.errorf(trailerStart, "invalid offset size %d", t.OffsetIntSize)
	}
	if t.ObjectRefSize < 1 || t.ObjectRefSize > 8 {
		return nil, p.errorf(trailerStart, "invalid object reference size %d", t.ObjectRefSize)
	}
	if t.NumObjects == 0 {
		return nil, p.errorf(trailerStart, "no objects")
	}
	if t.TopObject >= t.NumObjects {
		return nil, p.errorf(trailerStart, "top object %d out of range (%d objects)", t.TopObject, t.NumObjects)
	}
	if t.OffsetTableOffset > trailerStart {
		return nil, p.wrap(trailerStart, fmt.Errorf("%w: offset table at %d beyond end of data", ErrTruncatedInput, t.OffsetTableOffset))
	}
	if t.OffsetTableOffset < bplistHeaderSize {
		return nil, p.errorf(trailerStart, "offset table at %d overlaps header", t.OffsetTableOffset)
	}
	if t.NumObjects > (trailerStart-t.OffsetTableOffset)/uint64(t.OffsetIntSize) {
		return nil, p.wrap(t.OffsetTableOffset, fmt.Errorf("%w: offset table for %d objects does not fit", ErrTruncatedInput, t.NumObjects))
	}

	p.objEnd = t.OffsetTableOffset
	p.inProgress = make([]bool, t.NumObjects)
	p.budget = 4*len(p.buf) + 16
	return p.parseObjectRef(t.TopObject)
}

func (p *bplistParser) readSizedInt(off uint64, nbytes uint8) (uint64, error) {
	if off > p.objEnd || uint64(nbytes) > p.objEnd-off {
		return 0, p.wrap(off, fmt.Errorf("%w: %d byte field", ErrTruncatedInput, nbytes))
	}
	var n uint64
	for _, b := range p.buf[off : off+uint64(nbytes)] {
		n = n<<8 | uint64(b)
	}
	return n, nil
}

func (p *bplistParser) objectOffset(ref uint64) (uint64, error) {
	entry := p.trailer.OffsetTableOffset + ref*uint64(p.trailer.OffsetIntSize)
	var off uint64
	for _, b := range p.buf[entry : entry+uint64(p.trailer.OffsetIntSize)] {
		off = off<<8 | uint64(b)
	}
	if off < bplistHeaderSize || off >= p.objEnd {
		return 0, p.errorf(entry, "object %d at offset %d outside object table", ref, off)
	}
	return off, nil
}

// readCount decodes the length held in a marker's low nibble, following an
// integer object when the nibble is 0xF. It returns the count and the offset
// of the payload.
func (p *bplistParser) readCount(off uint64, marker uint8) (uint64, uint64, error) {
	if marker&0x0F != 0x0F {
		return uint64(marker & 0x0F), off + 1, nil
	}
	intOff := off + 1
	if intOff >= p.objEnd {
		return 0, 0, p.wrap(intOff, fmt.Errorf("%w: missing length", ErrTruncatedInput))
	}
	intMarker := p.buf[intOff]
	if intMarker&0xF0 != bpTagInteger || intMarker&0x0F > 3 {
		return 0, 0, p.errorf(intOff, "invalid length marker 0x%02x", intMarker)
	}
	nbytes := uint8(1) << (intMarker & 0x0F)
	count, err := p.readSizedInt(intOff+1, nbytes)
	if err != nil {
		return 0, 0, err
	}
	return count, intOff + 1 + uint64(nbytes), nil
}

// payload returns count*unit bytes at off.
func (p *bplistParser) payload(off, count, unit uint64) ([]byte, error) {
	if off > p.objEnd || count > (p.objEnd-off)/unit {
		return nil, p.wrap(off, fmt.Errorf("%w: %d items of %d bytes", ErrTruncatedInput, count, unit))
	}
	return p.buf[off : off+count*unit], nil
}

func (p *bplistParser) parseObjectRef(ref uint64) (*Node, error) {
	if ref >= p.trailer.NumObjects {
		return nil, p.errorf(p.trailer.OffsetTableOffset, "object reference %d out of range (%d objects)", ref, p.trailer.NumObjects)
	}
	if p.inProgress[ref] {
		return nil, p.wrap(p.trailer.OffsetTableOffset, fmt.Errorf("%w: object %d", ErrCyclicReference, ref))
	}
	off, err := p.objectOffset(ref)
	if err != nil {
		return nil, err
	}
	if p.depth >= maxNestingDepth {
		return nil, p.errorf(off, "nesting deeper than %d", maxNestingDepth)
	}
	p.budget--
	if p.budget < 0 {
		return nil, p.errorf(off, "object graph expands beyond input size")
	}

	p.inProgress[ref] = true
	p.depth++
	n, err := p.parseObject(off)
	p.depth--
	p.inProgress[ref] = false
	return n, err
}

func (p *bplistParser) parseObject(off uint64) (*Node, error) {
	marker := p.buf[off]
	switch marker & 0xF0 {
	case 0x00:
		switch marker {
		case bpTagNull:
			return NewNone(), nil
		case bpTagBoolFalse:
			return NewBool(false), nil
		case bpTagBoolTrue:
			return NewBool(true), nil
		}
		return nil, p.errorf(off, "unexpected marker 0x%02x", marker)
	case bpTagInteger:
		return p.parseInteger(off, marker)
	case bpTagReal:
		return p.parseReal(off, marker)
	case bpTagDate:
		if marker != bpTagDate|0x3 {
			return nil, p.errorf(off, "invalid date marker 0x%02x", marker)
		}
		bits, err := p.readSizedInt(off+1, 8)
		if err != nil {
			return nil, err
		}
		f := math.Float64frombits(bits)
		if math.IsNaN(f) || f < math.MinInt32 || f >= math.MaxInt32+1 {
			return nil, p.errorf(off, "date %v out of range", f)
		}
		n := &Node{typ: DateType}
		n.sec, n.usec = dateFromSeconds(f)
		return n, nil
	case bpTagData:
		count, start, err := p.readCount(off, marker)
		if err != nil {
			return nil, err
		}
		b, err := p.payload(start, count, 1)
		if err != nil {
			return nil, err
		}
		return NewData(b), nil
	case bpTagASCIIString, bpTagUTF16String, bpTagUTF8String:
		s, err := p.parseString(off, marker)
		if err != nil {
			return nil, err
		}
		return NewString(s), nil
	case bpTagUID:
		nbytes := marker&0x0F + 1
		if nbytes > 8 {
			return nil, p.errorf(off, "uid of %d bytes", nbytes)
		}
		v, err := p.readSizedInt(off+1, nbytes)
		if err != nil {
			return nil, err
		}
		return NewUID(UID(v)), nil
	case bpTagArray:
		return p.parseArray(off, marker)
	case bpTagDictionary:
		return p.parseDictionary(off, marker)
	case bpTagSet:
		return nil, p.errorf(off, "sets are not supported")
	}
	return nil, p.errorf(off, "unexpected marker 0x%02x", marker)
}

func (p *bplistParser) parseInteger(off uint64, marker uint8) (*Node, error) {
	switch exp := marker & 0x0F; {
	case exp <= 3:
		v, err := p.readSizedInt(off+1, 1<<exp)
		if err != nil {
			return nil, err
		}
		if exp == 3 {
			// eight byte integers are signed
			return NewInt(int64(v)), nil
		}
		return NewUInt(v), nil
	case exp == 4:
		// sixteen byte integers carry values above the signed 64 bit range
		hi, err := p.readSizedInt(off+1, 8)
		if err != nil {
			return nil, err
		}
		v, err := p.readSizedInt(off+9, 8)
		if err != nil {
			return nil, err
		}
		if hi != 0 {
			return nil, p.errorf(off, "integer does not fit in 64 bits")
		}
		return NewUInt(v), nil
	}
	return nil, p.errorf(off, "invalid integer marker 0x%02x", marker)
}

func (p *bplistParser) parseReal(off uint64, marker uint8) (*Node, error) {
	switch marker & 0x0F {
	case 0x2:
		bits, err := p.readSizedInt(off+1, 4)
		if err != nil {
			return nil, err
		}
		return NewReal(float64(math.Float32frombits(uint32(bits)))), nil
	case 0x3:
		bits, err := p.readSizedInt(off+1, 8)
		if err != nil {
			return nil, err
		}
		return NewReal(math.Float64frombits(bits)), nil
	}
	return nil, p.errorf(off, "invalid real marker 0x%02x", marker)
}

func (p *bplistParser) parseString(off uint64, marker uint8) (string, error) {
	count, start, err := p.readCount(off, marker)
	if err != nil {
		return "", err
	}
	switch marker & 0xF0 {
	case bpTagUTF16String:
		b, err := p.payload(start, count, 2)
		if err != nil {
			return "", err
		}
		s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", p.wrap(start, err)
		}
		return string(s), nil
	case bpTagASCIIString, bpTagUTF8String:
		b, err := p.payload(start, count, 1)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", p.errorf(off, "expected string, found marker 0x%02x", marker)
}

func (p *bplistParser) readRefs(off, count uint64) ([]uint64, error) {
	size := uint64(p.trailer.ObjectRefSize)
	if _, err := p.payload(off, count, size); err != nil {
		return nil, err
	}
	refs := make([]uint64, count)
	for i := range refs {
		r, err := p.readSizedInt(off+uint64(i)*size, p.trailer.ObjectRefSize)
		if err != nil {
			return nil, err
		}
		refs[i] = r
	}
	return refs, nil
}

func (p *bplistParser) parseArray(off uint64, marker uint8) (*Node, error) {
	count, start, err := p.readCount(off, marker)
	if err != nil {
		return nil, err
	}
	refs, err := p.readRefs(start, count)
	if err != nil {
		return nil, err
	}
	arr := NewArray()
	arr.array = make([]*Node, 0, len(refs))
	for _, r := range refs {
		item, err := p.parseObjectRef(r)
		if err != nil {
			return nil, err
		}
		item.parent = arr
		arr.array = append(arr.array, item)
	}
	return arr, nil
}

func (p *bplistParser) parseKey(ref uint64) (string, error) {
	if ref >= p.trailer.NumObjects {
		return "", p.errorf(p.trailer.OffsetTableOffset, "key reference %d out of range (%d objects)", ref, p.trailer.NumObjects)
	}
	off, err := p.objectOffset(ref)
	if err != nil {
		return "", err
	}
	return p.parseString(off, p.buf[off])
}

func (p *bplistParser) parseDictionary(off uint64, marker uint8) (*Node, error) {
	count, start, err := p.readCount(off, marker)
	if err != nil {
		return nil, err
	}
	if count > math.MaxUint64/2 {
		return nil, p.errorf(off, "dictionary of %d entries", count)
	}
	refs, err := p.readRefs(start, 2*count)
	if err != nil {
		return nil, err
	}
	dict := NewDict()
	for i := uint64(0); i < count; i++ {
		key, err := p.parseKey(refs[i])
		if err != nil {
			return nil, err
		}
		value, err := p.parseObjectRef(refs[count+i])
		if err != nil {
			return nil, err
		}
		if old := dict.dict.set(key, value); old != nil {
			old.parent, old.key = nil, ""
		}
		value.parent, value.key = dict, key
	}
	return dict, nil
}
