package plist

const (
	bplistMagic   = "bplist"
	bplistVersion = "00"

	bplistHeaderSize  = 8
	bplistTrailerSize = 32

	// objects nested deeper than this are rejected when decoding
	maxNestingDepth = 1024
)

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

const (
	bpTagNull        uint8 = 0x00
	bpTagBoolFalse   uint8 = 0x08
	bpTagBoolTrue    uint8 = 0x09
	bpTagInteger     uint8 = 0x10
	bpTagReal        uint8 = 0x20
	bpTagDate        uint8 = 0x30
	bpTagData        uint8 = 0x40
	bpTagASCIIString uint8 = 0x50
	bpTagUTF16String uint8 = 0x60
	bpTagUTF8String  uint8 = 0x70
	bpTagUID         uint8 = 0x80
	bpTagArray       uint8 = 0xA0
	bpTagSet         uint8 = 0xC0
	bpTagDictionary  uint8 = 0xD0
)

// minimumSizeForInt returns the smallest of 1, 2, 4 or 8 bytes that holds n.
func minimumSizeForInt(n uint64) uint8 {
	switch {
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	}
	return 8
}
