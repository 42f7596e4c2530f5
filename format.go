package plist

import "bytes"

// Format is a property list encoding.
type Format int

const (
	// XMLFormat is the Apple plist XML 1.0 text encoding.
	XMLFormat Format = iota + 1
	// BinaryFormat is the bplist00 encoding.
	BinaryFormat
)

var FormatNames = map[Format]string{
	XMLFormat:    "XML",
	BinaryFormat: "Binary",
}

func (f Format) String() string {
	if name, ok := FormatNames[f]; ok {
		return name
	}
	return "Invalid"
}

// DetectFormat reports BinaryFormat when data starts with the bplist00
// header and XMLFormat otherwise. It only looks at the prefix; malformed
// input is left for the decoder to reject.
func DetectFormat(data []byte) Format {
	if IsBinary(data) {
		return BinaryFormat
	}
	return XMLFormat
}

// IsBinary reports whether data starts with the bplist00 header.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, []byte(bplistMagic+bplistVersion))
}
