package plist

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
)

// EncodeXML returns the XML encoding of n.
func EncodeXML(n *Node) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := newXMLPlistGenerator(buf).generateDocument(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeXML parses an XML property list.
func DecodeXML(data []byte) (*Node, error) {
	return newXMLPlistParser(bytes.NewReader(data)).parseDocument()
}

// EncodeBinary returns the bplist00 encoding of n.
func EncodeBinary(n *Node) ([]byte, error) {
	return newBplistGenerator().generateDocument(n)
}

// DecodeBinary parses a bplist00 property list.
func DecodeBinary(data []byte) (*Node, error) {
	return newBplistParser(data).parseDocument()
}

// Encode returns the encoding of n in format.
func Encode(n *Node, format Format) ([]byte, error) {
	switch format {
	case XMLFormat:
		return EncodeXML(n)
	case BinaryFormat:
		return EncodeBinary(n)
	}
	return nil, fmt.Errorf("%w: format %v", ErrUnsupportedType, format)
}

// Decode detects the format of data and parses it.
func Decode(data []byte) (*Node, Format, error) {
	format := DetectFormat(data)
	var (
		n   *Node
		err error
	)
	switch format {
	case BinaryFormat:
		n, err = DecodeBinary(data)
	default:
		n, err = DecodeXML(data)
	}
	return n, format, err
}

// An Encoder writes property lists to an output stream.
type Encoder struct {
	writer io.Writer
	format Format
	indent string
}

// NewEncoder returns an Encoder that writes XML property lists to w.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderForFormat(w, XMLFormat)
}

// NewEncoderForFormat returns an Encoder that writes format to w.
func NewEncoderForFormat(w io.Writer, format Format) *Encoder {
	return &Encoder{writer: w, format: format, indent: "\t"}
}

// Indent sets the string repeated once per nesting level in XML output.
func (e *Encoder) Indent(indent string) {
	e.indent = indent
}

// Encode writes v. A *Node is written as is; any other value is converted
// with FromValue first.
func (e *Encoder) Encode(v interface{}) error {
	n, ok := v.(*Node)
	if !ok {
		var err error
		if n, err = FromValue(v); err != nil {
			return err
		}
	}
	switch e.format {
	case XMLFormat:
		g := newXMLPlistGenerator(e.writer)
		g.Indent(e.indent)
		return g.generateDocument(n)
	case BinaryFormat:
		data, err := EncodeBinary(n)
		if err != nil {
			return err
		}
		_, err = e.writer.Write(data)
		return err
	}
	return fmt.Errorf("%w: format %v", ErrUnsupportedType, e.format)
}

// A Decoder reads a property list from an input stream.
type Decoder struct {
	reader io.Reader

	// Format is the format of the last decoded property list.
	Format Format
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: r}
}

// Decode reads the whole stream and stores it in v. A **Node receives the
// tree itself; other pointers are filled with (*Node).Unmarshal.
func (d *Decoder) Decode(v interface{}) error {
	data, err := io.ReadAll(d.reader)
	if err != nil {
		return err
	}
	n, format, err := Decode(data)
	if err != nil {
		return err
	}
	d.Format = format
	if np, ok := v.(**Node); ok {
		if np == nil {
			return fmt.Errorf("%w: nil **Node", ErrUnsupportedType)
		}
		*np = n
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: Decode needs a non-nil pointer, got %T", ErrUnsupportedType, v)
	}
	return n.Unmarshal(v)
}
