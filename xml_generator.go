package plist

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
)

const (
	xmlHEADER     string = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	xmlDOCTYPE           = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"
	xmlArrayTag          = "array"
	xmlDataTag           = "data"
	xmlDateTag           = "date"
	xmlDictTag           = "dict"
	xmlFalseTag          = "false"
	xmlIntegerTag        = "integer"
	xmlKeyTag            = "key"
	xmlPlistTag          = "plist"
	xmlRealTag           = "real"
	xmlStringTag         = "string"
	xmlTrueTag           = "true"

	xmlDataLineWidth = 68
	xmlDateFormat    = "2006-01-02T15:04:05Z"
	xmlDateFormatUS  = "2006-01-02T15:04:05.000000Z"
)

func formatXMLFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatXMLDate writes whole seconds the way Apple tools do and keeps
// microseconds only when there are some.
func formatXMLDate(sec, usec int32) string {
	t := dateToTime(sec, usec)
	if usec == 0 {
		return t.Format(xmlDateFormat)
	}
	return t.Format(xmlDateFormatUS)
}

type xmlPlistGenerator struct {
	*bufio.Writer

	indent string
	depth  int
	err    error
}

func (p *xmlPlistGenerator) Indent(i string) {
	p.indent = i
}

func (p *xmlPlistGenerator) writeIndent() {
	for i := 0; i < p.depth; i++ {
		p.WriteString(p.indent)
	}
}

func (p *xmlPlistGenerator) generateDocument(root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil node", ErrUnsupportedType)
	}
	p.WriteString(xmlHEADER)
	p.WriteString(xmlDOCTYPE)

	p.WriteString(fmt.Sprintf("<%s version=\"1.0\">\n", xmlPlistTag))
	if root.typ != NoneType {
		p.writePlistValue(root)
	}
	p.WriteString(fmt.Sprintf("</%s>\n", xmlPlistTag))
	if p.err != nil {
		return p.err
	}
	return p.Flush()
}

func (p *xmlPlistGenerator) element(key string, value string) {
	p.writeIndent()
	if len(value) == 0 {
		p.WriteString(fmt.Sprintf("<%s/>\n", key))
		return
	}
	p.WriteString(fmt.Sprintf("<%s>", key))
	if err := xml.EscapeText(p.Writer, []byte(value)); err != nil && p.err == nil {
		p.err = err
	}
	p.WriteString(fmt.Sprintf("</%s>\n", key))
}

func (p *xmlPlistGenerator) writeDictionary(dict *orderedDict) {
	p.writeIndent()
	if dict.len() == 0 {
		p.WriteString(fmt.Sprintf("<%s/>\n", xmlDictTag))
		return
	}
	p.WriteString(fmt.Sprintf("<%s>\n", xmlDictTag))
	p.depth++
	keys, values := dict.items()
	for i, k := range keys {
		p.writeIndent()
		p.WriteString(fmt.Sprintf("<%s>", xmlKeyTag))
		if err := xml.EscapeText(p.Writer, []byte(k)); err != nil && p.err == nil {
			p.err = err
		}
		p.WriteString(fmt.Sprintf("</%s>\n", xmlKeyTag))
		p.writePlistValue(values[i])
	}
	p.depth--
	p.writeIndent()
	p.WriteString(fmt.Sprintf("</%s>\n", xmlDictTag))
}

func (p *xmlPlistGenerator) writeArray(values []*Node) {
	p.writeIndent()
	if len(values) == 0 {
		p.WriteString(fmt.Sprintf("<%s/>\n", xmlArrayTag))
		return
	}
	p.WriteString(fmt.Sprintf("<%s>\n", xmlArrayTag))
	p.depth++
	for _, v := range values {
		p.writePlistValue(v)
	}
	p.depth--
	p.writeIndent()
	p.WriteString(fmt.Sprintf("</%s>\n", xmlArrayTag))
}

func (p *xmlPlistGenerator) writeData(data []byte) {
	dataBase64 := base64.StdEncoding.EncodeToString(data)
	if len(dataBase64) <= xmlDataLineWidth {
		p.element(xmlDataTag, dataBase64)
		return
	}
	p.writeIndent()
	p.WriteString(fmt.Sprintf("<%s>\n", xmlDataTag))
	for i := 0; i < len(dataBase64); i += xmlDataLineWidth {
		p.writeIndent()
		end := i + xmlDataLineWidth
		if end > len(dataBase64) {
			end = len(dataBase64)
		}
		p.WriteString(dataBase64[i:end])
		p.WriteString("\n")
	}
	p.writeIndent()
	p.WriteString(fmt.Sprintf("</%s>\n", xmlDataTag))
}

func (p *xmlPlistGenerator) writePlistValue(n *Node) {
	switch n.typ {
	case StringType:
		p.element(xmlStringTag, n.s)
	case KeyType:
		p.element(xmlKeyTag, n.s)
	case UIntType:
		if n.signed {
			p.element(xmlIntegerTag, strconv.FormatInt(int64(n.u), 10))
		} else {
			p.element(xmlIntegerTag, strconv.FormatUint(n.u, 10))
		}
	case RealType:
		p.element(xmlRealTag, formatXMLFloat(n.f))
	case BooleanType:
		if n.b {
			p.element(xmlTrueTag, "")
		} else {
			p.element(xmlFalseTag, "")
		}
	case DataType:
		p.writeData(n.data)
	case DateType:
		p.element(xmlDateTag, formatXMLDate(n.sec, n.usec))
	case DictType:
		p.writeDictionary(n.dict)
	case ArrayType:
		p.writeArray(n.array)
	case UIDType:
		p.writeDictionary(uidDict(UID(n.u)).dict)
	default:
		if p.err == nil {
			p.err = fmt.Errorf("%w: %v cannot be written as XML", ErrUnsupportedType, n.typ)
		}
	}
}

// uidDict is the XML form of a Uid: a dictionary holding a single
// CF$UID integer.
func uidDict(u UID) *Node {
	d := NewDict()
	d.SetDictItem(xmlUIDKey, NewUInt(uint64(u)))
	return d
}

const xmlUIDKey = "CF$UID"

func newXMLPlistGenerator(w io.Writer) *xmlPlistGenerator {
	return &xmlPlistGenerator{Writer: bufio.NewWriter(w), indent: "\t"}
}
