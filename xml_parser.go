package plist

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type xmlPlistParser struct {
	reader             io.Reader
	xmlDecoder         *xml.Decoder
	whitespaceReplacer *strings.Replacer
	ntags              int
	depth              int
	idrefs             map[string]*Node
}

func (p *xmlPlistParser) parseDocument() (pval *Node, parseError error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			err, ok := r.(error)
			if !ok {
				panic(r)
			}
			var perr *ParseError
			if errors.As(err, &perr) {
				parseError = perr
				return
			}
			parseError = &ParseError{Format: "XML", Offset: p.xmlDecoder.InputOffset(), Err: err}
		}
	}()
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			panic(errors.New("no elements encountered"))
		}
		if err != nil {
			panic(err)
		}
		switch token := token.(type) {
		case xml.StartElement:
			if token.Name.Local == xmlPlistTag {
				p.ntags++
				pval = p.parsePlistElement()
			} else {
				pval = p.parseXMLElement(token, true)
			}
			p.expectEnd()
			return pval, nil
		case xml.CharData:
			p.expectWhitespace(token)
		}
	}
}

// expectEnd reads the rest of the document. Only whitespace, comments and
// processing instructions may follow the root element.
func (p *xmlPlistParser) expectEnd() {
	for {
		token, err := p.xmlDecoder.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			panic(err)
		}
		switch token := token.(type) {
		case xml.CharData:
			p.expectWhitespace(token)
		case xml.Comment, xml.ProcInst:
		case xml.StartElement:
			panic(fmt.Errorf("unexpected element %s after root element", token.Name.Local))
		default:
			panic(fmt.Errorf("unexpected %T after root element", token))
		}
	}
}

// parsePlistElement reads the single root value inside <plist>. An empty
// <plist/> decodes to a None node.
func (p *xmlPlistParser) parsePlistElement() *Node {
	var root *Node
	for {
		token, err := p.xmlDecoder.Token()
		if err != nil {
			panic(err)
		}
		switch token := token.(type) {
		case xml.StartElement:
			if root != nil {
				panic(fmt.Errorf("unexpected element %s after root value", token.Name.Local))
			}
			root = p.parseXMLElement(token, true)
		case xml.EndElement:
			if root == nil {
				return NewNone()
			}
			return root
		case xml.CharData:
			p.expectWhitespace(token)
		}
	}
}

func (p *xmlPlistParser) expectWhitespace(data xml.CharData) {
	if len(strings.TrimSpace(string(data))) != 0 {
		panic(fmt.Errorf("unexpected text %q", strings.TrimSpace(string(data))))
	}
}

func (p *xmlPlistParser) storeOrFindXMLElementValue(element xml.StartElement, value *Node) *Node {
	for _, attr := range element.Attr {
		switch attr.Name.Local {
		case "ID":
			p.idrefs[attr.Value] = value
		case "IDREF":
			ref, ok := p.idrefs[attr.Value]
			if !ok {
				panic(fmt.Errorf("unknown IDREF %q", attr.Value))
			}
			return ref.Copy()
		}
	}
	return value
}

func (p *xmlPlistParser) text(element xml.StartElement) string {
	var s string
	if err := p.xmlDecoder.DecodeElement(&s, &element); err != nil {
		panic(err)
	}
	return s
}

func (p *xmlPlistParser) parseXMLElement(element xml.StartElement, root bool) *Node {
	p.ntags++
	if p.depth >= maxNestingDepth {
		panic(fmt.Errorf("nesting deeper than %d", maxNestingDepth))
	}
	p.depth++
	defer func() { p.depth-- }()

	switch element.Name.Local {
	case xmlStringTag:
		return p.storeOrFindXMLElementValue(element, NewString(p.text(element)))
	case xmlKeyTag:
		if !root {
			panic(errors.New("key outside of dictionary"))
		}
		return NewKey(p.text(element))
	case xmlIntegerTag:
		return p.storeOrFindXMLElementValue(element, parseXMLInteger(strings.TrimSpace(p.text(element))))
	case xmlRealTag:
		s := strings.TrimSpace(p.text(element))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			panic(fmt.Errorf("invalid real %q", s))
		}
		return p.storeOrFindXMLElementValue(element, NewReal(f))
	case xmlTrueTag, xmlFalseTag:
		if err := p.xmlDecoder.Skip(); err != nil {
			panic(err)
		}
		return p.storeOrFindXMLElementValue(element, NewBool(element.Name.Local == xmlTrueTag))
	case xmlDateTag:
		s := strings.TrimSpace(p.text(element))
		t, err := time.ParseInLocation(time.RFC3339, s, time.UTC)
		if err != nil {
			panic(fmt.Errorf("invalid date %q", s))
		}
		if secs := t.Unix() - appleEpoch.Unix(); secs < math.MinInt32 || secs > math.MaxInt32 {
			panic(fmt.Errorf("date %q out of range", s))
		}
		return p.storeOrFindXMLElementValue(element, NewDateFromTime(t))
	case xmlDataTag:
		str := p.whitespaceReplacer.Replace(p.text(element))
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			panic(fmt.Errorf("invalid base64 data: %w", err))
		}
		return p.storeOrFindXMLElementValue(element, NewData(b))
	case xmlDictTag:
		return p.storeOrFindXMLElementValue(element, p.parseDictionary())
	case xmlArrayTag:
		return p.storeOrFindXMLElementValue(element, p.parseArray())
	}
	panic(fmt.Errorf("encountered unknown element %s", element.Name.Local))
}

// parseDictionary reads key/value pairs up to </dict>. A repeated key
// replaces the earlier value and keeps its position.
func (p *xmlPlistParser) parseDictionary() *Node {
	dict := NewDict()
	var key *string
	for {
		token, err := p.xmlDecoder.Token()
		if err != nil {
			panic(err)
		}
		switch el := token.(type) {
		case xml.EndElement:
			if key != nil {
				panic(errors.New("missing value in dictionary"))
			}
			return maybeUID(dict)
		case xml.CharData:
			p.expectWhitespace(el)
		case xml.StartElement:
			if el.Name.Local == xmlKeyTag {
				if key != nil {
					panic(errors.New("missing value in dictionary"))
				}
				k := p.text(el)
				key = &k
				continue
			}
			if key == nil {
				panic(errors.New("missing key in dictionary"))
			}
			value := p.parseXMLElement(el, false)
			if old := dict.dict.set(*key, value); old != nil {
				old.parent, old.key = nil, ""
			}
			value.parent, value.key = dict, *key
			key = nil
		}
	}
}

func (p *xmlPlistParser) parseArray() *Node {
	arr := NewArray()
	for {
		token, err := p.xmlDecoder.Token()
		if err != nil {
			panic(err)
		}
		switch el := token.(type) {
		case xml.EndElement:
			return arr
		case xml.CharData:
			p.expectWhitespace(el)
		case xml.StartElement:
			item := p.parseXMLElement(el, false)
			item.parent = arr
			arr.array = append(arr.array, item)
		}
	}
}

// maybeUID turns the XML form of a Uid, a dictionary whose only item is an
// integer under CF$UID, back into a Uid node.
func maybeUID(dict *Node) *Node {
	if dict.dict.len() != 1 {
		return dict
	}
	v, ok := dict.dict.get(xmlUIDKey)
	if !ok || v.typ != UIntType || v.signed {
		return dict
	}
	return NewUID(UID(v.u))
}

// parseXMLInteger accepts decimal and 0x-prefixed hexadecimal integers.
// Negative values become signed integer nodes.
func parseXMLInteger(s string) *Node {
	if s == "" {
		panic(errors.New("empty integer"))
	}
	neg := false
	digits := s
	switch s[0] {
	case '-':
		neg, digits = true, s[1:]
	case '+':
		digits = s[1:]
	}
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base, digits = 16, digits[2:]
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		panic(fmt.Errorf("invalid integer %q", s))
	}
	if neg {
		if n > 1<<63 {
			panic(fmt.Errorf("integer %q out of range", s))
		}
		return NewInt(-int64(n))
	}
	return NewUInt(n)
}

func newXMLPlistParser(r io.Reader) *xmlPlistParser {
	return &xmlPlistParser{
		reader:             r,
		xmlDecoder:         xml.NewDecoder(r),
		whitespaceReplacer: strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", ""),
		ntags:              0,
		idrefs:             make(map[string]*Node),
	}
}
