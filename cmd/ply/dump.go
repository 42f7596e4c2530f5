package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	uuid "github.com/satori/go.uuid"
	"github.com/zdypro888/go-plist"
)

const (
	dumpIndent = "  "

	// longer data is abbreviated to its head and tail
	dumpDataLimit = 24
)

type dumper struct {
	w   io.Writer
	err error

	key, str, num, lit, data, punct func(a ...interface{}) string
}

func newDumper(w io.Writer, colorize bool) *dumper {
	style := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &dumper{
		w:     w,
		key:   style(color.FgBlue, color.Bold),
		str:   style(color.FgGreen),
		num:   style(color.FgCyan),
		lit:   style(color.FgMagenta),
		data:  style(color.FgYellow),
		punct: style(color.Faint),
	}
}

func (d *dumper) print(a ...interface{}) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprint(d.w, a...)
}

func (d *dumper) indent(depth int) {
	d.print(strings.Repeat(dumpIndent, depth))
}

func (d *dumper) dump(n *plist.Node) error {
	d.value(n, 0)
	d.print("\n")
	return d.err
}

func (d *dumper) value(n *plist.Node, depth int) {
	switch n.Type() {
	case plist.DictType:
		keys, _ := n.DictKeys()
		if len(keys) == 0 {
			d.print(d.punct("{}"))
			return
		}
		d.print(d.punct("{"), "\n")
		for _, k := range keys {
			v, _ := n.DictItem(k)
			d.indent(depth + 1)
			d.print(d.key(strconv.Quote(k)), d.punct(" => "))
			d.value(v, depth+1)
			d.print("\n")
		}
		d.indent(depth)
		d.print(d.punct("}"))
	case plist.ArrayType:
		size, _ := n.ArraySize()
		if size == 0 {
			d.print(d.punct("[]"))
			return
		}
		d.print(d.punct("["), "\n")
		for i := 0; i < size; i++ {
			item, _ := n.ArrayItem(i)
			d.indent(depth + 1)
			d.print(d.punct(strconv.Itoa(i)+" => "))
			d.value(item, depth+1)
			d.print("\n")
		}
		d.indent(depth)
		d.print(d.punct("]"))
	case plist.StringType:
		s, _ := n.StringVal()
		d.print(d.str(strconv.Quote(s)))
	case plist.KeyType:
		s, _ := n.KeyVal()
		d.print(d.key(strconv.Quote(s)))
	case plist.BooleanType:
		b, _ := n.BoolVal()
		d.print(d.lit(strconv.FormatBool(b)))
	case plist.UIntType:
		if n.IsSigned() {
			i, _ := n.IntVal()
			d.print(d.num(strconv.FormatInt(i, 10)))
			break
		}
		u, _ := n.UIntVal()
		d.print(d.num(strconv.FormatUint(u, 10)))
	case plist.RealType:
		f, _ := n.RealVal()
		d.print(d.num(strconv.FormatFloat(f, 'g', -1, 64)))
	case plist.DateType:
		t, _ := n.Time()
		d.print(d.lit(t.Format(time.RFC3339Nano)))
	case plist.DataType:
		b, _ := n.DataVal()
		d.print(d.data(formatData(b)))
	case plist.UIDType:
		u, _ := n.UIDVal()
		d.print(d.lit(fmt.Sprintf("<uid %d>", u)))
	default:
		d.print(d.lit("null"))
	}
}

// formatData describes a data blob by length and contents. Sixteen byte
// blobs are also shown as a UUID.
func formatData(b []byte) string {
	var bytesText string
	if len(b) <= dumpDataLimit {
		bytesText = "0x" + hex.EncodeToString(b)
	} else {
		bytesText = "0x" + hex.EncodeToString(b[:8]) + " ... " + hex.EncodeToString(b[len(b)-4:])
	}
	s := fmt.Sprintf("{length = %d, bytes = %s}", len(b), bytesText)
	if len(b) == uuid.Size {
		if u, err := uuid.FromBytes(b); err == nil {
			s += " uuid " + u.String()
		}
	}
	return s
}
