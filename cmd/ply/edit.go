package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/zdypro888/go-plist"
)

var valueParsers = map[string]func(string) (*plist.Node, error){
	"string": func(s string) (*plist.Node, error) {
		return plist.NewString(s), nil
	},
	"int": func(s string) (*plist.Node, error) {
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return plist.NewInt(i), nil
	},
	"uint": func(s string) (*plist.Node, error) {
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return plist.NewUInt(u), nil
	},
	"real": func(s string) (*plist.Node, error) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return plist.NewReal(f), nil
	},
	"bool": func(s string) (*plist.Node, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return plist.NewBool(b), nil
	},
	"date": func(s string) (*plist.Node, error) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return plist.NewDateFromTime(t), nil
	},
	"data": func(s string) (*plist.Node, error) {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return plist.NewData(b), nil
	},
	"uuid": func(s string) (*plist.Node, error) {
		if s == "new" {
			return plist.NewData(uuid.NewV4().Bytes()), nil
		}
		u, err := uuid.FromString(s)
		if err != nil {
			return nil, err
		}
		return plist.NewData(u.Bytes()), nil
	},
	"uid": func(s string) (*plist.Node, error) {
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return plist.NewUID(plist.UID(u)), nil
	},
	"dict": func(s string) (*plist.Node, error) {
		if s != "" {
			return nil, errors.New("only an empty dict can be set")
		}
		return plist.NewDict(), nil
	},
	"array": func(s string) (*plist.Node, error) {
		if s != "" {
			return nil, errors.New("only an empty array can be set")
		}
		return plist.NewArray(), nil
	},
}

// parseValue builds a node from "type:value". Text without a known type
// prefix is a string.
func parseValue(text string) (*plist.Node, error) {
	typ, val := "string", text
	if i := strings.IndexByte(text, ':'); i >= 0 {
		if _, ok := valueParsers[text[:i]]; ok {
			typ, val = text[:i], text[i+1:]
		}
	}
	n, err := valueParsers[typ](val)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", typ, val, err)
	}
	return n, nil
}

// parseAssignment splits "path=[type:]value".
func parseAssignment(s string) (string, *plist.Node, error) {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return "", nil, fmt.Errorf("set %q: expected path=value", s)
	}
	n, err := parseValue(s[i+1:])
	if err != nil {
		return "", nil, fmt.Errorf("set %q: %w", s, err)
	}
	return s[:i], n, nil
}

// setPath stores value at path and returns the possibly replaced root. The
// parent must exist. An array index equal to the array size appends.
func setPath(root *plist.Node, path string, value *plist.Node) (*plist.Node, error) {
	parentPath, last := plist.SplitPath(path)
	if last == "" {
		return value, nil
	}
	parent, err := plist.AccessPathString(root, parentPath)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}
	switch parent.Type() {
	case plist.DictType:
		err = parent.SetDictItem(last, value)
	case plist.ArrayType:
		var i, size int
		if i, err = strconv.Atoi(last); err != nil {
			return nil, fmt.Errorf("set %s: array index %q: %w", path, last, err)
		}
		if size, err = parent.ArraySize(); err == nil {
			if i == size {
				err = parent.AppendArrayItem(value)
			} else {
				err = parent.SetArrayItem(i, value)
			}
		}
	default:
		return nil, fmt.Errorf("set %s: parent is %v, not a container", path, parent.Type())
	}
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}
	return root, nil
}

func deletePath(root *plist.Node, path string) error {
	n, err := plist.AccessPathString(root, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if n == root {
		return fmt.Errorf("delete %s: cannot remove the root", path)
	}
	n.Detach()
	return nil
}
