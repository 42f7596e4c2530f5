package plist

import (
	"fmt"
	"strconv"
	"strings"
)

// AccessPath walks from root through path and returns the node it ends at.
// Integer segments index arrays; string segments look up dictionary keys.
// The first segment that cannot be resolved fails with a *PathError matching
// ErrPathNotFound and the specific cause (ErrIndexOutOfRange, ErrKeyNotFound
// or ErrTypeMismatch).
func AccessPath(root *Node, path ...interface{}) (*Node, error) {
	if root == nil {
		return nil, &PathError{Segment: -1, Err: fmt.Errorf("%w: nil root", ErrTypeMismatch)}
	}
	cur := root
	for i, seg := range path {
		var (
			next *Node
			err  error
		)
		switch seg := seg.(type) {
		case string:
			next, err = cur.DictItem(seg)
		default:
			idx, ok := segmentIndex(seg)
			if !ok {
				err = fmt.Errorf("%w: segment of type %T", ErrTypeMismatch, seg)
				break
			}
			next, err = cur.ArrayItem(idx)
		}
		if err != nil {
			return nil, &PathError{Segment: i, Value: seg, Err: err}
		}
		cur = next
	}
	return cur, nil
}

func segmentIndex(seg interface{}) (int, bool) {
	switch v := seg.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), v <= uint(maxInt)
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), uint64(v) <= uint64(maxInt)
	case uint64:
		return int(v), v <= uint64(maxInt)
	}
	return 0, false
}

const maxInt = int(^uint(0) >> 1)

// AccessPathString resolves a slash separated path such as "a/2/b". A segment
// indexes an array when the current node is an array and the segment is a
// decimal number; otherwise it is a dictionary key. An empty path returns root.
func AccessPathString(root *Node, path string) (*Node, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return root, nil
	}
	cur := root
	for i, part := range strings.Split(path, "/") {
		var seg interface{} = part
		if IsType(cur, ArrayType) {
			if idx, err := strconv.Atoi(part); err == nil {
				seg = idx
			}
		}
		next, err := AccessPath(cur, seg)
		if err != nil {
			if pe, ok := err.(*PathError); ok {
				pe.Segment = i
			}
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// SplitPath returns the parent path and the final segment of a slash
// separated path.
func SplitPath(path string) (parent, last string) {
	path = strings.Trim(path, "/")
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
