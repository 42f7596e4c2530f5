package plist

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintAt(t *testing.T, arr *Node, i int) uint64 {
	t.Helper()
	item, err := arr.ArrayItem(i)
	require.NoError(t, err)
	u, err := item.UIntVal()
	require.NoError(t, err)
	return u
}

func TestArrayOperations(t *testing.T) {
	arr := NewArray()
	for i := 0; i < 3; i++ {
		require.NoError(t, arr.AppendArrayItem(NewUInt(uint64(i))))
	}
	size, err := arr.ArraySize()
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	require.NoError(t, arr.InsertArrayItem(1, NewUInt(10)))
	require.NoError(t, arr.InsertArrayItem(4, NewUInt(20)))
	assert.Equal(t, uint64(0), uintAt(t, arr, 0))
	assert.Equal(t, uint64(10), uintAt(t, arr, 1))
	assert.Equal(t, uint64(1), uintAt(t, arr, 2))
	assert.Equal(t, uint64(20), uintAt(t, arr, 4))

	old, _ := arr.ArrayItem(2)
	require.NoError(t, arr.SetArrayItem(2, NewUInt(30)))
	assert.Nil(t, old.Parent())
	assert.Equal(t, uint64(30), uintAt(t, arr, 2))

	removed, _ := arr.ArrayItem(0)
	require.NoError(t, arr.RemoveArrayItem(0))
	assert.Nil(t, removed.Parent())
	size, _ = arr.ArraySize()
	assert.Equal(t, 4, size)

	item, _ := arr.ArrayItem(3)
	assert.Same(t, arr, item.Parent())
	idx, err := item.ArrayItemIndex()
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
}

func TestArrayIndexOutOfRange(t *testing.T) {
	arr := NewArray()
	require.NoError(t, arr.AppendArrayItem(NewBool(true)))

	_, err := arr.ArrayItem(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = arr.ArrayItem(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, arr.SetArrayItem(5, NewBool(false)), ErrIndexOutOfRange)
	assert.ErrorIs(t, arr.InsertArrayItem(2, NewBool(false)), ErrIndexOutOfRange)
	assert.ErrorIs(t, arr.RemoveArrayItem(1), ErrIndexOutOfRange)

	_, err = NewDict().ArrayItem(0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = NewBool(true).ArrayItemIndex()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOwnership(t *testing.T) {
	a, b := NewArray(), NewArray()
	item := NewString("x")
	require.NoError(t, a.AppendArrayItem(item))

	assert.ErrorIs(t, b.AppendArrayItem(item), ErrInvalidChild)
	assert.ErrorIs(t, a.AppendArrayItem(a), ErrInvalidChild)
	assert.ErrorIs(t, a.AppendArrayItem(NewKey("k")), ErrInvalidChild)
	assert.ErrorIs(t, a.AppendArrayItem(nil), ErrInvalidChild)

	inner := NewDict()
	require.NoError(t, a.AppendArrayItem(inner))
	assert.ErrorIs(t, inner.SetDictItem("loop", a), ErrInvalidChild)

	// setting the same node again is a no-op
	require.NoError(t, a.SetArrayItem(0, item))
	require.NoError(t, inner.SetDictItem("k", NewUInt(1)))
	v, _ := inner.DictItem("k")
	require.NoError(t, inner.SetDictItem("k", v))
}

func TestDictOperations(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.SetDictItem("name", NewString("plist")))
	require.NoError(t, d.SetDictItem("count", NewUInt(2)))

	size, err := d.DictSize()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	v, err := d.DictItem("count")
	require.NoError(t, err)
	key, err := v.DictItemKey()
	require.NoError(t, err)
	assert.Equal(t, "count", key)

	old := v
	require.NoError(t, d.SetDictItem("count", NewUInt(3)))
	assert.Nil(t, old.Parent())
	_, err = old.DictItemKey()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, d.RemoveDictItem("name"))
	_, err = d.DictItem("name")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, d.RemoveDictItem("name"), ErrKeyNotFound)

	_, err = NewArray().DictItem("x")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func dictKeys(t *testing.T, d *Node) []string {
	t.Helper()
	it, err := d.DictIter()
	require.NoError(t, err)
	var keys []string
	for {
		k, v, ok := it.Next()
		if !ok {
			break
		}
		assert.Same(t, d, v.Parent())
		keys = append(keys, k)
	}
	return keys
}

func TestDictIterationOrder(t *testing.T) {
	d := NewDict()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, d.SetDictItem(k, NewString(k)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, dictKeys(t, d))

	// replacing a value keeps its position
	require.NoError(t, d.SetDictItem("b", NewUInt(2)))
	assert.Equal(t, []string{"a", "b", "c"}, dictKeys(t, d))

	// a removed key is skipped until it is added again in its old place
	require.NoError(t, d.RemoveDictItem("b"))
	assert.Equal(t, []string{"a", "c"}, dictKeys(t, d))
	size, err := d.DictSize()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	require.NoError(t, d.SetDictItem("b", NewString("b")))
	assert.Equal(t, []string{"a", "b", "c"}, dictKeys(t, d))

	keys, err := d.DictKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	size, _ = d.DictSize()
	assert.Equal(t, 3, size)

	// detaching a value frees its key the same way
	c, _ := d.DictItem("c")
	c.Detach()
	require.NoError(t, d.SetDictItem("d", NewString("d")))
	require.NoError(t, d.SetDictItem("c", NewString("c")))
	assert.Equal(t, []string{"a", "b", "c", "d"}, dictKeys(t, d))

	for _, k := range keys {
		v, err := d.DictItem(k)
		require.NoError(t, err)
		got, _ := v.DictItemKey()
		assert.Equal(t, k, got)
	}
}

func TestMergeDict(t *testing.T) {
	dst := NewDict()
	require.NoError(t, dst.SetDictItem("a", NewUInt(1)))
	require.NoError(t, dst.SetDictItem("b", NewUInt(2)))

	src := NewDict()
	require.NoError(t, src.SetDictItem("b", NewUInt(20)))
	require.NoError(t, src.SetDictItem("c", NewUInt(30)))

	require.NoError(t, dst.MergeDict(src))
	assert.Equal(t, []string{"a", "b", "c"}, dictKeys(t, dst))
	b, _ := dst.DictItem("b")
	u, _ := b.UIntVal()
	assert.Equal(t, uint64(20), u)

	// src is untouched and shares nothing with dst
	c, _ := src.DictItem("c")
	assert.Same(t, src, c.Parent())
	dc, _ := dst.DictItem("c")
	assert.NotSame(t, c, dc)

	assert.ErrorIs(t, dst.MergeDict(NewArray()), ErrTypeMismatch)

	// merging a dictionary into itself keeps its contents
	require.NoError(t, dst.MergeDict(dst))
	assert.Equal(t, []string{"a", "b", "c"}, dictKeys(t, dst))
}

func sampleTree(t *testing.T) *Node {
	t.Helper()
	root := NewDict()
	arr := NewArray()
	require.NoError(t, arr.AppendArrayItem(NewUInt(1)))
	require.NoError(t, arr.AppendArrayItem(NewUInt(2)))
	inner := NewDict()
	require.NoError(t, inner.SetDictItem("b", NewUInt(3)))
	require.NoError(t, arr.AppendArrayItem(inner))
	require.NoError(t, root.SetDictItem("a", arr))
	require.NoError(t, root.SetDictItem("name", NewString("sample")))
	require.NoError(t, root.SetDictItem("data", NewData([]byte{0xde, 0xad})))
	require.NoError(t, root.SetDictItem("when", NewDate(86400, 1)))
	require.NoError(t, root.SetDictItem("ratio", NewReal(0.25)))
	require.NoError(t, root.SetDictItem("ok", NewBool(true)))
	require.NoError(t, root.SetDictItem("ref", NewUID(7)))
	return root
}

func TestCopy(t *testing.T) {
	root := sampleTree(t)
	c := root.Copy()
	require.True(t, Compare(root, c))
	assert.Nil(t, c.Parent())

	var walk func(a, b *Node)
	walk = func(a, b *Node) {
		assert.NotSame(t, a, b)
		switch a.Type() {
		case ArrayType:
			for i := range a.array {
				assert.Same(t, b, b.array[i].Parent())
				walk(a.array[i], b.array[i])
			}
		case DictType:
			_, av := a.dict.items()
			_, bv := b.dict.items()
			for i := range av {
				assert.Same(t, b, bv[i].Parent())
				walk(av[i], bv[i])
			}
		}
	}
	walk(root, c)

	leaf, err := AccessPath(c, "a", 2, "b")
	require.NoError(t, err)
	require.NoError(t, leaf.SetUIntVal(99))
	assert.False(t, Compare(root, c))

	orig, _ := AccessPath(root, "a", 2, "b")
	u, _ := orig.UIntVal()
	assert.Equal(t, uint64(3), u)

	var nilNode *Node
	assert.Nil(t, nilNode.Copy())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b *Node
		want bool
	}{
		{"same uint", NewUInt(1), NewUInt(1), true},
		{"different uint", NewUInt(1), NewUInt(2), false},
		{"uint vs uid", NewUInt(1), NewUID(1), false},
		{"string vs key", NewString("a"), NewKey("a"), false},
		{"nan", NewReal(math.NaN()), NewReal(math.NaN()), true},
		{"data", NewData([]byte{1}), NewData([]byte{1}), true},
		{"empty data", NewData(nil), NewData([]byte{}), true},
		{"dates", NewDate(1, 2), NewDate(1, 3), false},
		{"none", NewNone(), NewNone(), true},
		{"nil", nil, nil, true},
		{"nil vs none", nil, NewNone(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompareStructured(t *testing.T) {
	a, b := NewDict(), NewDict()
	require.NoError(t, a.SetDictItem("x", NewUInt(1)))
	require.NoError(t, a.SetDictItem("y", NewUInt(2)))
	require.NoError(t, b.SetDictItem("y", NewUInt(2)))
	require.NoError(t, b.SetDictItem("x", NewUInt(1)))
	assert.True(t, a.Equal(b), "dictionary order is not significant")

	require.NoError(t, b.SetDictItem("z", NewUInt(3)))
	assert.False(t, a.Equal(b))

	x, y := NewArray(), NewArray()
	require.NoError(t, x.AppendArrayItem(NewUInt(1)))
	require.NoError(t, x.AppendArrayItem(NewUInt(2)))
	require.NoError(t, y.AppendArrayItem(NewUInt(2)))
	require.NoError(t, y.AppendArrayItem(NewUInt(1)))
	assert.False(t, x.Equal(y), "array order is significant")
}

func TestAccessPath(t *testing.T) {
	root := sampleTree(t)

	n, err := AccessPath(root, "a", 2, "b")
	require.NoError(t, err)
	u, err := n.UIntVal()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u)

	n, err = AccessPath(root, "a", uint32(1))
	require.NoError(t, err)
	u, _ = n.UIntVal()
	assert.Equal(t, uint64(2), u)

	n, err = AccessPath(root)
	require.NoError(t, err)
	assert.Same(t, root, n)

	_, err = AccessPath(root, "a", 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, err, ErrPathNotFound)
	var perr *PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Segment)

	_, err = AccessPath(root, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = AccessPath(root, 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = AccessPath(root, 1.5)
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestAccessPathString(t *testing.T) {
	root := sampleTree(t)

	n, err := AccessPathString(root, "/a/2/b")
	require.NoError(t, err)
	u, _ := n.UIntVal()
	assert.Equal(t, uint64(3), u)

	n, err = AccessPathString(root, "")
	require.NoError(t, err)
	assert.Same(t, root, n)

	_, err = AccessPathString(root, "a/9")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	var perr *PathError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Segment)

	// numeric keys are looked up as keys in dictionaries
	d := NewDict()
	require.NoError(t, d.SetDictItem("0", NewBool(true)))
	n, err = AccessPathString(d, "0")
	require.NoError(t, err)
	assert.Equal(t, BooleanType, n.Type())

	parent, last := SplitPath("/a/2/b")
	assert.Equal(t, "a/2", parent)
	assert.Equal(t, "b", last)
	parent, last = SplitPath("a")
	assert.Equal(t, "", parent)
	assert.Equal(t, "a", last)
}

func TestDictRemovedKeysAreGone(t *testing.T) {
	d := NewDict()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, d.SetDictItem(k, NewString(k)))
	}
	require.NoError(t, d.RemoveDictItem("b"))

	want := NewDict()
	require.NoError(t, want.SetDictItem("a", NewString("a")))
	require.NoError(t, want.SetDictItem("c", NewString("c")))
	assert.True(t, Compare(want, d))
	assert.True(t, Compare(d, want))
	assert.True(t, Compare(want, d.Copy()))
	assert.Equal(t, map[string]interface{}{"a": "a", "c": "c"}, d.Interface())

	for _, format := range []Format{XMLFormat, BinaryFormat} {
		data, err := Encode(d, format)
		require.NoError(t, err)
		got, _, err := Decode(data)
		require.NoError(t, err)
		keys, _ := got.DictKeys()
		assert.Equal(t, []string{"a", "c"}, keys, format.String())
	}

	merged := NewDict()
	require.NoError(t, merged.MergeDict(d))
	assert.Equal(t, []string{"a", "c"}, dictKeys(t, merged))
}
