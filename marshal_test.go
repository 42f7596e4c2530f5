package plist

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Base struct {
	ID   int    `plist:"id"`
	Kind string `plist:"kind,omitempty"`
}

type Profile struct {
	Base
	Name     string            `plist:"name"`
	Enabled  bool              `plist:"enabled"`
	Ratio    float64           `plist:"ratio,omitempty"`
	Payload  []byte            `plist:"payload"`
	Digest   [4]byte           `plist:"digest"`
	Tags     []string          `plist:"tags"`
	Extra    map[string]int    `plist:"extra,omitempty"`
	Created  time.Time         `plist:"created,omitempty"`
	Ref      UID               `plist:"ref"`
	Child    *Profile          `plist:"child,omitempty"`
	Raw      *Node             `plist:"raw,omitempty"`
	Any      interface{}       `plist:"any,omitempty"`
	Ignored  string            `plist:"-"`
	Labels   map[string]string `plist:",omitempty"`
	internal int
}

func TestFromValueStruct(t *testing.T) {
	p := Profile{
		Base:    Base{ID: -2},
		Name:    "main",
		Enabled: true,
		Payload: []byte{1, 2},
		Digest:  [4]byte{9, 8, 7, 6},
		Tags:    []string{"a", "b"},
		Created: time.Date(2020, 2, 29, 10, 0, 0, 1500, time.UTC),
		Ref:     3,
		Ignored: "skip",
	}
	n, err := FromValue(p)
	require.NoError(t, err)

	keys, err := n.DictKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "enabled", "payload", "digest", "tags", "created", "ref"}, keys)

	id, _ := AccessPath(n, "id")
	u, _ := id.UIntVal()
	assert.Equal(t, uint64(1<<64-2), u)
	assert.True(t, id.IsSigned())

	digest, _ := AccessPath(n, "digest")
	assert.Equal(t, DataType, digest.Type())
	ref, _ := AccessPath(n, "ref")
	assert.Equal(t, UIDType, ref.Type())
	created, _ := AccessPath(n, "created")
	ts, _ := created.Time()
	assert.True(t, ts.Equal(p.Created.Truncate(time.Microsecond)))
}

func TestUnmarshalStruct(t *testing.T) {
	raw := NewArray()
	require.NoError(t, raw.AppendArrayItem(NewString("kept")))

	want := Profile{
		Base:    Base{ID: -7, Kind: "test"},
		Name:    "main",
		Enabled: true,
		Ratio:   0.5,
		Payload: []byte{1, 2, 3},
		Digest:  [4]byte{1, 2, 3, 4},
		Tags:    []string{"x", "y"},
		Extra:   map[string]int{"one": 1},
		Created: time.Date(2021, 3, 4, 5, 6, 7, 8000, time.UTC),
		Ref:     9,
		Child:   &Profile{Name: "child", Tags: []string{}, Payload: []byte{}},
		Raw:     raw,
		Any:     "anything",
		Labels:  map[string]string{"env": "prod"},
	}
	n, err := FromValue(want)
	require.NoError(t, err)

	// through both encodings and back
	for _, format := range []Format{XMLFormat, BinaryFormat} {
		data, err := Encode(n, format)
		require.NoError(t, err)
		decoded, _, err := Decode(data)
		require.NoError(t, err)

		var got Profile
		require.NoError(t, decoded.Unmarshal(&got))
		opts := cmp.Options{
			cmp.AllowUnexported(Profile{}),
			cmp.Comparer(func(a, b *Node) bool { return Compare(a, b) }),
		}
		assert.Empty(t, cmp.Diff(want, got, opts), format.String())
	}
}

func TestUnmarshalMismatch(t *testing.T) {
	var s string
	assert.ErrorIs(t, NewUInt(1).Unmarshal(&s), ErrTypeMismatch)

	var i8 int8
	assert.ErrorIs(t, NewUInt(300).Unmarshal(&i8), ErrTypeMismatch)

	var arr [2]byte
	assert.ErrorIs(t, NewData([]byte{1, 2, 3}).Unmarshal(&arr), ErrTypeMismatch)

	var ints []int
	assert.ErrorIs(t, NewData([]byte{1}).Unmarshal(&ints), ErrTypeMismatch)

	var m map[int]string
	assert.ErrorIs(t, NewDict().Unmarshal(&m), ErrTypeMismatch)

	assert.ErrorIs(t, NewBool(true).Unmarshal(s), ErrUnsupportedType)

	var p Profile
	d := NewDict()
	require.NoError(t, d.SetDictItem("name", NewUInt(1)))
	err := d.Unmarshal(&p)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "field name")
}

func TestUnmarshalNumbers(t *testing.T) {
	var i int64
	require.NoError(t, NewInt(-1).Unmarshal(&i))
	assert.Equal(t, int64(-1), i)
	assert.ErrorIs(t, NewUInt(math.MaxUint64).Unmarshal(&i), ErrTypeMismatch)

	var u uint
	assert.ErrorIs(t, NewInt(-1).Unmarshal(&u), ErrTypeMismatch)
	require.NoError(t, NewUInt(math.MaxInt64).Unmarshal(&u))

	var neg float64
	require.NoError(t, NewInt(-3).Unmarshal(&neg))
	assert.Equal(t, -3.0, neg)

	var f float32
	require.NoError(t, NewUInt(4).Unmarshal(&f))
	assert.Equal(t, float32(4), f)

	var uid UID
	require.NoError(t, NewUID(5).Unmarshal(&uid))
	assert.Equal(t, UID(5), uid)

	var ptr *int
	require.NoError(t, NewUInt(6).Unmarshal(&ptr))
	require.NotNil(t, ptr)
	assert.Equal(t, 6, *ptr)

	require.NoError(t, NewNone().Unmarshal(&ptr))
	assert.Nil(t, ptr)
}

func TestFromValueErrors(t *testing.T) {
	_, err := FromValue(map[int]string{1: "a"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = FromValue(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = FromValue(struct{ C chan int }{})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	n, err := FromValue(nil)
	require.NoError(t, err)
	assert.Equal(t, NoneType, n.Type())
}

func TestFromValueCopiesNodes(t *testing.T) {
	leaf := NewString("leaf")
	parent := NewArray()
	require.NoError(t, parent.AppendArrayItem(leaf))

	n, err := FromValue(map[string]*Node{"x": leaf})
	require.NoError(t, err)
	x, _ := n.DictItem("x")
	assert.NotSame(t, leaf, x)
	assert.Same(t, parent, leaf.Parent())
	assert.True(t, Compare(leaf, x))
}

func TestInterface(t *testing.T) {
	got := sampleTree(t).Interface()
	want := map[string]interface{}{
		"a": []interface{}{
			uint64(1),
			uint64(2),
			map[string]interface{}{"b": uint64(3)},
		},
		"name":  "sample",
		"data":  []byte{0xde, 0xad},
		"when":  time.Date(2001, 1, 2, 0, 0, 0, 1000, time.UTC),
		"ratio": 0.25,
		"ok":    true,
		"ref":   UID(7),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Interface() mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, NewNone().Interface())
}
