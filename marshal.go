package plist

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

var (
	nodeType = reflect.TypeOf((*Node)(nil))
	uidType  = reflect.TypeOf(UID(0))
	timeType = reflect.TypeOf(time.Time{})
)

// FromValue builds a tree from a Go value. Booleans, integers, floats,
// strings, byte slices and arrays, time.Time, UID, slices, arrays, maps with
// string keys and structs are supported. Signed integers are stored in two's
// complement. Map keys are sorted; struct fields keep declaration order.
// A nil value yields a None node.
func FromValue(v interface{}) (*Node, error) {
	if v == nil {
		return NewNone(), nil
	}
	return fromValue(reflect.ValueOf(v))
}

func fromValue(val reflect.Value) (*Node, error) {
	if val.Type() == nodeType {
		if val.IsNil() {
			return NewNone(), nil
		}
		return val.Interface().(*Node).Copy(), nil
	}
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return NewNone(), nil
		}
		return fromValue(val.Elem())
	}

	switch val.Type() {
	case uidType:
		return NewUID(UID(val.Uint())), nil
	case timeType:
		return NewDateFromTime(val.Interface().(time.Time)), nil
	}

	switch val.Kind() {
	case reflect.Bool:
		return NewBool(val.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewUInt(val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return NewReal(val.Float()), nil
	case reflect.String:
		return NewString(val.String()), nil
	case reflect.Slice, reflect.Array:
		if val.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(b), val)
			return NewData(b), nil
		}
		arr := NewArray()
		for i := 0; i < val.Len(); i++ {
			item, err := fromValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			if err := arr.AppendArrayItem(item); err != nil {
				return nil, err
			}
		}
		return arr, nil
	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %v", ErrUnsupportedType, val.Type().Key())
		}
		keys := val.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		dict := NewDict()
		for _, k := range keys {
			item, err := fromValue(val.MapIndex(k))
			if err != nil {
				return nil, err
			}
			if err := dict.SetDictItem(k.String(), item); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case reflect.Struct:
		return fromStruct(val)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, val.Type())
}

func fromStruct(val reflect.Value) (*Node, error) {
	dict := NewDict()
	for _, finfo := range getTypeInfo(val.Type()).fields {
		fv := finfo.value(val, false)
		if !fv.IsValid() || (finfo.omitEmpty && isEmptyValue(fv)) {
			continue
		}
		item, err := fromValue(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", finfo.name, err)
		}
		if err := dict.SetDictItem(finfo.name, item); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
	}
	return false
}

// Interface returns n as native Go values: bool, uint64, float64, string,
// []byte, time.Time, UID, []interface{} and map[string]interface{}. Signed
// integers yield int64 and None yields nil.
func (n *Node) Interface() interface{} {
	switch n.Type() {
	case BooleanType:
		return n.b
	case UIntType:
		if n.signed {
			return int64(n.u)
		}
		return n.u
	case RealType:
		return n.f
	case StringType, KeyType:
		return n.s
	case DataType:
		return cloneBytes(n.data)
	case DateType:
		return dateToTime(n.sec, n.usec)
	case UIDType:
		return UID(n.u)
	case ArrayType:
		values := make([]interface{}, len(n.array))
		for i, item := range n.array {
			values[i] = item.Interface()
		}
		return values
	case DictType:
		keys, values := n.dict.items()
		m := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			m[k] = values[i].Interface()
		}
		return m
	}
	return nil
}

// Unmarshal stores the value of n in the value pointed to by v, following
// the same mapping as FromValue. Struct fields without a matching key are
// left untouched.
func (n *Node) Unmarshal(v interface{}) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%w: Unmarshal needs a non-nil pointer, got %T", ErrUnsupportedType, v)
	}
	return n.unmarshal(val.Elem())
}

func (n *Node) mismatch(val reflect.Value) error {
	return fmt.Errorf("%w: cannot store %v in %v", ErrTypeMismatch, n.Type(), val.Type())
}

func (n *Node) unmarshal(val reflect.Value) error {
	if val.Type() == nodeType {
		val.Set(reflect.ValueOf(n.Copy()))
		return nil
	}
	if n.Type() == NoneType {
		val.Set(reflect.Zero(val.Type()))
		return nil
	}
	switch val.Kind() {
	case reflect.Ptr:
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		return n.unmarshal(val.Elem())
	case reflect.Interface:
		if val.NumMethod() != 0 {
			return n.mismatch(val)
		}
		val.Set(reflect.ValueOf(n.Interface()))
		return nil
	}

	switch n.typ {
	case BooleanType:
		if val.Kind() != reflect.Bool {
			return n.mismatch(val)
		}
		val.SetBool(n.b)
	case UIntType, UIDType:
		return n.unmarshalInteger(val)
	case RealType:
		if val.Kind() != reflect.Float32 && val.Kind() != reflect.Float64 {
			return n.mismatch(val)
		}
		val.SetFloat(n.f)
	case StringType, KeyType:
		if val.Kind() != reflect.String {
			return n.mismatch(val)
		}
		val.SetString(n.s)
	case DataType:
		return n.unmarshalData(val)
	case DateType:
		if val.Type() != timeType {
			return n.mismatch(val)
		}
		val.Set(reflect.ValueOf(dateToTime(n.sec, n.usec)))
	case ArrayType:
		return n.unmarshalArray(val)
	case DictType:
		switch val.Kind() {
		case reflect.Map:
			return n.unmarshalMap(val)
		case reflect.Struct:
			return n.unmarshalStruct(val)
		}
		return n.mismatch(val)
	default:
		return n.mismatch(val)
	}
	return nil
}

func (n *Node) unmarshalInteger(val reflect.Value) error {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := int64(n.u)
		if !n.signed && i < 0 {
			return fmt.Errorf("%w: %d overflows %v", ErrTypeMismatch, n.u, val.Type())
		}
		if val.OverflowInt(i) {
			return fmt.Errorf("%w: %d overflows %v", ErrTypeMismatch, i, val.Type())
		}
		val.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n.signed {
			return fmt.Errorf("%w: %d is negative for %v", ErrTypeMismatch, int64(n.u), val.Type())
		}
		if val.OverflowUint(n.u) {
			return fmt.Errorf("%w: %d overflows %v", ErrTypeMismatch, n.u, val.Type())
		}
		val.SetUint(n.u)
	case reflect.Float32, reflect.Float64:
		if n.signed {
			val.SetFloat(float64(int64(n.u)))
		} else {
			val.SetFloat(float64(n.u))
		}
	default:
		return n.mismatch(val)
	}
	return nil
}

func (n *Node) unmarshalData(val reflect.Value) error {
	if (val.Kind() != reflect.Slice && val.Kind() != reflect.Array) || val.Type().Elem().Kind() != reflect.Uint8 {
		return n.mismatch(val)
	}
	switch val.Kind() {
	case reflect.Slice:
		val.SetBytes(cloneBytes(n.data))
	case reflect.Array:
		if val.Len() != len(n.data) {
			return fmt.Errorf("%w: %d bytes into %v", ErrTypeMismatch, len(n.data), val.Type())
		}
		reflect.Copy(val, reflect.ValueOf(n.data))
	default:
		return n.mismatch(val)
	}
	return nil
}

func (n *Node) unmarshalArray(val reflect.Value) error {
	switch val.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(val.Type(), len(n.array), len(n.array))
		for i, item := range n.array {
			if err := item.unmarshal(s.Index(i)); err != nil {
				return err
			}
		}
		val.Set(s)
	case reflect.Array:
		if val.Len() < len(n.array) {
			return fmt.Errorf("%w: %d items into %v", ErrTypeMismatch, len(n.array), val.Type())
		}
		for i, item := range n.array {
			if err := item.unmarshal(val.Index(i)); err != nil {
				return err
			}
		}
	default:
		return n.mismatch(val)
	}
	return nil
}

func (n *Node) unmarshalMap(val reflect.Value) error {
	typ := val.Type()
	if typ.Key().Kind() != reflect.String {
		return n.mismatch(val)
	}
	if val.IsNil() {
		val.Set(reflect.MakeMapWithSize(typ, n.dict.len()))
	}
	keys, values := n.dict.items()
	for i, k := range keys {
		elem := reflect.New(typ.Elem()).Elem()
		if err := values[i].unmarshal(elem); err != nil {
			return err
		}
		val.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), elem)
	}
	return nil
}

func (n *Node) unmarshalStruct(val reflect.Value) error {
	for _, finfo := range getTypeInfo(val.Type()).fields {
		item, ok := n.dict.get(finfo.name)
		if !ok {
			continue
		}
		if err := item.unmarshal(finfo.value(val, true)); err != nil {
			return fmt.Errorf("field %s: %w", finfo.name, err)
		}
	}
	return nil
}
