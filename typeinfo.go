package plist

import (
	"reflect"
	"strings"
	"sync"
)

// typeInfo lists the dictionary items a struct type maps to.
type typeInfo struct {
	fields []fieldInfo
}

// fieldInfo describes one struct field and the key it is stored under.
type fieldInfo struct {
	idx       []int
	name      string
	omitEmpty bool
}

var tinfoMap sync.Map // map[reflect.Type]*typeInfo

// getTypeInfo returns the cached field layout of typ, honouring `plist`
// struct tags: "-" skips a field, "name,omitempty" renames it and drops
// zero values when encoding. Embedded structs contribute their fields.
func getTypeInfo(typ reflect.Type) *typeInfo {
	if ti, ok := tinfoMap.Load(typ); ok {
		return ti.(*typeInfo)
	}
	tinfo := &typeInfo{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.Tag.Get("plist") == "-" || (!f.Anonymous && f.PkgPath != "") {
			continue
		}
		if f.Anonymous && f.Tag.Get("plist") == "" {
			t := f.Type
			if t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			if t.Kind() == reflect.Struct {
				for _, inner := range getTypeInfo(t).fields {
					inner.idx = append([]int{i}, inner.idx...)
					tinfo.add(inner)
				}
				continue
			}
			if f.PkgPath != "" {
				continue
			}
		}
		tinfo.add(structFieldInfo(&f))
	}
	ti, _ := tinfoMap.LoadOrStore(typ, tinfo)
	return ti.(*typeInfo)
}

func structFieldInfo(f *reflect.StructField) fieldInfo {
	finfo := fieldInfo{idx: f.Index, name: f.Name}
	tokens := strings.Split(f.Tag.Get("plist"), ",")
	if tokens[0] != "" {
		finfo.name = tokens[0]
	}
	for _, flag := range tokens[1:] {
		if flag == "omitempty" {
			finfo.omitEmpty = true
		}
	}
	return finfo
}

// add appends newf unless a shallower field already claims its name; a
// shallower newf replaces deeper fields of the same name. This follows Go's
// rules for promoted fields.
func (tinfo *typeInfo) add(newf fieldInfo) {
	var conflicts []int
	for i := range tinfo.fields {
		if tinfo.fields[i].name == newf.name {
			conflicts = append(conflicts, i)
		}
	}
	if conflicts == nil {
		tinfo.fields = append(tinfo.fields, newf)
		return
	}
	for _, i := range conflicts {
		if len(tinfo.fields[i].idx) <= len(newf.idx) {
			return
		}
	}
	for c := len(conflicts) - 1; c >= 0; c-- {
		i := conflicts[c]
		tinfo.fields = append(tinfo.fields[:i], tinfo.fields[i+1:]...)
	}
	tinfo.fields = append(tinfo.fields, newf)
}

// value returns the field of v described by finfo. When alloc is set, nil
// embedded struct pointers on the way are allocated; otherwise a nil pointer
// yields an invalid Value.
func (finfo *fieldInfo) value(v reflect.Value, alloc bool) reflect.Value {
	for i, x := range finfo.idx {
		if i > 0 && v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct {
			if v.IsNil() {
				if !alloc {
					return reflect.Value{}
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}
