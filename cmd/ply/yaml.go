package main

import (
	"encoding/base64"

	"github.com/zdypro888/go-plist"
	"gopkg.in/yaml.v2"
)

// toYAML converts n into values yaml.v2 marshals in plist order.
// Dictionaries become MapSlices; data is written as base64 text and a Uid
// as a CF$UID mapping.
func toYAML(n *plist.Node) interface{} {
	switch n.Type() {
	case plist.DictType:
		keys, _ := n.DictKeys()
		m := make(yaml.MapSlice, 0, len(keys))
		for _, k := range keys {
			v, _ := n.DictItem(k)
			m = append(m, yaml.MapItem{Key: k, Value: toYAML(v)})
		}
		return m
	case plist.ArrayType:
		size, _ := n.ArraySize()
		items := make([]interface{}, size)
		for i := range items {
			item, _ := n.ArrayItem(i)
			items[i] = toYAML(item)
		}
		return items
	case plist.DataType:
		b, _ := n.DataVal()
		return base64.StdEncoding.EncodeToString(b)
	case plist.UIDType:
		u, _ := n.UIDVal()
		return yaml.MapSlice{{Key: "CF$UID", Value: uint64(u)}}
	}
	return n.Interface()
}
