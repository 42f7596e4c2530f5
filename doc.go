// Package plist reads and writes Apple property lists.
//
// A property list is a tree of *Node values. Scalars (booleans, integers,
// reals, strings, data, dates and uids) are leaves; arrays and
// dictionaries own their children. Dictionaries iterate in insertion order.
//
// Trees are built with the New* constructors or decoded from bytes:
//
//	root, format, err := plist.Decode(data)
//	if err != nil {
//		return err
//	}
//	name, err := plist.AccessPath(root, "CFBundleName")
//
// and written back with EncodeXML or EncodeBinary. XML cannot hold None below
// the root, and the binary encoding stores a root Key node as a string.
//
// Decoding never trusts the input: truncated buffers, offsets outside the
// object table and cyclic object references are reported as errors.
package plist
