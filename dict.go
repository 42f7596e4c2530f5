package plist

// orderedDict keeps dictionary items in insertion order. A removed key keeps
// its slot as a tombstone, so replacing a value or removing a key and adding
// it again leaves the key where it was first inserted.
type orderedDict struct {
	keys   []string
	values []*Node         // nil marks a removed key
	index  map[string]int // slot of every key ever stored
	live   int
}

func newOrderedDict() *orderedDict {
	return &orderedDict{index: make(map[string]int)}
}

func (d *orderedDict) len() int {
	return d.live
}

func (d *orderedDict) get(key string) (*Node, bool) {
	i, ok := d.index[key]
	if !ok || d.values[i] == nil {
		return nil, false
	}
	return d.values[i], true
}

// set stores v under key and returns the value it replaced, if any.
func (d *orderedDict) set(key string, v *Node) *Node {
	if i, ok := d.index[key]; ok {
		old := d.values[i]
		if old == nil {
			d.live++
		}
		d.values[i] = v
		return old
	}
	d.index[key] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, v)
	d.live++
	return nil
}

func (d *orderedDict) remove(key string) *Node {
	i, ok := d.index[key]
	if !ok || d.values[i] == nil {
		return nil
	}
	old := d.values[i]
	d.values[i] = nil
	d.live--
	return old
}

// items returns the live keys and values in iteration order.
func (d *orderedDict) items() ([]string, []*Node) {
	keys := make([]string, 0, d.live)
	values := make([]*Node, 0, d.live)
	for i, v := range d.values {
		if v != nil {
			keys = append(keys, d.keys[i])
			values = append(values, v)
		}
	}
	return keys, values
}
