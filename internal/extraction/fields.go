package extraction

// Field is one flattened leaf.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`

	// key is the last mapping key on the path, ignoring array indices.
	key string
}

// Fields is an ordered path-to-value mapping. Order is traversal order and
// is stable for a given input.
type Fields struct {
	list []Field
	pos  map[string]int
}

func newFields() *Fields {
	return &Fields{pos: make(map[string]int)}
}

// set records name. A repeated name keeps its first position and takes the
// latest value.
func (f *Fields) set(name, value, key string) {
	if i, ok := f.pos[name]; ok {
		f.list[i].Value = value
		f.list[i].key = key
		return
	}
	f.pos[name] = len(f.list)
	f.list = append(f.list, Field{Name: name, Value: value, key: key})
}

func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.list)
}

// Get returns the value recorded for name.
func (f *Fields) Get(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	i, ok := f.pos[name]
	if !ok {
		return "", false
	}
	return f.list[i].Value, true
}

// All returns a copy of the fields in traversal order.
func (f *Fields) All() []Field {
	if f == nil {
		return nil
	}
	out := make([]Field, len(f.list))
	copy(out, f.list)
	return out
}

// Names returns field names in traversal order.
func (f *Fields) Names() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.list))
	for i, fld := range f.list {
		out[i] = fld.Name
	}
	return out
}

// Map returns the fields as a plain map.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, f.Len())
	if f == nil {
		return out
	}
	for _, fld := range f.list {
		out[fld.Name] = fld.Value
	}
	return out
}
