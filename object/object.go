// Package object implements ObjectRuntime (spec §4.4): the base behavior
// shared by every CODA data instance — presence bits, the mutable→frozen
// lifecycle, default instances, and descriptor-driven equality/hash.
package object

import (
	"fmt"
	"sort"

	"github.com/codaschema/coda/schema"
)

// List is a CODA list-typed field value: an ordered, possibly-repeating
// sequence (spec §4.5 "list/set elements preserve source iteration order
// for lists").
type List struct {
	Elems []interface{}
}

// Set is a CODA set-typed field value. Iteration order is whatever order
// elements were added in (used for encoding); equality ignores order
// (spec §8: "sets are compared as sets").
type Set struct {
	Elems []interface{}
}

func (s *Set) Add(v interface{}) {
	s.Elems = append(s.Elems, v)
}

// MapEntry is one key/value pair of a Map, in insertion order.
type MapEntry struct {
	Key, Value interface{}
}

// Map is a CODA map-typed field value. Spec §4.5: "map keys emitted in
// iteration order (not sorted)" — so, unlike the registry's B-trees, this
// is a plain insertion-ordered association list, not a sorted structure.
type Map struct {
	Entries []MapEntry
}

func (m *Map) Set(key, value interface{}) {
	for i := range m.Entries {
		if valuesEqual(m.Entries[i].Key, key) {
			m.Entries[i].Value = value
			return
		}
	}
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: value})
}

func (m *Map) Get(key interface{}) (interface{}, bool) {
	for _, e := range m.Entries {
		if valuesEqual(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Instance is one CODA Object: a mutable-then-frozen bag of field values
// addressed through its StructDescriptor (spec §4.4).
type Instance struct {
	desc    *schema.StructDescriptor
	mutable bool
	present map[uint32]bool
	values  map[uint32]interface{}
	// extensions holds values for ExtensionFields registered against this
	// struct's (or an ancestor's) extension range, keyed by extension id,
	// mirroring ExtensibleObject in the original runtime (spec §9
	// "Supplemented features").
	extensions map[uint32]interface{}
}

// New creates a new mutable Instance of desc with all fields absent.
func New(desc *schema.StructDescriptor) *Instance {
	return &Instance{
		desc:       desc,
		mutable:    true,
		present:    map[uint32]bool{},
		values:     map[uint32]interface{}{},
		extensions: map[uint32]interface{}{},
	}
}

func (o *Instance) Descriptor() *schema.StructDescriptor { return o.desc }

func (o *Instance) IsMutable() bool { return o.mutable }

// CheckMutable panics if o is frozen. Every mutator calls this first, so
// that "mutating any field on a frozen object is a programmer error" is
// always detected (spec §4.4).
func (o *Instance) CheckMutable() {
	if !o.mutable {
		panic(fmt.Sprintf("mutation of frozen %s instance", o.desc.FullName()))
	}
}

func isCollectionKind(k schema.Kind) bool {
	return k == schema.KindList || k == schema.KindSet || k == schema.KindMap
}

// Has reports whether fd is present on o. Collection-typed fields have no
// presence bit: emptiness alone signals absence (spec §4.4, §9 Open
// Questions).
func (o *Instance) Has(fd *schema.FieldDescriptor) bool {
	if isCollectionKind(fd.Type.Kind()) {
		v, ok := o.values[fd.ID]
		if !ok {
			return false
		}
		switch c := v.(type) {
		case *List:
			return len(c.Elems) > 0
		case *Set:
			return len(c.Elems) > 0
		case *Map:
			return len(c.Entries) > 0
		}
		return false
	}
	return o.present[fd.ID]
}

// Get returns the current value of fd, or its type's zero value if
// absent.
func (o *Instance) Get(fd *schema.FieldDescriptor) interface{} {
	if v, ok := o.values[fd.ID]; ok {
		return v
	}
	return ZeroValue(fd.Type)
}

// Set assigns value to fd and marks it present (for non-collection
// fields).
func (o *Instance) Set(fd *schema.FieldDescriptor, value interface{}) {
	o.CheckMutable()
	o.values[fd.ID] = value
	if !isCollectionKind(fd.Type.Kind()) {
		o.present[fd.ID] = true
	}
}

// Clear resets fd to its type-specific default and removes its presence
// bit (spec §4.4 "clear<Field>()").
func (o *Instance) Clear(fd *schema.FieldDescriptor) {
	o.CheckMutable()
	delete(o.values, fd.ID)
	delete(o.present, fd.ID)
}

func (o *Instance) GetExtension(id uint32) (interface{}, bool) {
	v, ok := o.extensions[id]
	return v, ok
}

func (o *Instance) SetExtension(id uint32, value interface{}) {
	o.CheckMutable()
	o.extensions[id] = value
}

// ZeroValue returns the type-specific default value for t, used as Get's
// fallback for a field that is not present.
func ZeroValue(t schema.Type) interface{} {
	switch t.Kind() {
	case schema.KindBool:
		return false
	case schema.KindInteger:
		return int64(0)
	case schema.KindFloat:
		return float32(0)
	case schema.KindDouble:
		return float64(0)
	case schema.KindString:
		return ""
	case schema.KindBytes:
		return []byte(nil)
	case schema.KindList:
		return &List{}
	case schema.KindSet:
		return &Set{}
	case schema.KindMap:
		return &Map{}
	case schema.KindModified:
		return ZeroValue(t.Elem())
	case schema.KindStruct:
		return DefaultInstance(t.Struct())
	case schema.KindEnum:
		return int64(0)
	default:
		return nil
	}
}

// Freeze makes o immutable. If deep, it also recursively freezes owned
// struct-typed field values (and struct elements reachable through
// lists/sets/maps) — spec §4.4 "freeze(deep=true|false)". Shared struct
// values are frozen too (so they may be hashed) but, since they are not
// owned, freezing o never clones them: shared identity survives.
func (o *Instance) Freeze(deep bool) {
	if o.mutable {
		o.mutable = false
		if deep {
			for _, fd := range o.desc.Fields {
				freezeValue(o.values[fd.ID])
			}
		}
	}
}

func freezeValue(v interface{}) {
	switch val := v.(type) {
	case *Instance:
		val.Freeze(true)
	case *List:
		for _, e := range val.Elems {
			freezeValue(e)
		}
	case *Set:
		for _, e := range val.Elems {
			freezeValue(e)
		}
	case *Map:
		for _, e := range val.Entries {
			freezeValue(e.Key)
			freezeValue(e.Value)
		}
	}
}

// ShallowCopy returns a mutable copy of o with the same presence set,
// used by non-mutating transforms that must copy-on-write (spec §4.4).
func (o *Instance) ShallowCopy() *Instance {
	cp := &Instance{
		desc:       o.desc,
		mutable:    true,
		present:    make(map[uint32]bool, len(o.present)),
		values:     make(map[uint32]interface{}, len(o.values)),
		extensions: make(map[uint32]interface{}, len(o.extensions)),
	}
	for k, v := range o.present {
		cp.present[k] = v
	}
	for k, v := range o.values {
		cp.values[k] = v
	}
	for k, v := range o.extensions {
		cp.extensions[k] = v
	}
	return cp
}

// defaultInstances holds the process-wide immutable zero-initialized
// sentinel for each struct descriptor (spec §3 "Default instances").
var defaultInstances = map[*schema.StructDescriptor]*Instance{}

// DefaultInstance returns the sentinel "absent struct field" value for
// desc, constructing and freezing it on first use.
func DefaultInstance(desc *schema.StructDescriptor) *Instance {
	if inst, ok := defaultInstances[desc]; ok {
		return inst
	}
	inst := New(desc)
	inst.Freeze(true)
	defaultInstances[desc] = inst
	return inst
}

// Equals reports structural equality over present fields only (spec
// §4.4 "equals ... defined only over present fields"), recursing through
// descriptor-driven traversal and comparing sets as sets / maps by key.
func (o *Instance) Equals(other *Instance) bool {
	if o == other {
		return true
	}
	if other == nil || o.desc != other.desc {
		return false
	}
	for _, fd := range o.desc.Fields {
		if isCollectionKind(fd.Type.Kind()) {
			if !valuesEqual(o.Get(fd), other.Get(fd)) {
				return false
			}
			continue
		}
		if o.Has(fd) != other.Has(fd) {
			return false
		}
		if o.Has(fd) && !valuesEqual(o.Get(fd), other.Get(fd)) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case *Instance:
		bv, ok := b.(*Instance)
		return ok && av.Equals(bv)
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !valuesEqual(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *Set:
		bv, ok := b.(*Set)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		used := make([]bool, len(bv.Elems))
		for _, ae := range av.Elems {
			found := false
			for i, be := range bv.Elems {
				if !used[i] && valuesEqual(ae, be) {
					used[i] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || len(av.Entries) != len(bv.Entries) {
			return false
		}
		for _, ae := range av.Entries {
			bval, ok := bv.Get(ae.Key)
			if !ok || !valuesEqual(ae.Value, bval) {
				return false
			}
		}
		return true
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Hash returns a structural hash over present fields. o must be frozen:
// "Only immutable values can be hashed" (spec §4.4; original
// runtime/object.py _hashImpl).
func (o *Instance) Hash() uint64 {
	if o.mutable {
		panic("cannot hash a mutable instance")
	}
	h := fnvOffset
	h = hashString(h, o.desc.FullName())
	// Hash over a stable (sorted by id) view of present fields so two
	// equal instances always hash equal regardless of insertion order.
	ids := make([]int, 0, len(o.present)+4)
	seen := map[uint32]bool{}
	for _, fd := range o.desc.Fields {
		if o.Has(fd) {
			ids = append(ids, int(fd.ID))
			seen[fd.ID] = true
		}
	}
	sort.Ints(ids)
	for _, id := range ids {
		fd := o.desc.FieldByID(uint32(id))
		h = hashUint64(h, uint64(fd.ID))
		h = hashValue(h, o.Get(fd))
	}
	return h
}

const (
	fnvOffset uint64 = 1469598103934665603
	fnvPrime  uint64 = 1099511628211
)

func hashUint64(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime
		v >>= 8
	}
	return h
}

func hashString(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

func hashValue(h uint64, v interface{}) uint64 {
	switch val := v.(type) {
	case *Instance:
		return hashUint64(h, val.Hash())
	case *List:
		for _, e := range val.Elems {
			h = hashValue(h, e)
		}
		return h
	case *Set:
		// Order-independent: combine with XOR rather than chaining.
		var acc uint64
		for _, e := range val.Elems {
			acc ^= hashValue(fnvOffset, e)
		}
		return hashUint64(h, acc)
	case *Map:
		var acc uint64
		for _, e := range val.Entries {
			kv := hashValue(fnvOffset, e.Key)
			vv := hashValue(fnvOffset, e.Value)
			acc ^= kv*31 + vv
		}
		return hashUint64(h, acc)
	case bool:
		if val {
			return hashUint64(h, 1)
		}
		return hashUint64(h, 0)
	case int64:
		return hashUint64(h, uint64(val))
	case float32:
		return hashUint64(h, uint64(val))
	case float64:
		return hashUint64(h, uint64(val))
	case string:
		return hashString(h, val)
	case []byte:
		return hashString(h, string(val))
	default:
		return h
	}
}
