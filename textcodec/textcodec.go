// Package textcodec implements CODA's human-readable wire format (spec
// §4.5 "TextCodec"): `$N (TypeName): {...}` subtype blocks, `%N`/`#N`
// shared-reference citation/definition, and `<[...]>` hex literals for
// bytes values.
package textcodec

import (
	"fmt"
	"io"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/schema"
)

// MaxDepth caps struct nesting depth during both encode and decode,
// guarding against malicious or accidentally-cyclic input (spec §4.5
// "recursion-depth cap 255").
const MaxDepth = 255

// Encoder writes Instances in CODA's text wire format.
type Encoder struct {
	w          io.Writer
	sharedIDs  map[*object.Instance]uint32
	nextShared uint32
	indent     int
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, sharedIDs: map[*object.Instance]uint32{}}
}

func (e *Encoder) writeIndent() {
	for i := 0; i < e.indent; i++ {
		io.WriteString(e.w, "  ")
	}
}

// Encode writes inst as a top-level value.
func (e *Encoder) Encode(inst *object.Instance) error {
	return e.encodeStruct(inst, 0)
}

func (e *Encoder) encodeStruct(inst *object.Instance, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("textcodec: max nesting depth %d exceeded", MaxDepth)
	}
	if inst == nil {
		io.WriteString(e.w, "null")
		return nil
	}
	desc := inst.Descriptor()
	if desc.TypeID != nil {
		fmt.Fprintf(e.w, "$%d (%s): ", *desc.TypeID, desc.FullName())
	} else {
		fmt.Fprintf(e.w, "(%s): ", desc.FullName())
	}
	io.WriteString(e.w, "{\n")
	e.indent++
	for _, fd := range desc.Fields {
		if !inst.Has(fd) {
			continue
		}
		e.writeIndent()
		fmt.Fprintf(e.w, "%s: ", fd.Name)
		if err := e.encodeValue(fd.Type, inst.Get(fd), depth+1); err != nil {
			return err
		}
		io.WriteString(e.w, ";\n")
	}
	e.indent--
	e.writeIndent()
	io.WriteString(e.w, "}")
	return nil
}

func (e *Encoder) encodeValue(t schema.Type, v interface{}, depth int) error {
	switch t.Kind() {
	case schema.KindBool:
		fmt.Fprintf(e.w, "%v", v.(bool))
	case schema.KindInteger, schema.KindEnum:
		fmt.Fprintf(e.w, "%d", v.(int64))
	case schema.KindFloat:
		fmt.Fprintf(e.w, "%v", v.(float32))
	case schema.KindDouble:
		fmt.Fprintf(e.w, "%v", v.(float64))
	case schema.KindString:
		fmt.Fprintf(e.w, "%q", v.(string))
	case schema.KindBytes:
		fmt.Fprintf(e.w, "<[%x]>", v.([]byte))
	case schema.KindList:
		return e.encodeSeq(t.Elem(), v.(*object.List).Elems, depth)
	case schema.KindSet:
		return e.encodeSeq(t.Elem(), v.(*object.Set).Elems, depth)
	case schema.KindMap:
		m := v.(*object.Map)
		io.WriteString(e.w, "{")
		for i, entry := range m.Entries {
			if i > 0 {
				io.WriteString(e.w, ", ")
			}
			if err := e.encodeValue(t.Key(), entry.Key, depth); err != nil {
				return err
			}
			io.WriteString(e.w, " => ")
			if err := e.encodeValue(t.Val(), entry.Value, depth); err != nil {
				return err
			}
		}
		io.WriteString(e.w, "}")
	case schema.KindModified:
		inst, _ := v.(*object.Instance)
		if t.IsShared() {
			return e.encodeSharedRef(inst, depth)
		}
		return e.encodeStruct(inst, depth)
	case schema.KindStruct:
		inst, _ := v.(*object.Instance)
		return e.encodeStruct(inst, depth)
	default:
		return fmt.Errorf("textcodec: unsupported type kind %s", t.Kind())
	}
	return nil
}

func (e *Encoder) encodeSeq(elem schema.Type, elems []interface{}, depth int) error {
	io.WriteString(e.w, "[")
	for i, el := range elems {
		if i > 0 {
			io.WriteString(e.w, ", ")
		}
		if err := e.encodeValue(elem, el, depth); err != nil {
			return err
		}
	}
	io.WriteString(e.w, "]")
	return nil
}

// encodeSharedRef prints `#N (Type): {...}` on first sighting of inst
// and `%N` on every subsequent reference (spec §4.5 "%N/#N shared-ref
// citation/definition").
func (e *Encoder) encodeSharedRef(inst *object.Instance, depth int) error {
	if inst == nil {
		io.WriteString(e.w, "null")
		return nil
	}
	if id, seen := e.sharedIDs[inst]; seen {
		fmt.Fprintf(e.w, "%%%d", id)
		return nil
	}
	e.nextShared++
	id := e.nextShared
	e.sharedIDs[inst] = id
	fmt.Fprintf(e.w, "#%d ", id)
	return e.encodeStruct(inst, depth)
}
