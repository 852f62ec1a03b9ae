// Package binarycodec implements CODA's compact binary wire format (spec
// §4.5 "BinaryCodec"): tag-delta field headers, zig-zag varints, SUBTYPE
// framing, and shared-object interning.
package binarycodec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/petermattis/goid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/schema"
	"github.com/codaschema/coda/wire"
)

// Encoder serializes Instances into CODA's binary wire format. An
// Encoder is not safe for concurrent use and, like the teacher's
// stream writers, asserts it is only ever driven from the goroutine
// that created it (petermattis/goid), since its shared-object table and
// cycle guard are unsynchronized maps.
type Encoder struct {
	buf        bytes.Buffer
	sharedIDs  map[*object.Instance]uint32
	nextShared uint32
	inProgress map[*object.Instance]bool
	goroutine  int64
}

// NewEncoder creates an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{
		sharedIDs:  map[*object.Instance]uint32{},
		inProgress: map[*object.Instance]bool{},
		goroutine:  goid.Get(),
	}
}

func (e *Encoder) checkGoroutine() {
	if got := goid.Get(); got != e.goroutine {
		panic(fmt.Sprintf("binarycodec: Encoder created on goroutine %d, used from %d", e.goroutine, got))
	}
}

// Bytes returns the encoded stream so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Reset discards the accumulated buffer and shared/cycle state.
func (e *Encoder) Reset() {
	e.buf.Reset()
	e.sharedIDs = map[*object.Instance]uint32{}
	e.nextShared = 0
	e.inProgress = map[*object.Instance]bool{}
}

// Encode appends inst's wire encoding to the stream.
func (e *Encoder) Encode(inst *object.Instance) error {
	e.checkGoroutine()
	return e.encodeStruct(inst)
}

func (e *Encoder) encodeStruct(inst *object.Instance) error {
	if inst == nil {
		e.buf.WriteByte(wire.Header(0, wire.End))
		return nil
	}
	if e.inProgress[inst] {
		return fmt.Errorf("binarycodec: cycle detected encoding %s", inst.Descriptor().FullName())
	}
	e.inProgress[inst] = true
	defer delete(e.inProgress, inst)

	desc := inst.Descriptor()
	var lastID uint32
	if desc.TypeID != nil {
		e.writeExplicitHeader(wire.Subtype, *desc.TypeID)
		lastID = 0
	}
	for _, fd := range desc.Fields {
		if !inst.Has(fd) {
			continue
		}
		if err := e.encodeField(fd, inst.Get(fd), &lastID); err != nil {
			return err
		}
	}
	e.buf.WriteByte(wire.Header(0, wire.End))
	return nil
}

// encodeField writes one field header plus value, advancing lastID to
// fd.ID. The header is a packed (delta, wireType) byte when delta fits
// in a nibble, else an explicit-id header (spec §4.5).
func (e *Encoder) encodeField(fd *schema.FieldDescriptor, value interface{}, lastID *uint32) error {
	t := fd.Type

	if t.Kind() == schema.KindModified && t.IsShared() {
		return e.encodeSharedField(fd, value, lastID)
	}

	switch t.Kind() {
	case schema.KindBool:
		wt := wire.Zero
		if value.(bool) {
			wt = wire.One
		}
		e.writeFieldHeader(fd.ID, wt, lastID)
		return nil
	case schema.KindList, schema.KindSet:
		e.writeFieldHeader(fd.ID, listWireType(t, fieldIsFixed(fd)), lastID)
		return e.encodeListValue(t, value, fieldIsFixed(fd))
	case schema.KindMap:
		e.writeFieldHeader(fd.ID, wire.Map, lastID)
		return e.encodeMapValue(t, value)
	case schema.KindStruct:
		e.writeFieldHeader(fd.ID, wire.Struct, lastID)
		inst, _ := value.(*object.Instance)
		return e.encodeNested(inst)
	case schema.KindModified: // non-shared struct modifier (const)
		e.writeFieldHeader(fd.ID, wire.Struct, lastID)
		inst, _ := value.(*object.Instance)
		return e.encodeNested(inst)
	default:
		e.writeFieldHeader(fd.ID, scalarWireType(t, fieldIsFixed(fd)), lastID)
		return e.encodeScalarValue(t, value, fieldIsFixed(fd))
	}
}

// encodeSharedField writes a `shared`-typed struct field: a fresh
// Struct-tagged definition the first time inst is seen (the id is
// assigned implicitly, by allocation order, not written to the wire),
// or a Varint citing the previously assigned id on every subsequent
// sighting (spec §4.5 "Shared references").
func (e *Encoder) encodeSharedField(fd *schema.FieldDescriptor, value interface{}, lastID *uint32) error {
	inst, _ := value.(*object.Instance)
	if id, seen := e.sharedIDs[inst]; seen {
		e.writeFieldHeader(fd.ID, wire.Varint, lastID)
		e.writeVarint(uint64(id))
		return nil
	}
	e.writeFieldHeader(fd.ID, wire.Struct, lastID)
	e.nextShared++
	e.sharedIDs[inst] = e.nextShared
	// A shared instance may legitimately be reached again while its own
	// encoding is in progress; later sightings are cited by id.
	delete(e.inProgress, inst)
	return e.encodeNested(inst)
}

func (e *Encoder) writeFieldHeader(id uint32, wt wire.Type, lastID *uint32) {
	delta := id - *lastID
	if delta <= wire.MaxInlineDelta {
		e.buf.WriteByte(wire.Header(delta, wt))
	} else {
		e.writeExplicitHeader(wt, id)
	}
	*lastID = id
}

// scalarWireType picks the wire.Type for a non-collection, non-struct
// field: VARINT for ordinary integers/enums, or the width-specific
// FIXEDn code when the `fixed` field option forces raw packing (spec
// §4.5, §8 scenario 2's scalarFixedI16/32/64 fields).
func scalarWireType(t schema.Type, fixed bool) wire.Type {
	switch t.Kind() {
	case schema.KindInteger:
		if fixed {
			switch t.Bits() {
			case 16:
				return wire.Fixed16
			case 32:
				return wire.Fixed32
			case 64:
				return wire.Fixed64
			}
		}
		return wire.Varint
	case schema.KindEnum:
		return wire.Varint
	case schema.KindFloat:
		return wire.Float
	case schema.KindDouble:
		return wire.Double
	case schema.KindString, schema.KindBytes:
		return wire.Bytes
	case schema.KindStruct:
		return wire.Struct
	default:
		return wire.Bytes
	}
}

// listWireType picks LIST or, when `fixed` is set on a numeric-element
// list/set field, PLIST (spec §4.5 "Collections").
func listWireType(t schema.Type, fixed bool) wire.Type {
	if fixed && isNumericKind(t.Elem().Kind()) {
		return wire.PList
	}
	return wire.List
}

func isNumericKind(k schema.Kind) bool {
	switch k {
	case schema.KindInteger, schema.KindFloat, schema.KindDouble:
		return true
	default:
		return false
	}
}

// fieldIsFixed reports whether fd declares the `fixed` option (spec §4.5
// "Encoding of PLIST/FIXEDn is emitted when field option `fixed` is set").
func fieldIsFixed(fd *schema.FieldDescriptor) bool {
	v, ok := fd.Options.Get("fixed")
	return ok && v.Bool != nil && *v.Bool
}

func (e *Encoder) writeExplicitHeader(t wire.Type, id uint32) {
	e.buf.WriteByte(wire.Header(wire.ExplicitIDMarker, t))
	e.writeVarint(uint64(id))
}

func (e *Encoder) writeVarint(v uint64) {
	e.buf.Write(protowire.AppendVarint(nil, v))
}

func (e *Encoder) writeZigZag(v int64) {
	e.buf.Write(protowire.AppendVarint(nil, protowire.EncodeZigZag(v)))
}

func (e *Encoder) writeLengthPrefixed(b []byte) {
	e.writeVarint(uint64(len(b)))
	e.buf.Write(b)
}

func (e *Encoder) writeFloatRaw(v float32) {
	var buf [4]byte
	bits := math.Float32bits(v)
	for i := range buf {
		buf[i] = byte(bits >> (8 * i))
	}
	e.buf.Write(buf[:])
}

func (e *Encoder) writeDoubleRaw(v float64) {
	var buf [8]byte
	bits := math.Float64bits(v)
	for i := range buf {
		buf[i] = byte(bits >> (8 * i))
	}
	e.buf.Write(buf[:])
}

// writeFixedRaw writes value as a raw (non-zig-zag) fixed-width
// little-endian quantity: the FIXED16/32/64 integer packing, or the
// always-raw FLOAT/DOUBLE kinds.
func (e *Encoder) writeFixedRaw(t schema.Type, value interface{}) error {
	switch t.Kind() {
	case schema.KindInteger:
		v := value.(int64)
		switch t.Bits() {
		case 16:
			e.buf.WriteByte(byte(v))
			e.buf.WriteByte(byte(v >> 8))
		case 32:
			var buf [4]byte
			for i := range buf {
				buf[i] = byte(v >> (8 * i))
			}
			e.buf.Write(buf[:])
		case 64:
			var buf [8]byte
			for i := range buf {
				buf[i] = byte(v >> (8 * i))
			}
			e.buf.Write(buf[:])
		default:
			return fmt.Errorf("binarycodec: fixed option not valid for i%d", t.Bits())
		}
		return nil
	case schema.KindFloat:
		e.writeFloatRaw(value.(float32))
		return nil
	case schema.KindDouble:
		e.writeDoubleRaw(value.(float64))
		return nil
	default:
		return fmt.Errorf("binarycodec: %s is not a fixed-width numeric type", t.Kind())
	}
}

func (e *Encoder) encodeScalarValue(t schema.Type, value interface{}, fixed bool) error {
	switch t.Kind() {
	case schema.KindInteger:
		if fixed {
			return e.writeFixedRaw(t, value)
		}
		e.writeZigZag(value.(int64))
		return nil
	case schema.KindEnum:
		e.writeZigZag(value.(int64))
		return nil
	case schema.KindFloat:
		e.writeFloatRaw(value.(float32))
		return nil
	case schema.KindDouble:
		e.writeDoubleRaw(value.(float64))
		return nil
	case schema.KindString:
		e.writeLengthPrefixed([]byte(value.(string)))
		return nil
	case schema.KindBytes:
		e.writeLengthPrefixed(value.([]byte))
		return nil
	default:
		return fmt.Errorf("binarycodec: unsupported scalar kind %s", t.Kind())
	}
}

func collectionElems(kind schema.Kind, value interface{}) []interface{} {
	if kind == schema.KindSet {
		return value.(*object.Set).Elems
	}
	return value.(*object.List).Elems
}

// encodeListValue writes a LIST or PLIST body: an element-type tag
// byte, a varint length, then either individually-encoded elements
// (LIST) or tightly packed fixed-width elements with no per-element
// tag (PLIST; spec §4.5 "Collections").
func (e *Encoder) encodeListValue(t schema.Type, value interface{}, fixed bool) error {
	elemT := t.Elem()
	elems := collectionElems(t.Kind(), value)

	if fixed && isNumericKind(elemT.Kind()) {
		e.buf.WriteByte(byte(scalarWireType(elemT, true)))
		e.writeVarint(uint64(len(elems)))
		for _, el := range elems {
			if err := e.writeFixedRaw(elemT, el); err != nil {
				return err
			}
		}
		return nil
	}

	e.buf.WriteByte(byte(scalarWireType(elemT, false)))
	e.writeVarint(uint64(len(elems)))
	for _, el := range elems {
		if err := e.encodeElementValue(elemT, el); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeMapValue(t schema.Type, value interface{}) error {
	m := value.(*object.Map)
	keyT, valT := t.Key(), t.Val()
	e.buf.WriteByte(byte(scalarWireType(keyT, false))<<4 | byte(scalarWireType(valT, false)))
	e.writeVarint(uint64(len(m.Entries)))
	for _, entry := range m.Entries {
		if err := e.encodeElementValue(keyT, entry.Key); err != nil {
			return err
		}
		if err := e.encodeElementValue(valT, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// encodeElementValue encodes one list/set/map-key/map-value element.
// Collection elements are never Modified (analyzer.resolveCollection
// resolves them as plain types), so bool elements fall back to a plain
// VARINT 0/1 rather than the ZERO/ONE header optimization, which only
// applies to a field's own header byte.
func (e *Encoder) encodeElementValue(t schema.Type, value interface{}) error {
	switch t.Kind() {
	case schema.KindBool:
		if value.(bool) {
			e.writeVarint(1)
		} else {
			e.writeVarint(0)
		}
		return nil
	case schema.KindInteger, schema.KindEnum:
		e.writeZigZag(value.(int64))
		return nil
	case schema.KindFloat:
		e.writeFloatRaw(value.(float32))
		return nil
	case schema.KindDouble:
		e.writeDoubleRaw(value.(float64))
		return nil
	case schema.KindString:
		e.writeLengthPrefixed([]byte(value.(string)))
		return nil
	case schema.KindBytes:
		e.writeLengthPrefixed(value.([]byte))
		return nil
	case schema.KindStruct:
		inst, _ := value.(*object.Instance)
		return e.encodeNested(inst)
	default:
		return fmt.Errorf("binarycodec: unsupported collection element kind %s", t.Kind())
	}
}

// encodeNested encodes inst as a length-prefixed sub-message, so a
// decoder that doesn't recognize the struct's current shape can skip it.
func (e *Encoder) encodeNested(inst *object.Instance) error {
	sub := NewEncoder()
	sub.goroutine = e.goroutine
	sub.sharedIDs = e.sharedIDs
	sub.nextShared = e.nextShared
	sub.inProgress = e.inProgress
	if err := sub.encodeStruct(inst); err != nil {
		return err
	}
	e.nextShared = sub.nextShared
	e.writeLengthPrefixed(sub.Bytes())
	return nil
}
