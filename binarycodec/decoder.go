package binarycodec

import (
	"fmt"
	"math"

	"github.com/petermattis/goid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/schema"
	"github.com/codaschema/coda/wire"
)

// Decoder parses CODA's binary wire format back into Instances. Like
// Encoder, it asserts single-goroutine use and is not safe to share.
type Decoder struct {
	buf       []byte
	pos       int
	reg       *registry.Registry
	sharedMap map[uint32]*object.Instance
	// nextShared is shared by pointer across every sub-Decoder created by
	// decodeNested, so nested struct fields continue the same id
	// allocation sequence as their enclosing message (mirrors Encoder's
	// copy-back of nextShared through encodeNested).
	nextShared *uint32
	goroutine  int64
}

// NewDecoder creates a Decoder reading from buf. reg resolves SUBTYPE
// ids to concrete StructDescriptors when decoding a polymorphic field
// (spec §4.4 "TypeRegistry").
func NewDecoder(buf []byte, reg *registry.Registry) *Decoder {
	var n uint32
	return &Decoder{buf: buf, reg: reg, sharedMap: map[uint32]*object.Instance{}, nextShared: &n, goroutine: goid.Get()}
}

func (d *Decoder) checkGoroutine() {
	if got := goid.Get(); got != d.goroutine {
		panic(fmt.Sprintf("binarycodec: Decoder created on goroutine %d, used from %d", d.goroutine, got))
	}
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, fmt.Errorf("binarycodec: unexpected end of buffer")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.buf[d.pos:])
	if n < 0 {
		return 0, fmt.Errorf("binarycodec: malformed varint")
	}
	d.pos += n
	return v, nil
}

func (d *Decoder) readZigZag() (int64, error) {
	v, err := d.readVarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("binarycodec: unexpected end of buffer")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readLengthPrefixed() ([]byte, error) {
	n, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	return d.readN(int(n))
}

// DecodeInto decodes one struct message into a freshly-created mutable
// Instance of desc (or, if the stream opens with a SUBTYPE header, of
// the registered subtype named by that id).
func (d *Decoder) DecodeInto(desc *schema.StructDescriptor) (*object.Instance, error) {
	d.checkGoroutine()
	return d.decodeStruct(desc)
}

// decodeStruct reads one field list, resolving an optional leading
// SUBTYPE header against desc before allocating the Instance, so that a
// polymorphic field decodes to its concrete runtime type (spec §4.4
// "TypeRegistry"; §4.5 "SUBTYPE framing").
func (d *Decoder) decodeStruct(desc *schema.StructDescriptor) (*object.Instance, error) {
	delta, wt, err := d.readHeader()
	if err != nil {
		return nil, err
	}

	var lastID uint32
	if delta == 0 && wt == wire.End {
		return object.New(desc), nil
	}
	if wt == wire.Subtype {
		id, err := d.readFieldID(delta, lastID)
		if err != nil {
			return nil, err
		}
		sub, ok := d.reg.Subtype(desc, id)
		if !ok {
			return nil, fmt.Errorf("binarycodec: unknown subtype id %d of %s", id, desc.FullName())
		}
		desc = sub
		lastID = 0
		delta, wt, err = d.readHeader()
		if err != nil {
			return nil, err
		}
	}

	inst := object.New(desc)
	for {
		if delta == 0 && wt == wire.End {
			return inst, nil
		}
		id, err := d.readFieldID(delta, lastID)
		if err != nil {
			return nil, err
		}
		fd := desc.FieldByID(id)
		if fd == nil {
			if err := d.skipValue(wt); err != nil {
				return nil, err
			}
		} else {
			value, err := d.decodeFieldValue(fd, wt)
			if err != nil {
				return nil, err
			}
			inst.Set(fd, value)
		}
		lastID = id
		delta, wt, err = d.readHeader()
		if err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readHeader() (delta uint32, wt wire.Type, err error) {
	header, err := d.readByte()
	if err != nil {
		return 0, 0, err
	}
	return uint32(header >> 4), wire.Type(header & 0x0F), nil
}

func (d *Decoder) readFieldID(delta, lastID uint32) (uint32, error) {
	if delta == wire.ExplicitIDMarker {
		v, err := d.readVarint()
		return uint32(v), err
	}
	return lastID + delta, nil
}

// decodeFieldValue decodes one field's value given the field's schema
// type and the wire Type tag read from its header.
func (d *Decoder) decodeFieldValue(fd *schema.FieldDescriptor, wt wire.Type) (interface{}, error) {
	t := fd.Type

	if t.Kind() == schema.KindBool {
		switch wt {
		case wire.Zero:
			return false, nil
		case wire.One:
			return true, nil
		default:
			return nil, fmt.Errorf("binarycodec: field %q expected ZERO/ONE wire type for bool, got %d", fd.Name, wt)
		}
	}

	switch t.Kind() {
	case schema.KindList, schema.KindSet:
		return d.decodeListValue(t, wt)
	case schema.KindMap:
		return d.decodeMapValue(t)
	case schema.KindStruct:
		return d.decodeNested(t)
	case schema.KindModified:
		if t.IsShared() {
			return d.decodeSharedField(t, wt)
		}
		return d.decodeNested(t.Elem())
	default:
		return d.decodeScalarValue(t, wt)
	}
}

func (d *Decoder) decodeScalarValue(t schema.Type, wt wire.Type) (interface{}, error) {
	switch t.Kind() {
	case schema.KindInteger:
		switch wt {
		case wire.Varint:
			return d.readZigZag()
		case wire.Fixed16:
			b, err := d.readN(2)
			if err != nil {
				return nil, err
			}
			return int64(int16(uint16(b[0]) | uint16(b[1])<<8)), nil
		case wire.Fixed32:
			b, err := d.readN(4)
			if err != nil {
				return nil, err
			}
			v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
			return int64(int32(v)), nil
		case wire.Fixed64:
			b, err := d.readN(8)
			if err != nil {
				return nil, err
			}
			var v uint64
			for i := 0; i < 8; i++ {
				v |= uint64(b[i]) << (8 * i)
			}
			return int64(v), nil
		default:
			return nil, fmt.Errorf("binarycodec: unexpected wire type %d for integer field", wt)
		}
	case schema.KindEnum:
		return d.readZigZag()
	case schema.KindFloat:
		b, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return math.Float32frombits(bits), nil
	case schema.KindDouble:
		b, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(b[i]) << (8 * i)
		}
		return math.Float64frombits(bits), nil
	case schema.KindString:
		b, err := d.readLengthPrefixed()
		return string(b), err
	case schema.KindBytes:
		b, err := d.readLengthPrefixed()
		out := make([]byte, len(b))
		copy(out, b)
		return out, err
	default:
		return nil, fmt.Errorf("binarycodec: unsupported scalar kind %s", t.Kind())
	}
}

// readFixedRaw reads one PLIST-packed element: a raw (non-zig-zag)
// fixed-width value whose width is implied by elemT (spec §4.5 "PLIST
// ... decoder reads length × width bytes").
func (d *Decoder) readFixedRaw(elemT schema.Type) (interface{}, error) {
	switch elemT.Kind() {
	case schema.KindInteger:
		switch elemT.Bits() {
		case 16:
			b, err := d.readN(2)
			if err != nil {
				return nil, err
			}
			return int64(int16(uint16(b[0]) | uint16(b[1])<<8)), nil
		case 32:
			b, err := d.readN(4)
			if err != nil {
				return nil, err
			}
			v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
			return int64(int32(v)), nil
		case 64:
			b, err := d.readN(8)
			if err != nil {
				return nil, err
			}
			var v uint64
			for i := 0; i < 8; i++ {
				v |= uint64(b[i]) << (8 * i)
			}
			return int64(v), nil
		default:
			return nil, fmt.Errorf("binarycodec: fixed option not valid for i%d", elemT.Bits())
		}
	case schema.KindFloat:
		b, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return math.Float32frombits(bits), nil
	case schema.KindDouble:
		b, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(b[i]) << (8 * i)
		}
		return math.Float64frombits(bits), nil
	default:
		return nil, fmt.Errorf("binarycodec: %s is not a fixed-width numeric type", elemT.Kind())
	}
}

// decodeListValue reads a LIST or PLIST body (spec §4.5 "Collections").
func (d *Decoder) decodeListValue(t schema.Type, wt wire.Type) (interface{}, error) {
	if _, err := d.readByte(); err != nil { // element-type tag; schema drives interpretation
		return nil, err
	}
	n, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	elemT := t.Elem()
	isSet := t.Kind() == schema.KindSet

	var list *object.List
	var set *object.Set
	if isSet {
		set = &object.Set{}
	} else {
		list = &object.List{}
	}

	for i := uint64(0); i < n; i++ {
		var v interface{}
		var err error
		if wt == wire.PList {
			v, err = d.readFixedRaw(elemT)
		} else {
			v, err = d.decodeElementValue(elemT)
		}
		if err != nil {
			return nil, err
		}
		if isSet {
			set.Add(v)
		} else {
			list.Elems = append(list.Elems, v)
		}
	}
	if isSet {
		return set, nil
	}
	return list, nil
}

func (d *Decoder) decodeMapValue(t schema.Type) (interface{}, error) {
	if _, err := d.readByte(); err != nil { // (keyType<<4)|valType tag; schema drives interpretation
		return nil, err
	}
	n, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	m := &object.Map{}
	for i := uint64(0); i < n; i++ {
		k, err := d.decodeElementValue(t.Key())
		if err != nil {
			return nil, err
		}
		v, err := d.decodeElementValue(t.Val())
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}

// decodeElementValue decodes one list/set/map-key/map-value element.
// See Encoder.encodeElementValue: collection elements are never
// Modified, so bool elements are a plain VARINT 0/1.
func (d *Decoder) decodeElementValue(t schema.Type) (interface{}, error) {
	switch t.Kind() {
	case schema.KindBool:
		v, err := d.readVarint()
		return v != 0, err
	case schema.KindInteger, schema.KindEnum:
		return d.readZigZag()
	case schema.KindFloat:
		b, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		return math.Float32frombits(bits), nil
	case schema.KindDouble:
		b, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		var bits uint64
		for i := 0; i < 8; i++ {
			bits |= uint64(b[i]) << (8 * i)
		}
		return math.Float64frombits(bits), nil
	case schema.KindString:
		b, err := d.readLengthPrefixed()
		return string(b), err
	case schema.KindBytes:
		b, err := d.readLengthPrefixed()
		out := make([]byte, len(b))
		copy(out, b)
		return out, err
	case schema.KindStruct:
		v, err := d.decodeNested(t)
		return v, err
	default:
		return nil, fmt.Errorf("binarycodec: unsupported collection element kind %s", t.Kind())
	}
}

func (d *Decoder) decodeNested(t schema.Type) (interface{}, error) {
	b, err := d.readLengthPrefixed()
	if err != nil {
		return nil, err
	}
	sub := &Decoder{buf: b, reg: d.reg, sharedMap: d.sharedMap, nextShared: d.nextShared, goroutine: d.goroutine}
	return sub.decodeStruct(t.Struct())
}

// decodeSharedField mirrors Encoder.encodeSharedField: a Struct-tagged
// wire type is a first sighting (allocate the next id by counting, then
// decode it, matching the encoder's allocation order exactly); a
// Varint is a citation of a previously assigned id.
func (d *Decoder) decodeSharedField(t schema.Type, wt wire.Type) (interface{}, error) {
	switch wt {
	case wire.Varint:
		id, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		inst, ok := d.sharedMap[uint32(id)]
		if !ok {
			return nil, fmt.Errorf("binarycodec: shared reference to unknown id %d", id)
		}
		return inst, nil
	case wire.Struct:
		*d.nextShared++
		id := *d.nextShared
		v, err := d.decodeNested(t.Elem())
		if err != nil {
			return nil, err
		}
		inst, _ := v.(*object.Instance)
		d.sharedMap[id] = inst
		return inst, nil
	default:
		return nil, fmt.Errorf("binarycodec: unexpected wire type %d for shared struct field", wt)
	}
}

func (d *Decoder) skipValue(wt wire.Type) error {
	switch wt {
	case wire.Zero, wire.One:
		return nil
	case wire.Varint:
		_, err := d.readVarint()
		return err
	case wire.Fixed16:
		_, err := d.readN(2)
		return err
	case wire.Fixed32, wire.Float:
		_, err := d.readN(4)
		return err
	case wire.Fixed64, wire.Double:
		_, err := d.readN(8)
		return err
	case wire.Bytes, wire.Struct, wire.Subtype:
		_, err := d.readLengthPrefixed()
		return err
	case wire.List, wire.PList, wire.Map:
		// Collection elements carry no per-element header of their own
		// (their type is implied by the schema, not self-describing on
		// the wire beyond the leading element-type tag byte), so an
		// unknown collection field cannot be skipped without knowing its
		// declared element type. Decoding an unrecognized collection
		// field therefore fails rather than silently desyncing the stream.
		return fmt.Errorf("binarycodec: cannot skip unknown collection field (wire type %d)", wt)
	default:
		return fmt.Errorf("binarycodec: cannot skip unknown wire type %d", wt)
	}
}
