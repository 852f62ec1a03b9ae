// Package wire defines the tag bytes and framing constants used by
// binarycodec (spec §4.5 "Wire Format").
package wire

// Type is the low nibble of a binary field header: the wire
// representation of a field's value, independent of its schema Kind
// (several Kinds share a wire Type, e.g. every integer width zig-zags
// to VARINT unless its `fixed` option forces raw packing).
type Type byte

const (
	End     Type = 0  // terminates a struct/subtype's field list
	Zero    Type = 1  // bool false; carries no payload
	One     Type = 2  // bool true; carries no payload
	Varint  Type = 3  // integer (zig-zag), enum, or a shared-field citation id
	Fixed16 Type = 4  // i16 field/element with the `fixed` option set
	Fixed32 Type = 5  // i32 field/element with the `fixed` option set
	Fixed64 Type = 6  // i64 field/element with the `fixed` option set
	Float   Type = 7
	Double  Type = 8
	Bytes   Type = 9 // string, bytes (length-prefixed)
	List    Type = 10
	PList   Type = 11 // list/set with `fixed`: packed fixed-width elements, no per-element tag
	Map     Type = 12
	Struct  Type = 13 // nested struct value (length-prefixed)
	Subtype Type = 14 // struct value that resets the delta-field counter

	// SharedRef marks a collection element citing a previously-seen shared
	// instance rather than inlining it again (spec §4.5 "Shared
	// references ... inside a collection"). It is a standalone byte, not
	// packed into a field header's nibble, so its value may exceed 15.
	// The current type system never allows a `shared` modifier on a
	// collection element (only plain fields take Modified types;
	// analyzer.resolveCollection resolves element types unmodified), so
	// this code has no reachable encoder/decoder path today and exists
	// for wire-format completeness.
	SharedRef Type = 0x10
)

// Header packs a field-id delta and a wire Type into the single
// control byte used when the delta fits in 4 bits (spec §4.5 "tag-delta
// field headers"). Deltas that don't fit use an explicit-id header
// instead (binarycodec's Encoder.writeExplicitHeader).
func Header(delta uint32, t Type) byte { return byte(delta<<4) | byte(t) }

// ExplicitIDMarker is the reserved delta nibble value signalling that
// the field id follows as an explicit varint rather than being derived
// from the running delta counter.
const ExplicitIDMarker = 0x0F

// MaxInlineDelta is the largest field-id delta encodable directly in a
// packed header's high nibble; ExplicitIDMarker is reserved and not a
// usable delta value.
const MaxInlineDelta = ExplicitIDMarker - 1
