// Package schema implements the CODA TypeModel and DescriptorGraph (spec
// §3, §4.4): the canonical representation of types, and the immutable
// (once frozen) graph of files, structs, enums, fields, methods, options,
// and extensions that the analyzer builds from an AST.
package schema

import (
	"fmt"
	"strings"
)

// Kind is the tag of the Type sum type (spec §3 "Type (sum)").
type Kind int

const (
	KindBool Kind = iota
	KindInteger
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindList
	KindSet
	KindMap
	KindModified
	KindStruct
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	case KindModified:
		return "modified"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Type is CODA's canonical type representation (spec §3). It is an
// immutable value; collection/modified types are built recursively from
// element Types and declared types wrap a Descriptor pointer.
type Type struct {
	kind   Kind
	bits   int // KindInteger: 16, 32, or 64
	elem   *Type
	key    *Type
	val    *Type
	const_ bool // KindModified
	shared bool // KindModified
	sd     *StructDescriptor
	ed     *EnumDescriptor
}

func Bool() Type             { return Type{kind: KindBool} }
func Integer(bits int) Type  { return Type{kind: KindInteger, bits: bits} }
func Float() Type            { return Type{kind: KindFloat} }
func Double() Type           { return Type{kind: KindDouble} }
func String() Type           { return Type{kind: KindString} }
func Bytes() Type            { return Type{kind: KindBytes} }

func List(elem Type) Type { return Type{kind: KindList, elem: &elem} }
func Set(elem Type) Type  { return Type{kind: KindSet, elem: &elem} }
func Map(key, val Type) Type {
	return Type{kind: KindMap, key: &key, val: &val}
}

// Modified wraps elem (which must be a Struct type) with const/shared
// modifiers (spec §3).
func Modified(elem Type, isConst, isShared bool) Type {
	return Type{kind: KindModified, elem: &elem, const_: isConst, shared: isShared}
}

func StructType(sd *StructDescriptor) Type { return Type{kind: KindStruct, sd: sd} }
func EnumType(ed *EnumDescriptor) Type     { return Type{kind: KindEnum, ed: ed} }

func (t Type) Kind() Kind              { return t.kind }
func (t Type) Bits() int               { return t.bits }
func (t Type) Elem() Type              { return *t.elem }
func (t Type) Key() Type               { return *t.key }
func (t Type) Val() Type               { return *t.val }
func (t Type) IsConst() bool           { return t.const_ }
func (t Type) IsShared() bool          { return t.shared }
func (t Type) Struct() *StructDescriptor { return t.sd }
func (t Type) Enum() *EnumDescriptor     { return t.ed }

func (t Type) IsPrimitive() bool {
	switch t.kind {
	case KindBool, KindInteger, KindFloat, KindDouble, KindString, KindBytes:
		return true
	default:
		return false
	}
}

func (t Type) IsCollection() bool {
	switch t.kind {
	case KindList, KindSet, KindMap:
		return true
	default:
		return false
	}
}

func (t Type) IsDeclared() bool {
	return t.kind == KindStruct || t.kind == KindEnum
}

// CanonicalKey returns the deduplication identity for a Type: a string
// built from the variant tag plus the recursive keys of its parameters
// and any bits/flags, per spec §3 ("Every Type exposes a canonical key").
// Declared types (struct/enum) key on their fully qualified name so two
// Type values referring to the same descriptor always compare equal.
func (t Type) CanonicalKey() string {
	switch t.kind {
	case KindBool, KindFloat, KindDouble, KindString, KindBytes:
		return t.kind.String()
	case KindInteger:
		return fmt.Sprintf("i%d", t.bits)
	case KindList:
		return "list[" + t.elem.CanonicalKey() + "]"
	case KindSet:
		return "set[" + t.elem.CanonicalKey() + "]"
	case KindMap:
		return "map[" + t.key.CanonicalKey() + "," + t.val.CanonicalKey() + "]"
	case KindModified:
		var sb strings.Builder
		if t.const_ {
			sb.WriteString("const ")
		}
		if t.shared {
			sb.WriteString("shared ")
		}
		sb.WriteString(t.elem.CanonicalKey())
		return sb.String()
	case KindStruct:
		return "struct:" + t.sd.FullName()
	case KindEnum:
		return "enum:" + t.ed.FullName()
	default:
		return "?"
	}
}

func (t Type) String() string { return t.CanonicalKey() }

// Equal reports whether two Types have the same canonical key.
func (t Type) Equal(o Type) bool { return t.CanonicalKey() == o.CanonicalKey() }

// Legality predicates (spec §3 "Legality (enforced by Analyzer)").

// ValidListElem reports whether t may be a list/map-value element type:
// all primitives, list, set, map, struct, or enum.
func ValidListElem(t Type) bool {
	switch t.kind {
	case KindBool, KindInteger, KindFloat, KindDouble, KindString, KindBytes,
		KindList, KindSet, KindMap, KindStruct, KindEnum:
		return true
	default:
		return false
	}
}

// ValidSetElem reports whether t may be a set element or map key type:
// integer, string, bytes, struct, or enum.
func ValidSetElem(t Type) bool {
	switch t.kind {
	case KindInteger, KindString, KindBytes, KindStruct, KindEnum:
		return true
	default:
		return false
	}
}

// ValidModifiedElem reports whether t may be wrapped by Modified: only a
// Struct type.
func ValidModifiedElem(t Type) bool {
	return t.kind == KindStruct
}
