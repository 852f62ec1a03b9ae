package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKeyPrimitives(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bool", Bool().CanonicalKey())
	assert.Equal(t, "i16", Integer(16).CanonicalKey())
	assert.Equal(t, "i32", Integer(32).CanonicalKey())
	assert.Equal(t, "i64", Integer(64).CanonicalKey())
	assert.Equal(t, "float", Float().CanonicalKey())
	assert.Equal(t, "double", Double().CanonicalKey())
	assert.Equal(t, "string", String().CanonicalKey())
	assert.Equal(t, "bytes", Bytes().CanonicalKey())
}

func TestCanonicalKeyCollections(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "list[i32]", List(Integer(32)).CanonicalKey())
	assert.Equal(t, "set[string]", Set(String()).CanonicalKey())
	assert.Equal(t, "map[string,i64]", Map(String(), Integer(64)).CanonicalKey())
	assert.Equal(t, "list[list[bool]]", List(List(Bool())).CanonicalKey())
}

func TestCanonicalKeyDeclared(t *testing.T) {
	t.Parallel()
	sd := NewStructDescriptor("Point")
	fd := NewFileDescriptor("geo.coda", "geo")
	fd.AddStruct(sd)
	assert.Equal(t, "struct:geo.Point", StructType(sd).CanonicalKey())

	ed := NewEnumDescriptor("Color")
	fd.AddEnum(ed)
	assert.Equal(t, "enum:geo.Color", EnumType(ed).CanonicalKey())
}

func TestModifiedCanonicalKey(t *testing.T) {
	t.Parallel()
	sd := NewStructDescriptor("Node")
	fd := NewFileDescriptor("tree.coda", "tree")
	fd.AddStruct(sd)

	constShared := Modified(StructType(sd), true, true)
	require.True(t, ValidModifiedElem(StructType(sd)))
	assert.Equal(t, "const shared struct:tree.Node", constShared.CanonicalKey())

	plain := Modified(StructType(sd), false, false)
	assert.Equal(t, "struct:tree.Node", plain.CanonicalKey())
}

func TestEqual(t *testing.T) {
	t.Parallel()
	a := List(Integer(32))
	b := List(Integer(32))
	c := List(Integer(64))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestValidListElem(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidListElem(Bool()))
	assert.True(t, ValidListElem(List(Bool())))
	assert.True(t, ValidListElem(Map(String(), Bool())))
	assert.False(t, ValidListElem(Modified(StructType(NewStructDescriptor("X")), false, false)))
}

func TestValidSetElem(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidSetElem(Integer(32)))
	assert.True(t, ValidSetElem(String()))
	assert.False(t, ValidSetElem(Float()))
	assert.False(t, ValidSetElem(List(Bool())))
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "struct", KindStruct.String())
	assert.Equal(t, "unknown", Kind(999).String())
}
