package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codaschema/coda/schema"
)

func pointDescriptor() *schema.StructDescriptor {
	sd := schema.NewStructDescriptor("Point")
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	fd.AddStruct(sd)
	sd.AddField(schema.NewFieldDescriptor("x", 1, schema.Integer(32)))
	sd.AddField(schema.NewFieldDescriptor("y", 2, schema.Integer(32)))
	sd.AddField(schema.NewFieldDescriptor("tags", 3, schema.List(schema.String())))
	return sd
}

func TestPresenceScalar(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	inst := New(sd)
	x := sd.FieldByID(1)

	assert.False(t, inst.Has(x))
	inst.Set(x, int64(5))
	assert.True(t, inst.Has(x))
	assert.Equal(t, int64(5), inst.Get(x))

	inst.Clear(x)
	assert.False(t, inst.Has(x))
	assert.Equal(t, int64(0), inst.Get(x))
}

func TestPresenceCollectionIsEmptinessOnly(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	inst := New(sd)
	tags := sd.FieldByID(3)

	assert.False(t, inst.Has(tags))
	inst.Set(tags, &List{Elems: []interface{}{"a"}})
	assert.True(t, inst.Has(tags))
	inst.Set(tags, &List{})
	assert.False(t, inst.Has(tags), "an explicitly-set but empty list field must read back as absent")
}

func TestFreezePanicsOnMutation(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	inst := New(sd)
	inst.Freeze(false)
	assert.False(t, inst.IsMutable())
	assert.Panics(t, func() { inst.Set(sd.FieldByID(1), int64(1)) })
}

func TestFreezeDeepFreezesNestedInstances(t *testing.T) {
	t.Parallel()
	parent := schema.NewStructDescriptor("Line")
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	fd.AddStruct(parent)
	pointSD := pointDescriptor()
	parent.AddField(schema.NewFieldDescriptor("start", 1, schema.StructType(pointSD)))

	line := New(parent)
	start := New(pointSD)
	line.Set(parent.FieldByID(1), start)

	line.Freeze(true)
	assert.False(t, start.IsMutable(), "deep freeze must recursively freeze owned struct fields")
}

func TestEqualsOnlyComparesPresentFields(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	a := New(sd)
	b := New(sd)
	a.Set(sd.FieldByID(1), int64(1))
	b.Set(sd.FieldByID(1), int64(1))
	assert.True(t, a.Equals(b))

	b.Set(sd.FieldByID(2), int64(2))
	assert.False(t, a.Equals(b))
}

func TestHashRequiresFrozen(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	inst := New(sd)
	assert.Panics(t, func() { inst.Hash() })
	inst.Freeze(true)
	require.NotPanics(t, func() { inst.Hash() })
}

func TestHashStableAcrossInsertionOrder(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	a := New(sd)
	a.Set(sd.FieldByID(2), int64(2))
	a.Set(sd.FieldByID(1), int64(1))
	a.Freeze(true)

	b := New(sd)
	b.Set(sd.FieldByID(1), int64(1))
	b.Set(sd.FieldByID(2), int64(2))
	b.Freeze(true)

	assert.Equal(t, a.Hash(), b.Hash())
}

func TestShallowCopyIsIndependentAndMutable(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	orig := New(sd)
	orig.Set(sd.FieldByID(1), int64(1))
	orig.Freeze(false)

	cp := orig.ShallowCopy()
	assert.True(t, cp.IsMutable())
	cp.Set(sd.FieldByID(1), int64(99))
	assert.Equal(t, int64(1), orig.Get(sd.FieldByID(1)))
	assert.Equal(t, int64(99), cp.Get(sd.FieldByID(1)))
}

func TestDefaultInstanceIsFrozenAndCached(t *testing.T) {
	t.Parallel()
	sd := pointDescriptor()
	first := DefaultInstance(sd)
	second := DefaultInstance(sd)
	assert.Same(t, first, second)
	assert.False(t, first.IsMutable())
}

func TestMergeConcatenatesCollectionsAndReplacesStructFields(t *testing.T) {
	t.Parallel()
	parent := schema.NewStructDescriptor("Path")
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	fd.AddStruct(parent)
	pointSD := pointDescriptor()
	parent.AddField(schema.NewFieldDescriptor("start", 1, schema.StructType(pointSD)))
	parent.AddField(schema.NewFieldDescriptor("tags", 2, schema.List(schema.String())))

	dst := New(parent)
	dstStart := New(pointSD)
	dstStart.Set(pointSD.FieldByID(1), int64(1))
	dst.Set(parent.FieldByID(1), dstStart)
	dst.Set(parent.FieldByID(2), &List{Elems: []interface{}{"a"}})

	src := New(parent)
	srcStart := New(pointSD)
	srcStart.Set(pointSD.FieldByID(2), int64(2))
	src.Set(parent.FieldByID(1), srcStart)
	src.Set(parent.FieldByID(2), &List{Elems: []interface{}{"b"}})

	dst.Merge(src)

	merged := dst.Get(parent.FieldByID(1)).(*Instance)
	assert.False(t, merged.Has(pointSD.FieldByID(1)), "merge replaces a present struct-typed field wholesale, it does not fold into dst's existing value")
	assert.Equal(t, int64(2), merged.Get(pointSD.FieldByID(2)), "merge replaces the struct field with src's instance")

	tags := dst.Get(parent.FieldByID(2)).(*List)
	assert.Equal(t, []interface{}{"a", "b"}, tags.Elems, "merge concatenates list fields rather than replacing them")
}
