package binarycodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/schema"
)

func buildPointFile() (*schema.FileDescriptor, *schema.StructDescriptor) {
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	sd := schema.NewStructDescriptor("Point")
	fd.AddStruct(sd)
	sd.AddField(schema.NewFieldDescriptor("x", 1, schema.Integer(32)))
	sd.AddField(schema.NewFieldDescriptor("y", 2, schema.Integer(32)))
	sd.AddField(schema.NewFieldDescriptor("label", 3, schema.String()))
	sd.AddField(schema.NewFieldDescriptor("tags", 4, schema.List(schema.String())))
	return fd, sd
}

func TestRoundTripScalarAndCollectionFields(t *testing.T) {
	t.Parallel()
	_, sd := buildPointFile()
	reg := registry.New()

	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(-7))
	inst.Set(sd.FieldByID(2), int64(42))
	inst.Set(sd.FieldByID(3), "origin")
	inst.Set(sd.FieldByID(4), &object.List{Elems: []interface{}{"a", "b"}})

	enc := NewEncoder()
	require.NoError(t, enc.Encode(inst))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(sd)
	require.NoError(t, err)

	require.True(t, inst.Equals(got))
}

func TestRoundTripOmitsAbsentFields(t *testing.T) {
	t.Parallel()
	_, sd := buildPointFile()
	reg := registry.New()

	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(1))

	enc := NewEncoder()
	require.NoError(t, enc.Encode(inst))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(sd)
	require.NoError(t, err)

	require.False(t, got.Has(sd.FieldByID(2)))
	require.False(t, got.Has(sd.FieldByID(3)))
}

func TestRoundTripNestedStruct(t *testing.T) {
	t.Parallel()
	fd, pointSD := buildPointFile()
	lineSD := schema.NewStructDescriptor("Line")
	fd.AddStruct(lineSD)
	lineSD.AddField(schema.NewFieldDescriptor("start", 1, schema.StructType(pointSD)))
	reg := registry.New()

	start := object.New(pointSD)
	start.Set(pointSD.FieldByID(1), int64(3))
	start.Set(pointSD.FieldByID(2), int64(4))

	line := object.New(lineSD)
	line.Set(lineSD.FieldByID(1), start)

	enc := NewEncoder()
	require.NoError(t, enc.Encode(line))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(lineSD)
	require.NoError(t, err)
	require.True(t, line.Equals(got))
}

func TestRoundTripSubtype(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("shapes.coda", "shapes")
	base := schema.NewStructDescriptor("Shape")
	fd.AddStruct(base)
	baseID := uint32(1)
	base.TypeID = &baseID
	base.ExtensionRange = &schema.ExtensionRange{Min: 100, Max: 200}

	circle := schema.NewStructDescriptor("Circle")
	fd.AddStruct(circle)
	circle.BaseType = base
	circleID := uint32(2)
	circle.TypeID = &circleID
	circle.AddField(schema.NewFieldDescriptor("radius", 1, schema.Integer(32)))

	reg := registry.New()
	require.NoError(t, reg.AddSubtype(circle))

	inst := object.New(circle)
	inst.Set(circle.FieldByID(1), int64(9))

	enc := NewEncoder()
	require.NoError(t, enc.Encode(inst))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(base)
	require.NoError(t, err)
	require.Equal(t, circle, got.Descriptor())
	require.True(t, inst.Equals(got))
}

func TestSharedRefInternsRepeatedValue(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	pointSD := schema.NewStructDescriptor("Point")
	fd.AddStruct(pointSD)
	pointSD.AddField(schema.NewFieldDescriptor("x", 1, schema.Integer(32)))

	pairSD := schema.NewStructDescriptor("Pair")
	fd.AddStruct(pairSD)
	sharedPoint := schema.Modified(schema.StructType(pointSD), false, true)
	pairSD.AddField(schema.NewFieldDescriptor("a", 1, sharedPoint))
	pairSD.AddField(schema.NewFieldDescriptor("b", 2, sharedPoint))

	shared := object.New(pointSD)
	shared.Set(pointSD.FieldByID(1), int64(5))

	pair := object.New(pairSD)
	pair.Set(pairSD.FieldByID(1), shared)
	pair.Set(pairSD.FieldByID(2), shared)

	reg := registry.New()
	enc := NewEncoder()
	require.NoError(t, enc.Encode(pair))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(pairSD)
	require.NoError(t, err)

	a := got.Get(pairSD.FieldByID(1)).(*object.Instance)
	b := got.Get(pairSD.FieldByID(2)).(*object.Instance)
	require.Same(t, a, b, "the two shared-ref citations must decode to the same instance")
}

func TestSharedSelfReferenceTerminatesViaInterning(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("cyclic.coda", "cyclic")
	sd := schema.NewStructDescriptor("Node")
	fd.AddStruct(sd)
	self := schema.Modified(schema.StructType(sd), false, true)
	sd.AddField(schema.NewFieldDescriptor("next", 1, self))

	a := object.New(sd)
	a.Set(sd.FieldByID(1), a)

	enc := NewEncoder()
	require.NoError(t, enc.Encode(a), "a shared-ref self-citation must terminate via interning once its id is assigned, not recurse forever")
}

func setFixed(fd *schema.FieldDescriptor) {
	fixed := true
	fd.Options.Set("fixed", "", schema.OptionValue{Bool: &fixed})
}

// TestRoundTripFixedScalarsUseDistinctWidths exercises spec §8 scenario
// 2: scalarFixedI16/32/64 fields only round-trip correctly if each width
// has its own wire type, since a `fixed` field is packed raw rather than
// zig-zagged and the decoder has no other way to know how many bytes to
// consume.
func TestRoundTripFixedScalarsUseDistinctWidths(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("fixed.coda", "fixed")
	sd := schema.NewStructDescriptor("Scalars")
	fd.AddStruct(sd)
	f16 := schema.NewFieldDescriptor("a", 1, schema.Integer(16))
	setFixed(f16)
	sd.AddField(f16)
	f32 := schema.NewFieldDescriptor("b", 2, schema.Integer(32))
	setFixed(f32)
	sd.AddField(f32)
	f64 := schema.NewFieldDescriptor("c", 3, schema.Integer(64))
	setFixed(f64)
	sd.AddField(f64)

	reg := registry.New()
	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(-1))
	inst.Set(sd.FieldByID(2), int64(-70000))
	inst.Set(sd.FieldByID(3), int64(-5000000000))

	enc := NewEncoder()
	require.NoError(t, enc.Encode(inst))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(sd)
	require.NoError(t, err)
	require.True(t, inst.Equals(got))
}

// TestRoundTripPListPacksNumericElementsWithoutPerElementFraming covers
// the PLIST wire shape the original declares but never implements (spec
// §4.5): a `fixed` list/set field of a numeric element type packs its
// elements raw, with a single length prefix rather than one per element.
func TestRoundTripPListPacksNumericElementsWithoutPerElementFraming(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("plist.coda", "plist")
	sd := schema.NewStructDescriptor("Samples")
	fd.AddStruct(sd)
	values := schema.NewFieldDescriptor("values", 1, schema.List(schema.Integer(32)))
	setFixed(values)
	sd.AddField(values)

	reg := registry.New()
	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), &object.List{Elems: []interface{}{int64(1), int64(-2), int64(3)}})

	enc := NewEncoder()
	require.NoError(t, enc.Encode(inst))

	dec := NewDecoder(enc.Bytes(), reg)
	got, err := dec.DecodeInto(sd)
	require.NoError(t, err)
	require.True(t, inst.Equals(got))
}
