package textcodec

import (
	"strings"
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
	sd.AddField(schema.NewFieldDescriptor("payload", 4, schema.Bytes()))
	sd.AddField(schema.NewFieldDescriptor("tags", 5, schema.List(schema.String())))
	return fd, sd
}

func TestRoundTripScalarCollectionAndBinaryFields(t *testing.T) {
	t.Parallel()
	_, sd := buildPointFile()
	reg := registry.New()

	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(-7))
	inst.Set(sd.FieldByID(2), int64(42))
	inst.Set(sd.FieldByID(3), "origin")
	inst.Set(sd.FieldByID(4), []byte{0xDE, 0xAD, 0xBE, 0xEF})
	inst.Set(sd.FieldByID(5), &object.List{Elems: []interface{}{"a", "b"}})

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(inst))

	got, err := NewDecoder(sb.String(), reg).Decode(sd)
	require.NoError(t, err)
	require.True(t, inst.Equals(got))
}

func TestEncodeRendersBinaryLiteralAsHex(t *testing.T) {
	t.Parallel()
	_, sd := buildPointFile()
	inst := object.New(sd)
	inst.Set(sd.FieldByID(4), []byte{0x01, 0xFF})

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(inst))
	require.Contains(t, sb.String(), "<[01ff]>")
}

func TestRoundTripOmitsAbsentFields(t *testing.T) {
	t.Parallel()
	_, sd := buildPointFile()
	reg := registry.New()

	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(1))

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(inst))

	got, err := NewDecoder(sb.String(), reg).Decode(sd)
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

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(line))

	got, err := NewDecoder(sb.String(), reg).Decode(lineSD)
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

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(inst))
	require.Contains(t, sb.String(), "$2 (shapes.Circle):")

	got, err := NewDecoder(sb.String(), reg).Decode(base)
	require.NoError(t, err)
	require.Same(t, circle, got.Descriptor())
	require.True(t, inst.Equals(got))
}

func TestRoundTripMapField(t *testing.T) {
	t.Parallel()
	fd := schema.NewFileDescriptor("geo.coda", "geo")
	sd := schema.NewStructDescriptor("Scores")
	fd.AddStruct(sd)
	sd.AddField(schema.NewFieldDescriptor("byName", 1, schema.Map(schema.String(), schema.Integer(32))))
	reg := registry.New()

	m := &object.Map{}
	m.Set("alice", int64(1))
	m.Set("bob", int64(2))
	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), m)

	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(inst))

	got, err := NewDecoder(sb.String(), reg).Decode(sd)
	require.NoError(t, err)
	require.True(t, inst.Equals(got))
}

func TestSharedRefCitesSecondOccurrenceByID(t *testing.T) {
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
	var sb strings.Builder
	require.NoError(t, NewEncoder(&sb).Encode(pair))
	require.Contains(t, sb.String(), "#1 ")
	require.Contains(t, sb.String(), "%1")

	got, err := NewDecoder(sb.String(), reg).Decode(pairSD)
	require.NoError(t, err)

	a := got.Get(pairSD.FieldByID(1)).(*object.Instance)
	b := got.Get(pairSD.FieldByID(2)).(*object.Instance)
	require.Same(t, a, b, "the two shared-ref citations must decode to the same instance")
}
