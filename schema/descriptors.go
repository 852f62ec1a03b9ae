package schema

import "fmt"

// OptionValue is a coerced option literal (spec §4.3 "Value coercion"):
// bool, integer, string/bytes, or a recursively coerced list. A map-typed
// options field (used for scoped options, `name:scope = value`) is
// represented as Map, keyed by scope.
type OptionValue struct {
	Bool *bool
	Int  *int64
	Str  *string
	List []OptionValue
	Map  map[string]OptionValue
}

// OptionsRecord holds the typed options attached to one descriptor. Per
// spec §3 ("OptionsRecord ... itself a descriptor-defined struct"), the
// Python original bootstraps the options schema through the same
// reflective descriptor machinery as user schemas. This rewrite follows
// design note §9 and uses a single static field table per context
// (compiled alongside the runtime) instead of a circular bootstrap dance;
// see schema/optionschema.go.
type OptionsRecord struct {
	Context string // "file", "struct", "field", "enum", "method"
	values  map[string]OptionValue
	frozen  bool
}

func NewOptionsRecord(context string) *OptionsRecord {
	return &OptionsRecord{Context: context, values: map[string]OptionValue{}}
}

func (o *OptionsRecord) checkMutable() {
	if o.frozen {
		panic(fmt.Sprintf("mutation of frozen %s options", o.Context))
	}
}

// Set stores value under name (or, if scope != "", under name's map entry
// keyed by scope; spec §4.3 phase C).
func (o *OptionsRecord) Set(name, scope string, value OptionValue) {
	o.checkMutable()
	if scope == "" {
		o.values[name] = value
		return
	}
	existing, ok := o.values[name]
	if !ok || existing.Map == nil {
		existing = OptionValue{Map: map[string]OptionValue{}}
	}
	existing.Map[scope] = value
	o.values[name] = existing
}

// Get returns the raw option value for name, if present.
func (o *OptionsRecord) Get(name string) (OptionValue, bool) {
	v, ok := o.values[name]
	return v, ok
}

// GetScoped returns the value under name:scope, if present.
func (o *OptionsRecord) GetScoped(name, scope string) (OptionValue, bool) {
	v, ok := o.values[name]
	if !ok || v.Map == nil {
		return OptionValue{}, false
	}
	sv, ok := v.Map[scope]
	return sv, ok
}

func (o *OptionsRecord) Freeze() { o.frozen = true }
func (o *OptionsRecord) IsFrozen() bool { return o.frozen }

// ImportDescriptor is one file's resolved import of another.
type ImportDescriptor struct {
	Path   string
	Public bool
	// PackageMap maps a target language (e.g. "python", "cpp") to the
	// package/namespace that language's codegen should use for the
	// imported file, per spec §3 "per-language package map".
	PackageMap map[string]string
}

// FileDescriptor is the top-level descriptor for one compiled .coda file
// (spec §3 "FileDescriptor").
type FileDescriptor struct {
	Name      string
	Directory string
	Package   string
	Structs   []*StructDescriptor
	Enums     []*EnumDescriptor
	Imports   []*ImportDescriptor
	// Extensions holds ExtensionFields declared at file scope (outside any
	// enclosing struct) via a top-level `extend` block.
	Extensions []*ExtensionField
	Options    *OptionsRecord

	frozen bool
}

func NewFileDescriptor(name, pkg string) *FileDescriptor {
	return &FileDescriptor{Name: name, Package: pkg, Options: NewOptionsRecord("file")}
}

func (f *FileDescriptor) checkMutable() {
	if f.frozen {
		panic(fmt.Sprintf("mutation of frozen file descriptor %q", f.Name))
	}
}

func (f *FileDescriptor) AddStruct(sd *StructDescriptor) {
	f.checkMutable()
	sd.File = f
	f.Structs = append(f.Structs, sd)
}

func (f *FileDescriptor) AddEnum(ed *EnumDescriptor) {
	f.checkMutable()
	ed.File = f
	f.Enums = append(f.Enums, ed)
}

func (f *FileDescriptor) AddExtension(ef *ExtensionField) {
	f.checkMutable()
	f.Extensions = append(f.Extensions, ef)
}

// Freeze recursively freezes every struct, enum, and option record owned
// by this file, then the file itself (spec §3 "Lifecycle").
func (f *FileDescriptor) Freeze() {
	if f.frozen {
		return
	}
	for _, sd := range f.Structs {
		sd.Freeze()
	}
	for _, ed := range f.Enums {
		ed.Freeze()
	}
	for _, ef := range f.Extensions {
		ef.Field.Freeze()
	}
	f.Options.Freeze()
	f.frozen = true
}

func (f *FileDescriptor) IsFrozen() bool { return f.frozen }

// ExtensionRange is a struct's reserved field-id range for extensions
// (spec §3, invariant 2).
type ExtensionRange struct {
	Min, Max uint32
}

func (r ExtensionRange) Contains(id uint32) bool { return id >= r.Min && id <= r.Max }

// StructDescriptor describes one struct type (spec §3 "StructDescriptor").
type StructDescriptor struct {
	Name      string
	File      *FileDescriptor
	Enclosing *StructDescriptor // nil if top-level in its file

	Fields  []*FieldDescriptor // ordered by id
	Methods []*MethodDescriptor

	NestedStructs []*StructDescriptor
	NestedEnums   []*EnumDescriptor

	BaseType       *StructDescriptor // nil if no inheritance
	TypeID         *uint32           // nil if not declared
	ExtensionRange *ExtensionRange   // nil if not declared
	Shared         bool              // struct carries a `shared`/`reference` modifier somewhere it is referenced; tracked for invariant 4

	Options *OptionsRecord

	fieldsByID   map[uint32]*FieldDescriptor
	methodsByID  map[uint32]*MethodDescriptor
	extensionsByID map[uint32]*ExtensionField

	frozen bool
}

func NewStructDescriptor(name string) *StructDescriptor {
	return &StructDescriptor{
		Name:           name,
		Options:        NewOptionsRecord("struct"),
		fieldsByID:     map[uint32]*FieldDescriptor{},
		methodsByID:    map[uint32]*MethodDescriptor{},
		extensionsByID: map[uint32]*ExtensionField{},
	}
}

func (s *StructDescriptor) checkMutable() {
	if s.frozen {
		panic(fmt.Sprintf("mutation of frozen struct descriptor %q", s.FullName()))
	}
}

// FullName returns the dotted package.Outer.Inner name of this struct.
func (s *StructDescriptor) FullName() string {
	name := s.Name
	for e := s.Enclosing; e != nil; e = e.Enclosing {
		name = e.Name + "." + name
	}
	if s.File != nil && s.File.Package != "" {
		name = s.File.Package + "." + name
	}
	return name
}

func (s *StructDescriptor) AddField(fd *FieldDescriptor) {
	s.checkMutable()
	fd.Owner = s
	i := len(s.Fields)
	for i > 0 && s.Fields[i-1].ID > fd.ID {
		i--
	}
	s.Fields = append(s.Fields, nil)
	copy(s.Fields[i+1:], s.Fields[i:])
	s.Fields[i] = fd
	s.fieldsByID[fd.ID] = fd
}

func (s *StructDescriptor) FieldByID(id uint32) *FieldDescriptor { return s.fieldsByID[id] }

func (s *StructDescriptor) FieldByName(name string) *FieldDescriptor {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (s *StructDescriptor) AddMethod(md *MethodDescriptor) {
	s.checkMutable()
	md.Owner = s
	s.Methods = append(s.Methods, md)
	s.methodsByID[md.Index] = md
}

func (s *StructDescriptor) MethodByID(id uint32) *MethodDescriptor { return s.methodsByID[id] }

func (s *StructDescriptor) AddExtensionField(ef *ExtensionField) {
	s.checkMutable()
	s.extensionsByID[ef.Field.ID] = ef
}

func (s *StructDescriptor) ExtensionByID(id uint32) *ExtensionField { return s.extensionsByID[id] }

func (s *StructDescriptor) AddNestedStruct(nested *StructDescriptor) {
	s.checkMutable()
	nested.Enclosing = s
	nested.File = s.File
	s.NestedStructs = append(s.NestedStructs, nested)
}

func (s *StructDescriptor) AddNestedEnum(nested *EnumDescriptor) {
	s.checkMutable()
	nested.File = s.File
	s.NestedEnums = append(s.NestedEnums, nested)
}

// SubtypeRoot walks BaseType pointers up to the topmost ancestor (spec
// §4.3 phase B.2 "the subtype root"). The walk does not look at TypeID:
// the root is the last struct in the BaseType chain, whether or not it
// declares a TypeID of its own.
func (s *StructDescriptor) SubtypeRoot() *StructDescriptor {
	root := s
	for root.BaseType != nil {
		root = root.BaseType
	}
	return root
}

// AllFields returns fields in declared (id) order, matching the
// descriptor-driven traversal used by equality, hashing, and the codecs.
// It does not include inherited fields: CODA structs carry only their own
// level's fields, with subtype framing handling the rest (spec §4.5).
func (s *StructDescriptor) AllFields() []*FieldDescriptor { return s.Fields }

// Freeze makes this descriptor and everything it owns immutable (spec §3
// "Lifecycle").
func (s *StructDescriptor) Freeze() {
	if s.frozen {
		return
	}
	for _, f := range s.Fields {
		f.Freeze()
	}
	for _, m := range s.Methods {
		m.Freeze()
	}
	for _, n := range s.NestedStructs {
		n.Freeze()
	}
	for _, n := range s.NestedEnums {
		n.Freeze()
	}
	s.Options.Freeze()
	s.frozen = true
}

func (s *StructDescriptor) IsFrozen() bool { return s.frozen }

// EnumValueDescriptor is one `(name, integer)` pair of an enum.
type EnumValueDescriptor struct {
	Name  string
	Value int64
}

// EnumDescriptor describes one enum type (spec §3 "EnumDescriptor").
type EnumDescriptor struct {
	Name      string
	File      *FileDescriptor
	Enclosing *StructDescriptor
	Values    []EnumValueDescriptor
	Options   *OptionsRecord

	byName  map[string]int64
	byValue map[int64]string
	frozen  bool
}

func NewEnumDescriptor(name string) *EnumDescriptor {
	return &EnumDescriptor{
		Name:    name,
		Options: NewOptionsRecord("enum"),
		byName:  map[string]int64{},
		byValue: map[int64]string{},
	}
}

func (e *EnumDescriptor) checkMutable() {
	if e.frozen {
		panic(fmt.Sprintf("mutation of frozen enum descriptor %q", e.FullName()))
	}
}

func (e *EnumDescriptor) FullName() string {
	name := e.Name
	if e.Enclosing != nil {
		name = e.Enclosing.FullName() + "." + name
	} else if e.File != nil && e.File.Package != "" {
		name = e.File.Package + "." + name
	}
	return name
}

func (e *EnumDescriptor) AddValue(name string, value int64) {
	e.checkMutable()
	e.Values = append(e.Values, EnumValueDescriptor{Name: name, Value: value})
	e.byName[name] = value
	e.byValue[value] = name
}

func (e *EnumDescriptor) ValueByName(name string) (int64, bool) {
	v, ok := e.byName[name]
	return v, ok
}

func (e *EnumDescriptor) NameByValue(value int64) (string, bool) {
	n, ok := e.byValue[value]
	return n, ok
}

func (e *EnumDescriptor) Freeze() {
	if e.frozen {
		return
	}
	e.Options.Freeze()
	e.frozen = true
}

func (e *EnumDescriptor) IsFrozen() bool { return e.frozen }

// FieldDescriptor describes one struct field (spec §3 "FieldDescriptor").
type FieldDescriptor struct {
	Name    string
	ID      uint32
	Type    Type
	Options *OptionsRecord
	Owner   *StructDescriptor
	// ByteOffset is target-dependent storage layout information threaded
	// through to codegen backends; unused by the codecs themselves.
	ByteOffset int

	frozen bool
}

func NewFieldDescriptor(name string, id uint32, t Type) *FieldDescriptor {
	return &FieldDescriptor{Name: name, ID: id, Type: t, Options: NewOptionsRecord("field")}
}

func (f *FieldDescriptor) IsBool() bool { return f.Type.Kind() == KindBool }

func (f *FieldDescriptor) Freeze() {
	if f.frozen {
		return
	}
	f.Options.Freeze()
	f.frozen = true
}

func (f *FieldDescriptor) IsFrozen() bool { return f.frozen }

// ExtensionField is a field declared outside its owning struct and
// registered against an extensible base's reserved range (spec §3
// "ExtensionField").
type ExtensionField struct {
	Field   *FieldDescriptor
	Extends *StructDescriptor
	Line    int
}

// ParamDescriptor is one method parameter.
type ParamDescriptor struct {
	Name string
	Type Type
}

// MethodDescriptor describes a method stub (spec §3 "MethodDescriptor").
// Methods are not serialized; codegen emits them as target-language
// method signatures only.
type MethodDescriptor struct {
	Name       string
	Index      uint32
	Params     []ParamDescriptor
	ReturnType *Type
	Options    *OptionsRecord
	Owner      *StructDescriptor

	frozen bool
}

func NewMethodDescriptor(name string, index uint32) *MethodDescriptor {
	return &MethodDescriptor{Name: name, Index: index, Options: NewOptionsRecord("method")}
}

func (m *MethodDescriptor) Freeze() {
	if m.frozen {
		return
	}
	m.Options.Freeze()
	m.frozen = true
}
