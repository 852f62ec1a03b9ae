// Package ast defines the abstract syntax tree produced by the CODA
// parser (spec §4.2). Every node carries a SourcePos so the analyzer and
// reporter can point at the exact source location of a declaration.
package ast

// TypeName is a (possibly dotted) reference to a type, optionally
// parameterized (generic collections use `name[args]`, e.g. `list[string]`).
type TypeName struct {
	Pos  SourcePos
	Name string // dotted name, e.g. "foo.Bar" or built-in "list"
	Args []TypeName
}

// ModifiedType wraps a base TypeName with `const`/`shared` modifiers, e.g.
// `const shared Node`. Only legal around a declared Struct type (spec §3).
type ModifiedType struct {
	Pos    SourcePos
	Base   TypeName
	Const  bool
	Shared bool
}

// FieldType is the union of a plain TypeName and a ModifiedType, as they
// appear in field declarations.
type FieldType struct {
	Pos      SourcePos
	Plain    *TypeName
	Modified *ModifiedType
}

// Option is one `name[:scope] = value;` or bracketed `[name = value]` entry.
type Option struct {
	Pos   SourcePos
	Name  string
	Scope string // empty if unscoped
	Value OptionValue
}

// OptionValue is the literal value assigned to an option. Exactly one field
// is set, per spec §4.3 ("Value coercion"): bool/int/string literals, or a
// list of recursively coerced values. Float and bytes literals are
// explicitly unimplemented (spec §4.3, §9) and the parser rejects them.
type OptionValue struct {
	Pos    SourcePos
	Bool   *bool
	Int    *int64
	Str    *string
	List   []OptionValue
}

// Field is a struct field declaration: `name: type = index [options];`.
type Field struct {
	Pos     SourcePos
	Name    string
	Type    FieldType
	Index   uint32
	Options []Option
}

// Param is one method parameter.
type Param struct {
	Pos  SourcePos
	Name string
	Type FieldType
}

// Method is a struct method stub: not serialized, emitted as a
// target-language method signature (spec §4.3 Descriptor entities).
type Method struct {
	Pos        SourcePos
	Name       string
	Params     []Param
	ReturnType *FieldType // nil if void
	Index      uint32
	Options    []Option
}

// ExtensionRange is a struct's `extensions N to M;` declaration.
// Zero value means "no extension range declared."
type ExtensionRange struct {
	Pos      SourcePos
	Min, Max uint32
	Declared bool
}

// SubtypeDecl is the optional `(Base) = id` / `= id` clause on a struct
// header (spec §4.2 grammar notes).
type SubtypeDecl struct {
	Pos          SourcePos
	BaseType     *TypeName // nil if the struct declares only a typeId
	TypeIDLit    *int64    // set if the id was a literal integer
	TypeIDIdent  *TypeName // set if the id was a dotted enum-value reference
}

// StructDef is a `struct Name ... { ... }` declaration.
type StructDef struct {
	Pos            SourcePos
	Name           string
	Subtype        *SubtypeDecl
	ExtensionRange ExtensionRange
	Fields         []Field
	Methods        []Method
	Structs        []*StructDef
	Enums          []*EnumDef
	Extensions     []ExtendDef
	Options        []Option
}

// EnumValue is one `NAME = number;` entry of an enum.
type EnumValue struct {
	Pos   SourcePos
	Name  string
	Value int64
}

// EnumDef is an `enum Name { ... }` declaration.
type EnumDef struct {
	Pos     SourcePos
	Name    string
	Values  []EnumValue
	Options []Option
}

// ExtendDef is an `extend Target { field declarations }` block, registering
// ExtensionFields against Target's declared extension range.
type ExtendDef struct {
	Pos    SourcePos
	Target TypeName
	Fields []Field
}

// Import is one `import ["public"] "path";` declaration.
type Import struct {
	Pos    SourcePos
	Path   string
	Public bool
}

// File is the root AST node for one parsed .coda source file.
type File struct {
	Pos        SourcePos
	Path       string
	Package    string
	Imports    []Import
	Options    []Option
	Structs    []*StructDef
	Enums      []*EnumDef
	Extensions []ExtendDef
}
