package analyzer

import (
	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/schema"
)

// phaseA registers every struct and enum declared in f (and its nested
// declarations, recursively) into the global symbol table, building
// empty descriptor shells that phaseB fills in (spec §4.3 Phase A:
// "declaration registration per file"). Fully-qualified names are checked
// for collision against the global symbol table, and each struct's
// declared extension range is checked for min <= max.
func (a *Analyzer) phaseA(path string, f *ast.File) error {
	fd := schema.NewFileDescriptor(path, f.Package)
	fd.Directory = path

	for _, structDef := range f.Structs {
		sd := a.declareStruct(structDef, nil, fd)
		fd.AddStruct(sd)
	}
	for _, enumDef := range f.Enums {
		ed := a.declareEnum(enumDef, nil, fd)
		fd.AddEnum(ed)
	}

	a.fileMu.Lock()
	a.files[path] = fd
	a.fileMu.Unlock()
	return nil
}

// declareStruct builds a StructDescriptor shell for def (recursing into
// nested structs/enums) and registers it in the symbol table. Field,
// base-type, and typeId resolution happen in phaseB; only the shape of
// the namespace is established here.
func (a *Analyzer) declareStruct(def *ast.StructDef, enclosing *schema.StructDescriptor, fd *schema.FileDescriptor) *schema.StructDescriptor {
	sd := schema.NewStructDescriptor(def.Name)
	sd.File = fd
	if enclosing != nil {
		sd.Enclosing = enclosing
	}

	if def.ExtensionRange.Declared {
		if def.ExtensionRange.Min > def.ExtensionRange.Max {
			a.errorf(def.ExtensionRange.Pos, "extension range minimum %d exceeds maximum %d", def.ExtensionRange.Min, def.ExtensionRange.Max)
		} else {
			sd.ExtensionRange = &schema.ExtensionRange{Min: def.ExtensionRange.Min, Max: def.ExtensionRange.Max}
		}
	}

	a.registerSymbol(def.Pos, sd.Name, symbol{Struct: sd}, enclosing, fd.Package)

	for _, nested := range def.Structs {
		nsd := a.declareStruct(nested, sd, fd)
		sd.AddNestedStruct(nsd)
	}
	for _, nested := range def.Enums {
		ned := a.declareEnum(nested, sd, fd)
		sd.AddNestedEnum(ned)
	}

	a.symMu.Lock()
	a.structDef[sd] = def
	a.symMu.Unlock()
	return sd
}

func (a *Analyzer) declareEnum(def *ast.EnumDef, enclosing *schema.StructDescriptor, fd *schema.FileDescriptor) *schema.EnumDescriptor {
	ed := schema.NewEnumDescriptor(def.Name)
	ed.File = fd
	if enclosing != nil {
		ed.Enclosing = enclosing
	}
	for _, v := range def.Values {
		if _, exists := ed.ValueByName(v.Name); exists {
			a.errorf(v.Pos, "duplicate enum value name %q in %s", v.Name, def.Name)
			continue
		}
		ed.AddValue(v.Name, v.Value)
	}
	a.registerSymbol(def.Pos, ed.Name, symbol{Enum: ed}, enclosing, fd.Package)
	a.symMu.Lock()
	a.enumDef[ed] = def
	a.symMu.Unlock()
	return ed
}

// registerSymbol computes name's fully-qualified key (package, then the
// enclosing-struct chain, then name) and stores it in the analyzer's
// global symbol table, reporting a duplicate-declaration error if the
// key is already taken. This key matches StructDescriptor.FullName /
// EnumDescriptor.FullName so lookups by either path agree.
func (a *Analyzer) registerSymbol(pos ast.SourcePos, name string, sym symbol, enclosing *schema.StructDescriptor, pkg string) {
	key := name
	for e := enclosing; e != nil; e = e.Enclosing {
		key = e.Name + "." + key
	}
	if pkg != "" {
		key = pkg + "." + key
	}
	a.symMu.Lock()
	if _, exists := a.symbols.Get(key); exists {
		a.symMu.Unlock()
		a.errorf(pos, "duplicate declaration of %q", key)
		return
	}
	a.symbols.Set(key, sym)
	a.symMu.Unlock()
}
