package analyzer

import (
	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/schema"
)

// phaseB resolves everything that needs the full (cross-file) symbol
// table: subtype ids and base types, field and parameter types,
// extension-field registration (spec §4.3 Phase B "cross-file
// resolution"). visible is the set of file paths reachable from f's
// transitive import closure.
func (a *Analyzer) phaseB(path string, f *ast.File, visible map[string]bool) error {
	a.fileMu.Lock()
	fd := a.files[path]
	a.fileMu.Unlock()

	// Sub-pass 1: resolve every struct's own TypeID. This does not depend
	// on base-type wiring, so it is safe to do before sub-pass 2 resolves
	// bases regardless of declaration order across files.
	var walkTypeIDs func(sd *schema.StructDescriptor)
	walkTypeIDs = func(sd *schema.StructDescriptor) {
		def := a.structDef[sd]
		a.resolveTypeID(sd, def, visible)
		for _, n := range sd.NestedStructs {
			walkTypeIDs(n)
		}
	}
	for _, sd := range fd.Structs {
		walkTypeIDs(sd)
	}

	// Sub-pass 2: resolve base types, register subtypes, check extension
	// range inheritance, then resolve every field/method/param type.
	var walkBodies func(sd *schema.StructDescriptor)
	walkBodies = func(sd *schema.StructDescriptor) {
		def := a.structDef[sd]
		a.resolveBaseType(sd, def, visible)
		a.resolveStructBody(sd, def, visible)
		for _, n := range sd.NestedStructs {
			walkBodies(n)
		}
	}
	for _, sd := range fd.Structs {
		walkBodies(sd)
	}

	// Top-level `extend` blocks. Enum values need no cross-file
	// resolution and are already complete after phaseA.
	pkgScope := scope{pkg: f.Package, visible: visible}
	for i := range f.Extensions {
		a.resolveExtendBlock(&f.Extensions[i], pkgScope, fd)
	}

	return nil
}

func (a *Analyzer) scopeFor(sd *schema.StructDescriptor, pkg string, visible map[string]bool) scope {
	var enc []string
	for s := sd; s != nil; s = s.Enclosing {
		enc = append(enc, s.FullName())
	}
	return scope{enclosing: enc, pkg: pkg, visible: visible}
}

func (a *Analyzer) resolveTypeID(sd *schema.StructDescriptor, def *ast.StructDef, visible map[string]bool) {
	if def.Subtype == nil {
		return
	}
	switch {
	case def.Subtype.TypeIDLit != nil:
		id := uint32(*def.Subtype.TypeIDLit)
		sd.TypeID = &id
	case def.Subtype.TypeIDIdent != nil:
		tn := *def.Subtype.TypeIDIdent
		sc := a.scopeFor(sd, sd.File.Package, visible)
		// A dotted TypeName like Enum.VALUE: resolve everything but the
		// last component as the enum, then look up the member.
		if tn.Name == "" {
			a.errorf(tn.Pos, "invalid subtype id reference")
			return
		}
		enumName, member, ok := splitLastDot(tn.Name)
		if !ok {
			a.errorf(tn.Pos, "subtype id %q is not an Enum.VALUE reference", tn.Name)
			return
		}
		sym, ok := a.lookupSymbol(enumName, sc)
		if !ok || sym.Enum == nil {
			a.errorf(tn.Pos, "undeclared enum %q in subtype id reference", enumName)
			return
		}
		val, ok := sym.Enum.ValueByName(member)
		if !ok {
			a.errorf(tn.Pos, "enum %q has no value %q", enumName, member)
			return
		}
		id := uint32(val)
		sd.TypeID = &id
	}
}

func splitLastDot(s string) (prefix, suffix string, ok bool) {
	idx := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			idx = i
		}
	}
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func (a *Analyzer) resolveBaseType(sd *schema.StructDescriptor, def *ast.StructDef, visible map[string]bool) {
	if def.Subtype == nil || def.Subtype.BaseType == nil {
		return
	}
	sc := a.scopeFor(sd, sd.File.Package, visible)
	t, err := a.resolveTypeName(*def.Subtype.BaseType, sc)
	if err != nil {
		return
	}
	if t.Kind() != schema.KindStruct {
		a.errorf(def.Subtype.BaseType.Pos, "base type %q is not a struct", def.Subtype.BaseType.Name)
		return
	}
	if sd.TypeID == nil {
		a.errorf(def.Pos, "struct %q declares a base type but no subtype id", sd.Name)
		return
	}
	sd.BaseType = t.Struct()

	if sd.ExtensionRange != nil {
		for anc := sd.BaseType; anc != nil; anc = anc.BaseType {
			if anc.ExtensionRange != nil && rangesOverlap(*sd.ExtensionRange, *anc.ExtensionRange) {
				a.errorf(def.ExtensionRange.Pos, "extension range %d..%d overlaps ancestor %s's range %d..%d",
					sd.ExtensionRange.Min, sd.ExtensionRange.Max, anc.FullName(), anc.ExtensionRange.Min, anc.ExtensionRange.Max)
			}
		}
	}

	a.regMu.Lock()
	err = a.Registry.AddSubtype(sd)
	a.regMu.Unlock()
	if err != nil {
		a.errorf(def.Pos, "%v", err)
	}
}

func rangesOverlap(r1, r2 schema.ExtensionRange) bool {
	return r1.Min <= r2.Max && r2.Min <= r1.Max
}

func (a *Analyzer) resolveStructBody(sd *schema.StructDescriptor, def *ast.StructDef, visible map[string]bool) {
	sc := a.scopeFor(sd, sd.File.Package, visible)
	usedIDs := map[uint32]string{}

	for i := range def.Fields {
		fdef := &def.Fields[i]
		if owner, exists := usedIDs[fdef.Index]; exists {
			a.errorf(fdef.Pos, "field id %d already used by %q", fdef.Index, owner)
			continue
		}
		if sd.ExtensionRange != nil && sd.ExtensionRange.Contains(fdef.Index) {
			a.errorf(fdef.Pos, "field id %d falls within %s's own extension range %d..%d",
				fdef.Index, sd.Name, sd.ExtensionRange.Min, sd.ExtensionRange.Max)
		}
		usedIDs[fdef.Index] = fdef.Name

		t, err := a.resolveFieldType(fdef.Type, sc)
		if err != nil {
			continue
		}
		field := schema.NewFieldDescriptor(fdef.Name, fdef.Index, t)
		sd.AddField(field)
	}

	for i := range def.Methods {
		mdef := &def.Methods[i]
		if owner, exists := usedIDs[mdef.Index]; exists {
			a.errorf(mdef.Pos, "method id %d already used by %q", mdef.Index, owner)
			continue
		}
		usedIDs[mdef.Index] = mdef.Name

		md := schema.NewMethodDescriptor(mdef.Name, mdef.Index)
		for _, p := range mdef.Params {
			pt, err := a.resolveFieldType(p.Type, sc)
			if err != nil {
				continue
			}
			md.Params = append(md.Params, schema.ParamDescriptor{Name: p.Name, Type: pt})
		}
		if mdef.ReturnType != nil {
			rt, err := a.resolveFieldType(*mdef.ReturnType, sc)
			if err == nil {
				md.ReturnType = &rt
			}
		}
		sd.AddMethod(md)
	}

	for i := range def.Extensions {
		a.resolveExtendBlock(&def.Extensions[i], sc, sd.File)
	}
}

// resolveExtendBlock resolves one `extend Target { ... }` block,
// registering each field as an ExtensionField against Target's declared
// extension range (spec §3 "ExtensionField", invariant 2).
func (a *Analyzer) resolveExtendBlock(def *ast.ExtendDef, sc scope, fd *schema.FileDescriptor) {
	t, err := a.resolveTypeName(def.Target, sc)
	if err != nil {
		return
	}
	if t.Kind() != schema.KindStruct {
		a.errorf(def.Target.Pos, "extend target %q is not a struct", def.Target.Name)
		return
	}
	target := t.Struct()
	if target.ExtensionRange == nil {
		a.errorf(def.Target.Pos, "struct %q declares no extension range and cannot be extended", target.FullName())
		return
	}

	for i := range def.Fields {
		fdef := &def.Fields[i]
		if !target.ExtensionRange.Contains(fdef.Index) {
			a.errorf(fdef.Pos, "extension field id %d falls outside %s's extension range %d..%d",
				fdef.Index, target.FullName(), target.ExtensionRange.Min, target.ExtensionRange.Max)
			continue
		}
		ft, err := a.resolveFieldType(fdef.Type, sc)
		if err != nil {
			continue
		}
		field := schema.NewFieldDescriptor(fdef.Name, fdef.Index, ft)
		ef := &schema.ExtensionField{Field: field, Extends: target, Line: fdef.Pos.Line}

		a.regMu.Lock()
		err = a.Registry.AddExtension(ef)
		a.regMu.Unlock()
		if err != nil {
			a.errorf(fdef.Pos, "%v", err)
			continue
		}
		target.AddExtensionField(ef)
		fd.AddExtension(ef)
	}
}
