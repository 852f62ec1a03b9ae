package analyzer

import (
	"fmt"
	"sort"

	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/internal/leven"
	"github.com/codaschema/coda/schema"
)

// scope describes the lexical context a type reference is resolved in:
// the chain of enclosing struct full names (innermost first), the
// current file's package, and the set of package/file paths visible to
// it (spec §4.3 Phase B: "struct scope → enclosing struct(s) → file
// package → built-ins").
type scope struct {
	enclosing []string // full names, innermost first
	pkg       string
	visible   map[string]bool // visible file paths, including self
}

// lookupSymbol searches a's symbol table for name under scope, trying
// each enclosing prefix from innermost to outermost, then the file's own
// package, then (for dotted names) a direct fully-qualified lookup.
func (a *Analyzer) lookupSymbol(name string, sc scope) (symbol, bool) {
	a.symMu.Lock()
	defer a.symMu.Unlock()

	candidates := make([]string, 0, len(sc.enclosing)+2)
	for _, enc := range sc.enclosing {
		candidates = append(candidates, enc+"."+name)
	}
	if sc.pkg != "" {
		candidates = append(candidates, sc.pkg+"."+name)
	}
	candidates = append(candidates, name)

	for _, c := range candidates {
		if sym, ok := a.symbols.Get(c); ok {
			if a.symbolVisible(sym, sc) {
				return sym, true
			}
		}
	}
	return symbol{}, false
}

// symbolVisible reports whether sym was declared in a file visible from
// sc (spec §4.3 Phase B "visibility").
func (a *Analyzer) symbolVisible(sym symbol, sc scope) bool {
	var f *schema.FileDescriptor
	switch {
	case sym.Struct != nil:
		f = sym.Struct.File
	case sym.Enum != nil:
		f = sym.Enum.File
	}
	if f == nil || sc.visible == nil {
		return true
	}
	return sc.visible[f.Name]
}

// resolveTypeName resolves tn to a schema.Type under scope sc. It
// handles built-in scalars, the three generic collections, and declared
// struct/enum references (with lexical-scope lookup and a Levenshtein
// "did you mean" suggestion on failure).
func (a *Analyzer) resolveTypeName(tn ast.TypeName, sc scope) (schema.Type, error) {
	if isBuiltinCollection(tn.Name) {
		return a.resolveCollection(tn, sc)
	}
	if ctor, ok := builtinScalars[tn.Name]; ok {
		if len(tn.Args) > 0 {
			return schema.Type{}, a.errorf(tn.Pos, "type %q does not take type arguments", tn.Name)
		}
		return ctor(), nil
	}

	sym, ok := a.lookupSymbol(tn.Name, sc)
	if !ok {
		return schema.Type{}, a.undeclaredTypeError(tn, sc)
	}
	if len(tn.Args) > 0 {
		return schema.Type{}, a.errorf(tn.Pos, "type %q does not take type arguments", tn.Name)
	}
	switch {
	case sym.Struct != nil:
		return schema.StructType(sym.Struct), nil
	case sym.Enum != nil:
		return schema.EnumType(sym.Enum), nil
	default:
		return schema.Type{}, a.errorf(tn.Pos, "%q does not name a type", tn.Name)
	}
}

func (a *Analyzer) resolveCollection(tn ast.TypeName, sc scope) (schema.Type, error) {
	switch tn.Name {
	case "list":
		if len(tn.Args) != 1 {
			return schema.Type{}, a.errorf(tn.Pos, "list requires exactly one type argument")
		}
		elem, err := a.resolveTypeName(tn.Args[0], sc)
		if err != nil {
			return schema.Type{}, err
		}
		if !schema.ValidListElem(elem) {
			return schema.Type{}, a.errorf(tn.Args[0].Pos, "%s is not a valid list element type", elem)
		}
		return schema.List(elem), nil
	case "set":
		if len(tn.Args) != 1 {
			return schema.Type{}, a.errorf(tn.Pos, "set requires exactly one type argument")
		}
		elem, err := a.resolveTypeName(tn.Args[0], sc)
		if err != nil {
			return schema.Type{}, err
		}
		if !schema.ValidSetElem(elem) {
			return schema.Type{}, a.errorf(tn.Args[0].Pos, "%s is not a valid set element type", elem)
		}
		return schema.Set(elem), nil
	case "map":
		if len(tn.Args) != 2 {
			return schema.Type{}, a.errorf(tn.Pos, "map requires exactly two type arguments")
		}
		key, err := a.resolveTypeName(tn.Args[0], sc)
		if err != nil {
			return schema.Type{}, err
		}
		val, err := a.resolveTypeName(tn.Args[1], sc)
		if err != nil {
			return schema.Type{}, err
		}
		if !schema.ValidSetElem(key) {
			return schema.Type{}, a.errorf(tn.Args[0].Pos, "%s is not a valid map key type", key)
		}
		if !schema.ValidListElem(val) {
			return schema.Type{}, a.errorf(tn.Args[1].Pos, "%s is not a valid map value type", val)
		}
		return schema.Map(key, val), nil
	default:
		return schema.Type{}, fmt.Errorf("analyzer: unreachable collection name %q", tn.Name)
	}
}

// resolveFieldType resolves an ast.FieldType, applying const/shared
// modifiers, which are only legal around a declared struct type (spec
// §3 "Modified", invariant on ValidModifiedElem).
func (a *Analyzer) resolveFieldType(ft ast.FieldType, sc scope) (schema.Type, error) {
	if ft.Plain != nil {
		return a.resolveTypeName(*ft.Plain, sc)
	}
	mt := ft.Modified
	base, err := a.resolveTypeName(mt.Base, sc)
	if err != nil {
		return schema.Type{}, err
	}
	if !schema.ValidModifiedElem(base) {
		return schema.Type{}, a.errorf(mt.Pos, "const/shared modifiers only apply to struct types, not %s", base)
	}
	if mt.Shared && base.Struct() != nil {
		a.regMu.Lock()
		base.Struct().Shared = true
		a.regMu.Unlock()
	}
	return schema.Modified(base, mt.Const, mt.Shared), nil
}

// undeclaredTypeError reports an unresolved type name, suggesting the
// closest known symbol or built-in by edit distance (spec §4.3 Phase B
// "did you mean").
func (a *Analyzer) undeclaredTypeError(tn ast.TypeName, sc scope) error {
	a.symMu.Lock()
	known := make([]string, 0, a.symbols.Len())
	// Symbols of the current package are compared by their unqualified
	// name, as the user writes them, but reported fully qualified.
	display := map[string]string{}
	prefix := sc.pkg + "."
	a.symbols.Scan(func(name string, sym symbol) bool {
		if a.symbolVisible(sym, sc) {
			short := name
			if sc.pkg != "" && len(name) > len(prefix) && name[:len(prefix)] == prefix {
				short = name[len(prefix):]
			}
			display[short] = name
			known = append(known, short)
		}
		return true
	})
	a.symMu.Unlock()
	known = append(known, builtinNames()...)
	sort.Strings(known)

	if best, ok := leven.Closest(tn.Name, known); ok {
		if full, ok := display[best]; ok {
			best = full
		}
		return a.errorf(tn.Pos, "undeclared type %q (did you mean %q?)", tn.Name, best)
	}
	return a.errorf(tn.Pos, "undeclared type %q", tn.Name)
}
