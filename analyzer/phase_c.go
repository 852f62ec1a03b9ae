package analyzer

import (
	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/schema"
)

// phaseC types and coerces every option value attached to a file and its
// declarations (spec §4.3 Phase C: "options typing/coercion"),
// validating each option name against the static schema for its context
// and storing the coerced value on the owning OptionsRecord.
func (a *Analyzer) phaseC(path string, f *ast.File) error {
	a.fileMu.Lock()
	fd := a.files[path]
	a.fileMu.Unlock()

	a.applyOptions("file", fd.Options, f.Options)

	var walkStruct func(sd *schema.StructDescriptor, def *ast.StructDef)
	walkStruct = func(sd *schema.StructDescriptor, def *ast.StructDef) {
		a.applyOptions("struct", sd.Options, def.Options)
		for i := range def.Fields {
			fdef := &def.Fields[i]
			if field := sd.FieldByID(fdef.Index); field != nil && field.Name == fdef.Name {
				a.applyOptions("field", field.Options, fdef.Options)
			}
		}
		for i, method := range sd.Methods {
			a.applyOptions("method", method.Options, def.Methods[i].Options)
		}
		for i, nested := range sd.NestedStructs {
			walkStruct(nested, def.Structs[i])
		}
		for i, nested := range sd.NestedEnums {
			a.applyOptions("enum", nested.Options, def.Enums[i].Options)
		}
	}
	for i, sd := range fd.Structs {
		walkStruct(sd, f.Structs[i])
	}
	for i, ed := range fd.Enums {
		a.applyOptions("enum", ed.Options, f.Enums[i].Options)
	}

	return nil
}

// applyOptions types and stores each astOpt against rec, reporting an
// unknown-option error (with a "did you mean" suggestion) or a
// type-mismatch error as appropriate.
func (a *Analyzer) applyOptions(context string, rec *schema.OptionsRecord, astOpts []ast.Option) {
	for _, opt := range astOpts {
		fieldSchema, ok := schema.LookupOption(context, opt.Name)
		if !ok {
			if suggestion, ok := schema.SuggestOption(context, opt.Name); ok {
				a.errorf(opt.Pos, "unknown %s option %q (did you mean %q?)", context, opt.Name, suggestion)
			} else {
				a.errorf(opt.Pos, "unknown %s option %q", context, opt.Name)
			}
			continue
		}
		if opt.Scope != "" && !fieldSchema.Scoped {
			a.errorf(opt.Pos, "option %q does not accept a scope", opt.Name)
			continue
		}
		value, err := a.coerceOptionValue(fieldSchema, opt.Value)
		if err != nil {
			continue
		}
		rec.Set(opt.Name, opt.Scope, value)
	}
}

func (a *Analyzer) coerceOptionValue(fs schema.OptionFieldSchema, v ast.OptionValue) (schema.OptionValue, error) {
	switch fs.Kind {
	case schema.OptBool:
		if v.Bool == nil {
			return schema.OptionValue{}, a.errorf(v.Pos, "option %q requires a bool value", fs.Name)
		}
		return schema.OptionValue{Bool: v.Bool}, nil
	case schema.OptInt:
		if v.Int == nil {
			return schema.OptionValue{}, a.errorf(v.Pos, "option %q requires an int value", fs.Name)
		}
		return schema.OptionValue{Int: v.Int}, nil
	case schema.OptString:
		if v.Str == nil {
			return schema.OptionValue{}, a.errorf(v.Pos, "option %q requires a string value", fs.Name)
		}
		return schema.OptionValue{Str: v.Str}, nil
	case schema.OptList:
		out := make([]schema.OptionValue, 0, len(v.List))
		for _, elem := range v.List {
			coerced, err := a.coerceOptionValue(fs, elem)
			if err != nil {
				return schema.OptionValue{}, err
			}
			out = append(out, coerced)
		}
		return schema.OptionValue{List: out}, nil
	default:
		return schema.OptionValue{}, a.errorf(v.Pos, "option %q has unsupported kind", fs.Name)
	}
}
