package analyzer

import "github.com/codaschema/coda/schema"

// builtinScalars maps built-in scalar type names to their schema.Type
// constructors (spec §3 "Primitive Types"). Collections (list/set/map)
// are handled separately in resolveTypeName because they require
// generic arguments.
var builtinScalars = map[string]func() schema.Type{
	"bool":   schema.Bool,
	"i16":    func() schema.Type { return schema.Integer(16) },
	"i32":    func() schema.Type { return schema.Integer(32) },
	"i64":    func() schema.Type { return schema.Integer(64) },
	"float":  schema.Float,
	"double": schema.Double,
	"string": schema.String,
	"bytes":  schema.Bytes,
}

func isBuiltinCollection(name string) bool {
	switch name {
	case "list", "set", "map":
		return true
	default:
		return false
	}
}

// builtinNames lists every built-in identifier, used to build "did you
// mean" suggestions alongside declared symbol names.
func builtinNames() []string {
	names := make([]string, 0, len(builtinScalars)+3)
	for n := range builtinScalars {
		names = append(names, n)
	}
	names = append(names, "list", "set", "map")
	return names
}
