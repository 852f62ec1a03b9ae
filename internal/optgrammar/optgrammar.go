// Package optgrammar parses the `--opt lang:key=value;key=value` CLI
// mini-language (spec §4.7 "External Interfaces") using a small
// participle grammar, consistent with the teacher's use of participle
// for similarly small embedded option languages.
package optgrammar

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Assignment is one `key=value` pair within an --opt argument.
type Assignment struct {
	Key   string `parser:"@Ident '='"`
	Value string `parser:"@(Ident | String | Int)"`
}

// OptSpec is the parsed form of one `--opt lang:k=v;k=v` flag value. Lang
// is empty when the flag applies to every backend (`--opt k=v;k=v`).
type OptSpec struct {
	Lang        string       `parser:"(@Ident ':')?"`
	Assignments []Assignment `parser:"@@ (';' @@)*"`
}

var optLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.\-]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[:=;]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[OptSpec](
	participle.Lexer(optLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Parse parses one `--opt` argument value into an OptSpec.
func Parse(arg string) (*OptSpec, error) {
	return parser.ParseString("", arg)
}

// AsMap flattens spec's assignments into a plain map, the shape
// codegen.Request.Options expects.
func (s *OptSpec) AsMap() map[string]string {
	m := make(map[string]string, len(s.Assignments))
	for _, a := range s.Assignments {
		m[a.Key] = a.Value
	}
	return m
}
