package schema

import "github.com/codaschema/coda/internal/leven"

// OptionValueKind is the declared type of an option field in the static
// options schema below.
type OptionValueKind int

const (
	OptBool OptionValueKind = iota
	OptInt
	OptString
	OptList
)

// OptionFieldSchema describes one legal option name for a given context.
type OptionFieldSchema struct {
	Name   string
	Kind   OptionValueKind
	Scoped bool // true if this field is map-valued (per-language/per-scope)
}

// optionSchemas is the static, per-context table of legal option fields.
// Spec §3 describes OptionsRecord as "itself a descriptor-defined
// struct", bootstrapped reflectively at process start in the Python
// original. Design note §9 calls this unnecessary ceremony for a
// systems-language rewrite and recommends "a single static table compiled
// alongside the runtime" with no loss of semantics — that is this table.
var optionSchemas = map[string][]OptionFieldSchema{
	"file": {
		{Name: "package", Kind: OptString, Scoped: true},
		{Name: "namespace", Kind: OptString, Scoped: true},
		{Name: "deprecated", Kind: OptBool},
	},
	"struct": {
		{Name: "shared", Kind: OptBool},
		{Name: "reference", Kind: OptBool},
		{Name: "deprecated", Kind: OptBool},
		{Name: "base_class", Kind: OptString, Scoped: true},
	},
	"field": {
		{Name: "fixed", Kind: OptBool},
		{Name: "novisit", Kind: OptBool},
		{Name: "deprecated", Kind: OptBool},
		{Name: "default", Kind: OptString},
	},
	"enum": {
		{Name: "deprecated", Kind: OptBool},
	},
	"method": {
		{Name: "deprecated", Kind: OptBool},
		{Name: "abstract", Kind: OptBool},
	},
}

// LookupOption finds the schema entry for name within context, or ok=false
// if unknown.
func LookupOption(context, name string) (OptionFieldSchema, bool) {
	for _, f := range optionSchemas[context] {
		if f.Name == name {
			return f, true
		}
	}
	return OptionFieldSchema{}, false
}

// SuggestOption returns the closest known option name in context to name,
// by Levenshtein distance, for "did you mean" diagnostics (spec §4.3,
// §8 scenario 5). ok is false if no name in context is within a
// reasonable edit distance.
func SuggestOption(context, name string) (string, bool) {
	var candidates []string
	for _, f := range optionSchemas[context] {
		candidates = append(candidates, f.Name)
	}
	return leven.Closest(name, candidates)
}
