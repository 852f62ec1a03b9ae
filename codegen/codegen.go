// Package codegen defines the pluggable code-generation framework (spec
// §4.6 "CodeGen framework"): a Backend renders one FileDescriptor into a
// set of output files for a target language, driven by a shared
// Request/Response protocol independent of any particular backend.
package codegen

import "github.com/codaschema/coda/schema"

// OutputFile is one generated source file.
type OutputFile struct {
	Name    string
	Content []byte
}

// Request bundles everything a Backend needs to render one compile unit:
// the files to generate code for, plus every file in their transitive
// import closure (so cross-file type references can be resolved during
// rendering).
type Request struct {
	Targets []*schema.FileDescriptor
	AllDeps []*schema.FileDescriptor
	// Options carries `--opt key=value` pairs parsed by
	// internal/optgrammar, scoped to this backend's language tag.
	Options map[string]string
}

// Backend renders a Request into a set of OutputFiles. Implementations
// must not mutate any FileDescriptor they are given — the graph is
// frozen by the time codegen runs (spec §4.3 "Termination").
type Backend interface {
	Name() string
	Generate(req Request) ([]OutputFile, error)
}

// registry of known backends, populated by each backend package's
// init() via Register (spec §4.6 "pluggable").
var backends = map[string]Backend{}

// Register adds b to the set of backends resolvable by name. Called
// from backend package init functions.
func Register(b Backend) {
	backends[b.Name()] = b
}

// Lookup returns the registered backend named name, if any.
func Lookup(name string) (Backend, bool) {
	b, ok := backends[name]
	return b, ok
}

// Names returns every registered backend name.
func Names() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	return names
}
