// Package analyzer implements the three-phase CODA schema analyzer
// (spec §4.3): declaration registration, cross-file resolution, and
// options typing, turning a set of parsed ASTs into a frozen
// DescriptorGraph plus a populated TypeRegistry.
package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"github.com/tidwall/btree"

	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/internal/toposort"
	"github.com/codaschema/coda/reporter"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/schema"
)

// Analyzer turns parsed files into a DescriptorGraph. One Analyzer
// instance is used per compilation; it is not meant to be reused across
// unrelated compiles (its symbol table and registry accumulate state).
type Analyzer struct {
	Registry *registry.Registry
	rep      reporter.Reporter

	// symbols is keyed by fully-qualified name and stored in an ordered
	// B-tree, like registry.Registry's subtype/extension indexes, so that
	// undeclaredTypeError's candidate list (and any future diagnostic
	// that walks the whole symbol table) visits names in the same order
	// on every run rather than Go's randomized map iteration order (spec
	// §8 "Analyzer is deterministic").
	symbols   *btree.Map[string, symbol]
	files     map[string]*schema.FileDescriptor
	structDef map[*schema.StructDescriptor]*ast.StructDef
	enumDef   map[*schema.EnumDescriptor]*ast.EnumDef
	fileAST   map[string]*ast.File

	symMu    sync.Mutex
	fileMu   sync.Mutex
	regMu    sync.Mutex
	errMu    sync.Mutex
	errCount int
}

type symbol struct {
	Struct *schema.StructDescriptor
	Enum   *schema.EnumDescriptor
}

// New creates an Analyzer reporting through rep and registering subtypes
// and extensions into reg.
func New(rep reporter.Reporter, reg *registry.Registry) *Analyzer {
	return &Analyzer{
		Registry:  reg,
		rep:       rep,
		symbols:   &btree.Map[string, symbol]{},
		files:     map[string]*schema.FileDescriptor{},
		structDef: map[*schema.StructDescriptor]*ast.StructDef{},
		enumDef:   map[*schema.EnumDescriptor]*ast.EnumDef{},
		fileAST:   map[string]*ast.File{},
	}
}

func (a *Analyzer) errorf(pos ast.SourcePos, format string, args ...interface{}) error {
	err := reporter.Errorf(pos, format, args...)
	a.errMu.Lock()
	a.errCount++
	a.errMu.Unlock()
	if a.rep != nil {
		return a.rep.Error(err)
	}
	return err
}

// ErrorCount returns the number of errors reported so far.
func (a *Analyzer) ErrorCount() int {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.errCount
}

// concurrency bounds how many files' Phase A (and, later, Phase B) pass
// runs at once, mirroring
// the teacher's compiler.go use of x/sync/semaphore to cap parallel
// parse/link work at GOMAXPROCS.
func concurrency() int64 {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return int64(n)
}

// Compile runs all three phases over files (keyed by file path) and
// returns the resulting FileDescriptors, also keyed by path. It does not
// abort on the first error: every phase collects as many diagnostics as
// the Reporter allows, consistent with spec §4.3 ("does not raise
// exceptions for user errors; it reports them and returns"). The caller
// should check a.ErrorCount() > 0 before proceeding to code generation
// (spec §4.3 "Termination").
func (a *Analyzer) Compile(ctx context.Context, files map[string]*ast.File) (map[string]*schema.FileDescriptor, error) {
	for path, f := range files {
		a.fileAST[path] = f
	}

	// order is a dependency-respecting, deterministic file ordering (spec
	// §8 "Analyzer is deterministic"): Phase A/B still fan out concurrently
	// within this ordering's bounds, but Phase C and diagnostic ordering
	// walk it directly instead of Go's randomized map iteration, so two
	// runs over the same input always report errors in the same order.
	// A cyclic import graph degrades to lexical order and is reported as
	// an error rather than silently mis-ordered.
	order, cycleErr := a.orderFiles(files)
	if cycleErr != nil {
		if err := a.errorf(ast.SourcePos{}, "%v", cycleErr); err != nil {
			return nil, err
		}
	}

	sem := semaphore.NewWeighted(concurrency())
	// Phase A: declaration registration. Bounded-concurrent across files,
	// dispatched in dependency order; symbol-table writes are synchronized
	// by symMu/fileMu.
	errCh := make(chan error, len(files))
	for _, path := range order {
		f := files[path]
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(path string, f *ast.File) {
			defer sem.Release(1)
			errCh <- a.phaseA(path, f)
		}(path, f)
	}
	for range files {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}

	// Phase B: cross-file resolution. Visibility closures and symbol
	// lookups only read the (now-complete) symbol table, so this phase
	// also runs bounded-concurrent; registry writes are synchronized
	// internally by regMu.
	visible := a.computeVisibility(files)
	errCh = make(chan error, len(files))
	for _, path := range order {
		f := files[path]
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(path string, f *ast.File) {
			defer sem.Release(1)
			errCh <- a.phaseB(path, f, visible[path])
		}(path, f)
	}
	for range files {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}

	// Phase C: options typing, once Phase B has finished for every file.
	// Run sequentially in dependency order so option-related diagnostics
	// are emitted in a stable sequence.
	for _, path := range order {
		if err := a.phaseC(path, files[path]); err != nil {
			return nil, err
		}
	}

	if a.ErrorCount() > 0 {
		return a.files, reporter.ErrInvalidSource
	}

	for _, path := range order {
		if fd, ok := a.files[path]; ok {
			fd.Freeze()
		}
	}
	return a.files, nil
}

// orderFiles returns file paths in an order that respects the import
// graph (each file after everything it imports), via
// internal/toposort. When the import graph contains a cycle, it falls
// back to plain lexical order over the whole file set and returns a
// descriptive error; the caller reports that error but still proceeds
// so other diagnostics in the same run are not masked.
func (a *Analyzer) orderFiles(files map[string]*ast.File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	ordered, err := toposort.Sort(paths, func(p string) string { return p }, func(p string) []string {
		f := files[p]
		deps := make([]string, len(f.Imports))
		for i, imp := range f.Imports {
			deps[i] = imp.Path
		}
		return deps
	})
	if err != nil {
		return paths, fmt.Errorf("analyzer: import graph has a cycle: %w", err)
	}
	return ordered, nil
}

// computeVisibility returns, for each file path, the transitive set of
// import paths reachable from it (spec §4.3 Phase B: "Expand each file's
// transitive import closure (visibleFiles[path])"). A file always sees
// itself.
func (a *Analyzer) computeVisibility(files map[string]*ast.File) map[string]map[string]bool {
	result := make(map[string]map[string]bool, len(files))
	var closure func(path string, seen map[string]bool)
	closure = func(path string, seen map[string]bool) {
		if seen[path] {
			return
		}
		seen[path] = true
		f, ok := files[path]
		if !ok {
			return
		}
		for _, imp := range f.Imports {
			closure(imp.Path, seen)
		}
	}
	for path := range files {
		seen := map[string]bool{}
		closure(path, seen)
		result[path] = seen
	}
	return result
}
