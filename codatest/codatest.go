// Package codatest provides structural-equality test helpers for
// descriptors and runtime Instances, built on go-cmp for diffing and
// go-difflib for rendering readable unified diffs on mismatch — the
// same pairing the teacher's own test suite uses for descriptor
// comparisons.
package codatest

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/schema"
)

// instanceOpts tells go-cmp how to compare an Instance: by descriptor
// identity and the same present-fields-only Equals contract the runtime
// itself uses (spec §4.4), rather than reflecting into its unexported
// fields.
var instanceOpts = cmp.Comparer(func(a, b *object.Instance) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equals(b)
})

// AssertInstancesEqual reports (via t.Errorf-shaped TB) whether got and
// want are structurally equal per object.Instance.Equals, rendering a
// unified diff of their field-by-field dumps (dumpInstance) when they
// differ.
func AssertInstancesEqual(t TB, got, want *object.Instance) {
	t.Helper()
	if cmp.Equal(got, want, instanceOpts) {
		return
	}
	t.Errorf("instances differ:\n%s", diffDumps(got, want))
}

// TB is the subset of testing.TB that codatest needs, so callers don't
// have to import the standard testing package just to satisfy this
// helper's signature in non-test code (e.g. fuzz harnesses).
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
}

func diffDumps(got, want *object.Instance) string {
	a := dumpLines(want)
	b := dumpLines(got)
	diff := difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(failed to render diff: %v)", err)
	}
	return text
}

func dumpLines(inst *object.Instance) []string {
	if inst == nil {
		return []string{"null"}
	}
	var lines []string
	dumpInstance(inst, 0, &lines)
	return lines
}

func dumpInstance(inst *object.Instance, depth int, lines *[]string) {
	ind := strings.Repeat("  ", depth)
	desc := inst.Descriptor()
	*lines = append(*lines, fmt.Sprintf("%s%s {", ind, desc.FullName()))
	for _, fd := range desc.Fields {
		if !inst.Has(fd) {
			continue
		}
		v := inst.Get(fd)
		if nested, ok := v.(*object.Instance); ok {
			*lines = append(*lines, fmt.Sprintf("%s  %s:", ind, fd.Name))
			dumpInstance(nested, depth+2, lines)
			continue
		}
		*lines = append(*lines, fmt.Sprintf("%s  %s: %v", ind, fd.Name, v))
	}
	*lines = append(*lines, ind+"}")
}

// AssertDescriptorsEqual compares two StructDescriptors' shapes (field
// ids, names, and types — not pointer identity), for analyzer
// determinism tests (spec §8 "Analyzer is deterministic").
func AssertDescriptorsEqual(t TB, got, want *schema.StructDescriptor) {
	t.Helper()
	gs, ws := describeShape(got), describeShape(want)
	if gs == ws {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        strings.Split(ws, "\n"),
		B:        strings.Split(gs, "\n"),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	t.Errorf("descriptor shapes differ:\n%s", text)
}

func describeShape(sd *schema.StructDescriptor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s\n", sd.FullName())
	for _, fd := range sd.Fields {
		fmt.Fprintf(&sb, "  %d: %s %s\n", fd.ID, fd.Name, fd.Type.CanonicalKey())
	}
	return sb.String()
}
