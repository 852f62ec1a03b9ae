package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codaschema/coda/internal"
)

// testdataDir locates testdata/codagen relative to this test file, the
// way the teacher's internal/golden package resolves a corpus root off
// of internal.CallerDir rather than a path relative to the process's
// working directory (which varies under `go test ./...`).
func testdataDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(internal.CallerDir(0), "..", "..", "testdata", "codagen")
}

func TestRunGeneratesStubOutputMatchingGolden(t *testing.T) {
	dir := testdataDir(t)
	src := filepath.Join(dir, "simple.coda")
	golden, err := os.ReadFile(filepath.Join(dir, "simple.coda.stub.golden"))
	require.NoError(t, err)

	outDir := t.TempDir()
	require.NoError(t, run([]string{"--backend", "stub", "--out", outDir, src}))

	var got []byte
	err = filepath.Walk(outDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return err
		}
		got, err = os.ReadFile(p)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, string(golden), string(got))
}

func TestRunRejectsUnknownBackend(t *testing.T) {
	dir := testdataDir(t)
	src := filepath.Join(dir, "simple.coda")
	err := run([]string{"--backend", "nonexistent", "--out", t.TempDir(), src})
	require.Error(t, err)
}
