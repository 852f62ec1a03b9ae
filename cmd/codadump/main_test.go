package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codaschema/coda/binarycodec"
	"github.com/codaschema/coda/internal"
	"github.com/codaschema/coda/object"
	"github.com/codaschema/coda/textcodec"
)

// testdataDir locates testdata/codadump relative to this test file via
// internal.CallerDir, the same fixture-resolution idiom the teacher's
// internal/golden package uses, so the test works regardless of the
// directory `go test` is invoked from.
func testdataDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(internal.CallerDir(0), "..", "..", "testdata", "codadump")
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = orig
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRunDecodesBinaryAndDumpsText(t *testing.T) {
	dir := testdataDir(t)
	schemaPath := filepath.Join(dir, "point.coda")

	sd, _, err := compileRoot([]string{schemaPath}, "geo.Point")
	require.NoError(t, err)

	inst := object.New(sd)
	inst.Set(sd.FieldByID(1), int64(3))
	inst.Set(sd.FieldByID(2), int64(4))

	enc := binarycodec.NewEncoder()
	require.NoError(t, enc.Encode(inst))

	binPath := filepath.Join(t.TempDir(), "point.bin")
	require.NoError(t, os.WriteFile(binPath, enc.Bytes(), 0o644))

	var wantBuf bytes.Buffer
	require.NoError(t, textcodec.NewEncoder(&wantBuf).Encode(inst))

	got := captureStdout(t, func() {
		require.NoError(t, run([]string{"--schema", schemaPath, "--type", "geo.Point", binPath}))
	})

	require.Equal(t, wantBuf.String(), strings.TrimRight(got, "\n"))
}

func TestRunRequiresSchemaAndType(t *testing.T) {
	err := run([]string{filepath.Join(t.TempDir(), "whatever.bin")})
	require.Error(t, err)
}
