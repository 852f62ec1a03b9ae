package analyzer_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codaschema/coda/analyzer"
	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/parser"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/reporter"
)

func parseAll(t *testing.T, out *bytes.Buffer, sources map[string]string) map[string]*ast.File {
	t.Helper()
	files := make(map[string]*ast.File, len(sources))
	for path, src := range sources {
		f, err := parser.Parse(path, []byte(src), reporter.NewErrorCounter(out, 8))
		require.NoErrorf(t, err, "parsing %s: %s", path, out.String())
		files[path] = f
	}
	return files
}

func TestCompileResolvesCrossFileStructReference(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	sources := map[string]string{
		"geo.coda": `
			package geo;

			struct Point {
				x: i32 = 1;
				y: i32 = 2;
			}
		`,
		"path.coda": `
			package geo;

			import "geo.coda";

			struct Path {
				start: Point = 1;
				waypoints: list[Point] = 2;
				name: string = 3;
			}
		`,
	}
	files := parseAll(t, &out, sources)

	reg := registry.New()
	az := analyzer.New(reporter.NewErrorCounter(&out, 8), reg)
	descs, err := az.Compile(context.Background(), files)
	require.NoError(t, err, out.String())
	require.Zero(t, az.ErrorCount())

	pathFD := descs["path.coda"]
	require.NotNil(t, pathFD)
	pathSD := pathFD.Structs[0]
	require.Equal(t, "Path", pathSD.Name)

	startField := pathSD.FieldByID(1)
	require.NotNil(t, startField)
	require.Equal(t, "geo.Point", startField.Type.Struct().FullName())

	waypoints := pathSD.FieldByID(2)
	require.NotNil(t, waypoints)
	require.Equal(t, "geo.Point", waypoints.Type.Elem().Struct().FullName())

	require.True(t, pathFD.IsFrozen())
}

func TestCompileReportsUndeclaredTypeWithSuggestion(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	sources := map[string]string{
		"geo.coda": `
			package geo;

			struct Point {
				x: i32 = 1;
			}

			struct Shape {
				corner: Pont = 1;
			}
		`,
	}
	files := parseAll(t, &out, sources)

	reg := registry.New()
	az := analyzer.New(reporter.NewErrorCounter(&out, 8), reg)
	_, err := az.Compile(context.Background(), files)
	require.Error(t, err)
	require.Greater(t, az.ErrorCount(), 0)
	require.Contains(t, out.String(), `did you mean "geo.Point"`)
}

func TestCompileRejectsDuplicateFieldID(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	sources := map[string]string{
		"dup.coda": `
			package dup;

			struct Thing {
				a: i32 = 1;
				b: i32 = 1;
			}
		`,
	}
	files := parseAll(t, &out, sources)

	reg := registry.New()
	az := analyzer.New(reporter.NewErrorCounter(&out, 8), reg)
	_, err := az.Compile(context.Background(), files)
	require.Error(t, err)
	require.Greater(t, az.ErrorCount(), 0)
}

func TestCompileRegistersSubtypeAgainstRegistry(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	sources := map[string]string{
		"shapes.coda": `
			package shapes;

			struct Shape = 1 {
				extensions 100 to max;
			}

			struct Circle (Shape) = 2 {
				radius: i32 = 1;
			}
		`,
	}
	files := parseAll(t, &out, sources)

	reg := registry.New()
	az := analyzer.New(reporter.NewErrorCounter(&out, 8), reg)
	descs, err := az.Compile(context.Background(), files)
	require.NoError(t, err, out.String())

	shapeSD := descs["shapes.coda"].Structs[0]
	circle, ok := reg.Subtype(shapeSD, 2)
	require.True(t, ok)
	require.Equal(t, "Circle", circle.Name)
}
