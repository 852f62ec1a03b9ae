// Command codadump decodes a CODA binary wire stream and renders it in
// the text wire format (spec §4.6, §6 "External Interfaces: codadump").
// It needs a schema to decode against, since the binary format carries
// no type information beyond an optional leading SUBTYPE header.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/codaschema/coda/analyzer"
	"github.com/codaschema/coda/ast"
	"github.com/codaschema/coda/binarycodec"
	"github.com/codaschema/coda/parser"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/reporter"
	"github.com/codaschema/coda/schema"
	"github.com/codaschema/coda/textcodec"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("codadump: error: "), err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("codadump", pflag.ContinueOnError)
	schemaPaths := flags.StringArray("schema", nil, ".coda file to compile and decode against (repeatable)")
	rootType := flags.String("type", "", "fully-qualified struct name of the root message")
	skip := flags.IntP("skip", "s", 0, "skip N initial bytes of each input before decoding")
	debug := flags.Bool("debug", false, "emit a hex-dump-annotated trace alongside the decode")
	if err := flags.Parse(args); err != nil {
		return err
	}

	paths := flags.Args()
	if len(paths) == 0 {
		return fmt.Errorf("no input files (pass one or more binary paths)")
	}
	if len(*schemaPaths) == 0 || *rootType == "" {
		return fmt.Errorf("--schema and --type are required to decode a binary stream (the wire format is not self-describing)")
	}

	root, reg, err := compileRoot(*schemaPaths, *rootType)
	if err != nil {
		return err
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if *skip > 0 {
			if *skip > len(data) {
				return fmt.Errorf("%s: --skip %d exceeds file length %d", path, *skip, len(data))
			}
			data = data[*skip:]
		}
		if *debug {
			fmt.Fprintf(os.Stderr, "-- %s (%d bytes) --\n", path, len(data))
			hexDump(os.Stderr, data)
		}

		dec := binarycodec.NewDecoder(data, reg)
		inst, err := dec.DecodeInto(root)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		enc := textcodec.NewEncoder(os.Stdout)
		if err := enc.Encode(inst); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Println()
	}
	return nil
}

// compileRoot compiles the given .coda files and looks up the root
// struct by its fully-qualified name in the resulting descriptor graph.
func compileRoot(paths []string, rootName string) (*schema.StructDescriptor, *registry.Registry, error) {
	out := reporter.NewErrorCounter(os.Stderr, 0)

	files := map[string]*ast.File{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		f, err := parser.Parse(path, data, out)
		if err != nil {
			return nil, nil, err
		}
		files[path] = f
	}
	if out.Count() > 0 {
		return nil, nil, reporter.ErrInvalidSource
	}

	reg := registry.New()
	az := analyzer.New(out, reg)
	descs, err := az.Compile(context.Background(), files)
	if err != nil {
		return nil, nil, err
	}

	for _, fd := range descs {
		if sd := findStruct(fd, rootName); sd != nil {
			return sd, reg, nil
		}
	}
	return nil, nil, fmt.Errorf("struct %q not found among compiled schemas", rootName)
}

func findStruct(fd *schema.FileDescriptor, fullName string) *schema.StructDescriptor {
	var search func(sd *schema.StructDescriptor) *schema.StructDescriptor
	search = func(sd *schema.StructDescriptor) *schema.StructDescriptor {
		if sd.FullName() == fullName {
			return sd
		}
		for _, nested := range sd.NestedStructs {
			if found := search(nested); found != nil {
				return found
			}
		}
		return nil
	}
	for _, sd := range fd.Structs {
		if found := search(sd); found != nil {
			return found
		}
	}
	return nil
}

// hexDump writes an offset/hex/ascii trace of data, the annotated-trace
// half of --debug (the decoded-value half is the text-codec output
// written to stdout alongside it).
func hexDump(w *os.File, data []byte) {
	const width = 16
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		var hex strings.Builder
		for i := 0; i < width; i++ {
			if i < len(row) {
				fmt.Fprintf(&hex, "%02x ", row[i])
			} else {
				hex.WriteString("   ")
			}
			if i == width/2-1 {
				hex.WriteByte(' ')
			}
		}

		var ascii strings.Builder
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		fmt.Fprintf(w, "%08x  %s |%s|\n", off, hex.String(), ascii.String())
	}
}
