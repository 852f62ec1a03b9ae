// Command codagen compiles .coda schema files and renders them through a
// registered codegen.Backend (spec §4.7 "External Interfaces: CLI").
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/codaschema/coda/analyzer"
	"github.com/codaschema/coda/ast"
	_ "github.com/codaschema/coda/codegen/stub"
	"github.com/codaschema/coda/codegen"
	"github.com/codaschema/coda/internal/optgrammar"
	"github.com/codaschema/coda/parser"
	"github.com/codaschema/coda/registry"
	"github.com/codaschema/coda/reporter"
)

// config mirrors the optional codagen.yaml project file (spec §4.7
// "optional config file").
type config struct {
	Backend   string            `yaml:"backend"`
	OutDir    string            `yaml:"out_dir"`
	Options   map[string]string `yaml:"options"`
	Sources   []string          `yaml:"sources"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("codagen: error: "), err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("codagen", pflag.ContinueOnError)
	backendName := flags.String("backend", "stub", "codegen backend to use")
	outDir := flags.String("out", ".", "output directory")
	configPath := flags.String("config", "", "path to a codagen.yaml project file")
	optFlags := flags.StringArray("opt", nil, "backend option, as lang:key=value;key=value")
	maxErrors := flags.Int("max-errors", 0, "stop after this many errors (0 = unlimited)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Backend != "" && !flags.Changed("backend") {
		*backendName = cfg.Backend
	}
	if cfg.OutDir != "" && !flags.Changed("out") {
		*outDir = cfg.OutDir
	}

	patterns := flags.Args()
	if len(patterns) == 0 {
		patterns = cfg.Sources
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no input files (pass .coda paths/globs or list them in sources:)")
	}

	paths, err := expandGlobs(patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .coda files matched %v", patterns)
	}

	backend, ok := codegen.Lookup(*backendName)
	if !ok {
		return fmt.Errorf("unknown backend %q (known: %v)", *backendName, codegen.Names())
	}

	options := map[string]string{}
	for k, v := range cfg.Options {
		options[k] = v
	}
	for _, raw := range *optFlags {
		spec, err := optgrammar.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing --opt %q: %w", raw, err)
		}
		if spec.Lang != "" && spec.Lang != *backendName {
			continue
		}
		for k, v := range spec.AsMap() {
			options[k] = v
		}
	}

	out := reporter.NewErrorCounter(os.Stderr, *maxErrors)

	files := map[string]*ast.File{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f, err := parser.Parse(path, data, out)
		if err != nil {
			return err
		}
		files[path] = f
	}
	if out.Count() > 0 {
		return reporter.ErrInvalidSource
	}

	reg := registry.New()
	az := analyzer.New(out, reg)
	descs, err := az.Compile(context.Background(), files)
	if err != nil {
		return err
	}

	req := codegen.Request{Options: options}
	for _, fd := range descs {
		req.Targets = append(req.Targets, fd)
		req.AllDeps = append(req.AllDeps, fd)
	}

	outputs, err := backend.Generate(req)
	if err != nil {
		return err
	}
	for _, of := range outputs {
		dest := filepath.Join(*outDir, of.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, of.Content, 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("wrote %d file(s) to %s\n", len(outputs), *outDir)
	return nil
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		if _, err := os.Stat("codagen.yaml"); err == nil {
			path = "codagen.yaml"
		} else {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func expandGlobs(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.FilepathGlob(pat)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pat, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pat); err == nil {
				matches = []string{pat}
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
