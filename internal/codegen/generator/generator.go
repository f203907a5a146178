// Package generator sequences one invocation: scan the headers, build the model, confirm
// implementation files, render the binding and wrapper files and the build descriptor.
//
// Generate performs no file I/O. ReadSource and Result.Write are provided for callers.
package generator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/build"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/pxd"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/pyx"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/codegen/scanner"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
	"github.com/Alia5/cxxwrap/internal/config"
)

var (
	ErrModuleName = errors.New("invalid module name")
	ErrNoHeaders  = errors.New("no header given")
)

// Source is one input file.
type Source struct {
	Path string
	Text string
}

// ReadSource reads the file at path as UTF-8, dropping a byte order mark. UTF-16 files with
// a byte order mark are decoded.
func ReadSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("read source: %w", err)
	}
	defer f.Close()

	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, tr))
	if err != nil {
		return Source{}, fmt.Errorf("read source %s: %w", path, err)
	}
	return Source{Path: path, Text: string(data)}, nil
}

// Input describes one invocation.
type Input struct {
	ModuleName string
	Headers    []Source
	// Sources are implementation files. They are compiled into the module and their
	// definitions are checked against the headers; they add no declarations.
	Sources     []Source
	IncludeDirs []string
	// OutputDir is where the artifacts will be written. Paths in the build descriptor are
	// made relative to it when set.
	OutputDir string
}

// Artifact is one generated file.
type Artifact struct {
	Name    string
	Content string
}

// Result holds the generated artifacts and every warning of the invocation.
type Result struct {
	Declarations Artifact
	Wrapper      Artifact
	Build        Artifact
	Warnings     []model.Warning
	Module       *model.Module
}

// Artifacts returns the artifacts in writing order.
func (r *Result) Artifacts() []Artifact {
	return []Artifact{r.Declarations, r.Wrapper, r.Build}
}

// Write writes the artifacts into dir, creating it when missing.
func (r *Result) Write(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	var written []string
	for _, a := range r.Artifacts() {
		out := filepath.Join(dir, a.Name)
		if err := os.WriteFile(out, []byte(a.Content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", a.Name, err)
		}
		written = append(written, out)
	}
	return written, nil
}

type Generator struct {
	logger *slog.Logger
	cfg    config.Config
}

func New(logger *slog.Logger, cfg config.Config) *Generator {
	return &Generator{
		logger: logger,
		cfg:    cfg,
	}
}

// ValidateModuleName checks that name can be imported from Python and cimported by Cython.
func ValidateModuleName(name string) error {
	if !common.IsIdentifier(name) || common.IsReserved(name) {
		return fmt.Errorf("%w: %q is not a Python identifier", ErrModuleName, name)
	}
	return nil
}

// Scan parses the headers and builds the model, without generating anything.
func (g *Generator) Scan(name string, headers []Source) (*model.Module, error) {
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}
	units := make([]*model.Unit, 0, len(headers))
	for _, h := range headers {
		g.logger.Debug("Scanning header", "header", h.Path)
		unit, err := scanner.ScanHeader(h.Path, h.Text)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", h.Path, err)
		}
		g.logger.Info("Scanned header", "header", h.Path, "entities", len(model.Flatten(unit.Entities)), "warnings", len(unit.Warnings))
		units = append(units, unit)
	}
	mod, err := model.Build(name, units...)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	return mod, nil
}

// Generate runs the whole pipeline for in.
func (g *Generator) Generate(in Input) (*Result, error) {
	if err := ValidateModuleName(in.ModuleName); err != nil {
		return nil, err
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mod, err := g.Scan(in.ModuleName, in.Headers)
	if err != nil {
		return nil, err
	}
	warnings := append([]model.Warning(nil), mod.Warnings...)

	for _, src := range in.Sources {
		ws, err := scanner.Confirm(mod, src.Path, src.Text)
		if err != nil {
			return nil, fmt.Errorf("confirm %s: %w", src.Path, err)
		}
		g.logger.Debug("Confirmed implementation", "source", src.Path, "warnings", len(ws))
		warnings = append(warnings, ws...)
	}

	base, err := typemap.New(g.cfg.TypeOverrides)
	if err != nil {
		return nil, fmt.Errorf("type overrides: %w", err)
	}
	m := base.WithModel(mod)
	warnings = append(warnings, typemap.Unresolved(mod, m)...)

	var decls, wrapper string
	var wrapWarnings []model.Warning
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		if decls, err = pxd.Render(mod, m); err != nil {
			return fmt.Errorf("render declarations: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		wrapper, wrapWarnings, err = pyx.Render(mod, m, pyx.Options{
			DeclModule:      pxd.ModuleName(in.ModuleName),
			Policy:          g.cfg.Policy(),
			Specializations: g.cfg.TemplateSpecializations,
		})
		if err != nil {
			return fmt.Errorf("render wrapper: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	warnings = append(warnings, wrapWarnings...)

	if err := pxd.Verify(mod, m, decls); err != nil {
		return nil, fmt.Errorf("verify declarations: %w", err)
	}

	res := &Result{
		Declarations: Artifact{Name: pxd.ModuleName(in.ModuleName) + ".pxd", Content: decls},
		Wrapper:      Artifact{Name: in.ModuleName + ".pyx", Content: wrapper},
		Warnings:     warnings,
		Module:       mod,
	}

	sys := g.cfg.System()
	desc := build.Descriptor{
		System:       sys,
		Module:       in.ModuleName,
		Wrapper:      res.Wrapper.Name,
		Declarations: res.Declarations.Name,
		IncludeDirs:  includeDirs(in),
		LibraryDirs:  g.cfg.LibraryDirs,
		Libraries:    g.cfg.ExtraLinkLibraries,
		CompileFlags: g.cfg.ExtraCompileFlags,
	}
	for _, src := range in.Sources {
		desc.Sources = append(desc.Sources, relTo(in.OutputDir, src.Path))
	}
	text, err := build.Render(desc)
	if err != nil {
		return nil, fmt.Errorf("render build descriptor: %w", err)
	}
	res.Build = Artifact{Name: sys.ArtifactName(), Content: text}

	g.logger.Info("Generated module", "module", in.ModuleName, "entities", len(mod.Entities), "warnings", len(warnings))
	return res, nil
}

// includeDirs lists the header directories, then the configured ones, without repeats.
// The generated files include headers by base name.
func includeDirs(in Input) []string {
	var out []string
	seen := map[string]bool{}
	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}
	for _, h := range in.Headers {
		add(relTo(in.OutputDir, filepath.Dir(h.Path)))
	}
	for _, d := range in.IncludeDirs {
		add(relTo(in.OutputDir, d))
	}
	return out
}

// relTo rewrites path relative to dir. Paths that cannot be made relative are kept.
func relTo(dir, path string) string {
	if dir == "" {
		return path
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return path
	}
	return rel
}

// Diff reports whether the artifacts differ from the files already in dir.
func (r *Result) Diff(dir string) ([]string, error) {
	var changed []string
	for _, a := range r.Artifacts() {
		old, err := os.ReadFile(filepath.Join(dir, a.Name))
		if errors.Is(err, os.ErrNotExist) {
			changed = append(changed, a.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", a.Name, err)
		}
		if !bytes.Equal(old, []byte(a.Content)) {
			changed = append(changed, a.Name)
		}
	}
	return changed, nil
}
