package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/config"
)

// ErrOutdated is returned by --check when an artifact differs from the generated one.
var ErrOutdated = errors.New("generated files are out of date")

type Generate struct {
	Headers    []string `arg:"" name:"header" help:"C++ header files to wrap" type:"existingfile"`
	Sources    []string `help:"C++ implementation files compiled into the module" type:"existingfile" placeholder:"FILE"`
	ModuleName string   `name:"modulename" short:"m" help:"Python module name. Defaults to the first header's base name" env:"CXXWRAP_MODULENAME"`
	OutDir     string   `name:"outdir" short:"o" help:"Directory the artifacts are written to" default:"." type:"path" env:"CXXWRAP_OUTDIR"`
	IncDirs    []string `name:"incdirs" short:"I" help:"Additional include directories for the build descriptor" placeholder:"DIR"`
	Check      bool     `help:"Write nothing and fail when the artifacts in the output directory are out of date"`
}

// Run is called by Kong when the generate command is executed.
func (g *Generate) Run(logger *slog.Logger, cfg config.Config) error {
	in, err := g.input()
	if err != nil {
		return err
	}
	logger.Info("Generating bindings", "module", in.ModuleName, "headers", len(in.Headers), "outdir", g.OutDir)

	res, err := generator.New(logger, cfg).Generate(in)
	if err != nil {
		return err
	}
	logWarnings(logger, res.Warnings)

	if g.Check {
		changed, err := res.Diff(g.OutDir)
		if err != nil {
			return err
		}
		if len(changed) > 0 {
			return fmt.Errorf("%w: %s", ErrOutdated, strings.Join(changed, ", "))
		}
		logger.Info("Generated files are up to date", "outdir", g.OutDir)
		return nil
	}

	written, err := res.Write(g.OutDir)
	if err != nil {
		return err
	}
	for _, p := range written {
		logger.Info("Wrote artifact", "path", p)
	}
	return nil
}

func (g *Generate) input() (generator.Input, error) {
	in := generator.Input{
		ModuleName:  g.ModuleName,
		IncludeDirs: g.IncDirs,
		OutputDir:   g.OutDir,
	}
	if len(g.Headers) == 0 {
		return in, generator.ErrNoHeaders
	}
	if in.ModuleName == "" {
		in.ModuleName = common.ModuleNameFor(g.Headers[0])
	}
	var err error
	if in.Headers, err = readAll(g.Headers); err != nil {
		return in, err
	}
	if in.Sources, err = readAll(g.Sources); err != nil {
		return in, err
	}
	return in, nil
}

func readAll(paths []string) ([]generator.Source, error) {
	out := make([]generator.Source, 0, len(paths))
	for _, p := range paths {
		src, err := generator.ReadSource(p)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func logWarnings(logger *slog.Logger, warnings []model.Warning) {
	for _, w := range warnings {
		loc := w.Pos.String()
		if w.Path != "" {
			loc = w.Path + ":" + loc
		}
		logger.Warn(w.Message, "kind", w.Kind, "at", loc, "construct", w.Construct)
	}
}
