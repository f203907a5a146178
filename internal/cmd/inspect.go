package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/olekukonko/tablewriter"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/config"
)

type Inspect struct {
	Headers []string `arg:"" name:"header" help:"C++ header files to scan" type:"existingfile"`
	Format  string   `short:"f" help:"Output format" enum:"table,json,yaml" default:"table"`
}

// Run is called by Kong when the inspect command is executed.
func (i *Inspect) Run(ctx *kong.Context, logger *slog.Logger, cfg config.Config) error {
	headers, err := readAll(i.Headers)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		return generator.ErrNoHeaders
	}
	mod, err := generator.New(logger, cfg).Scan(common.ModuleNameFor(headers[0].Path), headers)
	if err != nil {
		return err
	}
	return writeReport(ctx.Stdout, i.Format, newReport(mod))
}

type entityRow struct {
	Kind     model.Kind `json:"kind" yaml:"kind"`
	Name     string     `json:"name" yaml:"name"`
	Python   string     `json:"python,omitempty" yaml:"python,omitempty"`
	Location string     `json:"location" yaml:"location"`
	Detail   string     `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type report struct {
	Module   string          `json:"module" yaml:"module"`
	Headers  []string        `json:"headers" yaml:"headers"`
	Entities []entityRow     `json:"entities" yaml:"entities"`
	Warnings []model.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// newReport lists every entity in source order, class members after their class.
func newReport(mod *model.Module) report {
	r := report{Module: mod.Name, Headers: mod.Headers, Warnings: mod.Warnings}
	for _, e := range model.Flatten(mod.Entities) {
		r.Entities = append(r.Entities, rowOf(e))
		c, ok := e.(*model.Class)
		if !ok {
			continue
		}
		for _, ctor := range c.Ctors {
			r.Entities = append(r.Entities, rowOf(ctor))
		}
		for _, m := range c.Members {
			r.Entities = append(r.Entities, rowOf(m))
		}
	}
	return r
}

func rowOf(e model.Entity) entityRow {
	d := e.Declaration()
	return entityRow{
		Kind:     e.Kind(),
		Name:     d.QualifiedName(),
		Python:   d.HostName,
		Location: d.Header + ":" + d.Pos.String(),
		Detail:   detail(e),
	}
}

func detail(e model.Entity) string {
	switch e := e.(type) {
	case *model.Function:
		return e.Prototype()
	case *model.Field:
		if e.Static {
			return "static " + e.Type.String()
		}
		return e.Type.String()
	case *model.Typedef:
		return e.Type.String()
	case *model.Enum:
		labels := make([]string, len(e.Labels))
		for i, l := range e.Labels {
			labels[i] = l.Name
		}
		return strings.Join(labels, ", ")
	case *model.Class:
		var parts []string
		if e.IsTemplate() {
			parts = append(parts, "template<"+strings.Join(e.TemplateParams, ", ")+">")
		}
		if e.Base != nil {
			parts = append(parts, "base "+e.Base.String())
		}
		if e.Abstract {
			parts = append(parts, "abstract")
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func writeReport(w io.Writer, format string, r report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		data := make([][]string, 0, len(r.Entities))
		for _, e := range r.Entities {
			data = append(data, []string{string(e.Kind), e.Name, e.Python, e.Location, e.Detail})
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"KIND", "NAME", "PYTHON", "LOCATION", "DETAIL"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoWrapText(false)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(data)
		table.Render()

		for _, warn := range r.Warnings {
			if _, err := fmt.Fprintln(w, "warning:", warn.String()); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported output format %q", format)
}
