package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/cxxwrap/internal/codegen/generator"
	"github.com/Alia5/cxxwrap/internal/codegen/model"
	"github.com/Alia5/cxxwrap/internal/config"
)

const geoHeader = `
namespace geo {
/// A point.
struct Point { double x; double y; };
enum class Color { Red, Green };
class Shape {
public:
    Shape(int id);
    virtual ~Shape();
    virtual double area() const = 0;
};
int add(int a, int b);
}
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, text string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestGenerateWritesAndChecks(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "include", "geo.hpp"), geoHeader)
	out := filepath.Join(dir, "out")

	gen := &Generate{Headers: []string{header}, ModuleName: "geo", OutDir: out}
	require.NoError(t, gen.Run(discard(), config.Default()))
	for _, name := range []string{"_geo.pxd", "geo.pyx", "setup.py"} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	check := *gen
	check.Check = true
	require.NoError(t, check.Run(discard(), config.Default()))

	writeFile(t, filepath.Join(out, "geo.pyx"), "# edited\n")
	err := check.Run(discard(), config.Default())
	require.ErrorIs(t, err, ErrOutdated)
	assert.ErrorContains(t, err, "geo.pyx")
	assert.NotContains(t, err.Error(), "setup.py")

	data, err := os.ReadFile(filepath.Join(out, "geo.pyx"))
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(data))
}

func TestGenerateDefaultModuleName(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "MyLib.hpp"), "int add(int a, int b);\n")
	src := writeFile(t, filepath.Join(dir, "MyLib.cpp"), "int add(int a, int b) { return a + b; }\n")

	gen := &Generate{Headers: []string{header}, Sources: []string{src}, OutDir: dir}
	in, err := gen.input()
	require.NoError(t, err)
	assert.Equal(t, "my_lib", in.ModuleName)
	require.Len(t, in.Sources, 1)

	require.NoError(t, gen.Run(discard(), config.Default()))
	assert.FileExists(t, filepath.Join(dir, "_my_lib.pxd"))
	setup, err := os.ReadFile(filepath.Join(dir, "setup.py"))
	require.NoError(t, err)
	assert.Contains(t, string(setup), `"MyLib.cpp",`)
}

func TestGenerateFailures(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, filepath.Join(dir, "bad.hpp"), "namespace geo {\nint f(;\n")

	err := (&Generate{Headers: []string{bad}, OutDir: dir}).Run(discard(), config.Default())
	var perr *model.ParseError
	require.True(t, errors.As(err, &perr), "%v", err)
	assert.NoFileExists(t, filepath.Join(dir, "bad.pyx"))

	err = (&Generate{OutDir: dir}).Run(discard(), config.Default())
	assert.ErrorIs(t, err, generator.ErrNoHeaders)

	err = (&Generate{Headers: []string{filepath.Join(dir, "missing.hpp")}, OutDir: dir}).Run(discard(), config.Default())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGenerateLogsWarnings(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "geo.hpp"), "int add(int a, int b);\nREGISTER(add)\n")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	require.NoError(t, (&Generate{Headers: []string{header}, OutDir: dir}).Run(logger, config.Default()))

	var warned bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["level"] == "WARN" {
			warned = true
			assert.Equal(t, string(model.WarnSkipped), rec["kind"])
			assert.True(t, strings.HasPrefix(rec["at"].(string), header+":2:"), rec["at"])
		}
	}
	assert.True(t, warned, buf.String())
}

func scanGeo(t *testing.T) report {
	t.Helper()
	mod, err := generator.New(discard(), config.Default()).Scan("geo", []generator.Source{{Path: "geo.hpp", Text: geoHeader}})
	require.NoError(t, err)
	return newReport(mod)
}

func TestReport(t *testing.T) {
	r := scanGeo(t)
	assert.Equal(t, "geo", r.Module)

	var names []string
	for _, e := range r.Entities {
		names = append(names, string(e.Kind)+" "+e.Name)
	}
	assert.Equal(t, []string{
		"class geo::Point",
		"field geo::Point::x",
		"field geo::Point::y",
		"enum geo::Color",
		"class geo::Shape",
		"function geo::Shape::Shape",
		"function geo::Shape::area",
		"function geo::add",
	}, names)

	assert.Equal(t, "Red, Green", r.Entities[3].Detail)
	assert.Equal(t, "abstract", r.Entities[4].Detail)
	assert.Equal(t, "int geo::add(int a, int b)", r.Entities[7].Detail)
	assert.Equal(t, "add", r.Entities[7].Python)
	assert.Equal(t, "geo.hpp:12:1", r.Entities[7].Location)
}

func TestWriteReport(t *testing.T) {
	r := scanGeo(t)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "json", r))
	var fromJSON report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, r.Entities, fromJSON.Entities)

	buf.Reset()
	require.NoError(t, writeReport(&buf, "yaml", r))
	var fromYAML report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, r.Entities, fromYAML.Entities)

	buf.Reset()
	require.NoError(t, writeReport(&buf, "table", r))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(r.Entities)+1)
	assert.True(t, strings.HasPrefix(lines[0], "KIND"), lines[0])
	assert.Contains(t, lines[len(lines)-1], "int geo::add(int a, int b)")

	assert.Error(t, writeReport(&buf, "xml", r))
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	ci := &ConfigInit{Format: "yaml"}
	require.NoError(t, ci.Run(discard()))
	path := filepath.Join(dir, "cxxwrap.yaml")
	require.FileExists(t, path)
	assert.ErrorContains(t, ci.Run(discard()), "--force")
	ci.Force = true
	require.NoError(t, ci.Run(discard()))

	cfg, unused, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, []string{"check", "incdirs", "log", "modulename", "outdir", "sources"}, unused)

	var raw map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, ".", raw["outdir"])
	assert.Equal(t, map[string]any{"level": "info"}, raw["log"])
	assert.NotContains(t, raw, "header")

	for _, f := range []string{"json", "toml"} {
		out := filepath.Join(dir, "nested", "cfg."+f)
		require.NoError(t, (&ConfigInit{Format: f, Output: out}).Run(discard()))
		cfg, _, err := config.Load(out)
		require.NoError(t, err, f)
		assert.Equal(t, config.Default(), cfg, f)
	}

	assert.Error(t, (&ConfigInit{Format: "ini"}).Run(discard()))
}

func parse(t *testing.T, args []string, opts ...kong.Option) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, append([]kong.Option{kong.Name("cxxwrap"), kong.Exit(func(int) { t.Fatal("exit") })}, opts...)...)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestCLIParse(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "geo.hpp"), "int add(int a, int b);\n")

	cli, ctx := parse(t, []string{header, "-m", "geo", "-vv", "--incdirs", "a,b"})
	assert.Equal(t, "generate <header>", ctx.Command())
	assert.Equal(t, []string{header}, cli.Generate.Headers)
	assert.Equal(t, "geo", cli.Generate.ModuleName)
	assert.Equal(t, []string{"a", "b"}, cli.Generate.IncDirs)
	assert.Equal(t, "trace", cli.LogLevel())

	cli, ctx = parse(t, []string{"inspect", "--format", "yaml", header})
	assert.Equal(t, "inspect <header>", ctx.Command())
	assert.Equal(t, "yaml", cli.Inspect.Format)
	assert.Equal(t, "info", cli.LogLevel())

	_, ctx = parse(t, []string{"config", "init", "--format", "toml"})
	assert.Equal(t, "config init", ctx.Command())
}

func TestCLIConfigurationFile(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "geo.hpp"), "int add(int a, int b);\n")
	cfgPath := writeFile(t, filepath.Join(dir, "cxxwrap.yaml"), `
modulename: geometry
outdir: build
log:
  level: debug
overload_policy: strict
`)

	cli, _ := parse(t, []string{"--config", cfgPath, header}, kong.Configuration(kongyaml.Loader, cfgPath))
	assert.Equal(t, "geometry", cli.Generate.ModuleName)
	assert.Equal(t, "debug", cli.LogLevel())
	wantOut, err := filepath.Abs("build")
	require.NoError(t, err)
	assert.Equal(t, wantOut, cli.Generate.OutDir)

	cfg, err := cli.ProvideConfig(discard())
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.OverloadPolicy)

	cli, _ = parse(t, []string{"--config", cfgPath, "-m", "geo", header}, kong.Configuration(kongyaml.Loader, cfgPath))
	assert.Equal(t, "geo", cli.Generate.ModuleName)
}

func TestProvideConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := (&CLI{}).ProvideConfig(discard())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = (&CLI{ConfigFile: "missing.toml"}).ProvideConfig(discard())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCLIRun(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, filepath.Join(dir, "geo.hpp"), "void f(Handle h);\nvoid f(double x);\n")
	cfgPath := writeFile(t, filepath.Join(dir, "cxxwrap.json"), `{"type_overrides": {"Handle": "int"}, "build_system": "cmake"}`)
	out := filepath.Join(dir, "out")

	_, ctx := parse(t, []string{"--config", cfgPath, "-o", out, header})
	ctx.Bind(discard())
	require.NoError(t, ctx.Run())
	assert.FileExists(t, filepath.Join(out, "CMakeLists.txt"))

	_, ctx = parse(t, []string{"--config", cfgPath, "-o", out, "--check", header})
	ctx.Bind(discard())
	require.NoError(t, ctx.Run())
}

// chdir is a Go 1.21 stand-in for testing.T.Chdir: it changes the working
// directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
