// Package build renders the build descriptor compiling the generated wrapper and the extra
// native sources into one extension module.
package build

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
)

// System selects the build descriptor skeleton.
type System string

const (
	Setuptools System = "setuptools"
	CMake      System = "cmake"
)

// ParseSystem parses a build system name. The empty string selects Setuptools.
func ParseSystem(s string) (System, error) {
	switch System(strings.ToLower(strings.TrimSpace(s))) {
	case "", Setuptools:
		return Setuptools, nil
	case CMake:
		return CMake, nil
	}
	return "", fmt.Errorf("unknown build system %q (want %s or %s)", s, Setuptools, CMake)
}

// ArtifactName is the file name of the descriptor for s.
func (s System) ArtifactName() string {
	if s == CMake {
		return "CMakeLists.txt"
	}
	return "setup.py"
}

// Descriptor holds everything substituted into the skeleton. Paths are written as given,
// relative to the directory the descriptor is placed in.
type Descriptor struct {
	System       System
	Module       string
	Wrapper      string
	Declarations string
	Sources      []string
	IncludeDirs  []string
	LibraryDirs  []string
	Libraries    []string
	CompileFlags []string
}

const setuptoolsTmpl = `# Generated by {{.Banner}}. Do not edit.
from setuptools import Extension, setup
from Cython.Build import cythonize

extension = Extension(
    {{py .Module}},
    sources=[
        {{py .Wrapper}},
{{- range .Sources}}
        {{py .}},
{{- end}}
    ],
    depends=[{{py .Declarations}}],
{{- with .IncludeDirs}}
    include_dirs=[
{{- range .}}
        {{py .}},
{{- end}}
    ],
{{- end}}
{{- with .LibraryDirs}}
    library_dirs=[
{{- range .}}
        {{py .}},
{{- end}}
    ],
{{- end}}
{{- with .Libraries}}
    libraries=[
{{- range .}}
        {{py .}},
{{- end}}
    ],
{{- end}}
{{- with .CompileFlags}}
    extra_compile_args=[
{{- range .}}
        {{py .}},
{{- end}}
    ],
{{- end}}
    language="c++",
)

setup(
    name={{py .Module}},
    ext_modules=cythonize([extension], language_level=3),
)
`

const cmakeTmpl = `# Generated by {{.Banner}}. Do not edit.
cmake_minimum_required(VERSION 3.18)
project({{.Module}} CXX)

find_package(Python COMPONENTS Interpreter Development.Module REQUIRED)

set(WRAPPER_CPP ${CMAKE_CURRENT_BINARY_DIR}/{{.Module}}.cpp)

add_custom_command(
    OUTPUT ${WRAPPER_CPP}
    COMMAND Python::Interpreter -m cython --cplus -3
        ${CMAKE_CURRENT_SOURCE_DIR}/{{path .Wrapper}} -o ${WRAPPER_CPP}
    DEPENDS {{cm .Wrapper}} {{cm .Declarations}}
    WORKING_DIRECTORY ${CMAKE_CURRENT_SOURCE_DIR}
)

python_add_library({{.Module}} MODULE WITH_SOABI
    ${WRAPPER_CPP}
{{- range .Sources}}
    {{cm .}}
{{- end}}
)

target_include_directories({{.Module}} PRIVATE
    ${CMAKE_CURRENT_SOURCE_DIR}
{{- range .IncludeDirs}}
    {{cm .}}
{{- end}}
)
{{- with .LibraryDirs}}

target_link_directories({{$.Module}} PRIVATE
{{- range .}}
    {{cm .}}
{{- end}}
)
{{- end}}
{{- with .Libraries}}

target_link_libraries({{$.Module}} PRIVATE
{{- range .}}
    {{cm .}}
{{- end}}
)
{{- end}}
{{- with .CompileFlags}}

target_compile_options({{$.Module}} PRIVATE
{{- range .}}
    {{cm .}}
{{- end}}
)
{{- end}}

install(TARGETS {{.Module}} LIBRARY DESTINATION .)
`

var funcs = template.FuncMap{
	"py":   pyString,
	"cm":   cmakeArg,
	"path": filepath.ToSlash,
}

var templates = map[System]*template.Template{
	Setuptools: template.Must(template.New("setuptools").Funcs(funcs).Parse(setuptoolsTmpl)),
	CMake:      template.Must(template.New("cmake").Funcs(funcs).Parse(cmakeTmpl)),
}

// pyString quotes s as a Python string literal. Go's escapes are a subset of Python's.
func pyString(s string) string {
	return strconv.Quote(filepath.ToSlash(s))
}

// cmakeArg quotes s as one CMake argument when it carries separators or quotes.
func cmakeArg(s string) string {
	s = filepath.ToSlash(s)
	if s != "" && !strings.ContainsAny(s, " \t;\"()#$\\") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, `;`, `\;`).Replace(s) + `"`
}

type data struct {
	Descriptor
	Banner string
}

// Render fills the skeleton of d.System with d.
func Render(d Descriptor) (string, error) {
	sys := d.System
	if sys == "" {
		sys = Setuptools
	}
	t, ok := templates[sys]
	if !ok {
		return "", fmt.Errorf("unknown build system %q", sys)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data{Descriptor: d, Banner: common.Banner()}); err != nil {
		return "", fmt.Errorf("execute %s template: %w", sys, err)
	}
	return buf.String(), nil
}
