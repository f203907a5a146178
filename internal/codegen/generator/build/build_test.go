package build

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
)

var geo = Descriptor{
	Module:       "geo",
	Wrapper:      "geo.pyx",
	Declarations: "_geo.pxd",
	Sources:      []string{"src/geo.cpp"},
	IncludeDirs:  []string{"include"},
	Libraries:    []string{"m"},
	CompileFlags: []string{"-std=c++17"},
}

func TestRenderSetuptools(t *testing.T) {
	got, err := Render(geo)
	require.NoError(t, err)

	want := "# Generated by " + common.Banner() + `. Do not edit.
from setuptools import Extension, setup
from Cython.Build import cythonize

extension = Extension(
    "geo",
    sources=[
        "geo.pyx",
        "src/geo.cpp",
    ],
    depends=["_geo.pxd"],
    include_dirs=[
        "include",
    ],
    libraries=[
        "m",
    ],
    extra_compile_args=[
        "-std=c++17",
    ],
    language="c++",
)

setup(
    name="geo",
    ext_modules=cythonize([extension], language_level=3),
)
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("setup.py mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderSetuptoolsOmitsEmptyBlocks(t *testing.T) {
	got, err := Render(Descriptor{Module: "m", Wrapper: "m.pyx", Declarations: "_m.pxd"})
	require.NoError(t, err)
	assert.Contains(t, got, "    depends=[\"_m.pxd\"],\n    language=\"c++\",\n")
	for _, key := range []string{"include_dirs", "library_dirs", "libraries", "extra_compile_args"} {
		assert.NotContains(t, got, key)
	}
}

func TestRenderCMake(t *testing.T) {
	d := geo
	d.System = CMake
	got, err := Render(d)
	require.NoError(t, err)

	want := "# Generated by " + common.Banner() + `. Do not edit.
cmake_minimum_required(VERSION 3.18)
project(geo CXX)

find_package(Python COMPONENTS Interpreter Development.Module REQUIRED)

set(WRAPPER_CPP ${CMAKE_CURRENT_BINARY_DIR}/geo.cpp)

add_custom_command(
    OUTPUT ${WRAPPER_CPP}
    COMMAND Python::Interpreter -m cython --cplus -3
        ${CMAKE_CURRENT_SOURCE_DIR}/geo.pyx -o ${WRAPPER_CPP}
    DEPENDS geo.pyx _geo.pxd
    WORKING_DIRECTORY ${CMAKE_CURRENT_SOURCE_DIR}
)

python_add_library(geo MODULE WITH_SOABI
    ${WRAPPER_CPP}
    src/geo.cpp
)

target_include_directories(geo PRIVATE
    ${CMAKE_CURRENT_SOURCE_DIR}
    include
)

target_link_libraries(geo PRIVATE
    m
)

target_compile_options(geo PRIVATE
    -std=c++17
)

install(TARGETS geo LIBRARY DESTINATION .)
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CMakeLists.txt mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderUnknownSystem(t *testing.T) {
	_, err := Render(Descriptor{System: "bazel", Module: "m"})
	assert.ErrorContains(t, err, "bazel")
}

func TestQuoting(t *testing.T) {
	tests := []struct {
		in     string
		py, cm string
	}{
		{"include", `"include"`, "include"},
		{"/opt/my libs", `"/opt/my libs"`, `"/opt/my libs"`},
		{`a\b`, `"a\\b"`, `"a\\b"`},
		{`say "hi"`, `"say \"hi\""`, `"say \"hi\""`},
		{"a;b", `"a;b"`, `"a\;b"`},
		{"", `""`, `""`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.py, pyString(tt.in))
			assert.Equal(t, tt.cm, cmakeArg(tt.in))
		})
	}
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		in      string
		want    System
		wantErr bool
	}{
		{"", Setuptools, false},
		{"setuptools", Setuptools, false},
		{" CMake ", CMake, false},
		{"meson", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSystem(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "setup.py", Setuptools.ArtifactName())
	assert.Equal(t, "CMakeLists.txt", CMake.ArtifactName())
}
