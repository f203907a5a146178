// Package config holds the generator configuration: type overrides, build options and
// template specializations, decoded from JSON, YAML or TOML files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/mitchellh/mapstructure"
	toml "github.com/pelletier/go-toml"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/cxxwrap/internal/codegen/common"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/build"
	"github.com/Alia5/cxxwrap/internal/codegen/generator/pyx"
	"github.com/Alia5/cxxwrap/internal/codegen/overload"
	"github.com/Alia5/cxxwrap/internal/codegen/typemap"
)

// Config is the generator configuration. Keys not listed here are ignored.
type Config struct {
	// TypeOverrides maps normalized C++ type spellings to host types: "MyInt": "int".
	TypeOverrides      map[string]string `json:"type_overrides,omitempty" yaml:"type_overrides,omitempty" toml:"type_overrides,omitempty" mapstructure:"type_overrides"`
	ExtraCompileFlags  []string          `json:"extra_compile_flags,omitempty" yaml:"extra_compile_flags,omitempty" toml:"extra_compile_flags,omitempty" mapstructure:"extra_compile_flags"`
	ExtraLinkLibraries []string          `json:"extra_link_libraries,omitempty" yaml:"extra_link_libraries,omitempty" toml:"extra_link_libraries,omitempty" mapstructure:"extra_link_libraries"`
	LibraryDirs        []string          `json:"library_dirs,omitempty" yaml:"library_dirs,omitempty" toml:"library_dirs,omitempty" mapstructure:"library_dirs"`

	// TemplateSpecializations maps qualified template names to their instantiations.
	TemplateSpecializations map[string][]pyx.Specialization `json:"template_specializations,omitempty" yaml:"template_specializations,omitempty" toml:"template_specializations,omitempty" mapstructure:"template_specializations"`
	OverloadPolicy          string                          `json:"overload_policy,omitempty" yaml:"overload_policy,omitempty" toml:"overload_policy,omitempty" mapstructure:"overload_policy"`
	BuildSystem             string                          `json:"build_system,omitempty" yaml:"build_system,omitempty" toml:"build_system,omitempty" mapstructure:"build_system"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		OverloadPolicy: string(overload.FirstCompatible),
		BuildSystem:    string(build.Setuptools),
	}
}

// Format is a configuration file syntax.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ParseFormat normalizes a format name. It returns "" for unsupported names.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return JSON
	case "yaml", "yml":
		return YAML
	case "toml":
		return TOML
	}
	return ""
}

// FormatOf derives the format from a file extension, defaulting to JSON.
func FormatOf(path string) Format {
	if f := ParseFormat(filepath.Ext(path)); f != "" {
		return f
	}
	return JSON
}

// Load reads and decodes the configuration file at path. The returned keys are the ones
// present in the file but not recognized.
func Load(path string) (Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, unused, err := Parse(data, FormatOf(path))
	if err != nil {
		return Config{}, nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, unused, nil
}

// Parse decodes data in format f on top of Default.
func Parse(data []byte, f Format) (Config, []string, error) {
	raw := map[string]any{}
	switch f {
	case JSON:
		if len(bytes.TrimSpace(data)) == 0 {
			break
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, nil, fmt.Errorf("parse json: %w", err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, nil, fmt.Errorf("parse yaml: %w", err)
		}
	case TOML:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return Config{}, nil, fmt.Errorf("parse toml: %w", err)
		}
		raw = tree.ToMap()
	default:
		return Config{}, nil, fmt.Errorf("unsupported config format %q", f)
	}
	return Decode(raw)
}

// Decode decodes a loosely typed map on top of Default. List options also accept a single
// shell-quoted string: "-O2 -DNAME='a b'".
func Decode(raw map[string]any) (Config, []string, error) {
	cfg := Default()
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       splitWords,
		Metadata:         &md,
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, nil, fmt.Errorf("config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, nil, fmt.Errorf("decode config: %w", err)
	}
	unused := md.Unused
	sort.Strings(unused)
	return cfg, unused, nil
}

func splitWords(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}
	words, err := shlex.Split(data.(string))
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", data, err)
	}
	return words, nil
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	var errs error
	if _, err := typemap.New(c.TypeOverrides); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("type_overrides: %w", err))
	}
	if _, err := overload.ParsePolicy(c.OverloadPolicy); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("overload_policy: %w", err))
	}
	if _, err := build.ParseSystem(c.BuildSystem); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("build_system: %w", err))
	}

	seen := map[string]string{}
	for _, k := range common.SortedKeys(c.TemplateSpecializations) {
		for i, s := range c.TemplateSpecializations[k] {
			where := fmt.Sprintf("template_specializations[%s][%d]", k, i)
			if !common.IsIdentifier(s.Name) || common.IsReserved(s.Name) {
				errs = multierr.Append(errs, fmt.Errorf("%s: name %q is not a valid Python identifier", where, s.Name))
			} else if prev, ok := seen[s.Name]; ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: name %q already used by %s", where, s.Name, prev))
			} else {
				seen[s.Name] = k
			}
			if len(s.Types) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s: no types", where))
			}
		}
	}
	return errs
}

// Policy returns the configured overload policy. Call after Validate.
func (c Config) Policy() overload.Policy {
	p, err := overload.ParsePolicy(c.OverloadPolicy)
	if err != nil {
		return overload.FirstCompatible
	}
	return p
}

// System returns the configured build system. Call after Validate.
func (c Config) System() build.System {
	s, err := build.ParseSystem(c.BuildSystem)
	if err != nil {
		return build.Setuptools
	}
	return s
}

// Marshal encodes c in format f, for scaffolding.
func (c Config) Marshal(f Format) ([]byte, error) {
	switch f {
	case JSON:
		return json.MarshalIndent(c, "", "  ")
	case YAML:
		return yaml.Marshal(c)
	case TOML:
		return toml.Marshal(c)
	}
	return nil, fmt.Errorf("unsupported config format %q", f)
}
