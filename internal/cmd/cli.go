package cmd

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/Alia5/cxxwrap/internal/config"
	"github.com/Alia5/cxxwrap/internal/configpaths"
	"github.com/Alia5/cxxwrap/internal/log"
)

// CLI is the root command line of cxxwrap. Flags are also read from the configuration file.
type CLI struct {
	Log        LogOptions       `embed:"" prefix:"log."`
	Version    kong.VersionFlag `help:"Print the version and exit"`
	Verbose    int              `short:"v" type:"counter" help:"Increase verbosity (-v debug, -vv trace)"`
	ConfigFile string           `name:"config" help:"Configuration file (JSON, YAML or TOML). Discovered when omitted" type:"path" env:"CXXWRAP_CONFIG"`

	Generate Generate      `cmd:"" default:"withargs" help:"Generate Cython bindings for C++ headers"`
	Inspect  Inspect       `cmd:"" help:"Print the declarations found in C++ headers"`
	Config   ConfigCommand `cmd:"" help:"Manage configuration files"`
}

type LogOptions struct {
	Level string `help:"Log level: trace, debug, info, warn, error" default:"info" enum:"trace,debug,info,warn,error" env:"CXXWRAP_LOG_LEVEL"`
	File  string `help:"Also write logs to this file" type:"path" env:"CXXWRAP_LOG_FILE"`
}

// LogLevel returns the configured level raised by --verbose.
func (c *CLI) LogLevel() string {
	return log.Verbosity(c.Log.Level, c.Verbose)
}

// ProvideConfig reads the generator configuration from --config or the first discovered
// file. Without a file it returns the defaults. Kong calls it to bind config.Config.
func (c *CLI) ProvideConfig(logger *slog.Logger) (config.Config, error) {
	path := configpaths.Find(c.ConfigFile)
	if path == "" {
		logger.Debug("No configuration file, using defaults")
		return config.Default(), nil
	}
	cfg, unused, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	logger.Debug("Loaded configuration", "path", path)
	for _, key := range unused {
		logger.Debug("Configuration key not used by the generator", "key", key)
	}
	return cfg, nil
}
