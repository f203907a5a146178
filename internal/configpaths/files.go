package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// BaseName is the file name, without extension, of project-local configuration files.
const BaseName = "cxxwrap"

// DefaultConfigDir returns the platform-specific configuration directory for cxxwrap.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "cxxwrap"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "cxxwrap"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "cxxwrap"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// DefaultConfigPath returns the user-wide config file path for the given format.
func DefaultConfigPath(format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config."+extension(format)), nil
}

// LocalConfigPath returns the project-local config file path in dir for the given format.
func LocalConfigPath(dir, format string) string {
	return filepath.Join(dir, BaseName+"."+extension(format))
}

func extension(format string) string {
	switch format {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	}
	return "json"
}

// EnsureDir ensures the directory for a given file path exists.
func EnsureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return os.MkdirAll(dir, 0o755)
}

// ConfigCandidatePaths builds candidate paths for config files per format.
// If userPath is provided, it is prioritized and routed to the matching loader by extension.
func ConfigCandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(slice *[]string, p string) { *slice = append(*slice, p) }

	if userPath != "" {
		switch ext := filepath.Ext(userPath); ext {
		case ".yaml", ".yml":
			add(&yamlPaths, userPath)
		case ".toml":
			add(&tomlPaths, userPath)
		default:
			add(&jsonPaths, userPath)
		}
		// An explicit file replaces discovery.
		return
	}

	for _, loc := range locations() {
		add(&jsonPaths, filepath.Join(loc.dir, loc.base+".json"))
		add(&yamlPaths, filepath.Join(loc.dir, loc.base+".yaml"))
		add(&yamlPaths, filepath.Join(loc.dir, loc.base+".yml"))
		add(&tomlPaths, filepath.Join(loc.dir, loc.base+".toml"))
	}
	return
}

type location struct{ dir, base string }

// locations lists the discovery directories: the working directory, then the config home.
func locations() []location {
	var out []location
	if wd, err := os.Getwd(); err == nil {
		out = append(out, location{wd, BaseName})
	}
	if dir, err := DefaultConfigDir(); err == nil {
		out = append(out, location{dir, "config"})
	}
	return out
}

// Find returns the configuration file cxxwrap reads: userPath when given, otherwise the
// first existing candidate. It returns "" when there is none.
func Find(userPath string) string {
	if userPath != "" {
		return userPath
	}
	for _, loc := range locations() {
		for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
			p := filepath.Join(loc.dir, loc.base+ext)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p
			}
		}
	}
	return ""
}
