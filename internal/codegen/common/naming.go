package common

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Python keywords plus the Cython words that cannot be used as identifiers in a .pyx file.
var reserved = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true, "def": true,
	"del": true, "elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true, "print": true,
	"exec": true,
	"cdef": true, "cpdef": true, "cimport": true, "ctypedef": true, "cppclass": true,
	"extern": true, "include": true, "gil": true, "nogil": true, "inline": true, "readonly": true,
	"public": true, "api": true, "struct": true, "union": true, "enum": true, "new": true,
	"del_": true, "sizeof": true, "NULL": true, "self": true, "cpp": true, "deref": true,
}

// IsReserved reports whether name cannot be used verbatim as a Python/Cython identifier.
func IsReserved(name string) bool { return reserved[name] }

// SafeIdent returns name, suffixed with "_" when it collides with a reserved word.
func SafeIdent(name string) string {
	if reserved[name] {
		return name + "_"
	}
	return name
}

// IsIdentifier reports whether s is a valid ASCII Python identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// SanitizeLeadingDigit prefixes names that start with a digit with "Num"
// to keep identifiers valid in target languages.
func SanitizeLeadingDigit(name string) string {
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "Num" + name
	}
	return name
}

// ModuleNameFor derives a module name from a header path: "include/MyLib.hpp" -> "my_lib".
func ModuleNameFor(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		if r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return SanitizeLeadingDigit(ToSnakeCase(b.String()))
}

func ToSnakeCase(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		isUpper := r >= 'A' && r <= 'Z'

		if i > 0 && isUpper {
			// "someWord" -> "some_word"
			prevIsLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			// "XMLParser" -> "xml_parser", not "x_m_l_parser"
			nextIsLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if (prevIsLower || nextIsLower) && runes[i-1] != '_' {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// SortedKeys returns the sorted keys of a string-keyed map.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
