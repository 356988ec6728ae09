// Package module implements C4, the module subsystem (spec §4.4): a shared
// resolver, an ES module loader, and a CommonJS require() loader with its
// own cache. Grounded on the teacher's layered-resolution style (e.g.
// internal/config's env-then-default fallback chain) generalized into a
// path resolver, since the teacher has no module loader of its own to copy.
package module

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/R3E-Network/jsrt-go/internal/config"
	"github.com/R3E-Network/jsrt-go/internal/rterrors"
)

// BuiltinNames lists the synthesized std: modules this runtime ships (spec
// §4.4 step 1, §3 supplemented builtins). Kept here so Require can validate
// (via IsKnownBuiltin) without importing internal/builtin (which would create an import cycle,
// since builtins reach back into module state such as require()).
var BuiltinNames = map[string]bool{
	"assert": true,
	"process": true,
	"ffi": true,
}

// Kind distinguishes how a specifier resolved, so callers route Builtin
// specifiers to the synthesized table instead of the filesystem.
type Kind int

const (
	KindBuiltin Kind = iota
	KindFile
)

// Resolved is the outcome of resolving one specifier against one importing
// module's directory.
type Resolved struct {
	Kind Kind
	// Name is the bare std: name for KindBuiltin (without the prefix).
	Name string
	// Path is the absolute, suffix-probed filesystem path for KindFile.
	Path string
}

// Resolve implements spec §4.4's five-step resolver. importerDir is the
// directory of the module doing the importing (ignored for absolute
// specifiers and std: names).
func Resolve(specifier, importerDir string) (Resolved, error) {
	if name, ok := strings.CutPrefix(specifier, "std:"); ok {
		return Resolved{Kind: KindBuiltin, Name: name}, nil
	}

	var base string
	switch {
	case filepath.IsAbs(specifier):
		base = specifier
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		base = filepath.Join(importerDir, specifier)
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return Resolved{}, rterrors.Resolve("getwd: %v", err)
		}
		base = filepath.Join(cwd, specifier)
	}

	for _, suffix := range config.ModuleSuffixes {
		candidate := base + suffix
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return Resolved{}, rterrors.Resolve("%s: %v", specifier, err)
			}
			return Resolved{Kind: KindFile, Path: abs}, nil
		}
	}
	return Resolved{}, rterrors.Resolve("cannot find module %q", specifier)
}

// IsKnownBuiltin reports whether name (without the std: prefix) is a
// recognised builtin (spec §4.4 failure mode: unknown std: name).
func IsKnownBuiltin(name string) bool {
	return BuiltinNames[name]
}
