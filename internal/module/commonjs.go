package module

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/rterrors"
)

// BuiltinLoader synthesizes a std: module's exports natively (spec §4.4:
// "Builtin std:… require bypasses resolution and directly returns the
// native-synthesised module"). Supplied by internal/builtin at wiring time
// to avoid an import cycle (builtins call back into require()).
type BuiltinLoader func(rt *goja.Runtime, name string) (goja.Value, error)

// cacheEntry tracks an in-progress or completed require(), so circular
// requires observe the partially-populated exports object (spec §4.4:
// "Circular requires return the currently-in-progress exports object").
type cacheEntry struct {
	exports goja.Value
	done    bool
}

// System is the module subsystem bound to one goja.Runtime: it owns the
// CommonJS require cache and dispatches require() through the shared
// resolver. Dynamic import() is not provided.
type System struct {
	rt      *goja.Runtime
	cache   map[string]*cacheEntry
	builtin BuiltinLoader
}

// New binds a module System to rt. builtin may be nil until
// internal/builtin is wired in; requiring a std: module before that fails
// with an ErrResolve error, which require() throws as a ReferenceError.
func New(rt *goja.Runtime, builtin BuiltinLoader) *System {
	return &System{
		rt:      rt,
		cache:   make(map[string]*cacheEntry),
		builtin: builtin,
	}
}

// Install exposes require() as a global, with importerDir as the directory
// requires from the entry script resolve against. Modules loaded via
// require get their own require bound to their own directory (see
// requireFn), so nested requires resolve relatively to the requiring file.
func (s *System) Install(importerDir string) error {
	return s.rt.Set("require", s.requireFn(importerDir))
}

func (s *System) requireFn(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(s.rt.NewTypeError("require requires a specifier argument"))
		}
		specifier := call.Arguments[0].String()
		exports, err := s.Require(specifier, dir)
		if err != nil {
			if errors.Is(err, rterrors.ErrResolve) {
				if refErr, nerr := s.rt.New(s.rt.Get("ReferenceError"), s.rt.ToValue(err.Error())); nerr == nil {
					panic(refErr)
				}
			}
			panic(s.rt.ToValue(err.Error()))
		}
		return exports
	}
}

// Require implements spec §4.4's CommonJS algorithm (steps 1-7), resolving
// specifier relative to importerDir.
func (s *System) Require(specifier, importerDir string) (goja.Value, error) {
	resolved, err := Resolve(specifier, importerDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rterrors.ErrResolve, specifier)
	}

	if resolved.Kind == KindBuiltin {
		if !IsKnownBuiltin(resolved.Name) {
			return nil, fmt.Errorf("%w: unknown builtin std:%s", rterrors.ErrResolve, resolved.Name)
		}
		if s.builtin == nil {
			return nil, fmt.Errorf("%w: builtin std:%s not wired", rterrors.ErrResolve, resolved.Name)
		}
		return s.builtin(s.rt, resolved.Name)
	}

	if entry, ok := s.cache[resolved.Path]; ok {
		// Circular require: entry.exports is whatever the in-progress
		// module has assigned to module.exports so far.
		return entry.exports, nil
	}

	entry := &cacheEntry{exports: s.rt.NewObject()}
	s.cache[resolved.Path] = entry

	source, err := os.ReadFile(resolved.Path)
	if err != nil {
		return nil, rterrors.IO("read %s: %v", resolved.Path, err)
	}

	wrapped := fmt.Sprintf("(function(exports, require, module, __filename, __dirname) {\n%s\n})", source)
	prog, err := goja.Compile(resolved.Path, wrapped, false)
	if err != nil {
		return nil, rterrors.Syntax("%s: %v", resolved.Path, err)
	}
	wrapperVal, err := s.rt.RunProgram(prog)
	if err != nil {
		return nil, rterrors.Syntax("%s: %v", resolved.Path, err)
	}
	wrapperFn, ok := goja.AssertFunction(wrapperVal)
	if !ok {
		return nil, rterrors.Syntax("%s: module wrapper did not compile to a function", resolved.Path)
	}

	moduleObj := s.rt.NewObject()
	_ = moduleObj.Set("exports", entry.exports)
	dir := filepath.Dir(resolved.Path)

	_, err = wrapperFn(goja.Undefined(),
		entry.exports,
		s.rt.ToValue(s.requireFn(dir)),
		moduleObj,
		s.rt.ToValue(resolved.Path),
		s.rt.ToValue(dir),
	)
	if err != nil {
		delete(s.cache, resolved.Path)
		return nil, fmt.Errorf("%w: %s: %v", rterrors.ErrType, resolved.Path, err)
	}

	// module.exports may have been reassigned wholesale, possibly to a
	// primitive (module.exports = 42); cache and return whatever it points
	// to now rather than assuming in-place mutation of entry.exports, so a
	// later require of the same path returns the same value.
	entry.exports = moduleObj.Get("exports")
	entry.done = true
	return entry.exports, nil
}

// FileURL derives the import.meta.url value for an ES module's absolute
// path (spec §4.4: "populate import.meta.url with a file://… URL derived
// from the absolute path").
func FileURL(absPath string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}
	return u.String()
}
