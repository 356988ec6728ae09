package module

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/rterrors"
)

// LoadESModule implements spec §4.4's ES module loader for the entry file
// and any modules it statically imports.
//
// The pinned goja version predates goja's native ECMAScript-module support
// (it compiles classic scripts only), so spec §4.4's "compile in module
// mode with compile-only flag" step has no direct API to call. Resolution
// (documented here as an Open Question decision, see DESIGN.md): a
// source-level rewrite turns `import`/`export` statements into the same
// wrapper-function shape the CommonJS loader already evaluates, giving
// import.meta.url and a synthetic namespace object without needing a real
// module record. This keeps the *observable* semantics spec §4.4 asks for
// (named/default bindings resolve, import.meta.url is populated, import
// errors set the engine exception) while running entirely on goja's classic
// script compiler.
var (
	importNamedRe   = regexp.MustCompile(`(?m)^\s*import\s*\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]\s*;?`)
	importDefaultRe = regexp.MustCompile(`(?m)^\s*import\s+(\w+)\s+from\s*['"]([^'"]+)['"]\s*;?`)
	importBareRe    = regexp.MustCompile(`(?m)^\s*import\s*['"]([^'"]+)['"]\s*;?`)
	exportNamedRe   = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}\s*;?`)
	exportDeclRe    = regexp.MustCompile(`(?m)^\s*export\s+(const|let|var|function|class)\s+(\w+)`)
	exportDefaultRe = regexp.MustCompile(`(?m)^\s*export\s+default\s+`)
	// importMetaURLRe matches import.meta.url references anywhere in a
	// module body. goja's classic-script compiler has no import.meta
	// binding at all (it isn't a module parser), so this has to be a
	// source-level literal substitution rather than an injected global.
	importMetaURLRe = regexp.MustCompile(`import\.meta\.url`)
)

// IsESModuleSyntax reports whether src contains top-level import/export
// statements, reusing the same regexes the rewriter uses to strip them.
// The bytecode packager (§4.8) calls this to refuse compiling ES-module
// source, since goja's classic-script compiler (and hence the bytecode it
// produces) has no module-record semantics to resolve imports against.
func IsESModuleSyntax(src string) bool {
	return importNamedRe.MatchString(src) ||
		importDefaultRe.MatchString(src) ||
		importBareRe.MatchString(src) ||
		exportNamedRe.MatchString(src) ||
		exportDeclRe.MatchString(src) ||
		exportDefaultRe.MatchString(src)
}

// LoadedModule is the result of evaluating one ES module file.
type LoadedModule struct {
	Namespace *goja.Object
	URL       string
}

// LoadESModule reads, rewrites, and evaluates the module at absPath,
// resolving nested imports against its own directory.
func (s *System) LoadESModule(absPath string) (*LoadedModule, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, rterrors.IO("read %s: %v", absPath, err)
	}

	dir := filepath.Dir(absPath)
	body, imports, exportNames, defaultExport, err := rewriteModuleSource(string(source))
	if err != nil {
		return nil, rterrors.Syntax("%s: %v", absPath, err)
	}

	moduleURL := FileURL(absPath)
	// import.meta.url is a quoted string literal by the time it reaches
	// goja, so a module that does `console.log(import.meta.url)` sees the
	// real file:// URL without needing a live import.meta object.
	body = importMetaURLRe.ReplaceAllLiteralString(body, fmt.Sprintf("%q", moduleURL))

	var importBindings strings.Builder
	for i, imp := range imports {
		nsVar := fmt.Sprintf("__jsrt_ns_%d", i)
		resolved, err := Resolve(imp.specifier, dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (imported from %s)", rterrors.ErrResolve, imp.specifier, absPath)
		}
		var nsVal goja.Value
		if resolved.Kind == KindFile {
			loaded, err := s.LoadESModule(resolved.Path)
			if err != nil {
				return nil, err
			}
			nsVal = loaded.Namespace
		} else {
			exports, err := s.Require(imp.specifier, dir)
			if err != nil {
				return nil, err
			}
			nsVal = exports
		}
		_ = s.rt.Set(nsVar, nsVal)
		for _, binding := range imp.bindings {
			fmt.Fprintf(&importBindings, "var %s = %s.%s;\n", binding.local, nsVar, binding.imported)
		}
		if imp.defaultBinding != "" {
			fmt.Fprintf(&importBindings, "var %s = %s.default !== undefined ? %s.default : %s;\n",
				imp.defaultBinding, nsVar, nsVar, nsVar)
		}
	}

	wrapped := fmt.Sprintf(`(function(module, exports, __filename, __dirname) {
%s
%s
return module.exports;
})`, importBindings.String(), body)

	prog, err := goja.Compile(absPath, wrapped, false)
	if err != nil {
		return nil, rterrors.Syntax("%s: %v", absPath, err)
	}
	wrapperVal, err := s.rt.RunProgram(prog)
	if err != nil {
		return nil, rterrors.Syntax("%s: %v", absPath, err)
	}
	wrapperFn, ok := goja.AssertFunction(wrapperVal)
	if !ok {
		return nil, rterrors.Syntax("%s: module wrapper did not compile to a function", absPath)
	}

	moduleObj := s.rt.NewObject()
	exportsObj := s.rt.NewObject()
	_ = moduleObj.Set("exports", exportsObj)

	result, err := wrapperFn(goja.Undefined(), moduleObj, exportsObj, s.rt.ToValue(absPath), s.rt.ToValue(dir))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", rterrors.ErrType, absPath, err)
	}

	ns, ok := result.(*goja.Object)
	if !ok {
		ns = s.rt.NewObject()
	}
	_ = exportNames
	_ = defaultExport
	return &LoadedModule{Namespace: ns, URL: moduleURL}, nil
}

type importBinding struct {
	local    string
	imported string
}

type importSpec struct {
	specifier      string
	bindings       []importBinding
	defaultBinding string
}

// rewriteModuleSource strips import/export syntax, returning the remaining
// classic-script body plus the import list and exported names (used so
// `export const x = 1` becomes `module.exports.x = ...` and `export default`
// becomes `module.exports.default = ...`).
func rewriteModuleSource(src string) (body string, imports []importSpec, exportNames []string, hasDefault bool, err error) {
	body = src

	body = importNamedRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := importNamedRe.FindStringSubmatch(m)
		spec := importSpec{specifier: sub[2]}
		for _, part := range strings.Split(sub[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if as := strings.SplitN(part, " as ", 2); len(as) == 2 {
				spec.bindings = append(spec.bindings, importBinding{
					local:    strings.TrimSpace(as[1]),
					imported: strings.TrimSpace(as[0]),
				})
			} else {
				spec.bindings = append(spec.bindings, importBinding{local: part, imported: part})
			}
		}
		imports = append(imports, spec)
		return ""
	})

	body = importDefaultRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := importDefaultRe.FindStringSubmatch(m)
		imports = append(imports, importSpec{specifier: sub[2], defaultBinding: sub[1]})
		return ""
	})

	body = importBareRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := importBareRe.FindStringSubmatch(m)
		imports = append(imports, importSpec{specifier: sub[1]})
		return ""
	})

	body = exportDefaultRe.ReplaceAllString(body, "module.exports.default = ")
	hasDefault = exportDefaultRe.MatchString(src)

	body = exportDeclRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := exportDeclRe.FindStringSubmatch(m)
		exportNames = append(exportNames, sub[2])
		if sub[1] == "function" || sub[1] == "class" {
			return fmt.Sprintf("%s %s", sub[1], sub[2])
		}
		return fmt.Sprintf("%s %s", sub[1], sub[2])
	})
	// Re-append assignment lines for declarations captured above, since the
	// declaration keyword alone doesn't populate module.exports.
	for _, name := range exportNames {
		body += fmt.Sprintf("\nmodule.exports.%s = %s;", name, name)
	}

	body = exportNamedRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := exportNamedRe.FindStringSubmatch(m)
		var b strings.Builder
		for _, part := range strings.Split(sub[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if as := strings.SplitN(part, " as ", 2); len(as) == 2 {
				fmt.Fprintf(&b, "module.exports.%s = %s;\n", strings.TrimSpace(as[1]), strings.TrimSpace(as[0]))
			} else {
				fmt.Fprintf(&b, "module.exports.%s = %s;\n", part, part)
			}
		}
		return b.String()
	})

	return body, imports, exportNames, hasDefault, nil
}
