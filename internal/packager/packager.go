// Package packager implements C8, the bytecode packager and loader (spec
// §4.8): compiling a script to engine bytecode, appending it as a footer to
// a copy of the host executable, and detecting/loading that footer back at
// startup.
//
// goja does not expose a public bytecode serialization format the way a
// QuickJS- or V8-based host would (original_source's real bytecode dump has
// no goja equivalent to call). The footer therefore carries the
// already-compile-checked source bytes rather than a serialized
// *goja.Program: Build still performs the real compile-to-catch-syntax-
// errors step spec §4.8 asks for before ever writing the footer, and
// DetectAndLoad recompiles those bytes through the same goja.Compile call a
// normal run would use. This is documented as an Open Question resolution
// in DESIGN.md rather than left implicit.
package packager

import (
	"errors"
	"os"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/config"
	"github.com/R3E-Network/jsrt-go/internal/module"
	"github.com/R3E-Network/jsrt-go/internal/rterrors"
)

// boundary is the literal ASCII footer marker (spec §6), shared with
// internal/config so both the runtime's documented constants and this
// package's on-disk format stay a single source of truth.
const boundary = config.BytecodeBoundary

const sizeFieldLen = 8 // u64 big-endian

// Build implements spec §4.8's build steps: compile source to bytecode,
// copy hostExecutablePath to outputPath, append the footer, chmod 0755.
func Build(hostExecutablePath, sourcePath, outputPath string) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return rterrors.IO("reading %s: %v", sourcePath, err)
	}

	if module.IsESModuleSyntax(string(src)) {
		return rterrors.Syntax("%s: cannot compile ES-module syntax to bytecode, use classic-script form", sourcePath)
	}

	// Compile-only: catches syntax errors before the footer is ever
	// written, same as spec §4.8 step 2. The resulting *goja.Program isn't
	// itself serialized (see package doc); the already-validated source
	// bytes are the payload.
	if _, err := goja.Compile(sourcePath, string(src), false); err != nil {
		return rterrors.Syntax("compiling %s: %v", sourcePath, err)
	}

	host, err := os.ReadFile(hostExecutablePath)
	if err != nil {
		return rterrors.IO("reading host executable %s: %v", hostExecutablePath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return rterrors.IO("creating %s: %v", outputPath, err)
	}
	defer out.Close()

	if _, err := out.Write(host); err != nil {
		return rterrors.IO("writing host bytes: %v", err)
	}
	if _, err := out.Write(src); err != nil {
		return rterrors.IO("writing bytecode payload: %v", err)
	}
	if _, err := out.Write([]byte(boundary)); err != nil {
		return rterrors.IO("writing boundary: %v", err)
	}
	if _, err := out.Write(encodeSize(uint64(len(src)))); err != nil {
		return rterrors.IO("writing size footer: %v", err)
	}

	if err := out.Close(); err != nil {
		return rterrors.IO("closing %s: %v", outputPath, err)
	}
	if err := os.Chmod(outputPath, 0o755); err != nil {
		return rterrors.IO("chmod %s: %v", outputPath, err)
	}
	return nil
}

// errNoEmbeddedPayload signals "not a packaged executable" to DetectAndLoad
// callers, who should fall back to normal argv dispatch per spec §4.8.
var errNoEmbeddedPayload = errors.New("no embedded bytecode payload")

// DetectAndLoad implements spec §4.8's detect-and-run startup check against
// the currently running executable. On any failure it returns
// errNoEmbeddedPayload; callers should treat that, specifically, as "fall
// back to normal argv dispatch" rather than a hard error.
func DetectAndLoad(executablePath string) (*goja.Program, error) {
	f, err := os.Open(executablePath)
	if err != nil {
		return nil, errNoEmbeddedPayload
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errNoEmbeddedPayload
	}
	fileSize := info.Size()
	footerLen := int64(len(boundary) + sizeFieldLen)
	if fileSize < footerLen {
		return nil, errNoEmbeddedPayload
	}

	footer := make([]byte, footerLen)
	if _, err := f.ReadAt(footer, fileSize-footerLen); err != nil {
		return nil, errNoEmbeddedPayload
	}
	if string(footer[:len(boundary)]) != boundary {
		return nil, errNoEmbeddedPayload
	}

	size := decodeSize(footer[len(boundary):])
	bytecodeStart := fileSize - footerLen - int64(size)
	if bytecodeStart < 0 {
		return nil, errNoEmbeddedPayload
	}

	payload := make([]byte, size)
	if _, err := f.ReadAt(payload, bytecodeStart); err != nil {
		return nil, errNoEmbeddedPayload
	}

	prog, err := goja.Compile(executablePath, string(payload), false)
	if err != nil {
		return nil, errNoEmbeddedPayload
	}
	return prog, nil
}

// IsNoPayload reports whether err is DetectAndLoad's "not a packaged
// executable" sentinel. DetectAndLoad returns that sentinel for every
// failure, I/O errors included.
func IsNoPayload(err error) bool {
	return errors.Is(err, errNoEmbeddedPayload)
}

func encodeSize(n uint64) []byte {
	b := make([]byte, sizeFieldLen)
	for i := 0; i < sizeFieldLen; i++ {
		b[sizeFieldLen-1-i] = byte(n >> (8 * i))
	}
	return b
}

func decodeSize(b []byte) uint64 {
	var n uint64
	for i := 0; i < sizeFieldLen; i++ {
		n = n<<8 | uint64(b[i])
	}
	return n
}
