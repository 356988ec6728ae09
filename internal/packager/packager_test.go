package packager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, mode os.FileMode, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestBuildAppendsFooterAndChmods(t *testing.T) {
	dir := t.TempDir()
	host := writeFile(t, dir, "host", 0o755, "fake-host-binary-bytes")
	src := writeFile(t, dir, "script.js", 0o644, `var x = 1 + 1;`)
	out := filepath.Join(dir, "bundled")

	require.NoError(t, Build(host, src, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	prog, err := DetectAndLoad(out)
	require.NoError(t, err)
	assert.NotNil(t, prog)
}

func TestBuildRejectsESModuleSyntax(t *testing.T) {
	dir := t.TempDir()
	host := writeFile(t, dir, "host", 0o755, "fake-host-binary-bytes")
	src := writeFile(t, dir, "script.js", 0o644, `export const x = 1;`)
	out := filepath.Join(dir, "bundled")

	err := Build(host, src, out)
	require.Error(t, err)
}

func TestBuildRejectsSyntaxErrors(t *testing.T) {
	dir := t.TempDir()
	host := writeFile(t, dir, "host", 0o755, "fake-host-binary-bytes")
	src := writeFile(t, dir, "script.js", 0o644, `var x = ;;;`)
	out := filepath.Join(dir, "bundled")

	err := Build(host, src, out)
	require.Error(t, err)
}

func TestDetectAndLoadReportsNoPayloadOnPlainExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "plain", 0o755, "just a regular binary, no footer here")

	_, err := DetectAndLoad(plain)
	require.Error(t, err)
	assert.True(t, IsNoPayload(err))
}

func TestDetectAndLoadReportsNoPayloadOnTruncatedFooter(t *testing.T) {
	dir := t.TempDir()
	short := writeFile(t, dir, "short", 0o755, "tiny")

	_, err := DetectAndLoad(short)
	require.Error(t, err)
	assert.True(t, IsNoPayload(err))
}
