package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T) (*goja.Runtime, *System, string) {
	t.Helper()
	rt := goja.New()
	dir := t.TempDir()
	sys := New(rt, nil)
	require.NoError(t, sys.Install(dir))
	return rt, sys, dir
}

func TestRequireReturnsExports(t *testing.T) {
	rt, sys, dir := newTestSystem(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.js"), []byte(`
		module.exports.add = function(a, b) { return a + b; };
	`), 0o644))

	exports, err := sys.Require("./lib", dir)
	require.NoError(t, err)

	_ = rt.Set("lib", exports)
	val, err := rt.RunString("lib.add(2, 3)")
	require.NoError(t, err)
	assert.Equal(t, int64(5), val.ToInteger())
}

func TestRequireCachesModule(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.js"), []byte(`
		module.exports.n = (module.exports.n || 0) + 1;
	`), 0o644))

	first, err := sys.Require("./counter", dir)
	require.NoError(t, err)
	second, err := sys.Require("./counter", dir)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRequireUnknownBuiltinFails(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	_, err := sys.Require("std:not-a-thing", dir)
	assert.Error(t, err)
}

func TestRequireMissingFileFails(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	_, err := sys.Require("./does-not-exist", dir)
	assert.Error(t, err)
}

func TestRequireReturnsPrimitiveModuleExports(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "num.js"), []byte(`
		module.exports = 42;
	`), 0o644))

	exports, err := sys.Require("./num", dir)
	require.NoError(t, err)
	assert.Equal(t, int64(42), exports.ToInteger())
}

func TestRequireReturnsStringModuleExports(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "str.js"), []byte(`
		module.exports = "hello";
	`), 0o644))

	exports, err := sys.Require("./str", dir)
	require.NoError(t, err)
	assert.Equal(t, "hello", exports.String())
}

func TestRequireCircularReturnsPartialExports(t *testing.T) {
	_, sys, dir := newTestSystem(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte(`
		module.exports.name = "a";
		var b = require("./b");
		module.exports.bName = b.name;
	`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.js"), []byte(`
		module.exports.name = "b";
		var a = require("./a");
		module.exports.aNameAtLoadTime = a.name;
	`), 0o644))

	a, err := sys.Require("./a", dir)
	require.NoError(t, err)
	aObj := a.(*goja.Object)
	assert.Equal(t, "a", aObj.Get("name").String())
	assert.Equal(t, "b", aObj.Get("bName").String())
}
