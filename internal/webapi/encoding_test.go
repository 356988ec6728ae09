package webapi

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEncodingTestRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	rt := goja.New()
	require.NoError(t, rt.Set("TextEncoder", NewTextEncoderConstructor(rt)))
	require.NoError(t, rt.Set("TextDecoder", NewTextDecoderConstructor(rt)))
	return rt
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rt := newEncodingTestRuntime(t)
	v, err := rt.RunString(`
		var s = "hello, éè world";
		new TextDecoder().decode(new TextEncoder().encode(s)) === s;
	`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestTextDecoderStripsBOMByDefault(t *testing.T) {
	rt := newEncodingTestRuntime(t)
	v, err := rt.RunString(`
		var buf = new TextEncoder().encode("﻿hi");
		new TextDecoder().decode(buf);
	`)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.String())
}

func TestTextDecoderFatalThrowsOnInvalidUTF8(t *testing.T) {
	rt := newEncodingTestRuntime(t)
	_, err := rt.RunString(`
		var buf = new ArrayBuffer(1);
		new Uint8Array(buf)[0] = 0xFF;
		new TextDecoder("utf-8", {fatal: true}).decode(buf);
	`)
	assert.Error(t, err)
}
