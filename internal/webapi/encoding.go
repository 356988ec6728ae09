package webapi

import (
	"unicode/utf8"

	"github.com/dop251/goja"
)

// NewTextEncoderConstructor builds the global `TextEncoder` (spec §4.6:
// "encoder emits UTF-8 into a fresh byte array").
func NewTextEncoderConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		obj := call.This
		_ = obj.Set("encoding", "utf-8")
		_ = obj.Set("encode", func(call goja.FunctionCall) goja.Value {
			s := ""
			if len(call.Arguments) > 0 {
				s = call.Arguments[0].String()
			}
			return rt.ToValue(rt.NewArrayBuffer([]byte(s)))
		})
		_ = obj.Set("encodeInto", func(call goja.FunctionCall) goja.Value {
			s := argString(call, 0)
			result := rt.NewObject()
			if len(call.Arguments) < 2 {
				_ = result.Set("read", 0)
				_ = result.Set("written", 0)
				return result
			}
			dstVal, ok := call.Arguments[1].Export().(goja.ArrayBuffer)
			if !ok {
				_ = result.Set("read", 0)
				_ = result.Set("written", 0)
				return result
			}
			dst := dstVal.Bytes()
			src := []byte(s)
			n := copy(dst, src)
			// Clamp to a valid UTF-8 boundary so a truncated multi-byte
			// sequence isn't split (spec §4.6: "clamped to the destination
			// length").
			for n > 0 && n < len(src) && !utf8.RuneStart(src[n]) {
				n--
			}
			_ = result.Set("read", len([]rune(string(src[:n]))))
			_ = result.Set("written", n)
			return result
		})
		return obj
	}
}

// textDecoderOptions holds {fatal, ignoreBOM} (spec §4.6).
type textDecoderOptions struct {
	fatal     bool
	ignoreBOM bool
}

// NewTextDecoderConstructor builds the global `TextDecoder`.
func NewTextDecoderConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		opts := textDecoderOptions{}
		if len(call.Arguments) > 1 {
			if o, ok := call.Arguments[1].(*goja.Object); ok {
				opts.fatal = toBool(o.Get("fatal"))
				opts.ignoreBOM = toBool(o.Get("ignoreBOM"))
			}
		}
		obj := call.This
		_ = obj.Set("encoding", "utf-8")
		_ = obj.Set("fatal", opts.fatal)
		_ = obj.Set("ignoreBOM", opts.ignoreBOM)
		_ = obj.Set("decode", func(call goja.FunctionCall) goja.Value {
			var b []byte
			if len(call.Arguments) > 0 {
				b = bytesFromValue(call.Arguments[0])
			}
			if !opts.ignoreBOM && len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
				b = b[3:]
			}
			if opts.fatal {
				if !utf8.Valid(b) {
					panic(rt.NewTypeError("TextDecoder: invalid UTF-8 sequence"))
				}
			}
			return rt.ToValue(string(b))
		})
		return obj
	}
}

// bytesFromValue accepts an ArrayBuffer or a typed-array-shaped object
// (anything exporting to goja.ArrayBuffer), otherwise falls back to an
// empty slice.
func bytesFromValue(v goja.Value) []byte {
	if ab, ok := v.Export().(goja.ArrayBuffer); ok {
		return ab.Bytes()
	}
	return nil
}
