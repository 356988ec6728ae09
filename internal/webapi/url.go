package webapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+\-.]*:`)

var hostRequiredSchemes = map[string]bool{
	"http": true, "https": true, "ws": true, "wss": true, "ftp": true,
}

var noHostSchemes = map[string]bool{
	"file": true, "data": true, "javascript": true, "blob": true,
}

var defaultPorts = map[string]string{
	"http": "80", "https": "443", "ws": "80", "wss": "443", "ftp": "21",
}

// parsedURL holds the decomposed components (spec §3 "URL components").
type parsedURL struct {
	protocol string // with trailing ':'
	host     string // host[:port], default port elided
	hostname string
	port     string
	pathname string
	search   string // with leading '?', empty string if none
	hash     string // with leading '#', empty string if none
	origin   string
}

func parseURL(raw string) (*parsedURL, error) {
	for _, r := range raw {
		if r == 0x09 || r == 0x0A || r == 0x0D || (r < 0x20 && r != 0x09 && r != 0x0A && r != 0x0D) {
			return nil, fmt.Errorf("invalid control character in URL")
		}
	}

	loc := schemeRe.FindStringIndex(raw)
	if loc == nil {
		return nil, fmt.Errorf("invalid URL: no scheme")
	}
	scheme := raw[:loc[1]-1]
	rest := raw[loc[1]:]
	schemeLower := strings.ToLower(scheme)

	p := &parsedURL{protocol: schemeLower + ":"}

	if noHostSchemes[schemeLower] {
		p.pathname, p.search, p.hash = splitPathSearchHash(rest)
		if strings.HasPrefix(p.pathname, "//") {
			p.pathname = p.pathname[2:]
		}
		p.origin = "null"
		p.host, p.hostname, p.port = "", "", ""
		return p, nil
	}

	if !strings.HasPrefix(rest, "//") {
		if hostRequiredSchemes[schemeLower] {
			return nil, fmt.Errorf("%s: URL requires a host", schemeLower)
		}
		p.pathname, p.search, p.hash = splitPathSearchHash(rest)
		p.origin = "null"
		return p, nil
	}
	rest = rest[2:]

	if idx := strings.IndexByte(rest, '@'); idx >= 0 {
		return nil, fmt.Errorf("userinfo in URL is not supported")
	}

	authEnd := len(rest)
	for i, c := range rest {
		if c == '/' || c == '?' || c == '#' {
			authEnd = i
			break
		}
	}
	authority := rest[:authEnd]
	rest = rest[authEnd:]

	if strings.HasPrefix(authority, "[") {
		return nil, fmt.Errorf("IPv6 host literals are not supported")
	}

	hostname, port := authority, ""
	if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		hostname, port = authority[:idx], authority[idx+1:]
		if _, err := strconv.Atoi(port); port != "" && err != nil {
			return nil, fmt.Errorf("invalid port %q", port)
		}
	}
	if hostname == "" && hostRequiredSchemes[schemeLower] {
		return nil, fmt.Errorf("%s: URL requires a host", schemeLower)
	}

	p.hostname = hostname
	p.port = port
	if port != "" && port != defaultPorts[schemeLower] {
		p.host = hostname + ":" + port
	} else {
		p.host = hostname
		p.port = "" // default port elided from .port too, matching .host elision
	}

	p.pathname, p.search, p.hash = splitPathSearchHash(rest)
	if p.pathname == "" {
		p.pathname = "/"
	}

	if port != "" && port != defaultPorts[schemeLower] {
		p.origin = fmt.Sprintf("%s://%s:%s", schemeLower, hostname, port)
	} else {
		p.origin = fmt.Sprintf("%s://%s", schemeLower, hostname)
	}
	return p, nil
}

func splitPathSearchHash(rest string) (pathname, search, hash string) {
	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		hash = rest[idx:]
		rest = rest[:idx]
	}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		search = rest[idx:]
		rest = rest[:idx]
	}
	pathname = rest
	return
}

func (p *parsedURL) href() string {
	return p.protocol + "//" + p.host + p.pathname + p.search + p.hash
}

// hrefNoAuthority builds href for no-host schemes (file/data/javascript/blob).
func (p *parsedURL) hrefNoAuthority() string {
	return p.protocol + p.pathname + p.search + p.hash
}

func (p *parsedURL) serialize() string {
	if p.host == "" && noHostSchemes[strings.TrimSuffix(p.protocol, ":")] {
		return p.hrefNoAuthority()
	}
	return p.href()
}

// urlState is the Go-side handle behind one URL instance.
type urlState struct {
	rt     *goja.Runtime
	obj    *goja.Object
	parsed *parsedURL
	params *goja.Object // memoised URLSearchParams, nil until .searchParams is read
}

// NewURLConstructor builds the global `URL`.
func NewURLConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		if len(call.Arguments) == 0 {
			panic(rt.NewTypeError("URL requires an argument"))
		}
		raw := call.Arguments[0].String()
		if len(call.Arguments) > 1 && !goja.IsUndefined(call.Arguments[1]) {
			base := call.Arguments[1].String()
			raw = resolveAgainstBase(raw, base)
		}
		parsed, err := parseURL(raw)
		if err != nil {
			panic(rt.NewTypeError("Invalid URL: %v", err))
		}
		u := &urlState{rt: rt, obj: call.This, parsed: parsed}
		u.install()
		return call.This
	}
}

// resolveAgainstBase is a pragmatic subset: absolute raw URLs pass through;
// otherwise the base's scheme+host are prefixed (no full relative-reference
// algorithm, which the core spec does not require).
func resolveAgainstBase(raw, base string) string {
	if schemeRe.MatchString(raw) {
		return raw
	}
	baseParsed, err := parseURL(base)
	if err != nil {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return baseParsed.protocol + "//" + baseParsed.host + raw
	}
	return baseParsed.protocol + "//" + baseParsed.host + baseParsed.pathname + raw
}

// paramsOnWrite builds the callback passed to the searchParams object so
// its mutations write back into this URL's search component and href
// (spec §3 URLSearchParams: "back-reference to parent URL for write-through").
func (u *urlState) paramsOnWrite(refresh func()) func(search string) {
	return func(search string) {
		if search != "" {
			search = "?" + search
		}
		u.parsed.search = search
		refresh()
	}
}

func (u *urlState) install() {
	rt, obj, p := u.rt, u.obj, u.parsed

	refresh := func() {
		_ = obj.Set("href", p.serialize())
		_ = obj.Set("origin", p.origin)
	}

	_ = obj.Set("protocol", p.protocol)
	_ = obj.Set("host", p.host)
	_ = obj.Set("hostname", p.hostname)
	_ = obj.Set("port", p.port)
	_ = obj.Set("pathname", p.pathname)
	_ = obj.Set("hash", p.hash)
	refresh()

	_ = obj.DefineAccessorProperty("search", rt.ToValue(func(goja.FunctionCall) goja.Value {
		return rt.ToValue(p.search)
	}), rt.ToValue(func(call goja.FunctionCall) goja.Value {
		v := ""
		if len(call.Arguments) > 0 {
			v = call.Arguments[0].String()
		}
		if v != "" && !strings.HasPrefix(v, "?") {
			v = "?" + v
		}
		p.search = v
		refresh()
		if u.params != nil {
			syncParamsFromSearch(rt, u.params, p.search, u.paramsOnWrite(refresh))
		}
		return goja.Undefined()
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.DefineAccessorProperty("searchParams", rt.ToValue(func(goja.FunctionCall) goja.Value {
		if u.params == nil {
			u.params = newURLSearchParamsObject(rt, strings.TrimPrefix(p.search, "?"), u.paramsOnWrite(refresh))
		}
		return u.params
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(p.serialize())
	})
}

// --- URLSearchParams ---

type paramEntry struct {
	name, value string
}

type searchParamsState struct {
	entries []paramEntry
	onWrite func(search string)
}

// NewURLSearchParamsConstructor builds the global `URLSearchParams`.
func NewURLSearchParamsConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		state := &searchParamsState{}
		if len(call.Arguments) > 0 {
			initParams(rt, state, call.Arguments[0])
		}
		installParams(rt, call.This, state)
		return call.This
	}
}

func newURLSearchParamsObject(rt *goja.Runtime, query string, onWrite func(search string)) *goja.Object {
	obj := rt.NewObject()
	state := &searchParamsState{onWrite: onWrite}
	initParams(rt, state, rt.ToValue(query))
	installParams(rt, obj, state)
	return obj
}

func initParams(rt *goja.Runtime, state *searchParamsState, arg goja.Value) {
	if obj, ok := arg.(*goja.Object); ok {
		if entriesVal := obj.Get("__isURLSearchParams"); entriesVal != nil && toBool(entriesVal) {
			src := obj.Get("__entries").Export()
			if pairs, ok := src.([]paramEntry); ok {
				state.entries = append(state.entries, pairs...)
				return
			}
		}
		if lengthVal := obj.Get("length"); lengthVal != nil && !goja.IsUndefined(lengthVal) {
			n := lengthVal.ToInteger()
			for i := int64(0); i < n; i++ {
				pairVal := obj.Get(strconv.FormatInt(i, 10))
				pairObj, ok := pairVal.(*goja.Object)
				if !ok {
					panic(rt.NewTypeError("URLSearchParams: sequence entry is not a pair"))
				}
				pLen := pairObj.Get("length")
				if pLen == nil || pLen.ToInteger() != 2 {
					panic(rt.NewTypeError("URLSearchParams: each pair must have length 2"))
				}
				state.entries = append(state.entries, paramEntry{
					name:  pairObj.Get("0").String(),
					value: pairObj.Get("1").String(),
				})
			}
			return
		}
		// record: plain object, enumerable own string properties.
		for _, key := range obj.Keys() {
			state.entries = append(state.entries, paramEntry{name: key, value: obj.Get(key).String()})
		}
		return
	}
	str := arg.String()
	str = strings.TrimPrefix(str, "?")
	if str == "" {
		return
	}
	for _, pair := range strings.Split(str, "&") {
		if pair == "" {
			continue
		}
		name, value := pair, ""
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			name, value = pair[:idx], pair[idx+1:]
		}
		state.entries = append(state.entries, paramEntry{name: decodeQueryComponent(name), value: decodeQueryComponent(value)})
	}
}

func decodeQueryComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(n))
					i += 2
					continue
				}
			}
			b.WriteByte('%')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func encodeQueryComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~', c == '*':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func serializeParams(state *searchParamsState) string {
	parts := make([]string, 0, len(state.entries))
	for _, e := range state.entries {
		parts = append(parts, encodeQueryComponent(e.name)+"="+encodeQueryComponent(e.value))
	}
	return strings.Join(parts, "&")
}

func installParams(rt *goja.Runtime, obj *goja.Object, state *searchParamsState) {
	_ = obj.Set("__isURLSearchParams", true)
	sync := func() {
		_ = obj.Set("__entries", append([]paramEntry{}, state.entries...))
		if state.onWrite != nil {
			state.onWrite(serializeParams(state))
		}
	}
	sync()

	_ = obj.DefineAccessorProperty("size", rt.ToValue(func(goja.FunctionCall) goja.Value {
		return rt.ToValue(len(state.entries))
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = obj.Set("append", func(call goja.FunctionCall) goja.Value {
		name, value := argString(call, 0), argString(call, 1)
		state.entries = append(state.entries, paramEntry{name: name, value: value})
		sync()
		return goja.Undefined()
	})
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		name, value := argString(call, 0), argString(call, 1)
		found := false
		out := state.entries[:0]
		for _, e := range state.entries {
			if e.name == name {
				if !found {
					out = append(out, paramEntry{name: name, value: value})
					found = true
				}
				continue
			}
			out = append(out, e)
		}
		state.entries = out
		if !found {
			state.entries = append(state.entries, paramEntry{name: name, value: value})
		}
		sync()
		return goja.Undefined()
	})
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		name := argString(call, 0)
		for _, e := range state.entries {
			if e.name == name {
				return rt.ToValue(e.value)
			}
		}
		return goja.Null()
	})
	_ = obj.Set("getAll", func(call goja.FunctionCall) goja.Value {
		name := argString(call, 0)
		var values []string
		for _, e := range state.entries {
			if e.name == name {
				values = append(values, e.value)
			}
		}
		return rt.ToValue(values)
	})
	_ = obj.Set("has", func(call goja.FunctionCall) goja.Value {
		name := argString(call, 0)
		hasValue := len(call.Arguments) > 1
		value := argString(call, 1)
		for _, e := range state.entries {
			if e.name == name && (!hasValue || e.value == value) {
				return rt.ToValue(true)
			}
		}
		return rt.ToValue(false)
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		name := argString(call, 0)
		hasValue := len(call.Arguments) > 1
		value := argString(call, 1)
		out := state.entries[:0]
		for _, e := range state.entries {
			if e.name == name && (!hasValue || e.value == value) {
				continue
			}
			out = append(out, e)
		}
		state.entries = out
		sync()
		return goja.Undefined()
	})
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(serializeParams(state))
	})
	_ = obj.Set("entries", func(goja.FunctionCall) goja.Value {
		return newParamIterator(rt, state, func(e paramEntry) goja.Value {
			return rt.ToValue([]string{e.name, e.value})
		})
	})
	_ = obj.Set("keys", func(goja.FunctionCall) goja.Value {
		return newParamIterator(rt, state, func(e paramEntry) goja.Value { return rt.ToValue(e.name) })
	})
	_ = obj.Set("values", func(goja.FunctionCall) goja.Value {
		return newParamIterator(rt, state, func(e paramEntry) goja.Value { return rt.ToValue(e.value) })
	})
	_ = obj.SetSymbol(goja.SymIterator, obj.Get("entries"))
}

func newParamIterator(rt *goja.Runtime, state *searchParamsState, project func(paramEntry) goja.Value) *goja.Object {
	idx := 0
	iterObj := rt.NewObject()
	_ = iterObj.Set("next", func(goja.FunctionCall) goja.Value {
		result := rt.NewObject()
		if idx >= len(state.entries) {
			_ = result.Set("done", true)
			_ = result.Set("value", goja.Undefined())
			return result
		}
		_ = result.Set("done", false)
		_ = result.Set("value", project(state.entries[idx]))
		idx++
		return result
	})
	_ = iterObj.SetSymbol(goja.SymIterator, rt.ToValue(func(goja.FunctionCall) goja.Value {
		return iterObj
	}))
	return iterObj
}

func argString(call goja.FunctionCall, i int) string {
	if i >= len(call.Arguments) {
		return ""
	}
	return call.Arguments[i].String()
}

func syncParamsFromSearch(rt *goja.Runtime, paramsObj *goja.Object, search string, onWrite func(search string)) {
	state := &searchParamsState{onWrite: onWrite}
	initParams(rt, state, rt.ToValue(search))
	installParams(rt, paramsObj, state)
}
