package httpclient

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/R3E-Network/jsrt-go/internal/webapi"
)

// serveOnce accepts exactly one connection and writes raw response bytes,
// grounded on net/http/httptest's single-shot listener idiom but
// hand-rolled since the response needs to be byte-exact HTTP/1.1, not
// generated by net/http's server.
func serveOnce(t *testing.T, response string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		_, _ = conn.Write([]byte(response))
	}()
	return ln
}

func newFetchTestRuntime(t *testing.T) (*goja.Runtime, *ioloop.Loop) {
	t.Helper()
	rt := goja.New()
	loop := ioloop.New()
	require.NoError(t, rt.Set("Headers", webapi.NewHeadersConstructor(rt)))
	require.NoError(t, Install(rt, loop, "0.1.0-test"))
	return rt, loop
}

func drainUntil(t *testing.T, rt *goja.Runtime, loop *ioloop.Loop, expr string) goja.Value {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		v, err := rt.RunString(expr)
		require.NoError(t, err)
		if !goja.IsUndefined(v) {
			return v
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q", expr)
	return nil
}

func TestFetchGetResolvesWithParsedResponse(t *testing.T) {
	ln := serveOnce(t, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello")
	defer ln.Close()

	rt, loop := newFetchTestRuntime(t)
	_, err := rt.RunString(`
		var result;
		fetch("http://` + ln.Addr().String() + `/").then(function(r) {
			result = { status: r.status, ok: r.ok };
			return r.text();
		}).then(function(body) {
			result.body = body;
		});
	`)
	require.NoError(t, err)

	v := drainUntil(t, rt, loop, "result && result.body")
	assert.Equal(t, "hello", v.String())

	statusV, err := rt.RunString("result.status")
	require.NoError(t, err)
	assert.Equal(t, int64(200), statusV.ToInteger())

	okV, err := rt.RunString("result.ok")
	require.NoError(t, err)
	assert.True(t, okV.ToBoolean())
}

func TestFetchDefaultHeadersIncludeUserAgentAndConnectionClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		var headerBlock string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				break
			}
			headerBlock += line
			if line == "\r\n" {
				break
			}
		}
		received <- headerBlock
		_, _ = conn.Write([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
	}()

	rt, loop := newFetchTestRuntime(t)
	_, err = rt.RunString(`fetch("http://` + ln.Addr().String() + `/");`)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var headerBlock string
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		select {
		case headerBlock = <-received:
		default:
		}
		if headerBlock != "" {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.NotEmpty(t, headerBlock)
	assert.Contains(t, headerBlock, "user-agent: jsrt/0.1.0-test")
	assert.Contains(t, headerBlock, "connection: close")
}

func TestFetchRejectsOnConnectionFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // nothing listening now

	rt, loop := newFetchTestRuntime(t)
	_, err = rt.RunString(`
		var failed = false;
		fetch("http://` + addr + `/").catch(function(e) { failed = true; });
	`)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		v, err := rt.RunString("failed")
		require.NoError(t, err)
		if v.ToBoolean() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("fetch never rejected on connection failure")
}

func TestDefaultReasonTextByStatusClass(t *testing.T) {
	assert.Equal(t, "OK", defaultReason(200))
	assert.Equal(t, "Client Error", defaultReason(404))
	assert.Equal(t, "Server Error", defaultReason(503))
	assert.Equal(t, "Unknown", defaultReason(103))
}

func TestParseTargetElidesDefaultPortFromHostHeader(t *testing.T) {
	tg, err := parseTarget("http://example.com:80/a/b")
	require.NoError(t, err)
	assert.Equal(t, "example.com", tg.hostHeader())
	assert.Equal(t, "/a/b", tg.path)

	tg, err = parseTarget("http://example.com:8080/")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8080", tg.hostHeader())
}

func TestParseTargetRejectsUnsupportedScheme(t *testing.T) {
	_, err := parseTarget("ftp://example.com/")
	assert.Error(t, err)
}

func TestConnectThrottlesBeyondBurst(t *testing.T) {
	rt, loop := newFetchTestRuntime(t)

	ln := serveOnce(t, "HTTP/1.1 204 No Content\r\n\r\n")
	defer ln.Close()

	// connectBurst+1 requests against a single-accept listener: the first
	// connectBurst dials go out immediately, the next one must wait on the
	// limiter rather than racing straight to DialTCP.
	for i := 0; i < connectBurst+1; i++ {
		_, err := rt.RunString(`fetch("http://` + ln.Addr().String() + `/").catch(function(){});`)
		require.NoError(t, err)
	}

	deadline, sawDelayedTimer := time.Now().Add(time.Second), false
	for time.Now().Before(deadline) {
		if d, ok := loop.NextTimerDeadline(); ok && time.Until(d) > 0 {
			sawDelayedTimer = true
			break
		}
		loop.RunOnceNoWait()
		time.Sleep(time.Millisecond)
	}
	assert.True(t, sawDelayedTimer, "expected the (connectBurst+1)th connect to be scheduled behind a delay timer")
}
