package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/log"
)

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(RouterConfig{})
	var got *Request
	r.Handle(PathCommands, func(req *Request) Response {
		got = req
		return JSON(http.StatusPartialContent, []byte(`{"enc":"x"}`))
	})

	req := httptest.NewRequest(http.MethodGet, PathCommands+"?cmd_id=7", nil)
	req.RemoteAddr = "192.168.1.20:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, `{"enc":"x"}`, w.Body.String())
	assert.Equal(t, MIMEJSON, w.Header().Get("Content-Type"))
	require.NotNil(t, got)
	assert.Equal(t, "192.168.1.20", got.ClientIP)
	assert.Equal(t, "7", got.Query.Get("cmd_id"))
	assert.Equal(t, http.MethodGet, got.Method)
}

func TestRouterBody(t *testing.T) {
	r := NewRouter(RouterConfig{})
	var body string
	r.Handle(PathDatapoint, func(req *Request) Response {
		body = string(req.Body)
		return Empty(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, PathDatapoint, strings.NewReader(`{"enc":"a","sign":"b"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, `{"enc":"a","sign":"b"}`, body)
}

func TestRouterUnknownPath(t *testing.T) {
	r := NewRouter(RouterConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/local_lan/unknown.json", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestRouterBodyTooLarge(t *testing.T) {
	r := NewRouter(RouterConfig{MaxBodySize: 8})
	called := false
	r.Handle(PathStatus, func(*Request) Response {
		called = true
		return Empty(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, PathStatus, strings.NewReader(strings.Repeat("a", 64))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, called)
}

func TestRouterKeyExchangeLimit(t *testing.T) {
	var limited []string
	r := NewRouter(RouterConfig{
		Limiter:   NewKeyExchangeLimiter(0.001, 2, time.Minute),
		OnLimited: func(ip string) { limited = append(limited, ip) },
	})
	r.Handle(PathKeyExchange, func(*Request) Response { return Empty(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, PathKeyExchange, strings.NewReader("{}"))
		req.RemoteAddr = "10.0.0.5:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, []string{"10.0.0.5"}, limited)

	// Other routes are not throttled.
	r.Handle(PathCommands, func(*Request) Response { return Empty(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, PathCommands, nil)
	req.RemoteAddr = "10.0.0.5:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterProtocolLog(t *testing.T) {
	var events []log.Event
	capture := log.LoggerFunc(func(e log.Event) { events = append(events, e) })
	r := NewRouter(RouterConfig{ProtocolLog: capture, Role: log.RoleDevice})
	r.Handle(PathCommands, func(*Request) Response { return JSON(http.StatusOK, []byte("{}")) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, PathCommands, nil))

	require.Len(t, events, 2)
	in, out := events[0], events[1]
	assert.Equal(t, log.DirectionIn, in.Direction)
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.RoleDevice, out.LocalRole)
	require.NotNil(t, out.Message)
	assert.Equal(t, http.StatusOK, out.Message.Status)
	assert.Equal(t, PathCommands, out.Message.Path)
	assert.NotNil(t, out.Message.ProcessingTime)
}

func TestErrorBody(t *testing.T) {
	resp := Error(http.StatusPreconditionFailed, `Keys "do" not match`)
	assert.Equal(t, http.StatusPreconditionFailed, resp.Status)
	assert.JSONEq(t, `{"error":"Keys \"do\" not match"}`, string(resp.Body))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[fe80::1]:80"
	assert.Equal(t, "fe80::1", ClientIP(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientIP(req))
}

func TestServerOverHTTP(t *testing.T) {
	r := NewRouter(RouterConfig{})
	r.Handle(PathStatus, func(req *Request) Response { return JSON(http.StatusOK, req.Body) })

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(srv.URL+PathStatus, MIMEJSON, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"a":1}`, string(body))
}
