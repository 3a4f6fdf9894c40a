package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/log"
)

// Local LAN routes served by the app.
const (
	LocalLANURI = "/local_lan"

	PathKeyExchange       = "/local_lan/key_exchange.json"
	PathCommands          = "/local_lan/commands.json"
	PathDatapoint         = "/local_lan/property/datapoint.json"
	PathDatapointAck      = "/local_lan/property/datapoint/ack.json"
	PathNodeDatapoint     = "/local_lan/node/property/datapoint.json"
	PathNodeDatapointAck  = "/local_lan/node/property/datapoint/ack.json"
	PathNodeConnStatus    = "/local_lan/node/conn_status.json"
	PathConnectStatus     = "/local_lan/connect_status"
	PathStatus            = "/local_lan/status.json"
	PathWifiScan          = "/local_lan/wifi_scan.json"
	PathWifiScanResults   = "/local_lan/wifi_scan_results.json"
	PathWifiStatus        = "/local_lan/wifi_status.json"
	PathRegToken          = "/local_lan/regtoken.json"
	PathWifiStopAP        = "/local_lan/wifi_stop_ap.json"
	PathLocalRegistration = "/local_reg.json"
)

// Non-standard status codes used by the LAN protocol.
const (
	StatusUpgradeRequired = http.StatusUpgradeRequired // 426, crypto version mismatch
	StatusCertError       = 495                        // session key derivation failed
)

// DefaultMaxBodySize bounds request bodies.
const DefaultMaxBodySize = 64 * 1024

// MIMEJSON is the content type of every response.
const MIMEJSON = "application/json"

// Request is an inbound LAN request.
type Request struct {
	Context  context.Context
	ClientIP string
	Method   string
	Path     string
	Query    url.Values
	Body     []byte
}

// Response is the answer to a LAN request.
type Response struct {
	Status int
	Body   []byte
}

// HandlerFunc serves one route.
type HandlerFunc func(req *Request) Response

// JSON returns a response with a raw JSON body.
func JSON(status int, body []byte) Response {
	return Response{Status: status, Body: body}
}

// Empty returns a response without a body.
func Empty(status int) Response {
	return Response{Status: status}
}

// Error returns a response with an {"error": msg} body.
func Error(status int, msg string) Response {
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{msg})
	return Response{Status: status, Body: body}
}

// RouterConfig configures a Router.
type RouterConfig struct {
	// MaxBodySize bounds request bodies. Default: DefaultMaxBodySize.
	MaxBodySize int64

	// Limiter throttles key exchanges per client IP. Nil disables throttling.
	Limiter *KeyExchangeLimiter

	// OnLimited is called when a key exchange is rejected by the limiter.
	OnLimited func(clientIP string)

	// Role tags protocol events with the local side.
	Role log.Role

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLog receives HTTP message events. Nil disables capture.
	ProtocolLog log.Logger
}

// Router dispatches LAN requests by exact path.
type Router struct {
	config RouterConfig
	routes map[string]HandlerFunc
	rec    log.Recorder
}

// NewRouter creates an empty router.
func NewRouter(config RouterConfig) *Router {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Router{
		config: config,
		routes: make(map[string]HandlerFunc),
		rec:    log.Recorder{Logger: config.ProtocolLog, Role: config.Role},
	}
}

// Handle registers h for path, replacing any previous handler.
func (r *Router) Handle(path string, h HandlerFunc) {
	r.routes[path] = h
}

// Routes returns the registered paths.
func (r *Router) Routes() []string {
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	return paths
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	clientIP := ClientIP(req)

	h, ok := r.routes[req.URL.Path]
	if !ok {
		r.write(w, req, clientIP, start, Error(http.StatusNotFound, "Not found"))
		return
	}

	if req.URL.Path == PathKeyExchange && !r.config.Limiter.Allow(clientIP, start) {
		if r.config.OnLimited != nil {
			r.config.OnLimited(clientIP)
		}
		r.debugLog("key exchange rate limited", "client", clientIP)
		r.write(w, req, clientIP, start, Error(http.StatusTooManyRequests, "Too many key exchanges"))
		return
	}

	body, err := readBody(w, req, r.config.MaxBodySize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.write(w, req, clientIP, start, Error(http.StatusRequestEntityTooLarge, "Request body too large"))
			return
		}
		r.write(w, req, clientIP, start, Error(http.StatusBadRequest, "Unable to read request body"))
		return
	}

	r.rec.Message("", log.DirectionIn, log.LayerHTTP, clientIP, log.MessageEvent{
		Method: req.Method,
		Path:   req.URL.Path,
		Size:   len(body),
	})

	resp := h(&Request{
		Context:  req.Context(),
		ClientIP: clientIP,
		Method:   req.Method,
		Path:     req.URL.Path,
		Query:    req.URL.Query(),
		Body:     body,
	})
	r.write(w, req, clientIP, start, resp)
}

func (r *Router) write(w http.ResponseWriter, req *http.Request, clientIP string, start time.Time, resp Response) {
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", MIMEJSON)
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}

	took := time.Since(start)
	r.rec.Message("", log.DirectionOut, log.LayerHTTP, clientIP, log.MessageEvent{
		Method:         req.Method,
		Path:           req.URL.Path,
		Status:         resp.Status,
		Size:           len(resp.Body),
		ProcessingTime: &took,
	})
	r.debugLog("lan request", "method", req.Method, "path", req.URL.Path, "client", clientIP, "status", resp.Status)
}

func (r *Router) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

func readBody(w http.ResponseWriter, req *http.Request, limit int64) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, req.Body, limit))
}

// ClientIP returns the IP part of the request's remote address.
func ClientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

var _ http.Handler = (*Router)(nil)
