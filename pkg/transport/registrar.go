package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/log"
)

// DefaultRegistrationTimeout bounds one local registration request.
const DefaultRegistrationTimeout = 5 * time.Second

// LocalReg tells a device where to reach the app.
type LocalReg struct {
	IP     string `json:"ip"`
	Port   int    `json:"port"`
	URI    string `json:"uri"`
	Notify int    `json:"notify"`
	Key    string `json:"key,omitempty"`
}

type localRegBody struct {
	LocalReg LocalReg `json:"local_reg"`
}

// MarshalLocalReg returns the wire form of a registration.
func MarshalLocalReg(reg LocalReg) ([]byte, error) {
	return json.Marshal(localRegBody{LocalReg: reg})
}

// UnmarshalLocalReg parses the wire form of a registration.
func UnmarshalLocalReg(data []byte) (LocalReg, error) {
	var body localRegBody
	if err := json.Unmarshal(data, &body); err != nil {
		return LocalReg{}, err
	}
	return body.LocalReg, nil
}

// RegistrarConfig configures a Registrar.
type RegistrarConfig struct {
	// Client sends the requests. Default: a client with no timeout; the
	// per-request Timeout applies instead.
	Client *http.Client

	// Timeout bounds one registration. Default: 5 seconds.
	Timeout time.Duration

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLog receives registration control events.
	ProtocolLog log.Logger
}

// Registrar sends local registration requests to devices.
type Registrar struct {
	config RegistrarConfig
	rec    log.Recorder
}

// NewRegistrar creates a registrar.
func NewRegistrar(config RegistrarConfig) *Registrar {
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRegistrationTimeout
	}
	return &Registrar{
		config: config,
		rec:    log.Recorder{Logger: config.ProtocolLog, Role: log.RoleApp},
	}
}

// Register sends reg to the device at addr. A new session is announced with
// POST /local_reg.json?dsn=<dsn>; an existing one is refreshed with PUT.
//
// Transport failures are reported as lanerr.ErrNetwork or lanerr.ErrTimeout.
// A non-2xx answer is an lanerr.ErrNetwork wrapping a *lanerr.StatusError.
func (r *Registrar) Register(ctx context.Context, addr, dsn string, reg LocalReg, newSession bool) error {
	body, err := MarshalLocalReg(reg)
	if err != nil {
		return err
	}

	target := url.URL{Scheme: "http", Host: addr, Path: PathLocalRegistration}
	method := http.MethodPut
	if newSession {
		method = http.MethodPost
		target.RawQuery = url.Values{"dsn": {dsn}}.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
	if err != nil {
		return lanerr.Wrap(lanerr.ErrNetwork, "local_reg request", err)
	}
	req.Header.Set("Content-Type", MIMEJSON)

	r.rec.Control("", log.DirectionOut, addr, log.ControlEvent{
		Type:   log.ControlRegistration,
		Notify: reg.Notify != 0,
		Detail: method,
	})

	resp, err := r.config.Client.Do(req)
	if err != nil {
		kind := lanerr.ErrNetwork
		if isTimeout(err) {
			kind = lanerr.ErrTimeout
		}
		r.rec.Error("", log.LayerHTTP, addr, 0, "local_reg", err)
		return lanerr.Wrap(kind, "local_reg to "+addr, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &lanerr.StatusError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
		r.rec.Error("", log.LayerHTTP, addr, resp.StatusCode, "local_reg", serr)
		return lanerr.Wrap(lanerr.ErrNetwork, "local_reg to "+addr, serr)
	}

	r.debugLog("local registration sent", "addr", addr, "method", method, "notify", reg.Notify)
	return nil
}

func (r *Registrar) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
