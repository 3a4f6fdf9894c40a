package devicesim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yuvaraj-ayla/lanmode/pkg/discovery"
	"github.com/yuvaraj-ayla/lanmode/pkg/envelope"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
	"github.com/yuvaraj-ayla/lanmode/pkg/setupcrypto"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// Simulator defaults.
const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultMaxPolls       = 64
)

// Errors.
var (
	ErrNoSession = errors.New("no LAN session")
	ErrNoApp     = errors.New("no app registered")

	errUnknownProperty = errors.New("unknown property")
)

// Advertiser announces the device on the LAN. *discovery.Advertiser
// satisfies it.
type Advertiser interface {
	Advertise(dsn string, port int, extra discovery.TXTRecordMap) error
	Stop()
}

// Property is a simulated device property.
type Property struct {
	Name       string
	BaseType   string
	Value      any
	AckEnabled bool
}

// Config configures a simulated device.
type Config struct {
	// DSN of the device.
	DSN string

	// KeyID and Key are the LAN key shared with the cloud.
	KeyID int
	Key   string

	// ListenAddress is where local_reg is served. Default: ":80".
	ListenAddress string

	// Properties the device exposes.
	Properties []Property

	// AckStatus answers created datapoints of ack-enabled properties.
	// Default: 200.
	AckStatus int

	// RequestTimeout bounds one request to the app.
	RequestTimeout time.Duration

	// MaxPolls bounds one poll burst.
	MaxPolls int

	// Advertiser, when set, announces the device once it listens.
	Advertiser Advertiser

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLog receives protocol events. Nil disables capture.
	ProtocolLog log.Logger
}

// Device is the device side of a LAN session: it accepts local
// registrations, opens the session with a key exchange and polls the app
// for commands.
type Device struct {
	config Config
	client *http.Client
	router *transport.Router
	server *transport.Server
	rec    log.Recorder

	mu        sync.Mutex
	props     map[string]*Property
	appAddr   string
	codec     *envelope.Codec
	sessionID int
	polling   bool
	repoll    bool
	acks      int
	deleted   int
	onCommand func(cmd Command)

	wg sync.WaitGroup
}

// New creates a simulated device.
func New(config Config) *Device {
	if config.ListenAddress == "" {
		config.ListenAddress = ":80"
	}
	if config.AckStatus == 0 {
		config.AckStatus = http.StatusOK
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.MaxPolls == 0 {
		config.MaxPolls = DefaultMaxPolls
	}

	d := &Device{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		props:  make(map[string]*Property),
		rec: log.Recorder{
			Logger: config.ProtocolLog,
			Role:   log.RoleDevice,
			DSN:    config.DSN,
		},
	}
	for _, p := range config.Properties {
		p := p
		d.props[p.Name] = &p
	}

	d.router = transport.NewRouter(transport.RouterConfig{
		Role:        log.RoleDevice,
		Logger:      config.Logger,
		ProtocolLog: config.ProtocolLog,
	})
	d.router.Handle(transport.PathLocalRegistration, d.handleLocalReg)
	d.server = transport.NewServer(transport.ServerConfig{
		Address:         config.ListenAddress,
		Handler:         d.router,
		DisableFallback: true,
		Logger:          config.Logger,
	})
	return d
}

// Start begins serving local registrations.
func (d *Device) Start(ctx context.Context) error {
	if err := d.server.Start(ctx); err != nil {
		return err
	}
	if d.config.Advertiser != nil {
		if err := d.config.Advertiser.Advertise(d.config.DSN, d.server.Port(), nil); err != nil {
			d.debugLog("advertise failed", "dsn", d.config.DSN, "error", err)
		}
	}
	return nil
}

// Stop stops serving and waits for in-flight exchanges.
func (d *Device) Stop(ctx context.Context) error {
	if d.config.Advertiser != nil {
		d.config.Advertiser.Stop()
	}
	err := d.server.Stop(ctx)
	d.wg.Wait()
	return err
}

// Addr returns the host:port local registrations are served on.
func (d *Device) Addr() string {
	a := d.server.Addr()
	if a == nil {
		return ""
	}
	return a.String()
}

// Port returns the bound port, or 0 when not running.
func (d *Device) Port() int { return d.server.Port() }

// DSN returns the device serial number.
func (d *Device) DSN() string { return d.config.DSN }

// Active reports whether the device holds session keys.
func (d *Device) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codec != nil
}

// Sessions returns the number of key exchanges completed.
func (d *Device) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// Acks returns the number of datapoint acks sent.
func (d *Device) Acks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acks
}

// Deleted returns how many delete-session commands were received.
func (d *Device) Deleted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleted
}

// Value returns the current value of a property.
func (d *Device) Value(name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.props[name]
	if !ok {
		return nil, false
	}
	return p.Value, true
}

// OnCommand sets a listener for every command received.
func (d *Device) OnCommand(fn func(cmd Command)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCommand = fn
}

// handleLocalReg serves /local_reg.json. POST opens a new session, PUT
// refreshes it and polls when notify is set.
func (d *Device) handleLocalReg(req *transport.Request) transport.Response {
	reg, err := transport.UnmarshalLocalReg(req.Body)
	if err != nil {
		return transport.Error(http.StatusBadRequest, "Unable to parse request JSON")
	}
	if req.Method == http.MethodPost && req.Query.Get("dsn") != "" && req.Query.Get("dsn") != d.config.DSN {
		return transport.Error(http.StatusNotFound, "DSN mismatch")
	}

	host := reg.IP
	if host == "" {
		host = req.ClientIP
	}
	appAddr := net.JoinHostPort(host, strconv.Itoa(reg.Port))

	d.mu.Lock()
	d.appAddr = appAddr
	active := d.codec != nil
	d.mu.Unlock()

	d.rec.Control("", log.DirectionIn, req.ClientIP, log.ControlEvent{
		Type:   log.ControlRegistration,
		Notify: reg.Notify != 0,
		Detail: req.Method,
	})

	switch {
	case req.Method == http.MethodPost || !active:
		d.spawn(func(ctx context.Context) {
			if err := d.KeyExchange(ctx, reg.Key); err != nil {
				d.debugLog("key exchange failed", "dsn", d.config.DSN, "error", err)
				return
			}
			d.pollBurst(ctx)
		})
	case reg.Notify != 0:
		d.spawn(d.pollBurst)
	}
	return transport.Empty(http.StatusAccepted)
}

func (d *Device) spawn(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 4*d.config.RequestTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// KeyExchange opens a session with the registered app. A non-empty
// setupKey selects the secure-setup variant: a random secret is wrapped
// with that public key instead of using the LAN key.
func (d *Device) KeyExchange(ctx context.Context, setupKey string) error {
	nonce, err := sessionkey.NewNonce()
	if err != nil {
		return err
	}
	time1 := sessionkey.FormatTime(sessionkey.NewTimestamp())

	kx := transport.KeyExchange{
		Ver:     transport.MessageVersion,
		Proto:   transport.ProtoCBCAES256,
		Random1: nonce,
		Time1:   json.Number(time1),
	}
	secret := []byte(d.config.Key)
	if setupKey != "" {
		tok, err := sessionkey.RandomToken(32)
		if err != nil {
			return err
		}
		secret = []byte(tok)
		if kx.Sec, err = setupcrypto.EncryptSecret(setupKey, secret); err != nil {
			return err
		}
	} else {
		keyID := d.config.KeyID
		kx.KeyID = &keyID
	}

	body, err := transport.MarshalKeyExchange(kx)
	if err != nil {
		return err
	}
	status, resp, err := d.do(ctx, http.MethodPost, transport.PathKeyExchange, "", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		d.clearSession()
		return &lanerr.StatusError{Status: status, Message: strings.TrimSpace(string(resp))}
	}

	var kr transport.KeyResponse
	if err := json.Unmarshal(resp, &kr); err != nil {
		return lanerr.Wrap(lanerr.ErrPayloadParse, "key response", err)
	}
	keys, err := sessionkey.Derive(secret, sessionkey.Inputs{
		Random1: nonce,
		Time1:   time1,
		Random2: kr.Random2,
		Time2:   kr.Time2.String(),
	})
	if err != nil {
		return err
	}
	codec, err := envelope.NewCodec(keys, sessionkey.RoleDevice)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.codec = codec
	d.sessionID++
	d.mu.Unlock()
	d.debugLog("lan session established", "dsn", d.config.DSN, "setup", setupKey != "")
	return nil
}

// pollBurst polls until the app has nothing more to send. Bursts do not
// overlap; a notify during a burst extends it.
func (d *Device) pollBurst(ctx context.Context) {
	d.mu.Lock()
	if d.polling {
		d.repoll = true
		d.mu.Unlock()
		return
	}
	d.polling = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.polling = false
		d.mu.Unlock()
	}()

	for i := 0; i < d.config.MaxPolls; i++ {
		more, err := d.Poll(ctx)
		if err != nil {
			d.debugLog("poll failed", "dsn", d.config.DSN, "error", err)
			return
		}
		d.mu.Lock()
		again := d.repoll
		d.repoll = false
		d.mu.Unlock()
		if !more && !again {
			return
		}
	}
}

// Poll fetches and handles one command. It reports whether the app
// signalled more pending work.
func (d *Device) Poll(ctx context.Context) (bool, error) {
	codec := d.currentCodec()
	if codec == nil {
		return false, ErrNoSession
	}

	status, body, err := d.do(ctx, http.MethodGet, transport.PathCommands, "", nil)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK && status != http.StatusPartialContent {
		d.clearSession()
		return false, &lanerr.StatusError{Status: status, Message: strings.TrimSpace(string(body))}
	}

	p, err := codec.Decode(body)
	if err != nil {
		return false, err
	}
	d.rec.Message("", log.DirectionIn, log.LayerEnvelope, "", log.MessageEvent{
		Path:    transport.PathCommands,
		SeqNo:   &p.SeqNo,
		Size:    len(p.Data),
		Payload: p.Data,
	})

	more := status == http.StatusPartialContent
	msg, err := ParseMessage(p.Data)
	if err != nil {
		return more, err
	}
	for _, cmd := range msg.Cmds {
		if err := d.handleCommand(ctx, cmd); err != nil {
			return more, err
		}
	}
	for _, dp := range msg.Datapoints() {
		if err := d.applyDatapoint(ctx, dp); err != nil {
			return more, err
		}
	}
	return more, nil
}

func (d *Device) handleCommand(ctx context.Context, cmd Command) error {
	d.mu.Lock()
	fn := d.onCommand
	d.mu.Unlock()
	if fn != nil {
		fn(cmd)
	}

	query := url.Values{
		"cmd_id": {strconv.FormatUint(uint64(cmd.CmdID), 10)},
		"status": {"200"},
	}.Encode()

	switch {
	case cmd.Method == http.MethodDelete && cmd.Data == "delete_session":
		d.mu.Lock()
		d.deleted++
		d.mu.Unlock()
		d.clearSession()
		return nil

	case strings.HasPrefix(cmd.Resource, "property.json"):
		name := cmd.PropertyName()
		value, _ := d.Value(name)
		return d.send(ctx, transport.PathDatapoint, query, map[string]any{"name": name, "value": value})

	case strings.HasPrefix(cmd.Resource, "node_property.json"):
		var target struct {
			DSN string `json:"dsn"`
		}
		_ = json.Unmarshal([]byte(cmd.Data), &target)
		name := cmd.PropertyName()
		value, _ := d.Value(name)
		return d.send(ctx, transport.PathNodeDatapoint, query, map[string]any{"name": name, "value": value, "dsn": target.DSN})

	case cmd.Resource == "status.json":
		return d.send(ctx, transport.PathStatus, query, map[string]any{
			"dsn":         d.config.DSN,
			"lan_enabled": true,
		})

	case cmd.URI == transport.PathWifiScan:
		return nil

	case strings.HasPrefix(cmd.URI, transport.LocalLANURI+"/"):
		return d.send(ctx, cmd.URI, query, map[string]any{})
	}
	return nil
}

func (d *Device) applyDatapoint(ctx context.Context, dp Datapoint) error {
	d.mu.Lock()
	p, ok := d.props[dp.Name]
	if ok {
		p.Value = dp.Value
	}
	d.mu.Unlock()

	if dp.ID == "" {
		return nil
	}
	status := d.config.AckStatus
	if !ok {
		status = http.StatusNotFound
	}
	path := transport.PathDatapointAck
	if dp.node {
		path = transport.PathNodeDatapointAck
	}
	if err := d.send(ctx, path, "", map[string]any{
		"id":          dp.ID,
		"ack_status":  status,
		"ack_message": 0,
		"dsn":         dp.DSN,
	}); err != nil {
		return err
	}
	d.mu.Lock()
	d.acks++
	d.mu.Unlock()
	return nil
}

// SetValue changes a property on the device and reports it to the app.
func (d *Device) SetValue(ctx context.Context, name string, value any) error {
	d.mu.Lock()
	p, ok := d.props[name]
	if ok {
		p.Value = value
	}
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownProperty, name)
	}
	return d.send(ctx, transport.PathDatapoint, "", map[string]any{"name": name, "value": value})
}

// send seals data and posts it to the app. A 401 means the app can no
// longer open our envelopes, so the session is dropped and the next
// registration starts a new key exchange.
func (d *Device) send(ctx context.Context, path, rawQuery string, data any) error {
	codec := d.currentCodec()
	if codec == nil {
		return ErrNoSession
	}
	plain, err := json.Marshal(data)
	if err != nil {
		return err
	}
	seq := codec.NextSeq()
	body, err := codec.Encode(plain)
	if err != nil {
		return err
	}
	d.rec.Message("", log.DirectionOut, log.LayerEnvelope, "", log.MessageEvent{
		Method:  http.MethodPost,
		Path:    path,
		SeqNo:   &seq,
		Size:    len(plain),
		Payload: plain,
	})

	status, resp, err := d.do(ctx, http.MethodPost, path, rawQuery, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		d.clearSession()
	}
	if status >= 300 {
		return &lanerr.StatusError{Status: status, Message: strings.TrimSpace(string(resp))}
	}
	return nil
}

func (d *Device) do(ctx context.Context, method, path, rawQuery string, body []byte) (int, []byte, error) {
	d.mu.Lock()
	appAddr := d.appAddr
	d.mu.Unlock()
	if appAddr == "" {
		return 0, nil, ErrNoApp
	}

	target := url.URL{Scheme: "http", Host: appAddr, Path: path, RawQuery: rawQuery}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), rd)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", transport.MIMEJSON)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, lanerr.Wrap(lanerr.ErrNetwork, method+" "+path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, transport.DefaultMaxBodySize))
	if err != nil {
		return resp.StatusCode, nil, lanerr.Wrap(lanerr.ErrNetwork, "read "+path, err)
	}
	return resp.StatusCode, data, nil
}

func (d *Device) currentCodec() *envelope.Codec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codec
}

func (d *Device) clearSession() {
	d.mu.Lock()
	d.codec = nil
	d.mu.Unlock()
}

func (d *Device) debugLog(msg string, args ...any) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, args...)
	}
}
