package session

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/envelope"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

const (
	testDSN   = "AC000W000123456"
	testIP    = "192.168.1.20"
	testKey   = "f0e1d2c3b4a5968778695a4b3c2d1e0f"
	testKeyID = 42
)

func newTestDevice() *registry.Device {
	d := registry.NewDevice(testDSN, testIP)
	d.SetLanConfig(&lanconfig.Config{
		KeyID:     lanconfig.IntPtr(testKeyID),
		Key:       testKey,
		KeepAlive: 3600,
	})
	d.AddProperty("Blue_LED", "boolean", false)
	d.AddProperty("Green_LED", "boolean", true)
	return d
}

// newTestController returns a controller for a fresh device registered in
// its own registry. The controller is closed when the test ends.
func newTestController(t *testing.T, config Config) (*Controller, *registry.Device) {
	t.Helper()
	d := newTestDevice()
	if config.Registry == nil {
		config.Registry = registry.New()
	}
	require.NoError(t, config.Registry.Add(d))
	c := NewController(d, config)
	t.Cleanup(c.Close)
	return c, d
}

func newRequest(path, rawQuery string, body []byte) *transport.Request {
	q, _ := url.ParseQuery(rawQuery)
	return &transport.Request{
		Context:  context.Background(),
		ClientIP: testIP,
		Method:   "POST",
		Path:     path,
		Query:    q,
		Body:     body,
	}
}

func lanKeyExchange(keyID int) transport.KeyExchange {
	return transport.KeyExchange{
		Ver:     transport.MessageVersion,
		Proto:   transport.ProtoCBCAES256,
		Random1: "KHvB7w3yQmA0pZr2",
		Time1:   "1700000000123456",
		KeyID:   &keyID,
	}
}

// keyExchange runs a key exchange as the device and returns the device
// side codec when it succeeds.
func keyExchange(t *testing.T, c *Controller, kx transport.KeyExchange, secret []byte) (transport.Response, *envelope.Codec) {
	t.Helper()
	body, err := transport.MarshalKeyExchange(kx)
	require.NoError(t, err)

	resp := c.HandleKeyExchange(newRequest(transport.PathKeyExchange, "", body))
	if resp.Status != 200 && resp.Status != 206 {
		return resp, nil
	}

	var kr transport.KeyResponse
	require.NoError(t, json.Unmarshal(resp.Body, &kr))
	keys, err := sessionkey.Derive(secret, sessionkey.Inputs{
		Random1: kx.Random1,
		Time1:   kx.Time1.String(),
		Random2: kr.Random2,
		Time2:   kr.Time2.String(),
	})
	require.NoError(t, err)
	codec, err := envelope.NewCodec(keys, sessionkey.RoleDevice)
	require.NoError(t, err)
	return resp, codec
}

// activate opens a LAN session with the test key.
func activate(t *testing.T, c *Controller) *envelope.Codec {
	t.Helper()
	resp, codec := keyExchange(t, c, lanKeyExchange(testKeyID), []byte(testKey))
	require.Equal(t, 200, resp.Status, string(resp.Body))
	require.True(t, c.IsActive())
	return codec
}

// poll fetches the next command as the device.
func poll(t *testing.T, c *Controller, codec *envelope.Codec) (int, json.RawMessage) {
	t.Helper()
	resp := c.HandleCommands(newRequest(transport.PathCommands, "", nil))
	require.NotEqual(t, 412, resp.Status)
	p, err := codec.Decode(resp.Body)
	require.NoError(t, err)
	return resp.Status, p.Data
}

// send posts data sealed by the device codec to h.
func send(t *testing.T, codec *envelope.Codec, h transport.HandlerFunc, path, rawQuery, data string) transport.Response {
	t.Helper()
	body, err := codec.Encode([]byte(data))
	require.NoError(t, err)
	return h(newRequest(path, rawQuery, body))
}

type polledCmd struct {
	Cmds []struct {
		Cmd struct {
			CmdID    uint32 `json:"cmd_id"`
			Method   string `json:"method"`
			Resource string `json:"resource"`
			URI      string `json:"uri"`
		} `json:"cmd"`
	} `json:"cmds"`
}

// transitions records LAN state notifications.
type transitions struct {
	mu     sync.Mutex
	active []bool
	errs   []error
}

func (tr *transitions) record(active bool, err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active = append(tr.active, active)
	tr.errs = append(tr.errs, err)
}

func (tr *transitions) snapshot() ([]bool, []error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]bool(nil), tr.active...), append([]error(nil), tr.errs...)
}
