package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/session/mocks"
	"github.com/yuvaraj-ayla/lanmode/pkg/setupcrypto"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	config := DefaultManagerConfig()
	config.ListenAddress = "127.0.0.1:0"
	config.AdvertiseIP = "127.0.0.1"
	config.Session.Registrar = mocks.NewMockRegistrar(t)
	return NewManager(registry.New(), config)
}

func serve(m *Manager, remoteIP, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.RemoteAddr = remoteIP + ":40123"
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	return rec
}

func TestManagerRoutesByClientAddress(t *testing.T) {
	m := newTestManager(t)
	c, err := m.Add(newTestDevice(), 0)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	body, err := transport.MarshalKeyExchange(lanKeyExchange(testKeyID))
	require.NoError(t, err)

	rec := serve(m, "192.168.1.99", transport.PathKeyExchange, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No LAN module found"}`, rec.Body.String())

	rec = serve(m, testIP, transport.PathKeyExchange, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	var kr transport.KeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kr))
	assert.Len(t, kr.Random2, 16)
	assert.True(t, c.IsActive())
}

func TestManagerRoutesEverythingToSetupDevice(t *testing.T) {
	m := newTestManager(t)
	key, err := setupcrypto.Generate(0)
	require.NoError(t, err)
	c := m.AddSetup(registry.NewSetupDevice("AC000W000SETUP1", "192.168.4.1", key), 0)
	t.Cleanup(c.Close)

	rec := serve(m, "10.0.0.42", transport.PathCommands, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "routed to the setup session, which has no keys yet")

	m.Remove("AC000W000SETUP1")
	_, ok := m.Controller("AC000W000SETUP1")
	assert.False(t, ok)
	assert.Nil(t, m.Registry().SetupDevice())

	rec = serve(m, "10.0.0.42", transport.PathCommands, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagerAdd(t *testing.T) {
	m := newTestManager(t)
	d := newTestDevice()

	c1, err := m.Add(d, 8080)
	require.NoError(t, err)
	t.Cleanup(c1.Close)
	assert.Equal(t, 8080, c1.config.DevicePort)
	assert.Same(t, m.registry, c1.config.Registry)

	c2, err := m.Add(d, 0)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = m.Add(newTestDevice(), 0)
	assert.ErrorIs(t, err, registry.ErrDuplicateDevice)

	assert.Len(t, m.Controllers(), 1)
	assert.ErrorIs(t, m.StartSession(context.Background(), "AC000W000000000"), ErrNoController)
}

func TestManagerUnknownRoute(t *testing.T) {
	m := newTestManager(t)
	rec := serve(m, testIP, "/local_lan/unknown.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagerStartStop(t *testing.T) {
	m := newTestManager(t)

	ip, port := m.Endpoint()
	assert.Equal(t, "127.0.0.1", ip)
	assert.Zero(t, port)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	_, port = m.Endpoint()
	assert.NotZero(t, port)

	require.NoError(t, m.Stop(context.Background()))
	assert.ErrorIs(t, m.Stop(context.Background()), ErrNotStarted)
}
