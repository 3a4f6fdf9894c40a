package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	lanconfigmocks "github.com/yuvaraj-ayla/lanmode/pkg/lanconfig/mocks"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/setupcrypto"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "INACTIVE", StateInactive.String())
	assert.Equal(t, "HANDSHAKING", StateHandshaking.String())
	assert.Equal(t, "ACTIVE", StateActive.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestKeyExchangeActivatesSession(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	var tr transitions
	c.OnStateChange(tr.record)

	resp, codec := keyExchange(t, c, lanKeyExchange(testKeyID), []byte(testKey))
	require.Equal(t, 200, resp.Status)
	require.NotNil(t, codec)

	assert.Equal(t, StateActive, c.State())
	assert.NotEmpty(t, c.SessionID())
	assert.True(t, c.keepAlive.IsRunning())

	active, errs := tr.snapshot()
	assert.Equal(t, []bool{true}, active)
	assert.Nil(t, errs[0])
}

func TestKeyExchangeReplacesSession(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	var tr transitions
	c.OnStateChange(tr.record)

	first := activate(t, c)
	id := c.SessionID()
	second := activate(t, c)

	assert.NotEqual(t, id, c.SessionID())
	assert.NotSame(t, first, second)

	// Keys of the first session no longer verify.
	resp := send(t, first, c.HandleModuleRequest, transport.PathWifiStatus, "", `{}`)
	assert.Equal(t, 401, resp.Status)

	active, _ := tr.snapshot()
	assert.Equal(t, []bool{true, true}, active)
}

func TestKeyExchangeRejections(t *testing.T) {
	tests := []struct {
		name   string
		kx     func() transport.KeyExchange
		status int
		msg    string
	}{
		{
			name: "unsupported proto",
			kx: func() transport.KeyExchange {
				kx := lanKeyExchange(testKeyID)
				kx.Proto = 2
				return kx
			},
			status: 426,
			msg:    "Unsupported crypto version",
		},
		{
			name: "unsupported version",
			kx: func() transport.KeyExchange {
				kx := lanKeyExchange(testKeyID)
				kx.Ver = 3
				return kx
			},
			status: 426,
			msg:    "Unsupported crypto version",
		},
		{
			name: "fractional time",
			kx: func() transport.KeyExchange {
				kx := lanKeyExchange(testKeyID)
				kx.Time1 = "1700000000.5"
				return kx
			},
			status: 495,
			msg:    "Could not generate session keys",
		},
		{
			name: "empty nonce",
			kx: func() transport.KeyExchange {
				kx := lanKeyExchange(testKeyID)
				kx.Random1 = ""
				return kx
			},
			status: 495,
			msg:    "Could not generate session keys",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, DefaultConfig())
			resp, codec := keyExchange(t, c, tt.kx(), []byte(testKey))
			assert.Nil(t, codec)
			assert.Equal(t, tt.status, resp.Status)
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, string(resp.Body))
			assert.Equal(t, StateInactive, c.State())
		})
	}
}

func TestKeyExchangeBadJSON(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	resp := c.HandleKeyExchange(newRequest(transport.PathKeyExchange, "", []byte(`{"key_exchange":`)))
	assert.Equal(t, 400, resp.Status)

	resp = c.HandleKeyExchange(newRequest(transport.PathKeyExchange, "", []byte(`{}`)))
	assert.Equal(t, 400, resp.Status)
}

func TestKeyExchangeWithoutLanKey(t *testing.T) {
	d := registry.NewDevice(testDSN, testIP)
	c := NewController(d, DefaultConfig())
	t.Cleanup(c.Close)

	resp, _ := keyExchange(t, c, lanKeyExchange(testKeyID), []byte(testKey))
	assert.Equal(t, 412, resp.Status)
	assert.JSONEq(t, `{"error":"Device has no LAN key"}`, string(resp.Body))
}

func TestKeyExchangeFetchesLanKey(t *testing.T) {
	provider := lanconfigmocks.NewMockProvider(t)
	provider.EXPECT().LanConfig(mock.Anything, testDSN).Return(&lanconfig.Config{
		KeyID: lanconfig.IntPtr(testKeyID),
		Key:   testKey,
	}, nil).Once()

	d := registry.NewDevice(testDSN, testIP)
	config := DefaultConfig()
	config.Provider = provider
	c := NewController(d, config)
	t.Cleanup(c.Close)

	activate(t, c)
	require.NotNil(t, d.LanConfig())

	// The fetched config is cached on the device.
	activate(t, c)
}

func TestKeyMismatchDeactivatesAndRefreshes(t *testing.T) {
	refreshed := make(chan struct{})
	provider := lanconfigmocks.NewMockProvider(t)
	provider.EXPECT().Refresh(mock.Anything, testDSN).
		Run(func(context.Context, string) { close(refreshed) }).
		Return(nil, errors.New("cloud unreachable")).Once()

	config := DefaultConfig()
	config.Provider = provider
	c, d := newTestController(t, config)
	var tr transitions
	c.OnStateChange(tr.record)

	activate(t, c)

	resp, codec := keyExchange(t, c, lanKeyExchange(7), []byte(testKey))
	assert.Nil(t, codec)
	assert.Equal(t, 412, resp.Status)
	assert.JSONEq(t, `{"error":"Keys do not match"}`, string(resp.Body))

	assert.Equal(t, StateInactive, c.State())
	assert.ErrorIs(t, c.LastError(), lanerr.ErrKeyMismatch)
	assert.ErrorIs(t, c.LastError(), lanerr.ErrHandshake)

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("lan config not refreshed")
	}
	assert.True(t, d.LanDisabled())
	assert.ErrorIs(t, c.Register(context.Background()), ErrLanDisabled)

	active, errs := tr.snapshot()
	require.Len(t, active, 2)
	assert.False(t, active[1])
	assert.ErrorIs(t, errs[1], lanerr.ErrKeyMismatch)
}

func TestKeyMismatchRefreshRestoresLan(t *testing.T) {
	provider := lanconfigmocks.NewMockProvider(t)
	provider.EXPECT().Refresh(mock.Anything, testDSN).Return(&lanconfig.Config{
		KeyID:     lanconfig.IntPtr(7),
		Key:       "rotated-lan-key",
		KeepAlive: 3600,
	}, nil).Once()

	config := DefaultConfig()
	config.Provider = provider
	c, d := newTestController(t, config)

	resp, _ := keyExchange(t, c, lanKeyExchange(7), []byte(testKey))
	require.Equal(t, 412, resp.Status)

	require.Eventually(t, func() bool { return !d.LanDisabled() }, time.Second, 5*time.Millisecond)

	resp, codec := keyExchange(t, c, lanKeyExchange(7), []byte("rotated-lan-key"))
	assert.Equal(t, 200, resp.Status)
	assert.NotNil(t, codec)
	assert.True(t, c.IsActive())
}

func TestVersionMismatchOnActiveSessionNotifies(t *testing.T) {
	c, _ := newTestController(t, DefaultConfig())
	var tr transitions
	c.OnStateChange(tr.record)
	activate(t, c)

	kx := lanKeyExchange(testKeyID)
	kx.Proto = 9
	resp, _ := keyExchange(t, c, kx, []byte(testKey))
	assert.Equal(t, 426, resp.Status)

	active, errs := tr.snapshot()
	assert.Equal(t, []bool{true, false}, active)
	assert.ErrorIs(t, errs[1], lanerr.ErrHandshake)
}

func TestSetupKeyExchange(t *testing.T) {
	key, err := setupcrypto.Generate(0)
	require.NoError(t, err)
	d := registry.NewSetupDevice("AC000W000SETUP1", testIP, key)
	c := NewController(d, DefaultConfig())
	t.Cleanup(c.Close)

	secret := []byte("setup-shared-secret")
	sec, err := setupcrypto.EncryptSecret(key.PublicKeyBase64(), secret)
	require.NoError(t, err)

	kx := lanKeyExchange(0)
	kx.KeyID = nil
	kx.Sec = sec
	resp, codec := keyExchange(t, c, kx, secret)
	require.Equal(t, 200, resp.Status)
	require.NotNil(t, codec)
	assert.True(t, c.IsActive())

	// The setup session carries encrypted module requests.
	resp = send(t, codec, c.HandleStatus, transport.PathStatus, "", `{"dsn":"AC000W000SETUP1","mac":"aabbccddeeff"}`)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"dsn":"AC000W000SETUP1","mac":"aabbccddeeff"}`, string(d.SetupDetails()))
}

func TestSetupKeyExchangeFailures(t *testing.T) {
	t.Run("no setup key", func(t *testing.T) {
		c, _ := newTestController(t, DefaultConfig())
		kx := lanKeyExchange(0)
		kx.Sec = "c2VjcmV0"
		resp, _ := keyExchange(t, c, kx, nil)
		assert.Equal(t, 404, resp.Status)
		assert.JSONEq(t, `{"error":"No device found"}`, string(resp.Body))
	})

	t.Run("undecryptable secret", func(t *testing.T) {
		key, err := setupcrypto.Generate(0)
		require.NoError(t, err)
		c := NewController(registry.NewSetupDevice("AC000W000SETUP1", testIP, key), DefaultConfig())
		t.Cleanup(c.Close)

		kx := lanKeyExchange(0)
		kx.Sec = "bm90IHJzYQ=="
		resp, _ := keyExchange(t, c, kx, nil)
		assert.Equal(t, 401, resp.Status)
		assert.JSONEq(t, `{"error":"Decryption failure"}`, string(resp.Body))
		assert.False(t, c.IsActive())
	})
}
