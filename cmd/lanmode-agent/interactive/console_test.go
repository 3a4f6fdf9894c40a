package interactive

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/devicesim"
	"github.com/yuvaraj-ayla/lanmode/pkg/dispatch"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/registry"
	"github.com/yuvaraj-ayla/lanmode/pkg/session"
)

const testDSN = "AC000W000777777"

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer, *devicesim.Device) {
	t.Helper()
	ctx := context.Background()

	dev := devicesim.New(devicesim.Config{
		DSN:           testDSN,
		KeyID:         1,
		Key:           "console-test-key",
		ListenAddress: "127.0.0.1:0",
		Properties: []devicesim.Property{
			{Name: "Blue_LED", BaseType: "boolean", Value: 0},
			{Name: "cmd", BaseType: "string", Value: "", AckEnabled: true},
		},
	})
	require.NoError(t, dev.Start(ctx))
	t.Cleanup(func() { _ = dev.Stop(context.Background()) })

	config := session.DefaultManagerConfig()
	config.ListenAddress = "127.0.0.1:0"
	config.AdvertiseIP = "127.0.0.1"
	m := session.NewManager(registry.New(), config)
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	d := registry.NewDevice(testDSN, "127.0.0.1")
	d.SetLanConfig(&lanconfig.Config{KeyID: lanconfig.IntPtr(1), Key: "console-test-key"})
	d.AddProperty("Blue_LED", "boolean", false)
	d.AddProperty("cmd", "string", true)
	c, err := m.Add(d, dev.Port())
	require.NoError(t, err)
	require.NoError(t, m.StartSession(ctx, testDSN))
	require.Eventually(t, c.IsActive, 3*time.Second, 10*time.Millisecond)

	var buf bytes.Buffer
	return &Console{manager: m, dispatcher: dispatch.New(dispatch.Config{}), out: &buf}, &buf, dev
}

func TestConsoleDevicesAndStatus(t *testing.T) {
	c, out, _ := newTestConsole(t)

	assert.True(t, c.Exec(context.Background(), "devices"))
	assert.Contains(t, out.String(), testDSN)
	assert.Contains(t, out.String(), "ACTIVE")

	out.Reset()
	c.Exec(context.Background(), "status "+testDSN)
	assert.Contains(t, out.String(), "State:         ACTIVE")
	assert.Contains(t, out.String(), "Session:")

	out.Reset()
	c.Exec(context.Background(), "status AC000W000000000")
	assert.Contains(t, out.String(), "No device AC000W000000000")
}

func TestConsoleGetSet(t *testing.T) {
	c, out, dev := newTestConsole(t)

	c.Exec(context.Background(), "set "+testDSN+" Blue_LED on")
	assert.Contains(t, out.String(), "Blue_LED = 1")
	require.Eventually(t, func() bool {
		v, _ := dev.Value("Blue_LED")
		return v == float64(1)
	}, time.Second, 10*time.Millisecond)

	out.Reset()
	c.Exec(context.Background(), "set "+testDSN+" cmd hello")
	assert.Contains(t, out.String(), "cmd = hello")
	require.Eventually(t, func() bool { return dev.Acks() == 1 }, time.Second, 10*time.Millisecond)

	out.Reset()
	c.Exec(context.Background(), "get "+testDSN+" Blue_LED")
	assert.Contains(t, out.String(), "Blue_LED")
	assert.Contains(t, out.String(), " 1")

	out.Reset()
	c.Exec(context.Background(), "set "+testDSN+" Blue_LED maybe")
	assert.Contains(t, out.String(), "Invalid value")
}

func TestConsoleDeleteAndQuit(t *testing.T) {
	c, out, dev := newTestConsole(t)

	c.Exec(context.Background(), "delete "+testDSN)
	assert.Contains(t, out.String(), "ended")
	require.Eventually(t, func() bool { return dev.Deleted() == 1 }, 2*time.Second, 10*time.Millisecond)

	out.Reset()
	assert.True(t, c.Exec(context.Background(), "frobnicate"))
	assert.Contains(t, out.String(), "Unknown command: frobnicate")
	assert.True(t, c.Exec(context.Background(), "   "))
	assert.False(t, c.Exec(context.Background(), "quit"))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		baseType string
		in       string
		want     any
		wantErr  bool
	}{
		{"boolean", "true", 1, false},
		{"boolean", "OFF", 0, false},
		{"boolean", "2", nil, true},
		{"integer", "-12", int64(-12), false},
		{"integer", "1.5", nil, true},
		{"decimal", "1.5", 1.5, false},
		{"string", "hello", "hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.baseType+"/"+tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.baseType, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
