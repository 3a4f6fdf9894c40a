package envelope

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
)

func testPair(t *testing.T) (app, dev *Codec) {
	t.Helper()
	keys, err := sessionkey.Derive([]byte("lan-key"), sessionkey.Inputs{
		Random1: "devdevdevdevdev1", Time1: "1000",
		Random2: "appappappappapp2", Time2: "2000",
	})
	require.NoError(t, err)

	app, err = NewCodec(keys, sessionkey.RoleApp)
	require.NoError(t, err)
	dev, err = NewCodec(keys, sessionkey.RoleDevice)
	require.NoError(t, err)
	return app, dev
}

func TestRoundTripBothDirections(t *testing.T) {
	app, dev := testPair(t)

	msg, err := app.Seal([]byte(`{"cmds":[{"cmd":{"cmd_id":1}}]}`))
	require.NoError(t, err)
	p, err := dev.Open(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.SeqNo)
	assert.JSONEq(t, `{"cmds":[{"cmd":{"cmd_id":1}}]}`, string(p.Data))

	body, err := dev.Encode([]byte(`{"name":"Blue_LED","value":1}`))
	require.NoError(t, err)
	p, err = app.Decode(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Blue_LED","value":1}`, string(p.Data))
}

func TestCipherChainAcrossMessages(t *testing.T) {
	app, dev := testPair(t)

	var sealed []*Message
	for i := 0; i < 4; i++ {
		m, err := app.Seal([]byte(`{"n":"same"}`))
		require.NoError(t, err)
		sealed = append(sealed, m)
	}
	// Identical plaintext must not repeat on the wire once the chain advances.
	assert.NotEqual(t, sealed[1].Enc, sealed[2].Enc)

	for i, m := range sealed {
		p, err := dev.Open(m)
		require.NoError(t, err)
		assert.Equal(t, int64(i), p.SeqNo)
	}
	assert.Equal(t, int64(4), app.NextSeq())
	assert.Equal(t, int64(0), dev.NextSeq())
}

func TestEmptyDataIsObject(t *testing.T) {
	app, dev := testPair(t)

	m, err := app.Seal(nil)
	require.NoError(t, err)
	p, err := dev.Open(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(p.Data))
}

func TestPaddingIsBlockAligned(t *testing.T) {
	for _, n := range []int{0, 14, 15, 16, 31, 32} {
		buf := pad(make([]byte, n))
		assert.Zero(t, len(buf)%16, "len %d", n)
		assert.Greater(t, len(buf), n, "len %d needs a NUL terminator", n)
	}
}

func TestTamperedCiphertextFails(t *testing.T) {
	app, dev := testPair(t)

	m, err := app.Seal([]byte(`{"value":42}`))
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(m.Enc)
	require.NoError(t, err)
	ct[len(ct)-3] ^= 0x01
	m.Enc = base64.StdEncoding.EncodeToString(ct)

	p, err := dev.Open(m)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, lanerr.ErrCrypto)
	assert.ErrorIs(t, err, lanerr.ErrSignature)
}

func TestTamperedSignatureFails(t *testing.T) {
	app, dev := testPair(t)

	m, err := app.Seal([]byte(`{"value":42}`))
	require.NoError(t, err)
	sig, _ := base64.StdEncoding.DecodeString(m.Sign)
	sig[0] ^= 0x80
	m.Sign = base64.StdEncoding.EncodeToString(sig)

	_, err = dev.Open(m)
	assert.ErrorIs(t, err, lanerr.ErrSignature)
}

func TestFailedOpenDesyncsChain(t *testing.T) {
	app, dev := testPair(t)

	forged := &Message{
		Enc:  base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")),
		Sign: base64.StdEncoding.EncodeToString([]byte("not a signature")),
	}
	_, err := dev.Open(forged)
	require.ErrorIs(t, err, lanerr.ErrSignature)

	// The forged block became the chaining value, so genuine traffic no
	// longer opens until the session is re-keyed.
	m, err := app.Seal([]byte(`{"value":1}`))
	require.NoError(t, err)
	_, err = dev.Open(m)
	assert.ErrorIs(t, err, lanerr.ErrSignature)

	app, dev = testPair(t)
	m, err = app.Seal([]byte(`{"value":1}`))
	require.NoError(t, err)
	_, err = dev.Open(m)
	assert.NoError(t, err)
}

func TestWrongDirectionFails(t *testing.T) {
	app, _ := testPair(t)
	other, _ := testPair(t)

	m, err := app.Seal([]byte(`{}`))
	require.NoError(t, err)
	// An app codec expects device keys, so it cannot open its own output.
	_, err = other.Open(m)
	assert.ErrorIs(t, err, lanerr.ErrCrypto)
}

func TestOpenRejectsMalformed(t *testing.T) {
	_, dev := testPair(t)

	tests := []struct {
		name string
		msg  Message
	}{
		{"bad base64 enc", Message{Enc: "!!!", Sign: "AAAA"}},
		{"bad base64 sign", Message{Enc: "AAAAAAAAAAAAAAAAAAAAAA==", Sign: "!!"}},
		{"short block", Message{Enc: base64.StdEncoding.EncodeToString([]byte("short")), Sign: "AAAA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dev.Open(&tt.msg)
			assert.ErrorIs(t, err, lanerr.ErrCrypto)
		})
	}
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{"enc":"abc","sign":"def"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", m.Enc)

	_, err = Parse([]byte(`not json`))
	assert.ErrorIs(t, err, lanerr.ErrPayloadParse)

	_, err = Parse([]byte(`{"enc":"abc"}`))
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestEncodeProducesWireJSON(t *testing.T) {
	app, _ := testPair(t)

	body, err := app.Encode([]byte(`{}`))
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "enc")
	assert.Contains(t, raw, "sign")
}
