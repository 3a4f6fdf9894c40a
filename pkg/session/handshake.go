package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yuvaraj-ayla/lanmode/pkg/envelope"
	"github.com/yuvaraj-ayla/lanmode/pkg/lanerr"
	"github.com/yuvaraj-ayla/lanmode/pkg/log"
	"github.com/yuvaraj-ayla/lanmode/pkg/metrics"
	"github.com/yuvaraj-ayla/lanmode/pkg/sessionkey"
	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// Handshake variants, used as metric labels.
const (
	VariantLAN   = "lan"
	VariantSetup = "setup"
)

// HandleKeyExchange serves /local_lan/key_exchange.json. Exchanges that
// carry a sec field use the secure-setup variant; all others use the
// cloud-issued LAN key.
func (c *Controller) HandleKeyExchange(req *transport.Request) transport.Response {
	kx, err := transport.ParseKeyExchange(req.Body)
	if err != nil {
		c.rec.Error("", log.LayerHTTP, req.ClientIP, http.StatusBadRequest, "key exchange", err)
		return transport.Error(http.StatusBadRequest, "Unable to parse request JSON")
	}

	c.rec.Control(c.SessionID(), log.DirectionIn, req.ClientIP, log.ControlEvent{
		Type:   log.ControlKeyExchange,
		Detail: variantOf(kx),
	})

	if kx.IsSecureSetup() {
		return c.setupKeyExchange(req, kx)
	}
	return c.lanKeyExchange(req, kx)
}

func variantOf(kx *transport.KeyExchange) string {
	if kx.IsSecureSetup() {
		return VariantSetup
	}
	return VariantLAN
}

// lanKeyExchange handles the cloud-key variant. Any ACTIVE session is
// cleared first; only a successful exchange makes it ACTIVE again.
func (c *Controller) lanKeyExchange(req *transport.Request, kx *transport.KeyExchange) transport.Response {
	start := time.Now()

	c.mu.Lock()
	old := c.setStateLocked(StateHandshaking)
	c.codec = nil
	c.mu.Unlock()
	c.stateChanged(old, StateHandshaking, "key exchange")
	wasActive := old == StateActive

	if kx.Proto != transport.ProtoCBCAES256 || kx.Ver != transport.MessageVersion {
		err := lanerr.New(lanerr.ErrHandshake, fmt.Sprintf("unsupported crypto proto %d ver %d", kx.Proto, kx.Ver))
		return c.handshakeFailed(req, VariantLAN, wasActive, metrics.OutcomeVersion, start,
			http.StatusUpgradeRequired, "Unsupported crypto version", err)
	}

	cfg, err := c.lanConfig(requestContext(req))
	if err != nil || cfg.KeyID == nil {
		cause := lanerr.New(lanerr.ErrPrecondition, "device has no LAN key")
		return c.handshakeFailed(req, VariantLAN, wasActive, metrics.OutcomeNoKey, start,
			http.StatusPreconditionFailed, "Device has no LAN key", cause)
	}

	if kx.KeyID == nil || *kx.KeyID != *cfg.KeyID {
		c.device.SetLanDisabled(true)
		go c.refreshLanConfig()
		got := "none"
		if kx.KeyID != nil {
			got = fmt.Sprint(*kx.KeyID)
		}
		cause := lanerr.New(lanerr.ErrKeyMismatch, fmt.Sprintf("device key id %s, have %d", got, *cfg.KeyID))
		return c.handshakeFailed(req, VariantLAN, wasActive, metrics.OutcomeKeyMismatch, start,
			http.StatusPreconditionFailed, "Keys do not match", cause)
	}

	return c.completeHandshake(req, kx, cfg.Secret(), VariantLAN, http.StatusOK, start, wasActive)
}

// setupKeyExchange handles the secure-setup variant: the shared secret
// is RSA-wrapped with the setup device's public key.
func (c *Controller) setupKeyExchange(req *transport.Request, kx *transport.KeyExchange) transport.Response {
	start := time.Now()

	key := c.device.SetupKey()
	if key == nil {
		c.config.Metrics.Handshake(VariantSetup, metrics.OutcomeNoKey, time.Since(start))
		return transport.Error(http.StatusNotFound, "No device found")
	}

	secret, err := key.DecryptSecret(kx.Sec)
	if err != nil {
		c.config.Metrics.Handshake(VariantSetup, metrics.OutcomeCrypto, time.Since(start))
		c.rec.Error(c.SessionID(), log.LayerSession, req.ClientIP, http.StatusUnauthorized, "setup secret", err)
		return transport.Error(http.StatusUnauthorized, "Decryption failure")
	}

	return c.completeHandshake(req, kx, secret, VariantSetup, c.queueStatus(), start, c.IsActive())
}

// completeHandshake derives the session keys and activates the session.
func (c *Controller) completeHandshake(req *transport.Request, kx *transport.KeyExchange, secret []byte,
	variant string, status int, start time.Time, wasActive bool) transport.Response {
	nonce, err := sessionkey.NewNonce()
	if err != nil {
		return c.handshakeFailed(req, variant, wasActive, metrics.OutcomeCrypto, start,
			transport.StatusCertError, "Could not generate session keys", lanerr.Wrap(lanerr.ErrCrypto, "nonce", err))
	}
	ts := sessionkey.NewTimestamp()

	keys, err := sessionkey.Derive(secret, sessionkey.Inputs{
		Random1: kx.Random1,
		Time1:   kx.Time1.String(),
		Random2: nonce,
		Time2:   sessionkey.FormatTime(ts),
	})
	if err != nil {
		return c.handshakeFailed(req, variant, wasActive, metrics.OutcomeCrypto, start,
			transport.StatusCertError, "Could not generate session keys", err)
	}
	codec, err := envelope.NewCodec(keys, sessionkey.RoleApp)
	if err != nil {
		return c.handshakeFailed(req, variant, wasActive, metrics.OutcomeCrypto, start,
			transport.StatusCertError, "Could not generate session keys", err)
	}

	body, err := json.Marshal(transport.KeyResponse{
		Random2: nonce,
		Time2:   json.Number(sessionkey.FormatTime(ts)),
	})
	if err != nil {
		return transport.Error(http.StatusInternalServerError, "Could not encode key response")
	}

	id := uuid.NewString()
	c.mu.Lock()
	old := c.setStateLocked(StateActive)
	c.codec = codec
	c.sessionID = id
	ctx := c.ctx
	c.mu.Unlock()

	if c.rediscovery != nil {
		c.rediscovery.Stop()
	}
	c.keepAlive.Start(ctx)

	c.config.Metrics.Handshake(variant, metrics.OutcomeOK, time.Since(start))
	c.stateChanged(old, StateActive, variant+" key exchange")
	c.notify(true, nil)
	c.debugLog("lan session established", "dsn", c.DSN(), "variant", variant, "session", id)
	return transport.JSON(status, body)
}

// handshakeFailed leaves the session INACTIVE. A session that was ACTIVE
// before the exchange records err and reports the loss.
func (c *Controller) handshakeFailed(req *transport.Request, variant string, wasActive bool, outcome string,
	start time.Time, status int, msg string, err error) transport.Response {
	c.mu.Lock()
	old := c.setStateLocked(StateInactive)
	if wasActive {
		c.lastError = err
	}
	c.mu.Unlock()

	c.config.Metrics.Handshake(variant, outcome, time.Since(start))
	c.rec.Error(c.SessionID(), log.LayerSession, req.ClientIP, status, "key exchange", err)
	c.stateChanged(old, StateInactive, msg)
	if wasActive {
		c.notify(false, err)
	}
	c.debugLog("key exchange rejected", "dsn", c.DSN(), "status", status, "error", err)
	return transport.Error(status, msg)
}
