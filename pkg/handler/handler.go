package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/models"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/mpesa"
	"github.com/brianaseka61-max/sautipesa-bridge/pkg/stats"
)

var ErrInvalidRequest = errors.New("invalid request")

// TenantStore resolves and registers business credentials.
type TenantStore interface {
	UpsertTenant(ctx context.Context, t models.Tenant) error
	TenantCredentials(ctx context.Context, shortcode string) (models.Credentials, error)
}

// Ledger is the durable transaction store.
type Ledger interface {
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	RecentTransaction(ctx context.Context, shortcode string, window time.Duration) (*models.Transaction, error)
}

// RecentCache is the optional fast path for the polling surface.
type RecentCache interface {
	StoreRecent(ctx context.Context, tx models.Transaction) error
	Recent(ctx context.Context, shortcode string) (*models.Transaction, error)
}

// Gateway is the outbound Daraja surface.
type Gateway interface {
	AccessToken(ctx context.Context, consumerKey, consumerSecret string) (string, error)
	StkPush(ctx context.Context, token, shortcode, passkey, phone string, amount decimal.Decimal) ([]byte, error)
}

// Broadcaster fans a payload out to every live session in a tenant's room.
type Broadcaster interface {
	Broadcast(shortcode string, payload []byte) int
}

// BridgeHandler orchestrates the push, callback, polling and registration
// flows. It holds no mutable state of its own; all concurrency lives in the
// injected collaborators, so pushes and callbacks for different tenants
// proceed fully in parallel.
type BridgeHandler struct {
	tenants TenantStore
	ledger  Ledger
	cache   RecentCache
	gateway Gateway
	hub     Broadcaster
	stats   *stats.Counters
	log     *logger.Logger

	recentWindow   time.Duration
	persistTimeout time.Duration

	// spawn runs the background persistence task. Overridden in tests to
	// run inline.
	spawn func(func())
}

// NewBridgeHandler wires the bridge core. cache may be nil; the bridge then
// serves polling from the ledger alone.
func NewBridgeHandler(tenants TenantStore, ledger Ledger, cache RecentCache, gateway Gateway, hub Broadcaster, counters *stats.Counters, log *logger.Logger, recentWindow time.Duration) *BridgeHandler {
	return &BridgeHandler{
		tenants:        tenants,
		ledger:         ledger,
		cache:          cache,
		gateway:        gateway,
		hub:            hub,
		stats:          counters,
		log:            log,
		recentWindow:   recentWindow,
		persistTimeout: 5 * time.Second,
		spawn:          func(f func()) { go f() },
	}
}

// RegisterTenant upserts a business by shortcode. Re-registration overwrites
// credentials, never duplicates.
func (h *BridgeHandler) RegisterTenant(ctx context.Context, t models.Tenant) error {
	if t.Shortcode == "" {
		return fmt.Errorf("%w: shortcode is required", ErrInvalidRequest)
	}
	if err := h.tenants.UpsertTenant(ctx, t); err != nil {
		h.log.ErrorF("registration failed for %s: %s", t.Shortcode, err)
		return err
	}
	h.log.InfoF("registered business %s (%s)", t.BusinessName, t.Shortcode)
	return nil
}

// InitiatePush resolves the tenant's credentials, acquires a fresh token and
// sends the STK push. The returned bytes are the gateway's synchronous
// acknowledgement, forwarded verbatim to the caller.
func (h *BridgeHandler) InitiatePush(ctx context.Context, req models.PushRequest) ([]byte, error) {
	if req.Shortcode == "" || req.Phone == "" {
		return nil, fmt.Errorf("%w: phone and shortcode are required", ErrInvalidRequest)
	}

	creds, err := h.tenants.TenantCredentials(ctx, req.Shortcode)
	if err != nil {
		h.log.ErrorF("credential lookup failed for %s: %s", req.Shortcode, err)
		return nil, err
	}

	token, err := h.gateway.AccessToken(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		h.log.ErrorF("token acquisition failed for %s: %s", req.Shortcode, err)
		return nil, err
	}

	ack, err := h.gateway.StkPush(ctx, token, req.Shortcode, creds.Passkey, req.Phone, req.Amount)
	if err != nil {
		h.log.ErrorF("stk push failed for %s: %s", req.Shortcode, err)
		return nil, err
	}

	h.stats.RecordPush()
	h.log.InfoF("stk push accepted for %s, phone %s, amount %s", req.Shortcode, req.Phone, req.Amount.String())
	return ack, nil
}

// ProcessCallback handles the gateway's asynchronous result for a prior push.
// The HTTP layer acknowledges the gateway unconditionally; the error returned
// here is for logging and tests only. A SUCCESS result is persisted in a
// bounded background task and fanned out to the tenant's room; the ledger
// write never blocks delivery.
func (h *BridgeHandler) ProcessCallback(shortcode string, env models.StkCallbackEnvelope) error {
	h.stats.RecordCallback()

	cb := env.Body.StkCallback
	if cb.ResultCode != 0 {
		h.log.InfoF("callback for %s reported failure: code=%d desc=%s", shortcode, cb.ResultCode, cb.ResultDesc)
		return nil
	}

	notice, err := mpesa.ExtractPayment(cb)
	if err != nil {
		h.log.WarningF("dropping callback for %s: %s", shortcode, err)
		return err
	}

	tx := models.Transaction{
		BusinessShortcode: shortcode,
		Receipt:           notice.Receipt,
		Amount:            notice.Amount,
		Phone:             notice.Phone,
		Status:            models.StatusSuccess,
	}
	h.spawn(func() { h.persist(tx) })

	payload, err := json.Marshal(models.Notification{
		Type: models.PaymentReceivedType,
		Data: notice,
	})
	if err != nil {
		h.log.ErrorF("notification marshal failed for %s: %s", shortcode, err)
		return err
	}

	delivered := h.hub.Broadcast(shortcode, payload)
	h.stats.RecordDelivered(delivered)
	h.log.InfoF("payment %s for %s delivered to %d session(s)", notice.Receipt, shortcode, delivered)
	return nil
}

// persist is the best-effort side of the callback path. Failures are logged
// and accepted; the row can still be reconstructed from gateway records.
func (h *BridgeHandler) persist(tx models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
	defer cancel()

	if err := h.ledger.InsertTransaction(ctx, tx); err != nil {
		h.log.ErrorF("ledger write failed for %s receipt %s: %s", tx.BusinessShortcode, tx.Receipt, err)
	} else {
		h.stats.RecordPayment()
	}

	if h.cache != nil {
		if err := h.cache.StoreRecent(ctx, tx); err != nil {
			h.log.WarningF("recent cache write failed for %s: %s", tx.BusinessShortcode, err)
		}
	}
}

// RecentPayment returns the most recent SUCCESS transaction for the tenant
// inside the recency window, or nil when none qualifies. Cache first, ledger
// on miss; every cache failure degrades to the ledger query.
func (h *BridgeHandler) RecentPayment(ctx context.Context, shortcode string) (*models.PaymentNotice, error) {
	if h.cache != nil {
		cached, err := h.cache.Recent(ctx, shortcode)
		if err != nil {
			h.log.WarningF("recent cache read failed for %s: %s", shortcode, err)
		} else if cached != nil {
			return &models.PaymentNotice{Amount: cached.Amount, Phone: cached.Phone, Receipt: cached.Receipt}, nil
		}
	}

	tx, err := h.ledger.RecentTransaction(ctx, shortcode, h.recentWindow)
	if err != nil {
		h.log.ErrorF("recent transaction lookup failed for %s: %s", shortcode, err)
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}
	return &models.PaymentNotice{Amount: tx.Amount, Phone: tx.Phone, Receipt: tx.Receipt}, nil
}

// Stats exposes process counters for the health surface.
func (h *BridgeHandler) Stats() stats.Snapshot {
	return h.stats.Snapshot()
}
