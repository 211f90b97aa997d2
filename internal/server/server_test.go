package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/clock"
	"github.com/alanyoungcy/nftmart/internal/crypto"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/events"
	"github.com/alanyoungcy/nftmart/internal/market"
	"github.com/alanyoungcy/nftmart/internal/server/handler"
	"github.com/alanyoungcy/nftmart/internal/server/middleware"
	"github.com/alanyoungcy/nftmart/internal/store/memory"
)

// Well-known development keys.
const (
	operatorKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	sellerKey   = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	buyerKey    = "0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
)

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	handler  http.Handler
	eng      *market.Engine
	clock    *clock.Manual
	rec      *events.Recorder
	operator *crypto.Signer
	seller   *crypto.Signer
	buyer    *crypto.Signer
}

func mustSigner(t *testing.T, key string) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(key)
	require.NoError(t, err)
	return s
}

func newTestEnv(t *testing.T, checks map[string]handler.HealthCheck) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		t:        t,
		ctx:      context.Background(),
		clock:    clock.NewManual(1),
		rec:      &events.Recorder{},
		operator: mustSigner(t, operatorKey),
		seller:   mustSigner(t, sellerKey),
		buyer:    mustSigner(t, buyerKey),
	}
	env.eng = market.NewEngine(memory.New(), env.clock, env.rec, domain.AccountID{}, logger)

	require.NoError(t, env.eng.UpdateParams(env.ctx, env.operator.Address(), domain.MarketParams{
		MinOrderDeposit:           domain.NewBalance(10),
		PlatformFeeRate:           domain.RateFromPercent(1),
		MaxCommissionRewardRate:   domain.RateFromPercent(50),
		MinCommissionAgentDeposit: domain.NewBalance(0),
		RoyaltiesRate:             domain.RateFromPercent(20),
		AuctionCloseDelay:         10 * domain.Minutes,
	}))
	require.NoError(t, env.eng.Deposit(env.ctx, domain.NativeCurrencyID, env.seller.Address(), domain.NewBalance(1000)))

	handlers := Handlers{
		Health:   handler.NewHealthHandler(checks, logger),
		Status:   handler.NewStatusHandler(env.eng, env.clock, env.operator.Address(), logger),
		Listings: handler.NewListingHandler(env.eng, logger),
		Orders:   handler.NewOrderHandler(env.eng, logger),
		Auctions: handler.NewAuctionHandler(env.eng, logger),
		Assets:   handler.NewAssetHandler(env.eng, logger),
		Admin:    handler.NewAdminHandler(env.eng, logger),
	}
	srv := NewServer(Config{
		Operator:     env.operator.Address(),
		SignatureTTL: time.Minute,
	}, handlers, nil, Guards{Replay: middleware.NewLocalReplayGuard()}, logger)
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) signedRequest(s *crypto.Signer, method, path string, body any, ts int64, nonce string) *http.Request {
	e.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(e.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if s != nil {
		sig, err := s.SignRequest(method, path, ts, nonce, raw)
		require.NoError(e.t, err)
		req.Header.Set(middleware.HeaderAccount, s.Address().Hex())
		req.Header.Set(middleware.HeaderSignature, sig)
		req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(middleware.HeaderNonce, nonce)
	}
	return req
}

func itoa[T ~uint32 | ~uint64](n T) string {
	return strconv.FormatUint(uint64(n), 10)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// do sends a request signed by s (unsigned when s is nil) with a fresh nonce.
func (e *testEnv) do(s *crypto.Signer, method, path string, body any) *httptest.ResponseRecorder {
	return e.serve(e.signedRequest(s, method, path, body, time.Now().Unix(), uuid.NewString()))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) mustID(rec *httptest.ResponseRecorder) uint64 {
	e.t.Helper()
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		ID uint64 `json:"id"`
	}](e.t, rec).ID
}

// listOrder whitelists the seller, mints a token and lists two units of it.
func (e *testEnv) listOrder(price uint64) (domain.ClassID, domain.TokenID, domain.GlobalID) {
	e.t.Helper()
	rec := e.do(e.operator, http.MethodPost, "/v1/admin/whitelist", map[string]any{"account": e.seller.Address()})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	class := domain.ClassID(e.mustID(e.do(e.seller, http.MethodPost, "/v1/classes", map[string]any{
		"metadata": []byte("gallery"), "royalty_rate": 0,
	})))
	token := domain.TokenID(e.mustID(e.do(e.seller, http.MethodPost, "/v1/classes/"+itoa(class)+"/tokens", map[string]any{
		"metadata": []byte("piece"), "quantity": 5,
	})))
	category := domain.GlobalID(e.mustID(e.do(e.operator, http.MethodPost, "/v1/admin/categories", map[string]any{
		"metadata": []byte("art"),
	})))

	id := domain.GlobalID(e.mustID(e.do(e.seller, http.MethodPost, "/v1/orders", market.SubmitOrderRequest{
		CurrencyID: domain.NativeCurrencyID,
		CategoryID: category,
		Deposit:    domain.NewBalance(10),
		Price:      domain.NewBalance(price),
		Deadline:   100,
		Items:      []domain.OrderItem{{ClassID: class, TokenID: token, Quantity: 2}},
	})))
	return class, token, id
}

func TestOrderRoundTripOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(env.operator, http.MethodPost, "/v1/admin/deposits", map[string]any{
		"currency_id": 0, "account": env.buyer.Address(), "amount": "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	class, token, id := env.listOrder(100)
	orderPath := "/v1/orders/" + env.seller.Address().Hex() + "/" + itoa(id)

	rec = env.do(nil, http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decode[domain.Order](t, rec)
	assert.Equal(t, "100", order.Price.String())
	assert.Len(t, order.Items, 1)

	rec = env.do(env.buyer, http.MethodPost, orderPath+"/take", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(nil, http.MethodGet, orderPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(nil, http.MethodGet, "/v1/accounts/"+env.buyer.Address().Hex()+"/tokens/"+itoa(class)+"/"+itoa(token), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	holding := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, holding["quantity"])

	rec = env.do(nil, http.MethodGet, "/v1/accounts/"+env.buyer.Address().Hex()+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "900", decode[map[string]any](t, rec)["free"])

	assert.Contains(t, env.rec.Kinds(), domain.EventTakenOrder)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, id := env.listOrder(100)
	orderPath := "/v1/orders/" + env.seller.Address().Hex() + "/" + itoa(id)

	rec := env.do(env.seller, http.MethodPost, orderPath+"/take", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "taking own order")

	rec = env.do(env.buyer, http.MethodPost, orderPath+"/take", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "buyer has no funds")

	rec = env.do(env.buyer, http.MethodPost, "/v1/orders/"+env.seller.Address().Hex()+"/999/take", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(env.buyer, http.MethodDelete, "/v1/orders/"+itoa(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the owner can remove")

	rec = env.do(env.seller, http.MethodDelete, "/v1/orders/"+itoa(id), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(env.buyer, http.MethodPost, "/v1/classes", map[string]any{"metadata": []byte("x"), "royalty_rate": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code, "buyer is not whitelisted")

	rec = env.do(env.seller, http.MethodPost, "/v1/orders", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutationsRequireSignature(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(nil, http.MethodPost, "/v1/orders", market.SubmitOrderRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := env.signedRequest(env.buyer, http.MethodPost, "/v1/classes", map[string]any{}, time.Now().Unix(), "n-1")
	req.Header.Set(middleware.HeaderAccount, env.seller.Address().Hex())
	assert.Equal(t, http.StatusUnauthorized, env.serve(req).Code, "signature from another account")

	req = env.signedRequest(env.seller, http.MethodPost, "/v1/classes", map[string]any{}, time.Now().Add(-time.Hour).Unix(), "n-2")
	assert.Equal(t, http.StatusUnauthorized, env.serve(req).Code, "stale timestamp")

	req = env.signedRequest(env.seller, http.MethodPost, "/v1/classes", map[string]any{"metadata": "AA=="}, time.Now().Unix(), "n-3")
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"metadata":"AQ=="}`)))
	assert.Equal(t, http.StatusUnauthorized, env.serve(req).Code, "tampered body")

	req = env.signedRequest(env.seller, http.MethodPost, "/v1/classes", map[string]any{}, time.Now().Unix(), "n:4")
	rec = env.serve(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "nonce with separator")
	assert.Contains(t, rec.Body.String(), middleware.HeaderNonce)
}

func TestReplayedNonceRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := time.Now().Unix()
	body := map[string]any{"account": env.seller.Address()}

	rec := env.serve(env.signedRequest(env.operator, http.MethodPost, "/v1/admin/whitelist", body, ts, "same"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.serve(env.signedRequest(env.operator, http.MethodPost, "/v1/admin/whitelist", body, ts, "same"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(env.seller, http.MethodPost, "/v1/admin/categories", map[string]any{"metadata": []byte("art")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(env.seller, http.MethodPost, "/v1/admin/deposits", map[string]any{
		"currency_id": 0, "account": env.seller.Address(), "amount": "1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(env.operator, http.MethodPut, "/v1/admin/params", domain.MarketParams{
		MinOrderDeposit: domain.NewBalance(1),
		RoyaltiesRate:   domain.RateFromPercent(10),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(nil, http.MethodGet, "/v1/params", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", decode[domain.MarketParams](t, rec).MinOrderDeposit.String())
}

func TestListingsAndStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, id := env.listOrder(50)

	rec := env.do(nil, http.MethodGet, "/v1/listings?kind=order", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listings := decode[struct {
		Listings []domain.ListingRef `json:"listings"`
	}](t, rec).Listings
	require.Len(t, listings, 1)
	assert.Equal(t, id, listings[0].ID)
	assert.Equal(t, env.seller.Address(), listings[0].Owner)

	rec = env.do(nil, http.MethodGet, "/v1/listings?kind=auction", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(nil, http.MethodGet, "/v1/listings?kind=offer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["count"])

	env.clock.Set(42)
	rec = env.do(nil, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]any](t, rec)
	assert.EqualValues(t, 42, status["block"])
	assert.Contains(t, status, "params")
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, map[string]handler.HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := env.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "connection refused"}, body["checks"])
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}
