package faucet

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/authority"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/faucet/token"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	level := slog.LevelError
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newPrivateKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

type apiFixture struct {
	t      *testing.T
	clock  *clockwork.FakeClock
	ledger *infra.MemoryLedger
	token  *token.Program
	stats  *infra.MemoryStatsStore
	h      *Handler

	mint  solana.PublicKey
	vault solana.PublicKey
	admin solana.PrivateKey
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		t:      t,
		clock:  clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		ledger: infra.NewMemoryLedger(),
		token:  token.New(),
		stats:  infra.NewMemoryStatsStore(),
		mint:   newPrivateKey(t).PublicKey(),
		vault:  newPrivateKey(t).PublicKey(),
		admin:  newPrivateKey(t),
	}
	engine, err := application.NewEngine(application.Config{
		Logger:  testLogger(),
		Clock:   f.clock,
		Ledger:  f.ledger,
		Deriver: authority.New(newPrivateKey(t).PublicKey(), authority.ScopePool),
		Token:   f.token,
	})
	require.NoError(t, err)

	f.h, err = NewHandler(Config{
		Logger: testLogger(),
		Clock:  f.clock,
		Engine: engine,
		Stats:  f.stats,
	})
	require.NoError(t, err)

	f.open(f.vault, f.mint, f.admin.PublicKey(), 1_000)
	return f
}

func (f *apiFixture) open(addr, mint, owner solana.PublicKey, amount uint64) {
	f.t.Helper()
	err := f.ledger.Update(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := f.token.InitializeAccount(ctx, tx, addr, mint, owner); err != nil {
			return err
		}
		return f.token.MintTo(ctx, tx, addr, amount)
	})
	require.NoError(f.t, err)
}

func (f *apiFixture) do(method, path string, body any, signer solana.PrivateKey) *httptest.ResponseRecorder {
	f.t.Helper()

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(f.t, err)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(raw))
	r.RemoteAddr = "10.0.0.1:1234"
	if signer != nil {
		sig, err := signer.Sign(raw)
		require.NoError(f.t, err)
		r.Header.Set(SignatureHeader, sig.String())
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func (f *apiFixture) initPool(amount uint64, cooldown int64) {
	f.t.Helper()
	w := f.do(http.MethodPost, "/v1/pools", map[string]any{
		"asset":         f.mint,
		"vault":         f.vault,
		"administrator": f.admin.PublicKey(),
		"amount":        amount,
		"cooldown":      cooldown,
	}, f.admin)
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHandler_ClaimLifecycle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.initPool(100, 3600)

	w := f.do(http.MethodGet, "/v1/pools/"+f.mint.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[application.PoolView](t, w)
	require.Equal(t, uint64(1_000), view.VaultBalance)
	require.Equal(t, uint64(100), view.Amount)
	require.False(t, view.Authority.IsZero())

	requester := newPrivateKey(t)
	dest := newPrivateKey(t).PublicKey()
	f.open(dest, f.mint, requester.PublicKey(), 0)
	body := map[string]any{"requester": requester.PublicKey(), "destination": dest}
	claimPath := "/v1/pools/" + f.mint.String() + "/claims"

	w = f.do(http.MethodPost, claimPath+"/first", body, requester)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rcpt := decode[application.Receipt](t, w)
	require.True(t, rcpt.First)
	require.Equal(t, uint64(100), rcpt.Amount)
	require.Equal(t, uint64(900), rcpt.VaultBalance)

	w = f.do(http.MethodPost, claimPath+"/first", body, requester)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_claimed", decode[errorBody](t, w).Error)

	f.clock.Advance(1800 * time.Second)
	w = f.do(http.MethodPost, claimPath+"/next", body, requester)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1800", w.Header().Get("Retry-After"))
	eb := decode[errorBody](t, w)
	require.Equal(t, "rate_limited", eb.Error)
	require.Equal(t, int64(1_700_003_600), eb.AvailableAt)

	f.clock.Advance(1800 * time.Second)
	w = f.do(http.MethodPost, claimPath+"/next", body, requester)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/v1/pools/"+f.mint.String()+"/cooldowns/"+requester.PublicKey().String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cd := decode[application.CooldownView](t, w)
	require.Equal(t, int64(1_700_003_600), cd.LastTimestamp)
	require.Equal(t, int64(1_700_007_200), cd.AvailableAt)

	w = f.do(http.MethodGet, "/v1/accounts/"+dest.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint64(200), decode[domain.TokenAccount](t, w).Amount)

	require.Equal(t, map[string]int64{
		"claim_first:ok":              1,
		"claim_first:already_claimed": 1,
		"claim_next:rate_limited":     1,
		"claim_next:ok":               1,
	}, f.stats.ByOutcome())
}

func TestHandler_ClaimAuto(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.initPool(100, 60)

	requester := newPrivateKey(t)
	dest := newPrivateKey(t).PublicKey()
	f.open(dest, f.mint, requester.PublicKey(), 0)
	body := map[string]any{"requester": requester.PublicKey(), "destination": dest}
	path := "/v1/pools/" + f.mint.String() + "/claims"

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, path, body, requester).Code)
	require.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, path, body, requester).Code)
	f.clock.Advance(time.Minute)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, path, body, requester).Code)
}

func TestHandler_SignatureIsRequired(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.initPool(100, 60)

	requester := newPrivateKey(t)
	dest := newPrivateKey(t).PublicKey()
	f.open(dest, f.mint, requester.PublicKey(), 0)
	body := map[string]any{"requester": requester.PublicKey(), "destination": dest}
	path := "/v1/pools/" + f.mint.String() + "/claims/first"

	w := f.do(http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_signature", decode[errorBody](t, w).Error)

	// assinado por outra chave
	w = f.do(http.MethodPost, path, body, newPrivateKey(t))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{}`)))
	r.Header.Set(SignatureHeader, "not-base58-!!")
	w = httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	acc, err := f.h.engine.Account(context.Background(), f.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), acc.Amount)
}

func TestHandler_InitializeErrors(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	body := map[string]any{
		"asset":         f.mint,
		"vault":         f.vault,
		"administrator": f.admin.PublicKey(),
		"amount":        10,
		"cooldown":      60,
	}

	// administrador que não controla o vault
	intruder := newPrivateKey(t)
	other := map[string]any{
		"asset":         f.mint,
		"vault":         f.vault,
		"administrator": intruder.PublicKey(),
		"amount":        10,
		"cooldown":      60,
	}
	w := f.do(http.MethodPost, "/v1/pools", other, intruder)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "unauthorized", decode[errorBody](t, w).Error)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/pools", body, f.admin).Code)

	w = f.do(http.MethodPost, "/v1/pools", body, f.admin)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_initialized", decode[errorBody](t, w).Error)

	body["amount"] = 0
	body["asset"] = newPrivateKey(t).PublicKey()
	w = f.do(http.MethodPost, "/v1/pools", body, f.admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ClaimErrors(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.initPool(150, 0)

	requester := newPrivateKey(t)
	dest := newPrivateKey(t).PublicKey()
	f.open(dest, f.mint, requester.PublicKey(), 0)
	body := map[string]any{"requester": requester.PublicKey(), "destination": dest}

	w := f.do(http.MethodPost, "/v1/pools/"+newPrivateKey(t).PublicKey().String()+"/claims/first", body, requester)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "pool_not_found", decode[errorBody](t, w).Error)

	w = f.do(http.MethodPost, "/v1/pools/not-a-key/claims/first", body, requester)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/pools/"+f.mint.String()+"/claims/next", body, requester)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "record_not_found", decode[errorBody](t, w).Error)

	// destino de outra pessoa
	stranger := newPrivateKey(t)
	w = f.do(http.MethodPost, "/v1/pools/"+f.mint.String()+"/claims/first",
		map[string]any{"requester": stranger.PublicKey(), "destination": dest}, stranger)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "owner_mismatch", decode[errorBody](t, w).Error)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/pools/"+f.mint.String()+"/claims/first", body, requester).Code)
	w = f.do(http.MethodPost, "/v1/pools/"+f.mint.String()+"/claims/next", body, requester)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "insufficient_funds", decode[errorBody](t, w).Error)
}

func TestHandler_MalformedBody(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/v1/pools", bytes.NewReader([]byte(`{"asset": 12`)))
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_argument", decode[errorBody](t, w).Error)
}

func TestHandler_Healthz(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandler_ThrottleGuardsV1(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	h, err := NewHandler(Config{
		Logger: testLogger(),
		Engine: f.h.engine,
		Throttle: &ThrottleOptions{
			Store: infra.NewStore(0.01, 1),
		},
	})
	require.NoError(t, err)
	f.h = h

	path := "/v1/accounts/" + f.vault.String()
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, path, nil, nil).Code)

	w := f.do(http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "rate_limit_exceeded", decode[errorBody](t, w).Error)
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	// healthz fica fora do throttle
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil, nil).Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrAlreadyInitialized, http.StatusConflict},
		{domain.ErrAlreadyClaimed, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{&domain.RateLimitedError{AvailableAt: 1, RetryAfter: time.Second}, http.StatusTooManyRequests},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrPoolNotFound, http.StatusNotFound},
		{domain.ErrRecordNotFound, http.StatusNotFound},
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrOwnerMismatch, http.StatusBadRequest},
		{domain.ErrMintMismatch, http.StatusBadRequest},
		{domain.ErrConflict, http.StatusServiceUnavailable},
		{domain.ErrDerivationExhausted, http.StatusInternalServerError},
		{errBadSignature, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
