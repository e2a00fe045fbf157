package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/metrics"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxBodyBytes = 16 << 10

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Engine *application.Engine

	// Stats é opcional; falhas ao gravar não derrubam o request.
	Stats domain.StatsStore

	// Throttle nil desliga o token bucket da porta da frente.
	Throttle    *ThrottleOptions
	Concurrency ConcurrencyOptions

	MaxBodyBytes int64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return nil
}

// Handler é a API HTTP do faucet.
type Handler struct {
	log    *slog.Logger
	clock  clockwork.Clock
	engine *application.Engine
	stats  domain.StatsStore
	limit  int64
	router chi.Router
}

func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Handler{
		log:    cfg.Logger,
		clock:  cfg.Clock,
		engine: cfg.Engine,
		stats:  cfg.Stats,
		limit:  cfg.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Throttle != nil {
			r.Use(ThrottleMiddleware(*cfg.Throttle))
		}

		r.Post("/pools", h.postPool)
		r.Get("/pools/{asset}", h.getPool)
		r.Get("/pools/{asset}/cooldowns/{requester}", h.getCooldown)
		r.Get("/accounts/{address}", h.getAccount)

		r.Group(func(r chi.Router) {
			r.Use(ConcurrencyMiddleware(cfg.Concurrency))
			r.Post("/pools/{asset}/claims/first", h.claim(application.OpClaimFirst, h.engine.ClaimFirst))
			r.Post("/pools/{asset}/claims/next", h.claim(application.OpClaimNext, h.engine.ClaimNext))
			r.Post("/pools/{asset}/claims", h.claim(application.OpClaim, h.engine.Claim))
		})
	})

	h.router = r
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type initializeBody struct {
	Asset         solana.PublicKey `json:"asset"`
	Vault         solana.PublicKey `json:"vault"`
	Administrator solana.PublicKey `json:"administrator"`
	Amount        uint64           `json:"amount"`
	Cooldown      int64            `json:"cooldown"`
}

type claimBody struct {
	Requester   solana.PublicKey `json:"requester"`
	Destination solana.PublicKey `json:"destination"`
}

// readSigned lê o corpo, decodifica em dst e confere a assinatura de signer(dst).
func (h *Handler) readSigned(w http.ResponseWriter, r *http.Request, dst any, signer func() solana.PublicKey) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.limit))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidArgument, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidArgument, err)
	}
	return verifySignature(r, body, signer())
}

func pathKey(r *http.Request, name string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(chi.URLParam(r, name))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, name, err)
	}
	return key, nil
}

func (h *Handler) postPool(w http.ResponseWriter, r *http.Request) {
	var req initializeBody
	if err := h.readSigned(w, r, &req, func() solana.PublicKey { return req.Administrator }); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	_, err := h.engine.Initialize(r.Context(), application.InitializeRequest{
		Asset:         req.Asset,
		Vault:         req.Vault,
		Administrator: req.Administrator,
		Amount:        req.Amount,
		Cooldown:      req.Cooldown,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	view, err := h.engine.Pool(r.Context(), req.Asset)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) getPool(w http.ResponseWriter, r *http.Request) {
	asset, err := pathKey(r, "asset")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	view, err := h.engine.Pool(r.Context(), asset)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getCooldown(w http.ResponseWriter, r *http.Request) {
	asset, err := pathKey(r, "asset")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	requester, err := pathKey(r, "requester")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	view, err := h.engine.Cooldown(r.Context(), asset, requester)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pathKey(r, "address")
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	acc, err := h.engine.Account(r.Context(), addr)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type claimFunc func(ctx context.Context, req application.ClaimRequest) (application.Receipt, error)

func (h *Handler) claim(op string, fn claimFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := pathKey(r, "asset")
		if err != nil {
			writeError(w, h.log, r, err)
			return
		}

		var req claimBody
		if err := h.readSigned(w, r, &req, func() solana.PublicKey { return req.Requester }); err != nil {
			writeError(w, h.log, r, err)
			return
		}

		rcpt, err := fn(r.Context(), application.ClaimRequest{
			Asset:       asset,
			Requester:   req.Requester,
			Destination: req.Destination,
		})
		h.record(r.Context(), domain.ClaimEvent{
			Asset:     asset,
			Requester: req.Requester,
			Operation: op,
			Outcome:   domain.ErrorCode(err),
			At:        h.clock.Now(),
		})
		if err != nil {
			writeError(w, h.log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rcpt)
	}
}

func (h *Handler) record(ctx context.Context, ev domain.ClaimEvent) {
	if h.stats == nil {
		return
	}
	if err := h.stats.Record(ctx, ev); err != nil {
		h.log.Warn("faucet: failed to record claim stats", "error", err)
	}
}
