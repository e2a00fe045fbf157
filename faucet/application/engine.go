package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"faucet-gateway/faucet/authority"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/metrics"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	OpInitialize = "initialize"
	OpClaimFirst = "claim_first"
	OpClaimNext  = "claim_next"
	OpClaim      = "claim"
)

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Ledger  domain.Ledger
	Deriver *authority.Deriver
	Token   domain.TokenProgram
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Deriver == nil {
		return errors.New("deriver is required")
	}
	if cfg.Deriver.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Token == nil {
		return errors.New("token program is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine é o faucet: registro de pools e protocolo de distribuição.
type Engine struct {
	log     *slog.Logger
	clock   clockwork.Clock
	ledger  domain.Ledger
	deriver *authority.Deriver
	token   domain.TokenProgram
	exec    Executor
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:     cfg.Logger,
		clock:   cfg.Clock,
		ledger:  cfg.Ledger,
		deriver: cfg.Deriver,
		token:   cfg.Token,
		exec:    Executor{Signer: cfg.Deriver, Token: cfg.Token},
	}, nil
}

type InitializeRequest struct {
	Asset         solana.PublicKey
	Vault         solana.PublicKey
	Administrator solana.PublicKey
	Amount        uint64
	Cooldown      int64
}

func (r InitializeRequest) validate() error {
	switch {
	case r.Asset.IsZero():
		return fmt.Errorf("%w: asset is required", domain.ErrInvalidArgument)
	case r.Vault.IsZero():
		return fmt.Errorf("%w: vault is required", domain.ErrInvalidArgument)
	case r.Administrator.IsZero():
		return fmt.Errorf("%w: administrator is required", domain.ErrInvalidArgument)
	case r.Amount == 0:
		return fmt.Errorf("%w: amount must be > 0", domain.ErrInvalidArgument)
	case r.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must be >= 0", domain.ErrInvalidArgument)
	}
	return nil
}

// Initialize cria o pool de Asset e entrega o controle do vault para a
// autoridade derivada. Depois disso o administrador não saca mais do vault.
func (e *Engine) Initialize(ctx context.Context, req InitializeRequest) (domain.Pool, error) {
	pool, err := e.initialize(ctx, req)
	metrics.PoolsInitializedTotal.WithLabelValues(domain.ErrorCode(err)).Inc()
	if err != nil {
		e.log.Warn("faucet: initialize rejected", "asset", req.Asset, "administrator", req.Administrator, "error", err)
		return domain.Pool{}, err
	}
	e.log.Info("faucet: pool initialized",
		"asset", pool.Asset, "vault", pool.Vault, "amount", pool.Amount, "cooldown", pool.Cooldown)
	return pool, nil
}

func (e *Engine) initialize(ctx context.Context, req InitializeRequest) (domain.Pool, error) {
	if err := req.validate(); err != nil {
		return domain.Pool{}, err
	}
	vaultAuthority, _, err := e.deriver.Derive(req.Asset)
	if err != nil {
		return domain.Pool{}, err
	}

	var pool domain.Pool
	err = e.ledger.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
		pool = domain.Pool{
			Asset:     req.Asset,
			Owner:     req.Administrator,
			Vault:     req.Vault,
			Amount:    req.Amount,
			Cooldown:  req.Cooldown,
			CreatedAt: e.clock.Now().Unix(),
		}
		if err := tx.CreatePool(ctx, pool); err != nil {
			return err
		}

		vault, err := tx.Account(ctx, req.Vault)
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}
		if !vault.Mint.Equals(req.Asset) {
			return fmt.Errorf("%w: vault holds %s, pool distributes %s", domain.ErrMintMismatch, vault.Mint, req.Asset)
		}
		return e.token.SetAuthority(ctx, tx, req.Vault, domain.SignerProof(req.Administrator), vaultAuthority)
	})
	if err != nil {
		return domain.Pool{}, err
	}
	return pool, nil
}

type ClaimRequest struct {
	Asset       solana.PublicKey
	Requester   solana.PublicKey
	Destination solana.PublicKey
}

// Receipt descreve um saque confirmado.
type Receipt struct {
	ID          string           `json:"id"`
	Asset       solana.PublicKey `json:"asset"`
	Requester   solana.PublicKey `json:"requester"`
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
	Timestamp   int64            `json:"timestamp"`
	First       bool             `json:"first"`
	// VaultBalance é o saldo do vault logo após o saque.
	VaultBalance uint64 `json:"vault_balance"`
}

type claimMode int

const (
	modeFirst claimMode = iota
	modeNext
	modeAuto
)

// ClaimFirst faz o primeiro saque de um requester: cria o registro de cooldown
// sem checar intervalo nenhum.
func (e *Engine) ClaimFirst(ctx context.Context, req ClaimRequest) (Receipt, error) {
	return e.claim(ctx, OpClaimFirst, modeFirst, req)
}

// ClaimNext exige que o cooldown do pool tenha passado desde o último saque.
func (e *Engine) ClaimNext(ctx context.Context, req ClaimRequest) (Receipt, error) {
	return e.claim(ctx, OpClaimNext, modeNext, req)
}

// Claim escolhe ClaimFirst ou ClaimNext conforme o registro existe, dentro da
// mesma transação.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (Receipt, error) {
	return e.claim(ctx, OpClaim, modeAuto, req)
}

func (e *Engine) claim(ctx context.Context, op string, mode claimMode, req ClaimRequest) (Receipt, error) {
	start := time.Now()
	rcpt, err := e.doClaim(ctx, mode, req)

	metrics.ClaimDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.ClaimsTotal.WithLabelValues(op, domain.ErrorCode(err)).Inc()
	if err != nil {
		e.log.Debug("faucet: claim rejected", "op", op, "asset", req.Asset, "requester", req.Requester, "error", err)
		return Receipt{}, err
	}

	metrics.DisbursedTotal.WithLabelValues(rcpt.Asset.String()).Add(float64(rcpt.Amount))
	e.log.Info("faucet: claim",
		"op", op, "id", rcpt.ID, "asset", rcpt.Asset, "requester", rcpt.Requester,
		"amount", rcpt.Amount, "first", rcpt.First, "vault_balance", rcpt.VaultBalance)
	return rcpt, nil
}

func (e *Engine) doClaim(ctx context.Context, mode claimMode, req ClaimRequest) (Receipt, error) {
	if req.Asset.IsZero() || req.Requester.IsZero() || req.Destination.IsZero() {
		return Receipt{}, fmt.Errorf("%w: asset, requester and destination are required", domain.ErrInvalidArgument)
	}
	slot, err := e.deriver.CooldownAddress(req.Asset, req.Requester)
	if err != nil {
		return Receipt{}, err
	}

	var rcpt Receipt
	err = e.ledger.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
		// Relógio lido uma vez por tentativa, dentro da transação.
		now := e.clock.Now().Unix()

		pool, err := tx.Pool(ctx, req.Asset)
		if err != nil {
			return err
		}

		rec, err := tx.Cooldown(ctx, slot)
		exists := err == nil
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}
		switch {
		case mode == modeFirst && exists:
			return fmt.Errorf("%w: use claim next", domain.ErrAlreadyClaimed)
		case mode == modeNext && !exists:
			return fmt.Errorf("%w: use claim first", domain.ErrRecordNotFound)
		}
		if exists {
			if availableAt := rec.AvailableAt(pool.Cooldown); now < availableAt {
				return &domain.RateLimitedError{
					AvailableAt: availableAt,
					RetryAfter:  time.Duration(availableAt-now) * time.Second,
				}
			}
		}

		dest, err := tx.Account(ctx, req.Destination)
		if err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		if !dest.Owner.Equals(req.Requester) {
			return fmt.Errorf("%w: %s is owned by %s", domain.ErrOwnerMismatch, dest.Address, dest.Owner)
		}

		if err := e.exec.Transfer(ctx, tx, pool, req.Destination); err != nil {
			return err
		}

		err = tx.PutCooldown(ctx, domain.CooldownRecord{
			Address:       slot,
			Asset:         e.deriver.RecordAsset(req.Asset),
			LastRecipient: req.Requester,
			LastTimestamp: now,
		})
		if err != nil {
			return err
		}

		vault, err := tx.Account(ctx, pool.Vault)
		if err != nil {
			return err
		}
		rcpt = Receipt{
			ID:           uuid.NewString(),
			Asset:        pool.Asset,
			Requester:    req.Requester,
			Destination:  req.Destination,
			Amount:       pool.Amount,
			Timestamp:    now,
			First:        !exists,
			VaultBalance: vault.Amount,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return rcpt, nil
}
