package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faucet-gateway/faucet"
	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/authority"
	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/faucet/token"
	"faucet-gateway/internal/logger"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"
)

// devnet sobe o faucet em memória, já com um pool inicializado e algumas
// carteiras de teste com token account aberta. Útil para brincar com a API
// sem Redis/Postgres.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	listenFlag := flag.String("listen", ":8081", "listen address")
	supplyFlag := flag.Uint64("supply", 1_000_000, "tokens minted into the vault")
	amountFlag := flag.Uint64("amount", 100, "tokens per claim")
	cooldownFlag := flag.Duration("cooldown", time.Hour, "interval between claims of the same requester")
	walletsFlag := flag.Int("wallets", 3, "number of funded-destination test wallets to create")
	scopeFlag := flag.String("scope", "pool", "cooldown scope (pool or requester)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	log := logger.New(logger.Options{Verbose: *verboseFlag})

	scope, err := authority.ParseScope(*scopeFlag)
	if err != nil {
		return err
	}

	programID, err := newKey()
	if err != nil {
		return err
	}
	mint, err := newKey()
	if err != nil {
		return err
	}
	vault, err := newKey()
	if err != nil {
		return err
	}
	admin, err := solana.NewRandomPrivateKey()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledger := infra.NewMemoryLedger()
	tok := token.New()

	engine, err := application.NewEngine(application.Config{
		Logger:  log,
		Ledger:  ledger,
		Deriver: authority.New(programID, scope),
		Token:   tok,
	})
	if err != nil {
		return err
	}

	if err := openAccount(ctx, ledger, tok, vault, mint, admin.PublicKey(), *supplyFlag); err != nil {
		return fmt.Errorf("failed to fund vault: %w", err)
	}
	_, err = engine.Initialize(ctx, application.InitializeRequest{
		Asset:         mint,
		Vault:         vault,
		Administrator: admin.PublicKey(),
		Amount:        *amountFlag,
		Cooldown:      int64(cooldownFlag.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pool: %w", err)
	}

	for i := range *walletsFlag {
		wallet, err := solana.NewRandomPrivateKey()
		if err != nil {
			return err
		}
		dest, err := newKey()
		if err != nil {
			return err
		}
		if err := openAccount(ctx, ledger, tok, dest, mint, wallet.PublicKey(), 0); err != nil {
			return err
		}
		log.Info("devnet wallet", "n", i, "requester", wallet.PublicKey(), "private_key", wallet.String(), "destination", dest)
	}

	h, err := faucet.NewHandler(faucet.Config{
		Logger:      log,
		Engine:      engine,
		Stats:       infra.NewMemoryStatsStore(infra.WithTrackAssets(true)),
		Concurrency: faucet.ConcurrencyOptions{Max: 50},
		Throttle: &faucet.ThrottleOptions{
			Store:               infra.NewStore(5, 10),
			TrustXForwardedFor:  true,
			AddRateLimitHeaders: true,
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *listenFlag,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("devnet faucet listening",
		"addr", *listenFlag, "program_id", programID, "asset", mint, "vault", vault,
		"administrator", admin.PublicKey(), "amount", *amountFlag, "cooldown", *cooldownFlag)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newKey() (solana.PublicKey, error) {
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return k.PublicKey(), nil
}

func openAccount(ctx context.Context, ledger domain.Ledger, tok *token.Program, addr, mint, owner solana.PublicKey, amount uint64) error {
	return ledger.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tok.InitializeAccount(ctx, tx, addr, mint, owner); err != nil {
			return err
		}
		return tok.MintTo(ctx, tx, addr, amount)
	})
}
