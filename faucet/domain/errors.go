package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyInitialized  = errors.New("pool already initialized")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrRateLimited         = errors.New("wait for a while")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDerivationExhausted = errors.New("authority derivation exhausted")

	ErrPoolNotFound    = errors.New("pool not found")
	ErrRecordNotFound  = errors.New("cooldown record not found")
	ErrAccountNotFound = errors.New("token account not found")
	ErrAccountExists   = errors.New("token account already exists")
	ErrOwnerMismatch   = errors.New("destination owner mismatch")
	ErrMintMismatch    = errors.New("mint mismatch")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict indica que outra transação alterou os registros lidos.
	// Só os ledgers retornam isso; a operação pode ser reexecutada do zero.
	ErrConflict = errors.New("ledger conflict")
)

// RateLimitedError é o detalhe de um ErrRateLimited: quando o próximo saque
// fica disponível. Mesmo papel do Decision.RetryAfter do rate limit HTTP.
type RateLimitedError struct {
	AvailableAt int64
	RetryAfter  time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: available at %d (retry after %s)", ErrRateLimited, e.AvailableAt, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAlreadyClaimed, "already_claimed"},
	{ErrRateLimited, "rate_limited"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrDerivationExhausted, "derivation_exhausted"},
	{ErrPoolNotFound, "pool_not_found"},
	{ErrRecordNotFound, "record_not_found"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountExists, "account_exists"},
	{ErrOwnerMismatch, "owner_mismatch"},
	{ErrMintMismatch, "mint_mismatch"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrConflict, "conflict"},
}

// ErrorCode devolve um código curto e estável para err, usado em respostas,
// métricas e estatísticas. nil vira "ok"; erros desconhecidos viram "internal".
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
