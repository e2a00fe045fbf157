package faucet

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// SignatureHeader carrega a assinatura ed25519 (base58) do corpo cru do
// request, feita pela chave que age na operação (administrador ou requester).
const SignatureHeader = "X-Faucet-Signature"

var errBadSignature = errors.New("invalid signature")

func verifySignature(r *http.Request, body []byte, signer solana.PublicKey) error {
	raw := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if raw == "" {
		return fmt.Errorf("%w: missing %s header", errBadSignature, SignatureHeader)
	}
	sig, err := solana.SignatureFromBase58(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadSignature, err)
	}
	if signer.IsZero() || !signer.Verify(body, sig) {
		return fmt.Errorf("%w: body not signed by %s", errBadSignature, signer)
	}
	return nil
}
