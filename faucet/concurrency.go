package faucet

import (
	"net/http"
	"time"

	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/faucet/metrics"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita os saques simultâneos que chegam ao ledger.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.Admission{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				metrics.ThrottledTotal.WithLabelValues("concurrency").Inc()
				writeJSON(w, opts.RejectStatus, errorBody{
					Error:   "busy",
					Message: "too many concurrent claims",
				})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
