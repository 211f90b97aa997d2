package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/nftmart/internal/crypto"
	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Headers carried by a signed request.
const (
	HeaderAccount   = "X-Account"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
)

const (
	defaultSignatureTTL = 5 * time.Minute
	maxSignedBody       = 1 << 20
	maxNonceLen         = 64
)

type callerKey struct{}

// WithCaller returns a copy of ctx carrying the authenticated account.
func WithCaller(ctx context.Context, who domain.AccountID) context.Context {
	return context.WithValue(ctx, callerKey{}, who)
}

// Caller returns the account that signed the request, if any.
func Caller(ctx context.Context) (domain.AccountID, bool) {
	who, ok := ctx.Value(callerKey{}).(domain.AccountID)
	return who, ok
}

// SignatureConfig controls SignatureAuth.
type SignatureConfig struct {
	// TTL bounds the distance between X-Timestamp and the server clock.
	TTL time.Duration
	// Guard rejects reused nonces. Nil disables replay protection.
	Guard  domain.ReplayGuard
	Now    func() time.Time
	Logger *slog.Logger
}

// SignatureAuth authenticates every mutating request. The client signs
// crypto.RequestMessage over the method, path, timestamp, nonce and body with
// the key of X-Account; the recovered address becomes the caller. Safe
// methods pass through unauthenticated.
func SignatureAuth(cfg SignatureConfig) func(http.Handler) http.Handler {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultSignatureTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			account := strings.TrimSpace(r.Header.Get(HeaderAccount))
			if !common.IsHexAddress(account) {
				writeUnauthorized(w, "missing or invalid "+HeaderAccount)
				return
			}
			ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				writeUnauthorized(w, "missing or invalid "+HeaderTimestamp)
				return
			}
			if skew := cfg.Now().Sub(time.Unix(ts, 0)); skew > cfg.TTL || skew < -cfg.TTL {
				writeUnauthorized(w, "request timestamp outside allowed window")
				return
			}
			nonce := r.Header.Get(HeaderNonce)
			// The signed message is colon-delimited.
			if nonce == "" || len(nonce) > maxNonceLen || strings.Contains(nonce, ":") {
				writeUnauthorized(w, "missing or invalid "+HeaderNonce)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBody))
			if err != nil {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			msg := crypto.RequestMessage(r.Method, r.URL.Path, ts, nonce, body)
			signer, err := crypto.RecoverMessage(msg, r.Header.Get(HeaderSignature))
			if err != nil || signer != common.HexToAddress(account) {
				writeUnauthorized(w, "invalid signature")
				return
			}

			if cfg.Guard != nil {
				fresh, err := cfg.Guard.Claim(r.Context(), signer, nonce, 2*cfg.TTL)
				if err != nil {
					cfg.Logger.ErrorContext(r.Context(), "auth: replay guard",
						slog.String("account", signer.Hex()),
						slog.String("error", err.Error()),
					)
					writeJSONError(w, http.StatusServiceUnavailable, "replay protection unavailable")
					return
				}
				if !fresh {
					writeUnauthorized(w, "nonce already used")
					return
				}
			}

			cfg.Logger.DebugContext(r.Context(), "auth: request verified",
				slog.String("request_id", RequestID(r.Context())),
				slog.String("account", signer.Hex()),
			)
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), signer)))
		})
	}
}

// RequireAccount wraps next so that it only serves the given account.
func RequireAccount(who domain.AccountID, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := Caller(r.Context())
		if !ok {
			writeUnauthorized(w, "signed request required")
			return
		}
		if caller != who {
			writeJSONError(w, http.StatusForbidden, "operator only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":` + strconv.Quote(msg) + `}`))
}
