package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/kart-cart/pkg/httpmiddleware"
)

// HeaderAPIKey carries the storefront's key for the agent API.
const HeaderAPIKey = "X-API-Key"

// APIKeyAuth admits requests whose X-API-Key hashes, with HMAC-SHA256 under
// pepper, to one of the configured hex digests. Keys are compared in constant
// time. Paths outside /api/ are not guarded.
func APIKeyAuth(pepper []byte, hexHashes ...string) (httpmiddleware.Middleware, error) {
	hashes := make([][]byte, 0, len(hexHashes))
	for _, h := range hexHashes {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil {
			return nil, errors.Wrap(err, "decode API key hash")
		}
		if len(b) != sha256.Size {
			return nil, errors.Errorf("API key hash must be %d bytes, got %d", sha256.Size, len(b))
		}
		hashes = append(hashes, b)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !validKey(pepper, hashes, r.Header.Get(HeaderAPIKey)) {
				zctx.From(r.Context()).Warn("Rejected request without a valid API key")
				writeJSON(w, http.StatusUnauthorized, func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("code", func(e *jx.Encoder) { e.Str("unauthorized") })
						e.Field("message", func(e *jx.Encoder) { e.Str("missing or invalid API key") })
					})
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

// HashAPIKey returns the hex digest stored in configuration for key.
func HashAPIKey(pepper []byte, key string) string {
	return hex.EncodeToString(macOf(pepper, key))
}

func macOf(pepper []byte, key string) []byte {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

func validKey(pepper []byte, hashes [][]byte, key string) bool {
	if key == "" {
		return false
	}
	sum := macOf(pepper, key)
	ok := 0
	for _, h := range hashes {
		ok |= subtle.ConstantTimeCompare(sum, h)
	}
	return ok == 1
}
