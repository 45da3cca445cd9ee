package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HeaderAPIKey carries a raw API key as an alternative to a Bearer token.
const HeaderAPIKey = "X-API-Key"

// publicPaths never require a key.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type keyring [][sha256.Size]byte

func newKeyring(keys []string) keyring {
	var ring keyring
	for _, k := range keys {
		if k != "" {
			ring = append(ring, sha256.Sum256([]byte(k)))
		}
	}
	return ring
}

// contains compares digests in constant time and checks every key.
func (k keyring) contains(token string) bool {
	digest := sha256.Sum256([]byte(token))
	found := 0
	for i := range k {
		found |= subtle.ConstantTimeCompare(digest[:], k[i][:])
	}
	return found == 1
}

// credential extracts the key from the X-API-Key header or an Authorization
// Bearer token. The scheme name is case-insensitive.
func credential(r *http.Request) (token, problem string) {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key, ""
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing api key"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(token), ""
}

// APIKeyAuth rejects requests without one of apiKeys.
// Empty keys are ignored; with no keys left, authentication is off.
func APIKeyAuth(apiKeys []string, logger *zap.Logger) func(http.Handler) http.Handler {
	ring := newKeyring(apiKeys)
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if len(ring) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token, problem := credential(r)
			if problem == "" && !ring.contains(token) {
				problem = "invalid api key"
			}
			if problem != "" {
				logger.Debug("Request rejected",
					zap.String("path", r.URL.Path),
					zap.String("reason", problem),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
