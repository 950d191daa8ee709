package middleware

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/angelmondragon/personacraft-backend/api/responses"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/redis"
	"github.com/angelmondragon/personacraft-backend/pkg/stackauth"
)

const accessTokenHeader = "x-stack-access-token"

type identityResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*stackauth.User, error)
}

type identityCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IdentityKey(fingerprint string) string
}

// AuthOptions configures identity resolution.
type AuthOptions struct {
	Resolver identityResolver
	Cache    identityCache
	// CacheTTL caps how long a resolved identity is reused. Zero disables caching.
	CacheTTL time.Duration
	Now      func() time.Time
}

// Auth resolves the caller's access token into an identity and stores it on
// the request context. Resolved identities are cached until the token expires.
func Auth(opts AuthOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := accessToken(r)
			if token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing access token"))
				return
			}
			if opts.Resolver == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity resolver not configured"))
				return
			}

			var cacheKey string
			if opts.Cache != nil && opts.CacheTTL > 0 {
				cacheKey = opts.Cache.IdentityKey(fingerprint(token))
			}

			identity, cached := lookupCachedIdentity(ctx, opts.Cache, cacheKey, logg)
			if !cached {
				user, err := opts.Resolver.CurrentUser(ctx, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, mapResolveError(err))
					return
				}
				identity = users.Identity{
					ID:              user.ID,
					Email:           user.PrimaryEmail,
					DisplayName:     user.DisplayName,
					ProfileImageURL: user.ProfileImageURL,
				}
				storeCachedIdentity(ctx, opts.Cache, cacheKey, identity, cacheTTL(token, opts.CacheTTL, now()), logg)
			}

			if strings.TrimSpace(identity.ID) == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token"))
				return
			}

			ctx = WithIdentity(ctx, identity)
			if logg != nil {
				ctx = logg.WithUserID(ctx, identity.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(accessTokenHeader)); token != "" {
		return token
	}
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

func mapResolveError(err error) error {
	switch {
	case errors.Is(err, stackauth.ErrTimeout):
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "identity lookup timed out")
	case errors.Is(err, stackauth.ErrUnauthorized):
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity lookup failed")
	}
}

func fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// cacheTTL is the time left before the token's exp claim, capped by limit.
// Tokens that cannot be parsed are cached for limit; expired tokens not at all.
func cacheTTL(token string, limit time.Duration, now time.Time) time.Duration {
	if limit <= 0 {
		return 0
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return limit
	}
	remaining := claims.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining < limit {
		return remaining
	}
	return limit
}

func lookupCachedIdentity(ctx context.Context, cache identityCache, key string, logg *logger.Logger) (users.Identity, bool) {
	if cache == nil || key == "" {
		return users.Identity{}, false
	}
	raw, err := cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) && logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth.identity_cache_read_failed")
		}
		return users.Identity{}, false
	}
	var identity users.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.ID == "" {
		return users.Identity{}, false
	}
	return identity, true
}

func storeCachedIdentity(ctx context.Context, cache identityCache, key string, identity users.Identity, ttl time.Duration, logg *logger.Logger) {
	if cache == nil || key == "" || ttl <= 0 || identity.ID == "" {
		return
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, payload, ttl); err != nil && logg != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth.identity_cache_write_failed")
	}
}
