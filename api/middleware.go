package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/lead-push/config"
)

const servicePrefix = "service:"

// tokens are cached briefly so an expired JWT stops working soon after expiry
const tokenCacheTTL = 5 * time.Minute

type principalKey struct{}

// Principal is who a request acts for. Services may act for any user.
type Principal struct {
	UserID  string
	Service bool
}

// CanActFor reports whether p may act on behalf of userID
func (p Principal) CanActFor(userID string) bool {
	return p.Service || (p.UserID != "" && p.UserID == userID)
}

// Guard authenticates requests. End users send a bearer JWT issued by the
// lead app (subject is the user id); backend services use basic auth.
type Guard struct {
	authenticator auth.Authenticator
	jwtSecret     []byte
	serviceID     string
	serviceHash   []byte
}

// NewGuard sets up the go-guardian strategies from conf
func NewGuard(conf *config.Config) *Guard {
	g := &Guard{
		jwtSecret:   []byte(conf.JWTSecret),
		serviceID:   conf.ServiceClientID,
		serviceHash: []byte(conf.ServiceSecretHash),
	}

	cache := store.NewFIFO(context.Background(), tokenCacheTTL)
	g.authenticator = auth.New()
	g.authenticator.EnableStrategy(basic.StrategyKey, basic.New(g.validateService, cache))
	g.authenticator.EnableStrategy(bearer.CachedStrategyKey, bearer.New(g.validateToken, cache))
	return g
}

// Middleware rejects unauthenticated requests and stores the Principal in the
// request context
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := g.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugf("User %s Authenticated\n", user.UserName())
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principalFrom(user))))
	})
}

// VerifyToken checks a bearer token outside the middleware, e.g. a websocket
// token passed as a query parameter
func (g *Guard) VerifyToken(ctx context.Context, token string) (Principal, error) {
	info, err := g.validateToken(ctx, nil, token)
	if err != nil {
		return Principal{}, err
	}
	return principalFrom(info), nil
}

func (g *Guard) validateToken(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	if len(g.jwtSecret) == 0 {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return g.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token, %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return auth.NewDefaultUser(claims.Subject, claims.Subject, nil, nil), nil
}

func (g *Guard) validateService(_ context.Context, _ *http.Request, clientID, secret string) (auth.Info, error) {
	if g.serviceID == "" || len(g.serviceHash) == 0 {
		return nil, fmt.Errorf("service credentials are not configured")
	}
	if subtle.ConstantTimeCompare([]byte(clientID), []byte(g.serviceID)) != 1 {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(g.serviceHash, []byte(secret)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return auth.NewDefaultUser(servicePrefix+clientID, clientID, nil, nil), nil
}

func principalFrom(info auth.Info) Principal {
	if strings.HasPrefix(info.UserName(), servicePrefix) {
		return Principal{UserID: info.ID(), Service: true}
	}
	return Principal{UserID: info.ID()}
}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the Principal stored by the middleware
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
