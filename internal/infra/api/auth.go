package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"subscription-api/internal/config"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/infra/logging"
)

// Claims is the access token payload issued by the auth service.
type Claims struct {
	Rights []string `json:"rights,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret   []byte
	audience string
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{secret: []byte(cfg.AccessTokenSecret), audience: cfg.AccessTokenAudience}
}

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Issue signs a token for userID. It backs the dev token command and tests.
func (a *Authenticator) Issue(userID string, rights []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Rights: rights,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates tok and returns the caller it identifies.
func (a *Authenticator) Parse(tok string) (*model.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errInvalidToken
	}
	if claims.Subject == "" {
		return nil, errInvalidToken
	}
	return &model.Principal{UserID: claims.Subject, Rights: claims.Rights}, nil
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *Authenticator) ParseFromRequest(r *http.Request) (*model.Principal, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, errMissingToken
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errInvalidToken
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

// Middleware attaches the caller to the request context. Anonymous requests
// pass through; a present but invalid token is rejected with 401.
func (a *Authenticator) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.ParseFromRequest(r)
			switch {
			case errors.Is(err, errMissingToken):
				next.ServeHTTP(w, r)
			case err != nil:
				WriteDetail(w, http.StatusUnauthorized, "Unauthorized")
			default:
				ctx := WithPrincipal(r.Context(), p)
				ctx = logging.WithUserID(ctx, p.UserID)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey{}).(*model.Principal)
	return p
}

// WriteDetail writes the {"detail": ...} error body.
func WriteDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Detail string `json:"detail"`
	}{detail})
}

// Authorize returns the caller when it holds at least one of rights.
// With no rights any authenticated caller passes. On failure it writes
// 401 or 403 and returns false.
func Authorize(w http.ResponseWriter, r *http.Request, rights ...string) (*model.Principal, bool) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		WriteDetail(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	if len(rights) == 0 {
		return p, true
	}
	for _, right := range rights {
		if p.Has(right) {
			return p, true
		}
	}
	WriteDetail(w, http.StatusForbidden, "Forbidden")
	return nil, false
}
