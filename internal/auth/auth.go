package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vogiaan1904/pelotond/config"
	"github.com/vogiaan1904/pelotond/internal/models"
	pkgErrors "github.com/vogiaan1904/pelotond/pkg/errors"
	"github.com/vogiaan1904/pelotond/pkg/response"
)

var (
	ErrMissingToken             = errors.New("missing bearer token")
	ErrTokenInvalid             = errors.New("invalid token")
	ErrTokenUnexpectedSignature = errors.New("unexpected signing method")

	errMissingToken = pkgErrors.NewHTTPError(http.StatusUnauthorized, 401, "Missing bearer token")
	errTokenInvalid = pkgErrors.NewHTTPError(http.StatusUnauthorized, 401, "Invalid token")
)

// Identity is what a verified access token vouches for.
type Identity struct {
	ParticipantID models.ParticipantID
	RelayKey      []byte
	ExpiresAt     time.Time
}

type claims struct {
	RelayKey string `json:"relay_key,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	conf config.JWTConfig
	now  func() time.Time
}

func NewAuthenticator(conf config.JWTConfig) *Authenticator {
	return &Authenticator{conf: conf, now: time.Now}
}

// Issue signs an access token for id carrying its relay key.
func (a *Authenticator) Issue(id models.ParticipantID, relayKey []byte) (string, error) {
	now := a.now()
	c := claims{
		RelayKey: base64.StdEncoding.EncodeToString(relayKey),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			Issuer:    a.conf.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.conf.Expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	s, err := token.SignedString([]byte(a.conf.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

func (a *Authenticator) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenUnexpectedSignature
		}
		return []byte(a.conf.Secret), nil
	}, jwt.WithIssuer(a.conf.Issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrTokenInvalid
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}
	key, err := base64.StdEncoding.DecodeString(c.RelayKey)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad relay key", ErrTokenInvalid)
	}

	ident := Identity{ParticipantID: models.ParticipantID(id), RelayKey: key}
	if c.ExpiresAt != nil {
		ident.ExpiresAt = c.ExpiresAt.Time
	}
	return ident, nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid bearer token and stores the
// identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			response.Error(w, errMissingToken)
			return
		}
		id, err := a.Verify(token)
		if err != nil {
			response.Error(w, errTokenInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
