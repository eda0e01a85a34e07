// Package identity проверяет bearer-токены провайдера идентификации и
// превращает их в models.Identity.
//
// В проде ключи RS256 берутся из JWKS провайдера. Для локальной разработки
// можно задать общий секрет HS256.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

// ErrInvalidToken токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// Claims поля токена, которые использует портал.
type Claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	jwt.RegisteredClaims
}

// Verifier проверяет подпись и стандартные поля токена.
type Verifier struct {
	keys    *keySet
	secret  []byte
	options []jwt.ParserOption
}

// NewVerifier создаёт Verifier по настройкам cfg. JWKS имеет приоритет над секретом.
func NewVerifier(cfg config.Identity, client *http.Client) (*Verifier, error) {
	const op = "identity.NewVerifier"

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	v := &Verifier{}
	switch {
	case cfg.JWKSURL != "":
		v.keys = newKeySet(cfg.JWKSURL, client, cfg.JWKSRefresh)
		v.options = append(v.options, jwt.WithValidMethods([]string{"RS256"}))
	case cfg.HMACSecret != "":
		v.secret = []byte(cfg.HMACSecret)
		v.options = append(v.options, jwt.WithValidMethods([]string{"HS256"}))
	default:
		return nil, fmt.Errorf("%s: neither jwks_url nor hmac_secret is set", op)
	}

	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	v.options = append(v.options, jwt.WithExpirationRequired(), jwt.WithLeeway(30*time.Second))
	return v, nil
}

// Verify разбирает токен и возвращает личность его владельца.
func (v *Verifier) Verify(ctx context.Context, raw string) (models.Identity, error) {
	const op = "identity.Verify"

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if v.keys == nil {
			return v.secret, nil
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid not found in token header")
		}
		return v.keys.key(ctx, kid)
	}, v.options...)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return models.Identity{}, fmt.Errorf("%s: %w: sub and email are required", op, ErrInvalidToken)
	}

	return models.Identity{
		ID:         claims.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Picture:    claims.Picture,
	}, nil
}
