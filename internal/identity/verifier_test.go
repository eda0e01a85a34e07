package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictor-portal/internal/config"
)

type jwksServer struct {
	*httptest.Server
	hits atomic.Int32
	keys atomic.Value // []jwk
}

func newJWKSServer(t *testing.T, keys ...jwk) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.keys.Store(keys)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": s.keys.Load()})
	}))
	t.Cleanup(s.Close)
	return s
}

func publicJWK(kid string, pub *rsa.PublicKey) jwk {
	return jwk{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func validClaims() Claims {
	return Claims{
		Email:      "jane@example.com",
		GivenName:  "Jane",
		FamilyName: "Doe",
		Picture:    "https://img.example.com/jane.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "kp_123",
			Issuer:    "https://auth.example.com",
			Audience:  jwt.ClaimStrings{"portal"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, c Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifier_RS256(t *testing.T) {
	key := newRSAKey(t)
	srv := newJWKSServer(t, publicJWK("k1", &key.PublicKey))

	v, err := NewVerifier(config.Identity{
		JWKSURL:     srv.URL,
		Issuer:      "https://auth.example.com",
		Audience:    "portal",
		JWKSRefresh: time.Minute,
	}, srv.Client())
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), signRS256(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "kp_123", id.ID)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.Equal(t, "Jane Doe", id.DisplayName())

	// ключ закеширован
	_, err = v.Verify(context.Background(), signRS256(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestVerifier_RS256_Rejects(t *testing.T) {
	key := newRSAKey(t)
	other := newRSAKey(t)
	srv := newJWKSServer(t, publicJWK("k1", &key.PublicKey))

	v, err := NewVerifier(config.Identity{
		JWKSURL:     srv.URL,
		Issuer:      "https://auth.example.com",
		Audience:    "portal",
		JWKSRefresh: time.Minute,
	}, srv.Client())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{name: "garbage", token: func() string { return "not-a-jwt" }},
		{name: "wrong signing key", token: func() string { return signRS256(t, other, "k1", validClaims()) }},
		{name: "expired", token: func() string {
			c := validClaims()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			return signRS256(t, key, "k1", c)
		}},
		{name: "no expiry", token: func() string {
			c := validClaims()
			c.ExpiresAt = nil
			return signRS256(t, key, "k1", c)
		}},
		{name: "wrong issuer", token: func() string {
			c := validClaims()
			c.Issuer = "https://evil.example.com"
			return signRS256(t, key, "k1", c)
		}},
		{name: "wrong audience", token: func() string {
			c := validClaims()
			c.Audience = jwt.ClaimStrings{"other"}
			return signRS256(t, key, "k1", c)
		}},
		{name: "missing email", token: func() string {
			c := validClaims()
			c.Email = ""
			return signRS256(t, key, "k1", c)
		}},
		{name: "hs256 not accepted with jwks", token: func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("secret"))
			require.NoError(t, err)
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token())
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifier_UnknownKidRefetchIsThrottled(t *testing.T) {
	oldKey := newRSAKey(t)
	newKey := newRSAKey(t)
	srv := newJWKSServer(t, publicJWK("old", &oldKey.PublicKey))

	v, err := NewVerifier(config.Identity{JWKSURL: srv.URL, JWKSRefresh: time.Minute}, srv.Client())
	require.NoError(t, err)
	now := time.Now()
	v.keys.now = func() time.Time { return now }

	_, err = v.Verify(context.Background(), signRS256(t, oldKey, "old", validClaims()))
	require.NoError(t, err)
	require.Equal(t, int32(1), srv.hits.Load())

	// провайдер сменил ключ
	srv.keys.Store([]jwk{publicJWK("new", &newKey.PublicKey)})

	// в пределах интервала повторной загрузки нет
	_, err = v.Verify(context.Background(), signRS256(t, newKey, "new", validClaims()))
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, int32(1), srv.hits.Load())

	now = now.Add(2 * time.Minute)
	_, err = v.Verify(context.Background(), signRS256(t, newKey, "new", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestVerifier_HS256(t *testing.T) {
	v, err := NewVerifier(config.Identity{HMACSecret: "dev-secret"}, nil)
	require.NoError(t, err)

	c := validClaims()
	good, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("dev-secret"))
	require.NoError(t, err)
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("other"))
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "kp_123", id.ID)

	_, err = v.Verify(context.Background(), bad)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifier_NoKeyMaterial(t *testing.T) {
	_, err := NewVerifier(config.Identity{}, nil)
	require.Error(t, err)
}
