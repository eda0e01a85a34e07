package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// ErrUnknownKey ключ с таким kid не найден в JWKS провайдера.
var ErrUnknownKey = errors.New("signing key not found")

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// keySet кеширует публичные ключи провайдера. Неизвестный kid вызывает
// повторную загрузку, но не чаще одного раза за refresh.
type keySet struct {
	url     string
	client  *http.Client
	refresh time.Duration
	now     func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client, refresh time.Duration) *keySet {
	return &keySet{
		url:     url,
		client:  client,
		refresh: refresh,
		now:     time.Now,
		keys:    map[string]*rsa.PublicKey{},
	}
}

func (ks *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	const op = "identity.keySet.key"

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if k, ok := ks.keys[kid]; ok {
		return k, nil
	}
	if !ks.fetchedAt.IsZero() && ks.now().Sub(ks.fetchedAt) < ks.refresh {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownKey, kid)
	}

	keys, err := ks.fetch(ctx)
	ks.fetchedAt = ks.now()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ks.keys = keys

	if k, ok := ks.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownKey, kid)
}

func (ks *keySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected jwks status: " + resp.Status)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(exp.Int64()),
	}, nil
}
