package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// keySet caches the issuer's published RSA public keys, keyed by kid.
// The cache is shared across requests; refreshes are serialized.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newKeySet(url string, ttl, fetchTimeout time.Duration) *keySet {
	return &keySet{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Key resolves a verification key by kid, refreshing the cache when it is
// stale or the kid is unknown. A fetch failure with no cached keys yields
// ErrKeySetUnavailable; a stale cache is kept as a fallback.
func (ks *keySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	key, ok := ks.keys[kid]
	fresh := time.Since(ks.fetched) < ks.ttl
	ks.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := ks.refresh(ctx, kid); err != nil {
		ks.mu.RLock()
		key, ok = ks.keys[kid]
		ks.mu.RUnlock()
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}

	ks.mu.RLock()
	key, ok = ks.keys[kid]
	ks.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no key for kid %q", ErrInvalidSignature, kid)
	}
	return key, nil
}

// refresh refetches the key set. wantKid is the kid that triggered the
// refresh (empty for a plain warm/expiry refresh): a fresh cache only
// short-circuits the fetch when it already holds that kid, so an unknown
// kid always gets one refetch even inside the TTL. This covers the issuer
// rotating a new key in without waiting for the cache to expire.
func (ks *keySet) refresh(ctx context.Context, wantKid string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	// another caller may have refreshed while we waited on the lock
	if time.Since(ks.fetched) < ks.ttl && len(ks.keys) > 0 {
		if wantKid == "" {
			return nil
		}
		if _, ok := ks.keys[wantKid]; ok {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("no usable RSA keys in key set")
	}

	ks.keys = keys
	ks.fetched = time.Now()
	return nil
}

func rsaKeyFromJWK(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
