// Package auth verifies bearer tokens and resolves them to a tenant principal.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Principal is the identity a verified token resolves to. Role is one of
// admin, supervisor, worker; WorkerID is set when the token belongs to a
// floor worker.
type Principal struct {
	Tenant   string
	Role     string
	WorkerID string
}

// Verifier validates bearer tokens. Modes:
//
//	dev   tokens are "tenant:role" or "tenant:role:workerId", unverified
//	hmac  HS256 JWTs signed with AUTH_HMAC_SECRET
//	jwks  RS256 JWTs against keys fetched from AUTH_JWKS_URL
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string
	WorkerClaim string

	http      *http.Client
	mu        sync.RWMutex
	keys      keySet
	lastFetch time.Time
	cacheTTL  time.Duration
}

type keySet struct {
	Keys []jsonKey `json:"keys"`
}

type jsonKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(os.Getenv("AUTH_HMAC_SECRET")),
		JWKSURL:     os.Getenv("AUTH_JWKS_URL"),
		TenantClaim: envOr("AUTH_TENANT_CLAIM", "tenant"),
		RoleClaim:   envOr("AUTH_ROLE_CLAIM", "role"),
		WorkerClaim: envOr("AUTH_WORKER_CLAIM", "sub"),
		http:        &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    10 * time.Minute,
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// Verify resolves token to a Principal or fails.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		return devPrincipal(token)
	}
	header, claims, signingInput, sig, err := splitCompact(token)
	if err != nil {
		return Principal{}, err
	}
	if err := v.checkSignature(header, signingInput, sig); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	tenant, _ := claims[v.TenantClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("missing %q claim", v.TenantClaim)
	}
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "worker"
	}
	worker, _ := claims[v.WorkerClaim].(string)
	return Principal{Tenant: tenant, Role: strings.ToLower(role), WorkerID: worker}, nil
}

func devPrincipal(token string) (Principal, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Principal{}, errors.New("invalid dev token; expected tenant:role")
	}
	p := Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}
	if len(parts) > 2 {
		p.WorkerID = parts[2]
	}
	return p, nil
}

// splitCompact parses the three-segment JWT form and returns the decoded
// header and claims, the signing input, and the raw signature.
func splitCompact(token string) (header, claims map[string]any, signingInput, sig []byte, err error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return nil, nil, nil, nil, errors.New("invalid JWT")
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segs[0])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(segs[1])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sig, err = base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, nil, nil, nil, err
	}
	return header, claims, []byte(segs[0] + "." + segs[1]), sig, nil
}

func (v *Verifier) checkSignature(header map[string]any, signingInput, sig []byte) error {
	alg, _ := header["alg"].(string)
	switch v.Mode {
	case "hmac":
		if alg != "HS256" {
			return errors.New("unsupported alg for hmac")
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return errors.New("bad signature")
		}
		return nil
	case "jwks":
		if alg != "RS256" {
			return errors.New("unsupported alg for jwks")
		}
		kid, _ := header["kid"].(string)
		pub, err := v.rsaKey(kid)
		if err != nil {
			return err
		}
		h := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
			return errors.New("bad signature")
		}
		return nil
	default:
		return errors.New("unsupported auth mode")
	}
}

func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.keys
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.keys
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, err
		}
		// exponent is big-endian, typically 0x010001
		e := 0
		for _, b := range eBytes {
			e = e<<8 | int(b)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
	}
	return nil, errors.New("kid not found in JWKS")
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("AUTH_JWKS_URL not set")
	}
	req, _ := http.NewRequest(http.MethodGet, v.JWKSURL, nil)
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	var ks keySet
	if err := json.NewDecoder(resp.Body).Decode(&ks); err != nil {
		return err
	}
	v.mu.Lock()
	v.keys = ks
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
