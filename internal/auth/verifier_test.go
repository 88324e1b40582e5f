package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"
)

func TestDevTokens(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	p, err := v.Verify("t_acme:Supervisor:w-9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "t_acme" || p.Role != "supervisor" || p.WorkerID != "w-9" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if _, err := v.Verify("justatenant"); err == nil {
		t.Fatalf("expected error for tokens without a role segment")
	}
}

func signHS256(t *testing.T, secret []byte, claims string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(claims))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(header + "." + payload))
	return header + "." + payload + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestHMACVerify(t *testing.T) {
	secret := []byte("topsecret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, TenantClaim: "tenant", RoleClaim: "role", WorkerClaim: "sub"}

	tok := signHS256(t, secret, `{"tenant":"t_acme","role":"ADMIN","sub":"w-1"}`)
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Tenant != "t_acme" || p.Role != "admin" || p.WorkerID != "w-1" {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := v.Verify(signHS256(t, []byte("wrong"), `{"tenant":"t_acme"}`)); err == nil {
		t.Fatalf("expected bad signature error")
	}
	if _, err := v.Verify(signHS256(t, secret, `{"role":"admin"}`)); err == nil {
		t.Fatalf("expected missing tenant error")
	}
}

func TestHMACRejectsExpired(t *testing.T) {
	secret := []byte("topsecret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, TenantClaim: "tenant", RoleClaim: "role", WorkerClaim: "sub"}
	past := time.Now().Add(-time.Hour).Unix()
	tok := signHS256(t, secret, fmt.Sprintf(`{"tenant":"t_acme","role":"admin","exp":%d}`, past))
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("expected expired token error")
	}
}
