package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newHSManager(tb testing.TB) *Manager {
	tb.Helper()
	m, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret-test-secret-test-secret"),
		Issuer:        "gosession-test",
	})
	if err != nil {
		tb.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cases := map[string]Config{
		"zero access ttl": {RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		"zero refresh":    {AccessTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		"hs256 no key":    {AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256},
		"unknown method":  {AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: "rs512", PrivateKey: []byte("k")},
		"bad leeway":      {AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
		"ed25519 no keys": {AccessTTL: time.Hour, RefreshTTL: time.Hour, SigningMethod: MethodEd25519},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestIssuedTokenDecodesToSubject(t *testing.T) {
	m := newHSManager(t)
	tok, err := m.Issue(KindAccess, Subject{UserID: "42", Username: "alice", FullName: "Alice A", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Decode(tok)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.SubjectID != "42" || claims.DisplayName != "alice" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	m := newHSManager(t)
	refresh, err := m.Issue(KindRefresh, Subject{UserID: "1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(refresh, KindAccess); err == nil {
		t.Fatal("expected refresh token to be rejected as access token")
	}
	if _, err := m.Verify(refresh, KindRefresh); err != nil {
		t.Fatalf("expected refresh token to verify, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	m := newHSManager(t)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	claims := IssuedClaims{
		TokenType:        string(KindAccess),
		UserID:           "1",
		RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token, KindAccess); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newHSManager(t)
	tok, err := m.IssueWithTTL(KindAccess, Subject{UserID: "1"}, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, KindAccess); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue(KindAccess, Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, KindAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
}
