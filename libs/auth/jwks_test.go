package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWKSClientResolvesKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	ctx := context.Background()
	client := NewJWKSClient(srv.URL, time.Minute)
	now := time.Now()
	client.now = func() time.Time { return now }
	pub, err := client.Get(ctx, "kid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Fatal("resolved key does not match")
	}
	if _, err := client.Get(ctx, "kid-1"); err != nil {
		t.Fatalf("cached Get failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single fetch, got %d", hits)
	}
	if _, err := client.Get(ctx, "unknown"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("unknown kid inside the refresh floor should not refetch, got %d fetches", hits)
	}

	now = now.Add(45 * time.Second)
	if _, err := client.Get(ctx, "unknown"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected an early refetch for an unknown kid, got %d fetches", hits)
	}
}

func TestJWKSClientKeepsStaleKeyWhenEndpointFails(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	up := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !up {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	ctx := context.Background()
	client := NewJWKSClient(srv.URL, time.Minute)
	now := time.Now()
	client.now = func() time.Time { return now }
	if _, err := client.Get(ctx, "kid-1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	up = false
	now = now.Add(2 * time.Minute)
	if _, err := client.Get(ctx, "kid-1"); err != nil {
		t.Fatalf("expected the stale key, got %v", err)
	}
	if _, err := client.Get(ctx, "kid-2"); err == nil || err == ErrKeyNotFound {
		t.Fatalf("expected the fetch error for an uncached kid, got %v", err)
	}
}
