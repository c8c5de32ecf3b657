package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"testing"
)

// jwksForKeys builds a JWKS document for the given kid -> key pairs.
func jwksForKeys(t *testing.T, keys map[string]any) []byte {
	t.Helper()

	doc := map[string]any{}
	var entries []map[string]string
	for kid, key := range keys {
		switch k := key.(type) {
		case *rsa.PublicKey:
			entries = append(entries, map[string]string{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
			})
		case *ecdsa.PublicKey:
			entries = append(entries, map[string]string{
				"kty": "EC",
				"kid": kid,
				"crv": "P-256",
				"x":   base64.RawURLEncoding.EncodeToString(k.X.Bytes()),
				"y":   base64.RawURLEncoding.EncodeToString(k.Y.Bytes()),
			})
		default:
			t.Fatalf("unsupported key type %T", key)
		}
	}
	doc["keys"] = entries

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling JWKS: %v", err)
	}
	return data
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	return key
}

func TestParseJWKS(t *testing.T) {
	rsaKey := generateRSAKey(t)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating EC key: %v", err)
	}

	data := jwksForKeys(t, map[string]any{
		"rsa-key": &rsaKey.PublicKey,
		"ec-key":  &ecKey.PublicKey,
	})

	parsed, err := ParseJWKS(data)
	if err != nil {
		t.Fatalf("ParseJWKS() error: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("ParseJWKS() returned %d keys, want 2", len(parsed))
	}

	gotRSA, ok := parsed["rsa-key"].(*rsa.PublicKey)
	if !ok {
		t.Fatalf("rsa-key has type %T, want *rsa.PublicKey", parsed["rsa-key"])
	}
	if gotRSA.N.Cmp(rsaKey.PublicKey.N) != 0 || gotRSA.E != rsaKey.PublicKey.E {
		t.Errorf("rsa-key does not round-trip")
	}

	gotEC, ok := parsed["ec-key"].(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("ec-key has type %T, want *ecdsa.PublicKey", parsed["ec-key"])
	}
	if gotEC.X.Cmp(ecKey.PublicKey.X) != 0 || gotEC.Y.Cmp(ecKey.PublicKey.Y) != 0 {
		t.Errorf("ec-key does not round-trip")
	}
}

func TestParseJWKSSkipsUnusableKeys(t *testing.T) {
	rsaKey := generateRSAKey(t)

	doc := fmt.Sprintf(`{"keys": [
		{"kty": "RSA", "n": "%s", "e": "AQAB"},
		{"kty": "RSA", "kid": "bad", "n": "!!!not-base64!!!", "e": "AQAB"},
		{"kty": "EC", "kid": "bad-curve", "crv": "P-111", "x": "AA", "y": "AA"},
		{"kty": "oct", "kid": "symmetric", "k": "c2VjcmV0"},
		{"kty": "RSA", "kid": "good", "n": "%s", "e": "AQAB"}
	]}`,
		base64.RawURLEncoding.EncodeToString(rsaKey.PublicKey.N.Bytes()),
		base64.RawURLEncoding.EncodeToString(rsaKey.PublicKey.N.Bytes()))

	parsed, err := ParseJWKS([]byte(doc))
	if err != nil {
		t.Fatalf("ParseJWKS() error: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("ParseJWKS() returned %d keys, want 1 (only 'good')", len(parsed))
	}
	if _, ok := parsed["good"]; !ok {
		t.Errorf("ParseJWKS() missing key 'good'")
	}
}

func TestParseJWKSInvalidJSON(t *testing.T) {
	if _, err := ParseJWKS([]byte("{not json")); err == nil {
		t.Fatal("ParseJWKS() expected error for invalid JSON")
	}
}

func TestParsePublicKeyPEM(t *testing.T) {
	rsaKey := generateRSAKey(t)

	pkix, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	if err != nil {
		t.Fatalf("marshaling PKIX key: %v", err)
	}

	tests := []struct {
		name    string
		pem     []byte
		wantErr bool
	}{
		{
			name: "PKIX public key",
			pem: pem.EncodeToMemory(&pem.Block{
				Type:  "PUBLIC KEY",
				Bytes: pkix,
			}),
		},
		{
			name: "PKCS1 public key",
			pem: pem.EncodeToMemory(&pem.Block{
				Type:  "RSA PUBLIC KEY",
				Bytes: x509.MarshalPKCS1PublicKey(&rsaKey.PublicKey),
			}),
		},
		{
			name:    "no PEM block",
			pem:     []byte("garbage"),
			wantErr: true,
		},
		{
			name: "unsupported block type",
			pem: pem.EncodeToMemory(&pem.Block{
				Type:  "CERTIFICATE",
				Bytes: []byte{1, 2, 3},
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePublicKeyPEM(tt.pem)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParsePublicKeyPEM() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePublicKeyPEM() error: %v", err)
			}
			got, ok := key.(*rsa.PublicKey)
			if !ok {
				t.Fatalf("ParsePublicKeyPEM() returned %T, want *rsa.PublicKey", key)
			}
			if got.N.Cmp(rsaKey.PublicKey.N) != 0 {
				t.Errorf("ParsePublicKeyPEM() key does not round-trip")
			}
		})
	}
}
