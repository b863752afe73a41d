package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	encoded, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	key, err := ParseKey(encoded)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	return key
}

func TestEncryptDecrypt(t *testing.T) {
	key := mustKey(t)

	for _, plain := range []string{"", "ftpuser", "p@ss w0rd with spaces and ünïcode"} {
		payload, err := Encrypt(plain, key)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		got, err := Decrypt(payload, key)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", plain, err)
		}
		if got != plain {
			t.Fatalf("round trip: expected %q, got %q", plain, got)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := mustKey(t)

	a, _ := Encrypt("same", key)
	b, _ := Encrypt("same", key)
	if a == b {
		t.Fatal("two encryptions of the same value must differ")
	}
}

func TestPayloadLayout(t *testing.T) {
	key := mustKey(t)

	payload, err := Encrypt("abc", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	if len(raw) != NonceSize+3+TagSize {
		t.Fatalf("expected %d bytes, got %d", NonceSize+3+TagSize, len(raw))
	}
}

func TestDecryptFailures(t *testing.T) {
	key := mustKey(t)
	payload, err := Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(payload)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name    string
		payload string
		key     []byte
		want    error
	}{
		{"wrong key", payload, mustKey(t), ErrAuthenticationTag},
		{"tampered", tampered, key, ErrAuthenticationTag},
		{"not base64", "plain-text-password", key, ErrMalformedPayload},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short")), key, ErrMalformedPayload},
		{"short key", payload, []byte("0123456789"), ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.payload, tt.key)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	if _, err := ParseKey("not base64!"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ParseKey(base64.StdEncoding.EncodeToString([]byte("too short"))); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
