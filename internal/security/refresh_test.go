package security

import (
	"errors"
	"testing"
)

func TestGenerateRefreshSecret(t *testing.T) {
	s1, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	if len(s1) != 43 {
		t.Errorf("secret length = %d, want 43", len(s1))
	}
	s2, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	if s1 == s2 {
		t.Error("two generated secrets are identical")
	}
}

func TestRefreshSecretEqual(t *testing.T) {
	secret, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	hash := HashRefreshSecret(secret)
	if hash == secret {
		t.Fatal("hash equals plaintext secret")
	}
	if !RefreshSecretEqual(secret, hash) {
		t.Error("correct secret does not match its hash")
	}
	if RefreshSecretEqual(secret+"x", hash) {
		t.Error("wrong secret matches hash")
	}
}

func TestEncodeDecodeRefreshSecret(t *testing.T) {
	encoded := EncodeRefreshSecret("sid-123", "secret-part")
	sid, secret, err := DecodeRefreshSecret(encoded)
	if err != nil {
		t.Fatalf("DecodeRefreshSecret: %v", err)
	}
	if sid != "sid-123" || secret != "secret-part" {
		t.Errorf("decoded (%q, %q), want (sid-123, secret-part)", sid, secret)
	}
}

func TestDecodeRefreshSecret_Malformed(t *testing.T) {
	for _, in := range []string{"", "nodot", ".secret", "sid.", "."} {
		if _, _, err := DecodeRefreshSecret(in); !errors.Is(err, ErrMalformedRefreshSecret) {
			t.Errorf("DecodeRefreshSecret(%q) err = %v, want ErrMalformedRefreshSecret", in, err)
		}
	}
}
