package keys

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func Test_GeneratesRSAKeys(t *testing.T) {
	tests := []struct {
		keySize int
	}{
		{2048},
		{3072},
		{4096},
	}

	for _, tt := range tests {
		t.Run("RSAKeySize"+fmt.Sprintf("%d", tt.keySize), func(t *testing.T) {
			privateKey, publicKey, err := GeneratesRSAKeys(tt.keySize)
			if err != nil {
				t.Fatal(err)
			}
			if len(privateKey) == 0 || len(publicKey) == 0 {
				t.Fatal("empty key material")
			}
			if _, err := ParsePrivateKey(privateKey, ""); err != nil {
				t.Errorf("generated key does not parse: %v", err)
			}
		})
	}

	if _, _, err := GeneratesRSAKeys(1024); err == nil {
		t.Error("expected error for 1024 bit keys")
	}
}

func Test_GeneratesECDSAKeys(t *testing.T) {
	tests := []struct {
		keySize int
	}{
		{256},
		{384},
		{521},
	}

	for _, tt := range tests {
		t.Run("ECDSAKeySize"+fmt.Sprintf("%d", tt.keySize), func(t *testing.T) {
			privateKey, publicKey, err := GeneratesECDSAKeys(tt.keySize)
			if err != nil {
				t.Fatal(err)
			}
			if len(privateKey) == 0 || len(publicKey) == 0 {
				t.Fatal("empty key material")
			}
			if _, err := ParsePrivateKey(privateKey, ""); err != nil {
				t.Errorf("generated key does not parse: %v", err)
			}
		})
	}
}

func Test_GeneratesED25519Keys(t *testing.T) {
	privateKey, publicKey, err := GeneratesED25519Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(publicKey) == 0 {
		t.Fatal("empty public key")
	}
	if _, err := ParsePrivateKey(privateKey, ""); err != nil {
		t.Errorf("generated key does not parse: %v", err)
	}
}

func TestLoadPrivateKey(t *testing.T) {
	privateKey, _, err := GeneratesED25519Keys()
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(file, privateKey, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrivateKey(file, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrivateKey(filepath.Join(t.TempDir(), "nope"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestAuthMethods(t *testing.T) {
	privateKey, _, err := GeneratesED25519Keys()
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ParsePrivateKey(privateKey, "")
	if err != nil {
		t.Fatal(err)
	}

	if got := AuthMethods("", signer); len(got) != 1 {
		t.Errorf("key only = %d methods", len(got))
	}
	if got := AuthMethods("secret", signer); len(got) != 2 {
		t.Errorf("key and password = %d methods", len(got))
	}
	if got := AuthMethods(""); len(got) != 0 {
		t.Errorf("no credentials = %d methods", len(got))
	}
}

func TestHostKeyCallbackRequiresFile(t *testing.T) {
	if _, err := HostKeyCallback(""); err != ErrNoHostVerification {
		t.Errorf("err = %v", err)
	}

	file := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := HostKeyCallback(file); err != nil {
		t.Errorf("empty known hosts file: %v", err)
	}
}
