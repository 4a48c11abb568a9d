package encryption_test

import (
	"bytes"
	"strings"
	"testing"

	"dbrevert/internal/encryption"
)

func TestTestEncryptorRoundTrip(t *testing.T) {
	t.Parallel()

	e := encryption.NewTestEncryptor()
	if !e.IsConfigured() {
		t.Fatal("IsConfigured() = false, want true")
	}

	var ciphertext bytes.Buffer
	if err := e.Encrypt(strings.NewReader("payload"), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext.String() == "payload" {
		t.Error("encrypted output equals the plaintext")
	}

	ctx, err := e.Unlock("anything")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var plaintext bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &plaintext); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext.String() != "payload" {
		t.Errorf("Decrypt() = %q, want %q", plaintext.String(), "payload")
	}
}

func TestTestDecryptionContextRejectsBadHeader(t *testing.T) {
	t.Parallel()

	ctx := &encryption.TestDecryptionContext{}
	var out bytes.Buffer
	if err := ctx.Decrypt(strings.NewReader("not encrypted data"), &out); err == nil {
		t.Fatal("Decrypt() on unencrypted input succeeded, want error")
	}
}
