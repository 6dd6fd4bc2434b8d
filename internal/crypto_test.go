package internal

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("1234567890ABCDEF1234567890ABCDEF") // 32 bytes
	plainText := []byte("secret message")

	cipherText, err := Encrypt(plainText, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(cipherText) == 0 {
		t.Fatal("CipherText is empty")
	}

	decrypted, err := Decrypt(cipherText, key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plainText) {
		t.Errorf("Decrypted message does not match original.\nGot: %s\nWant: %s", decrypted, plainText)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := []byte("1234567890ABCDEF1234567890ABCDEF")
	key2 := []byte("TOTAL_DIFFERENT_KEY_1234567890AB")
	plainText := []byte("secret message")

	cipherText, _ := Encrypt(plainText, key1)

	if _, err := Decrypt(cipherText, key2); err == nil {
		t.Error("Expected error when decrypting with wrong key, got nil")
	}
}

func TestEncryptRejectsShortKey(t *testing.T) {
	if _, err := Encrypt([]byte("msg"), []byte("short")); err == nil {
		t.Error("Expected error for short key, got nil")
	}
}

func TestNonceRandomness(t *testing.T) {
	key := []byte("1234567890ABCDEF1234567890ABCDEF")
	plainText := []byte("same message")

	c1, _ := Encrypt(plainText, key)
	c2, _ := Encrypt(plainText, key)

	if bytes.Equal(c1, c2) {
		t.Error("Encryption should produce different output for same input (nonce usage)")
	}
}

func TestCorruptCiphertext(t *testing.T) {
	key := []byte("1234567890ABCDEF1234567890ABCDEF")

	// Too short to contain nonce
	if _, err := Decrypt([]byte("foo"), key); err == nil {
		t.Error("Expected error for short ciphertext, got nil")
	} else if err.Error() != "cipher too short" {
		t.Errorf("Expected 'cipher too short' error, got: %v", err)
	}

	// Tampered data
	valid, _ := Encrypt([]byte("message"), key)
	valid[len(valid)-1] ^= 0x01

	if _, err := Decrypt(valid, key); err == nil {
		t.Error("Expected error for tampered ciphertext, got nil")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}

	k1, err := DeriveKey("passphrase", salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, _ := DeriveKey("passphrase", salt)
	if !bytes.Equal(k1, k2) {
		t.Error("Same passphrase and salt should derive the same key")
	}
	if len(k1) != 32 {
		t.Errorf("Derived key should be 32 bytes, got %d", len(k1))
	}

	salt2, _ := NewSalt()
	k3, _ := DeriveKey("passphrase", salt2)
	if bytes.Equal(k1, k3) {
		t.Error("Different salts should derive different keys")
	}
}
