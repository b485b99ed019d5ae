package secrets

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blob.json")
	plaintext := []byte(`{"cookies":"sessionKey=abc123"}`)

	if err := EncryptToFile(path, plaintext, "hunter2"); err != nil {
		t.Fatalf("EncryptToFile: %v", err)
	}

	got, err := DecryptFromFile(path, "hunter2")
	if err != nil {
		t.Fatalf("DecryptFromFile: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.json")
	if err := EncryptToFile(path, []byte("secret"), "right"); err != nil {
		t.Fatalf("EncryptToFile: %v", err)
	}

	if _, err := DecryptFromFile(path, "wrong"); err == nil {
		t.Fatal("expected authentication failure with wrong password")
	}
}

func TestEncrypt_FreshSaltAndNonce(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.json")
	p2 := filepath.Join(dir, "b.json")

	for _, p := range []string{p1, p2} {
		if err := EncryptToFile(p, []byte("same data"), "pw"); err != nil {
			t.Fatalf("EncryptToFile: %v", err)
		}
	}

	read := func(p string) blobEnvelope {
		raw, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		var e blobEnvelope
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("parse %s: %v", p, err)
		}
		return e
	}

	e1, e2 := read(p1), read(p2)
	if e1.Salt == e2.Salt {
		t.Error("salt reused across files")
	}
	if e1.Nonce == e2.Nonce {
		t.Error("nonce reused across files")
	}
	if e1.Ciphertext == e2.Ciphertext {
		t.Error("identical ciphertext for fresh salt/nonce")
	}
}

func TestMachineKeyFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.json")
	if err := EncryptToFile(path, []byte("data"), ""); err != nil {
		t.Fatalf("EncryptToFile: %v", err)
	}
	got, err := DecryptFromFile(path, "")
	if err != nil {
		t.Fatalf("DecryptFromFile: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("got %q", got)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()

	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v)", v, ok, err)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("key survived delete")
	}
	// Deleting again is not an error.
	if err := s.Delete("k"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}
