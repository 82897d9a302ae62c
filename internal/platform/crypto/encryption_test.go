package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpenRoundTrip(t *testing.T) {
	svc, err := New(testKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	plain := []byte("quarterly evidence")
	sealed, encrypted, err := svc.Seal(plain)
	if err != nil || !encrypted {
		t.Fatalf("seal: %v encrypted=%v", err, encrypted)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("expected ciphertext to hide the plaintext")
	}
	opened, err := svc.Open(sealed, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("expected %q, got %q", plain, opened)
	}

	again, _, _ := svc.Seal(plain)
	if bytes.Equal(again, sealed) {
		t.Fatal("expected a fresh nonce per seal")
	}
}

func TestOpenRejectsDamagedBodies(t *testing.T) {
	svc, _ := New(testKey)
	sealed, _, err := svc.Seal([]byte("score: 80"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := svc.Open(tampered, true); err == nil {
		t.Fatal("expected authentication failure")
	}

	versioned := bytes.Clone(sealed)
	versioned[0] = 9
	if _, err := svc.Open(versioned, true); !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected unknown version, got %v", err)
	}

	if _, err := svc.Open([]byte{1, 2}, true); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected short ciphertext error, got %v", err)
	}
}

func TestWithoutKeyPassesThrough(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, encrypted, err := svc.Seal([]byte("plain"))
	if err != nil || encrypted || string(out) != "plain" {
		t.Fatalf("unexpected seal result %q %v %v", out, encrypted, err)
	}
	if _, err := svc.Open([]byte("x"), true); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New("too-short")
	if err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("expected key length error, got %v", err)
	}
	if _, err := New(strings.Repeat("k", 32)); err != nil {
		t.Fatalf("expected raw 32 byte key to be accepted: %v", err)
	}
}

func TestKeyEncodings(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, 32)
	for name, key := range map[string]string{
		"hex":    strings.Repeat("07", 32),
		"base64": base64.StdEncoding.EncodeToString(raw),
		"raw":    string(raw),
	} {
		a, err := New(key)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		sealed, _, _ := a.Seal([]byte("evidence"))
		b, _ := New(strings.Repeat("07", 32))
		if opened, err := b.Open(sealed, true); err != nil || string(opened) != "evidence" {
			t.Fatalf("%s: key did not decode to the same bytes: %v", name, err)
		}
	}
}
