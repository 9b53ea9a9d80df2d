package gateway

import (
	"encoding/base64"
	"testing"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

func TestClaimPayload_RoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	encoded := encodeClaimPayload(key, 128)
	if len(encoded) != 128 {
		t.Fatalf("len(encoded) = %d, want 128", len(encoded))
	}
	got, err := parseClaimPayload(encoded)
	if err != nil {
		t.Fatalf("parseClaimPayload: %v", err)
	}
	if got != key {
		t.Fatalf("got %x, want %x", got, key)
	}
}

func TestClaimPayload_RejectsGarbage(t *testing.T) {
	if _, err := parseClaimPayload([]byte("not base64 json !!!")); err != bridgeerr.ErrDecryption {
		t.Fatalf("err = %v, want ErrDecryption", err)
	}
}

func TestClaimPayload_RejectsWrongKeyLength(t *testing.T) {
	payload := []byte(base64.StdEncoding.EncodeToString([]byte(`{"request_key":"` + base64.StdEncoding.EncodeToString([]byte("abc")) + `"}`)))
	if _, err := parseClaimPayload(payload); err != bridgeerr.ErrDecryption {
		t.Fatalf("err = %v, want ErrDecryption", err)
	}
}

func TestClaimPayload_TrimsPadding(t *testing.T) {
	var key [32]byte
	key[31] = 0x42
	withPadding := append(encodeClaimPayload(key, 0), []byte("   \t\n")...)
	got, err := parseClaimPayload(withPadding)
	if err != nil {
		t.Fatalf("parseClaimPayload: %v", err)
	}
	if got != key {
		t.Fatalf("got %x, want %x", got, key)
	}
}
