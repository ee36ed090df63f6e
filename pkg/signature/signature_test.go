package signature

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SudoSuOps/swarmpool/pkg/canonhash"
)

func testKey(t *testing.T) (privHex, address string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, addr := testKey(t)
	payload, err := canonhash.Encode(map[string]any{"type": "claim", "mode": "SOLO"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 132 || !strings.HasPrefix(sig, "0x") {
		t.Fatalf("expected 0x + 130 hex chars, got %d chars", len(sig))
	}
	if err := Verify(payload, sig, addr); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// Identity comparison is case-insensitive.
	if err := Verify(payload, sig, strings.ToLower(addr)); err != nil {
		t.Fatalf("Verify lowercase: %v", err)
	}
}

func TestVerifyRejectsFlippedByte(t *testing.T) {
	priv, addr := testKey(t)
	payload := []byte(`{"a":1}`)
	sig, err := Sign(payload, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	raw, _ := hex.DecodeString(sig[2:])
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01
		err := Verify(payload, "0x"+hex.EncodeToString(mutated), addr)
		if err == nil {
			t.Fatalf("flipping byte %d still verified", i)
		}
	}
}

func TestVerifyWrongSigner(t *testing.T) {
	priv, _ := testKey(t)
	_, otherAddr := testKey(t)
	payload := []byte(`{"a":1}`)
	sig, _ := Sign(payload, priv)

	err := Verify(payload, sig, otherAddr)
	if !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("expected ErrSignerMismatch, got %v", err)
	}
}

func TestSignMalformedKey(t *testing.T) {
	_, err := Sign([]byte("x"), "0xnothex")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	_, addr := testKey(t)
	cases := []string{
		"",
		"deadbeef",
		"0xzz",
		"0x" + strings.Repeat("ab", 64),  // too short
		"0x" + strings.Repeat("ab", 66),  // too long
	}
	for _, sig := range cases {
		err := Verify([]byte("x"), sig, addr)
		if !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("sig %q: expected ErrInvalidEncoding, got %v", sig, err)
		}
	}
}

func TestVerifyAcceptsRawRecoveryID(t *testing.T) {
	priv, addr := testKey(t)
	payload := []byte(`{"a":1}`)
	sig, _ := Sign(payload, priv)
	raw, _ := hex.DecodeString(sig[2:])
	raw[64] -= 27
	if err := Verify(payload, "0x"+hex.EncodeToString(raw), addr); err != nil {
		t.Fatalf("Verify with v in {0,1}: %v", err)
	}
}

func TestSignDocumentIgnoresExistingSig(t *testing.T) {
	priv, addr := testKey(t)
	doc := map[string]any{"type": "job", "nonce": "aabbccddeeff00112233"}
	sig, err := SignDocument(doc, priv)
	if err != nil {
		t.Fatalf("SignDocument: %v", err)
	}
	doc["sig"] = sig
	if err := VerifyDocument(doc, addr); err != nil {
		t.Fatalf("VerifyDocument: %v", err)
	}
}

func TestDifferentNoncesProduceDifferentSignatures(t *testing.T) {
	priv, _ := testKey(t)
	a, err := canonhash.SigningBytes(map[string]any{"type": "job", "nonce": "0000000000000001"})
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	b, err := canonhash.SigningBytes(map[string]any{"type": "job", "nonce": "0000000000000002"})
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	if string(a) == string(b) {
		t.Fatalf("expected different canonical encodings")
	}
	sa, _ := Sign(a, priv)
	sb, _ := Sign(b, priv)
	if sa == sb {
		t.Fatalf("expected different signatures for different nonces")
	}
}

func TestAddressOf(t *testing.T) {
	priv, addr := testKey(t)
	got, err := AddressOf("0x" + priv)
	if err != nil {
		t.Fatalf("AddressOf: %v", err)
	}
	if got != addr {
		t.Fatalf("got %s, want %s", got, addr)
	}
}
