// Package signature implements EIP-191 personal-sign over canonical
// snapshot encodings with recoverable secp256k1 signatures. A snapshot is
// hashed with keccak256, the digest is wrapped in the Ethereum signed
// message prefix plus its byte length, hashed again, and the final digest
// is signed. The signer's address is recoverable from the signature alone.
package signature

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SudoSuOps/swarmpool/pkg/canonhash"
)

var (
	ErrInvalidKey       = errors.New("invalid private key")
	ErrInvalidEncoding  = errors.New("invalid signature encoding")
	ErrInvalidSignature = errors.New("signature recovery failed")
	ErrSignerMismatch   = errors.New("recovered signer mismatch")
)

const personalPrefix = "\x19Ethereum Signed Message:\n"

// digest computes the two-stage EIP-191 hash of a canonical payload.
func digest(payload []byte) []byte {
	inner := crypto.Keccak256(payload)
	msg := fmt.Sprintf("%s%d", personalPrefix, len(inner))
	return crypto.Keccak256(append([]byte(msg), inner...))
}

// Sign produces a 0x-prefixed 65-byte recoverable signature over the
// canonical payload. The v byte uses the Ethereum 27/28 convention.
func Sign(payload []byte, privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sig, err := crypto.Sign(digest(payload), key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// SignDocument signs the canonical encoding of doc with any existing sig
// member removed.
func SignDocument(doc map[string]any, privateKeyHex string) (string, error) {
	payload, err := canonhash.SigningBytes(doc)
	if err != nil {
		return "", err
	}
	return Sign(payload, privateKeyHex)
}

// Recover returns the EIP-55 address that produced sig over payload.
func Recover(payload []byte, sig string) (string, error) {
	raw, err := decodeSignature(sig)
	if err != nil {
		return "", err
	}
	pub, err := crypto.SigToPub(digest(payload), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify checks that sig over payload was produced by expectedAddress.
// Address comparison is case-insensitive. Each failure mode reports a
// distinct error; Verify never returns a silent mismatch.
func Verify(payload []byte, sig string, expectedAddress string) error {
	recovered, err := Recover(payload, sig)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, strings.TrimSpace(expectedAddress)) {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignerMismatch, recovered, expectedAddress)
	}
	return nil
}

// VerifyDocument verifies the sig member of a snapshot document against
// the canonical encoding of its remaining members.
func VerifyDocument(doc map[string]any, expectedAddress string) error {
	sig, _ := doc["sig"].(string)
	if strings.TrimSpace(sig) == "" {
		return fmt.Errorf("%w: missing sig", ErrInvalidEncoding)
	}
	payload, err := canonhash.SigningBytes(doc)
	if err != nil {
		return err
	}
	return Verify(payload, sig, expectedAddress)
}

// RecoverDocument returns the signer address of a snapshot document from
// its sig member.
func RecoverDocument(doc map[string]any) (string, error) {
	sig, _ := doc["sig"].(string)
	if strings.TrimSpace(sig) == "" {
		return "", fmt.Errorf("%w: missing sig", ErrInvalidEncoding)
	}
	payload, err := canonhash.SigningBytes(doc)
	if err != nil {
		return "", err
	}
	return Recover(payload, sig)
}

// AddressOf derives the wallet address controlled by a private key.
func AddressOf(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func decodeSignature(sig string) ([]byte, error) {
	s := strings.TrimSpace(sig)
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrInvalidEncoding)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidEncoding, len(raw), crypto.SignatureLength)
	}
	// Accept both raw recovery ids and the 27/28 convention.
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	if raw[64] > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrInvalidEncoding, raw[64])
	}
	return raw, nil
}
