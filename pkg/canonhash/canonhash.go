// Package canonhash produces the canonical byte encoding and keccak256
// digests used as signing input for all pool snapshots.
package canonhash

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
)

// Encode serializes v to canonical JSON: object keys in lexicographic
// order at every depth, compact separators, no HTML escaping, and numeric
// literals carried through unchanged. Identical logical documents always
// produce identical bytes.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SumKeccak returns the 0x-prefixed keccak256 of the canonical encoding of
// v, along with the encoded bytes.
func SumKeccak(v any) (string, []byte, error) {
	b, err := Encode(v)
	if err != nil {
		return "", nil, err
	}
	sum := crypto.Keccak256(b)
	return "0x" + hex.EncodeToString(sum), b, nil
}

// Keccak256Hex hashes raw bytes with keccak256, 0x-prefixed lowercase hex.
func Keccak256Hex(data []byte) string {
	return "0x" + hex.EncodeToString(crypto.Keccak256(data))
}

// SigningBytes canonically encodes a snapshot document with its sig member
// removed. Signatures are always computed over the unsigned document.
func SigningBytes(doc map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "sig" {
			continue
		}
		clean[k] = v
	}
	return Encode(clean)
}
