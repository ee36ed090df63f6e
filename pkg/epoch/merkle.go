package epoch

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroRoot is the commitment over an empty item set.
const ZeroRoot = "0x0000000000000000000000000000000000000000000000000000000000000000"

// MerkleRoot builds a keccak256 merkle root over the items. Items are
// sorted first so the root depends only on set membership; 0x-prefixed
// items are treated as raw hashes, anything else is hashed as a leaf. An
// odd level duplicates its last node.
func MerkleRoot(items []string) string {
	if len(items) == 0 {
		return ZeroRoot
	}
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)

	hashes := make([][]byte, 0, len(sorted))
	for _, item := range sorted {
		if strings.HasPrefix(item, "0x") {
			if raw, err := hex.DecodeString(item[2:]); err == nil {
				hashes = append(hashes, raw)
				continue
			}
		}
		hashes = append(hashes, crypto.Keccak256([]byte(item)))
	}

	for len(hashes) > 1 {
		if len(hashes)%2 == 1 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}
		next := make([][]byte, 0, len(hashes)/2)
		for i := 0; i < len(hashes); i += 2 {
			next = append(next, crypto.Keccak256(hashes[i], hashes[i+1]))
		}
		hashes = next
	}
	return "0x" + hex.EncodeToString(hashes[0])
}

// Commitment binds an epoch's identity and proof count to the merkle root
// of its included proof ids.
func Commitment(epochID string, count int, proofIDs []string) string {
	root := MerkleRoot(proofIDs)
	input := fmt.Sprintf("%s:%d:%s", epochID, count, root)
	return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(input)))
}
