package publisher

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/signature"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func testKey(t *testing.T) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestPublishGatesSignsAndStores(t *testing.T) {
	priv, addr := testKey(t)
	mem := ledger.NewMemory()
	p := New(mem)
	ctx := context.Background()

	claim := snapshot.NewClaim("job-1", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"miner.alice.eth", snapshot.ModeSolo, time.Unix(1704067200, 0))

	id, doc, err := p.Publish(ctx, schema.KindClaim, ledger.ClaimPath(claim.ClaimID), claim, priv)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := signature.VerifyDocument(doc, addr); err != nil {
		t.Fatalf("published document does not verify: %v", err)
	}

	var stored map[string]any
	if err := mem.Fetch(ctx, id, &stored); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if stored["sig"] != doc["sig"] {
		t.Fatalf("stored record lost its signature")
	}
}

func TestPublishBlocksInvalidRecord(t *testing.T) {
	priv, _ := testKey(t)
	mem := ledger.NewMemory()
	p := New(mem)

	claim := snapshot.NewClaim("job-1", "not-a-cid", "miner.alice.eth", snapshot.ModeSolo, time.Unix(1704067200, 0))
	_, _, err := p.Publish(context.Background(), schema.KindClaim, ledger.ClaimPath(claim.ClaimID), claim, priv)
	if !errors.Is(err, ErrGateRejected) {
		t.Fatalf("expected ErrGateRejected, got %v", err)
	}
	// Fail-closed: nothing may reach storage.
	if _, ok := mem.IDAt(ledger.ClaimPath(claim.ClaimID)); ok {
		t.Fatalf("invalid record reached storage")
	}
}

func TestPublishSignedRequiresSig(t *testing.T) {
	mem := ledger.NewMemory()
	p := New(mem)
	claim := snapshot.NewClaim("job-1", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"miner.alice.eth", snapshot.ModeSolo, time.Unix(1704067200, 0))
	doc, err := snapshot.Document(claim)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	_, err = p.PublishSigned(context.Background(), schema.KindClaim, ledger.ClaimPath(claim.ClaimID), doc)
	if !errors.Is(err, ErrGateRejected) {
		t.Fatalf("expected ErrGateRejected for unsigned record, got %v", err)
	}
}
