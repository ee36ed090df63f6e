package schema

import (
	"strings"
	"testing"
)

func validGenesis() map[string]any {
	return map[string]any{
		"type":      "genesis",
		"version":   "1.0.0",
		"provider":  "miner.alice.eth",
		"wallet":    "0x1234567890123456789012345678901234567890",
		"gpus":      []any{"RTX 5090"},
		"models":    []any{"queenbee-spine"},
		"timestamp": 1704067200,
		"nonce":     "abcdef1234567890",
		"sig":       "0x" + strings.Repeat("a", 130),
	}
}

func validJob() map[string]any {
	return map[string]any{
		"type":      "job",
		"version":   "1.0.0",
		"job_id":    "job-1704067200-ab12",
		"model":     "queenbee-spine",
		"input_cid": "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		"params": map[string]any{
			"confidence_threshold": 0.85,
			"output_format":        "json",
		},
		"payment": map[string]any{
			"amount": "0.10",
			"token":  "USDC",
		},
		"client":    "clinic.eth",
		"timestamp": 1704067200,
		"nonce":     "abcdef1234567890",
	}
}

func validProof() map[string]any {
	return map[string]any{
		"type":       "proof",
		"version":    "1.0.0",
		"proof_id":   "proof-job-1-ab12",
		"job_id":     "job-1",
		"job_cid":    "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"status":     "completed",
		"output_cid": "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdH",
		"metrics": map[string]any{
			"inference_seconds": 12.5,
			"compute_seconds":   12.5,
			"confidence":        0.93,
			"model_version":     "queenbee-spine-v1.0",
		},
		"provider":   "miner.alice.eth",
		"timestamp":  1704067300,
		"proof_hash": "0x" + strings.Repeat("ab", 32),
		"nonce":      "abcdef1234567890",
	}
}

func validEpoch() map[string]any {
	return map[string]any{
		"type":         "epoch",
		"version":      "1.0.0",
		"epoch_id":     "epoch-0001",
		"name":         "Alpha",
		"status":       "active",
		"started_at":   1704067200,
		"jobs_count":   0,
		"total_volume": "0",
		"controller":   "merlin.swarmpool.eth",
		"timestamp":    1704067200,
		"nonce":        "abcdef1234567890",
	}
}

func validWithdrawal() map[string]any {
	return map[string]any{
		"type":          "withdrawal",
		"version":       "1.0.0",
		"withdrawal_id": "withdrawal-1704067200-ab12",
		"provider":      "miner.alice.eth",
		"wallet":        "0x1234567890123456789012345678901234567890",
		"amount":        "0.25",
		"timestamp":     1704067200,
		"nonce":         "abcdef1234567890",
	}
}

func TestValidSnapshotsPass(t *testing.T) {
	cases := []struct {
		kind Kind
		doc  map[string]any
	}{
		{KindGenesis, validGenesis()},
		{KindJob, validJob()},
		{KindProof, validProof()},
		{KindEpoch, validEpoch()},
		{KindWithdrawal, validWithdrawal()},
		{KindClaim, map[string]any{
			"type":      "claim",
			"version":   "1.0.0",
			"claim_id":  "claim-1704067200-ab",
			"job_id":    "job-1",
			"job_cid":   "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
			"provider":  "miner.alice.eth",
			"mode":      "PPL",
			"timestamp": 1704067200,
			"nonce":     "abcdef1234567890",
		}},
	}
	for _, tc := range cases {
		res := Validate(tc.doc, tc.kind)
		if !res.Valid || len(res.Errors) != 0 {
			t.Fatalf("%s: expected valid, got errors %v", tc.kind, res.Errors)
		}
	}
}

func TestUnsignedSnapshotPassesGate(t *testing.T) {
	doc := validGenesis()
	delete(doc, "sig")
	res := Validate(doc, KindGenesis)
	if !res.Valid {
		t.Fatalf("gate must accept pre-signing documents, got %v", res.Errors)
	}
}

func TestMissingRequiredFieldNamed(t *testing.T) {
	doc := validGenesis()
	delete(doc, "provider")
	res := Validate(doc, KindGenesis)
	if res.Valid {
		t.Fatalf("expected invalid")
	}
	if !anyContains(res.Errors, "provider") {
		t.Fatalf("expected an error naming provider, got %v", res.Errors)
	}
}

func TestIdentityPattern(t *testing.T) {
	doc := validGenesis()
	doc["provider"] = "not-an-identity"
	res := Validate(doc, KindGenesis)
	if res.Valid || !anyContains(res.Errors, "pattern") {
		t.Fatalf("expected pattern error, got %v", res.Errors)
	}
}

func TestAccumulatesAllViolations(t *testing.T) {
	doc := validProof()
	delete(doc, "provider")                     // missing required
	doc["status"] = "in-progress"               // bad enum
	doc["proof_hash"] = "0x1234"                // bad pattern
	doc["metrics"].(map[string]any)["confidence"] = 1.5 // out of range
	doc["bogus"] = true                         // closed properties

	res := Validate(doc, KindProof)
	if res.Valid {
		t.Fatalf("expected invalid")
	}
	if len(res.Errors) < 5 {
		t.Fatalf("expected all violations reported, got %v", res.Errors)
	}
	for _, want := range []string{"provider", "status", "proof_hash", "confidence", "bogus"} {
		if !anyContains(res.Errors, want) {
			t.Fatalf("expected an error naming %s, got %v", want, res.Errors)
		}
	}
}

func TestClosedPropertiesRejectUnknownField(t *testing.T) {
	doc := validJob()
	doc["extra"] = "x"
	res := Validate(doc, KindJob)
	if res.Valid || !anyContains(res.Errors, "unknown field") {
		t.Fatalf("expected unknown field error, got %v", res.Errors)
	}
}

func TestModeEnum(t *testing.T) {
	doc := map[string]any{
		"type":      "claim",
		"version":   "1.0.0",
		"claim_id":  "claim-1704067200-ab",
		"job_id":    "job-1",
		"job_cid":   "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"provider":  "miner.alice.eth",
		"mode":      "BOTH",
		"timestamp": 1704067200,
		"nonce":     "abcdef1234567890",
	}
	res := Validate(doc, KindClaim)
	if res.Valid || !anyContains(res.Errors, "mode") {
		t.Fatalf("expected mode enum error, got %v", res.Errors)
	}
}

func TestNestedPaymentRequired(t *testing.T) {
	doc := validJob()
	doc["payment"] = map[string]any{"amount": "0.10"}
	res := Validate(doc, KindJob)
	if res.Valid || !anyContains(res.Errors, "payment.token") {
		t.Fatalf("expected payment.token error, got %v", res.Errors)
	}
}

func TestAmountMustBeDecimalString(t *testing.T) {
	doc := validJob()
	doc["payment"].(map[string]any)["amount"] = "-1.0"
	res := Validate(doc, KindJob)
	if res.Valid {
		t.Fatalf("expected invalid amount, got valid")
	}
}

func TestNonceMinLength(t *testing.T) {
	doc := validGenesis()
	doc["nonce"] = "abc"
	res := Validate(doc, KindGenesis)
	if res.Valid || !anyContains(res.Errors, "nonce") {
		t.Fatalf("expected nonce error, got %v", res.Errors)
	}
}

func TestGenesisRequiresAtLeastOneGPU(t *testing.T) {
	doc := validGenesis()
	doc["gpus"] = []any{}
	res := Validate(doc, KindGenesis)
	if res.Valid || !anyContains(res.Errors, "gpus") {
		t.Fatalf("expected gpus minItems error, got %v", res.Errors)
	}
}

func TestWrongDiscriminator(t *testing.T) {
	doc := validJob()
	doc["type"] = "claim"
	res := Validate(doc, KindJob)
	if res.Valid || !anyContains(res.Errors, "type") {
		t.Fatalf("expected type const error, got %v", res.Errors)
	}
}

func TestWithdrawalRequiresWalletAndAmount(t *testing.T) {
	doc := validWithdrawal()
	delete(doc, "wallet")
	doc["amount"] = "-0.25"
	res := Validate(doc, KindWithdrawal)
	if res.Valid {
		t.Fatalf("expected invalid")
	}
	for _, want := range []string{"wallet", "amount"} {
		if !anyContains(res.Errors, want) {
			t.Fatalf("expected an error naming %s, got %v", want, res.Errors)
		}
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("PROOF"); err != nil {
		t.Fatalf("expected case-insensitive parse, got %v", err)
	}
	if _, err := ParseKind("receipt"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func anyContains(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
