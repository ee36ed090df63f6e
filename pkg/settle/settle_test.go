package settle

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestSoloPayout(t *testing.T) {
	proofs := []Proof{
		{ProofID: "proof-job-001-aa", JobID: "job-001", Provider: "miner.eth", Mode: ModeSolo, ComputeSeconds: 10, Reward: "0.10"},
	}

	s, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.TotalVolume != "0.1" {
		t.Fatalf("total volume %s", s.TotalVolume)
	}
	if s.MinerPool != "0.075" {
		t.Fatalf("miner pool %s", s.MinerPool)
	}
	if s.HiveOps != "0.025" {
		t.Fatalf("hive ops %s", s.HiveOps)
	}
	if s.Providers["miner.eth"] != "0.075" {
		t.Fatalf("winner payout %s", s.Providers["miner.eth"])
	}
	if s.DustToHive != "0" {
		t.Fatalf("dust %s", s.DustToHive)
	}
}

func TestPPLProportionalSplit(t *testing.T) {
	// 40s / 35s / 25s of a 100s job, $0.10 reward.
	proofs := []Proof{
		{ProofID: "proof-job-001-aa", JobID: "job-001", Provider: "a.eth", Mode: ModePPL, ComputeSeconds: 40, Reward: "0.10"},
		{ProofID: "proof-job-001-bb", JobID: "job-001", Provider: "b.eth", Mode: ModePPL, ComputeSeconds: 35, Reward: "0.10"},
		{ProofID: "proof-job-001-cc", JobID: "job-001", Provider: "c.eth", Mode: ModePPL, ComputeSeconds: 25, Reward: "0.10"},
	}

	s, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.Providers["a.eth"] != "0.03" {
		t.Fatalf("a payout %s", s.Providers["a.eth"])
	}
	if s.Providers["b.eth"] != "0.02625" {
		t.Fatalf("b payout %s", s.Providers["b.eth"])
	}
	if s.Providers["c.eth"] != "0.01875" {
		t.Fatalf("c payout %s", s.Providers["c.eth"])
	}
	if s.MinerPool != "0.075" {
		t.Fatalf("per-job total must equal the pool exactly, got %s", s.MinerPool)
	}
}

func TestPPLLastProofAbsorbsRounding(t *testing.T) {
	// 1/3 splits do not divide evenly in microunits.
	proofs := []Proof{
		{ProofID: "p-1", JobID: "job-1", Provider: "a.eth", Mode: ModePPL, ComputeSeconds: 1, Reward: "0.10"},
		{ProofID: "p-2", JobID: "job-1", Provider: "b.eth", Mode: ModePPL, ComputeSeconds: 1, Reward: "0.10"},
		{ProofID: "p-3", JobID: "job-1", Provider: "c.eth", Mode: ModePPL, ComputeSeconds: 1, Reward: "0.10"},
	}
	s, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.Providers["a.eth"] != "0.025" || s.Providers["b.eth"] != "0.025" {
		t.Fatalf("floored shares wrong: %v", s.Providers)
	}
	// 75000 - 2*25000 = 25000, no dust leak at the job level.
	if s.Providers["c.eth"] != "0.025" {
		t.Fatalf("remainder share wrong: %v", s.Providers)
	}
	if s.DustToHive != "0" {
		t.Fatalf("dust %s", s.DustToHive)
	}
}

func TestZeroComputePPLFlaggedNotFaulting(t *testing.T) {
	proofs := []Proof{
		{ProofID: "p-1", JobID: "job-1", Provider: "a.eth", Mode: ModePPL, ComputeSeconds: 0, Reward: "0.10"},
		{ProofID: "p-2", JobID: "job-1", Provider: "b.eth", Mode: ModePPL, ComputeSeconds: 0, Reward: "0.10"},
	}
	s, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if len(s.Providers) != 0 {
		t.Fatalf("expected no payouts, got %v", s.Providers)
	}
	if !reflect.DeepEqual(s.StrandedJobs, []string{"job-1"}) {
		t.Fatalf("expected job-1 flagged, got %v", s.StrandedJobs)
	}
	// The undistributed pool reaches the coordinator as dust.
	if s.DustToHive != "0.075" {
		t.Fatalf("dust %s", s.DustToHive)
	}
	if s.HiveOps != "0.1" {
		t.Fatalf("hive ops %s", s.HiveOps)
	}
}

func TestConservationAcrossRandomProofSets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := DefaultConfig()
	for trial := 0; trial < 50; trial++ {
		var proofs []Proof
		jobs := rng.Intn(6) + 1
		for j := 0; j < jobs; j++ {
			jobID := fmt.Sprintf("job-%03d", j)
			reward := fmt.Sprintf("%d.%06d", rng.Intn(3), rng.Intn(1000000))
			if rng.Intn(2) == 0 {
				proofs = append(proofs, Proof{
					ProofID: jobID + "-p0", JobID: jobID, Provider: fmt.Sprintf("solo%d.eth", j),
					Mode: ModeSolo, ComputeSeconds: rng.Float64() * 100, Reward: reward,
				})
			} else {
				n := rng.Intn(4) + 1
				for i := 0; i < n; i++ {
					proofs = append(proofs, Proof{
						ProofID: fmt.Sprintf("%s-p%d", jobID, i), JobID: jobID,
						Provider: fmt.Sprintf("m%d.eth", i), Mode: ModePPL,
						ComputeSeconds: rng.Float64() * 100, Reward: reward,
					})
				}
			}
		}
		s, err := Settle(proofs, cfg)
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		assertConserved(t, s, cfg)
	}
}

func assertConserved(t *testing.T, s Settlements, cfg Config) {
	t.Helper()
	total := mustMicro(t, s.TotalVolume, cfg.Decimals)
	miner := mustMicro(t, s.MinerPool, cfg.Decimals)
	hive := mustMicro(t, s.HiveOps, cfg.Decimals)
	if miner+hive != total {
		t.Fatalf("conservation: %d + %d != %d", miner, hive, total)
	}
	var payouts int64
	for _, amount := range s.Providers {
		payouts += mustMicro(t, amount, cfg.Decimals)
	}
	if payouts != miner {
		t.Fatalf("provider payouts %d != miner pool %d", payouts, miner)
	}
}

func mustMicro(t *testing.T, amount string, decimals int) int64 {
	t.Helper()
	m, err := ToMicro(amount, decimals)
	if err != nil {
		t.Fatalf("ToMicro(%q): %v", amount, err)
	}
	return m
}

func TestIdempotentAcrossInputOrder(t *testing.T) {
	proofs := []Proof{
		{ProofID: "p-2", JobID: "job-1", Provider: "b.eth", Mode: ModePPL, ComputeSeconds: 35, Reward: "0.10"},
		{ProofID: "p-3", JobID: "job-1", Provider: "c.eth", Mode: ModePPL, ComputeSeconds: 25, Reward: "0.10"},
		{ProofID: "p-1", JobID: "job-1", Provider: "a.eth", Mode: ModePPL, ComputeSeconds: 40, Reward: "0.10"},
		{ProofID: "q-1", JobID: "job-2", Provider: "d.eth", Mode: ModeSolo, ComputeSeconds: 5, Reward: "0.25"},
	}
	first, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// Reverse the observed order; the result must be identical.
	reversed := make([]Proof, len(proofs))
	for i, p := range proofs {
		reversed[len(proofs)-1-i] = p
	}
	second, err := Settle(reversed, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("settlement not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestSoloWinnerIsCanonicalFirstProof(t *testing.T) {
	proofs := []Proof{
		{ProofID: "p-zz", JobID: "job-1", Provider: "late.eth", Mode: ModeSolo, ComputeSeconds: 1, Reward: "0.10"},
		{ProofID: "p-aa", JobID: "job-1", Provider: "early.eth", Mode: ModeSolo, ComputeSeconds: 1, Reward: "0.10"},
	}
	s, err := Settle(proofs, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.Providers["early.eth"] != "0.075" {
		t.Fatalf("expected canonical first proof to win, got %v", s.Providers)
	}
	if _, ok := s.Providers["late.eth"]; ok {
		t.Fatalf("losing proof must receive nothing")
	}
}

func TestEmptyProofSetIsPreconditionFailure(t *testing.T) {
	_, err := Settle(nil, DefaultConfig())
	if !errors.Is(err, ErrNoProofs) {
		t.Fatalf("expected ErrNoProofs, got %v", err)
	}
}

func TestUnknownModeRejected(t *testing.T) {
	_, err := Settle([]Proof{{ProofID: "p", JobID: "j", Provider: "a.eth", Mode: "BOTH", Reward: "0.10"}}, DefaultConfig())
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestMalformedRewardRejected(t *testing.T) {
	for _, reward := range []string{"", "-0.10", "0.1.0", "abc"} {
		_, err := Settle([]Proof{{ProofID: "p", JobID: "j", Provider: "a.eth", Mode: ModeSolo, Reward: reward}}, DefaultConfig())
		if !errors.Is(err, ErrMalformedAmount) {
			t.Fatalf("reward %q: expected ErrMalformedAmount, got %v", reward, err)
		}
	}
}

func TestAlternateSplitConfig(t *testing.T) {
	// 50/50 split at 6 decimals.
	cfg := Config{MinerPoolBps: 5000, Decimals: 6}
	s, err := Settle([]Proof{
		{ProofID: "p", JobID: "j", Provider: "a.eth", Mode: ModeSolo, Reward: "0.10"},
	}, cfg)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.MinerPool != "0.05" || s.HiveOps != "0.05" {
		t.Fatalf("split %s / %s", s.MinerPool, s.HiveOps)
	}
}

func TestCoordinatorAbsorbsFloorLoss(t *testing.T) {
	// 1 microunit reward: pool = floor(1 * 0.75) = 0, hive gets 1.
	s, err := Settle([]Proof{
		{ProofID: "p", JobID: "j", Provider: "a.eth", Mode: ModeSolo, Reward: "0.000001"},
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if s.MinerPool != "0" || s.HiveOps != "0.000001" {
		t.Fatalf("split %s / %s", s.MinerPool, s.HiveOps)
	}
	assertConserved(t, s, DefaultConfig())
}

func TestMicroRoundTrip(t *testing.T) {
	cases := []struct {
		in    string
		micro int64
		out   string
	}{
		{"0.10", 100000, "0.1"},
		{"0.075", 75000, "0.075"},
		{"0", 0, "0"},
		{"1", 1000000, "1"},
		{"2.5000004", 2500000, "2.5"},   // rounds down
		{"2.5000005", 2500001, "2.500001"}, // rounds half up
		{"0.02625", 26250, "0.02625"},
	}
	for _, tc := range cases {
		m, err := ToMicro(tc.in, 6)
		if err != nil {
			t.Fatalf("ToMicro(%q): %v", tc.in, err)
		}
		if m != tc.micro {
			t.Fatalf("ToMicro(%q) = %d, want %d", tc.in, m, tc.micro)
		}
		if got := FromMicro(m, 6); got != tc.out {
			t.Fatalf("FromMicro(%d) = %q, want %q", m, got, tc.out)
		}
	}
}

func TestToMicroRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", " ", "-1", "1.2.3", "1e6", "0x10", "."} {
		if _, err := ToMicro(in, 6); !errors.Is(err, ErrMalformedAmount) {
			t.Fatalf("ToMicro(%q): expected ErrMalformedAmount, got %v", in, err)
		}
	}
}
