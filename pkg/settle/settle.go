// Package settle converts a finalized set of completed-work proofs into
// exact per-provider payouts. All arithmetic runs on integer microunits;
// given the same proof set the output is bit-identical on every run.
package settle

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// Execution modes as they appear on claims.
const (
	ModeSolo = "SOLO"
	ModePPL  = "PPL"
)

var (
	// ErrNoProofs reports settlement of an empty proof set, a caller
	// precondition failure.
	ErrNoProofs = errors.New("empty proof set")
	// ErrUnknownMode reports a job whose claimed mode is neither SOLO nor
	// PPL.
	ErrUnknownMode = errors.New("unknown execution mode")
	// ErrInvariantViolation reports a conservation failure. It must never
	// occur given correct integer arithmetic; when observed it is a defect
	// to report, never to auto-correct.
	ErrInvariantViolation = errors.New("settlement conservation violated")
)

// Config carries the settlement constants. They are inputs, not globals,
// so alternate splits are testable deterministically.
type Config struct {
	// MinerPoolBps is the miner-pool share in basis points (7500 = 75%).
	// The coordinator receives the remainder and absorbs rounding loss.
	MinerPoolBps int
	// Decimals is the microunit scale (6 = amount x 10^6).
	Decimals int
}

// DefaultConfig is the system-wide 75/25 split at 6 decimals.
func DefaultConfig() Config {
	return Config{MinerPoolBps: 7500, Decimals: 6}
}

// Proof is the settlement view of one completed-work record: the proof
// and job it belongs to, the provider owed payment, the claimed mode, the
// measured compute contribution, and the job's gross reward.
type Proof struct {
	ProofID        string
	JobID          string
	Provider       string
	Mode           string
	ComputeSeconds float64
	Reward         string
}

// Settlements is the sealed accounting output. All amounts are decimal
// strings. Invariants: MinerPool + HiveOps == TotalVolume exactly, and
// the provider payouts sum to MinerPool exactly.
type Settlements struct {
	TotalVolume  string            `json:"total_volume"`
	MinerPool    string            `json:"miner_pool"`
	HiveOps      string            `json:"hive_ops"`
	Providers    map[string]string `json:"providers"`
	DustToHive   string            `json:"dust_to_hive"`
	StrandedJobs []string          `json:"stranded_jobs,omitempty"`
}

// Settle computes exact payouts for a finalized epoch proof set.
//
// Per job: the gross reward converts to microunits, the miner pool takes
// floor(reward x bps / 10000), and the coordinator cut absorbs the floor
// loss. SOLO pays the pool to the first proof in canonical order; PPL
// splits it by compute share with the last proof receiving the remainder,
// so the per-job total equals the pool exactly. A PPL job with zero total
// compute distributes nothing: its pool reaches the coordinator through
// dust and the job is reported in StrandedJobs.
//
// Proofs are processed in ascending job-id then proof-id order, so
// re-settling the same set yields bit-identical output.
func Settle(proofs []Proof, cfg Config) (Settlements, error) {
	if cfg.MinerPoolBps < 0 || cfg.MinerPoolBps > 10000 {
		return Settlements{}, fmt.Errorf("miner pool share %d bps out of range", cfg.MinerPoolBps)
	}
	if cfg.Decimals <= 0 || cfg.Decimals > 18 {
		return Settlements{}, fmt.Errorf("decimals %d out of range", cfg.Decimals)
	}
	if len(proofs) == 0 {
		return Settlements{}, ErrNoProofs
	}

	jobs := make(map[string][]Proof)
	for _, p := range proofs {
		jobs[p.JobID] = append(jobs[p.JobID], p)
	}
	jobIDs := make([]string, 0, len(jobs))
	for id := range jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	earnings := make(map[string]int64)
	var volumeMicro, hiveMicro int64
	var stranded []string

	for _, jobID := range jobIDs {
		jp := jobs[jobID]
		sort.Slice(jp, func(i, j int) bool { return jp[i].ProofID < jp[j].ProofID })

		rewardMicro, err := ToMicro(jp[0].Reward, cfg.Decimals)
		if err != nil {
			return Settlements{}, fmt.Errorf("job %s: %w", jobID, err)
		}
		if cfg.MinerPoolBps != 0 && rewardMicro > math.MaxInt64/int64(cfg.MinerPoolBps) {
			return Settlements{}, fmt.Errorf("job %s: %w: reward too large", jobID, ErrMalformedAmount)
		}
		volumeMicro += rewardMicro
		poolMicro := rewardMicro * int64(cfg.MinerPoolBps) / 10000
		hiveMicro += rewardMicro - poolMicro

		switch jp[0].Mode {
		case ModeSolo:
			// Winner takes the whole pool: first proof in canonical order.
			earnings[jp[0].Provider] += poolMicro

		case ModePPL:
			var totalMillis int64
			millis := make([]int64, len(jp))
			for i, p := range jp {
				if p.ComputeSeconds < 0 {
					return Settlements{}, fmt.Errorf("job %s proof %s: %w: negative compute seconds", jobID, p.ProofID, ErrMalformedAmount)
				}
				millis[i] = int64(math.Round(p.ComputeSeconds * 1000))
				totalMillis += millis[i]
			}
			if totalMillis == 0 {
				// Nothing to apportion. The pool reaches the coordinator
				// through the dust remainder below.
				stranded = append(stranded, jobID)
				continue
			}
			var distributed int64
			for i, p := range jp {
				var payout int64
				if i == len(jp)-1 {
					payout = poolMicro - distributed
				} else {
					n := new(big.Int).SetInt64(poolMicro)
					n.Mul(n, big.NewInt(millis[i]))
					n.Div(n, big.NewInt(totalMillis))
					payout = n.Int64()
				}
				earnings[p.Provider] += payout
				distributed += payout
			}

		default:
			return Settlements{}, fmt.Errorf("%w: %q (job %s)", ErrUnknownMode, jp[0].Mode, jobID)
		}
	}

	var minerMicro int64
	providers := make(map[string]string, len(earnings))
	for provider, micro := range earnings {
		minerMicro += micro
		providers[provider] = FromMicro(micro, cfg.Decimals)
	}

	dustMicro := volumeMicro - minerMicro - hiveMicro
	if dustMicro < 0 {
		return Settlements{}, fmt.Errorf("%w: dust %s", ErrInvariantViolation, FromMicro(dustMicro, cfg.Decimals))
	}
	hiveMicro += dustMicro
	if minerMicro+hiveMicro != volumeMicro {
		return Settlements{}, fmt.Errorf("%w: %d + %d != %d", ErrInvariantViolation, minerMicro, hiveMicro, volumeMicro)
	}

	return Settlements{
		TotalVolume:  FromMicro(volumeMicro, cfg.Decimals),
		MinerPool:    FromMicro(minerMicro, cfg.Decimals),
		HiveOps:      FromMicro(hiveMicro, cfg.Decimals),
		Providers:    providers,
		DustToHive:   FromMicro(dustMicro, cfg.Decimals),
		StrandedJobs: stranded,
	}, nil
}
