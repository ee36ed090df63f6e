// Package ledger is the boundary to the content-addressed storage and
// broadcast layer. The core only ever publishes fully validated, signed
// snapshots to fixed canonical paths and reads immutable payloads back by
// content id; shared pool state is observed as a read-only snapshot,
// never as a live structure.
package ledger

import (
	"context"
	"errors"
)

// ErrNotFound reports an unknown content id or path.
var ErrNotFound = errors.New("record not found")

// Canonical path roots, one directory per snapshot kind.
const (
	Root            = "/swarmpool"
	GenesisRoot     = Root + "/genesis"
	JobsRoot        = Root + "/jobs"
	ClaimsRoot      = Root + "/claims"
	ProofsRoot      = Root + "/proofs"
	EpochsRoot      = Root + "/epochs"
	WithdrawalsRoot = Root + "/withdrawals"
	IndexRoot       = Root + "/index"
)

// Canonical paths, one file per record id.
func GenesisPath(provider string) string { return GenesisRoot + "/" + provider + ".json" }
func JobPath(jobID string) string        { return JobsRoot + "/" + jobID + ".json" }
func ClaimPath(claimID string) string    { return ClaimsRoot + "/" + claimID + ".json" }
func ProofPath(proofID string) string    { return ProofsRoot + "/" + proofID + ".json" }
func EpochPath(epochID string) string    { return EpochsRoot + "/" + epochID + ".json" }

func WithdrawalPath(withdrawalID string) string {
	return WithdrawalsRoot + "/" + withdrawalID + ".json"
}

// ProviderInfo is the pool's view of one registered provider.
type ProviderInfo struct {
	ENS           string   `json:"ens"`
	Wallet        string   `json:"wallet"`
	Status        string   `json:"status"`
	GPUs          []string `json:"gpus,omitempty"`
	Models        []string `json:"models,omitempty"`
	JobsCompleted int64    `json:"jobs_completed"`
	// Balance is the provider's settled, withdrawable amount as a
	// decimal string.
	Balance string `json:"balance,omitempty"`
}

// PoolState is an immutable snapshot of shared pool state, produced by
// the storage layer. The core never mutates it.
type PoolState struct {
	PoolID          string                  `json:"pool_id"`
	TotalJobs       int64                   `json:"total_jobs"`
	TotalProofs     int64                   `json:"total_proofs"`
	CurrentEpoch    string                  `json:"current_epoch,omitempty"`
	EpochJobs       int64                   `json:"epoch_jobs"`
	PendingJobs     []string                `json:"pending_jobs,omitempty"`
	ActiveProviders map[string]ProviderInfo `json:"active_providers,omitempty"`
	LastUpdated     int64                   `json:"last_updated"`
}

// Ledger is the external storage/transport collaborator.
type Ledger interface {
	// Publish stores a record at its canonical path and returns its
	// content id.
	Publish(ctx context.Context, path string, record any) (string, error)
	// Fetch reads the record with the given content id into dst.
	Fetch(ctx context.Context, id string, dst any) error
	// Broadcast sends a message on a pubsub topic. Delivery is at most
	// once; the core never depends on it for correctness.
	Broadcast(ctx context.Context, topic string, message any) error
	// PollState returns the current shared pool state snapshot.
	PollState(ctx context.Context) (PoolState, error)
}
