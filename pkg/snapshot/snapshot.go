// Package snapshot defines the immutable, signed records exchanged by
// clients, providers, and the pool controller. A snapshot is created and
// owned by exactly one actor; once signed it is never mutated — any
// correction is a new snapshot with a new id and nonce.
package snapshot

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/SudoSuOps/swarmpool/pkg/canonhash"
	"github.com/SudoSuOps/swarmpool/pkg/settle"
)

// Version is the wire format version stamped on every snapshot.
const Version = "1.0.0"

// Snapshot kind discriminators.
const (
	TypeGenesis    = "genesis"
	TypeJob        = "job"
	TypeClaim      = "claim"
	TypeProof      = "proof"
	TypeEpoch      = "epoch"
	TypeWithdrawal = "withdrawal"
)

// Epoch states.
const (
	StatusActive = "active"
	StatusSealed = "sealed"
)

// Proof statuses.
const (
	ProofCompleted = "completed"
	ProofFailed    = "failed"
)

// Mode is the execution mode fixed at claim time. It drives settlement
// policy for the whole job.
type Mode string

const (
	// ModeSolo pays the whole miner-pool share to the single winning proof.
	ModeSolo Mode = "SOLO"
	// ModePPL splits the miner-pool share by relative compute contribution.
	ModePPL Mode = "PPL"
)

// ParseMode resolves a user-supplied execution mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeSolo:
		return ModeSolo, nil
	case ModePPL:
		return ModePPL, nil
	}
	return "", fmt.Errorf("invalid mode %q: use SOLO or PPL", s)
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Genesis is a provider's one-time registration with the pool.
type Genesis struct {
	Type      string   `json:"type"`
	Version   string   `json:"version"`
	Provider  string   `json:"provider"`
	Wallet    string   `json:"wallet"`
	GPUs      []string `json:"gpus"`
	Models    []string `json:"models,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Nonce     string   `json:"nonce"`
	Sig       string   `json:"sig,omitempty"`
}

// JobParams carries inference parameters fixed by the client.
type JobParams struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	OutputFormat        string  `json:"output_format"`
}

// Payment is a decimal-string amount plus token symbol. Amounts are never
// carried as binary floats on the wire.
type Payment struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

// Job is a client's work request.
type Job struct {
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	JobID     string    `json:"job_id"`
	Model     string    `json:"model"`
	InputCID  string    `json:"input_cid"`
	Params    JobParams `json:"params"`
	Payment   Payment   `json:"payment"`
	Client    string    `json:"client"`
	Timestamp int64     `json:"timestamp"`
	Nonce     string    `json:"nonce"`
	Sig       string    `json:"sig,omitempty"`
}

// Claim is a provider's intent to execute a job.
type Claim struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	ClaimID   string `json:"claim_id"`
	JobID     string `json:"job_id"`
	JobCID    string `json:"job_cid"`
	Provider  string `json:"provider"`
	Mode      Mode   `json:"mode"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Sig       string `json:"sig,omitempty"`
}

// Metrics reports measured execution of a job.
type Metrics struct {
	InferenceSeconds float64 `json:"inference_seconds"`
	ComputeSeconds   float64 `json:"compute_seconds"`
	Confidence       float64 `json:"confidence"`
	ModelVersion     string  `json:"model_version"`
}

// Proof is a provider's completed-work record.
type Proof struct {
	Type      string  `json:"type"`
	Version   string  `json:"version"`
	ProofID   string  `json:"proof_id"`
	JobID     string  `json:"job_id"`
	JobCID    string  `json:"job_cid"`
	Status    string  `json:"status"`
	OutputCID string  `json:"output_cid"`
	ReportCID string  `json:"report_cid,omitempty"`
	Metrics   Metrics `json:"metrics"`
	Provider  string  `json:"provider"`
	Timestamp int64   `json:"timestamp"`
	ProofHash string  `json:"proof_hash"`
	Nonce     string  `json:"nonce"`
	Sig       string  `json:"sig,omitempty"`
}

// Epoch is the controller's accounting period record. Only the controller
// mutates it, and only once: active -> sealed.
type Epoch struct {
	Type        string              `json:"type"`
	Version     string              `json:"version"`
	EpochID     string              `json:"epoch_id"`
	Name        string              `json:"name"`
	Status      string              `json:"status"`
	StartedAt   int64               `json:"started_at"`
	EndedAt     *int64              `json:"ended_at,omitempty"`
	JobsCount   int                 `json:"jobs_count"`
	TotalVolume string              `json:"total_volume"`
	MerkleRoot  string              `json:"merkle_root,omitempty"`
	Settlements *settle.Settlements `json:"settlements,omitempty"`
	Controller  string              `json:"controller"`
	Timestamp   int64               `json:"timestamp"`
	Nonce       string              `json:"nonce"`
	Sig         string              `json:"sig,omitempty"`
}

// Withdrawal is a provider's signed request to move settled balance to
// its payout wallet. The amount is a decimal string like every other
// monetary value on the wire; it is honored at the next epoch seal.
type Withdrawal struct {
	Type         string `json:"type"`
	Version      string `json:"version"`
	WithdrawalID string `json:"withdrawal_id"`
	Provider     string `json:"provider"`
	Wallet       string `json:"wallet"`
	Amount       string `json:"amount"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        string `json:"nonce"`
	Sig          string `json:"sig,omitempty"`
}

// Nonce returns n random bytes as lowercase hex (2n characters).
func Nonce(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return hex.EncodeToString(b)
}

// NewID builds a record id: prefix, creation time, random suffix.
func NewID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.Unix(), Nonce(4))
}

// ProofHash binds a proof to its job, output, provider, and time.
func ProofHash(jobID, jobCID, outputCID, provider string, timestamp int64) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%d", jobID, jobCID, outputCID, provider, timestamp)
	return canonhash.Keccak256Hex([]byte(data))
}

// NewGenesis builds an unsigned registration snapshot.
func NewGenesis(provider, wallet string, gpus, models []string, now time.Time) *Genesis {
	return &Genesis{
		Type:      TypeGenesis,
		Version:   Version,
		Provider:  provider,
		Wallet:    wallet,
		GPUs:      gpus,
		Models:    models,
		Timestamp: now.Unix(),
		Nonce:     Nonce(16),
	}
}

// NewJob builds an unsigned job snapshot with a fresh id and nonce.
func NewJob(client, model, inputCID string, params JobParams, payment Payment, now time.Time) *Job {
	return &Job{
		Type:      TypeJob,
		Version:   Version,
		JobID:     NewID("job", now),
		Model:     model,
		InputCID:  inputCID,
		Params:    params,
		Payment:   payment,
		Client:    client,
		Timestamp: now.Unix(),
		Nonce:     Nonce(16),
	}
}

// NewClaim builds an unsigned claim snapshot. Mode is fixed here for the
// life of the job.
func NewClaim(jobID, jobCID, provider string, mode Mode, now time.Time) *Claim {
	return &Claim{
		Type:      TypeClaim,
		Version:   Version,
		ClaimID:   NewID("claim", now),
		JobID:     jobID,
		JobCID:    jobCID,
		Provider:  provider,
		Mode:      mode,
		Timestamp: now.Unix(),
		Nonce:     Nonce(16),
	}
}

// NewProof builds an unsigned proof snapshot with its binding hash.
func NewProof(job *Job, jobCID, outputCID, provider string, metrics Metrics, now time.Time) *Proof {
	ts := now.Unix()
	return &Proof{
		Type:      TypeProof,
		Version:   Version,
		ProofID:   fmt.Sprintf("proof-%s-%s", job.JobID, Nonce(4)),
		JobID:     job.JobID,
		JobCID:    jobCID,
		Status:    ProofCompleted,
		OutputCID: outputCID,
		Metrics:   metrics,
		Provider:  provider,
		Timestamp: ts,
		ProofHash: ProofHash(job.JobID, jobCID, outputCID, provider, ts),
		Nonce:     Nonce(16),
	}
}

// NewWithdrawal builds an unsigned withdrawal request snapshot.
func NewWithdrawal(provider, wallet, amount string, now time.Time) *Withdrawal {
	return &Withdrawal{
		Type:         TypeWithdrawal,
		Version:      Version,
		WithdrawalID: NewID("withdrawal", now),
		Provider:     provider,
		Wallet:       wallet,
		Amount:       amount,
		Timestamp:    now.Unix(),
		Nonce:        Nonce(16),
	}
}

// Document converts a snapshot to the generic form consumed by the schema
// gate, with numeric literals preserved.
func Document(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
