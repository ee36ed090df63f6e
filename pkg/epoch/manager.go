// Package epoch drives the accounting period lifecycle. An epoch is
// opened active by the controller, accumulates jobs and proofs through
// the pool, and is sealed exactly once: settlement runs over the
// finalized proof set, a commitment is computed over the included proof
// ids, and the sealed record passes the schema gate and is signed before
// it may be published. Sealed is terminal.
package epoch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/settle"
	"github.com/SudoSuOps/swarmpool/pkg/signature"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

var (
	// ErrNoActiveEpoch reports a seal attempt with no epoch designated.
	ErrNoActiveEpoch = errors.New("no active epoch")
	// ErrNotActive reports a seal attempt on an epoch that already left
	// the active state. Sealed epochs are terminal.
	ErrNotActive = errors.New("epoch is not active")
	// ErrGateRejected reports a sealed record the schema gate refused.
	// Nothing is published when this occurs.
	ErrGateRejected = errors.New("sealed epoch failed schema validation")
)

// Manager seals epochs on behalf of the controller, the sole identity
// authorized to do so.
type Manager struct {
	controller string
	privateKey string
	cfg        settle.Config
}

// NewManager builds a manager for the controller identity. The private
// key signs sealed epoch records; cfg fixes the settlement split.
func NewManager(controller, privateKey string, cfg settle.Config) *Manager {
	return &Manager{controller: controller, privateKey: privateKey, cfg: cfg}
}

// Controller returns the identity this manager seals as.
func (m *Manager) Controller() string { return m.controller }

// Open builds a signed active epoch record for the given epoch number.
func (m *Manager) Open(number int, now time.Time) (*snapshot.Epoch, error) {
	ep := &snapshot.Epoch{
		Type:        snapshot.TypeEpoch,
		Version:     snapshot.Version,
		EpochID:     fmt.Sprintf("epoch-%04d", number),
		Name:        Name(number),
		Status:      snapshot.StatusActive,
		StartedAt:   now.Unix(),
		JobsCount:   0,
		TotalVolume: "0",
		Controller:  m.controller,
		Timestamp:   now.Unix(),
		Nonce:       snapshot.Nonce(16),
	}
	if err := m.gateAndSign(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Seal transitions an active epoch to sealed over a finalized proof set.
// The caller must not invoke Seal until proof collection is complete; the
// proof set is treated as closed. Settlement and the commitment are pure
// functions of the proof set, so re-sealing with identical inputs yields
// bit-identical settlements and merkle root.
func (m *Manager) Seal(ep *snapshot.Epoch, proofs []settle.Proof, now time.Time) (*snapshot.Epoch, error) {
	if ep == nil {
		return nil, ErrNoActiveEpoch
	}
	if ep.Status != snapshot.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotActive, ep.EpochID, ep.Status)
	}

	settlements, err := settle.Settle(proofs, m.cfg)
	if err != nil {
		return nil, err
	}

	proofIDs := make([]string, 0, len(proofs))
	jobIDs := make(map[string]struct{})
	for _, p := range proofs {
		proofIDs = append(proofIDs, p.ProofID)
		jobIDs[p.JobID] = struct{}{}
	}
	sort.Strings(proofIDs)

	endedAt := now.Unix()
	sealed := *ep
	sealed.Status = snapshot.StatusSealed
	sealed.EndedAt = &endedAt
	sealed.JobsCount = len(jobIDs)
	sealed.TotalVolume = settlements.TotalVolume
	sealed.MerkleRoot = Commitment(ep.EpochID, len(proofIDs), proofIDs)
	sealed.Settlements = &settlements
	sealed.Timestamp = endedAt
	sealed.Sig = "" // the seal is re-signed over the final contents

	if err := m.gateAndSign(&sealed); err != nil {
		return nil, err
	}
	return &sealed, nil
}

// gateAndSign runs the fail-closed publication pipeline on an epoch
// record: schema gate first, signature only after a clean pass.
func (m *Manager) gateAndSign(ep *snapshot.Epoch) error {
	doc, err := snapshot.Document(ep)
	if err != nil {
		return err
	}
	if res := schema.Validate(doc, schema.KindEpoch); !res.Valid {
		return fmt.Errorf("%w: %s", ErrGateRejected, strings.Join(res.Errors, "; "))
	}
	sig, err := signature.SignDocument(doc, m.privateKey)
	if err != nil {
		return err
	}
	ep.Sig = sig
	return nil
}
