// Package epochsvc orchestrates epoch lifecycle against the archive and
// the ledger: it gathers the finalized proof set, resolves each job's
// mode and reward, delegates sealing to the epoch manager, and persists
// the result on both sides.
package epochsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SudoSuOps/swarmpool/pkg/epoch"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/publisher"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/settle"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
	"github.com/SudoSuOps/swarmpool/services/coordinator/internal/store"
)

// ErrMissingClaim reports a proof whose job was never claimed, so no
// execution mode is on record. Sealing refuses rather than guessing.
var ErrMissingClaim = errors.New("proof has no claim fixing its mode")

// Archive is the slice of the coordinator store the service needs.
type Archive interface {
	ListOpenProofs(ctx context.Context) ([]json.RawMessage, error)
	ModeFor(ctx context.Context, jobID string) (string, error)
	RewardFor(ctx context.Context, jobID string) (string, error)
	BindProofsToEpoch(ctx context.Context, epochID string, proofIDs []string) error
	SaveEpoch(ctx context.Context, epochID, status string, body []byte, sealedAt *time.Time) error
	GetEpoch(ctx context.Context, epochID string) (store.EpochRow, error)
	NextEpochNumber(ctx context.Context) (int, error)
}

type Service struct {
	archive Archive
	manager *epoch.Manager
	pub     *publisher.Publisher
}

func New(archive Archive, manager *epoch.Manager, pub *publisher.Publisher) *Service {
	return &Service{archive: archive, manager: manager, pub: pub}
}

// OpenNext opens the next epoch in sequence, publishes the signed record,
// and archives it.
func (s *Service) OpenNext(ctx context.Context, now time.Time) (*snapshot.Epoch, error) {
	number, err := s.archive.NextEpochNumber(ctx)
	if err != nil {
		return nil, err
	}
	ep, err := s.manager.Open(number, now)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, ep, nil); err != nil {
		return nil, err
	}
	return ep, nil
}

// Seal closes the named epoch over every proof not yet bound to a sealed
// epoch. The proof set is read once and treated as final.
func (s *Service) Seal(ctx context.Context, epochID string, now time.Time) (*snapshot.Epoch, error) {
	row, err := s.archive.GetEpoch(ctx, epochID)
	if err != nil {
		return nil, err
	}
	var ep snapshot.Epoch
	if err := json.Unmarshal(row.Body, &ep); err != nil {
		return nil, fmt.Errorf("decoding archived epoch %s: %w", epochID, err)
	}

	proofs, proofIDs, err := s.collectProofs(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := s.manager.Seal(&ep, proofs, now)
	if err != nil {
		return nil, err
	}

	sealedAt := now
	if err := s.persist(ctx, sealed, &sealedAt); err != nil {
		return nil, err
	}
	if err := s.archive.BindProofsToEpoch(ctx, sealed.EpochID, proofIDs); err != nil {
		return nil, err
	}
	return sealed, nil
}

// collectProofs resolves the open proof set into settlement inputs. Each
// proof needs its job's claimed mode and posted reward.
func (s *Service) collectProofs(ctx context.Context) ([]settle.Proof, []string, error) {
	raw, err := s.archive.ListOpenProofs(ctx)
	if err != nil {
		return nil, nil, err
	}
	proofs := make([]settle.Proof, 0, len(raw))
	proofIDs := make([]string, 0, len(raw))
	for _, body := range raw {
		var p snapshot.Proof
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, nil, fmt.Errorf("decoding archived proof: %w", err)
		}
		mode, err := s.archive.ModeFor(ctx, p.JobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, fmt.Errorf("%w: %s", ErrMissingClaim, p.ProofID)
			}
			return nil, nil, err
		}
		reward, err := s.archive.RewardFor(ctx, p.JobID)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving reward for %s: %w", p.JobID, err)
		}
		proofs = append(proofs, settle.Proof{
			ProofID:        p.ProofID,
			JobID:          p.JobID,
			Provider:       p.Provider,
			Mode:           mode,
			ComputeSeconds: p.Metrics.ComputeSeconds,
			Reward:         reward,
		})
		proofIDs = append(proofIDs, p.ProofID)
	}
	return proofs, proofIDs, nil
}

// persist publishes the signed epoch record to the ledger and archives it.
func (s *Service) persist(ctx context.Context, ep *snapshot.Epoch, sealedAt *time.Time) error {
	doc, err := snapshot.Document(ep)
	if err != nil {
		return err
	}
	if _, err := s.pub.PublishSigned(ctx, schema.KindEpoch, ledger.EpochPath(ep.EpochID), doc); err != nil {
		return err
	}
	body, err := json.Marshal(ep)
	if err != nil {
		return err
	}
	return s.archive.SaveEpoch(ctx, ep.EpochID, ep.Status, body, sealedAt)
}
