package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the coordinator's Postgres archive. The content-addressed
// ledger stays authoritative; the archive exists for lookups the ledger
// cannot answer (wallet by provider, unsettled proofs, epoch history).
type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

var ErrNotFound = errors.New("not found")

// Migrate creates the archive tables. Safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  snapshot_id TEXT PRIMARY KEY,
  kind        TEXT NOT NULL,
  provider    TEXT,
  job_id      TEXT,
  epoch_id    TEXT,
  content_id  TEXT NOT NULL,
  body        JSONB NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS snapshots_kind_idx ON snapshots(kind, snapshot_id);
CREATE INDEX IF NOT EXISTS snapshots_provider_idx ON snapshots(provider) WHERE kind='genesis';

CREATE TABLE IF NOT EXISTS epochs (
  epoch_id   TEXT PRIMARY KEY,
  status     TEXT NOT NULL,
  body       JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  sealed_at  TIMESTAMPTZ
);
`)
	return err
}

type Snapshot struct {
	SnapshotID string          `json:"snapshot_id"`
	Kind       string          `json:"kind"`
	ContentID  string          `json:"content_id"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SaveSnapshot archives a gated, signed record under its record id.
// Re-publishing the same id replaces the row; the ledger keeps every
// version by content id.
func (s *Store) SaveSnapshot(ctx context.Context, snapshotID, kind, provider, jobID, contentID string, body []byte) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO snapshots(snapshot_id,kind,provider,job_id,content_id,body)
VALUES($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6::jsonb)
ON CONFLICT (snapshot_id) DO UPDATE SET content_id=EXCLUDED.content_id, body=EXCLUDED.body
`, snapshotID, kind, provider, jobID, contentID, string(body))
	return err
}

func (s *Store) GetSnapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	var out Snapshot
	err := s.DB.QueryRow(ctx, `
SELECT snapshot_id,kind,content_id,body,created_at FROM snapshots WHERE snapshot_id=$1
`, snapshotID).Scan(&out.SnapshotID, &out.Kind, &out.ContentID, &out.Body, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return out, err
}

// WalletFor returns the registered payout wallet for a provider, from its
// genesis snapshot.
func (s *Store) WalletFor(ctx context.Context, provider string) (string, error) {
	var wallet string
	err := s.DB.QueryRow(ctx, `
SELECT body->>'wallet' FROM snapshots WHERE kind='genesis' AND provider=$1
ORDER BY created_at DESC LIMIT 1
`, provider).Scan(&wallet)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return wallet, err
}

// ModeFor returns the execution mode fixed by the first claim on a job.
func (s *Store) ModeFor(ctx context.Context, jobID string) (string, error) {
	var mode string
	err := s.DB.QueryRow(ctx, `
SELECT body->>'mode' FROM snapshots WHERE kind='claim' AND job_id=$1
ORDER BY snapshot_id ASC LIMIT 1
`, jobID).Scan(&mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return mode, err
}

// RewardFor returns a job's posted payment amount as its decimal string.
func (s *Store) RewardFor(ctx context.Context, jobID string) (string, error) {
	var amount string
	err := s.DB.QueryRow(ctx, `
SELECT body->'payment'->>'amount' FROM snapshots WHERE kind='job' AND snapshot_id=$1
`, jobID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return amount, err
}

// ListOpenProofs returns proofs not yet bound to a sealed epoch, in
// canonical ascending proof-id order.
func (s *Store) ListOpenProofs(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := s.DB.Query(ctx, `
SELECT body FROM snapshots WHERE kind='proof' AND epoch_id IS NULL
ORDER BY snapshot_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var body json.RawMessage
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

// BindProofsToEpoch marks proofs as settled in the given epoch.
func (s *Store) BindProofsToEpoch(ctx context.Context, epochID string, proofIDs []string) error {
	_, err := s.DB.Exec(ctx, `
UPDATE snapshots SET epoch_id=$1 WHERE kind='proof' AND snapshot_id=ANY($2)
`, epochID, proofIDs)
	return err
}

type EpochRow struct {
	EpochID  string          `json:"epoch_id"`
	Status   string          `json:"status"`
	Body     json.RawMessage `json:"body"`
	SealedAt *time.Time      `json:"sealed_at,omitempty"`
}

func (s *Store) SaveEpoch(ctx context.Context, epochID, status string, body []byte, sealedAt *time.Time) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO epochs(epoch_id,status,body,sealed_at)
VALUES($1,$2,$3::jsonb,$4)
ON CONFLICT (epoch_id) DO UPDATE SET status=EXCLUDED.status, body=EXCLUDED.body, sealed_at=EXCLUDED.sealed_at
`, epochID, status, string(body), sealedAt)
	return err
}

func (s *Store) GetEpoch(ctx context.Context, epochID string) (EpochRow, error) {
	var out EpochRow
	err := s.DB.QueryRow(ctx, `
SELECT epoch_id,status,body,sealed_at FROM epochs WHERE epoch_id=$1
`, epochID).Scan(&out.EpochID, &out.Status, &out.Body, &out.SealedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return EpochRow{}, ErrNotFound
	}
	return out, err
}

func (s *Store) ListEpochs(ctx context.Context) ([]EpochRow, error) {
	rows, err := s.DB.Query(ctx, `
SELECT epoch_id,status,body,sealed_at FROM epochs ORDER BY epoch_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpochRow
	for rows.Next() {
		var e EpochRow
		if err := rows.Scan(&e.EpochID, &e.Status, &e.Body, &e.SealedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NextEpochNumber returns one past the highest archived epoch number.
// Epoch ids are zero-padded, so max() over the text column follows
// numeric order.
func (s *Store) NextEpochNumber(ctx context.Context) (int, error) {
	var last *string
	if err := s.DB.QueryRow(ctx, `SELECT max(epoch_id) FROM epochs`).Scan(&last); err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	n, err := epochNumber(*last)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// epochNumber extracts the numeric part of an id like "epoch-0007".
func epochNumber(epochID string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(epochID, "epoch-"))
	if err != nil {
		return 0, fmt.Errorf("malformed epoch id %q: %w", epochID, err)
	}
	return n, nil
}
