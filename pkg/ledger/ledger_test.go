package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

var contentIDPattern = regexp.MustCompile(`^(bafy|Qm)[a-zA-Z0-9]+$`)

func TestMemoryPublishFetchRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	job := snapshot.NewJob("clinic.eth", "queenbee-spine", "Qmabc",
		snapshot.JobParams{ConfidenceThreshold: 0.85, OutputFormat: "json"},
		snapshot.Payment{Amount: "0.10", Token: "USDC"}, time.Unix(1704067200, 0))

	id, err := m.Publish(ctx, JobPath(job.JobID), job)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !contentIDPattern.MatchString(id) {
		t.Fatalf("content id %q does not match the wire format", id)
	}

	var got snapshot.Job
	if err := m.Fetch(ctx, id, &got); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.JobID != job.JobID || got.Payment.Amount != "0.10" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMemoryIdenticalRecordsShareID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec := map[string]any{"a": 1}
	id1, _ := m.Publish(ctx, "/swarmpool/jobs/a.json", rec)
	id2, _ := m.Publish(ctx, "/swarmpool/jobs/b.json", rec)
	if id1 != id2 {
		t.Fatalf("content addressing broken: %s vs %s", id1, id2)
	}
}

func TestMemoryFetchUnknownID(t *testing.T) {
	m := NewMemory()
	var dst map[string]any
	err := m.Fetch(context.Background(), "QmDoesNotExist", &dst)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryBroadcastObserved(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Broadcast(ctx, "/swarmpool.eth/jobs", map[string]any{"job_id": "job-1"}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	msgs := m.Messages("/swarmpool.eth/jobs")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestCanonicalPaths(t *testing.T) {
	if got := JobPath("job-1"); got != "/swarmpool/jobs/job-1.json" {
		t.Fatalf("job path %s", got)
	}
	if got := EpochPath("epoch-0001"); got != "/swarmpool/epochs/epoch-0001.json" {
		t.Fatalf("epoch path %s", got)
	}
	if got := GenesisPath("miner.alice.eth"); got != "/swarmpool/genesis/miner.alice.eth.json" {
		t.Fatalf("genesis path %s", got)
	}
}
