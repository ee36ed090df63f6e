package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func newClaimCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <job-cid>",
		Short: "Claim a job for execution",
		Long: `Fetch a job by its CID and publish a signed claim for it.

The execution mode is fixed at claim time and drives settlement for the
whole job: SOLO pays the first completed proof, PPL splits by compute
contribution.

Examples:
  swarm claim QmXoypiz... --mode SOLO`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(cmd, stdout, args[0])
		},
	}
	cmd.Flags().String("mode", "SOLO", "Execution mode: SOLO or PPL")
	return cmd
}

func runClaim(cmd *cobra.Command, stdout io.Writer, jobCID string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := snapshot.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	key, err := resolveKey(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := cmdContext()
	defer cancel()

	led := openLedger(cfg)
	var job snapshot.Job
	if err := led.Fetch(ctx, jobCID, &job); err != nil {
		return fmt.Errorf("fetching job %s: %w", jobCID, err)
	}

	claim := snapshot.NewClaim(job.JobID, jobCID, cfg.ProviderENS, mode, time.Now().UTC())
	id, doc, err := openPublisher(cfg).Publish(ctx, schema.KindClaim, ledger.ClaimPath(claim.ClaimID), claim, key)
	if err != nil {
		return fmt.Errorf("publishing claim: %w", err)
	}
	// Best-effort announce; the published claim is already authoritative.
	_ = led.Broadcast(ctx, "/"+cfg.Pool+"/claims", doc)

	fmt.Fprintf(stdout, "%s claimed %s as %s\n",
		style.Success.Render(style.IconPass), style.Bold.Render(job.JobID), mode)
	fmt.Fprintf(stdout, "  Claim: %s\n", claim.ClaimID)
	fmt.Fprintf(stdout, "  CID:   %s\n", style.Info.Render(id))
	return nil
}
