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

func newProveCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove <job-cid>",
		Short: "Publish a proof of completed work",
		Long: `Build a proof snapshot for a finished job and publish it.

The proof carries a binding hash over the job, output, provider, and
time; settlement at seal time pays out of the measured compute seconds.

Examples:
  swarm prove QmXoypiz... --output QmOut... --compute-seconds 12.5 --confidence 0.94`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(cmd, stdout, args[0])
		},
	}
	cmd.Flags().String("output", "", "Output data CID (required)")
	cmd.Flags().String("report", "", "Optional report CID")
	cmd.Flags().Float64("compute-seconds", 0, "Total compute seconds used (required)")
	cmd.Flags().Float64("inference-seconds", 0, "Model inference seconds")
	cmd.Flags().Float64("confidence", 0, "Measured output confidence")
	cmd.Flags().String("model-version", "", "Version of the model that ran")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("compute-seconds")
	return cmd
}

func runProve(cmd *cobra.Command, stdout io.Writer, jobCID string) error {
	output, _ := cmd.Flags().GetString("output")
	report, _ := cmd.Flags().GetString("report")
	computeSeconds, _ := cmd.Flags().GetFloat64("compute-seconds")
	inferenceSeconds, _ := cmd.Flags().GetFloat64("inference-seconds")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	modelVersion, _ := cmd.Flags().GetString("model-version")

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

	metrics := snapshot.Metrics{
		InferenceSeconds: inferenceSeconds,
		ComputeSeconds:   computeSeconds,
		Confidence:       confidence,
		ModelVersion:     modelVersion,
	}
	proof := snapshot.NewProof(&job, jobCID, output, cfg.ProviderENS, metrics, time.Now().UTC())
	proof.ReportCID = report

	spin := style.StartSpinner(stdout, "publishing proof...")
	id, doc, err := openPublisher(cfg).Publish(ctx, schema.KindProof, ledger.ProofPath(proof.ProofID), proof, key)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("publishing proof: %w", err)
	}
	_ = led.Broadcast(ctx, "/"+cfg.Pool+"/proofs", doc)

	fmt.Fprintf(stdout, "%s proved %s\n", style.Success.Render(style.IconPass), style.Bold.Render(job.JobID))
	fmt.Fprintf(stdout, "  Proof:   %s\n", proof.ProofID)
	fmt.Fprintf(stdout, "  CID:     %s\n", style.Info.Render(id))
	fmt.Fprintf(stdout, "  Hash:    %s\n", style.Dim.Render(proof.ProofHash))
	fmt.Fprintf(stdout, "  Compute: %.1fs\n", computeSeconds)
	return nil
}
