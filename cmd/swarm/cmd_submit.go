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

func newSubmitCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a signed job to the pool",
		Long: `Build a job snapshot, gate it, sign it, and publish it.

The payment amount is a decimal string; it is carried exactly as given
and settled in exact microunits at seal time.

Examples:
  swarm submit --model queenbee-spine --input QmXoypiz... --amount 0.10 --token USDC`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, stdout)
		},
	}
	cmd.Flags().String("model", "", "Model the job targets (required)")
	cmd.Flags().String("input", "", "Input data CID (required)")
	cmd.Flags().String("amount", "", "Payment amount as a decimal string (required)")
	cmd.Flags().String("token", "USDC", "Payment token symbol")
	cmd.Flags().Float64("confidence", 0.85, "Minimum confidence threshold")
	cmd.Flags().String("format", "json", "Requested output format")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runSubmit(cmd *cobra.Command, stdout io.Writer) error {
	model, _ := cmd.Flags().GetString("model")
	input, _ := cmd.Flags().GetString("input")
	amount, _ := cmd.Flags().GetString("amount")
	token, _ := cmd.Flags().GetString("token")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	key, err := resolveKey(cmd)
	if err != nil {
		return err
	}

	job := snapshot.NewJob(cfg.ProviderENS, model, input,
		snapshot.JobParams{ConfidenceThreshold: confidence, OutputFormat: format},
		snapshot.Payment{Amount: amount, Token: token},
		time.Now().UTC())

	ctx, cancel := cmdContext()
	defer cancel()

	led := openLedger(cfg)
	spin := style.StartSpinner(stdout, "publishing job...")
	id, doc, err := openPublisher(cfg).Publish(ctx, schema.KindJob, ledger.JobPath(job.JobID), job, key)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("publishing job: %w", err)
	}
	// Best-effort announce; the published job is already authoritative.
	_ = led.Broadcast(ctx, "/"+cfg.Pool+"/jobs", doc)

	fmt.Fprintf(stdout, "%s submitted %s\n", style.Success.Render(style.IconPass), style.Bold.Render(job.JobID))
	fmt.Fprintf(stdout, "  CID:    %s\n", style.Info.Render(id))
	fmt.Fprintf(stdout, "  Reward: %s %s\n", amount, token)
	return nil
}
