package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func newSealCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal [epoch-id]",
		Short: "Seal an epoch, or open the next one",
		Long: `Ask the coordinator to seal an active epoch over its proof set.

Sealing settles every unsettled proof in exact microunits, computes the
epoch commitment, and signs the sealed record. Sealed is terminal.

Examples:
  swarm seal --open
  swarm seal epoch-0001`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			open, _ := cmd.Flags().GetBool("open")
			if open {
				if len(args) != 0 {
					return fmt.Errorf("--open takes no epoch id")
				}
				return runOpenEpoch(cmd, stdout)
			}
			if len(args) != 1 {
				return fmt.Errorf("an epoch id is required (or pass --open)")
			}
			return runSeal(cmd, stdout, args[0])
		},
	}
	cmd.Flags().Bool("open", false, "Open the next epoch instead of sealing")
	return cmd
}

func runOpenEpoch(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext()
	defer cancel()

	var resp struct {
		Epoch snapshot.Epoch `json:"epoch"`
	}
	if err := postCoordinator(ctx, cfg, "/epochs/open", nil, &resp); err != nil {
		return err
	}
	ep := resp.Epoch
	fmt.Fprintf(stdout, "%s opened %s (%s)\n",
		style.Success.Render(style.IconPass), style.Bold.Render(ep.EpochID), ep.Name)
	return nil
}

func runSeal(cmd *cobra.Command, stdout io.Writer, epochID string) error {
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext()
	defer cancel()

	spin := style.StartSpinner(stdout, "sealing "+epochID+"...")
	var resp struct {
		Epoch snapshot.Epoch `json:"epoch"`
	}
	err = postCoordinator(ctx, cfg, "/epochs/"+epochID+"/seal", nil, &resp)
	spin.Stop()
	if err != nil {
		return err
	}

	ep := resp.Epoch
	fmt.Fprintf(stdout, "%s sealed %s (%s)\n",
		style.Success.Render(style.IconPass), style.Bold.Render(ep.EpochID), ep.Name)
	fmt.Fprintf(stdout, "  Jobs:       %d\n", ep.JobsCount)
	fmt.Fprintf(stdout, "  Volume:     %s\n", ep.TotalVolume)
	fmt.Fprintf(stdout, "  Commitment: %s\n", style.Dim.Render(ep.MerkleRoot))

	if ep.Settlements == nil {
		return nil
	}
	s := ep.Settlements
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Miner pool: %s\n", s.MinerPool)
	fmt.Fprintf(stdout, "  Hive ops:   %s\n", s.HiveOps)
	if s.DustToHive != "0" {
		fmt.Fprintf(stdout, "  Dust:       %s\n", style.Dim.Render(s.DustToHive))
	}

	providers := make([]string, 0, len(s.Providers))
	for p := range s.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Fprintf(stdout, "    %s %s\n", style.Info.Render(p), s.Providers[p])
	}
	for _, job := range s.StrandedJobs {
		fmt.Fprintf(stdout, "  %s stranded: %s (zero compute reported)\n",
			style.Warning.Render(style.IconWarn), job)
	}
	return nil
}
