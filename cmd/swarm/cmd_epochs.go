package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func newEpochsCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "epochs [epoch-id]",
		Short: "List epochs, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runEpochDetail(cmd, stdout, args[0])
			}
			return runEpochList(cmd, stdout)
		},
	}
}

type epochRow struct {
	EpochID  string          `json:"epoch_id"`
	Status   string          `json:"status"`
	Body     json.RawMessage `json:"body"`
	SealedAt *string         `json:"sealed_at,omitempty"`
}

func runEpochList(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext()
	defer cancel()

	var resp struct {
		Epochs []epochRow `json:"epochs"`
	}
	if err := getCoordinator(ctx, cfg, "/epochs", &resp); err != nil {
		return err
	}
	if len(resp.Epochs) == 0 {
		fmt.Fprintf(stdout, "%s\n", style.Dim.Render("no epochs yet (run `swarm seal --open`)"))
		return nil
	}
	for _, row := range resp.Epochs {
		var ep snapshot.Epoch
		if err := json.Unmarshal(row.Body, &ep); err != nil {
			return fmt.Errorf("decoding epoch %s: %w", row.EpochID, err)
		}
		status := style.Warning.Render(row.Status)
		if row.Status == snapshot.StatusSealed {
			status = style.Success.Render(row.Status)
		}
		fmt.Fprintf(stdout, "%s  %-8s %-7s jobs=%d volume=%s\n",
			style.Bold.Render(ep.EpochID), ep.Name, status, ep.JobsCount, ep.TotalVolume)
	}
	return nil
}

func runEpochDetail(cmd *cobra.Command, stdout io.Writer, epochID string) error {
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext()
	defer cancel()

	var resp struct {
		Epoch epochRow `json:"epoch"`
	}
	if err := getCoordinator(ctx, cfg, "/epochs/"+epochID, &resp); err != nil {
		return err
	}
	var ep snapshot.Epoch
	if err := json.Unmarshal(resp.Epoch.Body, &ep); err != nil {
		return fmt.Errorf("decoding epoch %s: %w", epochID, err)
	}

	fmt.Fprintf(stdout, "%s (%s)\n", style.Bold.Render(ep.EpochID), ep.Name)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Status:     %s\n", ep.Status)
	fmt.Fprintf(stdout, "  Controller: %s\n", ep.Controller)
	fmt.Fprintf(stdout, "  Jobs:       %d\n", ep.JobsCount)
	fmt.Fprintf(stdout, "  Volume:     %s\n", ep.TotalVolume)
	if ep.MerkleRoot != "" {
		fmt.Fprintf(stdout, "  Commitment: %s\n", style.Dim.Render(ep.MerkleRoot))
	}
	if ep.Settlements != nil {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  Miner pool: %s\n", ep.Settlements.MinerPool)
		fmt.Fprintf(stdout, "  Hive ops:   %s\n", ep.Settlements.HiveOps)
		providers := make([]string, 0, len(ep.Settlements.Providers))
		for provider := range ep.Settlements.Providers {
			providers = append(providers, provider)
		}
		sort.Strings(providers)
		for _, provider := range providers {
			fmt.Fprintf(stdout, "    %s %s\n", style.Info.Render(provider), ep.Settlements.Providers[provider])
		}
	}
	return nil
}
