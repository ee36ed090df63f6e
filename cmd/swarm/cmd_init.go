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
	"github.com/SudoSuOps/swarmpool/pkg/signature"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register this provider with the pool",
		Long: `Write the local config and publish a signed genesis snapshot.

The wallet is derived from the signing key. The key itself is never
stored; pass it with --key or SWARM_PRIVATE_KEY on every signing command.

Examples:
  swarm init --ens miner.alice.eth --gpus rtx4090 --models queenbee-spine`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, stdout)
		},
	}
	cmd.Flags().String("ens", "", "Provider ENS identity (required)")
	cmd.Flags().String("pool", "swarmpool.eth", "Pool identity")
	cmd.Flags().StringSlice("gpus", nil, "GPU models offered (required)")
	cmd.Flags().StringSlice("models", nil, "Inference models served")
	cmd.Flags().String("ipfs-api", "", "Kubo API URL (default http://localhost:5001/api/v0)")
	cmd.Flags().String("coordinator", "", "Coordinator URL (default http://localhost:8080)")
	_ = cmd.MarkFlagRequired("ens")
	_ = cmd.MarkFlagRequired("gpus")
	return cmd
}

func runInit(cmd *cobra.Command, stdout io.Writer) error {
	ens, _ := cmd.Flags().GetString("ens")
	pool, _ := cmd.Flags().GetString("pool")
	gpus, _ := cmd.Flags().GetStringSlice("gpus")
	models, _ := cmd.Flags().GetStringSlice("models")
	ipfsAPI, _ := cmd.Flags().GetString("ipfs-api")
	coordinator, _ := cmd.Flags().GetString("coordinator")

	key, err := resolveKey(cmd)
	if err != nil {
		return err
	}
	wallet, err := signature.AddressOf(key)
	if err != nil {
		return err
	}

	cfg := xdg.Config{
		Pool:        pool,
		ProviderENS: ens,
		Wallet:      wallet,
		GPUs:        gpus,
		Models:      models,
		IPFSAPI:     ipfsAPI,
		Coordinator: coordinator,
	}
	if err := xdg.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	ctx, cancel := cmdContext()
	defer cancel()

	led := openLedger(cfg)
	if err := led.InitDirectories(ctx); err != nil {
		return fmt.Errorf("preparing ledger directories: %w", err)
	}

	genesis := snapshot.NewGenesis(ens, wallet, gpus, models, time.Now().UTC())
	id, _, err := openPublisher(cfg).Publish(ctx, schema.KindGenesis, ledger.GenesisPath(ens), genesis, key)
	if err != nil {
		return fmt.Errorf("publishing genesis: %w", err)
	}

	fmt.Fprintf(stdout, "%s registered %s\n", style.Success.Render(style.IconPass), style.Bold.Render(ens))
	fmt.Fprintf(stdout, "  Wallet:  %s\n", wallet)
	fmt.Fprintf(stdout, "  Genesis: %s\n", style.Info.Render(id))
	fmt.Fprintf(stdout, "  Config:  %s\n", style.Dim.Render(xdg.ConfigPath()))
	return nil
}
