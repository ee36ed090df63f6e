package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
)

const (
	watchPollEvery      = 2 * time.Second
	watchHeartbeatEvery = 30 * time.Second
)

func newWatchCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the pool for claimable jobs",
		Long: `Poll the shared pool state and announce jobs waiting for a claim.

While watching, a presence heartbeat is broadcast on the pool's
heartbeat topic so the coordinator can see the provider is online.
Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, stdout)
		},
	}
	cmd.Flags().String("models", "", "Comma-separated models to announce (defaults to config)")
	cmd.Flags().String("provider", "", "Provider ENS (defaults to the configured identity)")
	return cmd
}

func runWatch(cmd *cobra.Command, stdout io.Writer) error {
	modelsFlag, _ := cmd.Flags().GetString("models")
	providerFlag, _ := cmd.Flags().GetString("provider")

	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	provider := strings.TrimSpace(providerFlag)
	if provider == "" {
		provider = cfg.ProviderENS
	}
	if provider == "" {
		return fmt.Errorf("no provider identity: run `swarm init` or pass --provider")
	}
	models := cfg.Models
	if strings.TrimSpace(modelsFlag) != "" {
		models = nil
		for _, m := range strings.Split(modelsFlag, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	led := openLedger(cfg)

	fmt.Fprintf(stdout, "%s\n", style.Bold.Render("watching /"+cfg.Pool+"/jobs"))
	fmt.Fprintf(stdout, "  Provider: %s\n", style.Info.Render(provider))
	if len(models) > 0 {
		fmt.Fprintf(stdout, "  Models:   %s\n", strings.Join(models, ", "))
	}
	fmt.Fprintf(stdout, "  %s\n\n", style.Dim.Render("press Ctrl+C to stop"))

	poll := time.NewTicker(watchPollEvery)
	defer poll.Stop()
	beat := time.NewTicker(watchHeartbeatEvery)
	defer beat.Stop()

	seen := make(map[string]bool)
	jobsSeen := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(stdout, "\n%s stopped after %d job(s)\n", style.Dim.Render("watch"), jobsSeen)
			return nil
		case <-poll.C:
			state, err := led.PollState(ctx)
			if err != nil {
				continue // transient; the next tick retries
			}
			jobsSeen += announceJobs(stdout, state, seen)
		case <-beat.C:
			// Best-effort presence signal; watching never depends on it.
			_ = led.Broadcast(ctx, "/"+cfg.Pool+"/heartbeats", heartbeat(provider, models, time.Now().UTC().Unix()))
		}
	}
}

// announceJobs prints every pending job not yet announced and returns
// how many were new.
func announceJobs(stdout io.Writer, state ledger.PoolState, seen map[string]bool) int {
	found := 0
	for _, jobCID := range state.PendingJobs {
		if seen[jobCID] {
			continue
		}
		seen[jobCID] = true
		found++
		fmt.Fprintf(stdout, "%s job available: %s\n", style.Warning.Render(style.IconWarn), style.Info.Render(jobCID))
		fmt.Fprintf(stdout, "    %s\n", style.Dim.Render("claim with: swarm claim "+jobCID))
	}
	return found
}

// heartbeat is the presence message broadcast while watching.
func heartbeat(provider string, models []string, timestamp int64) map[string]any {
	return map[string]any{
		"provider":  provider,
		"status":    "watching",
		"models":    models,
		"timestamp": timestamp,
	}
}
