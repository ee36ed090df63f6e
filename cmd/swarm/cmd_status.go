package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
)

func newStatusCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the pool state snapshot",
		Long: `Read the shared pool state from the ledger and display it.

The state is an immutable snapshot written by the coordinator; this
command never mutates anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, stdout)
		},
	}
}

func runStatus(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := xdg.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := cmdContext()
	defer cancel()

	state, err := openLedger(cfg).PollState(ctx)
	if err != nil {
		return fmt.Errorf("reading pool state: %w", err)
	}

	fmt.Fprintf(stdout, "%s\n", style.Bold.Render(state.PoolID))
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Jobs:     %d total", state.TotalJobs)
	if state.CurrentEpoch != "" {
		fmt.Fprintf(stdout, ", %d this epoch (%s)", state.EpochJobs, state.CurrentEpoch)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Proofs:   %d\n", state.TotalProofs)
	if len(state.PendingJobs) > 0 {
		fmt.Fprintf(stdout, "  Pending:  %d\n", len(state.PendingJobs))
	}

	if len(state.ActiveProviders) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  Providers:\n")
		names := make([]string, 0, len(state.ActiveProviders))
		for name := range state.ActiveProviders {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := state.ActiveProviders[name]
			fmt.Fprintf(stdout, "    %s %s (%d jobs)\n",
				style.Info.Render(name), style.Dim.Render(p.Wallet), p.JobsCompleted)
		}
	}

	if state.LastUpdated > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  Updated: %s\n",
			style.Dim.Render(time.Unix(state.LastUpdated, 0).UTC().Format(time.RFC3339)))
	}
	return nil
}
