package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SudoSuOps/swarmpool/internal/style"
	"github.com/SudoSuOps/swarmpool/internal/xdg"
	"github.com/SudoSuOps/swarmpool/pkg/ledger"
	"github.com/SudoSuOps/swarmpool/pkg/schema"
	"github.com/SudoSuOps/swarmpool/pkg/settle"
	"github.com/SudoSuOps/swarmpool/pkg/snapshot"
)

func newWithdrawCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw settled earnings to the payout wallet",
		Long: `Publish a signed withdrawal request against the provider's settled
balance.

The amount is checked against the balance in the pool state before
anything is signed. The request is honored at the next epoch seal.

Examples:
  swarm withdraw --amount 0.25
  swarm withdraw --amount all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithdraw(cmd, stdout)
		},
	}
	cmd.Flags().String("amount", "all", "Amount to withdraw as a decimal string, or \"all\"")
	cmd.Flags().String("provider", "", "Provider ENS (defaults to the configured identity)")
	return cmd
}

// errNoBalance reports a zero settled balance. It is a normal outcome,
// not a failure.
var errNoBalance = errors.New("no balance available to withdraw")

func runWithdraw(cmd *cobra.Command, stdout io.Writer) error {
	requested, _ := cmd.Flags().GetString("amount")
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
	key, err := resolveKey(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := cmdContext()
	defer cancel()

	led := openLedger(cfg)
	spin := style.StartSpinner(stdout, "fetching balance...")
	state, err := led.PollState(ctx)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("reading pool state: %w", err)
	}
	info, ok := state.ActiveProviders[provider]
	if !ok {
		return fmt.Errorf("provider %s is not in the pool state", provider)
	}

	amount, err := withdrawAmount(requested, info.Balance)
	if errors.Is(err, errNoBalance) {
		fmt.Fprintf(stdout, "%s %s\n", style.Warning.Render(style.IconWarn), err)
		return nil
	}
	if err != nil {
		return err
	}

	wd := snapshot.NewWithdrawal(provider, info.Wallet, amount, time.Now().UTC())
	spin = style.StartSpinner(stdout, "publishing withdrawal...")
	id, doc, err := openPublisher(cfg).Publish(ctx, schema.KindWithdrawal, ledger.WithdrawalPath(wd.WithdrawalID), wd, key)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("publishing withdrawal: %w", err)
	}
	// Best-effort announce; the published request is already authoritative.
	_ = led.Broadcast(ctx, "/"+cfg.Pool+"/withdrawals", doc)

	fmt.Fprintf(stdout, "%s withdrawal requested\n", style.Success.Render(style.IconPass))
	fmt.Fprintf(stdout, "  Amount: %s\n", style.Info.Render(amount))
	fmt.Fprintf(stdout, "  To:     %s\n", style.Dim.Render(info.Wallet))
	fmt.Fprintf(stdout, "  CID:    %s\n", style.Info.Render(id))
	fmt.Fprintf(stdout, "  %s\n", style.Dim.Render("settled at the next epoch seal"))
	return nil
}

// withdrawAmount resolves a requested amount against the available
// balance in exact microunits. "all" withdraws the whole balance.
func withdrawAmount(requested, available string) (string, error) {
	if strings.TrimSpace(available) == "" {
		return "", errNoBalance
	}
	decimals := settle.DefaultConfig().Decimals
	avail, err := settle.ToMicro(available, decimals)
	if err != nil {
		return "", fmt.Errorf("pool state balance: %w", err)
	}
	if avail == 0 {
		return "", errNoBalance
	}
	req := strings.TrimSpace(requested)
	if req == "" || req == "all" {
		return settle.FromMicro(avail, decimals), nil
	}
	want, err := settle.ToMicro(req, decimals)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", req, err)
	}
	if want == 0 {
		return "", errNoBalance
	}
	if want > avail {
		return "", fmt.Errorf("requested %s but only %s available", settle.FromMicro(want, decimals), settle.FromMicro(avail, decimals))
	}
	return settle.FromMicro(want, decimals), nil
}
