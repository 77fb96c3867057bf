package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reserveScope/internal/signer"
	"reserveScope/internal/state"
	"reserveScope/internal/token"
)

func writeCommands() []*cobra.Command {
	transferCmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer tokens to an account",
		Args:  cobra.ExactArgs(2),
		RunE:  runTransfer,
	}

	approveCmd := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Allow a spender to draw from your balance",
		Args:  cobra.ExactArgs(2),
		RunE:  runApprove,
	}

	transferFromCmd := &cobra.Command{
		Use:   "transfer-from <owner> <to> <amount>",
		Short: "Move tokens from an owner using your allowance",
		Args:  cobra.ExactArgs(3),
		RunE:  runTransferFrom,
	}

	mintCmd := &cobra.Command{
		Use:   "mint <to> <amount>",
		Short: "Issue tokens to an account (contract owner only)",
		Args:  cobra.ExactArgs(2),
		RunE:  runMint,
	}

	burnCmd := &cobra.Command{
		Use:   "burn <from> <amount>",
		Short: "Destroy tokens held by an account (contract owner only)",
		Args:  cobra.ExactArgs(2),
		RunE:  runBurn,
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record a new contract snapshot (contract owner only)",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot,
	}

	cmds := []*cobra.Command{transferCmd, approveCmd, transferFromCmd, mintCmd, burnCmd, snapshotCmd}
	for _, c := range cmds {
		c.Flags().String("key", "", "hex private key (or TOKENCTL_KEY)")
		c.Flags().Bool("yes", false, "submit without confirmation prompt")
	}
	return cmds
}

func runTransfer(cmd *cobra.Command, args []string) error {
	to, err := parseAddressArg("recipient", args[0])
	if err != nil {
		return err
	}
	amount := args[1]
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.Transfer(ctx, s, to, amount)
	})
}

func runApprove(cmd *cobra.Command, args []string) error {
	spender, err := parseAddressArg("spender", args[0])
	if err != nil {
		return err
	}
	amount := args[1]
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.Approve(ctx, s, spender, amount)
	})
}

func runTransferFrom(cmd *cobra.Command, args []string) error {
	owner, err := parseAddressArg("owner", args[0])
	if err != nil {
		return err
	}
	to, err := parseAddressArg("recipient", args[1])
	if err != nil {
		return err
	}
	amount := args[2]
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.TransferFrom(ctx, s, owner, to, amount)
	})
}

func runMint(cmd *cobra.Command, args []string) error {
	to, err := parseAddressArg("recipient", args[0])
	if err != nil {
		return err
	}
	amount := args[1]
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.Mint(ctx, s, to, amount)
	})
}

func runBurn(cmd *cobra.Command, args []string) error {
	from, err := parseAddressArg("holder", args[0])
	if err != nil {
		return err
	}
	amount := args[1]
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.Burn(ctx, s, from, amount)
	})
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	return runWrite(cmd, func(ctx context.Context, a *app, s state.Session) (*state.Write, error) {
		return a.manager.CheckpointSnapshot(ctx, s)
	})
}

// runWrite wires the signer, submits through the manager, and follows the
// write to its terminal state.
func runWrite(cmd *cobra.Command, submit func(context.Context, *app, state.Session) (*state.Write, error)) error {
	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.PrivateKey == "" {
		return token.ErrSignerUnavailable
	}
	local, err := signer.NewLocal(a.cfg.PrivateKey, a.client, a.logger)
	if err != nil {
		return err
	}
	if !a.cfg.AutoApprove {
		local.SetApproval(promptApproval)
	}

	// Amount conversion needs the token's decimals.
	if _, err := a.manager.TokenView(ctx, a.cfg.Network); err != nil {
		return err
	}

	session := state.Session{ChainID: a.cfg.Network, Account: local.Address(), Signer: local}
	w, err := submit(ctx, a, session)
	if err != nil {
		return err
	}

	status := w.Tracker.Current()
	fmt.Printf("submitted: %s\n", status.TxHash.Hex())

	sub := w.Tracker.Subscribe()
	go func() {
		for st := range sub {
			a.logger.Info("lifecycle", zap.String("state", string(st.State)))
		}
	}()

	if err := a.manager.Await(ctx, w); err != nil {
		return err
	}

	final := w.Tracker.Current()
	fmt.Printf("confirmed: %s\n", final.TxHash.Hex())
	if id, ok := w.SnapshotID(); ok {
		fmt.Printf("snapshot id: %s\n", id)
	}
	return nil
}

func promptApproval(req token.WriteRequest) bool {
	if req.Amount != nil {
		fmt.Printf("submit %s on network %d to %s (raw amount %s)? [y/N]: ",
			req.Kind, req.ChainID, req.To.Hex(), req.Amount)
	} else {
		fmt.Printf("submit %s on network %d to %s? [y/N]: ",
			req.Kind, req.ChainID, req.To.Hex())
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
