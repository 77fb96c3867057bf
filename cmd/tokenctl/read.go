package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"reserveScope/internal/model"
	"reserveScope/internal/token"
)

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.manager.TokenView(ctx, a.cfg.Network)
	if err != nil {
		return err
	}

	dep, _ := a.reg.Resolve(a.cfg.Network)
	fmt.Printf("network:      %d\n", a.cfg.Network)
	fmt.Printf("token:        %s\n", dep.Token.Hex())
	fmt.Printf("name:         %s (%s)\n", snap.Name, snap.Symbol)
	fmt.Printf("decimals:     %d\n", snap.Decimals)
	fmt.Printf("total supply: %s (%s raw)\n", token.FormatAmount(snap.TotalSupply, snap.Decimals), snap.TotalSupply)
	fmt.Printf("reserves:     %s (%s raw)\n", token.FormatAmount(snap.VerifiedReserves, snap.Decimals), snap.VerifiedReserves)
	fmt.Printf("fully backed: %t\n", snap.FullyBacked)
	fmt.Printf("oracle:       %s\n", snap.OracleAddress.Hex())
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	account, err := parseAddressArg("account", args[0])
	if err != nil {
		return err
	}
	snapshotID, _ := cmd.Flags().GetUint64("at")

	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := balanceRecord(ctx, a, account, snapshotID)
	if err != nil {
		return err
	}

	fmt.Printf("account:   %s\n", account.Hex())
	if snapshotID != 0 {
		fmt.Printf("snapshot:  %d\n", snapshotID)
	}
	fmt.Printf("balance:   %s (%s raw)\n", rec.Formatted, rec.Raw)
	return nil
}

func runSupply(cmd *cobra.Command, _ []string) error {
	snapshotID, _ := cmd.Flags().GetUint64("at")

	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if snapshotID != 0 {
		rec, err := a.manager.SupplyAt(ctx, a.cfg.Network, snapshotID)
		if err != nil {
			return err
		}
		fmt.Printf("snapshot: %d\n", snapshotID)
		fmt.Printf("supply:   %s (%s raw)\n", rec.Formatted, rec.Raw)
		return nil
	}

	snap, err := a.manager.TokenView(ctx, a.cfg.Network)
	if err != nil {
		return err
	}
	fmt.Printf("supply:   %s (%s raw)\n", token.FormatAmount(snap.TotalSupply, snap.Decimals), snap.TotalSupply)
	return nil
}

func runAllowance(cmd *cobra.Command, args []string) error {
	owner, err := parseAddressArg("owner", args[0])
	if err != nil {
		return err
	}
	spender, err := parseAddressArg("spender", args[1])
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.manager.Allowance(ctx, a.cfg.Network, owner, spender)
	if err != nil {
		return err
	}

	fmt.Printf("owner:     %s\n", owner.Hex())
	fmt.Printf("spender:   %s\n", spender.Hex())
	fmt.Printf("allowance: %s (%s raw)\n", rec.Formatted, rec.Raw)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	fromBlock, _ := cmd.Flags().GetUint64("from")
	toBlock, _ := cmd.Flags().GetUint64("to")
	batchSize, _ := cmd.Flags().GetUint64("batch-size")
	resume, _ := cmd.Flags().GetBool("resume")

	ctx, stop := commandContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.manager.TokenView(ctx, a.cfg.Network)
	if err != nil {
		return err
	}

	scanner := token.NewScanner(token.ScanConfig{
		FromBlock:         fromBlock,
		ToBlock:           toBlock,
		BatchSize:         batchSize,
		CheckpointPath:    a.cfg.CheckpointPath,
		CheckpointEnabled: resume,
		MaxRetries:        a.cfg.MaxRetries,
		RetryBackoff:      a.cfg.RetryBackoff,
	}, a.client, a.reg, a.logger)

	entries, err := scanner.Scan(ctx, a.cfg.Network)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		when := time.Unix(int64(entry.Timestamp), 0).UTC().Format(time.RFC3339)
		switch {
		case entry.Transfer != nil:
			fmt.Printf("%s block=%d transfer %s -> %s amount=%s tx=%s\n",
				when, entry.BlockNumber,
				entry.Transfer.From.Hex(), entry.Transfer.To.Hex(),
				token.FormatAmount(entry.Transfer.Value, snap.Decimals),
				entry.TxHash.Hex(),
			)
		case entry.Approval != nil:
			fmt.Printf("%s block=%d approval %s -> %s amount=%s tx=%s\n",
				when, entry.BlockNumber,
				entry.Approval.Owner.Hex(), entry.Approval.Spender.Hex(),
				token.FormatAmount(entry.Approval.Value, snap.Decimals),
				entry.TxHash.Hex(),
			)
		case entry.Snapshot != nil:
			fmt.Printf("%s block=%d snapshot id=%s tx=%s\n",
				when, entry.BlockNumber,
				entry.Snapshot.ID,
				entry.TxHash.Hex(),
			)
		}
	}
	fmt.Printf("%d events\n", len(entries))
	return nil
}

func balanceRecord(ctx context.Context, a *app, account common.Address, snapshotID uint64) (model.BalanceRecord, error) {
	if snapshotID != 0 {
		return a.manager.BalanceAt(ctx, a.cfg.Network, account, snapshotID)
	}
	return a.manager.Balance(ctx, a.cfg.Network, account)
}

func parseAddressArg(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, input)
	}
	return common.HexToAddress(input), nil
}
