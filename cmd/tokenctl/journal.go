package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reserveScope/internal/config"
	"reserveScope/internal/journal"
	"reserveScope/internal/journal/postgres"
)

// runJournal lists recorded write outcomes. It reads the journal directly
// without touching the network, so it works offline.
func runJournal(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	allNetworks, _ := cmd.Flags().GetBool("all-networks")

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	var jrnl journal.Journal
	if cfg.JournalDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("open journal store: %w", err)
		}
		defer store.Close()
		jrnl = store
	} else if cfg.JournalPath != "" {
		jrnl = journal.NewJsonlJournal(cfg.JournalPath)
	} else {
		return fmt.Errorf("no journal configured")
	}

	network := cfg.Network
	if allNetworks {
		network = 0
	}
	records, err := jrnl.List(ctx, network, limit)
	if err != nil {
		return err
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s network=%d %s %s %s", rec.FinishedAt, rec.ChainID, rec.Kind, rec.State, rec.TxHash)
		if rec.Reason != "" {
			line += fmt.Sprintf(" reason=%q", rec.Reason)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d records\n", len(records))
	return nil
}
