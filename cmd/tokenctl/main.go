package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reserveScope/internal/chain"
	"reserveScope/internal/config"
	"reserveScope/internal/journal"
	"reserveScope/internal/journal/postgres"
	"reserveScope/internal/lifecycle"
	"reserveScope/internal/registry"
	"reserveScope/internal/state"
	"reserveScope/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Reserve-backed token client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().Uint64("network", 31337, "network chain id")
	root.PersistentFlags().String("rpc", "", "RPC URL override for the selected network")
	root.PersistentFlags().String("rpc-urls", "", "per-network RPC URLs (semicolon-separated id=url)")
	root.PersistentFlags().String("deployments", "", "deployment overrides (semicolon-separated id=token,oracle)")
	root.PersistentFlags().String("journal", "./data/writes.jsonl", "write journal JSONL path")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN for the write journal (overrides JSONL)")
	root.PersistentFlags().Int("max-retries", 5, "maximum retry attempts for reads")
	root.PersistentFlags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.PersistentFlags().Duration("poll-interval", 2*time.Second, "receipt poll interval")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the token view for the selected network",
		RunE:  runStatus,
	}
	root.AddCommand(statusCmd)

	balanceCmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalance,
	}
	balanceCmd.Flags().Uint64("at", 0, "contract snapshot id (0 means live)")
	root.AddCommand(balanceCmd)

	supplyCmd := &cobra.Command{
		Use:   "supply",
		Short: "Show total supply",
		RunE:  runSupply,
	}
	supplyCmd.Flags().Uint64("at", 0, "contract snapshot id (0 means live)")
	root.AddCommand(supplyCmd)

	allowanceCmd := &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Show what a spender may draw from an owner",
		Args:  cobra.ExactArgs(2),
		RunE:  runAllowance,
	}
	root.AddCommand(allowanceCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List token events over a block range",
		RunE:  runHistory,
	}
	historyCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	historyCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	historyCmd.Flags().Uint64("batch-size", 2000, "blocks per filter query")
	historyCmd.Flags().Bool("resume", false, "resume from the saved scan checkpoint")
	historyCmd.Flags().String("checkpoint", "./data/scan_checkpoint.json", "scan checkpoint file path")
	root.AddCommand(historyCmd)

	for _, c := range writeCommands() {
		root.AddCommand(c)
	}

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded write outcomes",
		RunE:  runJournal,
	}
	journalCmd.Flags().Int("limit", 20, "maximum records to show")
	journalCmd.Flags().Bool("all-networks", false, "include every network")
	root.AddCommand(journalCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired dependencies one command invocation uses.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *chain.Client
	reg     *registry.Registry
	manager *state.Manager
	journal journal.Journal
	close   func()
}

// newApp loads config and wires the client stack for the selected network.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	endpoint, ok := cfg.EndpointFor(cfg.Network)
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("no rpc endpoint for network %d", cfg.Network)
	}

	client, err := chain.NewClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	closeFns := []func(){client.Close}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !remote.IsUint64() || remote.Uint64() != cfg.Network {
		client.Close()
		return nil, fmt.Errorf("endpoint reports chain %s, configured network is %d", remote, cfg.Network)
	}

	var jrnl journal.Journal
	if cfg.JournalDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.JournalDSN)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("open journal store: %w", err)
		}
		closeFns = append(closeFns, store.Close)
		jrnl = store
	} else if cfg.JournalPath != "" {
		jrnl = journal.NewJsonlJournal(cfg.JournalPath)
	}

	reader := token.NewReader(token.ReaderConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, reg, logger)
	writer := token.NewWriter(reg)
	watcher := lifecycle.NewWatcher(lifecycle.WatchConfig{
		PollInterval: cfg.PollInterval,
	}, client, logger)
	manager := state.NewManager(reader, writer, watcher, jrnl, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		reg:     reg,
		manager: manager,
		journal: jrnl,
		close: func() {
			for _, fn := range closeFns {
				fn()
			}
			logger.Sync()
		},
	}, nil
}

// buildRegistry starts from the built-in deployments and applies config
// overrides on top.
func buildRegistry(cfg config.Config) (*registry.Registry, error) {
	defaults := registry.Default()
	merged := make(map[uint64]registry.Deployment)
	for _, id := range defaults.ChainIDs() {
		dep, _ := defaults.Resolve(id)
		merged[id] = dep
	}
	for network, addrs := range cfg.Deployments {
		dep, err := registry.ParseDeployment(addrs.Token, addrs.Oracle)
		if err != nil {
			return nil, fmt.Errorf("network %d: %w", network, err)
		}
		merged[network] = dep
	}
	return registry.New(merged)
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
