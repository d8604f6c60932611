package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "restitution",
		Short:        "Reinstate drained pool balances and redeem frozen pair positions",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("deployment", "./deployment.yaml", "deployment file (tokens, pools, manifest, vault)")
	flags.String("state-file", "./data/world.json", "world state file")
	flags.String("pg-dsn", "", "optional Postgres DSN mirroring state and logs")
	flags.String("events-out", "./data/events.jsonl", "emitted logs JSONL")
	flags.String("typed-out", "./data/typed_events.jsonl", "decoded events JSONL")
	flags.String("errors-out", "./data/decode_errors.jsonl", "decode errors JSONL")
	flags.String("caller", "", "address the call is made from")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "restore",
			Short: "Execute the restitution manifest",
			Args:  cobra.NoArgs,
			RunE:  runRestore,
		},
		newInitializeCmd(),
		newExitCmd(),
		&cobra.Command{
			Use:   "transfer <pool> <to> <amount>",
			Short: "Transfer pool claim tokens",
			Args:  cobra.ExactArgs(3),
			RunE:  runTransfer,
		},
		&cobra.Command{
			Use:   "approve <pool> <spender> <amount|max>",
			Short: "Approve a spender of pool claim tokens",
			Args:  cobra.ExactArgs(3),
			RunE:  runApprove,
		},
		newRedeemCmd(),
		&cobra.Command{
			Use:   "consolidate",
			Short: "Unwrap the vault's wrapped settlement currency",
			Args:  cobra.NoArgs,
			RunE:  runConsolidate,
		},
		&cobra.Command{
			Use:   "set-implementation <name> <address>",
			Short: "Point an implementation name at registered code",
			Args:  cobra.ExactArgs(2),
			RunE:  runSetImplementation,
		},
		newInspectCmd(),
		newAuditCmd(),
	)
	return root
}

func newInitializeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initialize <pool>",
		Short: "Unlock a pool once its balances are reinstated",
		Args:  cobra.ExactArgs(1),
		RunE:  runInitialize,
	}
	cmd.Flags().String("vault", "", "vault receiving the pair's claim tokens (default: deployment vault)")
	cmd.Flags().String("pair", "", "liquidity pair (default: the pool's configured pair)")
	return cmd
}

func newExitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit <pool> <claim-amount>",
		Short: "Burn claim tokens for the underlying reserves",
		Args:  cobra.ExactArgs(2),
		RunE:  runExit,
	}
	cmd.Flags().StringSlice("min-out", nil, "minimum amount per bound token (comma-separated, default none)")
	return cmd
}

func newRedeemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redeem <position>",
		Short: "Burn pair shares for the vault's frozen position",
		Args:  cobra.ExactArgs(1),
		RunE:  runRedeem,
	}
	cmd.Flags().Bool("exit", false, "receive the underlying reserves instead of claim tokens")
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the world state and the manifest it currently needs",
		Args:  cobra.NoArgs,
		RunE:  runInspect,
	}
	return cmd
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare the manifest with live on-chain deficits",
		Args:  cobra.NoArgs,
		RunE:  runAudit,
	}
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("block", 0, "block to read balances at, 0 means latest")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	return cmd
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
