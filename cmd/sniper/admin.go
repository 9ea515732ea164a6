// cmd/sniper/admin.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/config"
	"github.com/rovshanmuradov/sniper-agent/internal/export"
	"github.com/rovshanmuradov/sniper-agent/internal/logger"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/sqlite"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

const maxExportTrades = 100_000

// openStore loads config and opens the journal for one-shot admin commands.
func openStore() (*config.Config, *sqlite.Store, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logCfg := cfg.LoggerConfig()
	logCfg.Console = false
	log, err := logger.New(logCfg, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := sqlite.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, log, nil
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage user wallets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <user-id>",
		Short: "Encrypt and store a base58 private key read from SNIPER_IMPORT_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := os.Getenv("SNIPER_IMPORT_KEY")
			if raw == "" {
				return fmt.Errorf("SNIPER_IMPORT_KEY is empty")
			}
			cfg, store, log, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := wallet.NewStore(store, cfg.WalletEncryptionKey, log)
			if err != nil {
				return err
			}
			pub, err := keys.Import(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			fmt.Printf("wallet %s stored for user %s\n", pub, args[0])
			return nil
		},
	})
	return cmd
}

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage user entitlements",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "grant <user-id> <days>",
		Short: "Extend a subscription by the given number of days from now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil || days <= 0 {
				return fmt.Errorf("days must be a positive integer")
			}
			_, store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			until := time.Now().Add(time.Duration(days) * 24 * time.Hour)
			if err := store.SetSubscription(cmd.Context(), args[0], until); err != nil {
				return err
			}
			fmt.Printf("user %s entitled until %s\n", args[0], until.Format(time.RFC3339))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "license <user-id> <license-key>",
		Short: "Attach a keygen.sh license key to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SetLicenseKey(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("license stored for user %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [user-id]",
		Short: "List open positions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := ""
			if len(args) == 1 {
				user = args[0]
			}
			_, store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			positions, err := store.ListOpenPositions(cmd.Context(), user)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tTOKEN\tENTRY\tNOTIONAL\tOPENED")
			for _, p := range positions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.UserID, logger.ShortenAddress(p.Token),
					p.EntryPrice.String(), p.Notional.StringFixed(4), p.OpenedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func tradesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trades <user-id>",
		Short: "Show the most recent trades of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			trades, err := store.ListTrades(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSIDE\tTOKEN\tNOTIONAL\tFEE\tRESULT")
			for _, t := range trades {
				result := "ok " + logger.ShortenAddress(t.Signature)
				if !t.Success {
					result = "failed: " + t.Failure
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.CreatedAt.Format(time.DateTime), t.Side,
					logger.ShortenAddress(t.Token), t.Notional.StringFixed(4), t.Fee.StringFixed(6), result)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of trades to show")
	cmd.AddCommand(exportCmd())
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format string
		side   string
		since  time.Duration
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Export a user's trade journal to CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, log, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			trades, err := store.ListTrades(cmd.Context(), args[0], maxExportTrades)
			if err != nil {
				return err
			}
			opts := export.Options{Format: export.Format(format), Side: side, OutputDir: outDir}
			if since > 0 {
				opts.Since = time.Now().Add(-since)
			}
			path, err := export.NewTradeExporter(log).ExportTrades(args[0], trades, opts)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatCSV), "csv or json")
	cmd.Flags().StringVar(&side, "side", "", "Only buy or sell trades")
	cmd.Flags().DurationVar(&since, "since", 0, "Only trades newer than this (e.g. 24h)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "exports", "Output directory")
	return cmd
}
