// Command bili-livectl runs one-off operations against the watcher state.
//
// Usage:
//
//	bili-livectl check
//	bili-livectl inspect --store postgres
//	bili-livectl notify --title test --body success
//	bili-livectl schema
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lovetingyuan/bili-live/internal/bili"
	"github.com/lovetingyuan/bili-live/internal/checker"
	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/events"
	"github.com/lovetingyuan/bili-live/internal/notifications"
	"github.com/lovetingyuan/bili-live/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := newRootCmd(config.New(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "bili-livectl",
		Short:         "Bilibili live watcher operations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("store", "", "State store driver (memory, sqlite, postgres, nats)")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.String("channel", "", "Notification channel (serverchan, wxpusher)")
	flags.Bool("direct", false, "Call the live status API without the proxy relay")
	_ = v.BindPFlag("store_driver", flags.Lookup("store"))
	_ = v.BindPFlag("sqlite_path", flags.Lookup("sqlite-path"))
	_ = v.BindPFlag("notify_channel", flags.Lookup("channel"))
	_ = v.BindPFlag("bili_direct", flags.Lookup("direct"))

	root.AddCommand(checkCmd(v))
	root.AddCommand(inspectCmd(v))
	root.AddCommand(notifyCmd(v))
	root.AddCommand(schemaCmd())
	return root
}

// --------------------------------------------------------------------------
// check command
// --------------------------------------------------------------------------

func checkCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one check cycle and print the live set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChecker(v, func(ctx context.Context, chk *checker.Checker) error {
				live, err := chk.Check(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), live)
			})
		},
	}
}

// --------------------------------------------------------------------------
// inspect command
// --------------------------------------------------------------------------

func inspectCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the stored live set and tracked IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(v, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				chk := checker.New(checker.Options{Store: st, FallbackIDs: cfg.UpIDs, Logger: logger})
				state, err := chk.Inspect(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), state)
			})
		},
	}
}

// --------------------------------------------------------------------------
// notify command
// --------------------------------------------------------------------------

func notifyCmd(v *viper.Viper) *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a message through the configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChecker(v, func(ctx context.Context, chk *checker.Checker) error {
				if err := chk.Notify(ctx, title, body); err != nil {
					return err
				}
				logger.Info("Notification delivered", "title", title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "test", "Message title")
	cmd.Flags().StringVar(&body, "body", "success", "Message body (markdown)")
	return cmd
}

// --------------------------------------------------------------------------
// schema command
// --------------------------------------------------------------------------

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema enforced on upstream responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := bili.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withStore handles config loading, store wiring, and context cancellation.
// Read-only commands use it directly so they need no push credentials.
func withStore(v *viper.Viper, fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}

// withChecker extends withStore with the upstream client, notifier and
// event publisher a full cycle needs.
func withChecker(v *viper.Viper, fn func(ctx context.Context, chk *checker.Checker) error) error {
	return withStore(v, func(ctx context.Context, cfg *config.Config, st store.Store) error {
		client, err := bili.NewClient(bili.Options{
			APIURL:            cfg.BiliAPIURL,
			ProxyPrefix:       cfg.BiliProxyPrefix,
			Direct:            cfg.BiliDirect,
			RequestsPerMinute: cfg.BiliRequestsPerMinute,
		}, logger)
		if err != nil {
			return fmt.Errorf("create bili client: %w", err)
		}

		notifier, err := notifications.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("create notifier: %w", err)
		}

		publisher, err := events.Open(cfg, logger)
		if err != nil {
			return fmt.Errorf("open events publisher: %w", err)
		}
		defer publisher.Close()

		return fn(ctx, checker.New(checker.Options{
			Store:       st,
			Fetcher:     client,
			Notifier:    notifier,
			Publisher:   publisher,
			FallbackIDs: cfg.UpIDs,
			Logger:      logger,
		}))
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
