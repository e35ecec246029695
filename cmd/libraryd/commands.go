package main

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/internal/app"
	"github.com/AntonStoeckl/library-lending-go/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "libraryd",
		Short:         "Library lending service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newVerifyCommand(opts),
		newStatsCommand(opts),
	)

	return root
}

// withApp loads the config, builds the app, runs fn and closes the app again.
func withApp(ctx context.Context, opts *rootOptions, fn func(a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	return fn(a)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}

				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")

				return err
			})
		},
	}
}

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that available copies plus active loans equal total copies for every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				violations, err := a.Verify(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, violation := range violations {
					if _, err = fmt.Fprintln(out, violation.Error()); err != nil {
						return err
					}
				}

				if len(violations) > 0 {
					return fmt.Errorf("%d books violate copy conservation", len(violations))
				}

				_, err = fmt.Fprintln(out, "all books conserve their copies")

				return err
			})
		},
	}
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the library summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				summary, err := a.LibrarySummary(cmd.Context(), refresh)
				if err != nil {
					return err
				}

				encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")

				return encoder.Encode(summary)
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop a cached summary and compute it from the store")

	return cmd
}
