package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/djedi-go/djedi"
	"github.com/briangreenhill/djedi-go/internal/config"
)

const version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	baseURL string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "djedi",
		Short:         "Fetch content nodes from a djedi content service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "content service URL (default $DJEDI_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "give up after this long")

	rootCmd.AddCommand(newGetCmd(opts), newPrefetchCmd(opts), newVersionCmd())
	return rootCmd
}

// client builds a djedi client from the environment, with flag overrides.
func (o *rootOptions) client(cmd *cobra.Command) (*djedi.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
	return cfg.NewClient(logger)
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.timeout)
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var def string
	var noBatch bool

	cmd := &cobra.Command{
		Use:   "get <uri>",
		Short: "Print the content of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			node := djedi.Node{URI: args[0]}
			if cmd.Flags().Changed("default") {
				node.Value = djedi.String(def)
			}

			load := client.LoadBatched
			if noBatch {
				load = client.Load
			}
			n, err := load(ctx, node)
			if err != nil {
				if errors.Is(err, djedi.ErrMissing) {
					return fmt.Errorf("%s: no content", client.Normalize(args[0]))
				}
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), djedi.StringValue(n.Value))
			return err
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "default value sent to the service")
	cmd.Flags().BoolVar(&noBatch, "no-batch", false, "fetch without waiting for the batch window")
	return cmd
}

func newPrefetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch <uri>...",
		Short: "Fetch several nodes in one request and print the hydration snapshot as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()

			for _, raw := range args {
				client.ReportPrefetchableNode(djedi.Node{URI: raw})
			}
			if _, err := client.Prefetch(ctx, djedi.PrefetchOptions{}); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(client.Snapshot(args))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "djedi "+version)
		},
	}
}
