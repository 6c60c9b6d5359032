package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newUnknownIDCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unknown-id",
		Short: "Fetch a backend-assigned anonymous id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.client.Close()

			ctx := cmd.Context()
			updates := make(chan string, 1)
			fetcher := connectx.NewUnknownIDFetcher(s.client, func(text string) {
				updates <- text
			})
			fmt.Fprintln(cmd.OutOrStdout(), fetcher.Text())
			fetcher.Fetch(ctx)

			select {
			case text := <-updates:
				fmt.Fprintln(cmd.OutOrStdout(), text)
			case <-ctx.Done():
				return ctx.Err()
			}
			if _, err := fetcher.Result(); err != nil {
				return err
			}
			return s.finish(ctx)
		},
	}
}
