package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newTrackCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "track EVENT [key=value...]",
		Short: "Send one tracking event",
		Example: `  connectx-demo track "open app"
  connectx-demo track "view product" sku=A-100 price=12`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parsePairs(args[1:])
			if err != nil {
				return err
			}

			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			if err := s.client.Track(connectx.TrackingEvent{Name: args[0], Attributes: attrs}); err != nil {
				_ = s.client.Close()
				return err
			}
			if err := s.finish(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracked %q\n", args[0])
			return nil
		},
	}
}
