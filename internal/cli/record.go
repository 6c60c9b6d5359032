package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "record OBJECT [JSON...]",
		Short:   "Create object records and print the backend response",
		Example: `  connectx-demo record Car '{"plate":"AB-1","attributes":{"referenceId":"r1"}}'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch := connectx.RecordBatch{ObjectName: args[0]}
			for _, raw := range args[1:] {
				rec, err := parseRecord(raw)
				if err != nil {
					return err
				}
				batch.Records = append(batch.Records, rec)
			}

			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.client.Close()

			resp, err := s.client.CreateRecord(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, resp.Body)
			return nil
		},
	}
}
