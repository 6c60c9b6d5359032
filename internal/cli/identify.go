package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newIdentifyCmd(opts *rootOptions) *cobra.Command {
	var (
		key     string
		update  bool
		sets    []string
		customs []string
	)

	cmd := &cobra.Command{
		Use:   "identify key=value...",
		Short: "Identify the current visitor as a customer",
		Example: `  connectx-demo identify --key cx_userId cx_userId=u-1 cx_name=Alice
  connectx-demo identify --key cx_userId --update --set tier=gold cx_userId=u-1
  connectx-demo identify --key cx_userId --custom Car:plate=AB-1 cx_userId=u-1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := parsePairs(args)
			if err != nil {
				return err
			}
			options := &connectx.IdentifyOptions{UpdateCustomer: update}
			if len(sets) > 0 {
				if options.UpdateSomeFields, err = parsePairs(sets); err != nil {
					return err
				}
			}
			for _, raw := range customs {
				obj, err := parseCustom(raw)
				if err != nil {
					return err
				}
				options.Customs = append(options.Customs, obj)
			}

			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			err = s.client.Identify(connectx.CustomerIdentity{
				Key:      key,
				Customer: customer,
				Options:  options,
			})
			if err != nil {
				_ = s.client.Close()
				return err
			}
			if err := s.finish(cmd.Context()); err != nil {
				return err
			}
			known := s.client.KnownID()
			fmt.Fprintf(cmd.OutOrStdout(), "identified %s=%s\n", key, known)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "cx_userId", "customer attribute used as merge key")
	cmd.Flags().BoolVar(&update, "update", false, "overwrite existing customer fields")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field written when --update is set (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&customs, "custom", nil, "custom object Name:key=value,... (repeatable)")

	return cmd
}
