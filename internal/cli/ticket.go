package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	connectx "github.com/mintelligence/connectx-go"
)

func newTicketCmd(opts *rootOptions) *cobra.Command {
	var (
		key     string
		ticket  connectx.Ticket
		text    string
		html    string
		customs []string
	)

	cmd := &cobra.Command{
		Use:     "ticket key=value...",
		Short:   "Open a support ticket for a customer",
		Example: `  connectx-demo ticket --key cx_email --channel email --subject "Login broken" cx_email=a@example.com`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, err := parsePairs(args)
			if err != nil {
				return err
			}
			if text != "" || html != "" {
				ticket.Email = &connectx.EmailContent{Text: text, HTML: html}
			}
			req := connectx.TicketRequest{Key: key, Customer: customer, Ticket: ticket}
			for _, raw := range customs {
				obj, err := parseCustom(raw)
				if err != nil {
					return err
				}
				req.Customs = append(req.Customs, obj)
			}

			s, err := opts.openSession(cmd)
			if err != nil {
				return err
			}
			if err := s.client.OpenTicket(req); err != nil {
				_ = s.client.Close()
				return err
			}
			if err := s.finish(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ticket %q opened\n", ticket.Subject)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&key, "key", "cx_email", "customer attribute used as merge key")
	flags.StringVar(&ticket.Channel, "channel", "email", "ticket channel")
	flags.StringVar(&ticket.Subject, "subject", "", "ticket subject")
	flags.StringVar(&ticket.SocialAccountName, "account", "", "connector address the ticket is routed to")
	flags.StringVar(&ticket.SocialContact, "contact", "", "customer contact on the channel")
	flags.StringVar(&text, "text", "", "email body as text")
	flags.StringVar(&html, "html", "", "email body as HTML")
	flags.StringArrayVar(&customs, "custom", nil, "custom object Name:key=value,... (repeatable)")

	return cmd
}
