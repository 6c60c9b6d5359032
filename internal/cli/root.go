// Package cli implements the connectx-demo command line, a small host
// application that drives the SDK against a ConnectX backend.
package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	connectx "github.com/mintelligence/connectx-go"
)

type rootOptions struct {
	configPath string
	token      string
	org        string
	env        string
	baseURL    string
	timeout    time.Duration
	logLevel   string
	logPretty  bool
}

// NewRootCmd builds the connectx-demo command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "connectx-demo",
		Short: "Drive the ConnectX SDK from the command line",
		Long: `connectx-demo initializes a ConnectX session and sends tracking events,
customer identifications, tickets and object records.

Settings come from an optional YAML file (--config or CONNECTX_CONFIG),
CONNECTX_* environment variables and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.addFlags(cmd.PersistentFlags())

	// Events
	cmd.AddCommand(newTrackCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newUnknownIDCmd(opts))

	// Customers
	cmd.AddCommand(newIdentifyCmd(opts))
	cmd.AddCommand(newTicketCmd(opts))
	cmd.AddCommand(newRecordCmd(opts))

	cmd.AddCommand(newVersionCmd())

	return cmd
}

// addFlags registers the session flags shared by every subcommand.
func (o *rootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&o.token, "token", "", "ConnectX access token")
	flags.StringVar(&o.org, "org", "", "ConnectX organization id")
	flags.StringVar(&o.env, "env", "", "backend environment, empty for production")
	flags.StringVar(&o.baseURL, "base-url", "", "backend base URL, overrides --env")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "per-request timeout")
	flags.StringVar(&o.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&o.logPretty, "log-pretty", false, "human readable log output")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("connectx-demo version %s\n", connectx.Version)
		},
	}
}
