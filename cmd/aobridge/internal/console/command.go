package console

import (
	"github.com/spf13/cobra"
)

func NewConsoleCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Talk to a running gateway as if from the ledger side",
		Long: `Opens an interactive prompt connected to the gateway's local transport.
Each line is delivered the way a broadcast from the Getting-Started process
would be, so commands like !joke or !setlang tr can be tried without a wallet.`,
		Example: `  aobridge console
  aobridge console --nick operator --lang tr`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return consoleCmd(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Nick, "nick", "console", "Name shown in chat for console messages")
	cmd.Flags().StringVar(&opts.Lang, "lang", "en", "Language tag sent with each message")
	cmd.Flags().StringVar(&opts.URL, "url", "", "Transport URL (default: from config)")
	cmd.Flags().BoolVarP(&opts.Debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
