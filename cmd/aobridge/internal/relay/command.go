package relay

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/pkg/config"
)

func NewRelayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "relay",
		Aliases: []string{"r"},
		Short:   "Start the ledger half of the bridge",
		Long: `Polls the Getting-Started process for broadcasts and forwards them to the
gateway over the local transport.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return relayCmd(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func relayCmd(debug bool) error {
	cfg, err := internal.LoadValidConfig(config.RoleRelay, debug)
	if err != nil {
		return err
	}

	client, err := internal.NewLedgerClient(cfg)
	if err != nil {
		return err
	}
	r := internal.NewRelay(cfg, client)

	ctx, stop := internal.SignalContext()
	defer stop()

	fmt.Printf("%s Relay polling %s every %s\n", internal.Logo, cfg.Ledger.PolledProcessID, cfg.Relay.PollInterval.Std())
	fmt.Println("Press Ctrl+C to stop")

	if err := r.Run(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Relay stopped")
	return nil
}
