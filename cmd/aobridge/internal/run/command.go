package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/pkg/config"
)

func NewRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run both halves of the bridge in one process",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCmd(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runCmd(debug bool) error {
	cfg, err := internal.LoadValidConfig(config.RoleAll, debug)
	if err != nil {
		return err
	}

	client, err := internal.NewLedgerClient(cfg)
	if err != nil {
		return err
	}
	gw, err := internal.NewGateway(cfg, client)
	if err != nil {
		return fmt.Errorf("error creating gateway: %w", err)
	}
	r := internal.NewRelay(cfg, client)

	ctx, stop := internal.SignalContext()
	defer stop()

	fmt.Printf("%s Bridge running (gateway + relay)\n", internal.Logo)
	fmt.Println("Press Ctrl+C to stop")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(ctx) })
	g.Go(func() error { return r.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("✓ Bridge stopped")
	return nil
}
