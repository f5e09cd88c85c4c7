package gateway

import (
	"fmt"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/pkg/config"
)

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadValidConfig(config.RoleGateway, debug)
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

	ctx, stop := internal.SignalContext()
	defer stop()

	fmt.Printf("%s Gateway started, transport on %s\n", internal.Logo, cfg.Transport.Addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := gw.Run(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}
