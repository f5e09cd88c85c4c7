// aobridge - Discord to AO process chat bridge
// License: MIT
//
// Copyright (c) 2026 aobridge contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/console"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/gateway"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/lang"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/relay"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/run"
	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal/version"
	"github.com/tinyland-inc/aobridge/pkg/config"
	"github.com/tinyland-inc/aobridge/pkg/logger"
)

func NewAobridgeCommand() *cobra.Command {
	short := fmt.Sprintf("%s aobridge - Discord <-> AO chat bridge v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:          "aobridge",
		Short:        short,
		Example:      "aobridge run",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		relay.NewRelayCommand(),
		run.NewRunCommand(),
		console.NewConsoleCommand(),
		lang.NewLangCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewAobridgeCommand()
	err := cmd.Execute()
	logger.Sync()
	if err != nil {
		if errors.Is(err, config.ErrMissing) {
			fmt.Fprintln(os.Stderr, "Set the missing values in the environment or in", internal.GetConfigPath())
		}
		os.Exit(1)
	}
}
