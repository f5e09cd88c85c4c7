package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
)

func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			printVersion(c)
		},
	}

	return cmd
}

func printVersion(c *cobra.Command) {
	out := c.OutOrStdout()
	fmt.Fprintf(out, "%s aobridge %s\n", internal.Logo, internal.FormatVersion())
	build, goVer := internal.FormatBuildInfo()
	if build != "" {
		fmt.Fprintf(out, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(out, "  Go: %s\n", goVer)
	}
}
