package lang

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/aobridge/cmd/aobridge/internal"
	"github.com/tinyland-inc/aobridge/pkg/langpref"
)

func NewLangCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "lang",
		Short: "Inspect or edit stored language preferences",
		Example: `  aobridge lang list
  aobridge lang get 123456789
  aobridge lang set 123456789 tr`,
	}
	cmd.PersistentFlags().StringVar(&file, "file", "", "Language file (default: from config)")

	open := func() (*langpref.Store, error) {
		path := file
		if path == "" {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
			path = cfg.Relay.LanguageFile
		}
		return langpref.Load(path), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every stored preference",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				listPreferences(c.OutOrStdout(), store)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <user-id>",
			Short: "Show the language used for a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				code := store.Resolve(args[0], langpref.Default)
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\n", args[0], code)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <user-id> <en|tr>",
			Short: "Store the language for a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := open()
				if err != nil {
					return err
				}
				if err := store.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Language set to %s for %s\n", langpref.DisplayName(args[1]), args[0])
				return nil
			},
		},
	)

	return cmd
}

func listPreferences(w io.Writer, store *langpref.Store) {
	users := store.Users()
	if len(users) == 0 {
		fmt.Fprintln(w, "No stored preferences.")
		return
	}
	for _, user := range users {
		code, _ := store.Get(user)
		fmt.Fprintf(w, "%s\t%s\n", user, code)
	}
}
