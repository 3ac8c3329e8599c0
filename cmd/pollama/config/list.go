package configcmder

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/pkg/config"
)

const listLongDesc string = `List configuration values.

Prints every key from config.toml in the .pollama/ directory, grouped by
section. Keys that are not set fall back to built-in defaults or flags.

Examples:
  pollama config list
  pollama config list --set`

const listShortDesc string = "List configuration values"

func newListCmd() *cobra.Command {
	var setOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir, setOnly)
		},
	}

	cmd.Flags().BoolVar(&setOnly, "set", false, "Only show keys that have a value")

	return cmd
}

func runList(w io.Writer, configDir string, setOnly bool) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(w, cfger)

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	section := ""
	for _, key := range config.ValidConfigKeys() {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" && setOnly {
			continue
		}

		if s, _, _ := strings.Cut(key, "."); s != section {
			if section != "" {
				fmt.Fprintln(tw)
			}
			section = s
		}

		if value == "" {
			fmt.Fprintf(tw, "%s\t= <not set>\n", key)
		} else {
			fmt.Fprintf(tw, "%s\t= %q\n", key, value)
		}
	}

	return tw.Flush()
}
