// Package configcmder provides the config command for managing persistent
// pollama configuration stored in the .pollama/ directory.
package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZBcheng/pure-ollama/pkg/cliui"
	"github.com/ZBcheng/pure-ollama/pkg/config"
)

const configLongDesc string = `Manage persistent pollama configuration.

Configuration is stored as config.toml in the .pollama/ directory and provides
default values for command flags. POLLAMA_* environment variables override the
file and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  client.base_url, client.model, client.timeout, client.keep_alive,
  options.temperature, options.num_ctx, options.seed,
  proxy.listen, proxy.upstream,
  storage.sqlite_path, storage.postgres_dsn,
  eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  pollama config set <key> <value>    Set a configuration value
  pollama config get <key>            Get a configuration value
  pollama config list                 List all configuration values

Examples:
  pollama config set client.model mistral
  pollama config set options.temperature 0.2
  pollama config get client.model
  pollama config list`

const configShortDesc string = "Manage persistent pollama configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// printTarget names the config file in use, noting when it does not exist
// yet and defaults apply.
func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
		return
	}
	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(target),
	)
}
