// Package configcmder provides the config command for managing persistent
// unistream configuration stored in the .unistream/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent unistream configuration.

Configuration is stored as config.toml in the .unistream/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values, and UNISTREAM_* environment variables sit between
the two.

Keys use dotted notation matching the TOML section structure:
  relay.provider, relay.dialect, relay.upstream, relay.listen,
  stream.require_terminal_event, stream.token_speed,
  api.listen, api.pprof,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  events.provider, events.brokers, events.topic,
  client.relay_target

Use subcommands to get, set, or list configuration values:
  unistream config set <key> <value>    Set a configuration value
  unistream config get <key>            Get a configuration value
  unistream config list                 List all configuration values
  unistream config preset <name>        Apply a provider preset

Examples:
  unistream config set relay.provider deepseek
  unistream config set relay.dialect responses
  unistream config get relay.upstream
  unistream config preset openai-responses
  unistream config list`

const configShortDesc string = "Manage persistent unistream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPresetCmd())

	return cmd
}
