// Package configcmder provides the config command for managing persistent
// forum configuration stored in the .forum/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent forum configuration.

Configuration is stored as config.toml in the .forum/ directory and provides
default values for command flags. CLI flags and FORUM_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  llm.provider, llm.endpoint, llm.model, llm.timeout,
  api.listen, api.name, api.allowed_origins, api.log_file,
  mailer.host, mailer.port, mailer.username, mailer.from, mailer.from_name,
  mailer.reply_to, mailer.admin_emails,
  events.brokers, events.topic

List values (api.allowed_origins, mailer.admin_emails, events.brokers) are
comma separated.

Use subcommands to get, set, or list configuration values:
  forum config set <key> <value>    Set a configuration value
  forum config get <key>            Get a configuration value
  forum config list                 List all configuration values

Examples:
  forum config set llm.timeout 90s
  forum config set api.allowed_origins https://botafogo.epfl.ch,http://localhost:3000
  forum config get llm.endpoint
  forum config list`

const configShortDesc string = "Manage persistent forum configuration"

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
