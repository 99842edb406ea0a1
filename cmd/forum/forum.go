// Package forumcmder is the root of the forum command tree.
package forumcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/forum/ask"
	configcmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/forum/config"
	credentialscmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/forum/credentials"
	servecmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/forum/serve"
	versioncmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/version"
)

const forumLongDesc string = `Forum answers student questions with a course LLM.

Questions are sent to an OpenAI-compatible chat completions endpoint and
the streamed answer is returned once complete.

  forum ask "..."       Ask one question from the terminal
  forum serve           Run the HTTP API used by the forum front end
  forum config          Manage persistent configuration
  forum credentials     Store the LLM API key and mailer password`

const forumShortDesc string = "Forum - course LLM answers"

func NewForumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "forum",
		Short:         forumShortDesc,
		Long:          forumLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .forum/ configuration directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(credentialscmder.NewCredentialsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
