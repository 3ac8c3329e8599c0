// Package pollamacmder
package pollamacmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/ZBcheng/pure-ollama/cmd/pollama/chat"
	configcmder "github.com/ZBcheng/pure-ollama/cmd/pollama/config"
	createcmder "github.com/ZBcheng/pure-ollama/cmd/pollama/create"
	generatecmder "github.com/ZBcheng/pure-ollama/cmd/pollama/generate"
	historycmder "github.com/ZBcheng/pure-ollama/cmd/pollama/history"
	servecmder "github.com/ZBcheng/pure-ollama/cmd/pollama/serve"
	versioncmder "github.com/ZBcheng/pure-ollama/cmd/version"
)

const pollamaLongDesc string = `Pollama is a command line client for the Ollama inference server.

Talk to a model:
  pollama generate "prompt"   One-off completion
  pollama chat                Interactive conversation
  pollama create <name>       Create a model from a Modelfile

Record traffic:
  pollama serve               Run the recording proxy
  pollama history             Browse recorded exchanges`

const pollamaShortDesc string = "Pollama - Ollama client"

func NewPollamaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pollama",
		Short:         pollamaShortDesc,
		Long:          pollamaLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .pollama/ directory")

	// Add subcommands
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(createcmder.NewCreateCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
