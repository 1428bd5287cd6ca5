// Package unistreamcmder
package unistreamcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/unistreamhq/unistream/cmd/unistream/config"
	initcmder "github.com/unistreamhq/unistream/cmd/unistream/init"
	replaycmder "github.com/unistreamhq/unistream/cmd/unistream/replay"
	servecmder "github.com/unistreamhq/unistream/cmd/unistream/serve"
	statuscmder "github.com/unistreamhq/unistream/cmd/unistream/status"
	tailcmder "github.com/unistreamhq/unistream/cmd/unistream/tail"
	versioncmder "github.com/unistreamhq/unistream/cmd/version"
)

const unistreamLongDesc string = `Unistream normalizes heterogeneous LLM streaming responses into one
typed event protocol.

Run services using:
  unistream serve relay    Run the relay server
  unistream serve api      Run the API server
  unistream serve          Run both servers together

Inspect recorded streams using:
  unistream tail           Show a recorded stream transcript
  unistream replay         Replay a captured SSE stream through the pipeline
  unistream status         Show service status and the last stream`

const unistreamShortDesc string = "Unistream - uniform LLM stream relay"

func NewUnistreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unistream",
		Short: unistreamShortDesc,
		Long:  unistreamLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding the .unistream config (default: local, then home)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
