// Package statuscmder provides the status command for checking running
// unistream services and the remembered session.
package statuscmder

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/unistreamhq/unistream/pkg/cliui"
	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/dotdir"
)

type statusCommander struct {
	relayTarget string
	apiTarget   string
	configDir   string
}

const statusLongDesc string = `Show the status of unistream services.

Checks whether the relay and the transcript API respond at their configured
targets, and shows the stream remembered in .unistream/session.json.

Examples:
  unistream status`

const statusShortDesc string = "Show unistream service status"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagRelayTarget, config.FlagAPITarget})

			cmder.relayTarget = v.GetString("client.relay_target")
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *statusCommander) run() error {
	fmt.Println()
	printTarget("Relay", c.relayTarget, checkRelay(c.relayTarget))
	printTarget("API  ", c.apiTarget, checkAPI(c.apiTarget))
	fmt.Println()

	state, err := dotdir.NewManager().LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}

	if state == nil {
		fmt.Printf("  %s No remembered stream. Run a request through the relay, then \"unistream tail\".\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Last stream:"), cliui.ValueStyle.Render(state.StreamID))
	if state.Model != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Model:      "), cliui.ValueStyle.Render(state.Model))
	}
	fmt.Printf("  %s  %s\n\n",
		cliui.KeyStyle.Render("Finished:   "),
		cliui.DimStyle.Render(state.FinishedAt.Local().Format(time.RFC1123)),
	)

	return nil
}

func printTarget(name, target string, up bool) {
	mark := cliui.SuccessMark
	label := "up"
	if !up {
		mark = cliui.FailMark
		label = "down"
	}
	fmt.Printf("  %s %s %s %s\n",
		mark,
		cliui.KeyStyle.Render(name),
		cliui.ValueStyle.Render(target),
		cliui.DimStyle.Render("("+label+")"),
	)
}

// checkRelay treats any HTTP response as alive. The relay forwards
// everything upstream, so even an upstream error proves the relay itself
// is listening.
func checkRelay(target string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Head(target)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func checkAPI(target string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(target + "/ping")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
