package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unistreamhq/unistream/pkg/cliui"
	"github.com/unistreamhq/unistream/pkg/config"
)

const presetLongDesc string = `Apply a provider preset.

Overwrites the relay section of config.toml with known-good settings for a
provider. Other sections keep their defaults and can still be adjusted with
"unistream config set".

Available presets: openai, openai-responses, deepseek, local

Examples:
  unistream config preset openai
  unistream config preset deepseek`

const presetShortDesc string = "Apply a provider preset"

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset <name>",
		Short: presetShortDesc,
		Long:  presetLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runPreset(args[0], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

func runPreset(name, configDir string) error {
	cfg, err := config.PresetConfig(name)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\n  %s Applied preset %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(strings.ToLower(name)),
	)
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("relay.provider"), cliui.ValueStyle.Render(cfg.Relay.Provider))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("relay.dialect"), cliui.ValueStyle.Render(cfg.Relay.Dialect))
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("relay.upstream"), cliui.ValueStyle.Render(cfg.Relay.Upstream))

	return nil
}
