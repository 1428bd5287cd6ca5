// Package initcmder provides the init command for initializing a local
// .unistream directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/unistreamhq/unistream/pkg/config"
)

const (
	dirName = ".unistream"
)

const initLongDesc string = `Initialize a new .unistream/ directory in the current working directory.

Creates a local .unistream/ directory that takes precedence over the default
~/.unistream/ directory for configuration, transcript storage, and session
state.

This is useful for maintaining separate unistream state per project or
directory. Pass --preset to also write a provider preset configuration.

Examples:
  unistream init
  unistream init --preset openai-responses`

const initShortDesc string = "Initialize a local .unistream/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Provider preset to write as the initial config (openai, openai-responses, deepseek, local)")

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyInitialized := err == nil && info.IsDir()

	if !alreadyInitialized {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .unistream directory: %w", err)
		}
	}

	// Fresh directories get a config.toml; already-initialized ones are only
	// touched when a preset is explicitly requested.
	if !alreadyInitialized || preset != "" {
		cfg := config.NewDefaultConfig()
		if preset != "" {
			var err error
			cfg, err = config.PresetConfig(preset)
			if err != nil {
				return err
			}
		}

		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := cfger.SaveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	if alreadyInitialized {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	fmt.Printf("Initialized .unistream directory: %s\n", dir)
	return nil
}
