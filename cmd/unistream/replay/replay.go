// Package replaycmder provides the replay command for running a captured
// vendor SSE stream through the normalization pipeline offline.
package replaycmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unistreamhq/unistream/pkg/cliui"
	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/logger"
	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/sse"
	"github.com/unistreamhq/unistream/pkg/streams"
	"github.com/unistreamhq/unistream/pkg/streams/openai"
	"github.com/unistreamhq/unistream/pkg/utils"
)

type replayCommander struct {
	provider string
	dialect  string
	render   bool
	asJSON   bool

	configDir string
	debug     bool

	out io.Writer
}

const replayLongDesc string = `Replay a captured provider SSE stream through the normalization pipeline.

Reads raw server-sent events from a file (or stdin when no file is given),
runs them through the transformer for the configured dialect, and prints the
resulting normalized events. Useful for inspecting what the relay would have
emitted for a given upstream capture, without any server running.

Examples:
  unistream replay capture.sse
  unistream replay --dialect responses capture.sse
  curl -sN https://api.openai.com/v1/chat/completions -d @req.json | unistream replay
  unistream replay --render capture.sse`

const replayShortDesc string = "Replay a captured SSE stream through the pipeline"

// replayFlagKeys lists the registry flags the replay command binds to viper.
var replayFlagKeys = []string{
	config.FlagProvider,
	config.FlagDialect,
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, replayFlagKeys)

			cmder.provider = v.GetString("relay.provider")
			cmder.dialect = v.GetString("relay.dialect")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return cmder.run(input)
		},
	}

	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render accumulated text as markdown after the event list")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print normalized events as JSON lines")
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagDialect, &cmder.dialect)

	return cmd
}

func (c *replayCommander) run(input string) error {
	src := io.Reader(os.Stdin)
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("opening capture: %w", err)
		}
		defer f.Close()
		src = f
	}

	log := logger.NewLogger(c.debug)
	defer func() { _ = log.Sync() }()

	opts := openai.Options{Provider: c.provider, Logger: log}
	decoder := sse.NewDataDecoder(src)

	var pipeline *streams.Pipeline
	switch c.dialect {
	case config.DialectChat:
		pipeline = openai.ChatStream(decoder, opts)
	case config.DialectResponses:
		pipeline = openai.ResponsesStream(decoder, opts)
	default:
		return fmt.Errorf("unknown dialect: %q", c.dialect)
	}
	defer pipeline.Close()

	var text strings.Builder
	count := 0
	ctx := context.Background()
	for {
		events, err := pipeline.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}

		for _, event := range events {
			count++
			if event.Type == protocol.EventText {
				if s, ok := event.Data.(string); ok {
					text.WriteString(s)
				}
			}
			if err := c.printEvent(event); err != nil {
				return err
			}
		}
	}

	if c.asJSON {
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d events", count)))

	if c.render && text.Len() > 0 {
		rendered, err := cliui.RenderMarkdown(text.String())
		if err == nil {
			fmt.Fprintln(c.out)
			fmt.Fprint(c.out, rendered)
		}
	}

	return nil
}

func (c *replayCommander) printEvent(event protocol.Event) error {
	if c.asJSON {
		line, err := json.Marshal(struct {
			Type protocol.EventType `json:"type"`
			ID   string             `json:"id,omitempty"`
			Data any                `json:"data,omitempty"`
		}{event.Type, event.ID, event.Data})
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		fmt.Fprintln(c.out, string(line))
		return nil
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.EventLabel(string(event.Type)), utils.Truncate(eventString(event.Data), 96))
	return nil
}

// eventString renders an event payload for a single listing line. String
// payloads print as-is, everything else prints as compact JSON.
func eventString(data any) string {
	if data == nil {
		return ""
	}
	if s, ok := data.(string); ok {
		return s
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(encoded)
}
