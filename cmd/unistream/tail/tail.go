// Package tailcmder provides the tail command for inspecting recorded
// stream transcripts.
package tailcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unistreamhq/unistream/cmd/unistream/sqlitepath"
	"github.com/unistreamhq/unistream/pkg/cliui"
	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/dotdir"
	"github.com/unistreamhq/unistream/pkg/logger"
	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/storage/sqlite"
	"github.com/unistreamhq/unistream/pkg/usage"
	"github.com/unistreamhq/unistream/pkg/utils"
)

type tailCommander struct {
	id         string
	sqlitePath string
	apiTarget  string
	useSQLite  bool
	asJSON     bool
	noMarkdown bool

	configDir string
	debug     bool
}

const tailLongDesc string = `Show a recorded stream transcript.

Without arguments, shows the most recent stream: first the one remembered in
.unistream/session.json, falling back to the newest transcript in storage.
Pass --id to show a specific stream.

By default the transcript is fetched from the running API server
(client.api_target). Pass --sqlite to read a local SQLite database directly
instead, for example when no server is running.

Examples:
  unistream tail
  unistream tail --id chatcmpl-7abc
  unistream tail --sqlite
  unistream tail --sqlite --db ./unistream.db
  unistream tail --json`

const tailShortDesc string = "Show a recorded stream transcript"

func NewTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

			cmder.apiTarget = v.GetString("client.api_target")
			if cmd.Flags().Changed("db") {
				cmder.useSQLite = true
			} else {
				cmder.sqlitePath = v.GetString("storage.sqlite_path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.id, "id", "", "Stream id to show (default: last session, then newest)")
	cmd.Flags().BoolVar(&cmder.useSQLite, "sqlite", false, "Read a local SQLite database instead of the API")
	cmd.Flags().StringVar(&cmder.sqlitePath, "db", "", "Path to the SQLite database (implies --sqlite)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the raw transcript record as JSON")
	cmd.Flags().BoolVar(&cmder.noMarkdown, "no-markdown", false, "Skip markdown rendering of assembled text")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *tailCommander) run() error {
	log := c.newLogger()

	record, err := c.fetchRecord()
	if err != nil {
		return err
	}
	log.Debug("loaded transcript", "stream_id", record.ID, "events", len(record.Events))

	if c.asJSON {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling transcript: %w", err)
		}
		fmt.Println(string(data))
	} else {
		c.render(record)
	}

	// Remember this stream so the next bare "unistream tail" shows it again.
	state := &dotdir.SessionState{
		StreamID:   record.ID,
		Provider:   record.Provider,
		Model:      record.Model,
		FinishedAt: record.CompletedAt,
	}
	if err := dotdir.NewManager().SaveSession(state, c.configDir); err != nil {
		log.Warn("could not save session state", "error", err)
	}

	return nil
}

// newLogger builds the command's diagnostic logger: pretty output on stdout
// plus a JSON record in .unistream/tail.log when the directory is writable.
func (c *tailCommander) newLogger() *slog.Logger {
	pretty := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return pretty
	}
	f, err := os.OpenFile(filepath.Join(dir, "tail.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return pretty
	}

	fileLogger := logger.New(logger.WithJSON(true), logger.WithDebug(c.debug), logger.WithWriter(f))
	return logger.Multi(pretty, fileLogger)
}

// fetchRecord resolves which stream to show and loads it, either over the
// API or straight from a local SQLite database.
func (c *tailCommander) fetchRecord() (*storage.StreamRecord, error) {
	id := c.id
	if id == "" {
		if state, err := dotdir.NewManager().LoadSessionState(c.configDir); err == nil && state != nil {
			id = state.StreamID
		}
	}

	if c.useSQLite {
		return c.fetchFromSQLite(id)
	}
	return c.fetchFromAPI(id)
}

func (c *tailCommander) fetchFromSQLite(id string) (*storage.StreamRecord, error) {
	path, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return nil, err
	}

	driver, err := sqlite.NewSQLiteDriver(path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	defer driver.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if id == "" {
		records, err := driver.ListStreams(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("listing streams: %w", err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("no streams recorded yet")
		}
		id = records[0].ID
	}

	record, err := driver.GetStream(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading stream %q: %w", id, err)
	}
	return record, nil
}

func (c *tailCommander) fetchFromAPI(id string) (*storage.StreamRecord, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	if id == "" {
		var listing struct {
			Count   int                     `json:"count"`
			Streams []*storage.StreamRecord `json:"streams"`
		}
		if err := getJSON(client, c.apiTarget+"/streams?limit=1", &listing); err != nil {
			return nil, err
		}
		if len(listing.Streams) == 0 {
			return nil, fmt.Errorf("no streams recorded yet")
		}
		id = listing.Streams[0].ID
	}

	record := &storage.StreamRecord{}
	if err := getJSON(client, c.apiTarget+"/streams/"+url.PathEscape(id), record); err != nil {
		return nil, err
	}
	return record, nil
}

func getJSON(client *http.Client, target string, out any) error {
	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("reaching API at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("API error: %s", apiErr.Error)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding API response: %w", err)
	}
	return nil
}

func (c *tailCommander) render(record *storage.StreamRecord) {
	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Stream:  "), cliui.ValueStyle.Render(record.ID))
	fmt.Printf("  %s  %s %s\n",
		cliui.KeyStyle.Render("Upstream:"),
		cliui.ValueStyle.Render(record.Provider),
		cliui.DimStyle.Render("("+record.Dialect+")"),
	)
	if record.Model != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Model:   "), cliui.ValueStyle.Render(record.Model))
	}
	fmt.Printf("  %s  %s in %s\n",
		cliui.KeyStyle.Render("Result:  "),
		cliui.ValueStyle.Render(fmt.Sprintf("HTTP %d", record.HTTPStatus)),
		cliui.ValueStyle.Render(cliui.FormatDuration(time.Duration(record.DurationMs)*time.Millisecond)),
	)
	if record.Usage != nil {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Tokens:  "), cliui.ValueStyle.Render(formatUsage(record.Usage)))
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d events", len(record.Events))))

	var text strings.Builder
	for _, event := range record.Events {
		payload := eventDataString(event.Data)
		if event.Type == "text" {
			text.WriteString(payload)
		}
		fmt.Printf("  %s %s\n", cliui.EventLabel(event.Type), utils.Truncate(payload, 96))
	}

	if text.Len() > 0 && !c.noMarkdown {
		rendered, err := cliui.RenderMarkdown(text.String())
		if err == nil {
			fmt.Println()
			fmt.Print(rendered)
		}
	}

	fmt.Println()
}

func formatUsage(u *usage.Usage) string {
	return fmt.Sprintf("%d prompt + %d completion = %d total",
		u.TotalInputTokens, u.TotalOutputTokens, u.TotalTokens)
}

// eventDataString renders a stored event payload for a single transcript
// line. Bare JSON strings print unquoted, other payloads print compacted.
func eventDataString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
