// Package relaycmder provides the relay server command.
package relaycmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/dotdir"
	"github.com/unistreamhq/unistream/pkg/eventstream"
	"github.com/unistreamhq/unistream/pkg/eventstream/kafka"
	"github.com/unistreamhq/unistream/pkg/eventstream/nop"
	"github.com/unistreamhq/unistream/pkg/logger"
	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/storage/inmemory"
	"github.com/unistreamhq/unistream/pkg/storage/postgres"
	"github.com/unistreamhq/unistream/pkg/storage/sqlite"
	"github.com/unistreamhq/unistream/relay"
)

type relayCommander struct {
	listen          string
	upstream        string
	provider        string
	dialect         string
	requireTerminal bool
	tokenSpeed      bool

	storageDriver string
	sqlitePath    string
	postgresDSN   string

	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	configDir string
	debug     bool

	logger *zap.Logger
}

const relayLongDesc string = `Run the relay server.

The relay accepts provider-shaped requests, forwards them to the configured
upstream, and rewrites streaming responses into the uniform typed event
protocol. Completed stream transcripts are persisted to storage and
optionally published to Kafka.

Supported dialects: chat, responses`

const relayShortDesc string = "Run the unistream relay server"

// relayFlagKeys lists the registry flags the relay command binds to viper.
var relayFlagKeys = []string{
	config.FlagRelayListen,
	config.FlagUpstream,
	config.FlagProvider,
	config.FlagDialect,
	config.FlagRequireStop,
	config.FlagTokenSpeed,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, relayFlagKeys)

			cmder.listen = v.GetString("relay.listen")
			cmder.upstream = v.GetString("relay.upstream")
			cmder.provider = v.GetString("relay.provider")
			cmder.dialect = v.GetString("relay.dialect")
			cmder.requireTerminal = v.GetBool("stream.require_terminal_event")
			cmder.tokenSpeed = v.GetBool("stream.token_speed")
			cmder.storageDriver = v.GetString("storage.driver")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.eventsProvider = v.GetString("events.provider")
			cmder.eventsBrokers = v.GetString("events.brokers")
			cmder.eventsTopic = v.GetString("events.topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagDialect, &cmder.dialect)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRequireStop, &cmder.requireTerminal)
	config.AddBoolFlag(cmd, config.Flags, config.FlagTokenSpeed, &cmder.tokenSpeed)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *relayCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	relayConfig := relay.Config{
		ListenAddr:           c.listen,
		UpstreamURL:          c.upstream,
		Provider:             c.provider,
		Dialect:              c.dialect,
		RequireTerminalEvent: c.requireTerminal,
		TokenSpeed:           c.tokenSpeed,
		Debug:                c.debug,
	}

	r, err := relay.New(relayConfig, driver, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	c.logger.Info("starting relay server",
		zap.String("listen", c.listen),
		zap.String("upstream", c.upstream),
		zap.String("provider", c.provider),
		zap.String("dialect", c.dialect),
	)

	return r.Run()
}

func (c *relayCommander) newStorageDriver() (storage.Driver, error) {
	switch c.storageDriver {
	case "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "postgres":
		if c.postgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires a postgres DSN", c.storageDriver)
		}
		driver, err := postgres.NewDriver(context.Background(), c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres driver: %w", err)
		}
		c.logger.Info("using postgres storage")
		return driver, nil

	case "sqlite", "":
		path := c.sqlitePath
		if path == "" {
			dir, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving storage dir: %w", err)
			}
			path = filepath.Join(dir, "unistream.db")
		}
		driver, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (available: sqlite, postgres, memory)", c.storageDriver)
	}
}

func (c *relayCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "", "none":
		return nop.NewPublisher(), nil

	case "kafka":
		publisher, err := kafka.NewPublisher(c.eventsBrokers, c.eventsTopic)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing stream events to kafka",
			zap.String("brokers", c.eventsBrokers),
			zap.String("topic", c.eventsTopic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown events provider: %q (available: none, kafka)", c.eventsProvider)
	}
}
