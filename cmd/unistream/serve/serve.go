// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/api"
	apicmder "github.com/unistreamhq/unistream/cmd/unistream/serve/api"
	relaycmder "github.com/unistreamhq/unistream/cmd/unistream/serve/relay"
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

type ServeCommander struct {
	relayListen     string
	apiListen       string
	apiPprof        bool
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

	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run unistream services.

Use subcommands to run individual services or all services together:
  unistream serve          Run both relay and API server together
  unistream serve api      Run just the API server
  unistream serve relay    Run just the relay server`

const serveShortDesc string = "Run unistream services"

var serveFlagKeys = []string{
	config.FlagRelayListen,
	config.FlagAPIListen,
	config.FlagAPIPprof,
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

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)
			cmder.viper = v

			cmder.relayListen = v.GetString("relay.listen")
			cmder.apiListen = v.GetString("api.listen")
			cmder.apiPprof = v.GetBool("api.pprof")
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
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, &cmder.relayListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAPIPprof, &cmder.apiPprof)
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

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	// Create shared storage driver
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

	// Create relay
	relayConfig := relay.Config{
		ListenAddr:           c.relayListen,
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

	c.logger.Info("starting relay",
		zap.String("relay_addr", c.relayListen),
		zap.String("upstream", c.upstream),
		zap.String("provider", c.provider),
		zap.String("dialect", c.dialect),
	)

	// Create API server
	apiConfig := api.Config{
		ListenAddr:  c.apiListen,
		EnablePprof: c.apiPprof,
	}
	apiServer := api.NewServer(apiConfig, driver, c.logger)

	c.logger.Info("starting api server",
		zap.String("api_addr", c.apiListen),
	)

	// Log config file edits while the services run. Changes take effect on
	// the next restart.
	if c.viper != nil && c.viper.ConfigFileUsed() != "" {
		c.viper.OnConfigChange(func(e fsnotify.Event) {
			c.logger.Info("config file changed, restart to apply", zap.String("file", e.Name))
		})
		c.viper.WatchConfig()
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	// Start relay in goroutine
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	// Start API server in goroutine
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

func (c *ServeCommander) newStorageDriver() (storage.Driver, error) {
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

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
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
