// Package apicmder provides the transcript API server command.
package apicmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/api"
	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/dotdir"
	"github.com/unistreamhq/unistream/pkg/logger"
	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/storage/inmemory"
	"github.com/unistreamhq/unistream/pkg/storage/postgres"
	"github.com/unistreamhq/unistream/pkg/storage/sqlite"
)

type apiCommander struct {
	listen      string
	pprof       bool
	storageDriv string
	sqlitePath  string
	postgresDSN string
	configDir   string
	debug       bool

	logger *zap.Logger
}

const apiLongDesc string = `Run the unistream API server for inspecting and managing stream transcripts.`

const apiShortDesc string = "Run the unistream API server"

var apiFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagAPIPprof,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, apiFlagKeys)

			cmder.listen = v.GetString("api.listen")
			cmder.pprof = v.GetBool("api.pprof")
			cmder.storageDriv = v.GetString("storage.driver")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddBoolFlag(cmd, config.Flags, config.FlagAPIPprof, &cmder.pprof)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriv)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)

	return cmd
}

func (c *apiCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	apiConfig := api.Config{
		ListenAddr:  c.listen,
		EnablePprof: c.pprof,
	}

	server := api.NewServer(apiConfig, driver, c.logger)

	c.logger.Info("starting API server",
		zap.String("listen", c.listen),
	)

	return server.Run()
}

func (c *apiCommander) newStorageDriver() (storage.Driver, error) {
	switch c.storageDriv {
	case "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "postgres":
		if c.postgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires a postgres DSN", c.storageDriv)
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
		return nil, fmt.Errorf("unknown storage driver: %q (available: sqlite, postgres, memory)", c.storageDriv)
	}
}
