package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/querydesk/querydesk-cli/internal/client"
	"github.com/querydesk/querydesk-cli/internal/config"
	"github.com/querydesk/querydesk-cli/internal/dispatch"
	"github.com/querydesk/querydesk-cli/internal/logger"
	"github.com/querydesk/querydesk-cli/internal/mirror"
	"github.com/querydesk/querydesk-cli/internal/schema"
	"github.com/querydesk/querydesk-cli/internal/store"
)

// app wires one command invocation: config, mirror, store and backend client.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	storage mirror.Storage
	closer  io.Closer

	store      *store.Store
	client     *client.Client
	dispatcher *dispatch.Dispatcher
	display    displayOptions
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log.SetOutput(cmd.ErrOrStderr())

	storage, closer, err := openMirror(cfg)
	if err != nil {
		return nil, err
	}

	c := client.NewClient(cfg.Backend.URL, cfg.Backend.AgentPrefix, cfg.BackendTimeout())
	c.CSRFToken = cfg.Backend.CSRFToken

	st := store.New(store.NewMirrorPersister(storage), log)

	d := dispatch.New(c, st, log)
	d.Concurrency = cfg.Dispatch.Concurrency
	d.CallTimeout = cfg.CallTimeout()

	format := outputTable
	if f := cmd.Flags().Lookup("output"); f != nil {
		format = normalizeOutputFormat(f.Value.String())
	}

	log.WithFields(logrus.Fields{
		"backend": cfg.Backend.URL,
		"mirror":  cfg.Mirror.Driver,
		"config":  cfg.FileUsed,
	}).Debug("Loaded configuration")

	return &app{
		cfg:        cfg,
		log:        log,
		storage:    storage,
		closer:     closer,
		store:      st,
		client:     c,
		dispatcher: d,
		display: displayOptions{
			Plain:       cfg.Display.Plain,
			MaxColWidth: clampInt(cfg.Display.MaxColWidth, 8, 400),
			Format:      format,
		},
	}, nil
}

func openMirror(cfg *config.Config) (mirror.Storage, io.Closer, error) {
	path, err := cfg.MirrorPath()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Mirror.Driver {
	case config.DriverSQLite:
		s, err := mirror.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite mirror: %w", err)
		}
		return s, s, nil
	default:
		s, err := mirror.NewFileStorage(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open mirror: %w", err)
		}
		return s, nil, nil
	}
}

func (a *app) designer() *schema.Designer {
	return schema.Open(a.storage, a.log)
}

func (a *app) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
