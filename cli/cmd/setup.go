package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sounder/adapter"
	"github.com/justapithecus/sounder/adapter/redis"
	"github.com/justapithecus/sounder/adapter/webhook"
	"github.com/justapithecus/sounder/archive"
	"github.com/justapithecus/sounder/cli/config"
	"github.com/justapithecus/sounder/log"
	"github.com/justapithecus/sounder/metrics"
	"github.com/justapithecus/sounder/monitor"
	"github.com/justapithecus/sounder/store"
	"github.com/justapithecus/sounder/visibility"
)

// loadConfig reads the config file named by --config (if any) and
// applies flag overrides. Flags always win over file values.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if endpoint := c.String("endpoint"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if dir := c.String("store-dir"); dir != "" {
		cfg.Store.Dir = dir
	}
	if clientID := c.String("client-id"); clientID != "" {
		cfg.ClientID = clientID
	}
	return cfg, nil
}

// openStore creates the file store from config, defaulting the
// directory to the current working directory.
func openStore(cfg *config.Config) (*store.FileStore, error) {
	dir := cfg.Store.Dir
	if dir == "" {
		dir = "."
	}
	return store.NewFileStore(dir, cfg.Store.Prefix)
}

// buildAdapters constructs the configured completion adapter, if any.
func buildAdapters(cfg *config.Config) ([]adapter.Adapter, error) {
	retries := 0
	if cfg.Adapter.Retries != nil {
		retries = *cfg.Adapter.Retries
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("redis adapter: %w", err)
		}
		return []adapter.Adapter{a}, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook adapter: %w", err)
		}
		return []adapter.Adapter{a}, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q (expected redis or webhook)", cfg.Adapter.Type)
	}
}

// buildArchiver constructs the S3 archiver when a bucket is configured.
func buildArchiver(ctx context.Context, cfg *config.Config) (*archive.Archiver, error) {
	if cfg.Archive.Bucket == "" {
		return nil, nil
	}
	return archive.New(ctx, archive.Config{
		Bucket:       cfg.Archive.Bucket,
		Prefix:       cfg.Archive.Prefix,
		Region:       cfg.Archive.Region,
		Endpoint:     cfg.Archive.Endpoint,
		UsePathStyle: cfg.Archive.S3PathStyle,
	})
}

// buildMonitor assembles a monitor from the resolved config.
// onUpdate may be nil for commands that poll state instead. A nil
// logger selects stderr logging; the watch TUI passes log.Nop() to
// keep the alternate screen clean.
func buildMonitor(ctx context.Context, cfg *config.Config, logger *log.Logger, onUpdate func(monitor.State)) (*monitor.Monitor, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured (use --endpoint or the config file)")
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		return nil, err
	}

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewLogger(cfg.ClientID)
	}
	return monitor.New(monitor.Config{
		Endpoint:         cfg.Endpoint,
		ClientID:         cfg.ClientID,
		Policy:           cfg.Reconnect.Policy(),
		Store:            st,
		GraceWindow:      cfg.GraceWindow.Duration,
		JournalDir:       cfg.JournalDir,
		Logger:           logger,
		Metrics:          metrics.NewCollector(cfg.ClientID),
		Adapters:         adapters,
		Archiver:         archiver,
		VisibilitySource: visibility.NewSignalSource(),
		OnUpdate:         onUpdate,
	})
}
