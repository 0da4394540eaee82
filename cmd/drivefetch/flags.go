package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ethangolledge/doc-query/internal/config"
	"github.com/ethangolledge/doc-query/internal/drive"
	drivehttp "github.com/ethangolledge/doc-query/internal/http"
	"github.com/ethangolledge/doc-query/internal/logging"
)

// commonFlags are the configuration flags shared by every command. Their
// zero values mean "not given" so they only override what is set.
type commonFlags struct {
	fs              *flag.FlagSet
	configFile      *string
	envFile         *string
	folder          *string
	dest            *string
	apiKey          *string
	serviceAccount  *string
	baseURL         *string
	workers         *int
	pageSize        *int
	delay           *time.Duration
	maxDepth        *int
	allowedTypes    *string
	typesFile       *string
	sample          *int
	seed            *uint64
	showProgress    *bool
	logLevel        *string
	logFormat       *string
	logOutput       *string
	retryAttempts   *int
	retryBackoff    *time.Duration
	retryMaxBackoff *time.Duration
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:              fs,
		configFile:      fs.String("config", "", "YAML configuration file"),
		envFile:         fs.String("env-file", ".env", "Environment file with credentials (ignored if missing)"),
		folder:          fs.String("folder", "", "Drive folder ID to scan (required)"),
		dest:            fs.String("dest", "", "Destination directory or bucket URL (default gdrive_downloads)"),
		apiKey:          fs.String("api-key", "", "Drive API key"),
		serviceAccount:  fs.String("service-account", "", "Path to a service account JSON key"),
		baseURL:         fs.String("base-url", "", "Override the Drive API endpoint"),
		workers:         fs.Int("workers", 0, "Number of parallel download workers (default 10)"),
		pageSize:        fs.Int("page-size", 0, "Listing page size, at most 1000 (default 1000)"),
		delay:           fs.Duration("delay", 0, "Pause after every download attempt (default 100ms)"),
		maxDepth:        fs.Int("max-depth", 0, "Maximum folder depth to walk (0 = unlimited)"),
		allowedTypes:    fs.String("allowed-types", "", "Comma-separated processable types (default text/plain)"),
		typesFile:       fs.String("types-file", "", "Where to write the distinct type list"),
		sample:          fs.Int("sample", 0, "Download only a random N of the selected files"),
		seed:            fs.Uint64("seed", 0, "Sampling seed (default 42)"),
		showProgress:    fs.Bool("progress", false, "Show progress output"),
		logLevel:        fs.String("log-level", "", "Log level: debug, info, warn, error"),
		logFormat:       fs.String("log-format", "", "Log format: json, console"),
		logOutput:       fs.String("log-output", "", "Log output: stderr, stdout, or a file path"),
		retryAttempts:   fs.Int("retry-attempts", 0, "Max HTTP retry attempts per request (default 5)"),
		retryBackoff:    fs.Duration("retry-backoff", 0, "Initial HTTP retry backoff (default 1s)"),
		retryMaxBackoff: fs.Duration("retry-max-backoff", 0, "Max HTTP retry backoff (default 30s)"),
	}
}

// load resolves the configuration: defaults, then the YAML file, then the
// environment (after loading the env file), then flags.
func (f *commonFlags) load() (config.Config, error) {
	if err := godotenv.Load(*f.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := config.Default()
	if *f.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(*f.configFile); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	cfg = cfg.Merge(config.Config{
		FolderID:           *f.folder,
		Destination:        *f.dest,
		APIKey:             *f.apiKey,
		ServiceAccountJSON: *f.serviceAccount,
		BaseURL:            *f.baseURL,
		Workers:            *f.workers,
		PageSize:           *f.pageSize,
		Delay:              *f.delay,
		MaxDepth:           *f.maxDepth,
		AllowedTypes:       config.SplitList(*f.allowedTypes),
		TypesFile:          *f.typesFile,
		Sample:             *f.sample,
		Seed:               *f.seed,
		Progress:           *f.showProgress,
		Log: config.LogConfig{
			Level:  *f.logLevel,
			Format: *f.logFormat,
			Output: *f.logOutput,
		},
		Retry: config.RetryConfig{
			Attempts:   *f.retryAttempts,
			Backoff:    *f.retryBackoff,
			MaxBackoff: *f.retryMaxBackoff,
		},
	})

	// -delay 0 disables the pause, unlike the other zero-valued flags
	if f.isSet("delay") {
		cfg.Delay = *f.delay
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (f *commonFlags) isSet(name string) bool {
	set := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			set = true
		}
	})
	return set
}

// newDriveClient builds the Drive client for cfg. A service account takes
// precedence over an API key.
func newDriveClient(ctx context.Context, cfg config.Config) (*drive.Client, error) {
	httpOpts := drivehttp.DefaultOptions()
	httpOpts.RetryAttempts = cfg.Retry.Attempts
	httpOpts.RetryBackoff = cfg.Retry.Backoff
	httpOpts.RetryMaxBackoff = cfg.Retry.MaxBackoff

	opts := drive.Options{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		PageSize: cfg.PageSize,
		HTTP:     httpOpts,
	}
	if cfg.ServiceAccountJSON != "" {
		ts, err := drive.ServiceAccountTokenSource(ctx, cfg.ServiceAccountJSON)
		if err != nil {
			return nil, err
		}
		opts.TokenSource = ts
	}
	return drive.New(ctx, opts)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[drivefetch] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
