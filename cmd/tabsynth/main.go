package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabsynth/tabsynth-go/pkg/store"
	"github.com/tabsynth/tabsynth-go/pkg/tabsynth"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app holds the shared state behind all CLI commands. The platform client
// and the local cache are created lazily so commands that need neither (like
// report) work without an API key or a writable cache path.
type app struct {
	config *Config
	logger *slog.Logger

	client *tabsynth.Client
	db     *sql.DB
	cache  *store.Store
}

// init loads the config and sets up logging. Called from the root command's
// PersistentPreRunE.
func (a *app) init(configPath string) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.config = config
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(config.LogLevel),
	}))
	return nil
}

// apiClient returns the platform client, creating it on first use.
func (a *app) apiClient() (*tabsynth.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	client, err := tabsynth.NewClient(a.config.BaseURL, a.config.APIKey,
		tabsynth.WithPollInterval(time.Duration(a.config.PollIntervalSec)*time.Second))
	if err != nil {
		return nil, err
	}
	client.SetLogger(a.logger)
	a.client = client
	return a.client, nil
}

// store returns the local cache, opening the database on first use.
func (a *app) store() (*store.Store, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	db, err := initDB(a.config.CacheDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up cache schema: %w", err)
	}
	cache, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	cache.SetLogger(a.logger)
	a.db = db
	a.cache = cache
	return a.cache, nil
}

// close releases the cache database if it was opened.
func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "tabsynth",
		Short:         "Train generators and produce synthetic tabular data on the TabSynth platform",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config-file", defaultConfigPath(), "path to the CLI config file")

	root.AddCommand(
		newTrainCmd(a),
		newProbeCmd(a),
		newGenerateCmd(a),
		newGeneratorsCmd(a),
		newDatasetsCmd(a),
		newReportCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
