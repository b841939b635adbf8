package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"makosite/internal/config"
	"makosite/internal/contact"
	"makosite/internal/email"
	"makosite/internal/kv"
)

var (
	// cfg and logger are set by PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger *zap.Logger

	flagVerbose bool
	flagEnvFile string
)

var rootCmd = &cobra.Command{
	Use:   "mako",
	Short: "MAKO site backend",
	Long: `mako serves the MAKO link directory and contact form API.

Configuration is read from the environment. See the serve, migrate,
queue and health subcommands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(flagEnvFile); err != nil {
			return fmt.Errorf("load %s: %w", flagEnvFile, err)
		}
		cfg = config.Load()

		l, err := newLogger(cfg, flagVerbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "file with KEY=value settings; the environment wins")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(healthCmd)
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDev() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// openQueue opens the configured queue storage and a contact queue over it.
// The caller closes the returned store.
func openQueue() (*contact.Queue, kv.Store, error) {
	target := cfg.QueuePath
	if cfg.QueueBackend == kv.BackendRedis {
		target = cfg.RedisURL
	}
	store, err := kv.Open(cfg.QueueBackend, target)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s queue storage: %w", cfg.QueueBackend, err)
	}

	queue := contact.NewQueue(contact.Config{
		Endpoint:  cfg.ContactEndpoint,
		HealthURL: cfg.ContactHealthURL,
		Source:    cfg.ContactSource,
		Timeout:   cfg.ContactTimeout,
	}, store,
		contact.WithLogger(logger.Named("contact")),
		contact.WithNotifier(email.NewNotifier(cfg, logger.Named("email"))),
	)
	return queue, store, nil
}
