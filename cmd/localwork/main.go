package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Codeblockz/localwork-hero/internal/app"
	"github.com/Codeblockz/localwork-hero/internal/config"
	"github.com/Codeblockz/localwork-hero/internal/logging"
	"github.com/Codeblockz/localwork-hero/internal/metrics"
	"github.com/Codeblockz/localwork-hero/internal/resource"
)

var (
	cfgFile   string
	logLevel  string
	useMock   bool
	jsonLogs  bool
	modelFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "localwork",
		Short: "Local AI assistant with scoped file access",
		Long: `LocalWork Hero runs a language model on your own machine. Models are
downloaded from the built-in catalog, and the assistant can only touch
files inside folders you have granted.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.localwork-hero/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON logs")
	rootCmd.PersistentFlags().BoolVar(&useMock, "mock", false, "use the mock inference engine")

	rootCmd.AddCommand(infoCmd(), modelsCmd(), foldersCmd(), chatCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session is everything a command needs
type session struct {
	cfg *config.Config
	log *logging.Logger
	app *app.App
}

func openSession() (*session, error) {
	cfg, err := config.LoadWithPriority(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if jsonLogs {
		cfg.LogJSON = true
	}
	if useMock {
		cfg.UseMockEngine = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(os.Stderr).SetLevelFromString(cfg.LogLevel).SetJSON(cfg.LogJSON)

	a, err := app.New(cfg, log, metrics.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return &session{cfg: cfg, log: log, app: a}, nil
}

func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		s.log.Warn("shutdown", map[string]any{"error": err})
	}
	_ = s.log.Sync()
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show version and system resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := s.app.Info(cmd.Context())
			if err != nil {
				return err
			}
			stats := resource.Snapshot(s.cfg.ModelsDir)

			fmt.Printf("%s %s\n\n", info.Name, info.Version)
			fmt.Printf("Data dir:    %s\n", s.cfg.DataDir)
			fmt.Printf("Models dir:  %s\n", s.cfg.ModelsDir)
			fmt.Printf("CPUs:        %d\n", stats.CPUCount)
			fmt.Printf("Memory:      %d MB available of %d MB\n", stats.MemoryAvailableMB, stats.MemoryTotalMB)
			fmt.Printf("Disk:        %d MB free of %d MB\n", stats.DiskFreeMB, stats.DiskTotalMB)
			return nil
		},
	}
}
