package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"brightside/internal/app"
	"brightside/internal/config"
	"brightside/internal/logger"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig  string
	flagLimit   int
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "brightside",
	Short:         "Positive news aggregator",
	Long:          "brightside collects RSS and Atom feeds, keeps only positive stories and serves them on a small website.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and the background refresher",
	RunE:  runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print the kept stories",
	RunE:  runFetch,
}

var checkFeedsCmd = &cobra.Command{
	Use:   "check-feeds",
	Short: "Fetch every active feed and report item counts or errors",
	RunE:  runCheckFeeds,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "brightside %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.json", "path to config file")
	fetchCmd.Flags().IntVar(&flagLimit, "limit", 0, "print at most this many stories (0 prints all)")
	for _, c := range []*cobra.Command{fetchCmd, checkFeedsCmd} {
		c.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "log progress to stderr")
	}
	rootCmd.AddCommand(serveCmd, fetchCmd, checkFeedsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("could not start application: %w", err)
	}
	return application.Run()
}

// oneshotCore собирает компоненты для разовых команд. Логи пишутся в stderr
// только с флагом --verbose, чтобы не смешиваться с выводом команды.
func oneshotCore(ctx context.Context) (*app.Core, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logger.Discard()
	if flagVerbose {
		log = slog.New(logger.NewReadableHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(cfg.Logger.Level)}))
	}
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return core, cfg, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	core, _, err := oneshotCore(ctx)
	if err != nil {
		return err
	}
	defer core.Close()
	return app.FetchOnce(ctx, core, cmd.OutOrStdout(), flagLimit)
}

func runCheckFeeds(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()
	core, cfg, err := oneshotCore(ctx)
	if err != nil {
		return err
	}
	defer core.Close()
	sources, err := core.Moderation.ActiveSources(ctx)
	if err != nil {
		return err
	}
	checks := app.CheckFeeds(ctx, core.Fetcher, core.Parser, sources, cfg.App.FetchConcurrency)
	out := cmd.OutOrStdout()
	if failed := app.PrintChecks(out, checks); failed > 0 {
		return fmt.Errorf("%d of %d feeds failed", failed, len(checks))
	}
	fmt.Fprintln(out, "all feeds ok")
	return nil
}

