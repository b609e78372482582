// Command tech-ai-bot runs the news bot: it ingests feeds, publishes
// generated posts to X and answers mentions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tech-ai-bot/internal/agent"
	"tech-ai-bot/internal/config"
	"tech-ai-bot/internal/logutil"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// annotationOffline marks commands that never call the X API.
const annotationOffline = "offline"

var (
	configPath string
	verbose    bool
	dryRun     bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tech-ai-bot",
	Short: "Tech news bot for X",
	Long: `tech-ai-bot turns technology news feeds into posts on X.

A pass ingests the configured feeds into a pending queue, publishes at most
one post within the daily limit and replies to new mentions. Schedule
"tech-ai-bot run" from cron or a CI workflow.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Read(configPath)
		if err != nil {
			return err
		}
		if dryRun {
			cfg.X.DryRun = true
		}
		validate := cfg.Validate
		if cmd.Annotations[annotationOffline] == "true" {
			validate = cfg.ValidateOffline
		}
		if err := validate(); err != nil {
			return fmt.Errorf("config: validate: %w", err)
		}
		logger, err = logutil.New(cfg.Log.Level, cfg.Log.Format, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pass: ingest, publish, reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), agent.AllSteps)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch feeds and enqueue new items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), agent.Steps{Ingest: true})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish at most one post from the queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), agent.Steps{Publish: true})
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Reply to new mentions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSteps(cmd.Context(), agent.Steps{Reply: true})
	},
}

var verifyCmd = &cobra.Command{
	Use:         "verify",
	Short:       "List headlines reported by more than one feed",
	Args:        cobra.NoArgs,
	RunE:        runVerify,
	Annotations: map[string]string{annotationOffline: "true"},
}

var queueStatus string
var queueLimit int

var queueCmd = &cobra.Command{
	Use:         "queue",
	Short:       "Show queued items",
	Args:        cobra.NoArgs,
	RunE:        runQueue,
	Annotations: map[string]string{annotationOffline: "true"},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log posts and replies instead of sending them")

	queueCmd.Flags().StringVar(&queueStatus, "status", "pending", "pending, published or all")
	queueCmd.Flags().IntVar(&queueLimit, "limit", 20, "maximum items to show (0 = all)")

	rootCmd.AddCommand(runCmd, ingestCmd, publishCmd, replyCmd, verifyCmd, queueCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
