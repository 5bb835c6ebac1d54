package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fhagen/clientpulse/internal/ai"
	"github.com/fhagen/clientpulse/internal/cluster"
	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/mail"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/sched"
	"github.com/fhagen/clientpulse/internal/sentiment"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/track"
	"github.com/fhagen/clientpulse/internal/trigger"
	"github.com/fhagen/clientpulse/internal/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring pipeline until interrupted",
	Long: `Start the background pipeline: watch the configured directories for
metric exports and transcripts, poll mailboxes, classify sentiment, cluster
themes and scan for client-risk triggers.

Runs until SIGINT or SIGTERM. Every capability degrades gracefully: without
an AI key the remote classifier and trigger analysis are disabled, without
mailbox credentials mail polling is skipped.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("watch", nil, "directories to watch (repeatable)")
	viper.BindPFlag("watch", runCmd.Flags().Lookup("watch"))
}

func runRun(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	dbPath := viper.GetString("db")
	watchDirs := GetConfigStringSlice("watch")

	util.InfoLog("Opening database: %s", dbPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger, err := report.NewEventLogger("artifacts", eventLogLevel())
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	defer logger.Close()

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	// The AI client is optional: without it classification stays local-only
	// and trigger analysis is disabled
	var aiClient *ai.Client
	if apiKey := GetConfigString("ai_api_key", ""); apiKey != "" {
		aiClient, err = ai.NewClient(apiKey)
		if err != nil {
			return fmt.Errorf("failed to create AI client: %w", err)
		}
	} else {
		util.WarnLog("No AI API key configured (PULSE_AI_API_KEY): remote classification and trigger analysis disabled")
	}

	var remote sentiment.RemoteClassifier
	var analyzer trigger.Analyzer
	if aiClient != nil {
		remote = aiClient
		analyzer = aiClient
	}

	pipeline := sentiment.New(&sentiment.Config{
		Store:  db,
		Local:  &sentiment.LocalClassifier{},
		Remote: remote,
		Logger: logger,
	})

	clusterer := cluster.New(&cluster.Config{Store: db, Logger: logger})

	triggerEngine := trigger.New(&trigger.Config{
		Store:         db,
		Analyzer:      analyzer,
		Logger:        logger,
		NotifyAddress: GetConfigString("notify_address", ""),
	})

	var fetcher *mail.Fetcher
	if accounts := mailAccounts(); len(accounts) > 0 {
		fetcher = mail.New(&mail.Config{
			Store:    db,
			Accounts: accounts,
			Window:   GetConfigDuration("mail.window", mail.DefaultWindow),
			Logger:   logger,
		})
	} else {
		util.WarnLog("No mailbox accounts configured: mail polling disabled")
	}

	scheduler, err := sched.New(&sched.Config{
		Importer:  ingest.New(&ingest.Config{Store: db, Logger: logger}),
		Tracker:   track.New(db),
		Fetcher:   fetcher,
		Pipeline:  pipeline,
		Clusterer: clusterer,
		Trigger:   triggerEngine,
		Logger:    logger,
		WatchDirs: watchDirs,
		Debounce:  GetConfigDuration("watch_debounce", 0),
		Intervals: sched.Intervals{
			Mail:     GetConfigDuration("intervals.mail", sched.DefaultMailInterval),
			Cluster:  GetConfigDuration("intervals.cluster", sched.DefaultClusterInterval),
			Trigger:  GetConfigDuration("intervals.trigger", sched.DefaultTriggerInterval),
			Analysis: GetConfigDuration("intervals.analysis", sched.DefaultAnalysisInterval),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	util.InfoLog("Received %v, shutting down", sig)
	scheduler.Stop()
	util.SuccessLog("Pipeline stopped cleanly")
	return nil
}
