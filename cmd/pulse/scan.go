package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fhagen/clientpulse/internal/ingest"
	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/sched"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/track"
	"github.com/fhagen/clientpulse/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "One-shot import of supported files from the given directories",
	Long: `Walk the given directories and import every supported file through the
same routine the watcher uses: metric exports become client metric
snapshots, transcripts become conversation rows awaiting analysis.

Files whose content is unchanged since their last import are skipped via
the change ledger. Use this for backfill before starting 'pulse run'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	dbPath := viper.GetString("db")

	for _, dir := range args {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
	}

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

	var files []string
	for _, dir := range args {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if ingest.IsSupported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	}

	if len(files) == 0 {
		util.WarnLog("No supported files found")
		return nil
	}
	util.InfoLog("Found %d supported file(s)", len(files))

	// One-shot scans reuse the scheduler's file path without starting its
	// tickers, so the ledger and trigger semantics match the watcher's
	scheduler, err := sched.New(&sched.Config{
		Importer: ingest.New(&ingest.Config{Store: db, Logger: logger}),
		Tracker:  track.New(db),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create import pipeline: %w", err)
	}
	defer scheduler.Stop()

	// Progress bar only when stdout is a terminal
	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	start := time.Now()
	for _, path := range files {
		scheduler.HandleFile(path)
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	util.SuccessLog("Scan complete in %v", time.Since(start).Round(time.Millisecond))

	counts, err := db.CountProcessedFiles()
	if err == nil {
		util.InfoLog("Ledger: %d completed, %d errored, %d in progress",
			counts[store.FileStatusCompleted], counts[store.FileStatusError], counts[store.FileStatusProcessing])
	}

	conversations, _ := db.CountConversations()
	if conversations > 0 {
		util.InfoLog("Next step: pulse run to classify %d pending conversation(s)", conversations)
	}
	return nil
}
