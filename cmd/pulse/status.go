package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline state summary",
	Long: `Display summary counts from the state database: processed files,
ingested emails and conversations, sentiment analyses, clusters and alerts
by status.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	util.InfoLog("=== Pipeline Status ===")
	util.InfoLog("Database: %s", dbPath)
	if info, err := os.Stat(dbPath); err == nil {
		util.InfoLog("Size: %s, modified %s", humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	util.InfoLog("")

	fileCounts, err := db.CountProcessedFiles()
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	util.InfoLog("Files:")
	util.InfoLog("  Completed: %d", fileCounts[store.FileStatusCompleted])
	if n := fileCounts[store.FileStatusProcessing]; n > 0 {
		util.InfoLog("  In progress: %d", n)
	}
	if n := fileCounts[store.FileStatusError]; n > 0 {
		util.WarnLog("  Errored: %d", n)
	}

	emails, _ := db.CountEmails()
	conversations, _ := db.CountConversations()
	analyses, _ := db.CountSentiments()
	clusters, _ := db.CountClusters()

	util.InfoLog("")
	util.InfoLog("Content:")
	util.InfoLog("  Emails: %d", emails)
	util.InfoLog("  Conversations: %d", conversations)
	util.InfoLog("  Sentiment analyses: %d", analyses)
	util.InfoLog("  Clusters: %d", clusters)

	alertCounts, err := db.CountAlertsByStatus()
	if err != nil {
		return fmt.Errorf("failed to count alerts: %w", err)
	}
	util.InfoLog("")
	util.InfoLog("Alerts:")
	if len(alertCounts) == 0 {
		util.InfoLog("  None")
	}
	for _, status := range []string{store.AlertPending, store.AlertAcknowledged, store.AlertResolved} {
		if n, ok := alertCounts[status]; ok {
			if status == store.AlertPending {
				util.WarnLog("  Pending: %d", n)
			} else {
				util.InfoLog("  %s: %d", capitalize(status), n)
			}
		}
	}

	if n := alertCounts[store.AlertPending]; n > 0 {
		util.InfoLog("")
		util.InfoLog("Review pending alerts: pulse alerts list")
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
