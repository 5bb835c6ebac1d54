package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fhagen/clientpulse/internal/report"
	"github.com/fhagen/clientpulse/internal/store"
	"github.com/fhagen/clientpulse/internal/trigger"
	"github.com/fhagen/clientpulse/internal/util"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List and transition client-risk alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts by status",
	RunE:  runAlertsList,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge a pending alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionAlert(args[0], store.AlertAcknowledged)
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionAlert(args[0], store.AlertResolved)
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	alertsListCmd.Flags().String("status", store.AlertPending, "alert status to list (pending|acknowledged|resolved)")
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	status, _ := cmd.Flags().GetString("status")
	switch status {
	case store.AlertPending, store.AlertAcknowledged, store.AlertResolved:
	default:
		return fmt.Errorf("unknown alert status %q", status)
	}

	db, err := store.Open(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	alerts, err := db.GetAlertsByStatus(status)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}
	if len(alerts) == 0 {
		util.InfoLog("No %s alerts", status)
		return nil
	}

	util.InfoLog("%d %s alert(s):", len(alerts), status)
	for _, a := range alerts {
		client, _ := db.GetClient(a.ClientID)
		clientName := fmt.Sprintf("client %d", a.ClientID)
		if client != nil {
			clientName = client.Name
		}

		fmt.Println()
		util.InfoLog("  %s", a.ID)
		util.InfoLog("    Client:   %s", clientName)
		util.InfoLog("    Trigger:  %s (%s)", a.TriggerType, a.Severity)
		util.InfoLog("    Detected: %s", humanize.Time(a.DetectedAt))
		if a.Description != "" {
			util.InfoLog("    %s", a.Description)
		}
		if a.ResolvedAt != nil {
			util.InfoLog("    Resolved: %s", humanize.Time(*a.ResolvedAt))
		}
	}

	if status == store.AlertPending {
		fmt.Println()
		util.InfoLog("Acknowledge: pulse alerts ack <alert-id>")
		util.InfoLog("Resolve:     pulse alerts resolve <alert-id>")
	}
	return nil
}

func transitionAlert(alertID, newStatus string) error {
	applyLogFlags()

	db, err := store.Open(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger, err := report.NewEventLogger("artifacts", eventLogLevel())
	if err != nil {
		logger = report.NullLogger()
	}
	defer logger.Close()

	engine := trigger.New(&trigger.Config{
		Store:         db,
		Logger:        logger,
		NotifyAddress: GetConfigString("notify_address", ""),
	})

	if err := engine.Transition(alertID, newStatus); err != nil {
		return err
	}
	util.SuccessLog("Alert %s is now %s", alertID, newStatus)
	return nil
}
