package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cantolico/guard/pkg/output"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Security alert management",
	Long:  "List, inspect, and acknowledge security alerts",
}

var alertsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List security alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFromFlags(cmd)

		onlyOpen, _ := cmd.Flags().GetBool("open")
		limit, _ := cmd.Flags().GetInt("limit")

		alerts, err := client.ListAlerts(onlyOpen, limit)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(alerts)
		}

		if len(alerts) == 0 {
			output.Info("No alerts found")
			return nil
		}

		table := output.NewTable([]string{"ID", "Severity", "Event Type", "Actor", "Reason", "Status", "Created"})
		for _, alert := range alerts {
			status := "open"
			if !alert.Open() {
				status = "acked by " + strconv.FormatInt(*alert.AcknowledgedBy, 10)
			}
			table.AddRow([]string{
				alert.ID,
				string(alert.Severity),
				alert.EventType,
				alert.ActorKey,
				alert.Reason,
				status,
				alert.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

var alertsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get alert details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFromFlags(cmd)

		alert, err := client.GetAlert(args[0])
		if err != nil {
			return fmt.Errorf("failed to get alert: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(alert)
		}

		output.Info("Alert ID: %s", alert.ID)
		output.Info("Severity: %s", alert.Severity)
		output.Info("Event Type: %s", alert.EventType)
		output.Info("Actor: %s", alert.ActorKey)
		output.Info("Reason: %s", alert.Reason)
		output.Info("Created: %s", alert.CreatedAt.Format("2006-01-02 15:04:05"))
		if len(alert.EventIDs) > 0 {
			output.Info("Related Events: %v", alert.EventIDs)
		}
		if alert.AcknowledgedAt != nil {
			output.Info("Acknowledged: %s by %d", alert.AcknowledgedAt.Format("2006-01-02 15:04:05"), *alert.AcknowledgedBy)
		}
		return nil
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack [id]",
	Short: "Acknowledge an alert",
	Long:  "Mark an alert as handled; requires an admin token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFromFlags(cmd)

		alert, err := client.AckAlert(args[0])
		if err != nil {
			return fmt.Errorf("failed to acknowledge alert: %w", err)
		}

		output.Success("Alert %s acknowledged", alert.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsGetCmd)
	alertsCmd.AddCommand(alertsAckCmd)

	alertsListCmd.Flags().Bool("open", false, "Only open alerts")
	alertsListCmd.Flags().IntP("limit", "l", 20, "Maximum results")
}
