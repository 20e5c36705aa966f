package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cantolico/guard/pkg/output"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Security event log",
	Long:  "Query the security event log; requires a reviewer or admin token",
}

var eventsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List security events",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFromFlags(cmd)

		eventType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		var actorID *int64
		if raw, _ := cmd.Flags().GetString("actor"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid actor id %q", raw)
			}
			actorID = &id
		}

		events, err := client.ListEvents(eventType, actorID, limit)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}

		outputFormat, _ := cmd.Flags().GetString("output")
		if outputFormat == "json" {
			return output.JSON(events)
		}

		if len(events) == 0 {
			output.Info("No events found")
			return nil
		}

		table := output.NewTable([]string{"ID", "Type", "Severity", "Actor", "IP", "Message", "Occurred"})
		for _, event := range events {
			actor := ""
			if event.ActorID != nil {
				actor = strconv.FormatInt(*event.ActorID, 10)
			}
			table.AddRow([]string{
				event.ID,
				event.EventType,
				string(event.Severity),
				actor,
				event.IPAddress,
				event.Message,
				event.OccurredAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)

	eventsListCmd.Flags().StringP("type", "t", "", "Filter by event type")
	eventsListCmd.Flags().StringP("actor", "a", "", "Filter by actor id")
	eventsListCmd.Flags().IntP("limit", "l", 50, "Maximum results")
}
