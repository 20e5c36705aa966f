package cli

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/cantolico/guard/internal/models"
	"github.com/cantolico/guard/pkg/output"
)

var seedEventTypes = []string{
	models.EventUnauthorizedAccess,
	models.EventForbiddenAccess,
	models.EventLoginFailure,
	models.EventLoginSuccess,
	models.EventContentModeration,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed fake security events",
	Long:  "Post randomly generated security events to the internal log endpoint for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFromFlags(cmd)

		count, _ := cmd.Flags().GetInt("count")
		actors, _ := cmd.Flags().GetInt("actors")
		if actors < 1 {
			actors = 1
		}

		for i := 0; i < count; i++ {
			actorID := int64(gofakeit.Number(1, actors))
			eventType := seedEventTypes[gofakeit.Number(0, len(seedEventTypes)-1)]

			input := &models.SecurityEventInput{
				Message:   gofakeit.Sentence(6),
				EventType: eventType,
				ActorID:   &actorID,
				IPAddress: gofakeit.IPv4Address(),
				UserAgent: gofakeit.UserAgent(),
				Metadata: map[string]interface{}{
					"songSlug": gofakeit.Word() + "-" + gofakeit.Word(),
				},
			}
			if err := client.PostEvent(input); err != nil {
				return fmt.Errorf("failed to post event %d: %w", i+1, err)
			}
		}

		output.Success("Posted %d events across %d actors", count, actors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntP("count", "n", 25, "Number of events to post")
	seedCmd.Flags().Int("actors", 5, "Number of distinct actor ids to spread events over")
}
