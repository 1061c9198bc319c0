package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/an0mium/aragora/internal/models"
)

type debateResponse struct {
	Debate   *models.Debate         `json:"debate"`
	Messages []models.DebateMessage `json:"messages"`
}

var replayCmd = &cobra.Command{
	Use:   "replay <slug>",
	Short: "Replay one debate's transcript by slug",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func fetchDebate(cmd *cobra.Command, slug string) (*debateResponse, error) {
	var resp debateResponse
	if err := doJSON(cmd.Context(), "GET", "/api/debates/"+slug, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	resp, err := fetchDebate(cmd, args[0])
	if err != nil {
		return err
	}
	d := resp.Debate
	fmt.Printf("debate %s (%s) — state=%s outcome=%s rounds=%d/%d\n",
		d.Slug, d.DebateID, d.State, d.Outcome, d.RoundsUsed, d.RoundsPlanned)
	for _, m := range resp.Messages {
		conf := ""
		if m.Confidence != nil {
			conf = fmt.Sprintf(" confidence=%.2f", *m.Confidence)
		}
		fmt.Printf("[round %d] %s/%s%s: %s\n", m.Round, m.Agent, m.Role, conf, m.Content)
	}
	return nil
}
