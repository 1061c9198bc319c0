package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/an0mium/aragora/internal/orchestrator"
)

var (
	startSlug   string
	startTask   string
	startDomain string
	startAgents []string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new debate",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startSlug, "slug", "", "unique debate slug (required)")
	startCmd.Flags().StringVar(&startTask, "task", "", "task description (required)")
	startCmd.Flags().StringVar(&startDomain, "domain", "", "domain used for ranking")
	startCmd.Flags().StringSliceVar(&startAgents, "agent", nil, "agent as id:provider:model, repeatable (required)")
	rootCmd.AddCommand(startCmd)
}

func parseAgentSpec(raw string) (orchestrator.AgentSpec, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return orchestrator.AgentSpec{}, fmt.Errorf("invalid --agent %q, want id:provider:model", raw)
	}
	return orchestrator.AgentSpec{ID: parts[0], Provider: parts[1], Model: parts[2]}, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	if startSlug == "" || startTask == "" || len(startAgents) == 0 {
		return &ExitError{Code: 2, Err: fmt.Errorf("--slug, --task, and at least one --agent are required")}
	}
	agents := make([]orchestrator.AgentSpec, 0, len(startAgents))
	for _, raw := range startAgents {
		spec, err := parseAgentSpec(raw)
		if err != nil {
			return &ExitError{Code: 2, Err: err}
		}
		agents = append(agents, spec)
	}

	reqBody := map[string]interface{}{
		"slug":   startSlug,
		"task":   startTask,
		"domain": startDomain,
		"agents": agents,
	}
	var resp struct {
		DebateID string `json:"debate_id"`
		Slug     string `json:"slug"`
	}
	if err := doJSON(cmd.Context(), "POST", "/api/debates", reqBody, &resp); err != nil {
		return err
	}
	fmt.Printf("started debate %s (id %s)\n", resp.Slug, resp.DebateID)
	return nil
}
