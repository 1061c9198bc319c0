package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/an0mium/aragora/internal/models"
)

func TestRoster_RolesForRoundRotatesDefaultOrder(t *testing.T) {
	r := NewRoster([]string{"a", "b", "c"}, models.DefaultDebateConfig())

	round1 := r.RolesForRound(1)
	assert.Equal(t, "proposer", round1["a"])
	assert.Equal(t, "critic", round1["b"])
	assert.Equal(t, "critic", round1["c"])

	round2 := r.RolesForRound(2)
	assert.Equal(t, "critic", round2["a"])
	assert.Equal(t, "proposer", round2["b"])
}

func TestRoster_RolesForRoundHonorsConfiguredOrder(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.Roles = map[int]string{0: "proposer", 1: "skeptic", 2: "synthesizer"}
	r := NewRoster([]string{"a", "b", "c"}, cfg)

	round1 := r.RolesForRound(1)
	assert.Equal(t, "proposer", round1["a"])
	assert.Equal(t, "skeptic", round1["b"])
	assert.Equal(t, "synthesizer", round1["c"])
}

func TestRoster_ParticipantsForPhaseProposeIsRoleHolderOnly(t *testing.T) {
	r := NewRoster([]string{"a", "b", "c"}, models.DefaultDebateConfig())
	proposers := r.ParticipantsForPhase(models.PhasePropose, 1)
	assert.Equal(t, []string{"a"}, proposers)

	critics := r.ParticipantsForPhase(models.PhaseCritique, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, critics)
}

func TestRoster_PhasesForRoundDefaultsWhenUnconfigured(t *testing.T) {
	r := NewRoster([]string{"a"}, models.DebateConfig{})
	assert.Equal(t, []models.Phase{models.PhasePropose, models.PhaseCritique, models.PhaseRevise}, r.PhasesForRound())
}

func TestRoster_RemoveAgentReducesRemaining(t *testing.T) {
	r := NewRoster([]string{"a", "b", "c"}, models.DefaultDebateConfig())
	assert.Equal(t, 3, r.Remaining())

	r.RemoveAgent("b")
	assert.Equal(t, 2, r.Remaining())
	assert.ElementsMatch(t, []string{"a", "c"}, r.Agents())
}

func TestRoster_RecordTurnAccumulatesMetrics(t *testing.T) {
	r := NewRoster([]string{"a"}, models.DefaultDebateConfig())
	r.RecordTurn("a", 100*time.Millisecond)
	r.RecordTurn("a", 200*time.Millisecond)

	m := r.Metrics()["a"]
	assert.Equal(t, 2, m.MessageCount)
	assert.NotZero(t, m.AvgResponseTime)
}
