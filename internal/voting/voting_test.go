package voting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/models"
)

func TestTally_MajorityConfidenceIsMeanOfWinningVotes(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicyMajority
	votes := []models.Vote{
		{Agent: "a", Choice: "X", Confidence: 0.6},
		{Agent: "b", Choice: "X", Confidence: 0.7},
		{Agent: "c", Choice: "Y", Confidence: 0.95},
	}
	res, err := Tally(votes, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "X", res.Winner)
	assert.InDelta(t, 0.65, res.Confidence, 1e-9)
}

func TestTally_MajorityTieBrokenByConfidenceThenRound(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicyMajority
	votes := []models.Vote{
		{Agent: "a", Choice: "X", Confidence: 0.9},
		{Agent: "b", Choice: "Y", Confidence: 0.5},
	}
	res, err := Tally(votes, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "X", res.Winner)
}

func TestTally_Unanimous(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicyUnanimous
	votes := []models.Vote{{Agent: "a", Choice: "X"}, {Agent: "b", Choice: "X"}}
	res, err := Tally(votes, cfg, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.ConsensusReached)

	votes2 := []models.Vote{{Agent: "a", Choice: "X"}, {Agent: "b", Choice: "Y"}}
	res2, err := Tally(votes2, cfg, nil, nil)
	require.NoError(t, err)
	assert.False(t, res2.ConsensusReached)
}

func TestTally_Judge(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicyJudge
	cfg.JudgeAgent = "b"
	votes := []models.Vote{{Agent: "a", Choice: "X"}, {Agent: "b", Choice: "Y", Confidence: 0.7}}
	res, err := Tally(votes, cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Y", res.Winner)
}

type fakeWeighter struct{ weights map[string]float64 }

func (f fakeWeighter) Weight(agent string) float64 { return f.weights[agent] }

func TestTally_WeightedPrefersHigherRatedAgent(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicyWeighted
	votes := []models.Vote{{Agent: "strong", Choice: "X"}, {Agent: "weak", Choice: "Y"}}
	w := fakeWeighter{weights: map[string]float64{"strong": 1800, "weak": 1200}}
	res, err := Tally(votes, cfg, w, nil)
	require.NoError(t, err)
	assert.Equal(t, "X", res.Winner)
}

func TestTally_SupermajorityRequiresThreshold(t *testing.T) {
	cfg := models.DefaultDebateConfig()
	cfg.ConsensusPolicy = models.PolicySupermajority
	cfg.ConsensusThreshold = 0.75
	votes := []models.Vote{
		{Agent: "a", Choice: "X"}, {Agent: "b", Choice: "X"}, {Agent: "c", Choice: "Y"},
	}
	res, err := Tally(votes, cfg, nil, nil)
	require.NoError(t, err)
	assert.False(t, res.ConsensusReached)
}
