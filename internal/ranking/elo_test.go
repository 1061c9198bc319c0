package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchOutcome_ZeroSum(t *testing.T) {
	ratings := map[string]float64{"a": 1500, "b": 1500, "c": 1450}
	deltas := MatchOutcome([]string{"a", "b", "c"}, "a", ratings, DefaultKFactor)
	assert.InDelta(t, 0, Sum(deltas), 1e-6)
	assert.Greater(t, deltas["a"], 0.0)
	assert.Less(t, deltas["b"], 0.0)
}

func TestMatchOutcome_NoConsensusIsAllDraws(t *testing.T) {
	ratings := map[string]float64{"a": 1500, "b": 1500}
	deltas := MatchOutcome([]string{"a", "b"}, "", ratings, DefaultKFactor)
	assert.InDelta(t, 0, deltas["a"], 1e-9)
	assert.InDelta(t, 0, deltas["b"], 1e-9)
}

func TestPairwiseDelta_SumsToZero(t *testing.T) {
	da, db := PairwiseDelta(1600, 1400, 1, DefaultKFactor)
	assert.InDelta(t, 0, da+db, 1e-9)
	assert.Less(t, da, DefaultKFactor) // favourite win, well below K
}

func TestApplyDeltas_LeavesInputUntouched(t *testing.T) {
	ratings := map[string]float64{"a": 1500}
	deltas := map[string]float64{"a": 10}
	out := ApplyDeltas(ratings, deltas)
	assert.Equal(t, 1500.0, ratings["a"])
	assert.Equal(t, 1510.0, out["a"])
}

func TestTallyOutcome_WinnerBeatsEveryLoserLosersDrawEachOther(t *testing.T) {
	tallies := TallyOutcome([]string{"a", "b", "c"}, "a")
	assert.Equal(t, MatchTally{Wins: 2}, tallies["a"])
	assert.Equal(t, MatchTally{Losses: 1, Draws: 1}, tallies["b"])
	assert.Equal(t, MatchTally{Losses: 1, Draws: 1}, tallies["c"])
}

func TestTallyOutcome_NoConsensusIsAllDraws(t *testing.T) {
	tallies := TallyOutcome([]string{"a", "b", "c"}, "")
	for _, agent := range []string{"a", "b", "c"} {
		assert.Equal(t, MatchTally{Draws: 2}, tallies[agent])
	}
}
