package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.MigrateAll(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateDebate_DuplicateSlugFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &models.Debate{DebateID: "d1", Slug: "pick-x-or-y", Task: "t", RoundsPlanned: 2}
	require.NoError(t, s.CreateDebate(ctx, d))

	d2 := &models.Debate{DebateID: "d2", Slug: "pick-x-or-y", Task: "t", RoundsPlanned: 2}
	require.Error(t, s.CreateDebate(ctx, d2))
}

func TestAppendEvent_MonotoneSeqPerDebate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var last uint64
	for i := 0; i < 5; i++ {
		seq, err := s.AppendEvent(ctx, &models.Event{DebateID: "d1", Type: models.EventRoundStart})
		require.NoError(t, err)
		require.Greater(t, seq, last)
		last = seq
	}
}

func TestSealDebate_IdempotentThenRejectsDifferentPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &models.Debate{DebateID: "d1", Slug: "s1", Task: "t", RoundsPlanned: 2}
	require.NoError(t, s.CreateDebate(ctx, d))

	final := &models.FinalArtifact{Choice: "X"}
	conf := 1.0
	require.NoError(t, s.SealDebate(ctx, "d1", final, models.OutcomeConsensus, &conf))
	require.NoError(t, s.SealDebate(ctx, "d1", final, models.OutcomeConsensus, &conf)) // idempotent

	other := &models.FinalArtifact{Choice: "Y"}
	require.Error(t, s.SealDebate(ctx, "d1", other, models.OutcomeConsensus, &conf))
}

func TestRecordMatch_AtomicWithRatings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &models.Match{ID: "m1", DebateID: "d1", Participants: []string{"a", "b"}, Winner: "a",
		EloChanges: map[string]float64{"a": 8, "b": -8}, Domain: "general"}
	ratings := []models.AgentRating{
		{Agent: "a", Domain: "general", Elo: 1508, Wins: 1},
		{Agent: "b", Domain: "general", Elo: 1492, Losses: 1},
	}
	require.NoError(t, s.RecordMatch(ctx, m, ratings))

	lb, err := s.Leaderboard(ctx, "general", 10)
	require.NoError(t, err)
	require.Len(t, lb, 2)
}

func TestRecordMatch_AccumulatesCountersAcrossMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m1 := &models.Match{ID: "m1", DebateID: "d1", Participants: []string{"a", "b"}, Winner: "a", Domain: "general"}
	require.NoError(t, s.RecordMatch(ctx, m1, []models.AgentRating{
		{Agent: "a", Domain: "general", Elo: 1508, Wins: 1},
		{Agent: "b", Domain: "general", Elo: 1492, Losses: 1},
	}))

	m2 := &models.Match{ID: "m2", DebateID: "d2", Participants: []string{"a", "b"}, Winner: "b", Domain: "general"}
	require.NoError(t, s.RecordMatch(ctx, m2, []models.AgentRating{
		{Agent: "a", Domain: "general", Elo: 1500, Losses: 1},
		{Agent: "b", Domain: "general", Elo: 1500, Wins: 1},
	}))

	ra, err := s.AgentConsistency(ctx, "a", "general")
	require.NoError(t, err)
	require.Equal(t, 1, ra.Wins)
	require.Equal(t, 1, ra.Losses)

	rb, err := s.AgentConsistency(ctx, "b", "general")
	require.NoError(t, err)
	require.Equal(t, 1, rb.Wins)
	require.Equal(t, 1, rb.Losses)
}

func TestRecordFlip_RecomputesConsistencyFromPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.RecordPosition(ctx, &models.Position{
			ID: "p" + string(rune('0'+i)), Agent: "a", Claim: "claim", Domain: "general",
		}))
	}
	require.NoError(t, s.RecordFlip(ctx, &models.Flip{
		ID: "f1", Agent: "a", Original: "p0", New: "p1", Type: models.FlipContradiction, Domain: "general",
	}))

	r, err := s.AgentConsistency(ctx, "a", "general")
	require.NoError(t, err)
	require.InDelta(t, 0.75, r.Consistency, 1e-9)
}

func TestAppendMessage_DuplicateFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := &models.Debate{DebateID: "d1", Slug: "s1", Task: "t", RoundsPlanned: 2}
	require.NoError(t, s.CreateDebate(ctx, d))

	msg := &models.DebateMessage{DebateID: "d1", Round: 1, Agent: "a", Role: "proposer", Content: "hi"}
	require.NoError(t, s.AppendMessage(ctx, msg))
	require.Error(t, s.AppendMessage(ctx, msg))
}
