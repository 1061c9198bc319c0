package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/an0mium/aragora/internal/models"
)

type fakePositionStore struct {
	positions []models.Position
	flips     []models.Flip
}

func (f *fakePositionStore) RecordPosition(ctx context.Context, p *models.Position) error {
	f.positions = append(f.positions, *p)
	return nil
}

func (f *fakePositionStore) RecordFlip(ctx context.Context, fl *models.Flip) error {
	f.flips = append(f.flips, *fl)
	return nil
}

func (f *fakePositionStore) RecentPositions(ctx context.Context, agent, domain string, limit int) ([]models.Position, error) {
	var out []models.Position
	for _, p := range f.positions {
		if p.Agent == agent && p.Domain == domain {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestEngine_FirstPositionNeverFlips(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	flips, err := e.RecordAndDetect(context.Background(), store, &models.Position{
		Agent: "a", Domain: "d", Claim: "Go is the right choice here", Confidence: 0.8,
	})
	require.NoError(t, err)
	require.Empty(t, flips)
}

func TestEngine_ContradictionDetected(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	ctx := context.Background()

	_, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "We should use Postgres for this workload", Confidence: 0.9,
	})
	require.NoError(t, err)

	flips, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "Completely unrelated text about rocket engines, not applicable here", Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Len(t, flips, 1)
	require.Equal(t, models.FlipContradiction, flips[0].Type)
}

func TestEngine_UnrelatedClaimWithNoSignalIsNotAFlip(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	ctx := context.Background()

	_, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "We should use Postgres for this workload", Confidence: 0.9,
	})
	require.NoError(t, err)

	flips, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "Completely unrelated text about rocket engines and orbital mechanics", Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Empty(t, flips)
}

func TestEngine_RetractionDetected(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	ctx := context.Background()

	_, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "We should use Postgres for this workload", Confidence: 0.9,
	})
	require.NoError(t, err)

	flips, err := e.RecordAndDetect(ctx, store, &models.Position{
		Agent: "a", Domain: "d", Claim: "I was wrong, orbital mechanics favors a completely different approach", Confidence: 0.9,
	})
	require.NoError(t, err)
	require.Len(t, flips, 1)
	require.Equal(t, models.FlipRetraction, flips[0].Type)
}

func TestEngine_HighSimilarityExtendedTextIsRefinement(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	ctx := context.Background()

	claim := "we should use postgres for this workload"
	_, err := e.RecordAndDetect(ctx, store, &models.Position{Agent: "a", Domain: "d", Claim: claim, Confidence: 0.6})
	require.NoError(t, err)

	extended := claim + " too"
	flips, err := e.RecordAndDetect(ctx, store, &models.Position{Agent: "a", Domain: "d", Claim: extended, Confidence: 0.9})
	require.NoError(t, err)
	require.Len(t, flips, 1)
	require.Equal(t, models.FlipRefinement, flips[0].Type)
}

func TestEngine_IdenticalClaimIsNotAFlip(t *testing.T) {
	store := &fakePositionStore{}
	e := New(nil)
	ctx := context.Background()

	claim := "we should use postgres for this workload because it handles joins well"
	_, err := e.RecordAndDetect(ctx, store, &models.Position{Agent: "a", Domain: "d", Claim: claim, Confidence: 0.9})
	require.NoError(t, err)

	flips, err := e.RecordAndDetect(ctx, store, &models.Position{Agent: "a", Domain: "d", Claim: claim, Confidence: 0.9})
	require.NoError(t, err)
	require.Empty(t, flips)
}
