package ranking

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/an0mium/aragora/internal/models"
)

// Thresholds holds the similarity cutoffs for flip classification
// (spec §4.7 step 3). Same must be >= Refine >= Qualify.
type Thresholds struct {
	Same    float64
	Refine  float64
	Qualify float64
}

// DefaultThresholds matches original_source's position-tracking defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Same: 0.92, Refine: 0.80, Qualify: 0.55}
}

// PositionStore is the narrow slice of storage.Adapter the flip engine
// needs, kept separate so this package doesn't import storage.
type PositionStore interface {
	RecordPosition(ctx context.Context, p *models.Position) error
	RecordFlip(ctx context.Context, f *models.Flip) error
	RecentPositions(ctx context.Context, agent, domain string, limit int) ([]models.Position, error)
}

// Engine detects position flips by comparing a new claim's embedding
// against an agent's recent prior claims.
type Engine struct {
	embedder   Embedder
	thresholds Thresholds
	lookback   int
}

// Option configures an Engine.
type Option func(*Engine)

func WithThresholds(t Thresholds) Option { return func(e *Engine) { e.thresholds = t } }
func WithLookback(n int) Option          { return func(e *Engine) { e.lookback = n } }

// New constructs an Engine. A nil embedder defaults to HashingEmbedder.
func New(embedder Embedder, opts ...Option) *Engine {
	if embedder == nil {
		embedder = NewHashingEmbedder(256)
	}
	e := &Engine{embedder: embedder, thresholds: DefaultThresholds(), lookback: 20}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordAndDetect persists the new position and, against each of the
// agent's recent prior positions in the same domain, classifies any
// flip relation (spec §4.7 steps 1-3), persisting and returning every
// flip detected. An agent's first position in a domain never flips.
func (e *Engine) RecordAndDetect(ctx context.Context, store PositionStore, pos *models.Position) ([]models.Flip, error) {
	vec, err := e.embedder.Embed(pos.Claim)
	if err != nil {
		return nil, err
	}
	pos.SemanticCentroid = vec
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}

	priors, err := store.RecentPositions(ctx, pos.Agent, pos.Domain, e.lookback)
	if err != nil {
		return nil, err
	}
	if err := store.RecordPosition(ctx, pos); err != nil {
		return nil, err
	}
	if len(priors) == 0 {
		return nil, nil
	}

	var flips []models.Flip
	for _, prior := range priors {
		sim := CosineSimilarity(vec, prior.SemanticCentroid)
		ft, isFlip := e.classify(prior, *pos, sim)
		if !isFlip {
			continue
		}
		flip := models.Flip{
			ID:         uuid.NewString(),
			Agent:      pos.Agent,
			Original:   prior.ID,
			New:        pos.ID,
			Similarity: sim,
			Type:       ft,
			Domain:     pos.Domain,
		}
		if err := store.RecordFlip(ctx, &flip); err != nil {
			return flips, err
		}
		flips = append(flips, flip)
	}
	return flips, nil
}

// classify implements spec §4.7 step 3's decision table.
func (e *Engine) classify(prior, current models.Position, sim float64) (models.FlipType, bool) {
	t := e.thresholds
	textUnchanged := strings.TrimSpace(prior.Claim) == strings.TrimSpace(current.Claim)
	switch {
	case sim >= t.Same:
		// High similarity and unchanged text is the same claim restated,
		// not a flip. High similarity with extended/edited text is a
		// refinement (or a qualification, if confidence dropped).
		if textUnchanged {
			return "", false
		}
		if current.Confidence >= prior.Confidence {
			return models.FlipRefinement, true
		}
		return models.FlipQualification, true
	case sim >= t.Refine:
		if current.Confidence >= prior.Confidence {
			return models.FlipRefinement, true
		}
		return models.FlipQualification, true
	case sim >= t.Qualify:
		return models.FlipQualification, true
	default:
		if hasWithdrawal(current.Claim) {
			return models.FlipRetraction, true
		}
		if hasNegation(current.Claim) {
			return models.FlipContradiction, true
		}
		// Low similarity with no explicit negation/withdrawal signal is
		// an unrelated claim, not a contradiction.
		return "", false
	}
}
