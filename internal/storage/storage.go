// Package storage implements the Storage Adapter of spec §4.5: a narrow
// interface over an embedded relational store with durable, ordered
// event append and atomic multi-row writes.
package storage

import (
	"context"

	"github.com/an0mium/aragora/internal/models"
)

// RecentKind selects which table read_recent scans.
type RecentKind string

const (
	RecentDebates RecentKind = "debates"
	RecentMatches RecentKind = "matches"
	RecentFlips   RecentKind = "flips"
	RecentEvents  RecentKind = "events"
)

// RecentFilter narrows a ReadRecent call.
type RecentFilter struct {
	DebateID string
	Agent    string
	Domain   string
}

// Adapter is the Storage Adapter contract (spec §4.5 table verbatim).
type Adapter interface {
	// AppendEvent durably appends e and assigns it a monotone per-debate
	// sequence number before returning.
	AppendEvent(ctx context.Context, e *models.Event) (seq uint64, err error)

	// CreateDebate enforces a unique slug; fails if duplicate.
	CreateDebate(ctx context.Context, d *models.Debate) error

	// SealDebate is idempotent for an identical final payload and
	// rejects a second seal with a different payload.
	SealDebate(ctx context.Context, debateID string, final *models.FinalArtifact, outcome models.Outcome, confidence *float64) error

	// AppendMessage enforces unique (debate_id, round, agent, role).
	AppendMessage(ctx context.Context, m *models.DebateMessage) error

	// RecordMatch writes m and accumulates every participant's
	// win/loss/draw deltas onto its running AgentRating as one atomic
	// unit. ratings' Wins/Losses/Draws are this match's deltas, not
	// absolute totals.
	RecordMatch(ctx context.Context, m *models.Match, ratings []models.AgentRating) error

	// RecordPosition persists a single Position row.
	RecordPosition(ctx context.Context, p *models.Position) error
	// RecordFlip persists a single Flip row and recomputes the agent's
	// consistency score from its positions and flips.
	RecordFlip(ctx context.Context, f *models.Flip) error

	// GetDebate fetches one debate with its messages by slug.
	GetDebate(ctx context.Context, slug string) (*models.Debate, []models.DebateMessage, error)

	// ReadRecent is bounded and ordered by time DESC.
	ReadRecent(ctx context.Context, kind RecentKind, limit int, filter RecentFilter) (interface{}, error)

	// Leaderboard returns ranked AgentRating rows for domain (or all
	// domains if empty), ordered by Elo DESC, bounded by limit.
	Leaderboard(ctx context.Context, domain string, limit int) ([]models.AgentRating, error)

	// AgentConsistency returns one agent's current AgentRating in domain.
	// With an empty domain it returns the first of the agent's rows in any
	// domain; rows are not aggregated across domains. An unknown agent
	// yields a default rating, not nil.
	AgentConsistency(ctx context.Context, agent, domain string) (*models.AgentRating, error)

	// RecentPositions bounds a scan of agent's prior positions for flip
	// detection (spec §4.7 step 1), most-recent first.
	RecentPositions(ctx context.Context, agent, domain string, limit int) ([]models.Position, error)

	// SchemaVersion reports the current version of a named schema
	// module ("core", "agents", "memory"). Zero means uninitialized.
	SchemaVersion(ctx context.Context, module string) (int, error)
	// Migrate runs forward-only migrations for module up to version to.
	Migrate(ctx context.Context, module string, to int) error

	// Close releases underlying resources.
	Close() error
}
