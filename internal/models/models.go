// Package models defines the core entities shared across the debate
// engine: debates, messages, positions, flips, matches, ratings, and the
// event envelope.
package models

import "time"

// DebateState is the lifecycle state of a Debate.
type DebateState string

const (
	DebateCreated  DebateState = "created"
	DebateRunning  DebateState = "running"
	DebateVoting   DebateState = "voting"
	DebateSealing  DebateState = "sealing"
	DebateTerminal DebateState = "terminal"
)

// Outcome is the terminal classification of a sealed Debate.
type Outcome string

const (
	OutcomeConsensus   Outcome = "consensus"
	OutcomeNoConsensus Outcome = "no_consensus"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeError       Outcome = "error"
)

// Phase is a step within a round.
type Phase string

const (
	PhasePropose  Phase = "propose"
	PhaseCritique Phase = "critique"
	PhaseRevise   Phase = "revise"
)

// ConsensusPolicy selects how votes are resolved into a winning proposal.
type ConsensusPolicy string

const (
	PolicyMajority      ConsensusPolicy = "majority"
	PolicySupermajority ConsensusPolicy = "supermajority"
	PolicyUnanimous     ConsensusPolicy = "unanimous"
	PolicyJudge         ConsensusPolicy = "judge"
	PolicyWeighted      ConsensusPolicy = "weighted"
)

// FlipType classifies how a new position relates to an agent's prior claim.
type FlipType string

const (
	FlipContradiction FlipType = "contradiction"
	FlipRetraction    FlipType = "retraction"
	FlipQualification FlipType = "qualification"
	FlipRefinement    FlipType = "refinement"
)

// PositionOutcome tracks whether a position was later judged correct.
type PositionOutcome string

const (
	PositionPending   PositionOutcome = "pending"
	PositionCorrect   PositionOutcome = "correct"
	PositionIncorrect PositionOutcome = "incorrect"
	PositionUnknown   PositionOutcome = "unknown"
)

// ConvergenceConfig controls the similarity-based early-stop signal.
type ConvergenceConfig struct {
	Enabled             bool    `json:"enabled"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MinRounds           int     `json:"min_rounds"`
}

// DebateConfig enumerates the configuration options for one debate run.
type DebateConfig struct {
	RoundsPlanned         int               `json:"rounds_planned"`
	PhasesPerRound        []Phase           `json:"phases_per_round"`
	Roles                 map[int]string    `json:"roles"` // position in round -> role label
	ConsensusPolicy       ConsensusPolicy   `json:"consensus_policy"`
	ConsensusThreshold    float64           `json:"consensus_threshold"`
	Convergence           ConvergenceConfig `json:"convergence"`
	ResearchEnabled       bool              `json:"research_enabled"`
	Deadline              time.Time         `json:"deadline"`
	MinParticipants       int               `json:"min_participants"`
	JudgeAgent            string            `json:"judge_agent,omitempty"`
	VoteGrouping          bool              `json:"vote_grouping"`
	VoteGroupingThreshold float64           `json:"vote_grouping_threshold"`
}

// DefaultDebateConfig mirrors spec §6's DEBATE_DEFAULT_* env vars.
func DefaultDebateConfig() DebateConfig {
	return DebateConfig{
		RoundsPlanned:         3,
		PhasesPerRound:        []Phase{PhasePropose, PhaseCritique, PhaseRevise},
		ConsensusPolicy:       PolicyMajority,
		ConsensusThreshold:    0.5,
		Convergence:           ConvergenceConfig{Enabled: true, SimilarityThreshold: 0.95, MinRounds: 2},
		MinParticipants:       2,
		VoteGrouping:          true,
		VoteGroupingThreshold: 0.85,
	}
}

// Debate is the durable record of one multi-agent debate.
type Debate struct {
	DebateID         string         `json:"debate_id"`
	Slug             string         `json:"slug"`
	Task             string         `json:"task"`
	Agents           []string       `json:"agents"`
	RoundsPlanned    int            `json:"rounds_planned"`
	RoundsUsed       int            `json:"rounds_used"`
	ConsensusReached bool           `json:"consensus_reached"`
	Confidence       *float64       `json:"confidence,omitempty"`
	FinalArtifact    *FinalArtifact `json:"final_artifact,omitempty"`
	State            DebateState    `json:"state"`
	Outcome          Outcome        `json:"outcome,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	SealedAt         *time.Time     `json:"sealed_at,omitempty"`
}

// FinalArtifact is the opaque structured result of a concluded debate.
type FinalArtifact struct {
	Choice    string                 `json:"choice"`
	Reasoning string                 `json:"reasoning,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// DebateMessage is one agent's contribution in one round/role. Append-only.
type DebateMessage struct {
	DebateID      string    `json:"debate_id"`
	Round         int       `json:"round"`
	Agent         string    `json:"agent"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Citations     []string  `json:"citations,omitempty"`
	CognitiveRole string    `json:"cognitive_role,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Position is a claim attributable to an agent, extracted from a message.
type Position struct {
	ID               string          `json:"id"`
	Agent            string          `json:"agent"`
	Claim            string          `json:"claim"`
	Confidence       float64         `json:"confidence"`
	Domain           string          `json:"domain"`
	DebateID         string          `json:"debate_id"`
	Round            int             `json:"round"`
	Outcome          PositionOutcome `json:"outcome"`
	SemanticCentroid []float64       `json:"semantic_centroid,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Flip is a derived relation between two positions of the same agent.
type Flip struct {
	ID         string    `json:"id"`
	Agent      string    `json:"agent"`
	Original   string    `json:"original"` // Position.ID
	New        string    `json:"new"`      // Position.ID
	Similarity float64   `json:"similarity"`
	Type       FlipType  `json:"type"`
	Domain     string    `json:"domain"`
	CreatedAt  time.Time `json:"created_at"`
}

// Match is an ELO rating event produced at the end of a rankable debate.
type Match struct {
	ID           string             `json:"id"`
	DebateID     string             `json:"debate_id"`
	Participants []string           `json:"participants"`
	Winner       string             `json:"winner,omitempty"`
	EloChanges   map[string]float64 `json:"elo_changes"`
	Domain       string             `json:"domain"`
	CreatedAt    time.Time          `json:"created_at"`
}

// AgentRating is the per-agent, per-domain ranking state.
type AgentRating struct {
	Agent       string  `json:"agent"`
	Domain      string  `json:"domain"`
	Elo         float64 `json:"elo"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	Consistency float64 `json:"consistency"`
}

// EventType enumerates the closed set of Event Bus envelope variants.
type EventType string

const (
	EventDebateStart   EventType = "debate_start"
	EventRoundStart    EventType = "round_start"
	EventRoundEnd      EventType = "round_end"
	EventDebateEnd     EventType = "debate_end"
	EventAgentMessage  EventType = "agent_message"
	EventTokenStart    EventType = "token_start"
	EventTokenDelta    EventType = "token_delta"
	EventTokenEnd      EventType = "token_end"
	EventConsensus     EventType = "consensus"
	EventVote          EventType = "vote"
	EventCritique      EventType = "critique"
	EventMatchRecorded EventType = "match_recorded"
	EventFlipDetected  EventType = "flip_detected"
	EventSync          EventType = "sync"
	EventError         EventType = "error"
)

// Event is the typed envelope carried on the Event Bus and the wire.
type Event struct {
	Seq       uint64                 `json:"seq"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	DebateID  string                 `json:"debate_id,omitempty"`
	Round     int                    `json:"round,omitempty"`
	Agent     string                 `json:"agent,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Vote is one agent's ballot in the Voting phase.
type Vote struct {
	Agent      string  `json:"agent"`
	Choice     string  `json:"choice"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}
