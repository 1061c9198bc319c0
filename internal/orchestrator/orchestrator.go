// Package orchestrator drives the Debate Orchestrator state machine of
// spec §4.6: Created → Running(round, phase) → Voting → Sealing →
// Terminal{consensus|no_consensus|canceled|error}.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/events"
	"github.com/an0mium/aragora/internal/invoker"
	"github.com/an0mium/aragora/internal/models"
	"github.com/an0mium/aragora/internal/ranking"
	"github.com/an0mium/aragora/internal/storage"
	"github.com/an0mium/aragora/internal/topology"
	"github.com/an0mium/aragora/internal/voting"
)

// AgentSpec names an agent's provider/model binding for the duration of
// one debate.
type AgentSpec struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// RunInput is everything the Orchestrator needs to run one debate.
type RunInput struct {
	DebateID string
	Slug     string
	Task     string
	Domain   string
	Agents   []AgentSpec
	Config   models.DebateConfig
}

// Orchestrator runs one debate at a time to completion, durably
// recording every state transition.
type Orchestrator struct {
	store    storage.Adapter
	bus      *events.Bus
	inv      *invoker.Invoker
	flips    *ranking.Engine
	embedder ranking.Embedder
}

// New constructs an Orchestrator. A nil embedder defaults to a hashing
// fallback (spec §11's EMBEDDING_PROVIDER=auto).
func New(store storage.Adapter, bus *events.Bus, inv *invoker.Invoker, flips *ranking.Engine, embedder ranking.Embedder) *Orchestrator {
	if embedder == nil {
		embedder = ranking.NewHashingEmbedder(256)
	}
	return &Orchestrator{store: store, bus: bus, inv: inv, flips: flips, embedder: embedder}
}

type agentState struct {
	spec            AgentSpec
	failures        int
	lastProposal    string
	lastMessage     *models.DebateMessage
	eloRatingWeight float64
}

// eloWeighterAdapter lets the Orchestrator's AgentRating lookups satisfy
// voting.EloWeighter without voting importing storage.
type eloWeighterAdapter struct {
	ratings map[string]float64
}

func (a eloWeighterAdapter) Weight(agent string) float64 {
	if w, ok := a.ratings[agent]; ok {
		return w
	}
	return 1500
}

// Run drives one debate from Created through a Terminal outcome.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*models.Debate, error) {
	cfg := in.Config
	if cfg.RoundsPlanned == 0 {
		cfg = models.DefaultDebateConfig()
	}
	if in.Domain == "" {
		in.Domain = "general"
	}

	debate := &models.Debate{
		DebateID:      in.DebateID,
		Slug:          in.Slug,
		Task:          in.Task,
		RoundsPlanned: cfg.RoundsPlanned,
		State:         models.DebateCreated,
		CreatedAt:     time.Now(),
	}
	for _, a := range in.Agents {
		debate.Agents = append(debate.Agents, a.ID)
	}
	if err := o.store.CreateDebate(ctx, debate); err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodePermanent, "create debate", err)
	}
	o.emit(ctx, in.DebateID, 0, "", models.EventDebateStart, map[string]interface{}{"task": in.Task})

	agentNames := make([]string, len(in.Agents))
	states := make(map[string]*agentState, len(in.Agents))
	for i, a := range in.Agents {
		agentNames[i] = a.ID
		states[a.ID] = &agentState{spec: a}
	}
	roster := topology.NewRoster(agentNames, cfg)

	debate.State = models.DebateRunning
	var messagesSoFar []models.DebateMessage
	var prevSimilarity float64
	haveConvergenceSignal := false
	roundsUsed := 0

	for round := 1; round <= cfg.RoundsPlanned; round++ {
		if !cfg.Deadline.IsZero() && time.Now().After(cfg.Deadline) {
			return o.seal(ctx, debate, nil, models.OutcomeError, 0, "deadline exceeded")
		}
		if roster.Remaining() < cfg.MinParticipants {
			return o.seal(ctx, debate, nil, models.OutcomeError, 0, "too few participants remain")
		}

		roundsUsed = round
		o.emit(ctx, in.DebateID, round, "", models.EventRoundStart, nil)
		roles := roster.RolesForRound(round)

		for _, phase := range roster.PhasesForRound() {
			select {
			case <-ctx.Done():
				return o.seal(ctx, debate, nil, models.OutcomeCanceled, 0, "context canceled")
			default:
			}

			participants := roster.ParticipantsForPhase(phase, round)
			results, err := o.runPhase(ctx, in, round, phase, participants, roles, states, messagesSoFar)
			if err != nil {
				return o.seal(ctx, debate, nil, models.OutcomeError, 0, err.Error())
			}

			for _, res := range results {
				if res.err != nil {
					states[res.agent].failures++
					continue
				}
				states[res.agent].failures = 0
				states[res.agent].lastMessage = res.msg
				if phase == models.PhasePropose {
					states[res.agent].lastProposal = res.msg.Content
				}
				if err := o.store.AppendMessage(ctx, res.msg); err != nil {
					return o.seal(ctx, debate, nil, models.OutcomeError, 0, "append message: "+err.Error())
				}
				messagesSoFar = append(messagesSoFar, *res.msg)
				o.emit(ctx, in.DebateID, round, res.agent, models.EventAgentMessage, map[string]interface{}{"phase": string(phase)})
			}

			if roster.Remaining() < cfg.MinParticipants {
				return o.seal(ctx, debate, nil, models.OutcomeError, 0, "too few participants remain")
			}
		}

		o.detectFlips(ctx, in.DebateID, round, in.Domain, states, agentNames)

		similarity := o.roundSimilarity(states, agentNames)
		o.emit(ctx, in.DebateID, round, "", models.EventRoundEnd, map[string]interface{}{"similarity": similarity})

		if cfg.Convergence.Enabled && round >= cfg.Convergence.MinRounds {
			if haveConvergenceSignal && prevSimilarity >= cfg.Convergence.SimilarityThreshold && similarity >= cfg.Convergence.SimilarityThreshold {
				break
			}
			haveConvergenceSignal = true
			prevSimilarity = similarity
		}
	}

	debate.State = models.DebateVoting
	votes, err := o.collectVotes(ctx, in, roundsUsed, states, agentNames, messagesSoFar)
	if err != nil {
		return o.seal(ctx, debate, nil, models.OutcomeNoConsensus, 0, err.Error())
	}

	weighter := o.eloWeighter(ctx, in.Domain, agentNames)
	result, err := voting.Tally(votes, cfg, weighter, o.embedder)
	if err != nil {
		return o.seal(ctx, debate, nil, models.OutcomeNoConsensus, 0, err.Error())
	}
	o.emit(ctx, in.DebateID, roundsUsed, "", models.EventVote, map[string]interface{}{"tally": result.Tally, "winner": result.Winner})

	debate.State = models.DebateSealing
	debate.RoundsUsed = roundsUsed

	if !result.ConsensusReached {
		return o.seal(ctx, debate, nil, models.OutcomeNoConsensus, result.Confidence, "")
	}

	winningProposal := result.Winner
	if st, ok := states[result.Winner]; ok && st.lastProposal != "" {
		winningProposal = st.lastProposal
	}
	final := &models.FinalArtifact{Choice: winningProposal}
	if err := o.recordMatch(ctx, in, agentNames, result.Winner); err != nil {
		return o.seal(ctx, debate, final, models.OutcomeError, result.Confidence, "record match: "+err.Error())
	}
	o.emit(ctx, in.DebateID, roundsUsed, "", models.EventConsensus, map[string]interface{}{"choice": result.Winner, "confidence": result.Confidence})

	return o.seal(ctx, debate, final, models.OutcomeConsensus, result.Confidence, "")
}

type phaseResult struct {
	agent string
	msg   *models.DebateMessage
	err   error
}

// runPhase invokes every participant for phase in parallel, then returns
// results in agentNames order so emitted events are reproducible (spec
// §4.6 step 2).
func (o *Orchestrator) runPhase(ctx context.Context, in RunInput, round int, phase models.Phase, participants []string, roles map[string]string, states map[string]*agentState, messagesSoFar []models.DebateMessage) ([]phaseResult, error) {
	order := make(map[string]int, len(participants))
	for i, a := range participants {
		order[a] = i
	}
	results := make([]phaseResult, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	for _, agent := range participants {
		agent := agent
		idx := order[agent]
		g.Go(func() error {
			st := states[agent]
			msg, err := o.inv.Invoke(gctx, invoker.Input{
				DebateID:      in.DebateID,
				AgentID:       agent,
				Provider:      st.spec.Provider,
				Model:         st.spec.Model,
				MessagesSoFar: messagesSoFar,
				Role:          string(phase),
				CognitiveRole: roles[agent],
				Round:         round,
				Deadline:      in.Config.Deadline,
			})
			results[idx] = phaseResult{agent: agent, msg: msg, err: err}
			return nil // per-agent failure is an abstention, not fatal to the group
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) detectFlips(ctx context.Context, debateID string, round int, domain string, states map[string]*agentState, agentNames []string) {
	if o.flips == nil {
		return
	}
	for _, agent := range agentNames {
		st := states[agent]
		if st.lastMessage == nil {
			continue
		}
		pos := &models.Position{
			Agent: agent, Domain: domain, DebateID: debateID, Round: round,
			Claim: st.lastMessage.Content, Confidence: confidenceOf(st.lastMessage),
		}
		flips, err := o.flips.RecordAndDetect(ctx, o.store, pos)
		if err != nil {
			continue
		}
		for _, f := range flips {
			o.emit(ctx, debateID, round, agent, models.EventFlipDetected, map[string]interface{}{"type": string(f.Type), "similarity": f.Similarity})
		}
	}
}

func confidenceOf(m *models.DebateMessage) float64 {
	if m.Confidence != nil {
		return *m.Confidence
	}
	return 0.7
}

func (o *Orchestrator) roundSimilarity(states map[string]*agentState, agentNames []string) float64 {
	var vectors [][]float64
	for _, agent := range agentNames {
		st := states[agent]
		if st.lastMessage == nil {
			continue
		}
		vec, err := o.embedder.Embed(st.lastMessage.Content)
		if err != nil {
			continue
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) < 2 {
		return 0
	}
	var total float64
	var pairs int
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			total += ranking.CosineSimilarity(vectors[i], vectors[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

var votePattern = regexp.MustCompile(`(?i)VOTE:\s*(\S+)`)
var confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*([0-9.]+)`)

// collectVotes asks every active agent to pick among the candidate
// proposals surfaced this debate (spec §4.6 Voting), grounded on the
// convergence-phase "VOTE:/CONFIDENCE:/REASONING:" prompt convention.
func (o *Orchestrator) collectVotes(ctx context.Context, in RunInput, round int, states map[string]*agentState, agentNames []string, messagesSoFar []models.DebateMessage) ([]models.Vote, error) {
	var b strings.Builder
	b.WriteString("Candidate proposals:\n")
	for _, agent := range agentNames {
		if p := states[agent].lastProposal; p != "" {
			fmt.Fprintf(&b, "- %s: %s\n", agent, truncate(p, 500))
		}
	}
	b.WriteString("\nVote for the strongest proposal. Respond with:\nVOTE: <agent_id>\nCONFIDENCE: <0-1>\nREASONING: <brief>\n")
	prompt := b.String()

	votes := make([]models.Vote, 0, len(agentNames))
	for _, agent := range agentNames {
		st := states[agent]
		if st.failures > 0 && st.lastMessage == nil {
			continue // abstained the whole debate
		}
		msg, err := o.inv.Invoke(ctx, invoker.Input{
			DebateID: in.DebateID, AgentID: agent, Provider: st.spec.Provider, Model: st.spec.Model,
			MessagesSoFar: append(messagesSoFar, models.DebateMessage{Agent: "moderator", Role: "vote_prompt", Content: prompt}),
			Role:          "voter", Round: round,
		})
		if err != nil {
			continue
		}
		choice, confidence := parseVote(msg.Content, agentNames)
		if choice == "" {
			continue
		}
		votes = append(votes, models.Vote{Agent: agent, Choice: choice, Confidence: confidence, Reasoning: msg.Content})
	}
	if len(votes) == 0 {
		return nil, fmt.Errorf("no agent cast a valid vote")
	}
	return votes, nil
}

func parseVote(content string, validChoices []string) (choice string, confidence float64) {
	m := votePattern.FindStringSubmatch(content)
	if m == nil {
		return "", 0
	}
	choice = strings.Trim(m[1], ".,:;")
	valid := false
	for _, c := range validChoices {
		if c == choice {
			valid = true
			break
		}
	}
	if !valid {
		return "", 0
	}
	confidence = 0.5
	if cm := confidencePattern.FindStringSubmatch(content); cm != nil {
		if f, err := strconv.ParseFloat(cm[1], 64); err == nil {
			confidence = f
		}
	}
	return choice, confidence
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (o *Orchestrator) eloWeighter(ctx context.Context, domain string, agentNames []string) voting.EloWeighter {
	ratings := make(map[string]float64, len(agentNames))
	for _, agent := range agentNames {
		r, err := o.store.AgentConsistency(ctx, agent, domain)
		if err == nil && r != nil {
			ratings[agent] = r.Elo
		}
	}
	return eloWeighterAdapter{ratings: ratings}
}

func (o *Orchestrator) recordMatch(ctx context.Context, in RunInput, agentNames []string, winner string) error {
	current := make(map[string]float64, len(agentNames))
	for _, agent := range agentNames {
		r, err := o.store.AgentConsistency(ctx, agent, in.Domain)
		if err == nil && r != nil {
			current[agent] = r.Elo
		} else {
			current[agent] = 1500
		}
	}
	deltas := ranking.MatchOutcome(agentNames, winner, current, ranking.DefaultKFactor)
	updated := ranking.ApplyDeltas(current, deltas)
	tallies := ranking.TallyOutcome(agentNames, winner)

	ratings := make([]models.AgentRating, 0, len(agentNames))
	for _, agent := range agentNames {
		t := tallies[agent]
		ratings = append(ratings, models.AgentRating{
			Agent: agent, Domain: in.Domain, Elo: updated[agent],
			Wins: t.Wins, Losses: t.Losses, Draws: t.Draws,
		})
	}
	match := &models.Match{
		ID: in.DebateID, DebateID: in.DebateID, Participants: agentNames, Winner: winner,
		EloChanges: deltas, Domain: in.Domain,
	}
	return o.store.RecordMatch(ctx, match, ratings)
}

func (o *Orchestrator) seal(ctx context.Context, debate *models.Debate, final *models.FinalArtifact, outcome models.Outcome, confidence float64, reason string) (*models.Debate, error) {
	debate.State = models.DebateTerminal
	debate.Outcome = outcome
	debate.FinalArtifact = final
	if outcome == models.OutcomeConsensus {
		debate.ConsensusReached = true
	}
	if confidence > 0 {
		c := confidence
		debate.Confidence = &c
	}
	if err := o.store.SealDebate(ctx, debate.DebateID, final, outcome, debate.Confidence); err != nil {
		return debate, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "seal debate", err)
	}
	data := map[string]interface{}{"outcome": string(outcome)}
	if reason != "" {
		data["reason"] = reason
	}
	o.emit(ctx, debate.DebateID, debate.RoundsUsed, "", models.EventDebateEnd, data)
	return debate, nil
}

func (o *Orchestrator) emit(ctx context.Context, debateID string, round int, agent string, t models.EventType, data map[string]interface{}) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(ctx, &models.Event{Type: t, DebateID: debateID, Round: round, Agent: agent, Data: data})
}
