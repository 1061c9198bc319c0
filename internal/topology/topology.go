// Package topology assigns cognitive roles to agents round by round and
// groups them for parallel phase execution (spec §4.6's "roles" config
// and "cognitive role rotation between rounds").
package topology

import (
	"sort"
	"sync"
	"time"

	"github.com/an0mium/aragora/internal/models"
)

// defaultRoleOrder is used when a DebateConfig leaves Roles empty: the
// first agent proposes, the rest critique, matching spec's example
// ("one agent is proposer, others critics").
var defaultRoleOrder = []string{"proposer", "critic"}

// Roster tracks the agents in one debate and derives, for any round,
// which cognitive role each agent plays and which agents participate in
// which phase.
type Roster struct {
	agents []string
	config models.DebateConfig

	mu      sync.RWMutex
	metrics map[string]AgentMetrics
}

// AgentMetrics tracks per-agent participation across a debate.
type AgentMetrics struct {
	MessageCount    int
	AvgResponseTime time.Duration
	LastActive      time.Time
}

// NewRoster builds a Roster for a fixed agent list and configuration.
// Agent order is preserved; it is the tie-break and role-assignment order.
func NewRoster(agents []string, cfg models.DebateConfig) *Roster {
	r := &Roster{agents: append([]string{}, agents...), config: cfg, metrics: make(map[string]AgentMetrics)}
	return r
}

// Agents returns the fixed agent order.
func (r *Roster) Agents() []string {
	out := make([]string, len(r.agents))
	copy(out, r.agents)
	return out
}

// roleOrder returns the role labels in position order, from config.Roles
// (keyed by round-relative position) or the default proposer/critic split.
func (r *Roster) roleOrder() []string {
	if len(r.config.Roles) == 0 {
		return defaultRoleOrder
	}
	positions := make([]int, 0, len(r.config.Roles))
	for pos := range r.config.Roles {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	order := make([]string, 0, len(positions))
	for _, pos := range positions {
		order = append(order, r.config.Roles[pos])
	}
	return order
}

// RolesForRound returns the cognitive role assigned to each agent in the
// given round (1-indexed). Roles rotate: round 1 uses the configured
// order starting at position 0, round 2 shifts the starting position by
// one, and so on. Only agents at positions below len(order) rotate;
// agents at later positions always hold the last role (with the default
// order, the third and later agents never propose).
func (r *Roster) RolesForRound(round int) map[string]string {
	order := r.roleOrder()
	if len(order) == 0 || len(r.agents) == 0 {
		return map[string]string{}
	}
	shift := (round - 1) % len(order)
	assignment := make(map[string]string, len(r.agents))
	for i, agent := range r.agents {
		role := order[(i+shift)%len(order)]
		// Every position beyond the configured role order reuses the
		// last (most general) role — typically "critic".
		if i >= len(order) && len(order) > 1 {
			role = order[len(order)-1]
		}
		assignment[agent] = role
	}
	return assignment
}

// PhasesForRound returns the ordered phases to run this round.
func (r *Roster) PhasesForRound() []models.Phase {
	if len(r.config.PhasesPerRound) > 0 {
		return r.config.PhasesPerRound
	}
	return []models.Phase{models.PhasePropose, models.PhaseCritique, models.PhaseRevise}
}

// ParticipantsForPhase returns the agents that take a turn in phase this
// round. Propose is led by whoever holds the "proposer" role; Critique
// and Revise are open to every agent, so every surviving agent
// contributes a message for those phases.
func (r *Roster) ParticipantsForPhase(phase models.Phase, round int) []string {
	if phase != models.PhasePropose {
		return r.Agents()
	}
	roles := r.RolesForRound(round)
	var proposers []string
	for _, agent := range r.agents {
		if roles[agent] == "proposer" {
			proposers = append(proposers, agent)
		}
	}
	if len(proposers) == 0 {
		return r.Agents()
	}
	return proposers
}

// RecordTurn updates an agent's participation metrics after a completed
// invocation.
func (r *Roster) RecordTurn(agent string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics[agent]
	m.MessageCount++
	m.LastActive = time.Now()
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = latency
	} else {
		m.AvgResponseTime = (m.AvgResponseTime + latency) / 2
	}
	r.metrics[agent] = m
}

// Metrics returns a snapshot of per-agent participation metrics.
func (r *Roster) Metrics() map[string]AgentMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]AgentMetrics, len(r.metrics))
	for k, v := range r.metrics {
		out[k] = v
	}
	return out
}

// RemoveAgent drops an agent that has exhausted its failure retries
// (spec §4.6 "treated as an abstention... debate continues if at least
// min_participants remain").
func (r *Roster) RemoveAgent(agent string) {
	for i, a := range r.agents {
		if a == agent {
			r.agents = append(r.agents[:i], r.agents[i+1:]...)
			return
		}
	}
}

// Remaining reports how many agents are still active.
func (r *Roster) Remaining() int {
	return len(r.agents)
}
