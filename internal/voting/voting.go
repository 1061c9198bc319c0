// Package voting resolves a debate's candidate proposals into a single
// winner under one of spec §4.6's consensus policies, after a
// similarity-based grouping pass merges near-duplicate proposals.
package voting

import (
	"fmt"
	"sort"

	"github.com/an0mium/aragora/internal/models"
	"github.com/an0mium/aragora/internal/ranking"
)

// Result is the outcome of tallying one round of votes.
type Result struct {
	Winner           string
	ConsensusReached bool
	Confidence       float64
	Tally            map[string]float64 // canonical choice -> weight
	GroupOf          map[string]string  // original choice -> canonical choice
}

// EloWeighter supplies each voter's rating for PolicyWeighted;
// tallyWeighted normalizes it against the largest weight present.
// Implemented outside this package (the Orchestrator adapts its storage
// lookups); kept narrow here so this package doesn't depend on storage.
type EloWeighter interface {
	// Weight returns agent's current rating, or the baseline 1500 if
	// unknown.
	Weight(agent string) float64
}

// Tally resolves votes into a Result under cfg's consensus policy. votes
// must be non-empty. embedder is used for grouping near-duplicate
// choices when cfg.VoteGrouping is set; a nil embedder disables grouping.
func Tally(votes []models.Vote, cfg models.DebateConfig, weighter EloWeighter, embedder ranking.Embedder) (*Result, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("voting: no votes cast")
	}

	groupOf := map[string]string{}
	if cfg.VoteGrouping && embedder != nil {
		groupOf = groupSimilarVotes(votes, embedder, cfg.VoteGroupingThreshold)
		for i := range votes {
			if canon, ok := groupOf[votes[i].Choice]; ok {
				votes[i].Choice = canon
			}
		}
	}

	switch cfg.ConsensusPolicy {
	case models.PolicyUnanimous:
		return tallyUnanimous(votes, groupOf)
	case models.PolicyJudge:
		return tallyJudge(votes, cfg.JudgeAgent, groupOf)
	case models.PolicyWeighted:
		return tallyWeighted(votes, weighter, groupOf)
	case models.PolicySupermajority:
		return tallyThreshold(votes, cfg.ConsensusThreshold, groupOf)
	default: // majority
		return tallyMajority(votes, groupOf)
	}
}

// groupSimilarVotes merges choices whose embedded similarity exceeds
// threshold, grounded on original_source's group_similar_votes: pick a
// canonical representative (the first choice seen) for each cluster.
func groupSimilarVotes(votes []models.Vote, embedder ranking.Embedder, threshold float64) map[string]string {
	if threshold <= 0 {
		threshold = 0.85
	}
	type cluster struct {
		canonical string
		vector    []float64
	}
	var clusters []cluster
	groupOf := make(map[string]string)

	for _, v := range votes {
		if _, seen := groupOf[v.Choice]; seen {
			continue
		}
		vec, err := embedder.Embed(v.Choice)
		if err != nil {
			groupOf[v.Choice] = v.Choice
			continue
		}
		matched := false
		for _, c := range clusters {
			if ranking.CosineSimilarity(vec, c.vector) >= threshold {
				groupOf[v.Choice] = c.canonical
				matched = true
				break
			}
		}
		if !matched {
			clusters = append(clusters, cluster{canonical: v.Choice, vector: vec})
			groupOf[v.Choice] = v.Choice
		}
	}
	return groupOf
}

func tallyMajority(votes []models.Vote, groupOf map[string]string) (*Result, error) {
	counts := countChoices(votes)
	winner, winnerCount, tieCount := pickPlurality(counts, votes)
	_ = tieCount
	total := len(votes)
	return &Result{
		Winner:           winner,
		ConsensusReached: winnerCount*2 > total,
		Confidence:       meanConfidenceFor(winner, votes),
		Tally:            counts,
		GroupOf:          groupOf,
	}, nil
}

// meanConfidenceFor averages the confidence of every vote cast for
// choice (spec §4.6: the winning proposal's confidence is the mean
// confidence of the votes it received, not the vote share).
func meanConfidenceFor(choice string, votes []models.Vote) float64 {
	var sum float64
	var n int
	for _, v := range votes {
		if v.Choice == choice {
			sum += v.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func tallyThreshold(votes []models.Vote, threshold float64, groupOf map[string]string) (*Result, error) {
	counts := countChoices(votes)
	winner, winnerCount, _ := pickPlurality(counts, votes)
	total := len(votes)
	frac := float64(winnerCount) / float64(total)
	return &Result{
		Winner:           winner,
		ConsensusReached: frac >= threshold,
		Confidence:       frac,
		Tally:            counts,
		GroupOf:          groupOf,
	}, nil
}

func tallyUnanimous(votes []models.Vote, groupOf map[string]string) (*Result, error) {
	first := votes[0].Choice
	for _, v := range votes[1:] {
		if v.Choice != first {
			counts := countChoices(votes)
			return &Result{ConsensusReached: false, Tally: counts, GroupOf: groupOf}, nil
		}
	}
	return &Result{Winner: first, ConsensusReached: true, Confidence: 1.0,
		Tally: map[string]float64{first: float64(len(votes))}, GroupOf: groupOf}, nil
}

func tallyJudge(votes []models.Vote, judge string, groupOf map[string]string) (*Result, error) {
	for _, v := range votes {
		if v.Agent == judge {
			return &Result{
				Winner: v.Choice, ConsensusReached: true, Confidence: v.Confidence,
				Tally: map[string]float64{v.Choice: 1}, GroupOf: groupOf,
			}, nil
		}
	}
	return nil, fmt.Errorf("voting: judge agent %q did not vote", judge)
}

func tallyWeighted(votes []models.Vote, weighter EloWeighter, groupOf map[string]string) (*Result, error) {
	weights := make(map[string]float64, len(votes))
	maxWeight := 0.0
	for _, v := range votes {
		w := 1500.0
		if weighter != nil {
			w = weighter.Weight(v.Agent)
		}
		weights[v.Agent] = w
		if w > maxWeight {
			maxWeight = w
		}
	}
	if maxWeight == 0 {
		maxWeight = 1
	}

	scores := make(map[string]float64)
	for _, v := range votes {
		normalized := weights[v.Agent] / maxWeight
		scores[v.Choice] += normalized
	}

	winner := ""
	best := -1.0
	for choice, score := range scores {
		if score > best {
			best = score
			winner = choice
		}
	}
	total := 0.0
	for _, s := range scores {
		total += s
	}
	confidence := 0.0
	if total > 0 {
		confidence = best / total
	}

	return &Result{
		Winner: winner, ConsensusReached: winner != "", Confidence: confidence,
		Tally: scores, GroupOf: groupOf,
	}, nil
}

func countChoices(votes []models.Vote) map[string]float64 {
	counts := make(map[string]float64)
	for _, v := range votes {
		counts[v.Choice]++
	}
	return counts
}

// pickPlurality breaks ties by (a) highest mean confidence, then (b) the
// position in votes of the first vote cast for each tied choice. Votes
// carry no proposal round, so (b) follows the order of the votes slice,
// not the round in which a proposal was made.
func pickPlurality(counts map[string]float64, votes []models.Vote) (winner string, winnerCount int, tieCount int) {
	type cand struct {
		choice string
		count  int
	}
	var cands []cand
	for choice, count := range counts {
		cands = append(cands, cand{choice, int(count)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].count > cands[j].count })

	top := cands[0].count
	var tied []string
	for _, c := range cands {
		if c.count == top {
			tied = append(tied, c.choice)
		}
	}
	if len(tied) == 1 {
		return tied[0], top, 1
	}

	meanConfidence := make(map[string]float64)
	counted := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, v := range votes {
		if !contains(tied, v.Choice) {
			continue
		}
		meanConfidence[v.Choice] += v.Confidence
		counted[v.Choice]++
		if _, ok := firstSeen[v.Choice]; !ok {
			firstSeen[v.Choice] = i
		}
	}
	for choice := range meanConfidence {
		if counted[choice] > 0 {
			meanConfidence[choice] /= float64(counted[choice])
		}
	}

	sort.Slice(tied, func(i, j int) bool {
		ci, cj := meanConfidence[tied[i]], meanConfidence[tied[j]]
		if ci != cj {
			return ci > cj
		}
		return firstSeen[tied[i]] < firstSeen[tied[j]]
	})
	return tied[0], top, len(tied)
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
