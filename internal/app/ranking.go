package app

import (
	"math"
	"sort"

	"concept-battle-service/internal/domain"
)

// ComputeRankings derives final standings from the frozen participant and
// round state. Equal averages share a rank and keep join order.
func ComputeRankings(game domain.Game) []domain.RankingEntry {
	type ranked struct {
		entry     domain.RankingEntry
		joinIndex int
	}

	entries := make([]ranked, 0, len(game.Participants))
	for i, p := range game.Participants {
		entries = append(entries, ranked{
			entry: domain.RankingEntry{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				TotalScore:    p.TotalScore,
				AverageScore:  averageScore(p.TotalScore, p.AnsweredCount),
				WeakestTopic:  weakestTopic(game.Rounds, p.ID),
			},
			joinIndex: i,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].entry.AverageScore != entries[j].entry.AverageScore {
			return entries[i].entry.AverageScore > entries[j].entry.AverageScore
		}
		return entries[i].joinIndex < entries[j].joinIndex
	})

	out := make([]domain.RankingEntry, len(entries))
	rank := 0
	for i, e := range entries {
		if i == 0 || e.entry.AverageScore != entries[i-1].entry.AverageScore {
			rank++
		}
		e.entry.Rank = rank
		out[i] = e.entry
	}
	return out
}

func averageScore(total, answered int) float64 {
	if answered < 1 {
		answered = 1
	}
	return math.Round(float64(total)/float64(answered)*100) / 100
}

// weakestTopic returns the topic of the round where participantID scored
// lowest; the earliest round wins ties.
func weakestTopic(rounds []domain.Round, participantID string) string {
	topic := ""
	lowest := 0
	found := false
	for i := range rounds {
		resp, ok := rounds[i].ResponseFor(participantID)
		if !ok {
			continue
		}
		if !found || resp.Score < lowest {
			lowest = resp.Score
			topic = rounds[i].Topic
			found = true
		}
	}
	return topic
}
