package services

import (
	"math"
	"sort"
	"time"

	"livequiz/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// questionDuration is the full time a question stays live: display plus answering.
func questionDuration(q *models.Question) time.Duration {
	return time.Duration(q.DisplaySeconds()+q.AnswerSeconds()) * time.Second
}

// remainingMs is how much of the question's duration is left at now, never negative.
func remainingMs(q *models.Question, start, now time.Time) int64 {
	left := questionDuration(q).Milliseconds() - now.Sub(start).Milliseconds()
	if left < 0 {
		return 0
	}
	return left
}

// countAnswerSelections tallies, per answer id, how many players picked it
// for questionID. Reports for other questions are ignored.
func countAnswerSelections(players []models.Player, questionID uuid.UUID) map[string]int {
	counts := make(map[string]int)
	for i := range players {
		report, err := players[i].Report()
		if err != nil {
			log.Warn().Err(err).Msg("skipping unreadable answer report")
			continue
		}
		for _, rec := range report.Questions {
			if rec.QuestionID == questionID {
				counts[rec.AnswerID.String()]++
			}
		}
	}
	return counts
}

// calculatePoints awards the base points for a correct answer plus up to
// half of them again for answering quickly.
func calculatePoints(timeSpent, timeLimit time.Duration, basePoints int, isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	if timeLimit <= 0 {
		return basePoints
	}

	ratio := float64(timeLimit-timeSpent) / float64(timeLimit)
	timeBonus := int(math.Max(0, math.Min(1, ratio)) * float64(basePoints) / 2)
	return basePoints + timeBonus
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Score      int       `json:"score"`
}

// buildLeaderboard sorts players by score and ranks them; equal scores share a rank.
func buildLeaderboard(players []models.Player) []LeaderboardEntry {
	sorted := make([]models.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].PlayerName < sorted[j].PlayerName
	})

	entries := make([]LeaderboardEntry, 0, len(sorted))
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && sorted[i-1].Score == p.Score {
			rank = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:       rank,
			PlayerID:   p.ID,
			PlayerName: p.PlayerName,
			Score:      p.Score,
		})
	}
	return entries
}
