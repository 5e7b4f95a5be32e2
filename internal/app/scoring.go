package app

import "math"

const (
	// DefaultTimeLimitMs is the answer window the speed bonus decays over.
	DefaultTimeLimitMs int64 = 20000

	maxCorrectScore = 100
	minCorrectScore = 10
	wrongPenalty    = -25
)

// Score maps one response to points. Unattempted answers score 0, wrong answers
// a fixed -25, and correct answers decay linearly from 100 at 0ms to 10 at the
// time limit. Elapsed time past the limit is clamped.
func Score(attempted, correct bool, elapsedMs, timeLimitMs int64) int {
	if !attempted {
		return 0
	}
	if !correct {
		return wrongPenalty
	}
	if timeLimitMs <= 0 {
		timeLimitMs = DefaultTimeLimitMs
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if elapsedMs > timeLimitMs {
		elapsedMs = timeLimitMs
	}
	decay := float64(elapsedMs) / float64(timeLimitMs) * float64(maxCorrectScore-minCorrectScore)
	score := int(math.Round(float64(maxCorrectScore) - decay))
	if score < minCorrectScore {
		return minCorrectScore
	}
	return score
}
