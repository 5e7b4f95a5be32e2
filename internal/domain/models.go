package domain

import (
	"fmt"
	"strings"
	"time"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	GameStatusLobby          GameStatus = "lobby"
	GameStatusTopicSelection GameStatus = "topic_selection"
	GameStatusInProgress     GameStatus = "in_progress"
	GameStatusCompleted      GameStatus = "completed"
)

// RoundStatus is the lifecycle state of a single round.
type RoundStatus string

const (
	RoundStatusWaitingTopic RoundStatus = "waiting_topic"
	RoundStatusActive       RoundStatus = "active"
	RoundStatusCompleted    RoundStatus = "completed"
)

// QuestionOptionCount is the number of options every question carries.
const QuestionOptionCount = 4

// Participant represents a player in a game and their running totals.
type Participant struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"displayName"`
	TotalScore    int       `json:"totalScore"`
	AnsweredCount int       `json:"answeredCount"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Question models an MCQ with exactly one correct option.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Fallback      bool     `json:"fallback,omitempty"`
}

// Validate reports whether q is a well-formed four-option question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if len(q.Options) != QuestionOptionCount {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, QuestionOptionCount, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	found := false
	for _, opt := range q.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			return fmt.Errorf("%w: empty option", ErrInvalidQuestion)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, opt)
		}
		seen[key] = struct{}{}
		if opt == q.CorrectAnswer {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: correct answer is not one of the options", ErrInvalidQuestion)
	}
	return nil
}

// Response is one participant's answer for a round. Immutable once written.
type Response struct {
	ParticipantID string    `json:"participantId"`
	Answer        string    `json:"answer"`
	ElapsedMs     int64     `json:"elapsedMs"`
	Score         int       `json:"score"`
	IsCorrect     bool      `json:"isCorrect"`
	TimedOut      bool      `json:"timedOut,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Round is one topic+question cycle, owned by one participant's topic choice.
type Round struct {
	RoundIndex    int         `json:"roundIndex"`
	TopicChosenBy string      `json:"topicChosenBy"`
	Topic         string      `json:"topic"`
	Question      *Question   `json:"question"`
	Responses     []Response  `json:"responses"`
	Status        RoundStatus `json:"status"`
	StartedAt     *time.Time  `json:"startedAt,omitempty"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}

// ResponseFor returns the response participantID gave in this round, if any.
func (r *Round) ResponseFor(participantID string) (Response, bool) {
	for _, resp := range r.Responses {
		if resp.ParticipantID == participantID {
			return resp, true
		}
	}
	return Response{}, false
}

// RankingEntry is a participant's final standing.
type RankingEntry struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	TotalScore    int     `json:"totalScore"`
	AverageScore  float64 `json:"averageScore"`
	Rank          int     `json:"rank"`
	WeakestTopic  string  `json:"weakestTopic"`
}

// Game is the authoritative document for one battle. It is stored and
// replaced as a whole; Version increments on every committed change.
type Game struct {
	ID                string         `json:"id"`
	CommunityID       string         `json:"communityId,omitempty"`
	Status            GameStatus     `json:"status"`
	CreatedBy         string         `json:"createdBy"`
	Participants      []Participant  `json:"participants"`
	Rounds            []Round        `json:"rounds"`
	TotalRounds       int            `json:"totalRounds"`
	CurrentRoundIndex int            `json:"currentRoundIndex"`
	Rankings          []RankingEntry `json:"rankings,omitempty"`
	Version           int64          `json:"version"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

// NewGame builds a lobby with the creator as participant #0. TotalRounds is a
// placeholder until the game starts.
func NewGame(id, communityID, creatorID, displayName string, now time.Time) Game {
	return Game{
		ID:          id,
		CommunityID: communityID,
		Status:      GameStatusLobby,
		CreatedBy:   creatorID,
		Participants: []Participant{{
			ID:          creatorID,
			DisplayName: displayName,
			JoinedAt:    now,
		}},
		Rounds:      []Round{},
		TotalRounds: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Participant returns a pointer into g.Participants, or nil.
func (g *Game) Participant(id string) *Participant {
	for i := range g.Participants {
		if g.Participants[i].ID == id {
			return &g.Participants[i]
		}
	}
	return nil
}

// CurrentRound returns the round at CurrentRoundIndex, or nil before start.
func (g *Game) CurrentRound() *Round {
	if g.CurrentRoundIndex < 0 || g.CurrentRoundIndex >= len(g.Rounds) {
		return nil
	}
	return &g.Rounds[g.CurrentRoundIndex]
}

// ActiveDeadline is the answer deadline of the current round while answers are
// being collected.
func (g *Game) ActiveDeadline() *time.Time {
	if g.Status != GameStatusInProgress {
		return nil
	}
	round := g.CurrentRound()
	if round == nil || round.Status != RoundStatusActive {
		return nil
	}
	return round.Deadline
}

// Clone returns a deep copy so stores can hand out and mutate games without
// sharing slices.
func (g Game) Clone() Game {
	out := g
	if g.Participants != nil {
		out.Participants = make([]Participant, len(g.Participants))
		copy(out.Participants, g.Participants)
	}
	if g.Rounds != nil {
		out.Rounds = make([]Round, len(g.Rounds))
		for i, r := range g.Rounds {
			out.Rounds[i] = r.clone()
		}
	}
	if g.Rankings != nil {
		out.Rankings = append([]RankingEntry(nil), g.Rankings...)
	}
	out.StartedAt = cloneTime(g.StartedAt)
	out.CompletedAt = cloneTime(g.CompletedAt)
	return out
}

func (r Round) clone() Round {
	out := r
	if r.Question != nil {
		q := *r.Question
		q.Options = append([]string(nil), r.Question.Options...)
		out.Question = &q
	}
	if r.Responses != nil {
		out.Responses = make([]Response, len(r.Responses))
		copy(out.Responses, r.Responses)
	}
	out.StartedAt = cloneTime(r.StartedAt)
	out.Deadline = cloneTime(r.Deadline)
	out.CompletedAt = cloneTime(r.CompletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Announcement is the one-shot message sent when a game is created.
type Announcement struct {
	GameID      string    `json:"gameId"`
	CommunityID string    `json:"communityId,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}
