package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GameRepository stores game documents. Update is the only mutation path: it
// hands mutate a private copy of the current document and commits the result
// atomically (per-game lock or compare-and-swap on Version). If mutate returns
// an error nothing is written and that error is returned unchanged.
type GameRepository interface {
	Create(ctx context.Context, game domain.Game) error
	Get(ctx context.Context, gameID string) (domain.Game, error)
	Update(ctx context.Context, gameID string, mutate func(*domain.Game) error) (domain.Game, error)
	ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.Game, error)
	// ListExpired returns ids of in-progress games whose round deadline is at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Notifier receives one-shot announcements. It is never consulted for game logic.
type Notifier interface {
	Announce(ctx context.Context, announcement domain.Announcement) error
}

// ChangeFeed pushes committed game documents to observers.
type ChangeFeed interface {
	Publish(ctx context.Context, game domain.Game) error
	Subscribe(ctx context.Context, gameID string) (<-chan domain.Game, func(), error)
}

// TopicCatalog lists the topics players can choose from.
type TopicCatalog interface {
	Topics(ctx context.Context) ([]string, error)
}

// Options tunes game rules.
type Options struct {
	MinParticipants int
	MaxParticipants int
	AnswerTimeLimit time.Duration
	// DeadlineGrace is added to AnswerTimeLimit before a round is force-advanced.
	DeadlineGrace time.Duration
	ListLimit     int
	NotifyTimeout time.Duration
}

// DefaultOptions returns the standard battle rules.
func DefaultOptions() Options {
	return Options{
		MinParticipants: 2,
		MaxParticipants: 10,
		AnswerTimeLimit: time.Duration(DefaultTimeLimitMs) * time.Millisecond,
		DeadlineGrace:   5 * time.Second,
		ListLimit:       20,
		NotifyTimeout:   5 * time.Second,
	}
}

// Deps groups the collaborators of GameService. Only Games is required.
type Deps struct {
	Games     GameRepository
	Questions *QuestionSource
	Notifier  Notifier
	Feed      ChangeFeed
	Topics    TopicCatalog
	Logger    zerolog.Logger
}

// GameService is the authoritative state machine for battles.
type GameService struct {
	games     GameRepository
	questions *QuestionSource
	notifier  Notifier
	feed      ChangeFeed
	topics    TopicCatalog
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	pending sync.WaitGroup
}

func NewGameService(deps Deps, opts Options) *GameService {
	def := DefaultOptions()
	if opts.MinParticipants <= 0 {
		opts.MinParticipants = def.MinParticipants
	}
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = def.MaxParticipants
	}
	if opts.AnswerTimeLimit <= 0 {
		opts.AnswerTimeLimit = def.AnswerTimeLimit
	}
	if opts.DeadlineGrace < 0 {
		opts.DeadlineGrace = 0
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = def.ListLimit
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = def.NotifyTimeout
	}
	return &GameService{
		games:     deps.Games,
		questions: deps.Questions,
		notifier:  deps.Notifier,
		feed:      deps.Feed,
		topics:    deps.Topics,
		opts:      opts,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps and deadlines.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// Wait blocks until in-flight announcements have been delivered or dropped.
func (s *GameService) Wait() {
	s.pending.Wait()
}

// CreateGameInput describes a new lobby.
type CreateGameInput struct {
	CommunityID string
	CreatorID   string
	DisplayName string
}

// StartResult is returned by StartGame.
type StartResult struct {
	Status      domain.GameStatus `json:"status"`
	TotalRounds int               `json:"totalRounds"`
}

// SelectTopicResult is returned by SelectTopic.
type SelectTopicResult struct {
	Round    domain.Round    `json:"round"`
	Question domain.Question `json:"question"`
}

// SubmitAnswerInput is one participant's answer for the current round.
type SubmitAnswerInput struct {
	GameID        string
	ParticipantID string
	DisplayName   string
	Answer        string
	ElapsedMs     int64
}

// AnswerResult summarizes the outcome of a submission.
type AnswerResult struct {
	RoundIndex int   `json:"roundIndex"`
	Score      int   `json:"score"`
	IsCorrect  bool  `json:"isCorrect"`
	ElapsedMs  int64 `json:"elapsedMs"`
	TotalScore int   `json:"totalScore"`
}

// AdvanceResult is returned by AdvanceRound. Rankings is set once completed.
type AdvanceResult struct {
	Status         domain.GameStatus     `json:"status"`
	NextRoundIndex int                   `json:"nextRoundIndex"`
	Rankings       []domain.RankingEntry `json:"rankings,omitempty"`
}

// CreateGame opens a lobby with the creator as the first participant.
func (s *GameService) CreateGame(ctx context.Context, in CreateGameInput) (domain.Game, error) {
	creatorID := strings.TrimSpace(in.CreatorID)
	if creatorID == "" {
		return domain.Game{}, fmt.Errorf("%w: creator id is required", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = creatorID
	}

	game := domain.NewGame(s.newID(), strings.TrimSpace(in.CommunityID), creatorID, name, s.now())
	game.Version = 1
	if err := s.games.Create(ctx, game); err != nil {
		return domain.Game{}, fmt.Errorf("create game: %w", err)
	}

	s.logger.Info().Str("game_id", game.ID).Str("participant_id", creatorID).Msg("game created")
	s.publish(ctx, game)
	s.announce(game)
	return game, nil
}

// JoinGame appends a participant to a lobby. Join order becomes topic order.
func (s *GameService) JoinGame(ctx context.Context, gameID, participantID, displayName string) (domain.Game, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return domain.Game{}, fmt.Errorf("%w: participant id is required", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = participantID
	}

	game, err := s.games.Update(ctx, gameID, func(g *domain.Game) error {
		if g.Status != domain.GameStatusLobby {
			return domain.ErrAlreadyStarted
		}
		if len(g.Participants) >= s.opts.MaxParticipants {
			return domain.ErrGameFull
		}
		if g.Participant(participantID) != nil {
			return domain.ErrAlreadyJoined
		}
		now := s.now()
		g.Participants = append(g.Participants, domain.Participant{
			ID:          participantID,
			DisplayName: name,
			JoinedAt:    now,
		})
		g.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Game{}, err
	}

	s.logger.Info().Str("game_id", gameID).Str("participant_id", participantID).Int("participants", len(game.Participants)).Msg("participant joined")
	s.publish(ctx, game)
	return game, nil
}

// StartGame freezes the roster and allocates one round per participant.
func (s *GameService) StartGame(ctx context.Context, gameID, requesterID string) (StartResult, error) {
	requesterID = strings.TrimSpace(requesterID)
	game, err := s.games.Update(ctx, gameID, func(g *domain.Game) error {
		if g.CreatedBy != requesterID {
			return domain.ErrNotCreator
		}
		if g.Status != domain.GameStatusLobby {
			return domain.ErrAlreadyStarted
		}
		if len(g.Participants) < s.opts.MinParticipants {
			return domain.ErrNotEnoughPlayers
		}

		now := s.now()
		rounds := make([]domain.Round, len(g.Participants))
		for i, p := range g.Participants {
			rounds[i] = domain.Round{
				RoundIndex:    i,
				TopicChosenBy: p.ID,
				Responses:     []domain.Response{},
				Status:        domain.RoundStatusWaitingTopic,
			}
		}
		g.Rounds = rounds
		g.TotalRounds = len(rounds)
		g.CurrentRoundIndex = 0
		g.Status = domain.GameStatusTopicSelection
		g.StartedAt = &now
		g.UpdatedAt = now
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}

	s.logger.Info().Str("game_id", gameID).Int("rounds", game.TotalRounds).Msg("game started")
	s.publish(ctx, game)
	return StartResult{Status: game.Status, TotalRounds: game.TotalRounds}, nil
}

// SelectTopic lets the assigned chooser pick the current round's topic. The
// question is generated before the game is locked; the commit re-checks that
// nobody else chose in the meantime.
func (s *GameService) SelectTopic(ctx context.Context, gameID, participantID, topic string) (SelectTopicResult, error) {
	participantID = strings.TrimSpace(participantID)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return SelectTopicResult{}, fmt.Errorf("%w: topic is required", domain.ErrInvalidInput)
	}

	current, err := s.games.Get(ctx, gameID)
	if err != nil {
		return SelectTopicResult{}, err
	}
	if err := checkTopicTurn(&current, participantID); err != nil {
		return SelectTopicResult{}, err
	}

	question := s.questions.Question(ctx, topic)

	game, err := s.games.Update(ctx, gameID, func(g *domain.Game) error {
		if err := checkTopicTurn(g, participantID); err != nil {
			return err
		}
		now := s.now()
		deadline := now.Add(s.opts.AnswerTimeLimit + s.opts.DeadlineGrace)
		q := question
		q.Options = append([]string(nil), question.Options...)

		round := g.CurrentRound()
		round.Topic = topic
		round.Question = &q
		round.Status = domain.RoundStatusActive
		round.StartedAt = &now
		round.Deadline = &deadline
		g.Status = domain.GameStatusInProgress
		g.UpdatedAt = now
		return nil
	})
	if err != nil {
		return SelectTopicResult{}, err
	}

	round := game.Rounds[game.CurrentRoundIndex]
	s.logger.Info().
		Str("game_id", gameID).
		Int("round", round.RoundIndex).
		Str("topic", topic).
		Bool("fallback", question.Fallback).
		Msg("topic selected")
	s.publish(ctx, game)
	return SelectTopicResult{Round: round, Question: *round.Question}, nil
}

func checkTopicTurn(g *domain.Game, participantID string) error {
	switch g.Status {
	case domain.GameStatusTopicSelection:
	case domain.GameStatusInProgress:
		return domain.ErrTopicAlreadyChosen
	default:
		return domain.ErrNotTopicSelection
	}
	round := g.CurrentRound()
	if round == nil {
		return domain.ErrNotTopicSelection
	}
	if round.TopicChosenBy != participantID {
		return domain.ErrNotYourTurn
	}
	if round.Topic != "" {
		return domain.ErrTopicAlreadyChosen
	}
	return nil
}

// SubmitAnswer scores and records one answer. The duplicate check, the
// append and the participant totals commit together.
func (s *GameService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (AnswerResult, error) {
	limitMs := s.opts.AnswerTimeLimit.Milliseconds()
	elapsed := in.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}
	answer := strings.TrimSpace(in.Answer)
	in.ParticipantID = strings.TrimSpace(in.ParticipantID)

	var result AnswerResult
	game, err := s.games.Update(ctx, in.GameID, func(g *domain.Game) error {
		if g.Status != domain.GameStatusInProgress {
			return domain.ErrRoundNotActive
		}
		round := g.CurrentRound()
		if round == nil || round.Status != domain.RoundStatusActive || round.Question == nil {
			return domain.ErrRoundNotActive
		}
		participant := g.Participant(in.ParticipantID)
		if participant == nil {
			return domain.ErrParticipantNotFound
		}
		if _, answered := round.ResponseFor(in.ParticipantID); answered {
			return domain.ErrAlreadyAnswered
		}

		attempted := answer != ""
		correct := attempted && strings.EqualFold(answer, strings.TrimSpace(round.Question.CorrectAnswer))
		score := Score(attempted, correct, elapsed, limitMs)

		now := s.now()
		round.Responses = append(round.Responses, domain.Response{
			ParticipantID: in.ParticipantID,
			Answer:        answer,
			ElapsedMs:     elapsed,
			Score:         score,
			IsCorrect:     correct,
			SubmittedAt:   now,
		})
		participant.TotalScore += score
		participant.AnsweredCount++
		if name := strings.TrimSpace(in.DisplayName); name != "" {
			participant.DisplayName = name
		}
		g.UpdatedAt = now

		result = AnswerResult{
			RoundIndex: round.RoundIndex,
			Score:      score,
			IsCorrect:  correct,
			ElapsedMs:  elapsed,
			TotalScore: participant.TotalScore,
		}
		return nil
	})
	if err != nil {
		return AnswerResult{}, err
	}

	s.logger.Debug().
		Str("game_id", in.GameID).
		Str("participant_id", in.ParticipantID).
		Int("round", result.RoundIndex).
		Int("score", result.Score).
		Msg("answer recorded")
	s.publish(ctx, game)
	return result, nil
}

var errNoTransition = errors.New("no transition")

// AdvanceRound closes round roundIndex if it is still the current round.
// Calls that find it already closed, or the game already past it, are no-ops
// returning the current result.
func (s *GameService) AdvanceRound(ctx context.Context, gameID string, roundIndex int) (AdvanceResult, error) {
	result, _, err := s.advance(ctx, gameID, func(g *domain.Game, _ time.Time) bool {
		return g.CurrentRoundIndex == roundIndex
	})
	return result, err
}

// ExpireDueRounds force-advances every round whose server-side deadline has
// passed and returns how many were advanced.
func (s *GameService) ExpireDueRounds(ctx context.Context, limit int) (int, error) {
	ids, err := s.games.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired games: %w", err)
	}

	advanced := 0
	for _, id := range ids {
		_, ok, err := s.advance(ctx, id, deadlinePassed)
		if err != nil {
			s.logger.Warn().Err(err).Str("game_id", id).Msg("failed to expire round")
			continue
		}
		if ok {
			advanced++
		}
	}
	return advanced, nil
}

func deadlinePassed(g *domain.Game, now time.Time) bool {
	deadline := g.ActiveDeadline()
	return deadline != nil && !now.Before(*deadline)
}

func (s *GameService) advance(ctx context.Context, gameID string, due func(*domain.Game, time.Time) bool) (AdvanceResult, bool, error) {
	advanced := false
	game, err := s.games.Update(ctx, gameID, func(g *domain.Game) error {
		advanced = false
		switch g.Status {
		case domain.GameStatusLobby:
			return domain.ErrNotStarted
		case domain.GameStatusInProgress:
		default:
			return errNoTransition
		}
		now := s.now()
		if !due(g, now) {
			return errNoTransition
		}
		s.completeRound(g, now)
		advanced = true
		return nil
	})
	if errors.Is(err, errNoTransition) {
		game, err = s.games.Get(ctx, gameID)
	}
	if err != nil {
		return AdvanceResult{}, false, err
	}

	if advanced {
		s.logger.Info().
			Str("game_id", gameID).
			Str("status", string(game.Status)).
			Int("round", game.CurrentRoundIndex).
			Msg("round advanced")
		s.publish(ctx, game)
	}
	return advanceResultOf(game), advanced, nil
}

// completeRound closes the current round. Participants who never answered get
// a timed-out response worth 0, as a client-side timeout would have written.
func (s *GameService) completeRound(g *domain.Game, now time.Time) {
	round := g.CurrentRound()
	limitMs := s.opts.AnswerTimeLimit.Milliseconds()
	for i := range g.Participants {
		p := &g.Participants[i]
		if _, ok := round.ResponseFor(p.ID); ok {
			continue
		}
		round.Responses = append(round.Responses, domain.Response{
			ParticipantID: p.ID,
			ElapsedMs:     limitMs,
			TimedOut:      true,
			SubmittedAt:   now,
		})
		p.AnsweredCount++
	}
	completedAt := now
	round.Status = domain.RoundStatusCompleted
	round.CompletedAt = &completedAt

	if g.CurrentRoundIndex+1 >= g.TotalRounds {
		g.Status = domain.GameStatusCompleted
		g.CompletedAt = &completedAt
		g.Rankings = ComputeRankings(*g)
	} else {
		g.CurrentRoundIndex++
		g.Status = domain.GameStatusTopicSelection
	}
	g.UpdatedAt = now
}

func advanceResultOf(game domain.Game) AdvanceResult {
	result := AdvanceResult{Status: game.Status, NextRoundIndex: game.CurrentRoundIndex}
	if game.Status == domain.GameStatusCompleted {
		result.Rankings = game.Rankings
	}
	return result
}

// GetGame returns the current game document.
func (s *GameService) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	return s.games.Get(ctx, gameID)
}

// ListGames returns the most recent games of a community.
func (s *GameService) ListGames(ctx context.Context, communityID string, limit int) ([]domain.Game, error) {
	if limit <= 0 {
		limit = s.opts.ListLimit
	}
	if maxLimit := s.opts.ListLimit * 5; limit > maxLimit {
		limit = maxLimit
	}
	return s.games.ListByCommunity(ctx, strings.TrimSpace(communityID), limit)
}

// Topics returns the topics players can choose from.
func (s *GameService) Topics(ctx context.Context) ([]string, error) {
	if s.topics == nil {
		return append([]string(nil), DefaultTopics...), nil
	}
	topics, err := s.topics.Topics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return topics, nil
}

// Subscribe returns a channel of game snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(ctx context.Context, gameID string) (<-chan domain.Game, func(), error) {
	if s.feed == nil {
		return nil, nil, fmt.Errorf("%w: change feed not configured", domain.ErrInvalidState)
	}
	if _, err := s.games.Get(ctx, gameID); err != nil {
		return nil, nil, err
	}
	return s.feed.Subscribe(ctx, gameID)
}

func (s *GameService) publish(ctx context.Context, game domain.Game) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, game); err != nil {
		s.logger.Warn().Err(err).Str("game_id", game.ID).Msg("failed to publish game update")
	}
}

// announce delivers the creation notice in the background; failures are
// logged and never affect the game.
func (s *GameService) announce(game domain.Game) {
	if s.notifier == nil {
		return
	}
	announcement := domain.Announcement{
		GameID:      game.ID,
		CommunityID: game.CommunityID,
		CreatedBy:   game.CreatedBy,
		Text:        fmt.Sprintf("%s started a Speed Concept Battle! Join now.", game.Participants[0].DisplayName),
		CreatedAt:   game.CreatedAt,
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Announce(ctx, announcement); err != nil {
			s.logger.Warn().Err(err).Str("game_id", game.ID).Msg("failed to announce game")
		}
	}()
}
