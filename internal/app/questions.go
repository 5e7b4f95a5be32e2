package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/rs/zerolog"
)

// QuestionGenerator produces one multiple-choice question for a topic. It is
// an unreliable external dependency and may fail or return garbage.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, topic string) (domain.Question, error)
}

// QuestionSource wraps a generator with a deadline and validation, and never
// fails: any problem yields FallbackQuestion(topic).
type QuestionSource struct {
	generator QuestionGenerator
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewQuestionSource(generator QuestionGenerator, timeout time.Duration, logger zerolog.Logger) *QuestionSource {
	return &QuestionSource{generator: generator, timeout: timeout, logger: logger}
}

// Question returns a well-formed question for topic.
func (s *QuestionSource) Question(ctx context.Context, topic string) domain.Question {
	if s == nil || s.generator == nil {
		return FallbackQuestion(topic)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	q, err := s.generator.GenerateQuestion(ctx, topic)
	if err == nil {
		q = normalizeQuestion(q)
		err = q.Validate()
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Msg("question generation failed, using fallback")
		return FallbackQuestion(topic)
	}
	return q
}

// FallbackQuestion is the deterministic substitute used when generation fails.
// It depends only on topic.
func FallbackQuestion(topic string) domain.Question {
	t := strings.TrimSpace(topic)
	correct := fmt.Sprintf("The foundational idea that %s is built on", t)
	return domain.Question{
		Text: fmt.Sprintf("Which of the following best describes a core principle of %s?", t),
		Options: []string{
			fmt.Sprintf("A rarely used edge case of %s", t),
			correct,
			fmt.Sprintf("A historical footnote unrelated to %s", t),
			fmt.Sprintf("A tool that replaces the need to learn %s", t),
		},
		CorrectAnswer: correct,
		Fallback:      true,
	}
}

func normalizeQuestion(q domain.Question) domain.Question {
	q.Text = strings.TrimSpace(q.Text)
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	opts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = strings.TrimSpace(opt)
	}
	q.Options = opts
	q.Fallback = false
	return q
}
