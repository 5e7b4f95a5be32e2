package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"concept-battle-service/internal/domain"
	"github.com/rs/zerolog"
)

type generatorFunc func(ctx context.Context, topic string) (domain.Question, error)

func (f generatorFunc) GenerateQuestion(ctx context.Context, topic string) (domain.Question, error) {
	return f(ctx, topic)
}

func TestQuestionSourceReturnsGeneratedQuestion(t *testing.T) {
	source := NewQuestionSource(generatorFunc(func(context.Context, string) (domain.Question, error) {
		return domain.Question{Text: " Q? ", Options: []string{"a", "b ", "c", "d"}, CorrectAnswer: "b"}, nil
	}), time.Second, zerolog.Nop())

	q := source.Question(context.Background(), "Algebra")
	if q.Fallback || q.Text != "Q?" || q.Options[1] != "b" {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestQuestionSourceFallsBack(t *testing.T) {
	cases := map[string]QuestionGenerator{
		"error": generatorFunc(func(context.Context, string) (domain.Question, error) {
			return domain.Question{}, errors.New("model offline")
		}),
		"invalid": generatorFunc(func(context.Context, string) (domain.Question, error) {
			return domain.Question{Text: "Q", Options: []string{"a", "b"}, CorrectAnswer: "a"}, nil
		}),
		"timeout": generatorFunc(func(ctx context.Context, _ string) (domain.Question, error) {
			<-ctx.Done()
			return domain.Question{}, ctx.Err()
		}),
		"nil": nil,
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			source := NewQuestionSource(gen, 20*time.Millisecond, zerolog.Nop())
			q := source.Question(context.Background(), "Biology")
			if !q.Fallback {
				t.Fatalf("expected fallback question, got %+v", q)
			}
			if err := q.Validate(); err != nil {
				t.Fatalf("fallback must be valid: %v", err)
			}
		})
	}
}

func TestFallbackQuestionIsDeterministic(t *testing.T) {
	a := FallbackQuestion("Physics")
	b := FallbackQuestion("Physics")
	if a.Text != b.Text || a.CorrectAnswer != b.CorrectAnswer || a.Options[1] != a.CorrectAnswer {
		t.Fatalf("fallback not deterministic: %+v vs %+v", a, b)
	}
	if a.Text != "Which of the following best describes a core principle of Physics?" {
		t.Fatalf("unexpected text %q", a.Text)
	}
}
