package llm

import (
	"context"
	"errors"
	"testing"

	"concept-battle-service/internal/domain"
)

type stubProvider struct {
	out string
	err error
}

func (p stubProvider) CompleteWithSystem(context.Context, string, string, string) (string, error) {
	return p.out, p.err
}

func TestGeneratorParsesFencedJSON(t *testing.T) {
	completion := "Sure! ```json\n{\"question\": \"What is 2 + 2?\", \"options\": [\"3\", \" 4 \", \"5\", \"22\"], \"correctAnswer\": \"4\"}\n```"
	gen := NewGenerator(stubProvider{out: completion}, "test-model")

	q, err := gen.GenerateQuestion(context.Background(), "Algebra")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if q.Text != "What is 2 + 2?" || q.CorrectAnswer != "4" || q.Options[1] != "4" {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestGeneratorRejectsMalformedQuestions(t *testing.T) {
	cases := map[string]string{
		"no json":        "I cannot help with that.",
		"three options":  `{"question": "q", "options": ["a", "b", "c"], "correctAnswer": "a"}`,
		"answer missing": `{"question": "q", "options": ["a", "b", "c", "d"], "correctAnswer": "e"}`,
		"duplicates":     `{"question": "q", "options": ["a", "a", "c", "d"], "correctAnswer": "a"}`,
		"broken":         `{"question": "q", "options": [}`,
	}
	for name, completion := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseQuestion(completion); err == nil {
				t.Fatalf("expected error for %q", completion)
			}
		})
	}

	_, err := ParseQuestion(cases["answer missing"])
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
}

func TestGeneratorPropagatesProviderError(t *testing.T) {
	gen := NewGenerator(stubProvider{err: errors.New("rate limited")}, "m")
	if _, err := gen.GenerateQuestion(context.Background(), "Physics"); err == nil {
		t.Fatalf("expected provider error")
	}
}
