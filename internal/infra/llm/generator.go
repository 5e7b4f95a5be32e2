package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"concept-battle-service/internal/domain"
)

// Provider is a chat-completion backend.
type Provider interface {
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

const systemPrompt = "You write multiple-choice quiz questions. Reply with exactly one JSON object and nothing else."

const promptTemplate = `Write one multiple-choice question about %q for a fast-paced quiz.
Return JSON with this shape:
{"question": "...", "options": ["...", "...", "...", "..."], "correctAnswer": "..."}
Rules: exactly 4 distinct options, correctAnswer must be copied verbatim from options.`

var errNoJSON = errors.New("no json object in completion")

// Generator turns a Provider into a question generator.
type Generator struct {
	provider Provider
	model    string
}

func NewGenerator(provider Provider, model string) *Generator {
	return &Generator{provider: provider, model: model}
}

type questionPayload struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

func (g *Generator) GenerateQuestion(ctx context.Context, topic string) (domain.Question, error) {
	out, err := g.provider.CompleteWithSystem(ctx, g.model, systemPrompt, fmt.Sprintf(promptTemplate, topic))
	if err != nil {
		return domain.Question{}, fmt.Errorf("complete: %w", err)
	}
	return ParseQuestion(out)
}

// ParseQuestion extracts the first-to-last brace span of a completion, which
// tolerates prose or code fences around the object.
func ParseQuestion(completion string) (domain.Question, error) {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return domain.Question{}, errNoJSON
	}

	var payload questionPayload
	if err := json.Unmarshal([]byte(completion[start:end+1]), &payload); err != nil {
		return domain.Question{}, fmt.Errorf("decode question: %w", err)
	}
	q := domain.Question{
		Text:          strings.TrimSpace(payload.Question),
		Options:       make([]string, len(payload.Options)),
		CorrectAnswer: strings.TrimSpace(payload.CorrectAnswer),
	}
	for i, opt := range payload.Options {
		q.Options[i] = strings.TrimSpace(opt)
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}
