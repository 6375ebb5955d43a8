package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"quizroom-service/internal/domain"
)

// Generator asks an OpenAI-compatible chat model for quiz questions.
type Generator struct {
	api   *openai.Client
	model string
	log   *zap.Logger
}

// New creates a generator. An empty baseURL uses the OpenAI endpoint.
func New(baseURL, apiKey, modelName string, log *zap.Logger) *Generator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		log:   log,
	}
}

type questionSet struct {
	Questions []domain.GeneratedQuestion `json:"questions"`
}

// Generate returns the parsed records. It does not check them against the
// request; callers decide whether the set is usable.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) ([]domain.GeneratedQuestion, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	g.log.Debug("LLM response", zap.Int("bytes", len(raw)), zap.String("topic", req.Topic))
	return parseQuestions(raw)
}

const systemPrompt = `You are an interview quiz question generator. You write multiple-choice
questions, with code snippets where they help, and you always answer with a single JSON object.`

func buildUserPrompt(req domain.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate %d unique multiple-choice interview questions ", req.Quantity))
	sb.WriteString(fmt.Sprintf("for the topic %q at %s difficulty.\n\n", req.Topic, req.Difficulty))
	sb.WriteString("Respond with a JSON object of this shape:\n")
	sb.WriteString(`{"questions": [{"question": "...", "code_snippet": "...", "options": ["...", "...", "...", "..."], "is_code_options": false, "correct": "...", "correctIndex": 0}]}`)
	sb.WriteString("\n\nEvery question has exactly 4 options. correctIndex is the 0-based index of the correct option ")
	sb.WriteString("and correct repeats that option's text. Use an empty code_snippet when no code is needed.")
	return sb.String()
}

// parseQuestions accepts the JSON object the prompt asks for, or a bare array,
// optionally wrapped in a markdown code fence.
func parseQuestions(raw string) ([]domain.GeneratedQuestion, error) {
	text := stripFences(raw)
	if text == "" {
		return nil, errors.New("empty LLM response")
	}

	if strings.HasPrefix(text, "[") {
		var list []domain.GeneratedQuestion
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, fmt.Errorf("parse LLM response: %w", err)
		}
		return list, nil
	}

	var set questionSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w", err)
	}
	if len(set.Questions) == 0 {
		return nil, errors.New("LLM response has no questions")
	}
	return set.Questions, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// drop the info string, e.g. ```json
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
