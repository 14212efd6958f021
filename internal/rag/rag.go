package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/models"
)

var ErrEmptyResponse = errors.New("chat model returned no choices")

// Querier is the read side of a collection.
type Querier interface {
	Query(ctx context.Context, queryText string, nResults int) ([]string, error)
}

// ChatModel is satisfied by the langchaingo openai and ollama clients.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// BuildQuery joins question, user answer and reference answer into the
// single string used for retrieval.
func BuildQuery(question, userAnswer, actualAnswer string) string {
	return question + " " + userAnswer + " " + actualAnswer
}

// GetRelevantContent returns up to models.TopK stored chunks most similar to
// the combined query, joined by a blank line. No results gives "".
func GetRelevantContent(ctx context.Context, collection Querier, userAnswer, actualAnswer, question string) (string, error) {
	query := BuildQuery(question, userAnswer, actualAnswer)
	docs, err := collection.Query(ctx, query, models.TopK)
	if err != nil {
		return "", err
	}
	log.Debug().Int("documents", len(docs)).Msg("Retrieved relevant content")
	return strings.Join(docs, models.ContextSeparator), nil
}

// FormatPrompt fills the four placeholders in template. Doubled braces are
// unescaped to single ones.
func FormatPrompt(template, question, userAnswer, actualAnswer, relevantContent string) string {
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		models.PlaceholderQuestion, question,
		models.PlaceholderUserAnswer, userAnswer,
		models.PlaceholderActualAnswer, actualAnswer,
		models.PlaceholderRelevantContent, relevantContent,
	)
	return r.Replace(template)
}

// Feedback produces feedback on one answer with a chat model.
type Feedback struct {
	chat        ChatModel
	model       string
	promptsPath string
}

func NewFeedback(chat ChatModel, model, promptsPath string) *Feedback {
	return &Feedback{chat: chat, model: model, promptsPath: promptsPath}
}

// GetFeedback reloads the prompt file on every call, fills it and returns the
// first choice of a single-turn chat completion verbatim.
func (f *Feedback) GetFeedback(ctx context.Context, userAnswer, question, relevantContent, actualAnswer string) (string, error) {
	prompts, err := config.LoadPrompts(f.promptsPath)
	if err != nil {
		return "", err
	}
	prompt := FormatPrompt(prompts.FeedbackPrompt, question, userAnswer, actualAnswer, relevantContent)

	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.SystemPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	log.Debug().Str("model", f.model).Msg("Requesting feedback")
	res, err := f.chat.GenerateContent(ctx, msgContent, llms.WithModel(f.model))
	if err != nil {
		return "", fmt.Errorf("failed to generate feedback: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
