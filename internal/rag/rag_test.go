package rag

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"quiz-feedback/internal/config"
	"quiz-feedback/internal/llmservice"
	"quiz-feedback/internal/models"
)

type mockCollection struct {
	docs      []string
	err       error
	gotQuery  string
	gotN      int
	callCount int
}

func (m *mockCollection) Query(_ context.Context, queryText string, nResults int) ([]string, error) {
	m.callCount++
	m.gotQuery = queryText
	m.gotN = nResults
	return m.docs, m.err
}

type spyChat struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	response *llms.ContentResponse
	err      error
}

func (s *spyChat) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	for _, opt := range options {
		opt(&s.options)
	}
	return s.response, s.err
}

func textOf(t *testing.T, mc llms.MessageContent) string {
	t.Helper()
	require.Len(t, mc.Parts, 1)
	text, ok := mc.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return text.Text
}

func writePrompts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const testPrompts = `feedback_prompt: |
  Question: {question}
  Student answer: {user_answer}
  Reference answer: {actual_answer}
  Course material: {relevant_content}
  Literal braces: {{not_a_placeholder}}
`

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "q1: Capital of France? Lyon Paris", BuildQuery("q1: Capital of France?", "Lyon", "Paris"))
}

func TestGetRelevantContentEmpty(t *testing.T) {
	c := &mockCollection{}

	got, err := GetRelevantContent(context.Background(), c, "Lyon", "Paris", "q1: Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, "q1: Capital of France? Lyon Paris", c.gotQuery)
	assert.Equal(t, 3, c.gotN)
	assert.Equal(t, 1, c.callCount)
}

func TestGetRelevantContentJoinsInOrder(t *testing.T) {
	c := &mockCollection{docs: []string{"third", "first", "second"}}

	got, err := GetRelevantContent(context.Background(), c, "a", "b", "q")
	require.NoError(t, err)
	assert.Equal(t, "third\n\nfirst\n\nsecond", got)
}

func TestGetRelevantContentError(t *testing.T) {
	c := &mockCollection{err: errors.New("store down")}

	_, err := GetRelevantContent(context.Background(), c, "a", "b", "q")
	assert.Error(t, err)
}

func TestFormatPrompt(t *testing.T) {
	got := FormatPrompt("{question}|{user_answer}|{actual_answer}|{relevant_content}|{{x}}|{unknown}",
		"Q", "U", "A", "C")
	assert.Equal(t, "Q|U|A|C|{x}|{unknown}", got)
}

func TestFormatPromptDoesNotReexpand(t *testing.T) {
	got := FormatPrompt("{user_answer}", "Q", "{question}", "A", "C")
	assert.Equal(t, "{question}", got)
}

func TestGetFeedbackReturnsFirstChoice(t *testing.T) {
	chat := &spyChat{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{
		{Content: "Close, but the capital is Paris."},
		{Content: "ignored"},
	}}}
	f := NewFeedback(chat, models.DefaultChatModel, writePrompts(t, testPrompts))

	got, err := f.GetFeedback(context.Background(), "Lyon", "q1: Capital of France?", "France is in Europe.", "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Close, but the capital is Paris.", got)

	require.Len(t, chat.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, chat.messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", textOf(t, chat.messages[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, chat.messages[1].Role)
	assert.Equal(t, "Question: q1: Capital of France?\n"+
		"Student answer: Lyon\n"+
		"Reference answer: Paris\n"+
		"Course material: France is in Europe.\n"+
		"Literal braces: {not_a_placeholder}\n", textOf(t, chat.messages[1]))
	assert.Equal(t, "gpt-3.5-turbo", chat.options.Model)
}

func TestGetFeedbackReloadsPrompts(t *testing.T) {
	chat := &spyChat{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	path := writePrompts(t, "feedback_prompt: \"v1 {question}\"\n")
	f := NewFeedback(chat, models.DefaultChatModel, path)

	_, err := f.GetFeedback(context.Background(), "u", "q", "c", "a")
	require.NoError(t, err)
	assert.Equal(t, "v1 q", textOf(t, chat.messages[1]))

	require.NoError(t, os.WriteFile(path, []byte("feedback_prompt: \"v2 {question}\"\n"), 0644))
	_, err = f.GetFeedback(context.Background(), "u", "q", "c", "a")
	require.NoError(t, err)
	assert.Equal(t, "v2 q", textOf(t, chat.messages[1]))
}

func TestGetFeedbackErrors(t *testing.T) {
	ctx := context.Background()
	prompts := writePrompts(t, testPrompts)

	t.Run("chat error propagates", func(t *testing.T) {
		chat := &spyChat{err: errors.New("429 rate limited")}
		_, err := NewFeedback(chat, models.DefaultChatModel, prompts).GetFeedback(ctx, "u", "q", "c", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("no choices", func(t *testing.T) {
		chat := &spyChat{response: &llms.ContentResponse{}}
		_, err := NewFeedback(chat, models.DefaultChatModel, prompts).GetFeedback(ctx, "u", "q", "c", "a")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("missing prompts file", func(t *testing.T) {
		chat := &spyChat{}
		_, err := NewFeedback(chat, models.DefaultChatModel, filepath.Join(t.TempDir(), "none.yaml")).GetFeedback(ctx, "u", "q", "c", "a")
		require.Error(t, err)
		assert.Nil(t, chat.messages)
	})

	t.Run("prompt key missing", func(t *testing.T) {
		chat := &spyChat{}
		path := writePrompts(t, "other: x\n")
		_, err := NewFeedback(chat, models.DefaultChatModel, path).GetFeedback(ctx, "u", "q", "c", "a")
		assert.ErrorIs(t, err, config.ErrMissingPrompt)
	})
}

func TestGetFeedbackOverHTTP(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Well done."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`)
	}))
	defer srv.Close()

	t.Setenv("QUIZ_TEST_KEY", "sk-test")
	chat, err := llmservice.NewChatModel(&config.LLMConfig{
		Provider: "openai",
		BaseURL:  srv.URL,
		KeyEnv:   "QUIZ_TEST_KEY",
		Model:    models.DefaultChatModel,
	})
	require.NoError(t, err)

	prompts := writePrompts(t, "feedback_prompt: \"Q={question} U={user_answer} A={actual_answer} C={relevant_content}\"\n")
	got, err := NewFeedback(chat, models.DefaultChatModel, prompts).
		GetFeedback(context.Background(), "Lyon", "Capital of France?", "France borders Spain.", "Paris")
	require.NoError(t, err)

	assert.Equal(t, "Well done.", got)
	assert.Contains(t, body, "Q=Capital of France? U=Lyon A=Paris C=France borders Spain.")
	assert.Contains(t, body, "You are a helpful assistant.")
	assert.Contains(t, body, `"model":"gpt-3.5-turbo"`)
}
