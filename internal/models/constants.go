package models

const (
	DefaultCollectionName = "module_content"
	EmbeddingIDPrefix     = "embedding_"
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-3.5-turbo"
	DefaultAPIKeyEnv      = "OPENAI_API_KEY"

	// number of chunks handed to the feedback prompt
	TopK = 3

	ContextSeparator = "\n\n"
	SystemPrompt     = "You are a helpful assistant."

	// placeholders understood by the feedback prompt template
	PlaceholderQuestion        = "{question}"
	PlaceholderUserAnswer      = "{user_answer}"
	PlaceholderActualAnswer    = "{actual_answer}"
	PlaceholderRelevantContent = "{relevant_content}"
)
