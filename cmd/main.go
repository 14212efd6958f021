package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quiz-feedback/internal/chromemdb"
	"quiz-feedback/internal/collection"
	"quiz-feedback/internal/config"
	"quiz-feedback/internal/embedding"
	"quiz-feedback/internal/helper"
	"quiz-feedback/internal/history"
	"quiz-feedback/internal/llmservice"
	"quiz-feedback/internal/models"
	"quiz-feedback/internal/quiz"
	"quiz-feedback/internal/rag"
	"quiz-feedback/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	ingest := flag.Bool("ingest", false, "Build (or reuse) the content collection and exit")
	list := flag.Bool("list", false, "Print the questions and exit")
	questionKey := flag.String("question", "", "Key of the question to answer")
	answer := flag.String("answer", "", "Answer to the question given with -question")
	reset := flag.Bool("reset", false, "Delete the content collection before running")
	export := flag.Bool("export", false, "Export the chromem collection to its export file and exit")
	importPath := flag.String("import", "", "Import a chromem collection export before running")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	if *questionKey != "" && *answer == "" {
		log.Fatal().Msg("Please provide an answer using the -answer flag together with -question")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *list {
		if err := listQuestions(cfg); err != nil {
			log.Fatal().Err(err).Msg("Error listing questions")
		}
		return
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer a.close()

	if *reset {
		if err := a.provider.Reset(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error deleting collection")
		}
	}

	if *importPath != "" {
		if err := a.importCollection(ctx, *importPath); err != nil {
			log.Fatal().Err(err).Msg("Error importing collection")
		}
	}

	switch {
	case *export:
		if err := a.exportCollection(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error exporting collection")
		}
	case *ingest:
		if err := a.ingest(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error ingesting content")
		}
	case *questionKey != "":
		if err := a.answerOne(ctx, *questionKey, *answer); err != nil {
			log.Fatal().Err(err).Msg("Error generating feedback")
		}
	default:
		if err := a.interactive(ctx, os.Stdin); err != nil {
			log.Fatal().Err(err).Msg("Error running quiz")
		}
	}
}

func listQuestions(cfg *config.Config) error {
	questions, _, err := quiz.LoadQuestionsAndAnswers(cfg.QuestionsFile)
	if err != nil {
		return err
	}
	helper.PrettyPrint(os.Stdout, questions)
	return nil
}

type app struct {
	cfg       *config.Config
	store     models.VectorStore
	provider  *collection.Provider
	history   history.Store
	feedback  *rag.Feedback
	sessionID string
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if cfg.VectorStore.Type == "chromem" && !cfg.VectorStore.Chromem.InMemory {
		if err := helper.CreateFolder(cfg.VectorStore.Chromem.Path); err != nil {
			return nil, err
		}
	}
	store, err := vectorstore.Open(ctx, &cfg.VectorStore, embedding.Func(embedder))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	hist, err := history.New(ctx, &cfg.History)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	sessionID, err := helper.NewSessionID()
	if err != nil {
		_ = store.Close()
		_ = hist.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		provider:  collection.NewProvider(store, embedder, cfg),
		history:   hist,
		sessionID: sessionID,
	}, nil
}

func (a *app) close() {
	if err := a.history.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing history")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing vector store")
	}
}

func (a *app) contentFile() (string, error) {
	if a.cfg.ContentFile == "" {
		return "", errors.New("content_file is not set in config")
	}
	return a.cfg.ContentFile, nil
}

func (a *app) collection(ctx context.Context) (models.Collection, error) {
	path, err := a.contentFile()
	if err != nil {
		return nil, err
	}
	return a.provider.GetOrCreate(ctx, path)
}

// chat client is created on first use so -ingest works without chat credentials
func (a *app) feedbackGenerator() (*rag.Feedback, error) {
	if a.feedback != nil {
		return a.feedback, nil
	}
	chat, err := llmservice.NewChatModel(&a.cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	a.feedback = rag.NewFeedback(chat, a.cfg.ChatLLM.Model, a.cfg.PromptsFile)
	return a.feedback, nil
}

func (a *app) chromem() (*chromemdb.VectorDBManager, error) {
	m, ok := a.store.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, fmt.Errorf("export and import need the chromem store, configured store is %s", a.cfg.VectorStore.Type)
	}
	return m, nil
}

func (a *app) ingest(ctx context.Context) error {
	c, err := a.collection(ctx)
	if err != nil {
		return err
	}
	n, err := c.Count(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("collection", c.Name()).Int("documents", n).Msg("Collection ready")
	return nil
}

func (a *app) exportCollection(ctx context.Context) error {
	m, err := a.chromem()
	if err != nil {
		return err
	}
	if _, err := a.collection(ctx); err != nil {
		return err
	}
	if err := helper.CreateFolder(filepath.Dir(m.ExportPath(a.cfg.VectorStore.Collection))); err != nil {
		return err
	}
	path, err := m.Export(ctx, a.cfg.VectorStore.Collection)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Collection exported")
	return nil
}

func (a *app) importCollection(ctx context.Context, path string) error {
	m, err := a.chromem()
	if err != nil {
		return err
	}
	if err := m.Import(ctx, path, a.cfg.VectorStore.Collection); err != nil {
		return err
	}
	if content, err := a.contentFile(); err == nil {
		a.provider.Invalidate(content)
	}
	log.Info().Str("path", path).Msg("Collection imported")
	return nil
}

func (a *app) answerOne(ctx context.Context, key, userAnswer string) error {
	questions, answers, err := quiz.LoadQuestionsAndAnswers(a.cfg.QuestionsFile)
	if err != nil {
		return err
	}
	question, ok := questions[key]
	if !ok {
		return fmt.Errorf("unknown question %q", key)
	}
	response, err := a.evaluate(ctx, key, question, userAnswer, answers[key])
	if err != nil {
		return err
	}
	printResponse(os.Stdout, response)
	return nil
}

// evaluate retrieves the relevant content for one answer, asks for feedback
// and records the attempt.
func (a *app) evaluate(ctx context.Context, key, question, userAnswer, actualAnswer string) (*models.PromptResponse, error) {
	c, err := a.collection(ctx)
	if err != nil {
		return nil, err
	}
	relevant, err := rag.GetRelevantContent(ctx, c, userAnswer, actualAnswer, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve relevant content: %w", err)
	}

	fg, err := a.feedbackGenerator()
	if err != nil {
		return nil, err
	}
	feedback, err := fg.GetFeedback(ctx, userAnswer, question, relevant, actualAnswer)
	if err != nil {
		return nil, err
	}

	err = a.history.Record(ctx, models.Attempt{
		SessionID:       a.sessionID,
		QuestionKey:     key,
		Question:        question,
		UserAnswer:      userAnswer,
		ActualAnswer:    actualAnswer,
		RelevantContent: relevant,
		Feedback:        feedback,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Error recording attempt")
	}

	return &models.PromptResponse{Query: question, Source: relevant, Feedback: feedback}, nil
}

// interactive asks every question in key order. An empty answer skips the
// question; "quit" or end of input stops.
func (a *app) interactive(ctx context.Context, in io.Reader) error {
	questions, answers, err := quiz.LoadQuestionsAndAnswers(a.cfg.QuestionsFile)
	if err != nil {
		return err
	}
	// build the collection before the first question
	if _, err := a.collection(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for _, key := range quiz.Keys(questions) {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("\n%s\n> ", questions[key])
		if !scanner.Scan() {
			break
		}
		userAnswer := strings.TrimSpace(scanner.Text())
		if userAnswer == "" {
			continue
		}
		if userAnswer == "quit" {
			break
		}

		response, err := a.evaluate(ctx, key, questions[key], userAnswer, answers[key])
		if err != nil {
			log.Error().Err(err).Str("question", key).Msg("Error generating feedback")
			continue
		}
		printResponse(os.Stdout, response)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	attempts, err := a.history.List(ctx, a.sessionID)
	if err != nil {
		return err
	}
	log.Info().Str("session", a.sessionID).Int("answered", len(attempts)).Msg("Quiz finished")
	return nil
}

func printResponse(w io.Writer, response *models.PromptResponse) {
	log.Info().Msg("Question: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", response.Source)

	log.Info().Msg("Feedback: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", response.Feedback)
}
