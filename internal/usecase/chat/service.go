package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// Service answers questions about the indexed corpus, taking prior turns into account.
// It holds no per-conversation state; the caller sends the history with every question.
type Service struct {
	index Retriever
	embed Embedder
	gen   Generator
	topK  int
}

// New creates a chat service. topK <= 0 falls back to domain.DefaultTopK.
func New(index Retriever, embed Embedder, gen Generator, topK int) *Service {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	return &Service{index: index, embed: embed, gen: gen, topK: topK}
}

// Ask resolves the question against the history, retrieves context and generates a grounded answer.
func (s *Service) Ask(ctx context.Context, question string, history domain.ChatHistory) (domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return domain.QueryResult{}, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	reformulated := !history.IsEmpty()
	res, err := s.ask(ctx, question, history)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QuestionsTotal.WithLabelValues(status, strconv.FormatBool(reformulated)).Inc()
	return res, err
}

func (s *Service) ask(ctx context.Context, question string, history domain.ChatHistory) (domain.QueryResult, error) {
	log := logger.FromContext(ctx)

	standalone, err := s.resolve(ctx, question, history)
	if err != nil {
		return domain.QueryResult{}, err
	}

	chunks, err := s.retrieve(ctx, standalone)
	if err != nil {
		return domain.QueryResult{}, err
	}
	metrics.RetrievedChunks.Observe(float64(len(chunks)))

	answer, err := s.generate(ctx, answerMessages(chunks, question), "answer")
	if err != nil {
		return domain.QueryResult{}, err
	}

	log.Debug("Question answered",
		zap.String("standalone_question", standalone),
		zap.Int("chunks", len(chunks)),
		zap.Int("history_turns", len(history)),
	)

	return domain.QueryResult{
		Answer:           answer,
		Question:         question,
		ResolvedQuestion: standalone,
		Chunks:           chunks,
	}, nil
}

// resolve condenses a follow-up into a standalone query. Without history the question is used as is.
func (s *Service) resolve(ctx context.Context, question string, history domain.ChatHistory) (string, error) {
	if history.IsEmpty() {
		return question, nil
	}

	standalone, err := s.generate(ctx, condenseMessages(history, question), "reformulate question")
	if err != nil {
		return "", err
	}
	if standalone == "" {
		logger.FromContext(ctx).Warn("Empty reformulation, using original question")
		return question, nil
	}
	return standalone, nil
}

func (s *Service) retrieve(ctx context.Context, query string) ([]domain.ScoredChunk, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrieval, err)
	}

	chunks, err := s.index.Query(ctx, emb.Embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	return chunks, nil
}

func (s *Service) generate(ctx context.Context, messages []domain.Message, op string) (string, error) {
	res, err := s.gen.Generate(ctx, messages)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrGeneration, op, err)
	}
	domain.UsageFromContext(ctx).AddGeneration(res)
	return strings.TrimSpace(res.Text), nil
}
