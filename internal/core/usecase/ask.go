package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

// AskUseCase runs the full question flow: answer cache lookup, passage
// search, temperature selection, prompt budgeting, generation.
type AskUseCase struct {
	searcher  ports.PassageSearcher
	budgeter  *PromptBudgeter
	generator ports.AnswerGenerator
	cache     ports.AnswerCache
}

func NewAskUseCase(
	searcher ports.PassageSearcher,
	budgeter *PromptBudgeter,
	generator ports.AnswerGenerator,
	cache ports.AnswerCache,
) *AskUseCase {
	return &AskUseCase{
		searcher:  searcher,
		budgeter:  budgeter,
		generator: generator,
		cache:     cache,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, req ports.AskRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))
	}
	source := strings.TrimSpace(req.Source)

	// Explicit temperatures produce answers the cache must not serve to
	// classified requests, so only default requests hit the cache.
	cacheable := req.Temperature == nil && uc.cache != nil
	if cacheable {
		if answer, ok := uc.cache.Get(question, source); ok {
			cached := *answer
			cached.Cached = true
			return &cached, nil
		}
	}

	result, err := uc.searcher.Search(ctx, domain.SearchQuery{
		Question:     question,
		FilterSource: source,
		TopK:         req.TopK,
		Diversify:    req.Diversify,
	})
	if err != nil {
		return nil, err
	}

	temperature := ClassifyTemperature(question)
	if req.Temperature != nil {
		temperature = ClampTemperature(*req.Temperature)
	}

	prompt, maxTokens, citations := uc.budgeter.Build(question, result.Passages)

	text, err := uc.generator.Generate(ctx, prompt, ports.GenerationOptions{
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer := &domain.Answer{
		Text:        strings.TrimSpace(text),
		Mode:        result.Mode,
		Temperature: temperature,
		Citations:   citations,
	}

	if cacheable {
		uc.cache.Set(question, source, answer)
	}

	slog.Debug("ask_completed",
		"mode", string(result.Mode),
		"temperature", temperature,
		"citations", len(citations),
		"max_tokens", maxTokens,
	)
	return answer, nil
}
