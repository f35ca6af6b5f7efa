package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

type searcherFake struct {
	result *domain.SearchResult
	err    error
	query  domain.SearchQuery
	calls  int
}

func (f *searcherFake) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	f.calls++
	f.query = q
	return f.result, f.err
}

type generatorFake struct {
	text string
	err  error
	opts ports.GenerationOptions
}

func (f *generatorFake) Generate(_ context.Context, _ string, opts ports.GenerationOptions) (string, error) {
	f.opts = opts
	return f.text, f.err
}

type cacheFake struct {
	store map[string]*domain.Answer
	sets  int
}

func newCacheFake() *cacheFake { return &cacheFake{store: map[string]*domain.Answer{}} }

func (f *cacheFake) Get(question, source string) (*domain.Answer, bool) {
	a, ok := f.store[question+"|"+source]
	return a, ok
}

func (f *cacheFake) Set(question, source string, answer *domain.Answer) {
	f.sets++
	f.store[question+"|"+source] = answer
}

func askFixture(text string) (*searcherFake, *generatorFake, *cacheFake, *AskUseCase) {
	searcher := &searcherFake{result: &domain.SearchResult{
		Mode: domain.SearchModeMulti,
		Passages: []domain.Passage{
			{ChunkID: 0, Score: 1.0, Text: "contexto uno", Source: "a.pdf"},
		},
	}}
	generator := &generatorFake{text: text}
	cache := newCacheFake()
	uc := NewAskUseCase(searcher, NewPromptBudgeter(wordCounter{}, DefaultPromptConfig()), generator, cache)
	return searcher, generator, cache, uc
}

func TestAskClassifiesTemperature(t *testing.T) {
	_, generator, _, uc := askFixture("respuesta")

	answer, err := uc.Ask(context.Background(), ports.AskRequest{Question: "Sugiere mejoras"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Temperature != temperatureCreative {
		t.Fatalf("expected creative temperature, got %v", answer.Temperature)
	}
	if generator.opts.Temperature != temperatureCreative {
		t.Fatalf("temperature not passed to generator: %v", generator.opts.Temperature)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
}

func TestAskExplicitTemperatureWins(t *testing.T) {
	_, generator, _, uc := askFixture("respuesta")

	temp := 1.9
	answer, err := uc.Ask(context.Background(), ports.AskRequest{Question: "Sugiere mejoras", Temperature: &temp})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Temperature != 1.9 || generator.opts.Temperature != 1.9 {
		t.Fatalf("explicit temperature ignored: %v", answer.Temperature)
	}
}

func TestAskClampsExplicitTemperature(t *testing.T) {
	_, generator, _, uc := askFixture("respuesta")

	temp := 5.0
	if _, err := uc.Ask(context.Background(), ports.AskRequest{Question: "q", Temperature: &temp}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if generator.opts.Temperature != 2.0 {
		t.Fatalf("expected clamp to 2.0, got %v", generator.opts.Temperature)
	}
}

func TestAskCacheHitSkipsPipeline(t *testing.T) {
	searcher, _, cache, uc := askFixture("respuesta")
	cache.Set("¿Cuál es el total?", "", &domain.Answer{Text: "100", Mode: domain.SearchModeMulti})
	cache.sets = 0

	answer, err := uc.Ask(context.Background(), ports.AskRequest{Question: "¿Cuál es el total?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.Cached || answer.Text != "100" {
		t.Fatalf("expected cached answer, got %+v", answer)
	}
	if searcher.calls != 0 {
		t.Fatalf("search must not run on cache hit")
	}
}

func TestAskExplicitTemperatureBypassesCache(t *testing.T) {
	searcher, _, cache, uc := askFixture("respuesta")
	cache.Set("q", "", &domain.Answer{Text: "stale"})

	temp := 0.5
	answer, err := uc.Ask(context.Background(), ports.AskRequest{Question: "q", Temperature: &temp})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Cached || answer.Text != "respuesta" {
		t.Fatalf("explicit temperature must bypass cache, got %+v", answer)
	}
	if searcher.calls != 1 {
		t.Fatalf("expected fresh search")
	}
	if cache.sets != 1 {
		t.Fatalf("explicit-temperature answers must not be cached, sets=%d", cache.sets)
	}
}

func TestAskStoresAnswerInCache(t *testing.T) {
	_, _, cache, uc := askFixture("respuesta")

	if _, err := uc.Ask(context.Background(), ports.AskRequest{Question: "q", Source: "a.pdf"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if _, ok := cache.Get("q", "a.pdf"); !ok {
		t.Fatalf("answer not cached")
	}
}

func TestAskForwardsQueryShape(t *testing.T) {
	searcher, _, _, uc := askFixture("respuesta")

	_, err := uc.Ask(context.Background(), ports.AskRequest{
		Question:  "  q  ",
		Source:    "a.pdf",
		TopK:      4,
		Diversify: true,
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	q := searcher.query
	if q.Question != "q" || q.FilterSource != "a.pdf" || q.TopK != 4 || !q.Diversify {
		t.Fatalf("unexpected search query: %+v", q)
	}
}

func TestAskSearchErrorPropagates(t *testing.T) {
	searcher, _, _, uc := askFixture("respuesta")
	searcher.err = domain.WrapError(domain.ErrEmptyCorpus, "search", errors.New("no chunks"))
	searcher.result = nil

	_, err := uc.Ask(context.Background(), ports.AskRequest{Question: "q"})
	if !domain.IsKind(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestAskGeneratorError(t *testing.T) {
	_, generator, cache, uc := askFixture("")
	generator.err = errors.New("model overloaded")

	_, err := uc.Ask(context.Background(), ports.AskRequest{Question: "q"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if cache.sets != 0 {
		t.Fatalf("failed answers must not be cached")
	}
}
