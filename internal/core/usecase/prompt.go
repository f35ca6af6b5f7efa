package usecase

import (
	"fmt"
	"strings"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

// PromptConfig splits the generator's context window between retrieved
// context and the answer to be generated.
type PromptConfig struct {
	ContextWindow   int
	PromptFraction  float64
	MaxAnswerTokens int
	MinAnswerTokens int
}

func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		ContextWindow:   4096,
		PromptFraction:  0.65,
		MaxAnswerTokens: 256,
		MinAnswerTokens: 32,
	}
}

func (c PromptConfig) normalize() PromptConfig {
	out := c
	def := DefaultPromptConfig()
	if out.ContextWindow <= 0 {
		out.ContextWindow = def.ContextWindow
	}
	if out.PromptFraction <= 0 || out.PromptFraction >= 1 {
		out.PromptFraction = def.PromptFraction
	}
	if out.MaxAnswerTokens <= 0 {
		out.MaxAnswerTokens = def.MaxAnswerTokens
	}
	if out.MinAnswerTokens <= 0 {
		out.MinAnswerTokens = def.MinAnswerTokens
	}
	return out
}

// specialTokenMargin reserves room for template/control tokens the counter
// cannot see.
const specialTokenMargin = 16

// PromptBudgeter assembles the generation prompt from ranked passages,
// measuring tokens with the target model's counter so the prompt plus the
// reserved answer always fits the context window.
type PromptBudgeter struct {
	counter ports.TokenCounter
	cfg     PromptConfig
}

func NewPromptBudgeter(counter ports.TokenCounter, cfg PromptConfig) *PromptBudgeter {
	return &PromptBudgeter{counter: counter, cfg: cfg.normalize()}
}

// Build accumulates passages in rank order until the prompt budget is
// reached. Passages are included whole or not at all so citations stay
// intact; the single exception is a first passage that alone exceeds the
// budget, which is truncated preserving its start. Returns the prompt, the
// safe max-generation-tokens value, and the passages actually included.
func (b *PromptBudgeter) Build(question string, passages []domain.Passage) (string, int, []domain.Passage) {
	budget := int(float64(b.cfg.ContextWindow) * b.cfg.PromptFraction)

	var contexts []string
	var included []domain.Passage
	for _, passage := range passages {
		text := strings.TrimSpace(passage.Text)
		if text == "" {
			continue
		}
		probe := formatInstPrompt(question, append(contexts[:len(contexts):len(contexts)], text))
		if b.counter.CountTokens(probe) <= budget {
			contexts = append(contexts, text)
			included = append(included, passage)
			continue
		}
		if len(contexts) == 0 {
			text = b.truncateToBudget(question, text, budget)
			if text != "" {
				truncated := passage
				truncated.Text = text
				contexts = append(contexts, text)
				included = append(included, truncated)
			}
		}
		break
	}

	prompt := formatInstPrompt(question, contexts)
	return prompt, b.maxGenerationTokens(prompt), included
}

// MaxGenerationTokens reports how many output tokens fit after an arbitrary
// prompt; exposed for callers that assemble prompts themselves.
func (b *PromptBudgeter) MaxGenerationTokens(prompt string) int {
	return b.maxGenerationTokens(prompt)
}

func (b *PromptBudgeter) maxGenerationTokens(prompt string) int {
	used := b.counter.CountTokens(prompt)
	room := b.cfg.ContextWindow - used - specialTokenMargin
	if room < 8 {
		room = 8
	}
	if room < b.cfg.MinAnswerTokens {
		return room
	}
	if room > b.cfg.MaxAnswerTokens {
		return b.cfg.MaxAnswerTokens
	}
	return room
}

// truncateToBudget shrinks a single oversized passage until the assembled
// prompt fits, keeping the start of the text (most likely to carry the
// document's own heading/context). Lossy by design; exercised only when even
// the best passage alone exceeds the budget.
func (b *PromptBudgeter) truncateToBudget(question, text string, budget int) string {
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		probe := formatInstPrompt(question, []string{string(runes[:mid])})
		if b.counter.CountTokens(probe) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimSpace(string(runes[:lo]))
}

const instSystemText = "Eres un asistente PRECISO. Responde SOLO con información que esté en los " +
	"fragmentos proporcionados. No inventes nada. " +
	"Si el contexto no contiene la respuesta, escribe EXACTAMENTE: " +
	"\"No hay información suficiente en el contexto.\""

// formatInstPrompt wraps contexts and question in the Mistral-Instruct
// template with grounding guardrails.
func formatInstPrompt(question string, contexts []string) string {
	var ctxBlock strings.Builder
	n := 0
	for _, c := range contexts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if n > 0 {
			ctxBlock.WriteString("\n\n")
		}
		n++
		fmt.Fprintf(&ctxBlock, "[%d] %s", n, c)
	}

	user := "Usa EXCLUSIVAMENTE los fragmentos anteriores. " +
		"Responde en español, de forma breve y directa. " +
		"Pregunta: " + strings.TrimSpace(question)

	return fmt.Sprintf("<s>[INST] <<SYS>>\n%s\n<</SYS>>\n\nContexto:\n%s\n\n%s [/INST]",
		instSystemText, ctxBlock.String(), user)
}
