package ollama

import "strings"

// TokenCounter approximates the generator's token count without loading the
// tokenizer: word count divided by 0.7 overshoots slightly for Spanish and
// English text, which keeps the prompt budget on the safe side.
type TokenCounter struct{}

func (TokenCounter) CountTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words)/0.7) + 1
}
