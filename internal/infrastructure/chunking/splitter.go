package chunking

import "strings"

// Splitter cuts page text into chunks of roughly ChunkSize runes along
// sentence boundaries. Consecutive chunks share OverlapSentences trailing
// sentences so an answer that straddles a boundary is still retrievable
// from one chunk.
type Splitter struct {
	ChunkSize        int
	OverlapSentences int
}

func NewSplitter(chunkSize, overlapSentences int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	return &Splitter{
		ChunkSize:        chunkSize,
		OverlapSentences: overlapSentences,
	}
}

func (s *Splitter) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var out []string
	var window []string
	var size int
	for i := 0; i < len(sentences); i++ {
		sentence := sentences[i]
		sentenceLen := len([]rune(sentence))

		if size > 0 && size+sentenceLen > s.ChunkSize {
			out = append(out, strings.Join(window, " "))

			// Carry the tail sentences into the next chunk.
			keep := s.OverlapSentences
			if keep > len(window) {
				keep = len(window)
			}
			window = append([]string(nil), window[len(window)-keep:]...)
			size = 0
			for _, kept := range window {
				size += len([]rune(kept)) + 1
			}
		}

		// A single sentence longer than the chunk size is cut hard; rare in
		// prose, common in tables flattened by PDF extraction.
		if sentenceLen > s.ChunkSize {
			if len(window) > 0 {
				out = append(out, strings.Join(window, " "))
				window = nil
				size = 0
			}
			out = append(out, hardSplit(sentence, s.ChunkSize)...)
			continue
		}

		window = append(window, sentence)
		size += sentenceLen + 1
	}
	if len(window) > 0 {
		chunk := strings.TrimSpace(strings.Join(window, " "))
		// The trailing window may hold only carried-over sentences already
		// emitted with the previous chunk.
		if chunk != "" && (len(out) == 0 || !strings.HasSuffix(out[len(out)-1], chunk)) {
			out = append(out, chunk)
		}
	}
	return out
}

// sentence terminators followed by whitespace end a sentence, unless the
// preceding token is a known abbreviation.
var abbreviations = map[string]struct{}{
	"sr": {}, "sra": {}, "dr": {}, "dra": {}, "av": {}, "etc": {}, "no": {},
	"art": {}, "núm": {}, "num": {}, "pág": {}, "pag": {}, "tel": {},
	"mr": {}, "mrs": {}, "ms": {}, "inc": {}, "ltd": {}, "vs": {},
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		if r == '.' {
			if i+1 < len(runes) && !isSpace(runes[i+1]) {
				continue
			}
			if isAbbreviation(runes[start : i+1]) {
				continue
			}
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isAbbreviation(sentence []rune) bool {
	// Walk back over the word preceding the period.
	end := len(sentence) - 1 // the period itself
	i := end - 1
	for i >= 0 && !isSpace(sentence[i]) {
		i--
	}
	word := strings.ToLower(string(sentence[i+1 : end]))
	_, ok := abbreviations[word]
	return ok
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func hardSplit(sentence string, size int) []string {
	runes := []rune(sentence)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
