// Package chunker splits document text into token-bounded chunks for
// ingestion as document_chunk entities.
package chunker

import (
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoder is the tiktoken encoding used when the caller does not
// specify one.
const DefaultEncoder = "cl100k_base"

// Chunk is one token-bounded slice of a source document. Index is the
// zero-based position of the chunk within its document.
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// ChunkText splits text into chunks of at most maxTokens tokens, breaking on
// sentence boundaries. Sentences are never split; a single sentence longer
// than maxTokens becomes its own oversized chunk.
func ChunkText(text, encoder string, maxTokens int) ([]Chunk, error) {
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		chunks = append(chunks, Chunk{
			ID:    id,
			Index: len(chunks),
			Text:  strings.TrimSpace(strings.Join(current, " ")),
		})
		current = nil
		currentTokens = 0
		return nil
	}

	for _, sentence := range sentences {
		tokens := len(enc.Encode(sentence, nil, nil))
		if currentTokens+tokens > maxTokens && len(current) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return chunks, nil
}

func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	appendCurrent := func() {
		if sentence := strings.TrimSpace(current.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Paragraph break ends the running sentence.
			appendCurrent()
			continue
		}

		for _, sentence := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)
			if endsSentence(sentence) {
				appendCurrent()
			}
		}
	}
	appendCurrent()

	return sentences
}

func endsSentence(sentence string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(sentence), `"')]}`)
	return strings.HasSuffix(trimmed, ".") ||
		strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?")
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		// "1. item" style numeric listings do not end a sentence.
		if i > 0 && unicode.IsDigit(runes[i-1]) && i+1 < len(runes) && runes[i+1] == ' ' {
			continue
		}

		j := i + 1
		for j < len(runes) && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && strings.ContainsRune(`"')]}`, runes[j]) {
			current.WriteRune(runes[j])
			j++
		}

		if sentence := strings.TrimSpace(current.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
		current.Reset()
		i = j - 1
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}
	return sentences
}
