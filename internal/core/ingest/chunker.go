package ingest

import (
	"regexp"
	"strings"
)

const (
	// chunkSize is the target size of one paragraph chunk, in runes.
	chunkSize = 500
	// chunkOverlap is how much trailing context is carried into the next
	// chunk, in runes.
	chunkOverlap = 50
	// overlapSentences is how many trailing sentences the overlap is drawn
	// from.
	overlapSentences = 3
)

// sentenceRe splits on ., ! and ? followed by whitespace or end of text. It is
// a heuristic: abbreviations like "Dr." can still produce a break, which is
// acceptable for chunking purposes.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s|$)`)

// SplitSentences splits text into sentences by punctuation boundaries.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}
	matches := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

// BuildChunks splits text into overlapping chunks of roughly chunkSize runes.
// Sentences are accumulated greedily; each new chunk is seeded with the tail
// of the previous one so context survives the boundary. Text without sentence
// boundaries falls back to fixed-size sliding windows.
func BuildChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return slidingWindowChunks(text)
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))
		if currentLen+sentenceLen > chunkSize && currentLen > 0 {
			closed := strings.TrimSpace(current.String())
			chunks = append(chunks, closed)

			overlap := overlapTail(closed)
			current.Reset()
			if overlap != "" {
				current.WriteString(overlap)
				current.WriteString("... ")
			}
			currentLen = len([]rune(current.String()))
		}

		current.WriteString(sentence)
		current.WriteString(" ")
		currentLen += sentenceLen + 1
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		chunks = append(chunks, tail)
	}

	return chunks
}

// overlapTail returns the trailing portion of a closed chunk used to seed the
// next one: up to chunkOverlap runes taken from its last sentences.
func overlapTail(chunk string) string {
	sentences := SplitSentences(chunk)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) > overlapSentences {
		sentences = sentences[len(sentences)-overlapSentences:]
	}
	tail := strings.Join(sentences, " ")

	runes := []rune(tail)
	if len(runes) > chunkOverlap {
		return string(runes[len(runes)-chunkOverlap:])
	}
	return tail
}

// slidingWindowChunks is the fallback for text with no sentence boundaries.
func slidingWindowChunks(text string) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - chunkOverlap
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
