package chunker

import (
	"strings"

	"github.com/askdocs/askdocs/internal/models"
)

// Options control chunk sizing. All sizes are in estimated tokens; a token
// is approximated as CharsPerToken characters.
type Options struct {
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
	CharsPerToken int
}

func (o Options) withDefaults() Options {
	if o.MinTokens == 0 {
		o.MinTokens = 500
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 1000
	}
	if o.OverlapTokens == 0 {
		o.OverlapTokens = 75
	}
	if o.CharsPerToken == 0 {
		o.CharsPerToken = 4
	}
	return o
}

var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// Split breaks text into overlapping chunks on sentence or word boundaries.
// The same input and options always produce the same chunks, and every
// character of the trimmed input is covered by at least one chunk span.
func Split(text string, opts Options) []models.Chunk {
	opts = opts.withDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	maxChars := opts.MaxTokens * opts.CharsPerToken
	minChars := opts.MinTokens * opts.CharsPerToken
	overlapChars := opts.OverlapTokens * opts.CharsPerToken

	if len(text) <= maxChars {
		return []models.Chunk{{
			Index:       0,
			Text:        text,
			StartOffset: 0,
			EndOffset:   len(text),
			TokenCount:  estimateTokens(len(text), opts.CharsPerToken),
		}}
	}

	var chunks []models.Chunk
	pos := 0
	for pos < len(text) {
		end := pos + maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = breakPoint(text, pos+minChars, end)
		}

		slice := strings.TrimSpace(text[pos:end])
		if slice != "" {
			chunks = append(chunks, models.Chunk{
				Index:       len(chunks),
				Text:        slice,
				StartOffset: pos,
				EndOffset:   end,
				TokenCount:  estimateTokens(len(slice), opts.CharsPerToken),
			})
		}

		if end >= len(text) {
			break
		}
		next := end - overlapChars
		if next <= pos {
			// Overlap would revisit the current start; jump to the cut
			// instead so the loop always terminates.
			next = end
		}
		pos = next
	}
	return chunks
}

// breakPoint finds the best position to cut the chunk ending no later than
// maxEnd. Sentence terminators win, then the last whitespace, then a hard
// cut at maxEnd; a boundary only counts if it lands at or past minEnd.
func breakPoint(text string, minEnd, maxEnd int) int {
	window := text[:maxEnd]

	best := -1
	for _, ender := range sentenceEnders {
		if i := strings.LastIndex(window, ender); i >= 0 {
			cut := i + len(ender)
			if cut >= minEnd && cut > best {
				best = cut
			}
		}
	}
	if best >= 0 {
		return best
	}

	for i := maxEnd - 1; i > minEnd; i-- {
		if isSpace(text[i]) {
			return i + 1
		}
	}
	return maxEnd
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func estimateTokens(length, charsPerToken int) int {
	n := length / charsPerToken
	if n < 1 {
		return 1
	}
	return n
}
