package transcription

import (
	"strings"

	"github.com/codebuildervaibhav/transly/internal/types"
)

// DefaultMaxSentenceWords closes a sentence that has no punctuation
const DefaultMaxSentenceWords = 15

// GroupSentences splits words into sentences on . ! ? ; or every maxWords words.
// The final word always closes the running sentence.
func GroupSentences(words []types.Word, maxWords int) []types.Sentence {
	if len(words) == 0 {
		return []types.Sentence{}
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxSentenceWords
	}

	var (
		sentences []types.Sentence
		current   []types.Word
	)
	for i, w := range words {
		current = append(current, w)

		if endsSentence(w.Text) || len(current) >= maxWords || i == len(words)-1 {
			sentences = append(sentences, newSentence(current))
			current = nil
		}
	}
	return sentences
}

func endsSentence(text string) bool {
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "!") ||
		strings.HasSuffix(text, "?") ||
		strings.HasSuffix(text, ";")
}

func newSentence(words []types.Word) types.Sentence {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	return types.Sentence{
		Text:  strings.Join(texts, " "),
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Words: words,
	}
}
