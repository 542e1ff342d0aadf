package transcription

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/transly/internal/types"
)

func wordsOf(texts ...string) []types.Word {
	words := make([]types.Word, len(texts))
	for i, text := range texts {
		words[i] = types.Word{
			Text:       text,
			Start:      float64(i),
			End:        float64(i) + 0.8,
			Confidence: 1,
		}
	}
	return words
}

func TestGroupSentencesPunctuationAndFinalWord(t *testing.T) {
	sentences := GroupSentences(wordsOf("Hello.", "World", "Today"), DefaultMaxSentenceWords)

	require.Len(t, sentences, 2)
	assert.Equal(t, "Hello.", sentences[0].Text)
	assert.Equal(t, 0.0, sentences[0].Start)
	assert.Equal(t, 0.8, sentences[0].End)

	assert.Equal(t, "World Today", sentences[1].Text)
	assert.Equal(t, 1.0, sentences[1].Start)
	assert.Equal(t, 2.8, sentences[1].End)
	assert.Len(t, sentences[1].Words, 2)
}

func TestGroupSentencesTerminators(t *testing.T) {
	sentences := GroupSentences(wordsOf("Stop!", "Why?", "First;", "then", "done."), DefaultMaxSentenceWords)

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	assert.Equal(t, []string{"Stop!", "Why?", "First;", "then done."}, texts)
}

func TestGroupSentencesLengthThreshold(t *testing.T) {
	texts := make([]string, 31)
	for i := range texts {
		texts[i] = fmt.Sprintf("w%d", i)
	}
	sentences := GroupSentences(wordsOf(texts...), DefaultMaxSentenceWords)

	require.Len(t, sentences, 3)
	assert.Len(t, sentences[0].Words, 15)
	assert.Len(t, sentences[1].Words, 15)
	assert.Len(t, sentences[2].Words, 1)
	assert.Equal(t, "w30", sentences[2].Text)

	assert.Len(t, GroupSentences(wordsOf(texts...), 10), 4)
	assert.Len(t, GroupSentences(wordsOf(texts...), 0), 3)
}

func TestGroupSentencesEmpty(t *testing.T) {
	sentences := GroupSentences(nil, DefaultMaxSentenceWords)
	assert.NotNil(t, sentences)
	assert.Empty(t, sentences)
}

func TestGroupSentencesPartitionsWords(t *testing.T) {
	words := PlaceholderOutcome("test").Words
	sentences := GroupSentences(words, 4)

	var flattened []types.Word
	for _, s := range sentences {
		require.NotEmpty(t, s.Words)
		assert.LessOrEqual(t, len(s.Words), 4)
		assert.Equal(t, s.Words[0].Start, s.Start)
		assert.Equal(t, s.Words[len(s.Words)-1].End, s.End)
		flattened = append(flattened, s.Words...)
	}
	assert.Equal(t, words, flattened)
}
