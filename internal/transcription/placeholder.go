package transcription

import (
	"strings"

	"github.com/codebuildervaibhav/transly/internal/types"
)

// PlaceholderText is the sentinel text of a degraded transcription
const PlaceholderText = "This is a sample transcription. The Whisper model will process your video and generate accurate text with word-level timestamps. You can click on any word to jump to that moment in the video."

const placeholderWordSeconds = 0.5

// PlaceholderOutcome returns the fixed transcription used when recognition fails
func PlaceholderOutcome(reason string) Outcome {
	tokens := strings.Fields(PlaceholderText)
	words := make([]types.Word, len(tokens))
	for i, tok := range tokens {
		words[i] = types.Word{
			Text:       tok,
			Start:      float64(i) * placeholderWordSeconds,
			End:        float64(i+1) * placeholderWordSeconds,
			Confidence: 1.0,
		}
	}
	return Outcome{
		Kind:     KindPlaceholder,
		Text:     PlaceholderText,
		Words:    words,
		Language: "en",
		Reason:   reason,
	}
}
