package transcription

import (
	"context"
	"strings"

	"github.com/codebuildervaibhav/transly/internal/types"
)

const (
	nativeConfidence      = 1.0
	synthesizedConfidence = 0.8
)

// RecognizeOptions constrains a single recognition attempt
type RecognizeOptions struct {
	// Language is a hint; empty lets the model decide
	Language string
}

// Token is a recognized unit with its own timing
type Token struct {
	Text  string
	Start float64
	End   float64
}

// Recognition is the raw output of one model run
type Recognition struct {
	Text     string
	Tokens   []Token
	Language string
}

func (r *Recognition) empty() bool {
	return r == nil || strings.TrimSpace(r.Text) == ""
}

// Recognizer is a loaded speech recognition model
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32, opts RecognizeOptions) (*Recognition, error)
}

// ModelLoader initializes a Recognizer; it is expensive and called lazily
type ModelLoader func(ctx context.Context) (Recognizer, error)

// OutcomeKind tells genuine recognition apart from the placeholder
type OutcomeKind int

const (
	KindGenuine OutcomeKind = iota
	KindPlaceholder
)

func (k OutcomeKind) String() string {
	if k == KindPlaceholder {
		return "placeholder"
	}
	return "genuine"
}

// Outcome is what the executor hands back to the pipeline
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	Words    []types.Word
	Language string
	// Reason explains why a placeholder was produced
	Reason string
}

// IsPlaceholder reports whether the outcome is the degraded substitute
func (o Outcome) IsPlaceholder() bool {
	return o.Kind == KindPlaceholder
}

// buildOutcome turns a recognition into words. Native token timings are used
// when present, otherwise the text is spread evenly over the audio duration.
func buildOutcome(rec *Recognition, sampleCount int) Outcome {
	var words []types.Word
	for _, tok := range rec.Tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		end := tok.End
		if end <= 0 {
			end = tok.Start
		}
		if end < tok.Start {
			end = tok.Start
		}
		words = append(words, types.Word{
			Text:       text,
			Start:      tok.Start,
			End:        end,
			Confidence: nativeConfidence,
		})
	}

	if len(words) == 0 {
		fields := strings.Fields(rec.Text)
		if len(fields) > 0 {
			slot := float64(sampleCount) / TargetSampleRate / float64(len(fields))
			words = make([]types.Word, len(fields))
			for i, f := range fields {
				words[i] = types.Word{
					Text:       f,
					Start:      float64(i) * slot,
					End:        float64(i+1) * slot,
					Confidence: synthesizedConfidence,
				}
			}
		}
	}

	language := rec.Language
	if language == "" {
		language = "auto"
	}
	return Outcome{
		Kind:     KindGenuine,
		Text:     strings.TrimSpace(rec.Text),
		Words:    words,
		Language: language,
	}
}
