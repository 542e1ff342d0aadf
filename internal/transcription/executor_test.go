package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recognizeFunc func(call int, opts RecognizeOptions) (*Recognition, error)

// scriptedRecognizer answers each call through fn and records the options it saw
type scriptedRecognizer struct {
	mu    sync.Mutex
	fn    recognizeFunc
	calls []RecognizeOptions
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, samples []float32, opts RecognizeOptions) (*Recognition, error) {
	r.mu.Lock()
	r.calls = append(r.calls, opts)
	call := len(r.calls)
	r.mu.Unlock()
	return r.fn(call, opts)
}

func (r *scriptedRecognizer) languages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	langs := make([]string, len(r.calls))
	for i, c := range r.calls {
		langs[i] = c.Language
	}
	return langs
}

func newTestExecutor(t *testing.T, rec Recognizer, loads *atomic.Int32) *Executor {
	t.Helper()
	e := NewExecutor(ExecutorOptions{
		Loader: func(ctx context.Context) (Recognizer, error) {
			if loads != nil {
				loads.Add(1)
			}
			return rec, nil
		},
		Language: "en",
	})
	t.Cleanup(e.Close)
	return e
}

func oneSecond() []float32 {
	samples := make([]float32, TargetSampleRate)
	for i := range samples {
		samples[i] = 0.1
	}
	return samples
}

func TestExecutorUsesNativeTokens(t *testing.T) {
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return &Recognition{
			Text:     " Hello world",
			Language: "en",
			Tokens: []Token{
				{Text: " Hello", Start: 0, End: 0.4},
				{Text: " ", Start: 0.4, End: 0.4},
				{Text: "world", Start: 0.5, End: 0},
			},
		}, nil
	}}
	e := newTestExecutor(t, rec, nil)

	outcome, err := e.Transcribe(context.Background(), writeWAV(t, oneSecond()))
	require.NoError(t, err)

	assert.False(t, outcome.IsPlaceholder())
	assert.Equal(t, "Hello world", outcome.Text)
	assert.Equal(t, "en", outcome.Language)
	require.Len(t, outcome.Words, 2)
	assert.Equal(t, "Hello", outcome.Words[0].Text)
	assert.Equal(t, 0.4, outcome.Words[0].End)
	assert.Equal(t, 1.0, outcome.Words[0].Confidence)
	// A missing end falls back to the start
	assert.Equal(t, 0.5, outcome.Words[1].End)
	assert.Equal(t, []string{"en"}, rec.languages())
}

func TestExecutorRetriesWithoutLanguageHint(t *testing.T) {
	rec := &scriptedRecognizer{fn: func(call int, opts RecognizeOptions) (*Recognition, error) {
		if call == 1 {
			return &Recognition{Text: "   "}, nil
		}
		return &Recognition{Text: "bom dia"}, nil
	}}
	e := newTestExecutor(t, rec, nil)

	outcome, err := e.Transcribe(context.Background(), writeWAV(t, oneSecond()))
	require.NoError(t, err)

	assert.Equal(t, []string{"en", ""}, rec.languages())
	assert.False(t, outcome.IsPlaceholder())
	assert.Equal(t, "auto", outcome.Language)
	require.Len(t, outcome.Words, 2)
	assert.Equal(t, 0.0, outcome.Words[0].Start)
	assert.Equal(t, 0.5, outcome.Words[0].End)
	assert.Equal(t, 1.0, outcome.Words[1].End)
	assert.Equal(t, 0.8, outcome.Words[1].Confidence)
}

func TestExecutorPlaceholderAfterTwoEmptyResults(t *testing.T) {
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return &Recognition{}, nil
	}}
	e := newTestExecutor(t, rec, nil)

	outcome, err := e.Transcribe(context.Background(), writeWAV(t, oneSecond()))
	require.NoError(t, err)

	assert.True(t, outcome.IsPlaceholder())
	assert.Equal(t, PlaceholderText, outcome.Text)
	assert.Len(t, rec.languages(), 2)
}

func TestExecutorPlaceholderOnRecognizerError(t *testing.T) {
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return nil, errors.New("out of memory")
	}}
	e := newTestExecutor(t, rec, nil)

	outcome, err := e.Transcribe(context.Background(), writeWAV(t, oneSecond()))
	require.NoError(t, err)
	assert.True(t, outcome.IsPlaceholder())
	assert.Contains(t, outcome.Reason, "out of memory")
}

func TestExecutorRetriesFailedModelLoad(t *testing.T) {
	var loads atomic.Int32
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return &Recognition{Text: "ok"}, nil
	}}
	e := NewExecutor(ExecutorOptions{
		Loader: func(ctx context.Context) (Recognizer, error) {
			if loads.Add(1) == 1 {
				return nil, errors.New("model file missing")
			}
			return rec, nil
		},
	})
	defer e.Close()
	path := writeWAV(t, oneSecond())

	first, err := e.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, first.IsPlaceholder())

	second, err := e.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, second.IsPlaceholder())
	assert.Equal(t, int32(2), loads.Load())
}

func TestExecutorLoadsModelOnce(t *testing.T) {
	var loads atomic.Int32
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return &Recognition{Text: "again"}, nil
	}}
	e := newTestExecutor(t, rec, &loads)
	path := writeWAV(t, oneSecond())

	for i := 0; i < 3; i++ {
		_, err := e.Transcribe(context.Background(), path)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestExecutorSurvivesWorkerCrash(t *testing.T) {
	var loads atomic.Int32
	rec := &scriptedRecognizer{fn: func(call int, opts RecognizeOptions) (*Recognition, error) {
		if call == 1 {
			panic("segmentation fault in native code")
		}
		return &Recognition{Text: "recovered"}, nil
	}}
	e := newTestExecutor(t, rec, &loads)
	path := writeWAV(t, oneSecond())

	crashed, err := e.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, crashed.IsPlaceholder())
	assert.Contains(t, crashed.Reason, "segmentation fault")

	next, err := e.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, next.IsPlaceholder())
	assert.Equal(t, "recovered", next.Text)
	// The restarted worker starts with an empty model cache
	assert.Equal(t, int32(2), loads.Load())
}

func TestExecutorPropagatesUnreadableAudio(t *testing.T) {
	rec := &scriptedRecognizer{fn: func(int, RecognizeOptions) (*Recognition, error) {
		return &Recognition{Text: "never"}, nil
	}}
	e := newTestExecutor(t, rec, nil)

	_, err := e.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	var audioErr *AudioError
	require.ErrorAs(t, err, &audioErr)

	empty := writeWAV(t, nil)
	_, err = e.Transcribe(context.Background(), empty)
	assert.ErrorIs(t, err, ErrEmptyAudio)

	corrupt := filepath.Join(t.TempDir(), "corrupt.wav")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0644))
	_, err = e.Transcribe(context.Background(), corrupt)
	assert.ErrorIs(t, err, ErrInvalidWAV)

	assert.Empty(t, rec.languages())
}

func TestExecutorClosed(t *testing.T) {
	e := NewExecutor(ExecutorOptions{})
	e.Close()

	_, err := e.Transcribe(context.Background(), "unused.wav")
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestMockModelDegradesToPlaceholder(t *testing.T) {
	e := NewExecutor(ExecutorOptions{
		Loader:   NewModelLoader(WhisperConfig{Model: MockModel}, nil),
		Language: "en",
	})
	defer e.Close()

	outcome, err := e.Transcribe(context.Background(), writeWAV(t, oneSecond()))
	require.NoError(t, err)
	assert.True(t, outcome.IsPlaceholder())
}

func TestPlaceholderOutcome(t *testing.T) {
	outcome := PlaceholderOutcome("reason")
	assert.Equal(t, KindPlaceholder, outcome.Kind)
	assert.Equal(t, "placeholder", outcome.Kind.String())
	require.Len(t, outcome.Words, 33)
	assert.Equal(t, "This", outcome.Words[0].Text)
	assert.Equal(t, 0.5, outcome.Words[1].Start)
	assert.Equal(t, 16.5, outcome.Words[32].End)
}
