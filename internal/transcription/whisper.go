package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MockModel selects a recognizer that never recognizes anything
const MockModel = "mock"

// WhisperConfig describes how to invoke the whisper CLI
type WhisperConfig struct {
	Model   string
	Python  string
	Threads int
	Device  string
	TempDir string
}

// WhisperTranscriber wraps Python's OpenAI Whisper as a Recognizer
type WhisperTranscriber struct {
	modelName string
	python    string
	threads   int
	device    string
	tempDir   string
	logger    *slog.Logger
}

// NewModelLoader returns the loader for cfg.Model; "mock" yields an always-empty recognizer
func NewModelLoader(cfg WhisperConfig, logger *slog.Logger) ModelLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.EqualFold(cfg.Model, MockModel) {
		return func(ctx context.Context) (Recognizer, error) {
			logger.Warn("using mock model, every job will get the placeholder transcription")
			return mockRecognizer{}, nil
		}
	}
	return func(ctx context.Context) (Recognizer, error) {
		return NewWhisperTranscriber(ctx, cfg, logger)
	}
}

// NewWhisperTranscriber verifies that whisper can be invoked and returns a recognizer
func NewWhisperTranscriber(ctx context.Context, cfg WhisperConfig, logger *slog.Logger) (*WhisperTranscriber, error) {
	python := cfg.Python
	if python == "" {
		python = "python"
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	wt := &WhisperTranscriber{
		modelName: ModelName(cfg.Model),
		python:    python,
		threads:   cfg.Threads,
		device:    cfg.Device,
		tempDir:   tempDir,
		logger:    logger.With("model", ModelName(cfg.Model)),
	}

	wt.logger.Info("loading whisper model", "python", python)
	out, err := exec.CommandContext(ctx, python, "-m", "whisper", "--help").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper is not available via %s -m whisper: %w\n%s", python, err, string(out))
	}
	return wt, nil
}

// ModelName maps a model path or alias to a whisper model name
func ModelName(model string) string {
	lower := strings.ToLower(model)
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(lower, name) {
			return name
		}
	}
	return "small"
}

// Recognize writes samples to a temporary WAV and runs whisper on it
func (wt *WhisperTranscriber) Recognize(ctx context.Context, samples []float32, opts RecognizeOptions) (*Recognition, error) {
	workDir := filepath.Join(wt.tempDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create whisper work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "input.wav")
	f, err := os.Create(audioPath)
	if err != nil {
		return nil, fmt.Errorf("create whisper input: %w", err)
	}
	if err := EncodeWAV(f, samples, TargetSampleRate); err != nil {
		f.Close()
		return nil, fmt.Errorf("write whisper input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write whisper input: %w", err)
	}

	args := []string{"-m", "whisper",
		audioPath,
		"--model", wt.modelName,
		"--output_dir", workDir,
		"--output_format", "json",
		"--word_timestamps", "True",
		"--fp16", "False",
		"--task", "transcribe",
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if wt.threads > 0 {
		args = append(args, "--threads", strconv.Itoa(wt.threads))
	}
	if wt.device != "" {
		args = append(args, "--device", wt.device)
	}

	output, err := exec.CommandContext(ctx, wt.python, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, string(output))
	}
	wt.logger.Debug("whisper finished", "output", string(output))

	jsonData, err := os.ReadFile(filepath.Join(workDir, "input.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}
	return ParseWhisperOutput(jsonData)
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int           `json:"id"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []WhisperWord `json:"words"`
}

// WhisperWord is present when whisper runs with --word_timestamps
type WhisperWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// ParseWhisperOutput converts whisper JSON into a Recognition
func ParseWhisperOutput(data []byte) (*Recognition, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	rec := &Recognition{
		Text:     out.Text,
		Language: out.Language,
	}
	for _, seg := range out.Segments {
		for _, w := range seg.Words {
			rec.Tokens = append(rec.Tokens, Token{Text: w.Word, Start: w.Start, End: w.End})
		}
	}
	return rec, nil
}

type mockRecognizer struct{}

func (mockRecognizer) Recognize(ctx context.Context, samples []float32, opts RecognizeOptions) (*Recognition, error) {
	return &Recognition{}, nil
}
