package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/transly/internal/config"
	"github.com/codebuildervaibhav/transly/internal/export"
	applog "github.com/codebuildervaibhav/transly/internal/logger"
	"github.com/codebuildervaibhav/transly/internal/transcription"
	"github.com/codebuildervaibhav/transly/internal/types"
)

var (
	format     string
	output     string
	language   string
	model      string
	configPath string
)

// newLogger builds the configured logger; --quiet and --verbose override the level.
// stdout may carry the export, so callers pass stderr.
func newLogger(cfg *config.Config, out io.Writer) (*applog.Logger, error) {
	level := cfg.Log.Level
	switch {
	case quiet:
		level = "error"
	case verbose:
		level = "debug"
	}
	return applog.New(applog.Config{
		Level:      level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     out,
	})
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	inputPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", args[0])
	}
	if !transcription.ValidateVideoFormat(inputPath) {
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(inputPath))
	}

	outFormat, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if language != "" {
		cfg.Whisper.Language = language
	}
	if model != "" {
		cfg.Whisper.Model = model
	}

	appLogger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer appLogger.Close()
	logger := appLogger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workDir, err := os.MkdirTemp(cfg.Storage.TempDir, "transcribe_")
	if err != nil {
		workDir, err = os.MkdirTemp("", "transcribe_")
		if err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
	}
	defer os.RemoveAll(workDir)

	ffmpeg := transcription.NewFFmpeg(cfg.FFmpeg.Binary, workDir, transcription.CompressionConfig{}, logger)
	executor := transcription.NewExecutor(transcription.ExecutorOptions{
		Loader: transcription.NewModelLoader(transcription.WhisperConfig{
			Model:   cfg.Whisper.Model,
			Python:  cfg.Whisper.Python,
			Threads: cfg.Whisper.Threads,
			Device:  cfg.Whisper.Device,
			TempDir: workDir,
		}, logger),
		Language: cfg.Whisper.Language,
		Logger:   logger,
	})
	defer executor.Close()

	logger.Info("extracting audio", "input", inputPath)
	audioPath, err := ffmpeg.ExtractAudio(ctx, inputPath)
	if err != nil {
		return err
	}

	logger.Info("transcribing", "model", transcription.ModelName(cfg.Whisper.Model), "language", cfg.Whisper.Language)
	outcome, err := executor.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}
	if outcome.IsPlaceholder() {
		logger.Warn("recognition failed, writing placeholder transcription", "reason", outcome.Reason)
	}

	result := types.TranscriptionResult{
		Text:      outcome.Text,
		Words:     outcome.Words,
		Sentences: transcription.GroupSentences(outcome.Words, transcription.DefaultMaxSentenceWords),
		Language:  outcome.Language,
	}
	body, err := export.Render(outFormat, result)
	if err != nil {
		return fmt.Errorf("render %s: %w", outFormat, err)
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(output, body, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("transcription written", "path", output, "words", len(result.Words),
		"sentences", len(result.Sentences))
	return nil
}
