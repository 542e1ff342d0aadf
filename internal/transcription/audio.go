package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrTranscode marks a failure of the ffmpeg collaborator
var ErrTranscode = errors.New("transcoding failed")

// CompressionConfig controls the durable video copy
type CompressionConfig struct {
	Enabled      bool
	Resolution   int
	VideoBitrate string
	AudioBitrate string
}

// FFmpeg extracts audio and compresses videos with the ffmpeg binary
type FFmpeg struct {
	binary      string
	workDir     string
	compression CompressionConfig
	logger      *slog.Logger
}

// NewFFmpeg creates an ffmpeg wrapper writing intermediate files to workDir
func NewFFmpeg(binary, workDir string, compression CompressionConfig, logger *slog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{
		binary:      binary,
		workDir:     workDir,
		compression: compression,
		logger:      logger.With("component", "ffmpeg"),
	}
}

// ExtractAudio converts the source video to a 16kHz mono PCM WAV and returns its path
func (f *FFmpeg) ExtractAudio(ctx context.Context, sourcePath string) (string, error) {
	if err := os.MkdirAll(f.workDir, 0755); err != nil {
		return "", fmt.Errorf("%w: create work dir: %v", ErrTranscode, err)
	}
	outputPath := filepath.Join(f.workDir, fmt.Sprintf("audio_%s.wav", uuid.New().String()))

	cmd := exec.CommandContext(ctx, f.binary,
		"-i", sourcePath,
		"-vn",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y",
		outputPath,
	)

	f.logger.Info("extracting audio", "input", filepath.Base(sourcePath), "output", filepath.Base(outputPath))
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("%w: ffmpeg extract audio: %v\nOutput: %s", ErrTranscode, err, string(output))
	}
	return outputPath, nil
}

// CompressVideo writes a web-friendly mp4 of inputPath to outputPath.
// When compression is disabled the file is copied unchanged.
func (f *FFmpeg) CompressVideo(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", ErrTranscode, err)
	}

	if !f.compression.Enabled {
		f.logger.Info("compression disabled, copying original video", "output", outputPath)
		return copyFile(inputPath, outputPath)
	}

	resolution := f.compression.Resolution
	if resolution <= 0 {
		resolution = 640
	}
	cmd := exec.CommandContext(ctx, f.binary,
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", f.compression.VideoBitrate,
		"-b:a", f.compression.AudioBitrate,
		"-vf", fmt.Sprintf("scale=%d:-2", resolution),
		"-preset", "fast",
		"-crf", "28",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		outputPath,
	)

	f.logger.Info("compressing video", "input", filepath.Base(inputPath),
		"resolution", resolution, "bitrate", f.compression.VideoBitrate)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: ffmpeg compress: %v\nOutput: %s", ErrTranscode, err, string(output))
	}

	if in, err := os.Stat(inputPath); err == nil {
		if out, err := os.Stat(outputPath); err == nil && in.Size() > 0 {
			f.logger.Info("compression complete",
				"original_bytes", in.Size(), "compressed_bytes", out.Size(),
				"reduction_pct", fmt.Sprintf("%.1f", (1-float64(out.Size())/float64(in.Size()))*100))
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ValidateVideoFormat checks if the file extension is a supported video container
func ValidateVideoFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
