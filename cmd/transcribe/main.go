package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "transcribe <video>",
	Short: "Transcribe a video file to text, CSV or DOCX",
	Long: `Transcribe runs a single video through the same pipeline as the server:
audio extraction, normalization, speech recognition with a retry and a
placeholder fallback, and sentence segmentation. The result is exported
to stdout or a file.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runTranscribe,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.Flags().StringVarP(&format, "format", "f", "txt", "output format: txt, csv, docx")
	rootCmd.Flags().StringVarP(&output, "out", "o", "", "output path (default: stdout)")
	rootCmd.Flags().StringVarP(&language, "language", "l", "", "language hint for the first attempt (default from config)")
	rootCmd.Flags().StringVarP(&model, "model", "m", "", "whisper model: tiny, base, small, medium, large, mock")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML configuration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
