package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strings"

	"github.com/gomutex/godocx"

	"github.com/codebuildervaibhav/transly/internal/types"
)

// Format is an export file type
type Format string

const (
	FormatTXT  Format = "txt"
	FormatCSV  Format = "csv"
	FormatDOCX Format = "docx"
)

// ParseFormat accepts txt, csv or docx in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTXT, FormatCSV, FormatDOCX:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format %q, use txt, csv, or docx", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render produces the export file for result
func Render(f Format, result types.TranscriptionResult) ([]byte, error) {
	switch f {
	case FormatTXT:
		return Text(result), nil
	case FormatCSV:
		return CSV(result)
	case FormatDOCX:
		return DOCX(result)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// Text returns the raw full text
func Text(result types.TranscriptionResult) []byte {
	return []byte(result.Text)
}

// CSV returns one row per word with start, end and duration
func CSV(result types.TranscriptionResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"word", "start", "end", "duration"}); err != nil {
		return nil, err
	}
	for _, word := range result.Words {
		row := []string{
			word.Text,
			fmt.Sprintf("%.2f", word.Start),
			fmt.Sprintf("%.2f", word.End),
			fmt.Sprintf("%.2f", word.End-word.Start),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// FormatTimestamp renders seconds as mm:ss.mmm
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	mins := total / 60000
	secs := (total / 1000) % 60
	ms := total % 1000
	return fmt.Sprintf("%02d:%02d.%03d", mins, secs, ms)
}

// DOCX returns a Word document with one timestamped paragraph per sentence
func DOCX(result types.TranscriptionResult) ([]byte, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	for _, s := range result.Sentences {
		stamp := fmt.Sprintf("[%s - %s] ", FormatTimestamp(s.Start), FormatTimestamp(s.End))
		p := doc.AddParagraph("")
		p.AddText(stamp).Bold(true)
		p.AddText(s.Text)
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return buf.Bytes(), nil
}
