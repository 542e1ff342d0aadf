package transcription

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrEmptyAudio means the waveform carried no samples
	ErrEmptyAudio = errors.New("audio contains no samples")
	// ErrInvalidWAV means the waveform could not be decoded
	ErrInvalidWAV = errors.New("invalid wav data")
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// PCM is a decoded waveform, one slice per channel.
// Integer formats are rescaled to the 16-bit range, float formats are kept as-is.
type PCM struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel
func (p *PCM) Frames() int {
	if p == nil || len(p.Channels) == 0 {
		return 0
	}
	n := len(p.Channels[0])
	for _, ch := range p.Channels[1:] {
		n = min(n, len(ch))
	}
	return n
}

// DecodeWAV parses a RIFF/WAVE stream into per-channel samples
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header or fmt chunk", ErrInvalidWAV)
	}

	convert, err := sampleConverter(d.WavAudioFormat, d.BitDepth)
	if err != nil {
		return nil, err
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if d.PCMSize == 0 {
		return nil, ErrEmptyAudio
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(d.NumChans)
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, ErrEmptyAudio
	}

	pcm := &PCM{
		SampleRate: int(d.SampleRate),
		Channels:   make([][]float32, channels),
	}
	for c := range pcm.Channels {
		pcm.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			pcm.Channels[c][i] = convert(buf.Data[i*channels+c])
		}
	}
	return pcm, nil
}

// sampleConverter maps the decoder's integer samples onto the 16-bit range.
// The decoder reads 32-bit float samples as raw int32 bits.
func sampleConverter(audioFormat, bitDepth uint16) (func(int) float32, error) {
	switch {
	case audioFormat == wavFormatFloat && bitDepth == 32:
		return func(v int) float32 { return math.Float32frombits(uint32(int32(v))) }, nil
	case audioFormat != wavFormatPCM && audioFormat != wavFormatExtensible:
		return nil, fmt.Errorf("%w: unsupported format %d with %d bits", ErrInvalidWAV, audioFormat, bitDepth)
	case bitDepth == 8:
		return func(v int) float32 { return float32(v-128) * 256 }, nil
	case bitDepth == 16:
		return func(v int) float32 { return float32(v) }, nil
	case bitDepth == 24:
		return func(v int) float32 { return float32(v) / 256 }, nil
	case bitDepth == 32:
		return func(v int) float32 { return float32(v) / 65536 }, nil
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
}

// EncodeWAV writes mono samples in [-1, 1] as 16-bit PCM
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(math.Round(float64(s) * math.MaxInt16))
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}
