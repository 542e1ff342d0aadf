package transcription

import (
	"fmt"
	"math"
	"os"
)

// TargetSampleRate is the rate the recognizer expects
const TargetSampleRate = 16000

// ReadSamples decodes the waveform at path into normalized mono 16 kHz samples
func ReadSamples(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open waveform: %w", err)
	}
	defer f.Close()

	pcm, err := DecodeWAV(f)
	if err != nil {
		return nil, err
	}
	return Normalize(pcm)
}

// Normalize downmixes, resamples to TargetSampleRate and peak-normalizes pcm
func Normalize(pcm *PCM) ([]float32, error) {
	if pcm.Frames() == 0 {
		return nil, ErrEmptyAudio
	}
	mono := Downmix(pcm.Channels)
	mono = Resample(mono, pcm.SampleRate, TargetSampleRate)
	return PeakNormalize(mono), nil
}

// Downmix averages all channels sample by sample
func Downmix(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	n := len(channels[0])
	for _, ch := range channels[1:] {
		n = min(n, len(ch))
	}

	count := float32(len(channels))
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for _, ch := range channels {
			sum += ch[i]
		}
		mono[i] = sum / count
	}
	return mono
}

// Resample converts samples between rates with linear interpolation
// and no anti-alias filter. ExtractAudio already delivers 16 kHz, so this
// only runs for waveforms that did not come through ffmpeg.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		n = 1
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// PeakNormalize scales samples by 1/peak when the peak exceeds 1.
// Buffers already within [-1, 1] are returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak <= 1 {
		return samples
	}

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// Duration returns the length in seconds of normalized samples
func Duration(samples []float32) float64 {
	return float64(len(samples)) / TargetSampleRate
}
