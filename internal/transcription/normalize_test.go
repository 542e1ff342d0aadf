package transcription

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stereoWAV builds a 16-bit PCM stream with interleaved left/right frames
func stereoWAV(rate int, left, right []int16) []byte {
	var buf bytes.Buffer
	dataSize := len(left) * 4
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := range left {
		binary.Write(&buf, binary.LittleEndian, left[i])
		binary.Write(&buf, binary.LittleEndian, right[i])
	}
	return buf.Bytes()
}

func writeWAV(t *testing.T, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, EncodeWAV(f, samples, TargetSampleRate))
	require.NoError(t, f.Close())
	return path
}

func TestDecodeWAVMono(t *testing.T) {
	f, err := os.Open(writeWAV(t, []float32{0, 0.5, -0.5, 2}))
	require.NoError(t, err)
	defer f.Close()

	pcm, err := DecodeWAV(f)
	require.NoError(t, err)
	assert.Equal(t, TargetSampleRate, pcm.SampleRate)
	require.Len(t, pcm.Channels, 1)
	assert.Equal(t, 4, pcm.Frames())
	assert.InDelta(t, 0, pcm.Channels[0][0], 0.5)
	assert.InDelta(t, 16384, pcm.Channels[0][1], 1)
	assert.InDelta(t, -16384, pcm.Channels[0][2], 1)
	// Out of range input is clamped on encode
	assert.InDelta(t, 32767, pcm.Channels[0][3], 0.5)
}

func TestDecodeWAVStereo(t *testing.T) {
	pcm, err := DecodeWAV(bytes.NewReader(stereoWAV(8000, []int16{100, 200}, []int16{-100, 400})))
	require.NoError(t, err)
	assert.Equal(t, 8000, pcm.SampleRate)
	require.Len(t, pcm.Channels, 2)
	assert.Equal(t, []float32{100, 200}, pcm.Channels[0])
	assert.Equal(t, []float32{-100, 400}, pcm.Channels[1])
}

func TestDecodeWAVErrors(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("not a wave file at all")))
	assert.ErrorIs(t, err, ErrInvalidWAV)

	_, err = DecodeWAV(bytes.NewReader(stereoWAV(8000, nil, nil)))
	assert.ErrorIs(t, err, ErrEmptyAudio)

	// fmt chunk without data
	truncated := stereoWAV(8000, []int16{1}, []int16{1})[:36]
	_, err = DecodeWAV(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestDecodeWAVFloat32(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+8))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatFloat))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(16000*4))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(8))
	binary.Write(&buf, binary.LittleEndian, float32(0.25))
	binary.Write(&buf, binary.LittleEndian, float32(-0.75))

	pcm, err := DecodeWAV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.75}, pcm.Channels[0])
}

func TestDownmix(t *testing.T) {
	mono := Downmix([][]float32{{1, 2, 3}, {3, 4}})
	assert.Equal(t, []float32{2, 3}, mono)

	single := []float32{1, 2}
	assert.Equal(t, single, Downmix([][]float32{single}))
	assert.Nil(t, Downmix(nil))
}

func TestResample(t *testing.T) {
	up := Resample([]float32{0, 1, 2, 3}, 8000, 16000)
	require.Len(t, up, 8)
	assert.InDelta(t, 0.5, up[1], 1e-6)
	assert.InDelta(t, 1, up[2], 1e-6)
	assert.Equal(t, float32(3), up[7])

	down := Resample(make([]float32, 48000), 48000, 16000)
	assert.Len(t, down, 16000)

	same := []float32{1, 2}
	assert.Equal(t, same, Resample(same, 16000, 16000))
}

func TestPeakNormalize(t *testing.T) {
	quiet := []float32{0.5, -1, 0.25}
	assert.Equal(t, quiet, PeakNormalize(quiet))

	loud := PeakNormalize([]float32{100, -200, 50})
	assert.Equal(t, []float32{0.5, -1, 0.25}, loud)
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	_, err := Normalize(&PCM{SampleRate: 16000, Channels: [][]float32{{}}})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestReadSamplesProducesMono16k(t *testing.T) {
	left := make([]int16, 800)
	right := make([]int16, 800)
	for i := range left {
		left[i] = int16(i * 10)
		right[i] = int16(-i * 10)
	}
	left[400] = 30000
	right[400] = 30000

	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, stereoWAV(8000, left, right), 0644))

	samples, err := ReadSamples(path)
	require.NoError(t, err)
	assert.Len(t, samples, 1600)
	assert.InDelta(t, 0.1, Duration(samples), 1e-9)

	var peak float32
	for _, s := range samples {
		peak = max(peak, s, -s)
	}
	assert.InDelta(t, 1, peak, 1e-6)
}

func TestReadSamplesMissingFile(t *testing.T) {
	_, err := ReadSamples(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
