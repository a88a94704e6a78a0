// Package cliptest builds in-memory voice clips for tests.
package cliptest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// WAV returns a 16-bit PCM .wav file with the given interleaved samples.
func WAV(sampleRate, channels int, samples []int16) []byte {
	data := new(bytes.Buffer)
	binary.Write(data, binary.LittleEndian, samples)
	return WAVChunk(sampleRate, channels, 16, 1, data.Bytes())
}

// WAV8 returns an 8-bit (unsigned) PCM .wav file.
func WAV8(sampleRate, channels int, samples []uint8) []byte {
	return WAVChunk(sampleRate, channels, 8, 1, samples)
}

// WAVFloat returns a 32-bit IEEE float .wav file.
func WAVFloat(sampleRate, channels int, samples []float32) []byte {
	data := new(bytes.Buffer)
	binary.Write(data, binary.LittleEndian, samples)
	return WAVChunk(sampleRate, channels, 32, 3, data.Bytes())
}

// WAVChunk returns a .wav file with the given format tag and raw sample data.
func WAVChunk(sampleRate, channels, bitsPerSample, formatTag int, data []byte) []byte {
	buf := new(bytes.Buffer)
	numChannels := uint16(channels)
	bits := uint16(bitsPerSample)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bits/8)
	blockAlign := numChannels * (bits / 8)
	dataSize := uint32(len(data))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(formatTag))
	binary.Write(buf, binary.LittleEndian, numChannels)
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, bits)

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(data)
	return buf.Bytes()
}

// Constant returns a mono 16-bit clip holding value for the given number of
// frames.
func Constant(sampleRate, frames int, value int16) []byte {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = value
	}
	return WAV(sampleRate, 1, samples)
}

// Sine returns a mono 16-bit sine clip at half scale.
func Sine(sampleRate, frames int, frequency float64) []byte {
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(16384 * math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)))
	}
	return WAV(sampleRate, 1, samples)
}
